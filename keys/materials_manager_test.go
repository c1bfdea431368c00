package keys

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jazz-tools/jazz-crypto/crypto"
)

func newTestCache(t *testing.T, config CachingConfig) (*CachingMaterialsManager, *countingMaterialsManager, *Manager) {
	t.Helper()
	manager := newTestManager(t)
	underlying := &countingMaterialsManager{MaterialsManager: newTestLocalProvider(t, manager)}

	cachingMM, err := NewCachingMaterialsManager(underlying, config, nil, nil)
	require.NoError(t, err, "Failed to create caching materials manager")
	return cachingMM, underlying, manager
}

func TestCachingMaterialsManager_GetMaterial(t *testing.T) {
	cachingMM, underlying, _ := newTestCache(t, CachingConfig{MaxCache: 10, MaxAge: 5 * time.Minute, MaxMessagesUsed: 5})

	cryptoCtx := crypto.CryptoContext{"purpose": "test"}
	ctx := context.Background()

	material1, err := cachingMM.GetMaterial(ctx, cryptoCtx)
	require.NoError(t, err, "Failed to get material")
	defer material1.Release()
	assert.Equal(t, 1, material1.UsageCount, "Expected usage count to be 1")

	material2, err := cachingMM.GetMaterial(ctx, cryptoCtx)
	require.NoError(t, err, "Failed to get material from cache")
	defer material2.Release()
	assert.Equal(t, 2, material2.UsageCount, "Expected usage count to be 2")

	assert.Same(t, material1, material2, "Expected to get the same material instance from cache")
	assert.Equal(t, int32(1), underlying.gets.Load(), "Expected underlying manager to be called only once")

	other, err := cachingMM.GetMaterial(ctx, crypto.CryptoContext{"purpose": "other"})
	require.NoError(t, err)
	defer other.Release()
	assert.NotSame(t, material1, other)
	assert.Equal(t, 2, cachingMM.Len())
}

func TestCachingMaterialsManager_MaterialExpiration(t *testing.T) {
	cachingMM, underlying, _ := newTestCache(t, CachingConfig{MaxCache: 10, MaxAge: 50 * time.Millisecond, MaxMessagesUsed: 100})

	cryptoCtx := crypto.CryptoContext{"purpose": "test"}
	ctx := context.Background()

	material1, err := cachingMM.GetMaterial(ctx, cryptoCtx)
	require.NoError(t, err)
	material1.Release()

	time.Sleep(100 * time.Millisecond)

	material2, err := cachingMM.GetMaterial(ctx, cryptoCtx)
	require.NoError(t, err)
	defer material2.Release()

	assert.NotSame(t, material1, material2, "Expected new material after expiration")
	assert.True(t, material1.Key.Destroyed(), "Expired material should be destroyed once released")
	assert.Equal(t, int32(2), underlying.gets.Load())
}

func TestCachingMaterialsManager_UsageLimit(t *testing.T) {
	maxUsage := 3
	cachingMM, underlying, _ := newTestCache(t, CachingConfig{MaxCache: 10, MaxAge: time.Hour, MaxMessagesUsed: maxUsage})

	cryptoCtx := crypto.CryptoContext{"purpose": "usage-count-test"}
	ctx := context.Background()

	first, err := cachingMM.GetMaterial(ctx, cryptoCtx)
	require.NoError(t, err)
	first.Release()

	for i := 2; i <= maxUsage; i++ {
		material, err := cachingMM.GetMaterial(ctx, cryptoCtx)
		require.NoError(t, err, "Failed to get material on iteration %d", i)
		assert.Same(t, first, material)
		assert.Equal(t, i, material.UsageCount)
		material.Release()
	}
	assert.False(t, first.Key.Destroyed(), "Cached material must outlive caller references")

	fresh, err := cachingMM.GetMaterial(ctx, cryptoCtx)
	require.NoError(t, err)
	defer fresh.Release()

	assert.NotSame(t, first, fresh, "Expected new material after usage limit")
	assert.NotEqual(t, first.EncryptedKey, fresh.EncryptedKey)
	assert.Equal(t, 1, fresh.UsageCount)
	assert.True(t, first.Key.Destroyed())
	assert.Equal(t, int32(2), underlying.gets.Load())
}

func TestCachingMaterialsManager_DecryptMaterial(t *testing.T) {
	cachingMM, underlying, _ := newTestCache(t, CachingConfig{MaxMessagesUsed: 1})

	cryptoCtx := crypto.CryptoContext{"purpose": "test"}
	ctx := context.Background()

	encrypted, err := underlying.GetMaterial(ctx, cryptoCtx)
	require.NoError(t, err)
	defer encrypted.Release()

	for i := 0; i < 5; i++ {
		material, err := cachingMM.DecryptMaterial(ctx, cryptoCtx, &Material{EncryptedKey: encrypted.EncryptedKey})
		require.NoError(t, err)

		want, err := encrypted.Key.Export()
		require.NoError(t, err)
		got, err := material.Key.Export()
		require.NoError(t, err)
		assert.Equal(t, want, got)
		material.Release()
	}

	assert.Equal(t, int32(1), underlying.decrypts.Load(), "Decryption entries ignore the usage limit")

	_, err = cachingMM.DecryptMaterial(ctx, crypto.CryptoContext{"purpose": "wrong"}, &Material{EncryptedKey: encrypted.EncryptedKey})
	assert.ErrorIs(t, err, crypto.ErrAuth)
}

func TestCachingMaterialsManager_EvictionReleasesKeys(t *testing.T) {
	cachingMM, _, manager := newTestCache(t, CachingConfig{MaxCache: 2})
	ctx := context.Background()

	var held []*Material
	for _, purpose := range []string{"a", "b", "c"} {
		material, err := cachingMM.GetMaterial(ctx, crypto.CryptoContext{"purpose": purpose})
		require.NoError(t, err)
		held = append(held, material)
	}
	assert.Equal(t, 2, cachingMM.Len())

	// the evicted entry stays usable until its holder releases it
	assert.False(t, held[0].Key.Destroyed())
	held[0].Release()
	assert.True(t, held[0].Key.Destroyed())

	for _, material := range held[1:] {
		material.Release()
		assert.False(t, material.Key.Destroyed())
	}

	require.NoError(t, cachingMM.Close())
	assert.Zero(t, cachingMM.Len())
	for _, material := range held {
		assert.True(t, material.Key.Destroyed())
	}
	// only the master key remains
	assert.Equal(t, int64(1), manager.Live())
}

func TestCachingMaterialsManager_Concurrent(t *testing.T) {
	cachingMM, _, _ := newTestCache(t, CachingConfig{MaxCache: 4, MaxMessagesUsed: 7})
	cipher := NewCipher(cachingMM, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keyCtx := crypto.CryptoContext{"shard": string(rune('a' + i%6))}
			for j := 0; j < 20; j++ {
				ciphertext, encryptedKey, err := cipher.Encrypt(ctx, &EncryptInput{
					Plaintext:  []byte("payload"),
					KeyContext: keyCtx,
				})
				if !assert.NoError(t, err) {
					return
				}
				plaintext, err := cipher.Decrypt(ctx, &DecryptInput{
					Ciphertext:   ciphertext,
					EncryptedKey: encryptedKey,
					KeyContext:   keyCtx,
				})
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, []byte("payload"), plaintext)
			}
		}(i)
	}
	wg.Wait()
}
