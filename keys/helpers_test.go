package keys

import (
	"bytes"
	"context"
	"encoding/hex"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"jazz-tools/jazz-crypto/crypto"
	"jazz-tools/jazz-crypto/securemem"
)

func newTestManager(t testing.TB) *Manager {
	t.Helper()
	return NewManager(securemem.NewAllocator(securemem.Config{Backing: securemem.BackingHeap}))
}

// rawKey returns a fresh key-sized slice filled with b. ImportKey wipes its
// input, so every call allocates.
func rawKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, crypto.KeySize)
}

func newTestLocalProvider(t testing.TB, m *Manager) *LocalProvider {
	t.Helper()
	master, err := m.ImportKey(crypto.ChaCha20Poly1305, rawKey(0x42))
	require.NoError(t, err)
	t.Cleanup(master.Destroy)

	provider, err := NewLocalProvider(m, master, LocalOptions{})
	require.NoError(t, err)
	return provider
}

// countingMaterialsManager counts calls to an underlying manager.
type countingMaterialsManager struct {
	MaterialsManager
	gets     atomic.Int32
	decrypts atomic.Int32
}

func (c *countingMaterialsManager) GetMaterial(ctx context.Context, cryptoCtx crypto.CryptoContext) (*Material, error) {
	c.gets.Add(1)
	return c.MaterialsManager.GetMaterial(ctx, cryptoCtx)
}

func (c *countingMaterialsManager) DecryptMaterial(ctx context.Context, cryptoCtx crypto.CryptoContext, material *Material) (*Material, error) {
	c.decrypts.Add(1)
	return c.MaterialsManager.DecryptMaterial(ctx, cryptoCtx, material)
}

func mustHex(t testing.TB, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}
