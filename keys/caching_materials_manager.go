package keys

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"jazz-tools/jazz-crypto/crypto"
	"jazz-tools/jazz-crypto/metrics"
)

const (
	DefaultMaxCache        = 100
	DefaultMaxAge          = 5 * time.Minute
	DefaultMaxMessagesUsed = 1000
)

// CachingConfig holds configuration for caching materials manager
type CachingConfig struct {
	MaxCache        int
	MaxAge          time.Duration
	MaxMessagesUsed int
}

// CachingMaterialsManager reuses materials from an underlying manager
// until they reach a maximum age or usage count. The cache holds one
// reference to each entry; a data key is destroyed once it has been
// evicted and every caller has released it.
type CachingMaterialsManager struct {
	cache           *lru.Cache
	mutex           sync.RWMutex
	maxAge          time.Duration
	maxMessagesUsed int
	underlyingMM    MaterialsManager
	metricsHandler  client.MetricsHandler
	logger          *zap.Logger
}

// NewCachingMaterialsManager creates a new caching materials manager. Zero
// config fields select the defaults.
func NewCachingMaterialsManager(
	underlyingMM MaterialsManager,
	config CachingConfig,
	metricsHandler client.MetricsHandler,
	logger *zap.Logger,
) (*CachingMaterialsManager, error) {
	if config.MaxCache <= 0 {
		config.MaxCache = DefaultMaxCache
	}
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultMaxAge
	}
	if config.MaxMessagesUsed <= 0 {
		config.MaxMessagesUsed = DefaultMaxMessagesUsed
	}
	if metricsHandler == nil {
		metricsHandler = client.MetricsNopHandler
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &CachingMaterialsManager{
		maxAge:          config.MaxAge,
		maxMessagesUsed: config.MaxMessagesUsed,
		underlyingMM:    underlyingMM,
		metricsHandler:  metricsHandler,
		logger:          logger,
	}

	cache, err := lru.NewWithEvict(config.MaxCache, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	c.cache = cache

	return c, nil
}

// onEvict runs under c.mutex, from Add, Remove or Purge.
func (c *CachingMaterialsManager) onEvict(_ interface{}, value interface{}) {
	c.metricsHandler.Counter(metrics.MaterialsCacheEvictions).Inc(1)
	value.(*Material).Release()
}

// GetMaterial retrieves cryptographic material, either from cache or by creating new ones
func (c *CachingMaterialsManager) GetMaterial(ctx context.Context, cryptoCtx crypto.CryptoContext) (*Material, error) {
	cacheKey := c.createCacheKey(cryptoCtx)

	if material, ok := c.lookup(cacheKey, true); ok {
		return material, nil
	}

	start := time.Now()
	c.metricsHandler.Counter(metrics.MaterialsManagerGetRequests).Inc(1)
	material, err := c.underlyingMM.GetMaterial(ctx, cryptoCtx)
	c.metricsHandler.Timer(metrics.MaterialsManagerGetLatency).Record(time.Since(start))
	if err != nil {
		c.metricsHandler.Counter(metrics.MaterialsManagerGetErrors).Inc(1)
		return nil, err
	}
	c.metricsHandler.Counter(metrics.MaterialsManagerGetSuccess).Inc(1)

	return c.store(cacheKey, material), nil
}

// DecryptMaterial returns the unwrapped data key for material.EncryptedKey.
// Decryption entries are not limited by usage count.
func (c *CachingMaterialsManager) DecryptMaterial(ctx context.Context, cryptoCtx crypto.CryptoContext, material *Material) (*Material, error) {
	cacheKey := c.createDecryptionCacheKey(cryptoCtx, material.EncryptedKey)

	if cached, ok := c.lookup(cacheKey, false); ok {
		return cached, nil
	}

	start := time.Now()
	c.metricsHandler.Counter(metrics.MaterialsManagerDecryptRequests).Inc(1)
	decryptedMaterial, err := c.underlyingMM.DecryptMaterial(ctx, cryptoCtx, material)
	c.metricsHandler.Timer(metrics.MaterialsManagerDecryptLatency).Record(time.Since(start))
	if err != nil {
		c.metricsHandler.Counter(metrics.MaterialsManagerDecryptErrors).Inc(1)
		return nil, err
	}
	c.metricsHandler.Counter(metrics.MaterialsManagerDecryptSuccess).Inc(1)

	return c.store(cacheKey, decryptedMaterial), nil
}

// lookup returns a retained cached entry, dropping it if it is no longer
// valid.
func (c *CachingMaterialsManager) lookup(cacheKey string, countUsage bool) (*Material, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	value, found := c.cache.Get(cacheKey)
	if !found {
		c.metricsHandler.Counter(metrics.MaterialsCacheMisses).Inc(1)
		return nil, false
	}

	material := value.(*Material)
	if !c.isMaterialValid(material, countUsage) {
		c.logger.Debug("cached material expired",
			zap.Int("usage_count", material.UsageCount),
			zap.Duration("age", time.Since(material.CreatedAt)))
		c.cache.Remove(cacheKey)
		c.metricsHandler.Counter(metrics.MaterialsCacheMisses).Inc(1)
		return nil, false
	}

	material.UsageCount++
	c.metricsHandler.Counter(metrics.MaterialsCacheHits).Inc(1)
	return material.retain(), true
}

// store caches material and returns it with a reference for the caller.
func (c *CachingMaterialsManager) store(cacheKey string, material *Material) *Material {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	// Add does not evict a replaced value
	if c.cache.Contains(cacheKey) {
		c.cache.Remove(cacheKey)
	}

	material.CreatedAt = time.Now()
	material.UsageCount = 1
	// one reference for the cache, one for the caller
	c.cache.Add(cacheKey, material.retain())
	return material
}

// isMaterialValid checks if the material is still valid based on age and usage count
func (c *CachingMaterialsManager) isMaterialValid(material *Material, countUsage bool) bool {
	if time.Since(material.CreatedAt) > c.maxAge {
		return false
	}
	if countUsage && material.UsageCount >= c.maxMessagesUsed {
		return false
	}
	if material.Key != nil && material.Key.Destroyed() {
		return false
	}
	return true
}

// Len returns the number of cached entries.
func (c *CachingMaterialsManager) Len() int {
	return c.cache.Len()
}

// Purge evicts every entry.
func (c *CachingMaterialsManager) Purge() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cache.Purge()
}

// Close purges the cache.
func (c *CachingMaterialsManager) Close() error {
	c.Purge()
	return nil
}

// createCacheKey hashes the canonical context encoding.
func (c *CachingMaterialsManager) createCacheKey(cryptoCtx crypto.CryptoContext) string {
	sum := crypto.Sum(crypto.ContextToBytes(cryptoCtx))
	return hex.EncodeToString(sum[:])
}

// createDecryptionCacheKey binds the context key to the wrapped data key.
func (c *CachingMaterialsManager) createDecryptionCacheKey(cryptoCtx crypto.CryptoContext, encryptedKey []byte) string {
	sum := crypto.HashWithContext([]byte("decrypt:"+c.createCacheKey(cryptoCtx)), encryptedKey)
	return hex.EncodeToString(sum[:])
}
