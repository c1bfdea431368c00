package keys

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"

	"jazz-tools/jazz-crypto/crypto"
	"jazz-tools/jazz-crypto/metrics"
)

// EncryptInput represents the data and contexts for encryption operations
type EncryptInput struct {
	// Plaintext is the data to be encrypted
	Plaintext []byte
	// KeyContext is the context used for key derivation
	KeyContext crypto.CryptoContext
	// PayloadContext is the context used for authentication
	PayloadContext crypto.CryptoContext
}

// DecryptInput represents the data and contexts for decryption operations
type DecryptInput struct {
	// Ciphertext is the encrypted data to be decrypted
	Ciphertext []byte
	// EncryptedKey is the encrypted key used for decryption
	EncryptedKey []byte
	// KeyContext is the context used for key derivation
	KeyContext crypto.CryptoContext
	// PayloadContext is the context used for authentication
	PayloadContext crypto.CryptoContext
}

// Cipher performs envelope encryption with data keys from a
// MaterialsManager. Ciphertexts are algorithm || nonce || sealed, with the
// payload context as associated data.
type Cipher struct {
	// MaterialsManager provides the cryptographic materials
	MaterialsManager MaterialsManager
	metricsHandler   client.MetricsHandler
}

// NewCipher creates a new Cipher with the specified materials manager
func NewCipher(mm MaterialsManager, metricsHandler client.MetricsHandler) *Cipher {
	if metricsHandler == nil {
		metricsHandler = client.MetricsNopHandler
	}
	return &Cipher{
		MaterialsManager: mm,
		metricsHandler:   metricsHandler,
	}
}

// Encrypt encrypts input.Plaintext and returns the ciphertext and the
// wrapped data key.
func (c *Cipher) Encrypt(ctx context.Context, input *EncryptInput) ([]byte, []byte, error) {
	start := time.Now()
	c.metricsHandler.Counter(metrics.EncryptRequests).Inc(1)
	defer func() { c.metricsHandler.Timer(metrics.EncryptLatency).Record(time.Since(start)) }()

	ciphertext, encryptedKey, err := c.encrypt(ctx, input)
	if err != nil {
		c.metricsHandler.Counter(metrics.EncryptErrors).Inc(1)
		return nil, nil, err
	}
	c.metricsHandler.Counter(metrics.EncryptSuccess).Inc(1)
	return ciphertext, encryptedKey, nil
}

func (c *Cipher) encrypt(ctx context.Context, input *EncryptInput) ([]byte, []byte, error) {
	material, err := c.MaterialsManager.GetMaterial(ctx, input.KeyContext)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get encryption material: %w", err)
	}
	defer material.Release()

	alg := material.Key.Algorithm()
	nonce, err := crypto.NewNonce(alg)
	if err != nil {
		return nil, nil, err
	}

	authData := crypto.ContextToBytes(input.PayloadContext)

	var sealed *crypto.Ciphertext
	err = material.Key.Use(func(key []byte) error {
		var err error
		sealed, err = crypto.Encrypt(alg, key, nonce, input.Plaintext, authData)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	out := make([]byte, 0, 1+len(nonce)+len(sealed.Sealed))
	out = append(out, byte(alg))
	out = append(out, nonce...)
	out = append(out, sealed.Sealed...)

	return out, material.EncryptedKey, nil
}

// Decrypt reverses Encrypt. A ciphertext that fails authentication returns
// crypto.ErrAuth.
func (c *Cipher) Decrypt(ctx context.Context, input *DecryptInput) ([]byte, error) {
	start := time.Now()
	c.metricsHandler.Counter(metrics.DecryptRequests).Inc(1)
	defer func() { c.metricsHandler.Timer(metrics.DecryptLatency).Record(time.Since(start)) }()

	plaintext, err := c.decrypt(ctx, input)
	if err != nil {
		c.metricsHandler.Counter(metrics.DecryptErrors).Inc(1)
		return nil, err
	}
	c.metricsHandler.Counter(metrics.DecryptSuccess).Inc(1)
	return plaintext, nil
}

func (c *Cipher) decrypt(ctx context.Context, input *DecryptInput) ([]byte, error) {
	if len(input.Ciphertext) < 1 {
		return nil, fmt.Errorf("%w: ciphertext too short", crypto.ErrInvalidParameter)
	}

	alg := crypto.Algorithm(input.Ciphertext[0])
	if !supportsEnvelope(alg) {
		return nil, fmt.Errorf("%w: %s", crypto.ErrUnsupportedAlgorithm, alg)
	}

	nonceSize := alg.NonceSize()
	body := input.Ciphertext[1:]
	if len(body) < nonceSize+crypto.TagSize {
		return nil, fmt.Errorf("%w: ciphertext too short", crypto.ErrInvalidParameter)
	}
	nonce, sealed := body[:nonceSize], body[nonceSize:]

	material, err := c.MaterialsManager.DecryptMaterial(ctx, input.KeyContext, &Material{
		EncryptedKey: input.EncryptedKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get decryption material: %w", err)
	}
	defer material.Release()

	authData := crypto.ContextToBytes(input.PayloadContext)

	var plaintext []byte
	err = material.Key.Use(func(key []byte) error {
		var err error
		plaintext, err = crypto.Decrypt(alg, key, nonce, sealed, authData)
		return err
	})
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}
