package keys

import (
	"context"
	"fmt"

	"jazz-tools/jazz-crypto/crypto"
	"jazz-tools/jazz-crypto/securemem"
)

// LocalOptions contains configuration options for LocalProvider
type LocalOptions struct {
	// DataKeyAlgorithm is the AEAD the data keys are used with (defaults
	// to crypto.DefaultAEAD).
	DataKeyAlgorithm crypto.Algorithm
}

// LocalProvider implements MaterialsManager by wrapping data keys with a
// master key held in secure memory.
type LocalProvider struct {
	manager *Manager
	master  *KeyMaterial
	dataAlg crypto.Algorithm
}

// NewLocalProvider creates a provider. master must be an AEAD key that
// authenticates associated data; the provider does not take ownership.
func NewLocalProvider(manager *Manager, master *KeyMaterial, options LocalOptions) (*LocalProvider, error) {
	if master == nil || !supportsEnvelope(master.Algorithm()) {
		return nil, fmt.Errorf("%w: master key must be an AEAD with associated data", crypto.ErrInvalidParameter)
	}

	dataAlg := options.DataKeyAlgorithm
	if dataAlg == 0 {
		dataAlg = crypto.DefaultAEAD
	}
	if !supportsEnvelope(dataAlg) {
		return nil, fmt.Errorf("%w: data key algorithm %s", crypto.ErrUnsupportedAlgorithm, dataAlg)
	}

	return &LocalProvider{
		manager: manager,
		master:  master,
		dataAlg: dataAlg,
	}, nil
}

func supportsEnvelope(alg crypto.Algorithm) bool {
	return alg.Kind() == crypto.KindAEAD && alg != crypto.XSalsa20Poly1305
}

// GetMaterial generates a data key and wraps it under the master key with
// the context as associated data. The wrapped form is
// algorithm || nonce || sealed.
func (l *LocalProvider) GetMaterial(ctx context.Context, cryptoCtx crypto.CryptoContext) (*Material, error) {
	dataKey, err := l.manager.GenerateKey(l.dataAlg)
	if err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}

	masterAlg := l.master.Algorithm()
	nonce, err := crypto.NewNonce(masterAlg)
	if err != nil {
		dataKey.Destroy()
		return nil, err
	}

	var wrapped *crypto.Ciphertext
	err = l.master.Use(func(master []byte) error {
		return dataKey.Use(func(plain []byte) error {
			wrapped, err = crypto.Encrypt(masterAlg, master, nonce, plain, crypto.ContextToBytes(cryptoCtx))
			return err
		})
	})
	if err != nil {
		dataKey.Destroy()
		return nil, fmt.Errorf("failed to wrap data key: %w", err)
	}

	encrypted := make([]byte, 0, 1+len(nonce)+len(wrapped.Sealed))
	encrypted = append(encrypted, byte(masterAlg))
	encrypted = append(encrypted, nonce...)
	encrypted = append(encrypted, wrapped.Sealed...)

	return NewMaterial(dataKey, encrypted), nil
}

// DecryptMaterial unwraps the data key in material.EncryptedKey.
func (l *LocalProvider) DecryptMaterial(ctx context.Context, cryptoCtx crypto.CryptoContext, material *Material) (*Material, error) {
	if material == nil || len(material.EncryptedKey) < 1 {
		return nil, fmt.Errorf("%w: empty encrypted key", crypto.ErrInvalidParameter)
	}

	alg := crypto.Algorithm(material.EncryptedKey[0])
	if alg != l.master.Algorithm() {
		return nil, fmt.Errorf("%w: data key wrapped with %s, master is %s",
			crypto.ErrInvalidParameter, alg, l.master.Algorithm())
	}

	rest := material.EncryptedKey[1:]
	nonceSize := alg.NonceSize()
	if len(rest) < nonceSize {
		return nil, fmt.Errorf("%w: encrypted key too short", crypto.ErrInvalidParameter)
	}
	nonce, sealed := rest[:nonceSize], rest[nonceSize:]

	var plain []byte
	err := l.master.Use(func(master []byte) error {
		var err error
		plain, err = crypto.Decrypt(alg, master, nonce, sealed, crypto.ContextToBytes(cryptoCtx))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key: %w", err)
	}
	defer securemem.Wipe(plain)

	key, err := l.manager.ImportKey(l.dataAlg, plain)
	if err != nil {
		return nil, err
	}
	return NewMaterial(key, material.EncryptedKey), nil
}
