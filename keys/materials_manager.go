package keys

import (
	"context"
	"sync/atomic"
	"time"

	"jazz-tools/jazz-crypto/crypto"
)

// Material is a data key together with its wrapped form.
type Material struct {
	Key          *KeyMaterial
	EncryptedKey []byte
	CreatedAt    time.Time
	UsageCount   int

	refs atomic.Int32
}

// NewMaterial returns material holding one reference to key.
func NewMaterial(key *KeyMaterial, encryptedKey []byte) *Material {
	m := &Material{Key: key, EncryptedKey: encryptedKey}
	m.refs.Store(1)
	return m
}

func (m *Material) retain() *Material {
	m.refs.Add(1)
	return m
}

// Release drops a reference and destroys the data key with the last one.
// Every Material returned by a MaterialsManager must be released.
func (m *Material) Release() {
	if m == nil {
		return
	}
	if m.refs.Add(-1) <= 0 && m.Key != nil {
		m.Key.Destroy()
	}
}

// MaterialsManager defines the interface for a materials manager
type MaterialsManager interface {
	GetMaterial(ctx context.Context, cryptoCtx crypto.CryptoContext) (*Material, error)
	DecryptMaterial(ctx context.Context, cryptoCtx crypto.CryptoContext, material *Material) (*Material, error)
}
