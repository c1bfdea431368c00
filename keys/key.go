package keys

import (
	"fmt"
	"sync"

	"jazz-tools/jazz-crypto/crypto"
	"jazz-tools/jazz-crypto/securemem"
)

// ErrDestroyed is returned when a destroyed key is used.
var ErrDestroyed = fmt.Errorf("%w: key destroyed", crypto.ErrInvalidParameter)

// KeyMaterial is secret key bytes held in secure memory and tagged with the
// algorithm they belong to. The bytes are reachable only inside Use or
// through an explicit Export.
type KeyMaterial struct {
	mu        sync.RWMutex
	alg       crypto.Algorithm
	buf       *securemem.Buffer
	onDestroy func()
}

func newKeyMaterial(alg crypto.Algorithm, buf *securemem.Buffer, onDestroy func()) *KeyMaterial {
	return &KeyMaterial{alg: alg, buf: buf, onDestroy: onDestroy}
}

// Algorithm returns the algorithm the key belongs to.
func (k *KeyMaterial) Algorithm() crypto.Algorithm {
	return k.alg
}

// Len returns the key length, 0 once destroyed.
func (k *KeyMaterial) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.buf.Len()
}

// Destroyed reports whether Destroy has run or the key's memory was purged.
func (k *KeyMaterial) Destroyed() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return !k.buf.Alive()
}

// Use runs fn with the key bytes. fn must not retain the slice.
func (k *KeyMaterial) Use(fn func(secret []byte) error) error {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.buf.Released() {
		return ErrDestroyed
	}
	if k.buf.Purged() {
		return fmt.Errorf("%w: %w", ErrDestroyed, securemem.ErrPurged)
	}
	return fn(k.buf.Bytes())
}

// Export returns a copy of the key bytes on the ordinary heap. The caller
// owns the copy and should wipe it with securemem.Wipe.
func (k *KeyMaterial) Export() ([]byte, error) {
	var out []byte
	err := k.Use(func(secret []byte) error {
		out = append([]byte(nil), secret...)
		return nil
	})
	return out, err
}

// Destroy zeroes and frees the key. It is safe to call more than once.
func (k *KeyMaterial) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.buf.Released() {
		return
	}
	k.buf.Release()
	if k.onDestroy != nil {
		k.onDestroy()
	}
}

func (k *KeyMaterial) String() string {
	return fmt.Sprintf("KeyMaterial(%s)", k.alg)
}
