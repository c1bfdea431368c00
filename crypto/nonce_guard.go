package crypto

import (
	"encoding/binary"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"lukechampine.com/blake3"
)

// DefaultNonceGuardSize is the number of (key, nonce) pairs remembered when
// no size is configured.
const DefaultNonceGuardSize = 4096

// NonceGuard remembers recently used (key, nonce) pairs and rejects a
// repeat. It is bounded: a pair evicted from the window is forgotten.
type NonceGuard struct {
	seen *lru.Cache
	salt [KeySize]byte
}

// NewNonceGuard creates a guard remembering up to size pairs.
func NewNonceGuard(size int) (*NonceGuard, error) {
	if size <= 0 {
		size = DefaultNonceGuardSize
	}

	seen, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("nonce guard: %w", err)
	}

	g := &NonceGuard{seen: seen}
	Fill(g.salt[:])
	return g, nil
}

// Check records the pair and returns ErrNonceReuse if it was already seen.
// It does not validate the key or nonce.
func (g *NonceGuard) Check(alg Algorithm, key, nonce []byte) error {
	fp := g.fingerprint(alg, key, nonce)
	if seen, _ := g.seen.ContainsOrAdd(fp, struct{}{}); seen {
		return fmt.Errorf("%w: %s", ErrNonceReuse, alg)
	}
	return nil
}

// Encrypt validates the parameters, checks the nonce and encrypts. A call
// rejected for its parameters records nothing.
func (g *NonceGuard) Encrypt(alg Algorithm, key, nonce, plaintext, aad []byte) (*Ciphertext, error) {
	aead, done, err := newAEAD(alg, key, nonce, aad)
	if err != nil {
		return nil, err
	}
	defer done()

	if err := g.Check(alg, key, nonce); err != nil {
		return nil, err
	}
	return seal(aead, alg, nonce, plaintext, aad), nil
}

// Len returns the number of remembered pairs.
func (g *NonceGuard) Len() int {
	return g.seen.Len()
}

// Purge forgets every pair.
func (g *NonceGuard) Purge() {
	g.seen.Purge()
}

// fingerprint is a salted BLAKE3 MAC so the cache never holds key bytes.
func (g *NonceGuard) fingerprint(alg Algorithm, key, nonce []byte) [DigestSize]byte {
	h := blake3.New(DigestSize, g.salt[:])

	var hdr [12]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(alg))
	binary.BigEndian.PutUint32(hdr[4:8], uint32(len(key)))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(nonce)))
	h.Write(hdr[:])
	h.Write(key)
	h.Write(nonce)

	var out [DigestSize]byte
	h.Sum(out[:0])
	return out
}
