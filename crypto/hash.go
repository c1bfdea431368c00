package crypto

import (
	"crypto/sha256"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
	"lukechampine.com/blake3"
)

// NewHash returns a streaming hash for alg.
func NewHash(alg Algorithm) (hash.Hash, error) {
	if _, err := alg.require(KindHash); err != nil {
		return nil, err
	}

	switch alg {
	case BLAKE3:
		return blake3.New(DigestSize, nil), nil
	case BLAKE2b256:
		h, err := blake2b.New256(nil)
		if err != nil {
			return nil, fmt.Errorf("blake2b: %w", err)
		}
		return h, nil
	case SHA256:
		return sha256.New(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
}

// Hash returns the 32-byte digest of data.
func Hash(alg Algorithm, data []byte) ([]byte, error) {
	if _, err := alg.require(KindHash); err != nil {
		return nil, err
	}

	switch alg {
	case BLAKE3:
		sum := blake3.Sum256(data)
		return sum[:], nil
	case BLAKE2b256:
		sum := blake2b.Sum256(data)
		return sum[:], nil
	case SHA256:
		sum := sha256.Sum256(data)
		return sum[:], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
}

// Sum returns the BLAKE3 digest of data.
func Sum(data []byte) [DigestSize]byte {
	return blake3.Sum256(data)
}

// HashWithContext returns BLAKE3(context || data).
func HashWithContext(context, data []byte) [DigestSize]byte {
	h := blake3.New(DigestSize, nil)
	h.Write(context)
	h.Write(data)

	var out [DigestSize]byte
	h.Sum(out[:0])
	return out
}

// Expand reads size bytes of BLAKE3 extendable output over
// context || material. For size 32 it equals HashWithContext.
func Expand(context, material []byte, size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: output length %d", ErrInvalidParameter, size)
	}

	out := make([]byte, size)
	if err := ExpandTo(out, context, material); err != nil {
		return nil, err
	}
	return out, nil
}

// ExpandTo is Expand writing into dst, which may live in secure memory.
func ExpandTo(dst, context, material []byte) error {
	if len(dst) == 0 {
		return fmt.Errorf("%w: empty output buffer", ErrInvalidParameter)
	}

	h := blake3.New(DigestSize, nil)
	h.Write(context)
	h.Write(material)

	if _, err := h.XOF().Read(dst); err != nil {
		return fmt.Errorf("blake3 xof: %w", err)
	}
	return nil
}
