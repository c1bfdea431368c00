package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/nacl/secretbox"

	"jazz-tools/jazz-crypto/securemem"
)

// Ciphertext is the output of Encrypt. Sealed holds the encrypted bytes
// together with the authentication tag.
type Ciphertext struct {
	Algorithm Algorithm
	Nonce     []byte
	Sealed    []byte
}

// Tag returns the authentication tag inside Sealed.
func (c *Ciphertext) Tag() []byte {
	if len(c.Sealed) < TagSize {
		return nil
	}
	if info, _ := c.Algorithm.info(); info.tagFirst {
		return c.Sealed[:TagSize]
	}
	return c.Sealed[len(c.Sealed)-TagSize:]
}

// Body returns the encrypted bytes without the tag.
func (c *Ciphertext) Body() []byte {
	if len(c.Sealed) < TagSize {
		return nil
	}
	if info, _ := c.Algorithm.info(); info.tagFirst {
		return c.Sealed[TagSize:]
	}
	return c.Sealed[:len(c.Sealed)-TagSize]
}

// NewNonce returns a random nonce of the size alg requires.
func NewNonce(alg Algorithm) ([]byte, error) {
	info, ok := alg.info()
	if !ok || info.nonceSize == 0 {
		return nil, fmt.Errorf("%w: %s takes no nonce", ErrUnsupportedAlgorithm, alg)
	}
	return Random(info.nonceSize)
}

// Encrypt encrypts and authenticates plaintext and aad under key. The nonce
// must be unique for the key; see NonceGuard.
func Encrypt(alg Algorithm, key, nonce, plaintext, aad []byte) (*Ciphertext, error) {
	aead, done, err := newAEAD(alg, key, nonce, aad)
	if err != nil {
		return nil, err
	}
	defer done()

	return seal(aead, alg, nonce, plaintext, aad), nil
}

func seal(aead cipher.AEAD, alg Algorithm, nonce, plaintext, aad []byte) *Ciphertext {
	return &Ciphertext{
		Algorithm: alg,
		Nonce:     append([]byte(nil), nonce...),
		Sealed:    aead.Seal(make([]byte, 0, len(plaintext)+TagSize), nonce, plaintext, aad),
	}
}

// Decrypt verifies and decrypts sealed. On a tag mismatch it returns
// ErrAuth and no plaintext.
func Decrypt(alg Algorithm, key, nonce, sealed, aad []byte) ([]byte, error) {
	aead, done, err := newAEAD(alg, key, nonce, aad)
	if err != nil {
		return nil, err
	}
	defer done()

	if len(sealed) < TagSize {
		return nil, fmt.Errorf("%w: ciphertext shorter than tag", ErrInvalidParameter)
	}

	out := make([]byte, 0, len(sealed)-TagSize)
	plaintext, err := aead.Open(out, nonce, sealed, aad)
	if err != nil {
		securemem.Wipe(out[:cap(out)])
		return nil, ErrAuth
	}
	return plaintext, nil
}

// DecryptCiphertext decrypts the output of Encrypt.
func DecryptCiphertext(key []byte, c *Ciphertext, aad []byte) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil ciphertext", ErrInvalidParameter)
	}
	return Decrypt(c.Algorithm, key, c.Nonce, c.Sealed, aad)
}

// newAEAD validates the parameters and builds the cipher. done wipes any
// key copy the cipher holds.
func newAEAD(alg Algorithm, key, nonce, aad []byte) (cipher.AEAD, func(), error) {
	info, err := alg.require(KindAEAD)
	if err != nil {
		return nil, nil, err
	}
	if len(key) != info.keySize {
		return nil, nil, invalidLength("key", len(key), info.keySize)
	}
	if len(nonce) != info.nonceSize {
		return nil, nil, invalidLength("nonce", len(nonce), info.nonceSize)
	}

	noop := func() {}
	switch alg {
	case ChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		return aead, noop, wrapCipherErr(err)
	case XChaCha20Poly1305:
		aead, err := chacha20poly1305.NewX(key)
		return aead, noop, wrapCipherErr(err)
	case AES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, nil, wrapCipherErr(err)
		}
		aead, err := cipher.NewGCM(block)
		return aead, noop, wrapCipherErr(err)
	case XSalsa20Poly1305:
		if len(aad) > 0 {
			return nil, nil, fmt.Errorf("%w: %s does not authenticate associated data", ErrInvalidParameter, alg)
		}
		box := &secretboxAEAD{}
		copy(box.key[:], key)
		return box, box.wipe, nil
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
}

func wrapCipherErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
}

var errSecretboxOpen = errors.New("secretbox: message authentication failed")

// secretboxAEAD adapts NaCl secretbox to cipher.AEAD. Associated data is
// rejected before the adapter is built.
type secretboxAEAD struct {
	key [KeySize]byte
}

func (s *secretboxAEAD) NonceSize() int { return 24 }

func (s *secretboxAEAD) Overhead() int { return secretbox.Overhead }

func (s *secretboxAEAD) Seal(dst, nonce, plaintext, _ []byte) []byte {
	var n [24]byte
	copy(n[:], nonce)
	return secretbox.Seal(dst, plaintext, &n, &s.key)
}

func (s *secretboxAEAD) Open(dst, nonce, ciphertext, _ []byte) ([]byte, error) {
	var n [24]byte
	copy(n[:], nonce)
	out, ok := secretbox.Open(dst, ciphertext, &n, &s.key)
	if !ok {
		return nil, errSecretboxOpen
	}
	return out, nil
}

func (s *secretboxAEAD) wipe() {
	securemem.Wipe(s.key[:])
}
