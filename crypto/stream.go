package crypto

import (
	"golang.org/x/crypto/salsa20"

	"jazz-tools/jazz-crypto/securemem"
)

// StreamNonceSize is the XSalsa20 nonce length.
const StreamNonceSize = 24

// XORKeyStream encrypts or decrypts data with the bare XSalsa20 keystream.
// The result carries no tag: a flipped ciphertext bit flips the same
// plaintext bit.
func XORKeyStream(key, nonce, data []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, invalidLength("key", len(key), KeySize)
	}
	if len(nonce) != StreamNonceSize {
		return nil, invalidLength("nonce", len(nonce), StreamNonceSize)
	}

	var k [KeySize]byte
	defer securemem.Wipe(k[:])
	copy(k[:], key)

	out := make([]byte, len(data))
	salsa20.XORKeyStream(out, data, nonce, &k)
	return out, nil
}
