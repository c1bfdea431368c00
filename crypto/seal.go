package crypto

import (
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/secretbox"

	"jazz-tools/jazz-crypto/securemem"
)

// SealNonceSize is the nonce length for Seal and SealAnonymous.
const SealNonceSize = 24

// Seal encrypts msg from the holder of secret to the holder of the secret
// behind peerPublic. The X25519 shared secret keys XSalsa20-Poly1305.
func Seal(secret, peerPublic, nonce, msg []byte) ([]byte, error) {
	var out []byte
	err := withSharedKey(secret, peerPublic, nonce, func(key *[KeySize]byte, n *[SealNonceSize]byte) error {
		out = secretbox.Seal(make([]byte, 0, len(msg)+secretbox.Overhead), msg, n, key)
		return nil
	})
	return out, err
}

// Open reverses Seal. The roles of the keys are swapped: secret is the
// recipient's and peerPublic the sender's.
func Open(secret, peerPublic, nonce, sealed []byte) ([]byte, error) {
	if len(sealed) < secretbox.Overhead {
		return nil, fmt.Errorf("%w: sealed message shorter than tag", ErrInvalidParameter)
	}

	var out []byte
	err := withSharedKey(secret, peerPublic, nonce, func(key *[KeySize]byte, n *[SealNonceSize]byte) error {
		dst := make([]byte, 0, len(sealed)-secretbox.Overhead)
		msg, ok := secretbox.Open(dst, sealed, n, key)
		if !ok {
			securemem.Wipe(dst[:cap(dst)])
			return ErrAuth
		}
		out = msg
		return nil
	})
	return out, err
}

// SealAnonymous seals msg to peerPublic under a fresh ephemeral key. The
// ephemeral public key prefixes the output.
func SealAnonymous(peerPublic, nonce, msg []byte) ([]byte, error) {
	ephemeral, err := Random(KeySize)
	if err != nil {
		return nil, err
	}
	defer securemem.Wipe(ephemeral)

	ephemeralPublic, err := PublicKey(X25519, ephemeral)
	if err != nil {
		return nil, err
	}

	sealed, err := Seal(ephemeral, peerPublic, nonce, msg)
	if err != nil {
		return nil, err
	}
	return append(ephemeralPublic, sealed...), nil
}

// OpenAnonymous reverses SealAnonymous.
func OpenAnonymous(secret, nonce, sealed []byte) ([]byte, error) {
	if len(sealed) < KeySize+secretbox.Overhead {
		return nil, fmt.Errorf("%w: anonymous sealed message too short", ErrInvalidParameter)
	}
	return Open(secret, sealed[:KeySize], nonce, sealed[KeySize:])
}

func withSharedKey(secret, peerPublic, nonce []byte, fn func(*[KeySize]byte, *[SealNonceSize]byte) error) error {
	if len(secret) != KeySize {
		return invalidLength("secret key", len(secret), KeySize)
	}
	if len(peerPublic) != KeySize {
		return invalidLength("public key", len(peerPublic), KeySize)
	}
	if len(nonce) != SealNonceSize {
		return invalidLength("nonce", len(nonce), SealNonceSize)
	}

	shared, err := curve25519.X25519(secret, peerPublic)
	if err != nil {
		// low-order peer point
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	defer securemem.Wipe(shared)

	var key [KeySize]byte
	defer securemem.Wipe(key[:])
	copy(key[:], shared)

	var n [SealNonceSize]byte
	copy(n[:], nonce)

	return fn(&key, &n)
}
