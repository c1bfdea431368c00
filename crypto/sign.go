package crypto

import (
	"crypto/ed25519"
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"golang.org/x/crypto/curve25519"

	"jazz-tools/jazz-crypto/securemem"
)

// Sign signs data with the 32-byte seed secret. ML-DSA-65 signatures are
// deterministic.
func Sign(alg Algorithm, secret, data []byte) ([]byte, error) {
	info, err := alg.require(KindSignature)
	if err != nil {
		return nil, err
	}
	if len(secret) != info.keySize {
		return nil, invalidLength("secret key", len(secret), info.keySize)
	}

	switch alg {
	case Ed25519:
		priv := ed25519.NewKeyFromSeed(secret)
		defer securemem.Wipe(priv)
		return ed25519.Sign(priv, data), nil
	case MLDSA65:
		var seed [mldsa65.SeedSize]byte
		copy(seed[:], secret)
		_, priv := mldsa65.NewKeyFromSeed(&seed)
		securemem.Wipe(seed[:])

		sig := make([]byte, mldsa65.SignatureSize)
		if err := mldsa65.SignTo(priv, data, nil, false, sig); err != nil {
			return nil, fmt.Errorf("ml-dsa-65 sign: %w", err)
		}
		return sig, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
}

// Verify reports whether sig is a valid signature of data under public.
// Malformed keys or signature lengths return ErrInvalidParameter; a
// well-formed signature that does not verify returns false and no error.
func Verify(alg Algorithm, public, data, sig []byte) (bool, error) {
	info, err := alg.require(KindSignature)
	if err != nil {
		return false, err
	}
	if len(public) != info.publicSize {
		return false, invalidLength("public key", len(public), info.publicSize)
	}
	if len(sig) != info.outputSize {
		return false, invalidLength("signature", len(sig), info.outputSize)
	}

	switch alg {
	case Ed25519:
		return ed25519.Verify(ed25519.PublicKey(public), data, sig), nil
	case MLDSA65:
		pk := &mldsa65.PublicKey{}
		if err := pk.UnmarshalBinary(public); err != nil {
			return false, fmt.Errorf("%w: ml-dsa-65 public key: %v", ErrInvalidParameter, err)
		}
		return mldsa65.Verify(pk, data, nil, sig), nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
}

// PublicKey derives the public half of a signature or key agreement secret.
func PublicKey(alg Algorithm, secret []byte) ([]byte, error) {
	info, ok := alg.info()
	if !ok || (info.kind != KindSignature && info.kind != KindKeyAgreement) {
		return nil, fmt.Errorf("%w: %s has no public key", ErrUnsupportedAlgorithm, alg)
	}
	if len(secret) != info.keySize {
		return nil, invalidLength("secret key", len(secret), info.keySize)
	}

	switch alg {
	case Ed25519:
		priv := ed25519.NewKeyFromSeed(secret)
		defer securemem.Wipe(priv)
		return append([]byte(nil), priv.Public().(ed25519.PublicKey)...), nil
	case MLDSA65:
		var seed [mldsa65.SeedSize]byte
		copy(seed[:], secret)
		pk, _ := mldsa65.NewKeyFromSeed(&seed)
		securemem.Wipe(seed[:])

		out, err := pk.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("ml-dsa-65 public key: %w", err)
		}
		return out, nil
	case X25519:
		pub, err := curve25519.X25519(secret, curve25519.Basepoint)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
		}
		return pub, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
}
