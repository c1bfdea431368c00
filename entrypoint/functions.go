package entrypoint

import (
	"fmt"

	"jazz-tools/jazz-crypto/crypto"
	"jazz-tools/jazz-crypto/metrics"
	"jazz-tools/jazz-crypto/securemem"
)

// GenerateKey writes a fresh random key for alg into out. Identifier 0
// selects the default AEAD.
func GenerateKey(alg uint32, out []byte) Status {
	return call(metrics.OpGenerateKey, func(rt *runtime) error {
		a := crypto.Algorithm(alg)
		if alg == 0 {
			a = rt.defaultAEAD
		}
		if !a.HasSecretKey() {
			return fmt.Errorf("%w: %s takes no secret key", crypto.ErrUnsupportedAlgorithm, a)
		}
		if err := checkOut(out, a.KeySize()); err != nil {
			return err
		}

		key, err := rt.manager.GenerateKey(a)
		if err != nil {
			return err
		}
		defer key.Destroy()

		return key.Use(func(secret []byte) error {
			copy(out, secret)
			return nil
		})
	})
}

// DeriveKey writes the key for alg derived from master and context into
// out. Derivation is deterministic. Identifier 0 selects the default AEAD.
func DeriveKey(alg uint32, master, context, out []byte) Status {
	return call(metrics.OpDeriveKey, func(rt *runtime) error {
		a := crypto.Algorithm(alg)
		if alg == 0 {
			a = rt.defaultAEAD
		}
		if !a.HasSecretKey() {
			return fmt.Errorf("%w: %s takes no secret key", crypto.ErrUnsupportedAlgorithm, a)
		}
		if len(master) != crypto.KeySize {
			return fmt.Errorf("%w: master key length %d, want %d", crypto.ErrInvalidParameter, len(master), crypto.KeySize)
		}
		if err := checkOut(out, a.KeySize()); err != nil {
			return err
		}
		return crypto.ExpandTo(out, context, master)
	})
}

// PublicKey writes the public half of a signature or sealing secret into
// out. Identifier 0 selects the default signature algorithm.
func PublicKey(alg uint32, secret, out []byte) Status {
	return call(metrics.OpPublicKey, func(rt *runtime) error {
		a := crypto.Algorithm(alg)
		if alg == 0 {
			a = rt.defaultSignature
		}
		if k := a.Kind(); k != crypto.KindSignature && k != crypto.KindKeyAgreement {
			return fmt.Errorf("%w: %s has no public key", crypto.ErrUnsupportedAlgorithm, a)
		}
		if err := checkOut(out, a.PublicKeySize()); err != nil {
			return err
		}

		pub, err := crypto.PublicKey(a, secret)
		if err != nil {
			return err
		}
		return deliver(out, pub)
	})
}

// Encrypt writes the sealed form of plaintext (ciphertext and tag) into out,
// which must be len(plaintext) plus the algorithm's tag size long.
func Encrypt(alg uint32, key, nonce, plaintext, aad, out []byte) Status {
	return call(metrics.OpEncrypt, func(rt *runtime) error {
		a, err := rt.resolve(alg, crypto.KindAEAD)
		if err != nil {
			return err
		}
		if err := checkOut(out, len(plaintext)+a.Overhead()); err != nil {
			return err
		}

		var c *crypto.Ciphertext
		if rt.guard != nil {
			c, err = rt.guard.Encrypt(a, key, nonce, plaintext, aad)
		} else {
			c, err = crypto.Encrypt(a, key, nonce, plaintext, aad)
		}
		if err != nil {
			return err
		}
		copy(out, c.Sealed)
		return nil
	})
}

// Decrypt authenticates sealed and writes the plaintext into out, which
// must be len(sealed) minus the tag size long. On StatusAuth out is zeroed.
func Decrypt(alg uint32, key, nonce, sealed, aad, out []byte) Status {
	return call(metrics.OpDecrypt, func(rt *runtime) error {
		a, err := rt.resolve(alg, crypto.KindAEAD)
		if err != nil {
			return err
		}
		if len(sealed) < a.Overhead() {
			return fmt.Errorf("%w: ciphertext shorter than tag", crypto.ErrInvalidParameter)
		}
		if err := checkOut(out, len(sealed)-a.Overhead()); err != nil {
			return err
		}

		plaintext, err := crypto.Decrypt(a, key, nonce, sealed, aad)
		if err != nil {
			securemem.Wipe(out)
			return err
		}
		return deliver(out, plaintext)
	})
}

// Hash writes the digest of data into out. Identifier 0 selects the
// default hash.
func Hash(alg uint32, data, out []byte) Status {
	return call(metrics.OpHash, func(rt *runtime) error {
		a, err := rt.resolve(alg, crypto.KindHash)
		if err != nil {
			return err
		}
		if err := checkOut(out, a.Overhead()); err != nil {
			return err
		}

		digest, err := crypto.Hash(a, data)
		if err != nil {
			return err
		}
		copy(out, digest)
		return nil
	})
}

// Sign writes the signature of data into out. Identifier 0 selects the
// default signature algorithm.
func Sign(alg uint32, secret, data, out []byte) Status {
	return call(metrics.OpSign, func(rt *runtime) error {
		a, err := rt.resolve(alg, crypto.KindSignature)
		if err != nil {
			return err
		}
		if err := checkOut(out, a.Overhead()); err != nil {
			return err
		}

		sig, err := crypto.Sign(a, secret, data)
		if err != nil {
			return err
		}
		copy(out, sig)
		return nil
	})
}

// Verify reports whether sig is a valid signature of data under public. A
// wrong signature is (false, StatusOK); malformed inputs are
// StatusInvalidParameter.
func Verify(alg uint32, public, data, sig []byte) (bool, Status) {
	var ok bool
	status := call(metrics.OpVerify, func(rt *runtime) error {
		a, err := rt.resolve(alg, crypto.KindSignature)
		if err != nil {
			return err
		}
		ok, err = crypto.Verify(a, public, data, sig)
		return err
	})
	return ok && status == StatusOK, status
}

// Seal encrypts msg from the holder of secret to peerPublic. out must be
// len(msg) plus the tag size long.
func Seal(alg uint32, secret, peerPublic, nonce, msg, out []byte) Status {
	return call(metrics.OpSeal, func(rt *runtime) error {
		a, err := rt.resolve(alg, crypto.KindKeyAgreement)
		if err != nil {
			return err
		}
		if err := checkOut(out, len(msg)+a.Overhead()); err != nil {
			return err
		}

		sealed, err := crypto.Seal(secret, peerPublic, nonce, msg)
		if err != nil {
			return err
		}
		copy(out, sealed)
		return nil
	})
}

// Open reverses Seal. On StatusAuth out is zeroed.
func Open(alg uint32, secret, peerPublic, nonce, sealed, out []byte) Status {
	return call(metrics.OpOpen, func(rt *runtime) error {
		a, err := rt.resolve(alg, crypto.KindKeyAgreement)
		if err != nil {
			return err
		}
		if len(sealed) < a.Overhead() {
			return fmt.Errorf("%w: sealed message shorter than tag", crypto.ErrInvalidParameter)
		}
		if err := checkOut(out, len(sealed)-a.Overhead()); err != nil {
			return err
		}

		msg, err := crypto.Open(secret, peerPublic, nonce, sealed)
		if err != nil {
			securemem.Wipe(out)
			return err
		}
		return deliver(out, msg)
	})
}

// SealAnonymous seals msg to peerPublic under an ephemeral key. out must be
// len(msg) plus the public key and tag sizes long.
func SealAnonymous(alg uint32, peerPublic, nonce, msg, out []byte) Status {
	return call(metrics.OpSealAnon, func(rt *runtime) error {
		a, err := rt.resolve(alg, crypto.KindKeyAgreement)
		if err != nil {
			return err
		}
		if err := checkOut(out, a.PublicKeySize()+len(msg)+a.Overhead()); err != nil {
			return err
		}

		sealed, err := crypto.SealAnonymous(peerPublic, nonce, msg)
		if err != nil {
			return err
		}
		copy(out, sealed)
		return nil
	})
}

// OpenAnonymous reverses SealAnonymous. On StatusAuth out is zeroed.
func OpenAnonymous(alg uint32, secret, nonce, sealed, out []byte) Status {
	return call(metrics.OpOpenAnon, func(rt *runtime) error {
		a, err := rt.resolve(alg, crypto.KindKeyAgreement)
		if err != nil {
			return err
		}
		overhead := a.PublicKeySize() + a.Overhead()
		if len(sealed) < overhead {
			return fmt.Errorf("%w: anonymous sealed message too short", crypto.ErrInvalidParameter)
		}
		if err := checkOut(out, len(sealed)-overhead); err != nil {
			return err
		}

		msg, err := crypto.OpenAnonymous(secret, nonce, sealed)
		if err != nil {
			securemem.Wipe(out)
			return err
		}
		return deliver(out, msg)
	})
}

// Random fills out from the library's random source.
func Random(out []byte) Status {
	return call(metrics.OpRandom, func(rt *runtime) error {
		if len(out) == 0 {
			return fmt.Errorf("%w: empty output buffer", crypto.ErrInvalidParameter)
		}
		crypto.Fill(out)
		return nil
	})
}

// Wipe zeroes buf.
func Wipe(buf []byte) Status {
	return call(metrics.OpWipe, func(rt *runtime) error {
		securemem.Wipe(buf)
		return nil
	})
}

// Sizes returns the key, public key, nonce and output sizes of alg: the
// tag size for AEADs and sealing, the signature size for signatures and
// the digest size for hashes.
func Sizes(alg uint32) (key, public, nonce, output uint32, status Status) {
	status = call(metrics.OpSizes, func(rt *runtime) error {
		a := crypto.Algorithm(alg)
		if !a.Valid() {
			return fmt.Errorf("%w: %d", crypto.ErrUnsupportedAlgorithm, alg)
		}
		key, public = uint32(a.KeySize()), uint32(a.PublicKeySize())
		nonce, output = uint32(a.NonceSize()), uint32(a.Overhead())
		return nil
	})
	if status != StatusOK {
		return 0, 0, 0, 0, status
	}
	return key, public, nonce, output, StatusOK
}
