package keys

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"jazz-tools/jazz-crypto/crypto"
	"jazz-tools/jazz-crypto/securemem"
)

// Textual prefixes shared with Jazz peers. "_z" values are base58, "_U"
// values base64url.
const (
	PrefixKeySecret      = "keySecret_z"
	PrefixKeyID          = "key_z"
	PrefixSignerSecret   = "signerSecret_z"
	PrefixSigner         = "signer_z"
	PrefixSealerSecret   = "sealerSecret_z"
	PrefixSealer         = "sealer_z"
	PrefixSignature      = "signature_z"
	PrefixHash           = "hash_z"
	PrefixShortHash      = "shortHash_z"
	PrefixEncrypted      = "encrypted_U"
	PrefixSealed         = "sealed_U"
	PrefixSealedForGroup = "sealedForGroup_U"
)

// KeyIDSize is the number of random bytes in a key ID.
const KeyIDSize = 12

var ErrFormat = fmt.Errorf("%w: malformed encoded value", crypto.ErrInvalidParameter)

func secretPrefix(alg crypto.Algorithm) (string, error) {
	switch alg.Kind() {
	case crypto.KindAEAD:
		return PrefixKeySecret, nil
	}
	switch alg {
	case crypto.Ed25519:
		return PrefixSignerSecret, nil
	case crypto.X25519:
		return PrefixSealerSecret, nil
	}
	return "", fmt.Errorf("%w: %s has no textual secret form", crypto.ErrUnsupportedAlgorithm, alg)
}

// FormatSecret encodes a key as keySecret_z, signerSecret_z or
// sealerSecret_z. The result is secret.
func FormatSecret(key *KeyMaterial) (string, error) {
	prefix, err := secretPrefix(key.Algorithm())
	if err != nil {
		return "", err
	}

	var out string
	err = key.Use(func(secret []byte) error {
		out = prefix + base58.Encode(secret)
		return nil
	})
	return out, err
}

// ParseSecret decodes a textual secret. keySecret_z values are reported as
// XSalsa20-Poly1305, the closest entry in the algorithm table: Jazz peers
// use them with the untagged XSalsa20 stream of EncryptValue. The bytes
// suit any AEAD. The caller owns the returned slice.
func ParseSecret(s string) (crypto.Algorithm, []byte, error) {
	for prefix, alg := range map[string]crypto.Algorithm{
		PrefixKeySecret:    crypto.XSalsa20Poly1305,
		PrefixSignerSecret: crypto.Ed25519,
		PrefixSealerSecret: crypto.X25519,
	} {
		if raw, ok := strings.CutPrefix(s, prefix); ok {
			b, err := decode58(raw, crypto.KeySize)
			return alg, b, err
		}
	}
	return 0, nil, fmt.Errorf("%w: unknown secret prefix", ErrFormat)
}

// ImportSecret parses a textual secret into secure memory. A non-zero alg
// overrides the algorithm implied by the prefix when both are AEADs.
func (m *Manager) ImportSecret(s string, alg crypto.Algorithm) (*KeyMaterial, error) {
	parsed, raw, err := ParseSecret(s)
	if err != nil {
		return nil, err
	}
	defer securemem.Wipe(raw)

	if alg != 0 && alg != parsed {
		if parsed.Kind() != crypto.KindAEAD || alg.Kind() != crypto.KindAEAD {
			return nil, fmt.Errorf("%w: %s secret used as %s", crypto.ErrInvalidParameter, parsed, alg)
		}
		parsed = alg
	}
	return m.ImportKey(parsed, raw)
}

// FormatPublic encodes an Ed25519 public key as signer_z or an X25519
// public key as sealer_z.
func FormatPublic(alg crypto.Algorithm, public []byte) (string, error) {
	if len(public) != alg.PublicKeySize() || len(public) == 0 {
		return "", fmt.Errorf("%w: public key length %d", crypto.ErrInvalidParameter, len(public))
	}
	switch alg {
	case crypto.Ed25519:
		return PrefixSigner + base58.Encode(public), nil
	case crypto.X25519:
		return PrefixSealer + base58.Encode(public), nil
	}
	return "", fmt.Errorf("%w: %s has no textual public form", crypto.ErrUnsupportedAlgorithm, alg)
}

// ParsePublic decodes signer_z and sealer_z values.
func ParsePublic(s string) (crypto.Algorithm, []byte, error) {
	if raw, ok := strings.CutPrefix(s, PrefixSigner); ok {
		b, err := decode58(raw, 32)
		return crypto.Ed25519, b, err
	}
	if raw, ok := strings.CutPrefix(s, PrefixSealer); ok {
		b, err := decode58(raw, 32)
		return crypto.X25519, b, err
	}
	return 0, nil, fmt.Errorf("%w: unknown public key prefix", ErrFormat)
}

func FormatSignature(sig []byte) string {
	return PrefixSignature + base58.Encode(sig)
}

func ParseSignature(s string) ([]byte, error) {
	raw, ok := strings.CutPrefix(s, PrefixSignature)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrFormat, PrefixSignature)
	}
	return decode58(raw, 0)
}

func FormatHash(digest []byte) string {
	return PrefixHash + base58.Encode(digest)
}

func ParseHash(s string) ([]byte, error) {
	raw, ok := strings.CutPrefix(s, PrefixHash)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrFormat, PrefixHash)
	}
	return decode58(raw, crypto.DigestSize)
}

func FormatEncrypted(sealed []byte) string {
	return PrefixEncrypted + base64.URLEncoding.EncodeToString(sealed)
}

func ParseEncrypted(s string) ([]byte, error) {
	return decode64(s, PrefixEncrypted)
}

func FormatSealed(sealed []byte) string {
	return PrefixSealed + base64.URLEncoding.EncodeToString(sealed)
}

func ParseSealed(s string) ([]byte, error) {
	return decode64(s, PrefixSealed)
}

func FormatSealedForGroup(sealed []byte) string {
	return PrefixSealedForGroup + base64.URLEncoding.EncodeToString(sealed)
}

func ParseSealedForGroup(s string) ([]byte, error) {
	return decode64(s, PrefixSealedForGroup)
}

// NewKeyID returns a random key_z identifier.
func NewKeyID() string {
	var id [KeyIDSize]byte
	crypto.Fill(id[:])
	return PrefixKeyID + base58.Encode(id[:])
}

func decode58(s string, size int) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty value", ErrFormat)
	}
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if size > 0 && len(b) != size {
		securemem.Wipe(b)
		return nil, fmt.Errorf("%w: decoded length %d, want %d", ErrFormat, len(b), size)
	}
	return b, nil
}

// decode64 accepts padded and unpadded base64url.
func decode64(s, prefix string) ([]byte, error) {
	raw, ok := strings.CutPrefix(s, prefix)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrFormat, prefix)
	}
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return b, nil
}
