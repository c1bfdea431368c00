package crypto

import (
	"fmt"
	"sort"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// Algorithm identifies a primitive. The numeric values are part of the
// entry-point ABI and never change.
type Algorithm uint32

const (
	ChaCha20Poly1305  Algorithm = 1
	XChaCha20Poly1305 Algorithm = 2
	XSalsa20Poly1305  Algorithm = 3
	AES256GCM         Algorithm = 4

	BLAKE3     Algorithm = 16
	BLAKE2b256 Algorithm = 17
	SHA256     Algorithm = 18

	Ed25519 Algorithm = 32
	MLDSA65 Algorithm = 33

	X25519 Algorithm = 48
)

const (
	// KeySize is the length of every secret key and seed.
	KeySize = 32
	// TagSize is the length of every AEAD authentication tag.
	TagSize = 16
	// DigestSize is the length of every digest.
	DigestSize = 32
)

// Kind groups algorithms by the operation they serve.
type Kind int

const (
	KindUnknown Kind = iota
	KindAEAD
	KindHash
	KindSignature
	KindKeyAgreement
)

func (k Kind) String() string {
	switch k {
	case KindAEAD:
		return "aead"
	case KindHash:
		return "hash"
	case KindSignature:
		return "signature"
	case KindKeyAgreement:
		return "key-agreement"
	default:
		return "unknown"
	}
}

type algorithmInfo struct {
	name       string
	kind       Kind
	keySize    int
	publicSize int
	nonceSize  int
	outputSize int
	// tagFirst marks NaCl constructions that prepend the tag.
	tagFirst bool
}

var algorithms = map[Algorithm]algorithmInfo{
	ChaCha20Poly1305:  {name: "chacha20-poly1305", kind: KindAEAD, keySize: KeySize, nonceSize: 12, outputSize: TagSize},
	XChaCha20Poly1305: {name: "xchacha20-poly1305", kind: KindAEAD, keySize: KeySize, nonceSize: 24, outputSize: TagSize},
	XSalsa20Poly1305:  {name: "xsalsa20-poly1305", kind: KindAEAD, keySize: KeySize, nonceSize: 24, outputSize: TagSize, tagFirst: true},
	AES256GCM:         {name: "aes-256-gcm", kind: KindAEAD, keySize: KeySize, nonceSize: 12, outputSize: TagSize},

	BLAKE3:     {name: "blake3", kind: KindHash, outputSize: DigestSize},
	BLAKE2b256: {name: "blake2b-256", kind: KindHash, outputSize: DigestSize},
	SHA256:     {name: "sha-256", kind: KindHash, outputSize: DigestSize},

	Ed25519: {name: "ed25519", kind: KindSignature, keySize: KeySize, publicSize: 32, outputSize: 64},
	MLDSA65: {name: "ml-dsa-65", kind: KindSignature, keySize: KeySize, publicSize: mldsa65.PublicKeySize, outputSize: mldsa65.SignatureSize},

	X25519: {name: "x25519", kind: KindKeyAgreement, keySize: KeySize, publicSize: 32, nonceSize: 24, outputSize: TagSize, tagFirst: true},
}

// Defaults used when a caller does not name an algorithm.
const (
	DefaultAEAD      = ChaCha20Poly1305
	DefaultHash      = BLAKE3
	DefaultSignature = Ed25519
)

func (a Algorithm) info() (algorithmInfo, bool) {
	info, ok := algorithms[a]
	return info, ok
}

func (a Algorithm) String() string {
	if info, ok := a.info(); ok {
		return info.name
	}
	return fmt.Sprintf("algorithm(%d)", uint32(a))
}

// Valid reports whether a is a known algorithm.
func (a Algorithm) Valid() bool {
	_, ok := a.info()
	return ok
}

// Kind returns the operation family of a.
func (a Algorithm) Kind() Kind {
	info, _ := a.info()
	return info.kind
}

// KeySize returns the secret key length, 0 for keyless algorithms.
func (a Algorithm) KeySize() int {
	info, _ := a.info()
	return info.keySize
}

// PublicKeySize returns the public key length for signature and key
// agreement algorithms.
func (a Algorithm) PublicKeySize() int {
	info, _ := a.info()
	return info.publicSize
}

// NonceSize returns the nonce length for AEAD and sealing algorithms.
func (a Algorithm) NonceSize() int {
	info, _ := a.info()
	return info.nonceSize
}

// Overhead returns the tag length for AEADs, the signature length for
// signature algorithms and the digest length for hashes.
func (a Algorithm) Overhead() int {
	info, _ := a.info()
	return info.outputSize
}

// HasSecretKey reports whether the algorithm takes secret key material.
func (a Algorithm) HasSecretKey() bool {
	return a.KeySize() > 0
}

func (a Algorithm) require(kind Kind) (algorithmInfo, error) {
	info, ok := a.info()
	if !ok || info.kind != kind {
		return info, fmt.Errorf("%w: %s is not a %s algorithm", ErrUnsupportedAlgorithm, a, kind)
	}
	return info, nil
}

// ParseAlgorithm resolves an algorithm by name.
func ParseAlgorithm(name string) (Algorithm, error) {
	for alg, info := range algorithms {
		if info.name == name {
			return alg, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
}

// Algorithms lists every known algorithm in identifier order.
func Algorithms() []Algorithm {
	out := make([]Algorithm, 0, len(algorithms))
	for alg := range algorithms {
		out = append(out, alg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
