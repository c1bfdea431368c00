package keys

import (
	"fmt"
	"strings"

	"jazz-tools/jazz-crypto/crypto"
	"jazz-tools/jazz-crypto/securemem"
)

// Derivation contexts used by Jazz peers.
var (
	contextSeal        = []byte("seal")
	contextSign        = []byte("sign")
	contextGroupSealer = []byte("groupSealer")
)

// AgentSecret is an X25519 sealing key and an Ed25519 signing key that
// together identify an agent.
type AgentSecret struct {
	Sealer *KeyMaterial
	Signer *KeyMaterial
}

// Destroy destroys both keys.
func (a *AgentSecret) Destroy() {
	a.Sealer.Destroy()
	a.Signer.Destroy()
}

// Format encodes the secret as "sealerSecret_z…/signerSecret_z…".
func (a *AgentSecret) Format() (string, error) {
	sealer, err := FormatSecret(a.Sealer)
	if err != nil {
		return "", err
	}
	signer, err := FormatSecret(a.Signer)
	if err != nil {
		return "", err
	}
	return sealer + "/" + signer, nil
}

// NewAgentSecret generates a random agent secret.
func (m *Manager) NewAgentSecret() (*AgentSecret, error) {
	sealer, err := m.GenerateKey(crypto.X25519)
	if err != nil {
		return nil, err
	}
	signer, err := m.GenerateKey(crypto.Ed25519)
	if err != nil {
		sealer.Destroy()
		return nil, err
	}
	return &AgentSecret{Sealer: sealer, Signer: signer}, nil
}

// AgentSecretFromSeed deterministically derives an agent secret from a
// 32-byte seed.
func (m *Manager) AgentSecretFromSeed(seed []byte) (*AgentSecret, error) {
	if len(seed) != crypto.KeySize {
		return nil, fmt.Errorf("%w: seed length %d, want %d", crypto.ErrInvalidParameter, len(seed), crypto.KeySize)
	}

	sealerSeed := crypto.HashWithContext(contextSeal, seed)
	sealer, err := m.ImportKey(crypto.X25519, sealerSeed[:])
	if err != nil {
		securemem.Wipe(sealerSeed[:])
		return nil, err
	}

	signerSeed := crypto.HashWithContext(contextSign, seed)
	signer, err := m.ImportKey(crypto.Ed25519, signerSeed[:])
	if err != nil {
		sealer.Destroy()
		securemem.Wipe(signerSeed[:])
		return nil, err
	}

	return &AgentSecret{Sealer: sealer, Signer: signer}, nil
}

// ParseAgentSecret decodes "sealerSecret_z…/signerSecret_z…".
func (m *Manager) ParseAgentSecret(s string) (*AgentSecret, error) {
	sealerText, signerText, ok := strings.Cut(s, "/")
	if !ok {
		return nil, fmt.Errorf("%w: agent secret needs two parts", ErrFormat)
	}

	sealer, err := m.importSecretAs(sealerText, crypto.X25519)
	if err != nil {
		return nil, err
	}
	signer, err := m.importSecretAs(signerText, crypto.Ed25519)
	if err != nil {
		sealer.Destroy()
		return nil, err
	}
	return &AgentSecret{Sealer: sealer, Signer: signer}, nil
}

func (m *Manager) importSecretAs(s string, want crypto.Algorithm) (*KeyMaterial, error) {
	alg, raw, err := ParseSecret(s)
	if err != nil {
		return nil, err
	}
	if alg != want {
		securemem.Wipe(raw)
		return nil, fmt.Errorf("%w: expected %s secret, got %s", ErrFormat, want, alg)
	}
	return m.ImportKey(alg, raw)
}

// AgentID returns the public identity "sealer_z…/signer_z…".
func (m *Manager) AgentID(secret *AgentSecret) (string, error) {
	sealerPub, err := m.PublicKey(secret.Sealer)
	if err != nil {
		return "", err
	}
	signerPub, err := m.PublicKey(secret.Signer)
	if err != nil {
		return "", err
	}

	sealerID, err := FormatPublic(crypto.X25519, sealerPub)
	if err != nil {
		return "", err
	}
	signerID, err := FormatPublic(crypto.Ed25519, signerPub)
	if err != nil {
		return "", err
	}
	return sealerID + "/" + signerID, nil
}

// SplitAgentID returns the sealer and signer public keys of an agent ID.
func SplitAgentID(id string) (sealer, signer []byte, err error) {
	sealerText, signerText, ok := strings.Cut(id, "/")
	if !ok {
		return nil, nil, fmt.Errorf("%w: agent id needs two parts", ErrFormat)
	}

	alg, sealer, err := ParsePublic(sealerText)
	if err != nil {
		return nil, nil, err
	}
	if alg != crypto.X25519 {
		return nil, nil, fmt.Errorf("%w: first part of agent id is not a sealer", ErrFormat)
	}

	alg, signer, err = ParsePublic(signerText)
	if err != nil {
		return nil, nil, err
	}
	if alg != crypto.Ed25519 {
		return nil, nil, fmt.Errorf("%w: second part of agent id is not a signer", ErrFormat)
	}
	return sealer, signer, nil
}

// GroupSealerFromReadKey derives a group's X25519 sealing key from its read
// key. Every member holding the read key derives the same sealer.
func (m *Manager) GroupSealerFromReadKey(readKey *KeyMaterial) (*KeyMaterial, error) {
	if readKey == nil || readKey.Algorithm().Kind() != crypto.KindAEAD {
		return nil, fmt.Errorf("%w: read key must be a symmetric key", crypto.ErrInvalidParameter)
	}
	return m.DeriveKey(readKey, contextGroupSealer, WithAlgorithm(crypto.X25519))
}
