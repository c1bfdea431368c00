package keys

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"

	"jazz-tools/jazz-crypto/crypto"
	"jazz-tools/jazz-crypto/securemem"
)

// JSON values are exchanged with Jazz peers in their stable encoding: object
// keys sorted at every level, no HTML escaping. Nonces are not sent; both
// sides derive them from the nonce material, a JSON value naming where the
// ciphertext lives.

// ShortHashSize is the number of digest bytes in a shortHash_z value.
const ShortHashSize = 19

// TransactionID names a transaction inside a CoValue session.
type TransactionID struct {
	SessionID string `json:"sessionID"`
	TxIndex   int    `json:"txIndex"`
}

// SealNonceMaterial is the nonce material of sealed values: the CoValue
// the value is stored in and the transaction carrying it.
type SealNonceMaterial struct {
	In string        `json:"in"`
	Tx TransactionID `json:"tx"`
}

// KeyRef is a symmetric key together with its key_z identifier.
type KeyRef struct {
	ID     string
	Secret *KeyMaterial
}

// EncryptedKeySecret is a key secret encrypted under another key. The two
// IDs are the nonce material.
type EncryptedKeySecret struct {
	EncryptedID  string `json:"encryptedID"`
	EncryptingID string `json:"encryptingID"`
	Encrypted    string `json:"encrypted"`
}

func (e *EncryptedKeySecret) nonceMaterial() map[string]string {
	return map[string]string{"encryptedID": e.EncryptedID, "encryptingID": e.EncryptingID}
}

// EncryptValue encrypts the stable JSON encoding of value with the XSalsa20
// keystream of key, under a nonce derived from nonceMaterial. The result is
// not authenticated; Jazz signs the transactions carrying it instead.
func EncryptValue(value any, key *KeyMaterial, nonceMaterial any) (string, error) {
	plaintext, err := crypto.StableJSON(value)
	if err != nil {
		return "", err
	}
	defer securemem.Wipe(plaintext)

	ciphertext, err := streamValue(key, nonceMaterial, plaintext)
	if err != nil {
		return "", err
	}
	return FormatEncrypted(ciphertext), nil
}

// DecryptValueRaw reverses EncryptValue and returns the JSON text. A wrong
// key or nonce material yields garbage, not an error.
func DecryptValueRaw(encrypted string, key *KeyMaterial, nonceMaterial any) ([]byte, error) {
	ciphertext, err := ParseEncrypted(encrypted)
	if err != nil {
		return nil, err
	}
	return streamValue(key, nonceMaterial, ciphertext)
}

// DecryptValue reverses EncryptValue into out. Output that is not JSON is
// reported as crypto.ErrAuth.
func DecryptValue(encrypted string, key *KeyMaterial, nonceMaterial any, out any) error {
	plaintext, err := DecryptValueRaw(encrypted, key, nonceMaterial)
	if err != nil {
		return err
	}
	defer securemem.Wipe(plaintext)
	return unmarshalValue(plaintext, out)
}

func streamValue(key *KeyMaterial, nonceMaterial any, data []byte) ([]byte, error) {
	if key == nil || key.Algorithm().Kind() != crypto.KindAEAD {
		return nil, fmt.Errorf("%w: value encryption needs a symmetric key", crypto.ErrInvalidParameter)
	}
	nonce, err := crypto.NonceFromMaterial(nonceMaterial, crypto.StreamNonceSize)
	if err != nil {
		return nil, err
	}

	var out []byte
	err = key.Use(func(secret []byte) error {
		out, err = crypto.XORKeyStream(secret, nonce, data)
		return err
	})
	return out, err
}

// EncryptKeySecret encrypts the keySecret_z text of toEncrypt under
// encrypting. Group key rotation stores these so holders of the new read
// key can recover older ones.
func EncryptKeySecret(toEncrypt, encrypting KeyRef) (*EncryptedKeySecret, error) {
	if toEncrypt.ID == "" || encrypting.ID == "" {
		return nil, fmt.Errorf("%w: key IDs are required", crypto.ErrInvalidParameter)
	}
	secret, err := FormatSecret(toEncrypt.Secret)
	if err != nil {
		return nil, err
	}

	out := &EncryptedKeySecret{EncryptedID: toEncrypt.ID, EncryptingID: encrypting.ID}
	out.Encrypted, err = EncryptValue(secret, encrypting.Secret, out.nonceMaterial())
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DecryptKeySecret reverses EncryptKeySecret. The recovered key is imported
// as the same algorithm as sealing.
func (m *Manager) DecryptKeySecret(info *EncryptedKeySecret, sealing *KeyMaterial) (*KeyMaterial, error) {
	if info == nil {
		return nil, fmt.Errorf("%w: nil encrypted key secret", crypto.ErrInvalidParameter)
	}

	var secret string
	if err := DecryptValue(info.Encrypted, sealing, info.nonceMaterial(), &secret); err != nil {
		return nil, err
	}
	key, err := m.ImportSecret(secret, sealing.Algorithm())
	if errors.Is(err, ErrFormat) {
		return nil, fmt.Errorf("%w: decrypted value is not a key secret", crypto.ErrAuth)
	}
	return key, err
}

// SealValue seals message from the X25519 key from to the sealer_z ID to.
func SealValue(message any, from *KeyMaterial, to string, material SealNonceMaterial) (string, error) {
	if err := requireSealer(from); err != nil {
		return "", err
	}
	peer, err := parseSealerID(to)
	if err != nil {
		return "", err
	}
	nonce, plaintext, err := sealInputs(message, material)
	if err != nil {
		return "", err
	}
	defer securemem.Wipe(plaintext)

	var sealed []byte
	err = from.Use(func(secret []byte) error {
		sealed, err = crypto.Seal(secret, peer, nonce, plaintext)
		return err
	})
	if err != nil {
		return "", err
	}
	return FormatSealed(sealed), nil
}

// UnsealValue opens a SealValue result addressed to sealer and sent by the
// sealer_z ID from.
func UnsealValue(sealed string, sealer *KeyMaterial, from string, material SealNonceMaterial, out any) error {
	if err := requireSealer(sealer); err != nil {
		return err
	}
	peer, err := parseSealerID(from)
	if err != nil {
		return err
	}
	box, err := ParseSealed(sealed)
	if err != nil {
		return err
	}
	nonce, err := crypto.NonceFromMaterial(material, crypto.SealNonceSize)
	if err != nil {
		return err
	}

	var plaintext []byte
	err = sealer.Use(func(secret []byte) error {
		plaintext, err = crypto.Open(secret, peer, nonce, box)
		return err
	})
	if err != nil {
		return err
	}
	defer securemem.Wipe(plaintext)
	return unmarshalValue(plaintext, out)
}

// SealValueForGroup seals message to a group's sealer_z ID under a fresh
// ephemeral key, so the sender stays anonymous.
func SealValueForGroup(message any, to string, material SealNonceMaterial) (string, error) {
	peer, err := parseSealerID(to)
	if err != nil {
		return "", err
	}
	nonce, plaintext, err := sealInputs(message, material)
	if err != nil {
		return "", err
	}
	defer securemem.Wipe(plaintext)

	sealed, err := crypto.SealAnonymous(peer, nonce, plaintext)
	if err != nil {
		return "", err
	}
	return FormatSealedForGroup(sealed), nil
}

// UnsealValueForGroup opens a SealValueForGroup result with the group's
// sealer secret.
func UnsealValueForGroup(sealed string, groupSealer *KeyMaterial, material SealNonceMaterial, out any) error {
	if err := requireSealer(groupSealer); err != nil {
		return err
	}
	box, err := ParseSealedForGroup(sealed)
	if err != nil {
		return err
	}
	nonce, err := crypto.NonceFromMaterial(material, crypto.SealNonceSize)
	if err != nil {
		return err
	}

	var plaintext []byte
	err = groupSealer.Use(func(secret []byte) error {
		plaintext, err = crypto.OpenAnonymous(secret, nonce, box)
		return err
	})
	if err != nil {
		return err
	}
	defer securemem.Wipe(plaintext)
	return unmarshalValue(plaintext, out)
}

func sealInputs(message any, material SealNonceMaterial) (nonce, plaintext []byte, err error) {
	if material.In == "" {
		return nil, nil, fmt.Errorf("%w: nonce material needs a CoValue ID", crypto.ErrInvalidParameter)
	}
	nonce, err = crypto.NonceFromMaterial(material, crypto.SealNonceSize)
	if err != nil {
		return nil, nil, err
	}
	plaintext, err = crypto.StableJSON(message)
	if err != nil {
		return nil, nil, err
	}
	return nonce, plaintext, nil
}

func requireSealer(key *KeyMaterial) error {
	if key == nil || key.Algorithm() != crypto.X25519 {
		return fmt.Errorf("%w: sealing needs an X25519 key", crypto.ErrInvalidParameter)
	}
	return nil
}

func parseSealerID(id string) ([]byte, error) {
	alg, public, err := ParsePublic(id)
	if err != nil {
		return nil, err
	}
	if alg != crypto.X25519 {
		return nil, fmt.Errorf("%w: %s is not a sealer ID", ErrFormat, id)
	}
	return public, nil
}

// SecureHash returns the hash_z BLAKE3 digest of value's stable encoding.
func SecureHash(value any) (string, error) {
	digest, err := valueDigest(value)
	if err != nil {
		return "", err
	}
	return FormatHash(digest[:]), nil
}

// ShortHash returns a shortHash_z value: the first ShortHashSize bytes of
// the SecureHash digest.
func ShortHash(value any) (string, error) {
	digest, err := valueDigest(value)
	if err != nil {
		return "", err
	}
	return PrefixShortHash + base58.Encode(digest[:ShortHashSize]), nil
}

// MatchesHash reports whether value hashes to the hash_z value want.
func MatchesHash(value any, want string) (bool, error) {
	expected, err := ParseHash(want)
	if err != nil {
		return false, err
	}
	digest, err := valueDigest(value)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(digest[:], expected) == 1, nil
}

func valueDigest(value any) ([crypto.DigestSize]byte, error) {
	encoded, err := crypto.StableJSON(value)
	if err != nil {
		return [crypto.DigestSize]byte{}, err
	}
	return crypto.Sum(encoded), nil
}

// SignValue signs the stable encoding of message with an Ed25519 key.
func SignValue(signer *KeyMaterial, message any) (string, error) {
	if signer == nil || signer.Algorithm() != crypto.Ed25519 {
		return "", fmt.Errorf("%w: value signing needs an Ed25519 key", crypto.ErrInvalidParameter)
	}
	encoded, err := crypto.StableJSON(message)
	if err != nil {
		return "", err
	}

	var sig []byte
	err = signer.Use(func(secret []byte) error {
		sig, err = crypto.Sign(crypto.Ed25519, secret, encoded)
		return err
	})
	if err != nil {
		return "", err
	}
	return FormatSignature(sig), nil
}

// VerifyValue checks a SignValue signature against the signer_z ID signer.
func VerifyValue(signature string, message any, signer string) (bool, error) {
	alg, public, err := ParsePublic(signer)
	if err != nil {
		return false, err
	}
	if alg != crypto.Ed25519 {
		return false, fmt.Errorf("%w: %s is not a signer ID", ErrFormat, signer)
	}
	sig, err := ParseSignature(signature)
	if err != nil {
		return false, err
	}
	encoded, err := crypto.StableJSON(message)
	if err != nil {
		return false, err
	}
	return crypto.Verify(crypto.Ed25519, public, encoded, sig)
}

func unmarshalValue(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: decrypted value is not JSON", crypto.ErrAuth)
	}
	return nil
}
