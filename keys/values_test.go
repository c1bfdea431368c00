package keys

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/salsa20"
	"lukechampine.com/blake3"

	"jazz-tools/jazz-crypto/crypto"
)

var testSealMaterial = SealNonceMaterial{
	In: "co_zTEST",
	Tx: TransactionID{SessionID: "co_zTEST_session_zTEST", TxIndex: 0},
}

// sealerID returns the sealer_z ID of an X25519 key.
func sealerID(t *testing.T, m *Manager, key *KeyMaterial) string {
	t.Helper()
	pub, err := m.PublicKey(key)
	require.NoError(t, err)
	id, err := FormatPublic(crypto.X25519, pub)
	require.NoError(t, err)
	return id
}

func TestEncryptValue_MatchesJazzLayout(t *testing.T) {
	m := newTestManager(t)
	key, err := m.ImportKey(crypto.XSalsa20Poly1305, rawKey(0x31))
	require.NoError(t, err)
	defer key.Destroy()

	material := map[string]any{"in": "co_zValue", "tx": map[string]any{"txIndex": 2, "sessionID": "s"}}
	value := []any{map[string]any{"op": "set", "key": "title", "value": "hello"}}

	encrypted, err := EncryptValue(value, key, material)
	require.NoError(t, err)

	// blake3(stable(material))[:24] keys a bare XSalsa20 over stable(value)
	nonce := blake3.Sum256([]byte(`{"in":"co_zValue","tx":{"sessionID":"s","txIndex":2}}`))
	plaintext := []byte(`[{"key":"title","op":"set","value":"hello"}]`)
	want := make([]byte, len(plaintext))
	var k [32]byte
	copy(k[:], rawKey(0x31))
	salsa20.XORKeyStream(want, plaintext, nonce[:24], &k)
	assert.Equal(t, PrefixEncrypted+base64.URLEncoding.EncodeToString(want), encrypted)

	raw, err := DecryptValueRaw(encrypted, key, material)
	require.NoError(t, err)
	assert.Equal(t, plaintext, raw)

	var decoded []map[string]string
	require.NoError(t, DecryptValue(encrypted, key, material, &decoded))
	assert.Equal(t, []map[string]string{{"op": "set", "key": "title", "value": "hello"}}, decoded)
}

func TestEncryptValue_Errors(t *testing.T) {
	m := newTestManager(t)
	signer, err := m.GenerateKey(crypto.Ed25519)
	require.NoError(t, err)
	defer signer.Destroy()
	key, err := m.GenerateKey(crypto.XSalsa20Poly1305)
	require.NoError(t, err)
	defer key.Destroy()

	_, err = EncryptValue("x", signer, "material")
	assert.ErrorIs(t, err, crypto.ErrInvalidParameter)

	_, err = EncryptValue(func() {}, key, "material")
	assert.ErrorIs(t, err, crypto.ErrInvalidParameter)

	_, err = DecryptValueRaw("sealed_Uabc", key, "material")
	assert.ErrorIs(t, err, ErrFormat)

	key.Destroy()
	_, err = EncryptValue("x", key, "material")
	assert.ErrorIs(t, err, ErrDestroyed)
}

func TestKeySecret_RoundTrip(t *testing.T) {
	m := newTestManager(t)

	toEncrypt, err := m.GenerateKey(crypto.XSalsa20Poly1305)
	require.NoError(t, err)
	defer toEncrypt.Destroy()
	encrypting, err := m.GenerateKey(crypto.XSalsa20Poly1305)
	require.NoError(t, err)
	defer encrypting.Destroy()
	wrong, err := m.GenerateKey(crypto.XSalsa20Poly1305)
	require.NoError(t, err)
	defer wrong.Destroy()

	info, err := EncryptKeySecret(
		KeyRef{ID: NewKeyID(), Secret: toEncrypt},
		KeyRef{ID: NewKeyID(), Secret: encrypting},
	)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(info.Encrypted, PrefixEncrypted))
	assert.True(t, strings.HasPrefix(info.EncryptedID, PrefixKeyID))

	decrypted, err := m.DecryptKeySecret(info, encrypting)
	require.NoError(t, err)
	defer decrypted.Destroy()

	want, err := FormatSecret(toEncrypt)
	require.NoError(t, err)
	got, err := FormatSecret(decrypted)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = m.DecryptKeySecret(info, wrong)
	assert.ErrorIs(t, err, crypto.ErrAuth)

	// the IDs are bound through the nonce
	swapped := *info
	swapped.EncryptedID, swapped.EncryptingID = info.EncryptingID, info.EncryptedID
	_, err = m.DecryptKeySecret(&swapped, encrypting)
	assert.ErrorIs(t, err, crypto.ErrAuth)

	_, err = EncryptKeySecret(KeyRef{Secret: toEncrypt}, KeyRef{ID: NewKeyID(), Secret: encrypting})
	assert.ErrorIs(t, err, crypto.ErrInvalidParameter)
}

func TestSealValue_RoundTrip(t *testing.T) {
	m := newTestManager(t)

	sender, err := m.GenerateKey(crypto.X25519)
	require.NoError(t, err)
	defer sender.Destroy()
	recipient, err := m.GenerateKey(crypto.X25519)
	require.NoError(t, err)
	defer recipient.Destroy()

	message := map[string]any{"readKey": "keySecret_zABC", "n": 1}
	sealed, err := SealValue(message, sender, sealerID(t, m, recipient), testSealMaterial)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, PrefixSealed))

	var opened map[string]any
	require.NoError(t, UnsealValue(sealed, recipient, sealerID(t, m, sender), testSealMaterial, &opened))
	assert.Equal(t, "keySecret_zABC", opened["readKey"])

	other := testSealMaterial
	other.Tx.TxIndex = 1
	assert.ErrorIs(t, UnsealValue(sealed, recipient, sealerID(t, m, sender), other, &opened), crypto.ErrAuth)

	_, err = SealValue(message, sender, "signer_z"+base58.Encode(rawKey(1)), testSealMaterial)
	assert.ErrorIs(t, err, ErrFormat)

	_, err = SealValue(message, sender, sealerID(t, m, recipient), SealNonceMaterial{})
	assert.ErrorIs(t, err, crypto.ErrInvalidParameter)
}

func TestSealValue_NotJSON(t *testing.T) {
	m := newTestManager(t)

	sender, err := m.GenerateKey(crypto.X25519)
	require.NoError(t, err)
	defer sender.Destroy()
	recipient, err := m.GenerateKey(crypto.X25519)
	require.NoError(t, err)
	defer recipient.Destroy()

	nonce, err := crypto.NonceFromMaterial(testSealMaterial, crypto.SealNonceSize)
	require.NoError(t, err)
	recipientPub, err := m.PublicKey(recipient)
	require.NoError(t, err)

	var box []byte
	require.NoError(t, sender.Use(func(secret []byte) error {
		box, err = crypto.Seal(secret, recipientPub, nonce, []byte("not valid json"))
		return err
	}))

	var out any
	err = UnsealValue(FormatSealed(box), recipient, sealerID(t, m, sender), testSealMaterial, &out)
	assert.ErrorIs(t, err, crypto.ErrAuth)
}

func TestSealValueForGroup(t *testing.T) {
	m := newTestManager(t)

	readKey, err := m.ImportKey(crypto.XSalsa20Poly1305, rawKey(0x66))
	require.NoError(t, err)
	defer readKey.Destroy()
	groupSealer, err := m.GroupSealerFromReadKey(readKey)
	require.NoError(t, err)
	defer groupSealer.Destroy()
	wrongSealer, err := m.GenerateKey(crypto.X25519)
	require.NoError(t, err)
	defer wrongSealer.Destroy()

	data := map[string]string{"secret": "sensitive data"}
	sealed, err := SealValueForGroup(data, sealerID(t, m, groupSealer), testSealMaterial)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, PrefixSealedForGroup))

	var opened map[string]string
	require.NoError(t, UnsealValueForGroup(sealed, groupSealer, testSealMaterial, &opened))
	assert.Equal(t, data, opened)

	assert.ErrorIs(t, UnsealValueForGroup(sealed, wrongSealer, testSealMaterial, &opened), crypto.ErrAuth)
	assert.ErrorIs(t, UnsealValueForGroup(sealed, readKey, testSealMaterial, &opened), crypto.ErrInvalidParameter)

	// fresh ephemeral keys make every sealing distinct
	again, err := SealValueForGroup(data, sealerID(t, m, groupSealer), testSealMaterial)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again)
}

func TestSecureHash(t *testing.T) {
	a, err := SecureHash(map[string]string{"b": "world", "a": "hello"})
	require.NoError(t, err)
	b, err := SecureHash(map[string]string{"a": "hello", "b": "world"})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	sum := blake3.Sum256([]byte(`{"a":"hello","b":"world"}`))
	assert.Equal(t, PrefixHash+base58.Encode(sum[:]), a)

	ok, err := MatchesHash(map[string]string{"b": "world", "a": "hello"}, a)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = MatchesHash("other", a)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = MatchesHash("other", "shortHash_zabc")
	assert.ErrorIs(t, err, ErrFormat)
}

func TestShortHash(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		encoded string
	}{
		{"string", "string", `"string"`},
		{"number", 42, `42`},
		{"bool", true, `true`},
		{"nested", map[string]any{"z": []int{1, 2}, "a": map[string]int{"y": 1, "x": 2}}, `{"a":{"x":2,"y":1},"z":[1,2]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ShortHash(tt.value)
			require.NoError(t, err)
			sum := blake3.Sum256([]byte(tt.encoded))
			assert.Equal(t, PrefixShortHash+base58.Encode(sum[:ShortHashSize]), got)
		})
	}
}

func TestSignValue(t *testing.T) {
	m := newTestManager(t)

	signer, err := m.GenerateKey(crypto.Ed25519)
	require.NoError(t, err)
	defer signer.Destroy()
	pub, err := m.PublicKey(signer)
	require.NoError(t, err)
	signerID, err := FormatPublic(crypto.Ed25519, pub)
	require.NoError(t, err)

	hash, err := SecureHash([]string{"tx1", "tx2"})
	require.NoError(t, err)

	sig, err := SignValue(signer, hash)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sig, PrefixSignature))

	ok, err := VerifyValue(sig, hash, signerID)
	require.NoError(t, err)
	assert.True(t, ok)

	// the signature covers the JSON string, quotes included
	raw, err := ParseSignature(sig)
	require.NoError(t, err)
	ok, err = crypto.Verify(crypto.Ed25519, pub, []byte(`"`+hash+`"`), raw)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyValue(sig, "tampered", signerID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyValue(sig, hash, "sealer_z"+base58.Encode(pub))
	assert.ErrorIs(t, err, ErrFormat)

	sealer, err := m.GenerateKey(crypto.X25519)
	require.NoError(t, err)
	defer sealer.Destroy()
	_, err = SignValue(sealer, hash)
	assert.ErrorIs(t, err, crypto.ErrInvalidParameter)
}
