package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jazz-tools/jazz-crypto/keys"
)

func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "memory:\n  backing: heap\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// runCLI runs the CLI with args and returns what it printed.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp(strings.NewReader(stdin), &out, &errOut)
	argv := append([]string{"jazzcrypto", "--config", writeConfig(t, "")}, args...)
	err := app.Run(argv)
	return out.String(), err
}

// field returns the value printed after "name: ".
func field(t *testing.T, output, name string) string {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		if value, ok := strings.CutPrefix(line, name+": "); ok {
			return value
		}
	}
	t.Fatalf("no %q in output %q", name, output)
	return ""
}

func TestKeygen(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		secretPrefix string
		publicPrefix string
	}{
		{name: "default aead", args: nil, secretPrefix: keys.PrefixKeySecret},
		{name: "ed25519", args: []string{"--alg", "ed25519"}, secretPrefix: keys.PrefixSignerSecret, publicPrefix: keys.PrefixSigner},
		{name: "x25519", args: []string{"--alg", "x25519"}, secretPrefix: keys.PrefixSealerSecret, publicPrefix: keys.PrefixSealer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, "", append([]string{"keygen"}, tt.args...)...)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(field(t, out, "secret"), tt.secretPrefix), out)
			if tt.publicPrefix != "" {
				assert.True(t, strings.HasPrefix(field(t, out, "public"), tt.publicPrefix), out)
			}
		})
	}

	t.Run("hex", func(t *testing.T) {
		out, err := runCLI(t, "", "keygen", "--hex")
		require.NoError(t, err)
		assert.Len(t, field(t, out, "secret"), 64)
	})

	t.Run("hash has no key", func(t *testing.T) {
		_, err := runCLI(t, "", "keygen", "--alg", "blake3")
		assert.Error(t, err)
	})
}

func TestEncryptDecrypt(t *testing.T) {
	out, err := runCLI(t, "", "keygen")
	require.NoError(t, err)
	key := field(t, out, "secret")

	for _, alg := range []string{"chacha20-poly1305", "xchacha20-poly1305", "aes-256-gcm"} {
		t.Run(alg, func(t *testing.T) {
			sealed, err := runCLI(t, "", "encrypt", "--alg", alg, "--key", key, "--aad", "hdr", "--in", "secret message")
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(sealed, keys.PrefixEncrypted))

			plain, err := runCLI(t, sealed, "decrypt", "--alg", alg, "--key", key, "--aad", "hdr")
			require.NoError(t, err)
			assert.Equal(t, "secret message", plain)

			_, err = runCLI(t, sealed, "decrypt", "--alg", alg, "--key", key, "--aad", "other")
			assert.Error(t, err)
		})
	}
}

func TestHash(t *testing.T) {
	out, err := runCLI(t, "", "hash", "--alg", "sha-256", "--hex", "--in", "abc")
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad\n", out)

	out, err = runCLI(t, "abc", "hash")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, keys.PrefixHash))

	_, err = runCLI(t, "", "hash", "--alg", "ed25519", "--in", "abc")
	assert.ErrorContains(t, err, "not a hash algorithm")
}

func TestSignVerify(t *testing.T) {
	out, err := runCLI(t, "", "keygen", "--alg", "ed25519")
	require.NoError(t, err)
	secret, public := field(t, out, "secret"), field(t, out, "public")

	sig, err := runCLI(t, "", "sign", "--secret", secret, "--in", "signed text")
	require.NoError(t, err)
	sig = strings.TrimSpace(sig)
	assert.True(t, strings.HasPrefix(sig, keys.PrefixSignature))

	out, err = runCLI(t, "", "verify", "--public", public, "--signature", sig, "--in", "signed text")
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)

	_, err = runCLI(t, "", "verify", "--public", public, "--signature", sig, "--in", "other text")
	assert.ErrorIs(t, err, errInvalidSignature)
}

func TestDerive(t *testing.T) {
	master := strings.Repeat("07", 32)

	first, err := runCLI(t, "", "derive", "--master", master, "--context", "ctx", "--hex")
	require.NoError(t, err)
	second, err := runCLI(t, "", "derive", "--master", master, "--context", "ctx", "--hex")
	require.NoError(t, err)
	other, err := runCLI(t, "", "derive", "--master", master, "--context", "other", "--hex")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)

	_, err = runCLI(t, "", "derive", "--master", "zz", "--context", "ctx")
	assert.Error(t, err)
}

func TestAgent(t *testing.T) {
	seed := strings.Repeat("2a", 32)

	first, err := runCLI(t, "", "agent", "--seed", seed)
	require.NoError(t, err)
	second, err := runCLI(t, "", "agent", "--seed", seed)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(field(t, first, "secret"), keys.PrefixSealerSecret))

	random, err := runCLI(t, "", "agent")
	require.NoError(t, err)
	assert.NotEqual(t, field(t, first, "id"), field(t, random, "id"))
}

func TestAlgorithms(t *testing.T) {
	out, err := runCLI(t, "", "algorithms")
	require.NoError(t, err)
	for _, name := range []string{"chacha20-poly1305", "blake3", "ed25519", "ml-dsa-65", "x25519"} {
		assert.Contains(t, out, name)
	}
}

func TestInvalidFlags(t *testing.T) {
	var out bytes.Buffer
	err := newApp(strings.NewReader(""), &out, &out).Run([]string{"jazzcrypto", "--level", "loud", "algorithms"})
	assert.ErrorContains(t, err, "invalid log level")

	_, err = runCLI(t, "", "keygen", "--alg", "rot13")
	assert.Error(t, err)
}

func TestServe(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())

	path := writeConfig(t, fmt.Sprintf("server:\n  host: 127.0.0.1\n  port: %d\nmetrics:\n  port: 0\n", port))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		var out bytes.Buffer
		done <- newApp(strings.NewReader(""), &out, &out).RunContext(ctx, []string{"jazzcrypto", "--config", path, "serve"})
	}()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestValueEncryptDecrypt(t *testing.T) {
	out, err := runCLI(t, "", "keygen", "--alg", "xsalsa20-poly1305")
	require.NoError(t, err)
	key := field(t, out, "secret")
	material := `{"in":"co_zTest","tx":{"sessionID":"s","txIndex":3}}`

	encrypted, err := runCLI(t, `{"b":1,"a":"x"}`, "value", "encrypt", "--key", key, "--nonce-material", material)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encrypted, keys.PrefixEncrypted))

	again, err := runCLI(t, `{"a":"x","b":1}`, "value", "encrypt", "--key", key, "--nonce-material", material)
	require.NoError(t, err)
	assert.Equal(t, encrypted, again, "same value and material encrypt identically")

	plain, err := runCLI(t, encrypted, "value", "decrypt", "--key", key, "--nonce-material", material)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1}`+"\n", plain)

	_, err = runCLI(t, "not json", "value", "encrypt", "--key", key, "--nonce-material", material)
	assert.ErrorContains(t, err, "invalid JSON input")

	_, err = runCLI(t, "1", "value", "encrypt", "--key", key, "--nonce-material", "{")
	assert.ErrorContains(t, err, "--nonce-material")
}

func TestValueSeal(t *testing.T) {
	out, err := runCLI(t, "", "keygen", "--alg", "x25519")
	require.NoError(t, err)
	senderSecret, senderID := field(t, out, "secret"), field(t, out, "public")
	out, err = runCLI(t, "", "keygen", "--alg", "x25519")
	require.NoError(t, err)
	recipientSecret, recipientID := field(t, out, "secret"), field(t, out, "public")

	material := []string{"--co", "co_zGroup", "--session", "co_zGroup_session_zA", "--tx-index", "2"}

	t.Run("sealed", func(t *testing.T) {
		sealed, err := runCLI(t, `["readKey"]`, append([]string{"value", "seal", "--secret", senderSecret, "--to", recipientID}, material...)...)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(sealed, keys.PrefixSealed))

		opened, err := runCLI(t, sealed, append([]string{"value", "unseal", "--secret", recipientSecret, "--from", senderID}, material...)...)
		require.NoError(t, err)
		assert.Equal(t, `["readKey"]`+"\n", opened)

		_, err = runCLI(t, sealed, "value", "unseal", "--secret", recipientSecret, "--from", senderID, "--co", "co_zOther", "--session", "co_zGroup_session_zA", "--tx-index", "2")
		assert.Error(t, err)
	})

	t.Run("for group", func(t *testing.T) {
		sealed, err := runCLI(t, `{"k":"v"}`, append([]string{"value", "seal-group", "--to", recipientID}, material...)...)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(sealed, keys.PrefixSealedForGroup))

		opened, err := runCLI(t, sealed, append([]string{"value", "unseal-group", "--secret", recipientSecret}, material...)...)
		require.NoError(t, err)
		assert.Equal(t, `{"k":"v"}`+"\n", opened)

		_, err = runCLI(t, sealed, append([]string{"value", "unseal-group", "--secret", senderSecret}, material...)...)
		assert.Error(t, err)
	})
}

func TestValueHash(t *testing.T) {
	hash, err := runCLI(t, `{"b":2,"a":1}`, "value", "hash")
	require.NoError(t, err)
	hash = strings.TrimSpace(hash)
	assert.True(t, strings.HasPrefix(hash, keys.PrefixHash))

	short, err := runCLI(t, `{"b":2,"a":1}`, "value", "hash", "--short")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(short, keys.PrefixShortHash))

	out, err := runCLI(t, `{"a":1,"b":2}`, "value", "hash", "--expect", hash)
	require.NoError(t, err)
	assert.Equal(t, "match\n", out)

	_, err = runCLI(t, `{"a":1,"b":3}`, "value", "hash", "--expect", hash)
	assert.ErrorIs(t, err, errHashMismatch)
}

func TestValueSignVerify(t *testing.T) {
	out, err := runCLI(t, "", "keygen", "--alg", "ed25519")
	require.NoError(t, err)
	secret, signer := field(t, out, "secret"), field(t, out, "public")

	sig, err := runCLI(t, `"hash_zabc"`, "value", "sign", "--secret", secret)
	require.NoError(t, err)
	sig = strings.TrimSpace(sig)

	out, err = runCLI(t, `"hash_zabc"`, "value", "verify", "--signer", signer, "--signature", sig)
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)

	_, err = runCLI(t, `"hash_zother"`, "value", "verify", "--signer", signer, "--signature", sig)
	assert.ErrorIs(t, err, errInvalidSignature)
}

func TestValueKeySecret(t *testing.T) {
	out, err := runCLI(t, "", "keygen", "--alg", "xsalsa20-poly1305")
	require.NoError(t, err)
	key := field(t, out, "secret")
	out, err = runCLI(t, "", "keygen", "--alg", "xsalsa20-poly1305")
	require.NoError(t, err)
	with := field(t, out, "secret")

	info, err := runCLI(t, "", "value", "encrypt-key", "--key", key, "--key-id", "key_zOld", "--with", with, "--with-id", "key_zNew")
	require.NoError(t, err)
	assert.Contains(t, info, `"encryptedID":"key_zOld"`)

	decrypted, err := runCLI(t, info, "value", "decrypt-key", "--with", with)
	require.NoError(t, err)
	assert.Equal(t, key+"\n", decrypted)

	_, err = runCLI(t, info, "value", "decrypt-key", "--with", key)
	assert.Error(t, err)
}
