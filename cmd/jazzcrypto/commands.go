package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"jazz-tools/jazz-crypto/config"
	"jazz-tools/jazz-crypto/crypto"
	"jazz-tools/jazz-crypto/entrypoint"
	"jazz-tools/jazz-crypto/keys"
	"jazz-tools/jazz-crypto/securemem"
)

var errInvalidSignature = errors.New("invalid signature")

var (
	algFlag = &cli.StringFlag{
		Name:    "alg",
		Aliases: []string{"a"},
		Usage:   "algorithm name (configured default when unset)",
	}
	inFlag = &cli.StringFlag{
		Name:  "in",
		Usage: "input text (stdin when unset)",
	}
	hexFlag = &cli.BoolFlag{
		Name:  "hex",
		Usage: "print hex instead of the Jazz textual form",
	}
)

// parseAlgorithm resolves --alg to an algorithm of kind. An empty name
// selects the configured default.
func parseAlgorithm(c *cli.Context, cfg config.Config, kind crypto.Kind) (crypto.Algorithm, error) {
	name := c.String(algFlag.Name)
	if name == "" {
		aead, hash, signature := cfg.Defaults.Algorithms()
		switch kind {
		case crypto.KindAEAD:
			return aead, nil
		case crypto.KindHash:
			return hash, nil
		case crypto.KindSignature:
			return signature, nil
		default:
			return crypto.X25519, nil
		}
	}

	alg, err := crypto.ParseAlgorithm(name)
	if err != nil {
		return 0, err
	}
	if alg.Kind() != kind {
		return 0, fmt.Errorf("%s is not a %s algorithm", alg, kind)
	}
	return alg, nil
}

func readInput(c *cli.Context) ([]byte, error) {
	if c.IsSet(inFlag.Name) {
		return []byte(c.String(inFlag.Name)), nil
	}
	return io.ReadAll(c.App.Reader)
}

func decodeHex(s, want string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("expected %s… or hex: %w", want, err)
	}
	return b, nil
}

// decodeText decodes a Jazz textual value with parse when it carries
// prefix, and hex otherwise.
func decodeText(s, prefix string, parse func(string) ([]byte, error)) ([]byte, error) {
	if strings.HasPrefix(s, prefix) {
		return parse(s)
	}
	return decodeHex(s, prefix)
}

func decodeSecret(s string) ([]byte, error) {
	for _, prefix := range []string{keys.PrefixKeySecret, keys.PrefixSignerSecret, keys.PrefixSealerSecret} {
		if strings.HasPrefix(s, prefix) {
			_, raw, err := keys.ParseSecret(s)
			return raw, err
		}
	}
	return decodeHex(s, "a textual secret")
}

func decodePublic(s string) ([]byte, error) {
	if strings.HasPrefix(s, keys.PrefixSigner) || strings.HasPrefix(s, keys.PrefixSealer) {
		_, raw, err := keys.ParsePublic(s)
		return raw, err
	}
	return decodeHex(s, keys.PrefixSigner)
}

// hasTextForm reports whether alg has a Jazz textual encoding.
func hasTextForm(alg crypto.Algorithm) bool {
	return alg.Kind() == crypto.KindAEAD || alg == crypto.Ed25519 || alg == crypto.X25519
}

func statusErr(op string, st entrypoint.Status) error {
	if st == entrypoint.StatusOK {
		return nil
	}
	return fmt.Errorf("%s: %w", op, st.Err())
}

func newManager(c *cli.Context, cfg config.Config) *keys.Manager {
	logger := loggerFrom(c)
	alloc := securemem.NewAllocator(cfg.Memory.Allocator(), securemem.WithLogger(logger))
	return keys.NewManager(alloc, keys.WithName("cli"), keys.WithLogger(logger))
}

// formatSecret prints raw as hex or in its Jazz textual form. raw is wiped.
func formatSecret(c *cli.Context, cfg config.Config, alg crypto.Algorithm, raw []byte) (string, error) {
	if c.Bool(hexFlag.Name) || !hasTextForm(alg) {
		defer securemem.Wipe(raw)
		return hex.EncodeToString(raw), nil
	}

	key, err := newManager(c, cfg).ImportKey(alg, raw)
	if err != nil {
		return "", err
	}
	defer key.Destroy()
	return keys.FormatSecret(key)
}

func formatPublic(c *cli.Context, alg crypto.Algorithm, public []byte) (string, error) {
	if c.Bool(hexFlag.Name) || !hasTextForm(alg) {
		return hex.EncodeToString(public), nil
	}
	return keys.FormatPublic(alg, public)
}

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "generate a key; signature and sealing keys also print the public key",
		Flags: []cli.Flag{algFlag, hexFlag},
		Action: func(c *cli.Context) error {
			cfg, err := initialize(c)
			if err != nil {
				return err
			}

			alg := crypto.DefaultAEAD
			if name := c.String(algFlag.Name); name != "" {
				if alg, err = crypto.ParseAlgorithm(name); err != nil {
					return err
				}
			} else {
				alg, _, _ = cfg.Defaults.Algorithms()
			}

			secret := make([]byte, alg.KeySize())
			if err := statusErr("keygen", entrypoint.GenerateKey(uint32(alg), secret)); err != nil {
				return err
			}

			var public []byte
			if alg.PublicKeySize() > 0 {
				public = make([]byte, alg.PublicKeySize())
				if err := statusErr("public key", entrypoint.PublicKey(uint32(alg), secret, public)); err != nil {
					securemem.Wipe(secret)
					return err
				}
			}

			text, err := formatSecret(c, cfg, alg, secret)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "secret: %s\n", text)

			if public != nil {
				text, err := formatPublic(c, alg, public)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "public: %s\n", text)
			}
			return nil
		},
	}
}

func agentCommand() *cli.Command {
	return &cli.Command{
		Name:  "agent",
		Usage: "create an agent secret and print its ID",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "seed", Usage: "32-byte hex seed for a deterministic agent"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := initialize(c)
			if err != nil {
				return err
			}
			manager := newManager(c, cfg)

			var secret *keys.AgentSecret
			if seedHex := c.String("seed"); seedHex != "" {
				seed, err := hex.DecodeString(seedHex)
				if err != nil {
					return fmt.Errorf("invalid seed: %w", err)
				}
				secret, err = manager.AgentSecretFromSeed(seed)
				securemem.Wipe(seed)
				if err != nil {
					return err
				}
			} else if secret, err = manager.NewAgentSecret(); err != nil {
				return err
			}
			defer secret.Destroy()

			text, err := secret.Format()
			if err != nil {
				return err
			}
			id, err := manager.AgentID(secret)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.App.Writer, "secret: %s\nid: %s\n", text, id)
			return nil
		},
	}
}

func deriveCommand() *cli.Command {
	return &cli.Command{
		Name:  "derive",
		Usage: "derive a key from a master key and a context",
		Flags: []cli.Flag{
			algFlag,
			hexFlag,
			&cli.StringFlag{Name: "master", Usage: "master key (keySecret_z… or hex)", Required: true},
			&cli.StringFlag{Name: "context", Usage: "derivation context", Required: true},
		},
		Action: func(c *cli.Context) error {
			cfg, err := initialize(c)
			if err != nil {
				return err
			}
			alg, err := parseAlgorithm(c, cfg, crypto.KindAEAD)
			if err != nil {
				return err
			}
			master, err := decodeSecret(c.String("master"))
			if err != nil {
				return err
			}
			defer securemem.Wipe(master)

			out := make([]byte, alg.KeySize())
			if err := statusErr("derive", entrypoint.DeriveKey(uint32(alg), master, []byte(c.String("context")), out)); err != nil {
				return err
			}

			text, err := formatSecret(c, cfg, alg, out)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, text)
			return nil
		},
	}
}

func encryptCommand() *cli.Command {
	return &cli.Command{
		Name:  "encrypt",
		Usage: "encrypt input under a fresh random nonce",
		Flags: []cli.Flag{
			algFlag,
			inFlag,
			hexFlag,
			&cli.StringFlag{Name: "key", Usage: "key (keySecret_z… or hex)", Required: true},
			&cli.StringFlag{Name: "aad", Usage: "associated data"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := initialize(c)
			if err != nil {
				return err
			}
			alg, err := parseAlgorithm(c, cfg, crypto.KindAEAD)
			if err != nil {
				return err
			}
			key, err := decodeSecret(c.String("key"))
			if err != nil {
				return err
			}
			defer securemem.Wipe(key)

			plaintext, err := readInput(c)
			if err != nil {
				return err
			}

			nonce := make([]byte, alg.NonceSize())
			if err := statusErr("nonce", entrypoint.Random(nonce)); err != nil {
				return err
			}

			var aad []byte
			if c.IsSet("aad") {
				aad = []byte(c.String("aad"))
			}

			sealed := make([]byte, len(plaintext)+alg.Overhead())
			if err := statusErr("encrypt", entrypoint.Encrypt(uint32(alg), key, nonce, plaintext, aad, sealed)); err != nil {
				return err
			}

			envelope := append(nonce, sealed...)
			if c.Bool(hexFlag.Name) {
				fmt.Fprintln(c.App.Writer, hex.EncodeToString(envelope))
			} else {
				fmt.Fprintln(c.App.Writer, keys.FormatEncrypted(envelope))
			}
			return nil
		},
	}
}

func decryptCommand() *cli.Command {
	return &cli.Command{
		Name:  "decrypt",
		Usage: "decrypt the output of encrypt",
		Flags: []cli.Flag{
			algFlag,
			inFlag,
			&cli.StringFlag{Name: "key", Usage: "key (keySecret_z… or hex)", Required: true},
			&cli.StringFlag{Name: "aad", Usage: "associated data"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := initialize(c)
			if err != nil {
				return err
			}
			alg, err := parseAlgorithm(c, cfg, crypto.KindAEAD)
			if err != nil {
				return err
			}
			key, err := decodeSecret(c.String("key"))
			if err != nil {
				return err
			}
			defer securemem.Wipe(key)

			input, err := readInput(c)
			if err != nil {
				return err
			}
			envelope, err := decodeText(strings.TrimSpace(string(input)), keys.PrefixEncrypted, keys.ParseEncrypted)
			if err != nil {
				return err
			}
			if len(envelope) < alg.NonceSize()+alg.Overhead() {
				return fmt.Errorf("decrypt: %w: input too short", crypto.ErrInvalidParameter)
			}
			nonce, sealed := envelope[:alg.NonceSize()], envelope[alg.NonceSize():]

			var aad []byte
			if c.IsSet("aad") {
				aad = []byte(c.String("aad"))
			}

			plaintext := make([]byte, len(sealed)-alg.Overhead())
			if err := statusErr("decrypt", entrypoint.Decrypt(uint32(alg), key, nonce, sealed, aad, plaintext)); err != nil {
				return err
			}
			_, err = c.App.Writer.Write(plaintext)
			return err
		},
	}
}

func hashCommand() *cli.Command {
	return &cli.Command{
		Name:  "hash",
		Usage: "hash input",
		Flags: []cli.Flag{algFlag, inFlag, hexFlag},
		Action: func(c *cli.Context) error {
			cfg, err := initialize(c)
			if err != nil {
				return err
			}
			alg, err := parseAlgorithm(c, cfg, crypto.KindHash)
			if err != nil {
				return err
			}
			data, err := readInput(c)
			if err != nil {
				return err
			}

			digest := make([]byte, alg.Overhead())
			if err := statusErr("hash", entrypoint.Hash(uint32(alg), data, digest)); err != nil {
				return err
			}

			if c.Bool(hexFlag.Name) {
				fmt.Fprintln(c.App.Writer, hex.EncodeToString(digest))
			} else {
				fmt.Fprintln(c.App.Writer, keys.FormatHash(digest))
			}
			return nil
		},
	}
}

func signCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign",
		Usage: "sign input",
		Flags: []cli.Flag{
			algFlag,
			inFlag,
			hexFlag,
			&cli.StringFlag{Name: "secret", Usage: "signing secret (signerSecret_z… or hex)", Required: true},
		},
		Action: func(c *cli.Context) error {
			cfg, err := initialize(c)
			if err != nil {
				return err
			}
			alg, err := parseAlgorithm(c, cfg, crypto.KindSignature)
			if err != nil {
				return err
			}
			secret, err := decodeSecret(c.String("secret"))
			if err != nil {
				return err
			}
			defer securemem.Wipe(secret)

			data, err := readInput(c)
			if err != nil {
				return err
			}

			sig := make([]byte, alg.Overhead())
			if err := statusErr("sign", entrypoint.Sign(uint32(alg), secret, data, sig)); err != nil {
				return err
			}

			if c.Bool(hexFlag.Name) {
				fmt.Fprintln(c.App.Writer, hex.EncodeToString(sig))
			} else {
				fmt.Fprintln(c.App.Writer, keys.FormatSignature(sig))
			}
			return nil
		},
	}
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "verify a signature of input; fails when invalid",
		Flags: []cli.Flag{
			algFlag,
			inFlag,
			&cli.StringFlag{Name: "public", Usage: "public key (signer_z… or hex)", Required: true},
			&cli.StringFlag{Name: "signature", Usage: "signature (signature_z… or hex)", Required: true},
		},
		Action: func(c *cli.Context) error {
			cfg, err := initialize(c)
			if err != nil {
				return err
			}
			alg, err := parseAlgorithm(c, cfg, crypto.KindSignature)
			if err != nil {
				return err
			}
			public, err := decodePublic(c.String("public"))
			if err != nil {
				return err
			}
			sig, err := decodeText(c.String("signature"), keys.PrefixSignature, keys.ParseSignature)
			if err != nil {
				return err
			}
			data, err := readInput(c)
			if err != nil {
				return err
			}

			ok, st := entrypoint.Verify(uint32(alg), public, data, sig)
			if err := statusErr("verify", st); err != nil {
				return err
			}
			if !ok {
				return errInvalidSignature
			}
			fmt.Fprintln(c.App.Writer, "valid")
			return nil
		},
	}
}

func algorithmsCommand() *cli.Command {
	return &cli.Command{
		Name:  "algorithms",
		Usage: "list algorithms and their sizes",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "%-4s %-20s %-14s %5s %6s %5s %6s\n", "id", "name", "kind", "key", "public", "nonce", "output")
			for _, alg := range crypto.Algorithms() {
				fmt.Fprintf(c.App.Writer, "%-4d %-20s %-14s %5d %6d %5d %6d\n",
					uint32(alg), alg, alg.Kind(), alg.KeySize(), alg.PublicKeySize(), alg.NonceSize(), alg.Overhead())
			}
			return nil
		},
	}
}
