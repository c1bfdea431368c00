package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"jazz-tools/jazz-crypto/keys"
)

var errHashMismatch = errors.New("hash mismatch")

var (
	nonceMaterialFlag = &cli.StringFlag{
		Name:     "nonce-material",
		Usage:    "nonce material as JSON",
		Required: true,
	}
	coValueFlag = &cli.StringFlag{
		Name:     "co",
		Usage:    "CoValue ID the sealed value is stored in",
		Required: true,
	}
	sessionFlag = &cli.StringFlag{
		Name:     "session",
		Usage:    "session ID of the carrying transaction",
		Required: true,
	}
	txIndexFlag = &cli.IntFlag{
		Name:  "tx-index",
		Usage: "index of the carrying transaction",
	}
)

// valueEnv holds the key manager of a value subcommand.
type valueEnv struct {
	manager *keys.Manager
}

func newValueEnv(c *cli.Context) (*valueEnv, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return &valueEnv{manager: newManager(c, cfg)}, nil
}

// importSecret reads a textual secret from the named flag into secure memory.
func (e *valueEnv) importSecret(c *cli.Context, flag string) (*keys.KeyMaterial, error) {
	key, err := e.manager.ImportSecret(c.String(flag), 0)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", flag, err)
	}
	return key, nil
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON input: %w", err)
	}
	return v, nil
}

// readValue reads the JSON input of a value command.
func readValue(c *cli.Context) (any, error) {
	data, err := readInput(c)
	if err != nil {
		return nil, err
	}
	return decodeJSON(data)
}

func readText(c *cli.Context) (string, error) {
	data, err := readInput(c)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func sealMaterial(c *cli.Context) keys.SealNonceMaterial {
	return keys.SealNonceMaterial{
		In: c.String(coValueFlag.Name),
		Tx: keys.TransactionID{SessionID: c.String(sessionFlag.Name), TxIndex: c.Int(txIndexFlag.Name)},
	}
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func valueCommand() *cli.Command {
	return &cli.Command{
		Name:  "value",
		Usage: "JSON value operations in the Jazz wire format",
		Subcommands: []*cli.Command{
			valueEncryptCommand(),
			valueDecryptCommand(),
			valueSealCommand(),
			valueUnsealCommand(),
			valueSealGroupCommand(),
			valueUnsealGroupCommand(),
			valueHashCommand(),
			valueSignCommand(),
			valueVerifyCommand(),
			valueEncryptKeyCommand(),
			valueDecryptKeyCommand(),
		},
	}
}

func valueEncryptCommand() *cli.Command {
	return &cli.Command{
		Name:  "encrypt",
		Usage: "encrypt a JSON value under a nonce derived from its nonce material",
		Flags: []cli.Flag{
			inFlag,
			nonceMaterialFlag,
			&cli.StringFlag{Name: "key", Usage: "key (keySecret_z…)", Required: true},
		},
		Action: func(c *cli.Context) error {
			env, err := newValueEnv(c)
			if err != nil {
				return err
			}
			material, err := decodeJSON([]byte(c.String(nonceMaterialFlag.Name)))
			if err != nil {
				return fmt.Errorf("--%s: %w", nonceMaterialFlag.Name, err)
			}
			value, err := readValue(c)
			if err != nil {
				return err
			}
			key, err := env.importSecret(c, "key")
			if err != nil {
				return err
			}
			defer key.Destroy()

			encrypted, err := keys.EncryptValue(value, key, material)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, encrypted)
			return nil
		},
	}
}

func valueDecryptCommand() *cli.Command {
	return &cli.Command{
		Name:  "decrypt",
		Usage: "decrypt an encrypted_U value and print its JSON",
		Flags: []cli.Flag{
			inFlag,
			nonceMaterialFlag,
			&cli.StringFlag{Name: "key", Usage: "key (keySecret_z…)", Required: true},
		},
		Action: func(c *cli.Context) error {
			env, err := newValueEnv(c)
			if err != nil {
				return err
			}
			material, err := decodeJSON([]byte(c.String(nonceMaterialFlag.Name)))
			if err != nil {
				return fmt.Errorf("--%s: %w", nonceMaterialFlag.Name, err)
			}
			encrypted, err := readText(c)
			if err != nil {
				return err
			}
			key, err := env.importSecret(c, "key")
			if err != nil {
				return err
			}
			defer key.Destroy()

			var value any
			if err := keys.DecryptValue(encrypted, key, material, &value); err != nil {
				return err
			}
			return printJSON(c, value)
		},
	}
}

func valueSealCommand() *cli.Command {
	return &cli.Command{
		Name:  "seal",
		Usage: "seal a JSON value from a sealer secret to a sealer ID",
		Flags: []cli.Flag{
			inFlag, coValueFlag, sessionFlag, txIndexFlag,
			&cli.StringFlag{Name: "secret", Usage: "sender secret (sealerSecret_z…)", Required: true},
			&cli.StringFlag{Name: "to", Usage: "recipient (sealer_z…)", Required: true},
		},
		Action: func(c *cli.Context) error {
			env, err := newValueEnv(c)
			if err != nil {
				return err
			}
			value, err := readValue(c)
			if err != nil {
				return err
			}
			from, err := env.importSecret(c, "secret")
			if err != nil {
				return err
			}
			defer from.Destroy()

			sealed, err := keys.SealValue(value, from, c.String("to"), sealMaterial(c))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, sealed)
			return nil
		},
	}
}

func valueUnsealCommand() *cli.Command {
	return &cli.Command{
		Name:  "unseal",
		Usage: "open a sealed_U value",
		Flags: []cli.Flag{
			inFlag, coValueFlag, sessionFlag, txIndexFlag,
			&cli.StringFlag{Name: "secret", Usage: "recipient secret (sealerSecret_z…)", Required: true},
			&cli.StringFlag{Name: "from", Usage: "sender (sealer_z…)", Required: true},
		},
		Action: func(c *cli.Context) error {
			env, err := newValueEnv(c)
			if err != nil {
				return err
			}
			sealed, err := readText(c)
			if err != nil {
				return err
			}
			sealer, err := env.importSecret(c, "secret")
			if err != nil {
				return err
			}
			defer sealer.Destroy()

			var value any
			if err := keys.UnsealValue(sealed, sealer, c.String("from"), sealMaterial(c), &value); err != nil {
				return err
			}
			return printJSON(c, value)
		},
	}
}

func valueSealGroupCommand() *cli.Command {
	return &cli.Command{
		Name:  "seal-group",
		Usage: "seal a JSON value to a group sealer ID under an ephemeral key",
		Flags: []cli.Flag{
			inFlag, coValueFlag, sessionFlag, txIndexFlag,
			&cli.StringFlag{Name: "to", Usage: "group sealer (sealer_z…)", Required: true},
		},
		Action: func(c *cli.Context) error {
			value, err := readValue(c)
			if err != nil {
				return err
			}
			sealed, err := keys.SealValueForGroup(value, c.String("to"), sealMaterial(c))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, sealed)
			return nil
		},
	}
}

func valueUnsealGroupCommand() *cli.Command {
	return &cli.Command{
		Name:  "unseal-group",
		Usage: "open a sealedForGroup_U value",
		Flags: []cli.Flag{
			inFlag, coValueFlag, sessionFlag, txIndexFlag,
			&cli.StringFlag{Name: "secret", Usage: "group sealer secret (sealerSecret_z…)", Required: true},
		},
		Action: func(c *cli.Context) error {
			env, err := newValueEnv(c)
			if err != nil {
				return err
			}
			sealed, err := readText(c)
			if err != nil {
				return err
			}
			sealer, err := env.importSecret(c, "secret")
			if err != nil {
				return err
			}
			defer sealer.Destroy()

			var value any
			if err := keys.UnsealValueForGroup(sealed, sealer, sealMaterial(c), &value); err != nil {
				return err
			}
			return printJSON(c, value)
		},
	}
}

func valueHashCommand() *cli.Command {
	return &cli.Command{
		Name:  "hash",
		Usage: "hash a JSON value; fails when --expect does not match",
		Flags: []cli.Flag{
			inFlag,
			&cli.BoolFlag{Name: "short", Usage: "print a shortHash_z value"},
			&cli.StringFlag{Name: "expect", Usage: "expected hash (hash_z…)"},
		},
		Action: func(c *cli.Context) error {
			value, err := readValue(c)
			if err != nil {
				return err
			}

			if want := c.String("expect"); want != "" {
				ok, err := keys.MatchesHash(value, want)
				if err != nil {
					return err
				}
				if !ok {
					return errHashMismatch
				}
				fmt.Fprintln(c.App.Writer, "match")
				return nil
			}

			hash := keys.SecureHash
			if c.Bool("short") {
				hash = keys.ShortHash
			}
			out, err := hash(value)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, out)
			return nil
		},
	}
}

func valueSignCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign",
		Usage: "sign a JSON value",
		Flags: []cli.Flag{
			inFlag,
			&cli.StringFlag{Name: "secret", Usage: "signing secret (signerSecret_z…)", Required: true},
		},
		Action: func(c *cli.Context) error {
			env, err := newValueEnv(c)
			if err != nil {
				return err
			}
			value, err := readValue(c)
			if err != nil {
				return err
			}
			signer, err := env.importSecret(c, "secret")
			if err != nil {
				return err
			}
			defer signer.Destroy()

			sig, err := keys.SignValue(signer, value)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, sig)
			return nil
		},
	}
}

func valueVerifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "verify a signature of a JSON value; fails when invalid",
		Flags: []cli.Flag{
			inFlag,
			&cli.StringFlag{Name: "signer", Usage: "signer ID (signer_z…)", Required: true},
			&cli.StringFlag{Name: "signature", Usage: "signature (signature_z…)", Required: true},
		},
		Action: func(c *cli.Context) error {
			value, err := readValue(c)
			if err != nil {
				return err
			}
			ok, err := keys.VerifyValue(c.String("signature"), value, c.String("signer"))
			if err != nil {
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

func valueEncryptKeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "encrypt-key",
		Usage: "encrypt a key secret under another key and print the result as JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key", Usage: "key to encrypt (keySecret_z…)", Required: true},
			&cli.StringFlag{Name: "key-id", Usage: "its ID (key_z…)", Required: true},
			&cli.StringFlag{Name: "with", Usage: "encrypting key (keySecret_z…)", Required: true},
			&cli.StringFlag{Name: "with-id", Usage: "its ID (key_z…)", Required: true},
		},
		Action: func(c *cli.Context) error {
			env, err := newValueEnv(c)
			if err != nil {
				return err
			}
			toEncrypt, err := env.importSecret(c, "key")
			if err != nil {
				return err
			}
			defer toEncrypt.Destroy()
			encrypting, err := env.importSecret(c, "with")
			if err != nil {
				return err
			}
			defer encrypting.Destroy()

			info, err := keys.EncryptKeySecret(
				keys.KeyRef{ID: c.String("key-id"), Secret: toEncrypt},
				keys.KeyRef{ID: c.String("with-id"), Secret: encrypting},
			)
			if err != nil {
				return err
			}
			return printJSON(c, info)
		},
	}
}

func valueDecryptKeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "decrypt-key",
		Usage: "decrypt the JSON output of encrypt-key and print the key secret",
		Flags: []cli.Flag{
			inFlag,
			&cli.StringFlag{Name: "with", Usage: "encrypting key (keySecret_z…)", Required: true},
		},
		Action: func(c *cli.Context) error {
			env, err := newValueEnv(c)
			if err != nil {
				return err
			}
			data, err := readInput(c)
			if err != nil {
				return err
			}
			var info keys.EncryptedKeySecret
			if err := json.Unmarshal(data, &info); err != nil {
				return fmt.Errorf("invalid encrypted key secret: %w", err)
			}
			encrypting, err := env.importSecret(c, "with")
			if err != nil {
				return err
			}
			defer encrypting.Destroy()

			key, err := env.manager.DecryptKeySecret(&info, encrypting)
			if err != nil {
				return err
			}
			defer key.Destroy()

			text, err := keys.FormatSecret(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, text)
			return nil
		},
	}
}
