package entrypoint

import "sort"

// Table is the entry-point surface. Its fields are bound at compile time;
// hosts call through Functions.
type Table struct {
	Initialize func() Status

	GenerateKey func(alg uint32, out []byte) Status
	DeriveKey   func(alg uint32, master, context, out []byte) Status
	PublicKey   func(alg uint32, secret, out []byte) Status

	Encrypt func(alg uint32, key, nonce, plaintext, aad, out []byte) Status
	Decrypt func(alg uint32, key, nonce, sealed, aad, out []byte) Status

	Hash func(alg uint32, data, out []byte) Status

	Sign   func(alg uint32, secret, data, out []byte) Status
	Verify func(alg uint32, public, data, sig []byte) (bool, Status)

	Seal          func(alg uint32, secret, peerPublic, nonce, msg, out []byte) Status
	Open          func(alg uint32, secret, peerPublic, nonce, sealed, out []byte) Status
	SealAnonymous func(alg uint32, peerPublic, nonce, msg, out []byte) Status
	OpenAnonymous func(alg uint32, secret, nonce, sealed, out []byte) Status

	Random func(out []byte) Status
	Wipe   func(buf []byte) Status
	Sizes  func(alg uint32) (key, public, nonce, output uint32, status Status)
}

// Functions is the process-wide entry-point table.
var Functions = Table{
	Initialize:    Initialize,
	GenerateKey:   GenerateKey,
	DeriveKey:     DeriveKey,
	PublicKey:     PublicKey,
	Encrypt:       Encrypt,
	Decrypt:       Decrypt,
	Hash:          Hash,
	Sign:          Sign,
	Verify:        Verify,
	Seal:          Seal,
	Open:          Open,
	SealAnonymous: SealAnonymous,
	OpenAnonymous: OpenAnonymous,
	Random:        Random,
	Wipe:          Wipe,
	Sizes:         Sizes,
}

func (t *Table) entries() map[string]any {
	return map[string]any{
		"Initialize":    t.Initialize,
		"GenerateKey":   t.GenerateKey,
		"DeriveKey":     t.DeriveKey,
		"PublicKey":     t.PublicKey,
		"Encrypt":       t.Encrypt,
		"Decrypt":       t.Decrypt,
		"Hash":          t.Hash,
		"Sign":          t.Sign,
		"Verify":        t.Verify,
		"Seal":          t.Seal,
		"Open":          t.Open,
		"SealAnonymous": t.SealAnonymous,
		"OpenAnonymous": t.OpenAnonymous,
		"Random":        t.Random,
		"Wipe":          t.Wipe,
		"Sizes":         t.Sizes,
	}
}

// Lookup returns the table entry called name, for tooling that enumerates
// the surface. Callers type-assert the result to the field's signature.
func Lookup(name string) (any, bool) {
	fn, ok := Functions.entries()[name]
	return fn, ok
}

// Names lists the entries of the table in sorted order.
func Names() []string {
	entries := Functions.entries()
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
