package crypto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// CryptoContext carries key-value pairs bound to a ciphertext as associated
// data or mixed into key derivation.
type CryptoContext map[string]string

// ContextToBytes returns the canonical encoding of ctx: JSON with keys in
// sorted order. A nil or empty context encodes as "{}".
func ContextToBytes(ctx CryptoContext) []byte {
	if len(ctx) == 0 {
		return []byte("{}")
	}

	// string maps always marshal
	data, _ := StableJSON(map[string]string(ctx))
	return data
}

// StableJSON encodes v as JSON with object keys sorted at every level and
// without HTML escaping, so equal values always produce equal bytes.
func StableJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}

	// struct fields marshal in declaration order; a round trip through a
	// generic value turns every object into a sorted map
	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return unescapeLineSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// unescapeLineSeparators writes U+2028 and U+2029 literally, as JavaScript's
// JSON.stringify does. encoding/json always escapes them.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' || i+1 == len(data) {
			out = append(out, data[i])
			continue
		}
		if rest := data[i:]; bytes.HasPrefix(rest, []byte(`\u2028`)) || bytes.HasPrefix(rest, []byte(`\u2029`)) {
			out = utf8.AppendRune(out, 0x2028+rune(rest[5]-'8'))
			i += 5
			continue
		}
		// other escapes are copied whole, so `\\u2028` stays as written
		out = append(out, data[i], data[i+1])
		i++
	}
	return out
}

// NonceFromMaterial derives a deterministic nonce of size bytes from the
// stable JSON encoding of material.
func NonceFromMaterial(material any, size int) ([]byte, error) {
	if size <= 0 || size > DigestSize {
		return nil, fmt.Errorf("%w: nonce length %d", ErrInvalidParameter, size)
	}

	encoded, err := StableJSON(material)
	if err != nil {
		return nil, err
	}
	sum := Sum(encoded)
	return append([]byte(nil), sum[:size]...), nil
}
