package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextToBytes(t *testing.T) {
	tests := []struct {
		name string
		ctx  CryptoContext
		want string
	}{
		{name: "nil", ctx: nil, want: "{}"},
		{name: "empty", ctx: CryptoContext{}, want: "{}"},
		{name: "single", ctx: CryptoContext{"namespace": "default"}, want: `{"namespace":"default"}`},
		{name: "sorted", ctx: CryptoContext{"z": "1", "a": "2", "m": "3"}, want: `{"a":"2","m":"3","z":"1"}`},
		{name: "no html escaping", ctx: CryptoContext{"q": "<a&b>"}, want: `{"q":"<a&b>"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(ContextToBytes(tt.ctx)))
		})
	}
}

func TestStableJSON_SortsNestedObjects(t *testing.T) {
	type inner struct {
		Zeta  int `json:"zeta"`
		Alpha int `json:"alpha"`
	}
	v := struct {
		Tx    inner  `json:"tx"`
		Agent string `json:"agent"`
	}{Tx: inner{Zeta: 1, Alpha: 2}, Agent: "co_z1"}

	got, err := StableJSON(v)
	require.NoError(t, err)
	assert.Equal(t, `{"agent":"co_z1","tx":{"alpha":2,"zeta":1}}`, string(got))

	_, err = StableJSON(func() {})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestNonceFromMaterial(t *testing.T) {
	material := map[string]any{"in": "co_zGroup", "tx": map[string]any{"sessionID": "s", "txIndex": 3}}

	a, err := NonceFromMaterial(material, SealNonceSize)
	require.NoError(t, err)
	b, err := NonceFromMaterial(material, SealNonceSize)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, SealNonceSize)

	encoded, err := StableJSON(material)
	require.NoError(t, err)
	sum := Sum(encoded)
	assert.Equal(t, sum[:SealNonceSize], a)

	material["tx"].(map[string]any)["txIndex"] = 4
	c, err := NonceFromMaterial(material, SealNonceSize)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = NonceFromMaterial(material, 33)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestStableJSON_LineSeparators(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "line separator", value: "a\u2028b", want: "\"a\u2028b\""},
		{name: "paragraph separator", value: "a\u2029b", want: "\"a\u2029b\""},
		{name: "escaped backslash before u2028 text", value: `\u2028`, want: `"\\u2028"`},
		{name: "control characters stay escaped", value: "tab\tnl\n", want: `"tab\tnl\n"`},
		{name: "html kept", value: map[string]string{"k": "<&>"}, want: `{"k":"<&>"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StableJSON(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}
