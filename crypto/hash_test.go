package crypto

import (
	"encoding/hex"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_KnownAnswers(t *testing.T) {
	tests := []struct {
		alg  Algorithm
		want string
	}{
		{alg: BLAKE3, want: "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"},
		{alg: BLAKE2b256, want: "0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8"},
		{alg: SHA256, want: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
	}

	for _, tt := range tests {
		t.Run(tt.alg.String(), func(t *testing.T) {
			sum, err := Hash(tt.alg, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hex.EncodeToString(sum))

			h, err := NewHash(tt.alg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hex.EncodeToString(h.Sum(nil)))
		})
	}
}

func TestHash_DeterministicWithoutCollisions(t *testing.T) {
	for _, alg := range []Algorithm{BLAKE3, BLAKE2b256, SHA256} {
		t.Run(alg.String(), func(t *testing.T) {
			seen := make(map[string]string)
			for i := 0; i < 1000; i++ {
				input := fmt.Sprintf("input-%d", i)

				a, err := Hash(alg, []byte(input))
				require.NoError(t, err)
				b, err := Hash(alg, []byte(input))
				require.NoError(t, err)
				assert.Equal(t, a, b)
				assert.Len(t, a, DigestSize)

				prev, dup := seen[string(a)]
				assert.False(t, dup, "%q collides with %q", input, prev)
				seen[string(a)] = input
			}
		})
	}
}

func TestHash_StreamingMatchesOneShot(t *testing.T) {
	data := []byte("streamed in several writes")

	for _, alg := range []Algorithm{BLAKE3, BLAKE2b256, SHA256} {
		h, err := NewHash(alg)
		require.NoError(t, err)
		_, _ = io.WriteString(h, "streamed ")
		_, _ = io.WriteString(h, "in several ")
		_, _ = io.WriteString(h, "writes")

		want, err := Hash(alg, data)
		require.NoError(t, err)
		assert.Equal(t, want, h.Sum(nil), alg.String())
	}
}

func TestHash_RejectsNonHashAlgorithms(t *testing.T) {
	_, err := Hash(Ed25519, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = NewHash(ChaCha20Poly1305)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestHashWithContext(t *testing.T) {
	got := HashWithContext([]byte("seal"), []byte("seed"))
	assert.Equal(t, Sum([]byte("sealseed")), got)
	assert.NotEqual(t, HashWithContext([]byte("sign"), []byte("seed")), got)

	expanded, err := Expand([]byte("seal"), []byte("seed"), DigestSize)
	require.NoError(t, err)
	assert.Equal(t, got[:], expanded)

	long, err := Expand([]byte("seal"), []byte("seed"), 64)
	require.NoError(t, err)
	assert.Equal(t, got[:], long[:DigestSize])

	_, err = Expand(nil, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}
