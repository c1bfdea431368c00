package entrypoint

import (
	"encoding/hex"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"jazz-tools/jazz-crypto/config"
	"jazz-tools/jazz-crypto/securemem"
)

func reset() {
	initOnce = sync.Once{}
	initStatus = StatusOK
	current.Store(nil)
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Memory.Backing = securemem.BackingHeap.String()
	return &cfg
}

// setup initializes the library for one test and resets it afterwards.
func setup(t *testing.T, opts Options) {
	t.Helper()
	reset()
	t.Cleanup(reset)

	if opts.Config == nil {
		opts.Config = testConfig()
	}
	require.Equal(t, StatusOK, InitializeWith(opts))
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}
