package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"jazz-tools/jazz-crypto/securemem"
)

// randReader is the process-wide random source. Tests replace it.
var randReader io.Reader = rand.Reader

var (
	randOnce sync.Once
	randErr  error
)

// InitRandom reads from the random source once to check it works. Later
// calls return the result of the first read.
func InitRandom() error {
	randOnce.Do(func() {
		sample := make([]byte, KeySize)
		defer securemem.Wipe(sample)

		if _, err := io.ReadFull(randReader, sample); err != nil {
			randErr = fmt.Errorf("random source unavailable: %w", err)
		}
	})
	return randErr
}

// Fill fills b from the random source. A read failure aborts the process:
// every caller of Fill is about to produce key material or a nonce.
func Fill(b []byte) {
	if len(b) == 0 {
		return
	}
	if _, err := io.ReadFull(randReader, b); err != nil {
		securemem.Wipe(b)
		securemem.Abort("random source failed", err)
	}
}

// Random returns n random bytes.
func Random(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: random length %d", ErrInvalidParameter, n)
	}
	b := make([]byte, n)
	Fill(b)
	return b, nil
}
