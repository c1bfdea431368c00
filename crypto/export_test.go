package crypto

import "io"

// setRandReader replaces the random source and returns a function that
// restores the previous one. Tests using it must not run in parallel.
func setRandReader(r io.Reader) func() {
	original := randReader
	randReader = r
	return func() { randReader = original }
}
