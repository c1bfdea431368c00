package crypto

import (
	"errors"
	"fmt"

	"jazz-tools/jazz-crypto/securemem"
)

var (
	// ErrAllocation is returned when secure memory cannot be allocated.
	ErrAllocation = securemem.ErrAllocation

	// ErrAuth is returned when authentication or integrity verification
	// fails. No plaintext accompanies it.
	ErrAuth = errors.New("authentication failed")

	// ErrInvalidParameter is returned for malformed keys, nonces, signatures
	// or algorithm identifiers, and for a detected nonce reuse.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrUninitialized is returned when an entry point is used before the
	// library is initialized.
	ErrUninitialized = errors.New("library not initialized")

	// ErrUnsupportedAlgorithm is an ErrInvalidParameter for algorithm
	// identifiers that are unknown or used for the wrong operation.
	ErrUnsupportedAlgorithm = fmt.Errorf("%w: unsupported algorithm", ErrInvalidParameter)

	// ErrNonceReuse is an ErrInvalidParameter raised by NonceGuard.
	ErrNonceReuse = fmt.Errorf("%w: nonce reuse", ErrInvalidParameter)
)

func invalidLength(what string, got, want int) error {
	return fmt.Errorf("%w: %s length %d, want %d", ErrInvalidParameter, what, got, want)
}
