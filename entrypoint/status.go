package entrypoint

import (
	"errors"
	"fmt"

	"jazz-tools/jazz-crypto/crypto"
)

// Status is the result code of every entry point. The numbering is part of
// the C ABI and never changes.
type Status uint32

const (
	StatusOK               Status = 0
	StatusAllocation       Status = 1
	StatusAuth             Status = 2
	StatusInvalidParameter Status = 3
	StatusUninitialized    Status = 4
	StatusInternal         Status = 5
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusAllocation:
		return "allocation failure"
	case StatusAuth:
		return "authentication failure"
	case StatusInvalidParameter:
		return "invalid parameter"
	case StatusUninitialized:
		return "uninitialized"
	case StatusInternal:
		return "internal error"
	default:
		return fmt.Sprintf("status(%d)", uint32(s))
	}
}

// Err returns the sentinel error for s, nil for StatusOK.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusAllocation:
		return crypto.ErrAllocation
	case StatusAuth:
		return crypto.ErrAuth
	case StatusInvalidParameter:
		return crypto.ErrInvalidParameter
	case StatusUninitialized:
		return crypto.ErrUninitialized
	default:
		return fmt.Errorf("jazz-crypto: %s", s)
	}
}

// StatusOf maps an error to its status code.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, crypto.ErrAllocation):
		return StatusAllocation
	case errors.Is(err, crypto.ErrAuth):
		return StatusAuth
	case errors.Is(err, crypto.ErrInvalidParameter):
		return StatusInvalidParameter
	case errors.Is(err, crypto.ErrUninitialized):
		return StatusUninitialized
	default:
		return StatusInternal
	}
}
