package securemem

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/awnumar/memguard"
	"go.uber.org/zap"
)

// DefaultCeiling is the largest buffer an Allocator hands out unless
// configured otherwise.
const DefaultCeiling = 1 << 20

// ErrAllocation is returned when a buffer cannot be allocated.
var ErrAllocation = errors.New("secure memory allocation failed")

// Backing selects where buffer memory lives.
type Backing int

const (
	// BackingLocked uses memguard locked buffers.
	BackingLocked Backing = iota
	// BackingHeap uses ordinary Go memory, zeroed on release.
	BackingHeap
)

func (b Backing) String() string {
	switch b {
	case BackingLocked:
		return "locked"
	case BackingHeap:
		return "heap"
	default:
		return fmt.Sprintf("backing(%d)", int(b))
	}
}

// ParseBacking converts a config value to a Backing. Empty means locked.
func ParseBacking(s string) (Backing, error) {
	switch s {
	case "", "locked":
		return BackingLocked, nil
	case "heap":
		return BackingHeap, nil
	default:
		return 0, fmt.Errorf("unknown memory backing %q", s)
	}
}

// Config holds allocator settings.
type Config struct {
	Ceiling int
	Backing Backing
}

// Allocator hands out Buffers. Its configuration is immutable, so one
// Allocator may be used from many goroutines.
type Allocator struct {
	ceiling int
	backing Backing
	logger  *zap.Logger
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithLogger sets the allocator's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Allocator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAllocator creates an allocator. A non-positive ceiling selects
// DefaultCeiling.
func NewAllocator(cfg Config, opts ...Option) *Allocator {
	ceiling := cfg.Ceiling
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}

	a := &Allocator{
		ceiling: ceiling,
		backing: cfg.Backing,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ceiling returns the maximum buffer size.
func (a *Allocator) Ceiling() int {
	return a.ceiling
}

// Backing returns the configured backing.
func (a *Allocator) Backing() Backing {
	return a.backing
}

// Allocate returns a zero-filled buffer of size bytes.
func (a *Allocator) Allocate(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d must be positive", ErrAllocation, size)
	}
	if size > a.ceiling {
		a.logger.Warn("secure allocation over ceiling",
			zap.Int("size", size),
			zap.Int("ceiling", a.ceiling))
		return nil, fmt.Errorf("%w: size %d exceeds ceiling %d", ErrAllocation, size, a.ceiling)
	}

	if a.backing == BackingHeap {
		return &Buffer{heap: make([]byte, size), size: size}, nil
	}

	footprint := lockedFootprint(size)
	if err := reserveLocked(footprint); err != nil {
		a.logger.Warn("locked memory budget exhausted", zap.Int("size", size), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrAllocation, err)
	}

	locked, err := newLocked(size)
	if err != nil {
		lockedBytes.Add(-footprint)
		a.logger.Error("locked allocation failed", zap.Int("size", size), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrAllocation, err)
	}
	return &Buffer{locked: locked, size: size, footprint: footprint}, nil
}

// AllocateFrom allocates a buffer holding a copy of src and wipes src.
func (a *Allocator) AllocateFrom(src []byte) (*Buffer, error) {
	buf, err := a.Allocate(len(src))
	if err != nil {
		return nil, err
	}
	copy(buf.Bytes(), src)
	Wipe(src)
	return buf, nil
}

// Release zeroes and frees buf.
func (a *Allocator) Release(buf *Buffer) {
	buf.Release()
}

// With allocates a buffer, runs fn with it and releases it on every exit
// path, including a panic inside fn.
func (a *Allocator) With(size int, fn func(buf *Buffer) error) error {
	buf, err := a.Allocate(size)
	if err != nil {
		return err
	}
	defer buf.Release()

	return fn(buf)
}

var pageSize = int64(os.Getpagesize())

// memguardReserve covers the pages memguard locks for its own enclave keys.
var memguardReserve = 4 * pageSize

// lockedBytes counts the pages held by live locked buffers.
var lockedBytes atomic.Int64

// lockLimit is replaced in tests.
var lockLimit = memlockLimit

// lockedFootprint is the number of bytes memguard mlocks for a buffer of
// size bytes: the data rounded up to whole pages.
func lockedFootprint(size int) int64 {
	n := int64(size)
	return (n + pageSize - 1) / pageSize * pageSize
}

// reserveLocked books n bytes against RLIMIT_MEMLOCK. memguard purges every
// live buffer when mlock fails, so an allocation that would exceed the limit
// must be refused before memguard sees it.
func reserveLocked(n int64) error {
	limit, limited := lockLimit()
	for {
		inUse := lockedBytes.Load()
		if limited && inUse+n+memguardReserve > limit {
			return fmt.Errorf("locked memory limit %d bytes reached, %d in use", limit, inUse)
		}
		if lockedBytes.CompareAndSwap(inUse, inUse+n) {
			return nil
		}
	}
}

// newLocked converts memguard's allocation panic into an error.
func newLocked(size int) (buf *memguard.LockedBuffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("memguard: %v", r)
		}
	}()

	buf = memguard.NewBuffer(size)
	if !buf.IsAlive() {
		return nil, errors.New("memguard returned a dead buffer")
	}
	return buf, nil
}

// ErrFatal is the panic value, wrapped, of Abort.
var ErrFatal = errors.New("jazz-crypto: fatal")

// Abort wipes every memguard-managed buffer and panics with an error
// wrapping ErrFatal. It is reserved for corrupted internal state where
// continuing would operate on compromised secrets.
func Abort(reason string, err error) {
	memguard.SafePanic(fmt.Errorf("%w: %s: %v", ErrFatal, reason, err))
}
