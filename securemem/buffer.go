package securemem

import (
	"errors"

	"github.com/awnumar/memguard"
)

// ErrPurged is returned for a locked buffer that memguard destroyed behind
// its owner's back, as it does on a fatal memguard error.
var ErrPurged = errors.New("secure memory purged")

// Buffer is a byte region whose backing memory is zeroed on release.
type Buffer struct {
	locked    *memguard.LockedBuffer
	heap      []byte
	size      int
	footprint int64
	released  bool
}

// Bytes returns the live region. It returns nil once the buffer is released,
// transferred or purged.
func (b *Buffer) Bytes() []byte {
	if !b.Alive() {
		return nil
	}
	if b.locked != nil {
		return b.locked.Bytes()
	}
	return b.heap
}

// Len returns the size of the region, 0 after release or a purge.
func (b *Buffer) Len() int {
	if !b.Alive() {
		return 0
	}
	return b.size
}

// Alive reports whether the region can still be read.
func (b *Buffer) Alive() bool {
	if b == nil || b.released {
		return false
	}
	return b.locked == nil || b.locked.IsAlive()
}

// Purged reports whether memguard destroyed the region before Release.
func (b *Buffer) Purged() bool {
	return b != nil && !b.released && b.locked != nil && !b.locked.IsAlive()
}

// Released reports whether the buffer no longer owns memory.
func (b *Buffer) Released() bool {
	return b == nil || b.released
}

// Locked reports whether the region is backed by mlocked memory.
func (b *Buffer) Locked() bool {
	return b != nil && !b.released && b.locked != nil
}

// Release zeroes the region and frees the backing memory. It is safe to call
// more than once.
func (b *Buffer) Release() {
	if b == nil || b.released {
		return
	}
	b.released = true

	if b.locked != nil {
		memguard.WipeBytes(b.locked.Bytes())
		b.locked.Destroy()
		b.locked = nil
		lockedBytes.Add(-b.footprint)
		return
	}

	memguard.WipeBytes(b.heap)
	b.heap = nil
}

// Transfer moves ownership of the region to a new Buffer and invalidates b
// without zeroing. Used to hand a buffer to another goroutine or component.
func (b *Buffer) Transfer() *Buffer {
	if b == nil || b.released {
		return &Buffer{released: true}
	}
	moved := &Buffer{
		locked:    b.locked,
		heap:      b.heap,
		size:      b.size,
		footprint: b.footprint,
	}
	b.locked = nil
	b.heap = nil
	b.released = true
	return moved
}

// Wipe zeroes an arbitrary slice.
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	memguard.WipeBytes(b)
}

// WipeAll zeroes several slices.
func WipeAll(slices ...[]byte) {
	for _, s := range slices {
		Wipe(s)
	}
}
