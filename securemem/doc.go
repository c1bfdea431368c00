// Package securemem governs the allocation, zeroing and lifetime of buffers
// that hold secret material.
//
// Buffers come from an Allocator with a configured size ceiling. The default
// backing is a memguard LockedBuffer (mlocked, guard pages, canary). A plain
// heap backing exists for platforms without mlock and for test harnesses that
// need to re-read released memory.
//
// Every buffer is zeroed before its memory is handed back, on all exit paths:
//
//	err := alloc.With(32, func(buf *securemem.Buffer) error {
//	    return fill(buf.Bytes())
//	})
//
// A Buffer is owned by whoever allocated it and must not be shared between
// goroutines. Use Transfer to hand ownership over explicitly.
package securemem
