// Command libjazzcrypto builds the entry-point surface as a C shared
// library:
//
//	go build -buildmode=c-shared -o libjazzcrypto.so ./cmd/libjazzcrypto
//
// Every jc_* function takes pointer and length pairs, writes results into
// caller-owned buffers and returns an entrypoint.Status code.
package main

import "unsafe"

func main() {}

// view returns the n bytes at p without copying. A nil pointer or zero
// length is an empty slice.
func view(p unsafe.Pointer, n int) []byte {
	if p == nil || n <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}
