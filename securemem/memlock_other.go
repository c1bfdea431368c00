//go:build !linux

package securemem

// memlockLimit reports no limit; memguard's own failure path applies.
func memlockLimit() (limit int64, limited bool) {
	return 0, false
}
