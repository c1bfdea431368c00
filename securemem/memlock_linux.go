//go:build linux

package securemem

import (
	"math"

	"golang.org/x/sys/unix"
)

// memlockLimit returns the RLIMIT_MEMLOCK soft limit. limited is false when
// the limit is infinite or cannot be read.
func memlockLimit() (limit int64, limited bool) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rl); err != nil {
		return 0, false
	}
	if rl.Cur == unix.RLIM_INFINITY || rl.Cur > math.MaxInt64 {
		return 0, false
	}
	return int64(rl.Cur), true
}
