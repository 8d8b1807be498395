//go:build linux

package prefixtable

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseSequential tells the kernel a route source is read front to back once.
// Best-effort: errors are ignored (pipes and sockets reject fadvise).
func adviseSequential(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}

// adviseWillNeed asks the kernel to read ahead a mapped table image.
// A query touches only log2(n) records, but they are scattered across the map.
func adviseWillNeed(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_WILLNEED)
}
