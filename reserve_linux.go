//go:build linux

package prefixtable

import (
	"os"

	"golang.org/x/sys/unix"
)

// reserveFile sizes a table file before it is mapped for writing, so a full
// disk surfaces as an error here instead of SIGBUS during the copy.
func reserveFile(f *os.File, size int64) error {
	fd := int(f.Fd())
	if err := unix.Fallocate(fd, 0, 0, size); err != nil {
		// tmpfs on old kernels, NFS: fall back to a sparse resize.
		return unix.Ftruncate(fd, size)
	}
	return unix.Ftruncate(fd, size)
}
