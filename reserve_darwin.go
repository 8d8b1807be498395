//go:build darwin

package prefixtable

import (
	"os"

	"golang.org/x/sys/unix"
)

// reserveFile sizes a table file before it is mapped for writing.
// F_PREALLOCATE only reserves blocks, so the size is always set with ftruncate.
func reserveFile(f *os.File, size int64) error {
	store := unix.Fstore_t{
		Flags:   unix.F_ALLOCATEALL,
		Posmode: unix.F_PEOFPOSMODE,
		Length:  size,
	}
	_ = unix.FcntlFstore(f.Fd(), unix.F_PREALLOCATE, &store)
	return unix.Ftruncate(int(f.Fd()), size)
}
