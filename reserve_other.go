//go:build !linux && !darwin

package prefixtable

import "os"

// reserveFile sizes a table file before it is mapped for writing.
func reserveFile(f *os.File, size int64) error {
	return f.Truncate(size)
}
