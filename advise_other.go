//go:build !linux

package prefixtable

import "os"

// adviseSequential is a no-op; FADV_SEQUENTIAL is Linux-specific.
func adviseSequential(f *os.File) {}

// adviseWillNeed is a no-op outside Linux.
func adviseWillNeed(data []byte) {}
