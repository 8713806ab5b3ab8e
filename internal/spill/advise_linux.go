//go:build linux

package spill

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseSequential hints to the kernel that f will be read sequentially
// and in full, the same FADV_SEQUENTIAL/FADV_WILLNEED hint this
// codebase's large sequential-scan tool uses before streaming a file.
func adviseSequential(f *os.File) {
	fd := int(f.Fd())
	_ = unix.Fadvise(fd, 0, 0, unix.FADV_SEQUENTIAL)
	_ = unix.Fadvise(fd, 0, 0, unix.FADV_WILLNEED)
}
