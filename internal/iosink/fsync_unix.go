//go:build linux || darwin

package iosink

import (
	"os"

	"golang.org/x/sys/unix"
)

// fsync flushes f's contents to stable storage via the raw unix syscall,
// matching the donor codebase's own preference for golang.org/x/sys over
// higher-level wrappers when talking directly to the OS.
func fsync(f *os.File) error {
	return unix.Fsync(int(f.Fd()))
}
