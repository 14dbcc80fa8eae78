//go:build !linux && !darwin

package iosink

import "os"

// fsync falls back to the standard library's Sync on platforms without a
// raw unix syscall table.
func fsync(f *os.File) error {
	return f.Sync()
}
