// Package iosink wraps the Emitter's file sink with a durability
// guarantee: closing the wrapper fsyncs the underlying file before
// closing it, so a crash immediately after a slicing job finishes cannot
// leave a truncated G-code file for an unattended printer to consume.
//
// This is purely additive to gcode.Emitter.SetFilename -- it does not
// replace the Emitter's own *os.File sink, it just owns the final
// sync-then-close step the caller runs once slicing is done.
package iosink

import (
	"os"

	"fdmtoolpath/pkg/errors"
)

// DurableFile wraps an open file sink so that Close syncs its contents to
// stable storage before releasing the descriptor.
type DurableFile struct {
	f *os.File
}

// Open creates (truncating) path and returns a DurableFile wrapping it.
func Open(path string) (*DurableFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.IOError("iosink.Open", err)
	}
	return &DurableFile{f: f}, nil
}

// Wrap adapts an already-open file, such as the one a gcode.Emitter
// opened internally via SetFilename, for durable closing.
func Wrap(f *os.File) *DurableFile {
	return &DurableFile{f: f}
}

// File returns the underlying *os.File, e.g. to hand to
// gcode.Emitter.SetSink.
func (d *DurableFile) File() *os.File {
	return d.f
}

// Close fsyncs the file and closes it. A sync failure is surfaced as an
// I/O error and the file is still closed on the way out.
func (d *DurableFile) Close() error {
	syncErr := fsync(d.f)
	closeErr := d.f.Close()
	if syncErr != nil {
		return errors.IOError("iosink.Close", syncErr)
	}
	if closeErr != nil {
		return errors.IOError("iosink.Close", closeErr)
	}
	return nil
}
