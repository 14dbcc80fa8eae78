// Package tagpatch rewrites a reserved placeholder token in the first KiB
// of an already-written file, used by the emitter's ULTIGCODE finalize
// step to fill in the print time and filament totals that are only known
// once the whole file has been written.
package tagpatch

import (
	"bytes"
	"fmt"
	"io"

	"fdmtoolpath/pkg/errors"
)

const windowSize = 1024

// Logger is the minimal external collaborator the patcher reports through
// when it has to skip a non-seekable sink.
type Logger interface {
	Logf(format string, args ...interface{})
}

// Seeker is the capability a sink needs for tag patching: read, write and
// seek, so the header window can be re-read, edited, and written back
// without disturbing the caller's current write offset.
type Seeker interface {
	io.Reader
	io.Writer
	io.Seeker
}

// ReplaceTagInStart seeks to offset 0 of sink, reads the first KiB, blanks
// out tag with spaces, overwrites the blanked region with value, rewrites
// the window, and restores the sink's prior offset.
//
// If sink does not implement Seeker, or implements it but the underlying
// descriptor rejects the seek at runtime (e.g. stdout connected to a pipe
// or terminal: *os.File satisfies Seeker structurally regardless of what
// it is actually attached to), the patch is skipped and logged rather
// than attempted: the contract only promises tag rewriting for sinks that
// are genuinely rewindable, not merely shaped like one.
func ReplaceTagInStart(sink io.Writer, tag, value string, log Logger) error {
	seeker, ok := sink.(Seeker)
	if !ok {
		if log != nil {
			log.Logf("tagpatch: sink is not seekable, skipping replacement of %s", tag)
		}
		return nil
	}

	oldPos, err := seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		if log != nil {
			log.Logf("tagpatch: sink is not seekable, skipping replacement of %s", tag)
		}
		return nil
	}

	if len(value) > len(tag) {
		return errors.StateError("tagpatch.ReplaceTagInStart", fmt.Sprintf("replacement %q longer than tag %q", value, tag))
	}

	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return errors.IOError("tagpatch.ReplaceTagInStart", err)
	}

	buf := make([]byte, windowSize)
	n, err := io.ReadFull(seeker, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return errors.IOError("tagpatch.ReplaceTagInStart", err)
	}
	buf = buf[:n]

	idx := bytes.Index(buf, []byte(tag))
	if idx < 0 {
		return errors.StateError("tagpatch.ReplaceTagInStart", fmt.Sprintf("tag %q not found in first %d bytes", tag, windowSize))
	}

	for i := 0; i < len(tag); i++ {
		buf[idx+i] = ' '
	}
	copy(buf[idx:idx+len(value)], value)

	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return errors.IOError("tagpatch.ReplaceTagInStart", err)
	}
	if _, err := seeker.Write(buf); err != nil {
		return errors.IOError("tagpatch.ReplaceTagInStart", err)
	}

	if _, err := seeker.Seek(oldPos, io.SeekStart); err != nil {
		return errors.IOError("tagpatch.ReplaceTagInStart", err)
	}
	return nil
}
