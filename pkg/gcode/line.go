package gcode

import (
	"fmt"

	"fdmtoolpath/pkg/errors"
	"fdmtoolpath/pkg/gflavor"
)

// writeLine is the single choke point every checksummed command passes
// through: optional obfuscation, the 96-character budget check, the XOR
// checksum, and the flavor line terminator.
func (e *Emitter) writeLine(body string) error {
	if e.obfuscateCmd {
		body = caesarShift(body)
	}
	if len(body) > maxLineLen {
		return errors.StateError("writeLine", fmt.Sprintf("line exceeds %d-character budget: %q", maxLineLen, body))
	}
	checksum := xorChecksum(body)
	full := fmt.Sprintf("%s $%d%s", body, checksum, e.caps.LineEnd)
	if _, err := e.sink.Write([]byte(full)); err != nil {
		return errors.IOError("writeLine", err)
	}
	return nil
}

// xorChecksum XORs every byte of body; the emitted checksum is exactly
// this value, computed after obfuscation, since obfuscation is defined
// as affecting the checksum contract.
func xorChecksum(body string) byte {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return sum
}

// caesarShift applies the reversible per-position shift described in
// §4.1.2: letters move within their case by (20+pos) mod 26, digits by
// (20+pos) mod 10, everything else is untouched.
func caesarShift(body string) string {
	b := []byte(body)
	for i := range b {
		c := b[i]
		switch {
		case c >= 'a' && c <= 'z':
			shift := byte((20 + i) % 26)
			b[i] = 'a' + (c-'a'+shift)%26
		case c >= 'A' && c <= 'Z':
			shift := byte((20 + i) % 26)
			b[i] = 'A' + (c-'A'+shift)%26
		case c >= '0' && c <= '9':
			shift := byte((20 + i) % 10)
			b[i] = '0' + (c-'0'+shift)%10
		}
	}
	return string(b)
}

// WriteComment emits a ";"-prefixed comment line. Comments carry no
// checksum suffix, unlike the commands writeLine assembles.
func (e *Emitter) WriteComment(format string, args ...interface{}) error {
	body := ";" + fmt.Sprintf(format, args...)
	if _, err := e.sink.Write([]byte(body + e.caps.LineEnd)); err != nil {
		return errors.IOError("writeComment", err)
	}
	return nil
}

// WriteCode emits a verbatim block (a user-supplied pre/post/end script)
// followed by the flavor line terminator. Verbatim blocks carry no
// checksum suffix and are not obfuscated.
func (e *Emitter) WriteCode(literal string) error {
	if literal == "" {
		return nil
	}
	if _, err := e.sink.Write([]byte(literal + e.caps.LineEnd)); err != nil {
		return errors.IOError("writeCode", err)
	}
	return nil
}

// WriteDelay emits a G4 dwell for the given number of seconds and folds
// it into the accumulated print time.
func (e *Emitter) WriteDelay(seconds float64) error {
	ms := int(seconds*1000.0 + 0.5)
	if err := e.writeLine(fmt.Sprintf("G4 P%d", ms)); err != nil {
		return err
	}
	e.totalPrintTime += seconds
	return nil
}

// WriteFanCommand sets the fan to percent (0-100). It is a no-op if
// percent matches the last commanded fan speed.
func (e *Emitter) WriteFanCommand(percent int) error {
	if percent == e.currentFanSpeed {
		return nil
	}
	var body string
	if percent <= 0 {
		body = e.caps.FanOff()
	} else {
		body = e.caps.FanOn(gflavor.FanDuty(percent))
	}
	if err := e.writeLine(body); err != nil {
		return err
	}
	e.currentFanSpeed = percent
	return nil
}

// TotalPrintTimeSeconds returns the accumulated dwell time plus whatever
// has been folded in from the time-estimate kernel by UpdateTotalPrintTime.
// It does not include motion planned since the last fold-in.
func (e *Emitter) TotalPrintTimeSeconds() float64 {
	return e.totalPrintTime
}
