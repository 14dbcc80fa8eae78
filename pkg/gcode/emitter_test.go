package gcode

import (
	"bytes"
	"io"
	"math"
	"strconv"
	"strings"
	"testing"

	"fdmtoolpath/pkg/colormix"
	"fdmtoolpath/pkg/geom"
	"fdmtoolpath/pkg/gflavor"
)

// memSink is a minimal in-memory Seeker, mirroring pkg/tagpatch's test
// helper, used wherever a test needs a rewindable sink (tag patching,
// finalize).
type memSink struct {
	buf []byte
	pos int64
}

func (m *memSink) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *memSink) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memSink) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		m.pos = offset
	case io.SeekCurrent:
		m.pos += offset
	case io.SeekEnd:
		m.pos = int64(len(m.buf)) + offset
	}
	return m.pos, nil
}

func newEmitter(t *testing.T) (*Emitter, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	e := New(nil)
	e.sink = &buf
	if err := e.SetExtrusion(0.1, 2.85, 100); err != nil {
		t.Fatalf("SetExtrusion: %v", err)
	}
	return e, &buf
}

// Scenario 1: REPRAP, single extruder, two-point extrusion.
func TestWriteMoveReprapExtrusion(t *testing.T) {
	e, buf := newEmitter(t)
	e.extrusionPerMM = 0.05

	if err := e.WriteMove(geom.Pt(10000, 0), 60, 400); err != nil {
		t.Fatalf("WriteMove: %v", err)
	}

	line := firstLine(t, buf.String())
	if !strings.HasPrefix(line, "G1 F3600 X10.000 Y0.000 E0.20000") {
		t.Fatalf("unexpected line: %q", line)
	}
	// 0.05 * 0.4mm * 10mm is not exactly representable in binary floating
	// point, so compare within a tight tolerance.
	if math.Abs(e.ExtrusionAmount()-0.2) > 1e-12 {
		t.Fatalf("extrusionAmount = %v, want 0.2", e.ExtrusionAmount())
	}
}

// Scenario 2: BFB travel-only move.
func TestWriteMoveBFBTravel(t *testing.T) {
	e, buf := newEmitter(t)
	if err := e.SetFlavor(gflavor.BFB); err != nil {
		t.Fatalf("SetFlavor: %v", err)
	}

	if err := e.WriteMove(geom.Pt(10000, 0), 60, 0); err != nil {
		t.Fatalf("WriteMove: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "M103") {
		t.Fatalf("expected M103 in output: %q", out)
	}
	if !strings.Contains(out, "G1 X10.000 Y0.000 Z0.000 F3600.0") {
		t.Fatalf("expected move line in output: %q", out)
	}
	if !strings.Contains(out, "\r\n") {
		t.Fatalf("expected CRLF terminator under BFB: %q", out)
	}
}

// Scenario 3: retraction gating.
func TestWriteRetractionGating(t *testing.T) {
	e, buf := newEmitter(t)
	e.SetRetractionSettings(4.5, 40, 4.5, 0, 0, 0)
	e.extrusionAmountAtPreviousRetraction = -10000

	if err := e.WriteMove(geom.Pt(10000, 0), 60, 400); err != nil {
		t.Fatalf("WriteMove: %v", err)
	}
	buf.Reset()

	if err := e.WriteRetraction(false); err != nil {
		t.Fatalf("WriteRetraction: %v", err)
	}
	if !e.IsRetracted() {
		t.Fatalf("expected isRetracted after WriteRetraction")
	}
	firstOut := buf.String()
	if strings.Count(firstOut, "\n") != 1 {
		t.Fatalf("expected exactly one retraction line, got %q", firstOut)
	}

	buf.Reset()
	if err := e.WriteRetraction(false); err != nil {
		t.Fatalf("WriteRetraction (second): %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no-op on already-retracted extruder, got %q", buf.String())
	}
}

// Scenario 4: tag patching via finalize under ULTIGCODE.
func TestFinalizeUltigcodeTagPatching(t *testing.T) {
	sink := &memSink{buf: []byte(";TIME:<__TIME__>\n;FIL:<FILAMENT>\n;FIL2:<FILAMEN2>\n")}
	sink.pos = int64(len(sink.buf)) // simulate the rest of the file already written

	e := New(nil)
	e.sink = sink
	if err := e.SetFlavor(gflavor.ULTIGCODE); err != nil {
		t.Fatalf("SetFlavor: %v", err)
	}
	if err := e.SetExtrusion(0.1, 2.85, 100); err != nil {
		t.Fatalf("SetExtrusion: %v", err)
	}
	e.totalPrintTime = 1000

	if err := e.Finalize(0, 30, ""); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	got := string(sink.buf[:len(";TIME:<__TIME__>")])
	want := ";TIME:1000      "
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

// Scenario 6 (minimal layer time) lives in pkg/planner's tests, since
// forceMinimalLayerTime is a Planner operation.

func TestWriteFanCommandIdempotent(t *testing.T) {
	e, buf := newEmitter(t)
	if err := e.WriteFanCommand(50); err != nil {
		t.Fatalf("WriteFanCommand: %v", err)
	}
	buf.Reset()
	if err := e.WriteFanCommand(50); err != nil {
		t.Fatalf("WriteFanCommand (repeat): %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no-op on unchanged fan speed, got %q", buf.String())
	}
}

func TestSwitchExtruderNoOpWhenUnchanged(t *testing.T) {
	e, buf := newEmitter(t)
	if err := e.SwitchExtruder(0); err != nil {
		t.Fatalf("SwitchExtruder: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no-op switching to the already-active extruder, got %q", buf.String())
	}
}

func TestSwitchExtruderBFBWritesM103AndSkipsScripts(t *testing.T) {
	e, buf := newEmitter(t)
	if err := e.SetFlavor(gflavor.BFB); err != nil {
		t.Fatalf("SetFlavor: %v", err)
	}
	e.SetSwitchExtruderCode("PRE", "POST")

	if err := e.SwitchExtruder(1); err != nil {
		t.Fatalf("SwitchExtruder: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "M103") {
		t.Fatalf("expected M103 under BFB, got %q", out)
	}
	if strings.Contains(out, "PRE") || strings.Contains(out, "POST") {
		t.Fatalf("BFB switch should not run pre/post scripts, got %q", out)
	}
	if strings.Contains(out, "T1") {
		t.Fatalf("BFB switch should not emit an extruder-select command, got %q", out)
	}
	if e.extruderNr != 0 {
		t.Fatalf("BFB switch should not update extruderNr, got %d", e.extruderNr)
	}
	if !e.IsRetracted() {
		t.Fatalf("expected isRetracted after BFB switch")
	}
}

func TestSwitchExtruderVolumetricWritesG10S1(t *testing.T) {
	e, buf := newEmitter(t)
	if err := e.SetFlavor(gflavor.REPRAP_VOLUMATRIC); err != nil {
		t.Fatalf("SetFlavor: %v", err)
	}
	if err := e.SetExtrusion(0.1, 2.85, 100); err != nil {
		t.Fatalf("SetExtrusion: %v", err)
	}

	if err := e.SwitchExtruder(1); err != nil {
		t.Fatalf("SwitchExtruder: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "G10 S1") {
		t.Fatalf("expected G10 S1 under a volumetric flavor, got %q", out)
	}
	if strings.Contains(out, "G1 F") {
		t.Fatalf("volumetric switch should not emit a G1 extrusion retraction line, got %q", out)
	}
	if e.extruderNr != 1 {
		t.Fatalf("expected extruderNr updated to 1, got %d", e.extruderNr)
	}
}

func TestSwitchExtruderBFBSkipsM103WhenAlreadyRetracted(t *testing.T) {
	e, buf := newEmitter(t)
	if err := e.SetFlavor(gflavor.BFB); err != nil {
		t.Fatalf("SetFlavor: %v", err)
	}
	e.isRetracted = true

	if err := e.SwitchExtruder(1); err != nil {
		t.Fatalf("SwitchExtruder: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output when already retracted, got %q", buf.String())
	}
}

func TestWriteMoveToCurrentPositionEmitsNothing(t *testing.T) {
	e, buf := newEmitter(t)
	if err := e.WriteMove(e.CurrentPosition().XY(), 60, 400); err != nil {
		t.Fatalf("WriteMove: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no-op move to current position, got %q", buf.String())
	}
}

func TestWriteLineChecksum(t *testing.T) {
	e, buf := newEmitter(t)
	if err := e.writeLine("G1 X1.000"); err != nil {
		t.Fatalf("writeLine: %v", err)
	}
	line := firstLine(t, buf.String())
	idx := strings.LastIndex(line, " $")
	if idx < 0 {
		t.Fatalf("missing checksum suffix: %q", line)
	}
	body := line[:idx]
	checksum, err := strconv.Atoi(line[idx+2:])
	if err != nil {
		t.Fatalf("bad checksum suffix: %v", err)
	}
	if byte(checksum) != xorChecksum(body) {
		t.Fatalf("checksum mismatch: got %d want %d", checksum, xorChecksum(body))
	}
}

func TestWriteCommentEmitsNoChecksum(t *testing.T) {
	e, buf := newEmitter(t)
	if err := e.WriteComment("TYPE:%s", "WALL-OUTER"); err != nil {
		t.Fatalf("WriteComment: %v", err)
	}
	line := firstLine(t, buf.String())
	if line != ";TYPE:WALL-OUTER" {
		t.Fatalf("got %q, want %q", line, ";TYPE:WALL-OUTER")
	}
	if strings.Contains(line, "$") {
		t.Fatalf("comment line should carry no checksum suffix: %q", line)
	}
}

func TestWriteLineRejectsOverLongLine(t *testing.T) {
	e, _ := newEmitter(t)
	if err := e.writeLine(strings.Repeat("X", maxLineLen+1)); err == nil {
		t.Fatalf("expected error for over-budget line")
	}
}

func TestSetExtrusionRejectsNonPositiveDiameter(t *testing.T) {
	e := New(nil)
	if err := e.SetExtrusion(0.1, 0, 100); err == nil {
		t.Fatalf("expected configuration error for zero filament diameter")
	}
}

func TestCaesarShiftIsAppliedBeforeChecksum(t *testing.T) {
	e, buf := newEmitter(t)
	e.SetCommandObfuscation(true)
	if err := e.writeLine("G1 X1.000 Y2.000"); err != nil {
		t.Fatalf("writeLine: %v", err)
	}
	line := firstLine(t, buf.String())
	if strings.Contains(line, "G1 X1.000 Y2.000") {
		t.Fatalf("expected obfuscated body, got plaintext: %q", line)
	}
	idx := strings.LastIndex(line, " $")
	if idx < 0 {
		t.Fatalf("missing checksum suffix: %q", line)
	}
	body := line[:idx]
	if body != caesarShift("G1 X1.000 Y2.000") {
		t.Fatalf("body = %q, want the shifted command %q", body, caesarShift("G1 X1.000 Y2.000"))
	}
	sum, err := strconv.Atoi(line[idx+2:])
	if err != nil {
		t.Fatalf("checksum is not a number: %q", line)
	}
	if sum != int(xorChecksum(body)) {
		t.Fatalf("checksum = %d, want %d (computed over the shifted body)", sum, xorChecksum(body))
	}
}

func TestDoubleColorModeEmitsOnlyActiveChannel(t *testing.T) {
	e, buf := newEmitter(t)
	e.SetColorMixing(colormix.Config{Mode: colormix.Double}, true)
	e.extruderNr = 0
	// The one-shot first-line prime splits across E and B whatever the
	// mixing mode; mark it done so only the Double-mode field is checked.
	e.firstLine = firstLinePrimed

	if err := e.WriteMove(geom.Pt(5000, 0), 60, 400); err != nil {
		t.Fatalf("WriteMove: %v", err)
	}
	line := firstLine(t, buf.String())
	if !strings.Contains(line, "E") || strings.Contains(line, "B") {
		t.Fatalf("extruder 0 under Double mode should emit only E, got %q", line)
	}

	buf.Reset()
	e.extruderNr = 1
	if err := e.WriteMove(geom.Pt(10000, 0), 60, 400); err != nil {
		t.Fatalf("WriteMove: %v", err)
	}
	line = firstLine(t, buf.String())
	if strings.Contains(line, "E") || !strings.Contains(line, "B") {
		t.Fatalf("extruder 1 under Double mode should emit only B, got %q", line)
	}
}

func TestTwoInOneOutSplitInvariant(t *testing.T) {
	e, _ := newEmitter(t)
	e.SetColorMixing(colormix.Config{Mode: colormix.Double}, true)
	e.extruderNr = 0

	if err := e.WriteMove(geom.Pt(5000, 0), 60, 400); err != nil {
		t.Fatalf("WriteMove: %v", err)
	}
	if got := e.colorState.AAmount + e.colorState.BAmount; got != e.extrusionAmount {
		t.Fatalf("A+B = %v, want extrusionAmount %v", got, e.extrusionAmount)
	}
}

func firstLine(t *testing.T, s string) string {
	t.Helper()
	s = strings.TrimRight(s, "\n\r")
	lines := strings.Split(s, "\n")
	if len(lines) == 0 {
		t.Fatalf("no output")
	}
	return strings.TrimRight(lines[0], "\r")
}
