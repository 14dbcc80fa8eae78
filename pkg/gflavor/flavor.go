// Package gflavor enumerates the firmware dialects the emitter can target
// and, per the design notes, dispatches their differences through a small
// capability table rather than scattering switch statements through the
// emitter itself.
package gflavor

import "fmt"

// Flavor selects the firmware dialect of the emitted G-code.
type Flavor int

const (
	REPRAP Flavor = iota
	ULTIGCODE
	MAKERBOT
	BFB
	MACH3
	REPRAP_VOLUMATRIC
)

func (f Flavor) String() string {
	switch f {
	case REPRAP:
		return "REPRAP"
	case ULTIGCODE:
		return "ULTIGCODE"
	case MAKERBOT:
		return "MAKERBOT"
	case BFB:
		return "BFB"
	case MACH3:
		return "MACH3"
	case REPRAP_VOLUMATRIC:
		return "REPRAP_VOLUMATRIC"
	default:
		return fmt.Sprintf("Flavor(%d)", int(f))
	}
}

// Valid reports whether f is one of the six known dialects. Setting the
// flavor to anything else is a configuration error, not a runtime
// fallback, per the error handling design.
func (f Flavor) Valid() bool {
	return f >= REPRAP && f <= REPRAP_VOLUMATRIC
}

// Caps is the per-flavor capability table: everything about a dialect that
// varies is looked up here once, instead of re-testing the flavor value at
// every call site.
type Caps struct {
	// LineEnd is the line terminator emitted after every command.
	LineEnd string

	// Volumetric flavors use G10/G11 for retraction/prime and take
	// extrusionPerMM directly from layer thickness (no filament area
	// term).
	Volumetric bool

	// UsesRPM is true only for BFB, whose writeMove branch computes an
	// RPM-derived feedrate instead of an E value.
	UsesRPM bool

	// SuppressResetExtrusion disables resetExtrusionValue for flavors
	// whose firmware does not expect a G92 reset (MAKERBOT, BFB).
	SuppressResetExtrusion bool

	// ExtruderSelectFmt formats the extruder-selection command, given
	// the extruder index.
	ExtruderSelectFmt func(extruder int) string

	// FanOn/FanOff format the fan commands. duty is 0-255.
	FanOn  func(duty int) string
	FanOff func() string
}

var table = map[Flavor]Caps{
	REPRAP: {
		LineEnd: "\n",
		ExtruderSelectFmt: func(e int) string { return fmt.Sprintf("T%d", e) },
		FanOn:             func(d int) string { return fmt.Sprintf("M106 S%d", d) },
		FanOff:            func() string { return "M107" },
	},
	ULTIGCODE: {
		LineEnd:    "\n",
		Volumetric: true,
		ExtruderSelectFmt: func(e int) string { return fmt.Sprintf("T%d", e) },
		FanOn:             func(d int) string { return fmt.Sprintf("M106 S%d", d) },
		FanOff:            func() string { return "M107" },
	},
	MAKERBOT: {
		LineEnd:                "\n",
		SuppressResetExtrusion: true,
		ExtruderSelectFmt: func(e int) string { return fmt.Sprintf("M135 T%d", e) },
		FanOn:             func(d int) string { return fmt.Sprintf("M126 T0 ; value = %d", d) },
		FanOff:            func() string { return "M127 T0" },
	},
	BFB: {
		LineEnd:                "\r\n",
		UsesRPM:                true,
		SuppressResetExtrusion: true,
		ExtruderSelectFmt: func(e int) string { return fmt.Sprintf("T%d", e) },
		FanOn:             func(d int) string { return fmt.Sprintf("M106 S%d", d) },
		FanOff:            func() string { return "M107" },
	},
	MACH3: {
		LineEnd: "\n",
		ExtruderSelectFmt: func(e int) string { return fmt.Sprintf("T%d", e) },
		FanOn:             func(d int) string { return fmt.Sprintf("M106 P%d", d) },
		FanOff:            func() string { return "M106 P0" },
	},
	REPRAP_VOLUMATRIC: {
		LineEnd:    "\n",
		Volumetric: true,
		ExtruderSelectFmt: func(e int) string { return fmt.Sprintf("T%d", e) },
		FanOn:             func(d int) string { return fmt.Sprintf("M106 S%d", d) },
		FanOff:            func() string { return "M107" },
	},
}

// Lookup returns the capability table entry for f. It panics if f is not a
// known flavor; callers must validate with Valid() at configuration time
// and surface an error to the caller rather than reaching here.
func Lookup(f Flavor) Caps {
	caps, ok := table[f]
	if !ok {
		panic("gflavor: unknown flavor " + f.String())
	}
	return caps
}

// ExtruderCharacter returns the letter used for the primary extrusion
// field of the given extruder under this flavor: 'A'+n under MACH3,
// otherwise 'E' for extruder 0 and 'B' for extruder 1 (and 'E' for any
// further extruder, matching the reference firmware's fallback).
func ExtruderCharacter(f Flavor, extruder int) byte {
	if f == MACH3 {
		return byte('A' + extruder)
	}
	if extruder == 1 {
		return 'B'
	}
	return 'E'
}

// FanDuty converts a percent (0-100) fan speed to the 0-255 PWM duty the
// firmware commands expect.
func FanDuty(percent int) int {
	return percent * 255 / 100
}
