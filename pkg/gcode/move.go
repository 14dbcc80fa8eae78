package gcode

import (
	"fmt"
	"math"
	"strings"

	"fdmtoolpath/pkg/colormix"
	"fdmtoolpath/pkg/geom"
	"fdmtoolpath/pkg/gflavor"
	"fdmtoolpath/pkg/timeest"
)

// WriteMove is the central emitter operation: given a target XY, a
// commanded feedrate in mm/s, and a line width in micrometres (zero
// means pure travel), it serialises exactly one motion command -- or
// nothing at all, if the target equals the current position.
func (e *Emitter) WriteMove(target geom.Point, speedMMps int, lineWidthUM int32) error {
	target3 := e.currentPosition.WithXY(target)
	target3.Z = e.zPos

	if target3.Eq(e.currentPosition) {
		return nil
	}

	if e.caps.UsesRPM {
		return e.writeMoveBFB(target, target3, speedMMps, lineWidthUM)
	}
	return e.writeMoveNormal(target, target3, speedMMps, lineWidthUM)
}

// writeMoveBFB implements the Bits-From-Bytes RPM-feedrate branch: the
// firmware wants a spindle RPM derived from cross-section and feedrate,
// not a direct E value, and auto-retracts on M103/M108/M101 rather than
// via writeRetraction.
func (e *Emitter) writeMoveBFB(target geom.Point, target3 geom.Point3, speedMMps int, lineWidthUM int32) error {
	lineWidthMM := geom.INT2MM(lineWidthUM)
	speedMMs := float64(speedMMps)
	rpm := e.extrusionPerMM * lineWidthMM * speedMMs * 60.0 / 4.0
	roundedRpm := math.Round(rpm*100) / 100

	adjSpeedMMps := speedMMs
	if rpm > 0 {
		if roundedRpm != e.lastBFBRpm {
			if err := e.writeLine(fmt.Sprintf("M108 S%0.1f", roundedRpm)); err != nil {
				return err
			}
			e.lastBFBRpm = roundedRpm
		}
		if err := e.writeLine(fmt.Sprintf("M%d01", e.extruderNr+1)); err != nil {
			return err
		}
		distMM := geom.VsizeMM(target.Sub(e.currentPosition.XY()))
		e.extrusionAmount += e.extrusionPerMM * lineWidthMM * distMM
		e.isRetracted = false
		if roundedRpm != 0 {
			adjSpeedMMps = speedMMs * (rpm / roundedRpm)
		}
	} else if !e.isRetracted {
		if err := e.writeLine("M103"); err != nil {
			return err
		}
	}

	x, y, z := e.offsetMM(target3)
	body := fmt.Sprintf("G1 X%0.3f Y%0.3f Z%0.3f F%0.1f", x, y, z, adjSpeedMMps*60.0)
	if err := e.writeLine(body); err != nil {
		return err
	}

	e.currentSpeed = adjSpeedMMps
	e.advance(target3, speedMMs)
	return nil
}

// writeMoveNormal implements every non-BFB flavor: the G0/G1 dispatch,
// un-retraction priming, the extrusion accumulator, and the one-shot
// first-line prime.
func (e *Emitter) writeMoveNormal(target geom.Point, target3 geom.Point3, speedMMps int, lineWidthUM int32) error {
	var sb strings.Builder

	if lineWidthUM != 0 {
		if e.isRetracted {
			if err := e.unretract(target3, speedMMps); err != nil {
				return err
			}
		}
		distMM := geom.VsizeMM(target.Sub(e.currentPosition.XY()))
		lineWidthMM := geom.INT2MM(lineWidthUM)
		e.extrusionAmount += e.extrusionPerMM * lineWidthMM * distMM
		sb.WriteString("G1")
	} else {
		sb.WriteString("G0")
	}

	if float64(speedMMps) != e.currentSpeed {
		fmt.Fprintf(&sb, " F%d", speedMMps*60)
		e.currentSpeed = float64(speedMMps)
	}

	x, y, z := e.offsetMM(target3)
	fmt.Fprintf(&sb, " X%0.3f Y%0.3f", x, y)
	if target3.Z != e.currentPosition.Z {
		fmt.Fprintf(&sb, " Z%0.3f", z)
	}

	if lineWidthUM != 0 {
		e.appendExtrusionField(&sb)
	}

	primingNow := lineWidthUM != 0 && e.firstLine == firstLinePristine
	if primingNow {
		e.appendFirstLinePrime(&sb, target)
	}

	if err := e.writeLine(sb.String()); err != nil {
		return err
	}

	if primingNow {
		resetLine := "G92 E0"
		if e.twoInOneOut {
			resetLine = "G92 E0 B0"
		}
		if err := e.writeLine(resetLine); err != nil {
			return err
		}
		e.firstLine = firstLinePrimed
	}

	e.currentSpeed = float64(speedMMps)
	e.advance(target3, float64(speedMMps))
	return nil
}

// unretract handles the "transition out of retracted state" branch
// shared by every non-BFB move that begins extruding again: cancel a
// pending Z-hop, emit the prime, and roll the extrusion counter over if
// it has crossed the 10-metre firmware precision boundary.
func (e *Emitter) unretract(target3 geom.Point3, speedMMps int) error {
	if e.zHop > 0 {
		if err := e.writeLine(fmt.Sprintf("G1 Z%0.3f", geom.INT2MM(target3.Z))); err != nil {
			return err
		}
	}
	if e.caps.Volumetric {
		if err := e.writeLine("G11"); err != nil {
			return err
		}
	} else {
		amt := e.extrusionAmount + e.primeAmount
		line, err := e.extrusionLine(fmt.Sprintf("G1 F%d", speedMMps*60), amt)
		if err != nil {
			return err
		}
		if err := e.writeLine(line); err != nil {
			return err
		}
	}
	e.isRetracted = false
	if e.extrusionAmount > 10000 {
		if err := e.resetExtrusionValue(); err != nil {
			return err
		}
	}
	return nil
}

// appendExtrusionField appends the E field (single-channel) or the
// two-in-one-out field(s) for the extrusion amount the move has just
// accumulated.
func (e *Emitter) appendExtrusionField(sb *strings.Builder) {
	if e.twoInOneOut {
		e.colorState = colormix.Split(e.colorCfg, e.colorState, e.extruderNr, e.currentLayer, e.totalLayer, e.extrusionAmount)
		e.writeColorFields(sb, e.colorState)
		return
	}
	char := gflavor.ExtruderCharacter(e.flavor, e.extruderNr)
	fmt.Fprintf(sb, " %c%0.5f", char, e.extrusionAmount)
}

// writeColorFields appends the two-in-one-out field(s) for state onto sb.
// Double mode routes everything through whichever single nozzle is
// physically extruding, so it writes only that nozzle's field -- E for
// extruder 0, B for extruder 1 -- never both; every other mode blends
// across both channels simultaneously and writes both fields.
func (e *Emitter) writeColorFields(sb *strings.Builder, state colormix.State) {
	if e.colorCfg.Mode == colormix.Double {
		if e.extruderNr == 0 {
			fmt.Fprintf(sb, " E%0.5f", state.AAmount)
		} else {
			fmt.Fprintf(sb, " B%0.5f", state.BAmount)
		}
		return
	}
	fmt.Fprintf(sb, " E%0.5f B%0.5f", state.AAmount, state.BAmount)
}

// extrusionLine renders a single or dual-channel extrusion field onto
// prefix for an explicit total amount (used by un-retraction priming,
// where the amount is extrusionAmount+primeAmount rather than the plain
// running total).
func (e *Emitter) extrusionLine(prefix string, amount float64) (string, error) {
	if e.twoInOneOut {
		e.colorState = colormix.Split(e.colorCfg, e.colorState, e.extruderNr, e.currentLayer, e.totalLayer, amount)
		var sb strings.Builder
		sb.WriteString(prefix)
		e.writeColorFields(&sb, e.colorState)
		return sb.String(), nil
	}
	char := gflavor.ExtruderCharacter(e.flavor, e.extruderNr)
	return fmt.Sprintf("%s %c%0.5f", prefix, char, amount), nil
}

// appendFirstLinePrime appends the one-shot first-line priming field(s)
// onto the end of the normal move command already built in sb, on the
// very first extruded move of the file: a fixed amount proportional
// to distance from the origin (minimum 10mm), split 50/50 across both
// channels in two-in-one-out mode regardless of the configured colour
// mixing strategy. The caller is responsible for the trailing G92 reset
// line once the combined line has been written; extrusionAmount and
// colorState are left untouched, since the real move's own field already
// holds the value the firmware should report once G92 rebases it to zero.
func (e *Emitter) appendFirstLinePrime(sb *strings.Builder, target geom.Point) {
	e.firstLine = firstLinePriming
	distMM := geom.VsizeMM(target)
	amt := 2 * e.firstLineSection * distMM
	if amt < 10 {
		amt = 10
	}

	if e.twoInOneOut {
		fmt.Fprintf(sb, " E%0.5f B%0.5f", amt*0.5, amt*0.5)
		return
	}
	char := gflavor.ExtruderCharacter(e.flavor, e.extruderNr)
	fmt.Fprintf(sb, " %c%0.5f", char, amt)
}

// offsetMM applies the per-extruder and global XY offsets to a target
// and converts all three axes to millimetres.
func (e *Emitter) offsetMM(target3 geom.Point3) (x, y, z float64) {
	offset := geom.Point{}
	if e.extruderNr < len(e.extruderOffset) {
		offset = e.extruderOffset[e.extruderNr]
	}
	effX := target3.X - offset.X - e.extruder0OffsetXY.X
	effY := target3.Y - offset.Y - e.extruder0OffsetXY.Y
	return geom.INT2MM(effX), geom.INT2MM(effY), geom.INT2MM(target3.Z)
}

// advance commits the new position and feeds the time-estimate kernel.
func (e *Emitter) advance(target3 geom.Point3, feedrateMMps float64) {
	e.currentPosition = target3
	e.startPosition = target3
	e.estimator.Plan(timeest.Position{
		X: geom.INT2MM(target3.X),
		Y: geom.INT2MM(target3.Y),
		Z: geom.INT2MM(target3.Z),
		E: e.extrusionAmount,
	}, feedrateMMps)
}
