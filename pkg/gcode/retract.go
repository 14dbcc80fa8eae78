package gcode

import (
	"fmt"

	"fdmtoolpath/pkg/colormix"
	"fdmtoolpath/pkg/geom"
	"fdmtoolpath/pkg/gflavor"
)

// WriteRetraction conditionally emits the retraction command. It is a
// no-op under BFB, whose firmware retracts automatically, a no-op if
// already retracted, and a no-op if too little has been extruded since
// the previous retraction -- unless force is set.
func (e *Emitter) WriteRetraction(force bool) error {
	if e.caps.UsesRPM {
		return nil
	}
	if e.isRetracted {
		return nil
	}
	if !force && e.extrusionAmount-e.extrusionAmountAtPreviousRetraction < e.minimalExtrusionBefore {
		return nil
	}

	if e.caps.Volumetric {
		if err := e.writeLine("G10"); err != nil {
			return err
		}
	} else {
		line, err := e.extrusionLine(fmt.Sprintf("G1 F%d", e.retractionSpeedMMps*60), e.extrusionAmount-e.retractionAmount)
		if err != nil {
			return err
		}
		if err := e.writeLine(line); err != nil {
			return err
		}
		e.currentSpeed = float64(e.retractionSpeedMMps)
	}

	if e.zHop > 0 {
		if err := e.writeLine(fmt.Sprintf("G1 Z%0.3f", geom.INT2MM(e.currentPosition.Z+e.zHop))); err != nil {
			return err
		}
	}

	e.extrusionAmountAtPreviousRetraction = e.extrusionAmount
	e.isRetracted = true
	return nil
}

// SwitchExtruder selects newIndex as the active extruder. It is
// idempotent when newIndex already matches; otherwise it resets the
// extrusion counter, performs the switch-retraction (G10 S1 for
// volumetric flavors, a G1 extrusion line otherwise), applies the
// optional Z-hop, runs the pre/post scripts around the selection
// command, and leaves the printer retracted. The original's dual-nozzle
// branch here was commented out and is treated as behaviourally
// identical to the single-nozzle branch: one retraction line. Under BFB
// the firmware owns extruder switching entirely: this emits M103 (when
// not already retracted) and returns without touching extruderNr or
// running any pre/post script.
func (e *Emitter) SwitchExtruder(newIndex int) error {
	if newIndex == e.extruderNr {
		return nil
	}

	if err := e.resetExtrusionValue(); err != nil {
		return err
	}

	if e.caps.UsesRPM {
		if !e.isRetracted {
			if err := e.writeLine("M103"); err != nil {
				return err
			}
		}
		e.isRetracted = true
		return nil
	}

	if e.caps.Volumetric {
		if err := e.writeLine("G10 S1"); err != nil {
			return err
		}
	} else {
		line, err := e.extrusionLine(fmt.Sprintf("G1 F%d", e.retractionSpeedMMps*60), e.extrusionAmount-e.switchRetraction)
		if err != nil {
			return err
		}
		if err := e.writeLine(line); err != nil {
			return err
		}
		e.currentSpeed = float64(e.retractionSpeedMMps)
	}
	e.isRetracted = true

	if e.zHop > 0 {
		if err := e.writeLine(fmt.Sprintf("G1 Z%0.3f", geom.INT2MM(e.currentPosition.Z+e.zHop))); err != nil {
			return err
		}
	}

	if err := e.WriteCode(e.switchExtruderPre); err != nil {
		return err
	}

	e.growExtruderTables(newIndex)
	e.extruderNr = newIndex
	if err := e.writeLine(e.caps.ExtruderSelectFmt(newIndex)); err != nil {
		return err
	}

	if err := e.WriteCode(e.switchExtruderPost); err != nil {
		return err
	}

	if e.flavor == gflavor.MACH3 {
		if err := e.resetExtrusionValue(); err != nil {
			return err
		}
	}

	return nil
}

// resetExtrusionValue emits G92 E0 (or G92 E0 B0 in dual mode), folds the
// current extrusionAmount into totalFilament[extruderNr], and zeros the
// counter. Suppressed for MAKERBOT and BFB, which track their own
// extrusion state, and triggered automatically from WriteMove once
// extrusionAmount crosses 10000mm.
func (e *Emitter) resetExtrusionValue() error {
	if e.caps.SuppressResetExtrusion {
		return nil
	}
	if e.extrusionAmount == 0 {
		return nil
	}

	resetLine := "G92 E0"
	if e.twoInOneOut {
		resetLine = "G92 E0 B0"
	}
	if err := e.writeLine(resetLine); err != nil {
		return err
	}

	e.growExtruderTables(e.extruderNr)
	e.totalFilament[e.extruderNr] += e.extrusionAmount
	e.extrusionAmountAtPreviousRetraction -= e.extrusionAmount
	e.extrusionAmount = 0
	e.colorState = colormix.State{}
	return nil
}
