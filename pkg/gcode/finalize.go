package gcode

import (
	"fmt"

	"fdmtoolpath/pkg/gflavor"
	"fdmtoolpath/pkg/tagpatch"
)

// Finalize ends the print: fan off, a final retraction, a lift to
// maxObjectHeightUM+5mm, a travel to the current XY at moveSpeedMMps, the
// verbatim endCode block, a log of the totals, and, under ULTIGCODE, a
// rewrite of the header placeholders with the now-known print time and
// filament totals.
func (e *Emitter) Finalize(maxObjectHeightUM int32, moveSpeedMMps int, endCode string) error {
	if err := e.WriteFanCommand(0); err != nil {
		return err
	}
	if err := e.WriteRetraction(false); err != nil {
		return err
	}

	e.SetZ(maxObjectHeightUM + 5000)
	if err := e.WriteMove(e.currentPosition.XY(), moveSpeedMMps, 0); err != nil {
		return err
	}

	if err := e.WriteCode(endCode); err != nil {
		return err
	}

	e.logger.Logf("Print time: %d", int(e.TotalPrintTimeSeconds()))
	e.logger.Logf("Filament: %d", int(e.TotalFilament(0)))
	e.logger.Logf("Filament2: %d", int(e.TotalFilament(1)))

	if e.flavor == gflavor.ULTIGCODE {
		if err := tagpatch.ReplaceTagInStart(e.sink, "<__TIME__>", fmt.Sprintf("%d", int(e.TotalPrintTimeSeconds())), e.logger); err != nil {
			return err
		}
		if err := tagpatch.ReplaceTagInStart(e.sink, "<FILAMENT>", fmt.Sprintf("%d", int(e.TotalFilament(0))), e.logger); err != nil {
			return err
		}
		if err := tagpatch.ReplaceTagInStart(e.sink, "<FILAMEN2>", fmt.Sprintf("%d", int(e.TotalFilament(1))), e.logger); err != nil {
			return err
		}
	}

	return nil
}
