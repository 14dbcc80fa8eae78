package planner

import (
	"fdmtoolpath/pkg/geom"
	"fdmtoolpath/pkg/pathconfig"
)

// WriteGCode drains every accumulated path into the borrowed emitter, in
// enqueue order: extruder changes and pending retractions are dispatched
// first, a ";TYPE:<name>" comment is emitted once per config change,
// speed is scaled by extrudeSpeedFactor or travelSpeedFactor as
// appropriate, runs of short single-point extrusion moves are coalesced,
// and a path marked spiralize ramps Z linearly across its own length --
// unless a later path in the same layer is also spiralize, in which case
// only the last one actually spirals. layerThicknessUM is the Z rise a
// fully spiralized path ramps across. If liftHeadIfNeeded is set and a
// prior ForceMinimalLayerTime call left a shortfall, a short dwell
// sequence is appended after the layer's own moves to burn it off.
func (p *Planner) WriteGCode(liftHeadIfNeeded bool, layerThicknessUM int32) error {
	var lastConfig *pathconfig.Config
	extruder := p.currentExtruder

	for n := 0; n < len(p.paths); n++ {
		pth := p.paths[n]

		if extruder != pth.extruder {
			extruder = pth.extruder
			if err := p.gc.SwitchExtruder(extruder); err != nil {
				return err
			}
		} else if pth.retract {
			if err := p.gc.WriteRetraction(false); err != nil {
				return err
			}
		}

		if pth.config != p.travelConfig && lastConfig != pth.config {
			if err := p.gc.WriteComment("TYPE:%s", pth.config.Name); err != nil {
				return err
			}
			lastConfig = pth.config
		}

		speed := pth.config.Speed
		if pth.config.LineWidth != 0 {
			speed = speed * p.extrudeSpeedFactor / 100
		} else {
			speed = speed * p.travelSpeedFactor / 100
		}

		if coalesced, lastIdx, err := p.writeCoalesced(n, pth, speed); err != nil {
			return err
		} else if coalesced {
			n = lastIdx
			continue
		}

		if err := p.writePath(pth, speed, layerThicknessUM); err != nil {
			return err
		}
	}

	p.gc.UpdateTotalPrintTime()

	if liftHeadIfNeeded && p.extraTime > 0 {
		if err := p.liftHead(); err != nil {
			return err
		}
	}

	return nil
}

// writeCoalesced implements the small-move-coalescing pass: a run of at
// least three consecutive single-point extrusion paths, each within
// 2*lineWidth of the previous, is rewritten as averaged midpoint moves
// with the line width compensated by the ratio of the original to the
// new segment length, ending with one final move to the run's last
// original point. It reports whether it consumed the run (and, if so,
// the index writeGCode's loop should resume from).
func (p *Planner) writeCoalesced(n int, pth *path, speed int) (bool, int, error) {
	if len(pth.points) != 1 || pth.config == p.travelConfig {
		return false, 0, nil
	}
	threshold := int32(pth.config.LineWidth * 2)
	if !geom.ShorterThan(p.gc.CurrentPosition().XY().Sub(pth.points[0]), threshold) {
		return false, 0, nil
	}

	p0 := pth.points[0]
	i := n + 1
	for i < len(p.paths) && len(p.paths[i].points) == 1 && geom.ShorterThan(p0.Sub(p.paths[i].points[0]), threshold) {
		p0 = p.paths[i].points[0]
		i++
	}
	if p.paths[i-1].config == p.travelConfig {
		i--
	}
	if i <= n+2 {
		return false, 0, nil
	}

	p0 = p.gc.CurrentPosition().XY()
	for x := n; x < i-1; x += 2 {
		oldLen := geom.Vsize(p0.Sub(p.paths[x].points[0]))
		newPoint := p.paths[x].points[0].Add(p.paths[x+1].points[0]).Div(2)
		newLen := geom.Vsize(p.gc.CurrentPosition().XY().Sub(newPoint))
		if newLen > 0 {
			lineWidth := int32(int64(pth.config.LineWidth) * oldLen / newLen)
			if err := p.gc.WriteMove(newPoint, speed, lineWidth); err != nil {
				return false, 0, err
			}
		}
		p0 = p.paths[x+1].points[0]
	}
	if err := p.gc.WriteMove(p.paths[i-1].points[0], speed, int32(pth.config.LineWidth)); err != nil {
		return false, 0, err
	}
	return true, i - 1, nil
}

// writePath emits every waypoint of pth as a single WriteMove each,
// unless pth is the layer's one surviving spiralize path, in which case
// it ramps Z linearly from the position at entry to +layerThicknessUM
// across the path's own length as it goes.
func (p *Planner) writePath(pth *path, speed int, layerThicknessUM int32) error {
	spiralize := pth.config.Spiralize
	if spiralize {
		for _, other := range p.paths[indexOf(p.paths, pth)+1:] {
			if other.config.Spiralize {
				spiralize = false
				break
			}
		}
	}

	if !spiralize {
		for _, pt := range pth.points {
			if err := p.gc.WriteMove(pt, speed, int32(pth.config.LineWidth)); err != nil {
				return err
			}
		}
		return nil
	}

	z0 := p.gc.CurrentPosition().Z
	var totalLength float64
	p0 := p.gc.CurrentPosition().XY()
	for _, pt := range pth.points {
		totalLength += geom.VsizeMM(p0.Sub(pt))
		p0 = pt
	}

	var length float64
	p0 = p.gc.CurrentPosition().XY()
	for _, pt := range pth.points {
		length += geom.VsizeMM(p0.Sub(pt))
		p0 = pt
		p.gc.SetZ(z0 + int32(float64(layerThicknessUM)*length/totalLength))
		if err := p.gc.WriteMove(pt, speed, int32(pth.config.LineWidth)); err != nil {
			return err
		}
	}
	return nil
}

func indexOf(paths []*path, target *path) int {
	for i, pth := range paths {
		if pth == target {
			return i
		}
	}
	return -1
}

// liftHead emits the end-of-layer dwell sequence: a comment noting the
// delay, a forced retraction, a 3mm Z lift, a travel to the current XY
// (to apply the lift) followed by a short sideways jog, then a G4 dwell
// for the recorded shortfall.
func (p *Planner) liftHead() error {
	if err := p.gc.WriteComment("Small layer, adding delay of %f", p.extraTime); err != nil {
		return err
	}
	if err := p.gc.WriteRetraction(true); err != nil {
		return err
	}
	p.gc.SetZ(p.gc.CurrentPosition().Z + geom.MM2INT(3.0))
	xy := p.gc.CurrentPosition().XY()
	if err := p.gc.WriteMove(xy, p.travelConfig.Speed, 0); err != nil {
		return err
	}
	jog := xy.Sub(geom.Pt(-geom.MM2INT(20.0), 0))
	if err := p.gc.WriteMove(jog, p.travelConfig.Speed, 0); err != nil {
		return err
	}
	return p.gc.WriteDelay(p.extraTime)
}
