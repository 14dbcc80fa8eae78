package planner

import "fdmtoolpath/pkg/geom"

// ForceMinimalLayerTime estimates this layer's extrude and travel time by
// summing each waypoint's Euclidean length divided by its path's nominal
// speed. If the layer would finish under minTime and it contains any
// extrusion at all, it derives a speed-down factor from the shortfall and
// applies it via SetExtrudeSpeedFactor -- but only if that factor is
// strictly tighter than whatever speed-down is already in effect, since
// an earlier (e.g. first-layer) slowdown must never be relaxed by a later,
// less demanding layer. Any remaining shortfall after the floor clamp is
// recorded in extraTime for WriteGCode's liftHeadIfNeeded dwell.
func (p *Planner) ForceMinimalLayerTime(minTime float64, minimalSpeedMMps int) {
	p0 := p.gc.CurrentPosition().XY()
	var travelTime, extrudeTime float64

	for _, path := range p.paths {
		for _, pt := range path.points {
			thisTime := geom.VsizeMM(p0.Sub(pt)) / float64(path.config.Speed)
			if path.config.LineWidth != 0 {
				extrudeTime += thisTime
			} else {
				travelTime += thisTime
			}
			p0 = pt
		}
	}

	totalTime := extrudeTime + travelTime
	if totalTime >= minTime || extrudeTime <= 0 {
		p.totalPrintTime = totalTime
		return
	}

	minExtrudeTime := minTime - travelTime
	if minExtrudeTime < 1 {
		minExtrudeTime = 1
	}
	factor := extrudeTime / minExtrudeTime

	for _, path := range p.paths {
		if path.config.LineWidth == 0 {
			continue
		}
		speed := float64(path.config.Speed) * factor
		if speed < float64(minimalSpeedMMps) {
			factor = float64(minimalSpeedMMps) / float64(path.config.Speed)
		}
	}

	if factor*100 < float64(p.ExtrudeSpeedFactor()) {
		p.SetExtrudeSpeedFactor(int(factor * 100))
	} else {
		factor = float64(p.ExtrudeSpeedFactor()) / 100.0
	}

	if shortfall := minTime - (extrudeTime / factor) - travelTime; shortfall > 0.1 {
		p.extraTime = shortfall
	}
	p.totalPrintTime = (extrudeTime / factor) + travelTime
}
