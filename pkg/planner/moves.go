package planner

import (
	"fdmtoolpath/pkg/combing"
	"fdmtoolpath/pkg/geom"
	"fdmtoolpath/pkg/pathconfig"
	"fdmtoolpath/pkg/pathorder"
)

// AddTravel appends p to the open travel path, deciding along the way
// whether the move needs a retraction: a forced retraction wins outright
// (and is consumed); otherwise a combing oracle, if installed, is asked
// for an obstacle-free polyline, whose points are spliced in on success,
// while on failure a long-enough move retracts; with no oracle installed,
// a long-enough move retracts only when alwaysRetract is on.
func (p *Planner) AddTravel(to geom.Point) {
	path := p.latestPathWithConfig(p.travelConfig)

	switch {
	case p.forceRetraction:
		if !geom.ShorterThan(p.lastPosition.Sub(to), p.retractionMinimalDistance) {
			path.retract = true
		}
		p.forceRetraction = false

	case p.comb != nil:
		if pts, ok := p.comb.Calc(p.lastPosition, to); ok {
			path.points = append(path.points, pts...)
		} else if !geom.ShorterThan(p.lastPosition.Sub(to), p.retractionMinimalDistance) {
			path.retract = true
		}

	case p.alwaysRetract:
		if !geom.ShorterThan(p.lastPosition.Sub(to), p.retractionMinimalDistance) {
			path.retract = true
		}
	}

	path.points = append(path.points, to)
	p.lastPosition = to
}

// AddExtrusionMove appends p to the open path for config, creating one if
// the trailing path doesn't already match, and advances lastPosition.
func (p *Planner) AddExtrusionMove(to geom.Point, config *pathconfig.Config) {
	path := p.latestPathWithConfig(config)
	path.points = append(path.points, to)
	p.lastPosition = to
}

// MoveInsideCombBoundary nudges lastPosition back inside the combing
// region by distance micrometres when it has drifted outside -- applying
// the nudge twice to escape tight 90-degree corners a single push
// wouldn't clear -- then emits a travel to the corrected point and seals
// the current path so any subsequent retraction lands on a fresh one.
// A no-op when no combing oracle is installed or the position is already
// inside.
func (p *Planner) MoveInsideCombBoundary(distance int32) {
	if p.comb == nil || p.comb.Inside(p.lastPosition) {
		return
	}
	pt := p.lastPosition
	if !p.comb.MoveInside(&pt, distance) {
		return
	}
	p.comb.MoveInside(&pt, distance)
	if p.comb.Inside(pt) {
		p.AddTravel(pt)
		p.forceNewPathStart()
	}
}

// AddPolygon travels to ring[startIdx], then extrudes through every
// subsequent vertex in cyclic order, closing the loop with one final
// extrusion move back to the start vertex when the ring has at least 3
// vertices.
func (p *Planner) AddPolygon(ring combing.Polygon, startIdx int, config *pathconfig.Config) {
	if len(ring) == 0 {
		return
	}
	start := ring[startIdx]
	p.AddTravel(start)
	for i := 1; i < len(ring); i++ {
		p.AddExtrusionMove(ring[(startIdx+i)%len(ring)], config)
	}
	if len(ring) > 2 {
		p.AddExtrusionMove(start, config)
	}
}

// AddPolygonsByOptimizer delegates visiting order and per-ring start
// vertex to an external nearest-neighbour optimiser, then enqueues each
// ring via AddPolygon in the chosen order. For the distinguished "SKIN"
// config, the optimiser is seeded from the first vertex of the first
// ring rather than lastPosition, which keeps skin infill's print order
// deterministic across layers regardless of where the previous path
// happened to end.
func (p *Planner) AddPolygonsByOptimizer(rings []combing.Polygon, config *pathconfig.Config) {
	seed := p.lastPosition
	if config.Name == "SKIN" && len(rings) > 0 && len(rings[0]) > 0 {
		seed = rings[0][0]
	}

	opt := pathorder.New(seed)
	for _, r := range rings {
		opt.AddPolygon(pathorder.Polygon(r))
	}
	opt.Optimize()

	for _, idx := range opt.PolyOrder {
		p.AddPolygon(rings[idx], opt.PolyStart[idx], config)
	}
}
