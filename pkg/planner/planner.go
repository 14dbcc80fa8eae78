// Package planner implements the per-layer path accumulator that sits in
// front of the G-code emitter: it collects travel and extrusion moves,
// groups them by motion category, applies combing and retraction policy
// to travel moves, reorders polygon traversal through an external
// optimiser, and can scale a whole layer's speed down to respect a
// minimum layer time before finally replaying everything into the
// emitter.
//
// A Planner is created fresh for each layer, filled via AddTravel /
// AddExtrusionMove / AddPolygon / AddPolygonsByOptimizer, optionally
// retimed with ForceMinimalLayerTime, and drained exactly once by
// WriteGCode.
package planner

import (
	"fdmtoolpath/pkg/combing"
	"fdmtoolpath/pkg/gcode"
	"fdmtoolpath/pkg/geom"
	"fdmtoolpath/pkg/pathconfig"
)

// path is one contiguous run of waypoints sharing a config and extruder.
type path struct {
	config   *pathconfig.Config
	extruder int
	points   []geom.Point
	retract  bool
	done     bool
}

// Planner accumulates one layer's worth of moves and replays them into a
// borrowed Emitter. It is not safe for concurrent use, and a single
// instance must not outlive one call to WriteGCode.
type Planner struct {
	gc *gcode.Emitter

	travelConfig *pathconfig.Config
	paths        []*path

	lastPosition    geom.Point
	currentExtruder int

	forceRetraction bool
	alwaysRetract   bool

	retractionMinimalDistance int32

	extrudeSpeedFactor int // percent
	travelSpeedFactor  int // percent

	extraTime      float64
	totalPrintTime float64

	comb combing.Oracle
}

// New creates a Planner bound to gc, whose current XY position seeds
// lastPosition; currentExtruder starts at 0 whichever extruder gc has
// selected. travelSpeedMMps
// is the nominal speed of the one travel config every Planner owns;
// retractionMinimalDistanceUM is the minimum travel length (micrometres)
// a move must reach before retraction policy considers retracting it.
func New(gc *gcode.Emitter, travelSpeedMMps int, retractionMinimalDistanceUM int32) *Planner {
	return &Planner{
		gc:                        gc,
		travelConfig:              pathconfig.Travel(travelSpeedMMps),
		lastPosition:              gc.CurrentPosition().XY(),
		currentExtruder:           0,
		extrudeSpeedFactor:        100,
		travelSpeedFactor:         100,
		retractionMinimalDistance: retractionMinimalDistanceUM,
	}
}

// SetComb installs the combing oracle consulted by AddTravel and
// MoveInsideCombBoundary. A nil oracle (the default) disables combing.
func (p *Planner) SetComb(c combing.Oracle) {
	p.comb = c
}

// SetAlwaysRetract controls whether, with no combing oracle installed,
// every travel move at least retractionMinimalDistanceUM long retracts
// even without an active force-retraction request. With an oracle
// installed the combing result decides instead.
func (p *Planner) SetAlwaysRetract(always bool) {
	p.alwaysRetract = always
}

// ForceRetraction arranges for the very next travel move to carry a
// retraction if it is at least retractionMinimalDistanceUM long,
// regardless of combing or alwaysRetract. The flag is consumed by that
// next travel move whether or not it retracts.
func (p *Planner) ForceRetraction() {
	p.forceRetraction = true
}

// SetCurrentExtruder records the extruder index future AddTravel and
// AddExtrusionMove calls enqueue paths under, so a multi-material layer's
// later WriteGCode pass knows where to call SwitchExtruder.
func (p *Planner) SetCurrentExtruder(id int) {
	p.currentExtruder = id
}

// ExtrudeSpeedFactor returns the current extrusion speed scale, in
// percent of each path's nominal speed.
func (p *Planner) ExtrudeSpeedFactor() int {
	return p.extrudeSpeedFactor
}

// RetractionMinimalDistance returns the minimum travel length
// (micrometres) a move must reach before retraction policy considers
// retracting it, as configured by New.
func (p *Planner) RetractionMinimalDistance() int32 {
	return p.retractionMinimalDistance
}

// SetExtrudeSpeedFactor overrides the extrusion speed scale directly.
func (p *Planner) SetExtrudeSpeedFactor(percent int) {
	p.extrudeSpeedFactor = percent
}

// TotalPrintTime returns the estimated duration of this layer once
// ForceMinimalLayerTime has run; zero beforehand.
func (p *Planner) TotalPrintTime() float64 {
	return p.totalPrintTime
}

// latestPathWithConfig returns the open (not done) trailing path for
// config, creating a new one if the trailing path is sealed, belongs to
// a different config, or there are no paths yet.
func (p *Planner) latestPathWithConfig(config *pathconfig.Config) *path {
	if n := len(p.paths); n > 0 {
		last := p.paths[n-1]
		if last.config == config && !last.done {
			return last
		}
	}
	np := &path{config: config, extruder: p.currentExtruder}
	p.paths = append(p.paths, np)
	return np
}

// forceNewPathStart seals the trailing path, if any, so the next append
// to its config starts a fresh path instead of extending it. Used to
// make sure a later retraction decision lands on a new path rather than
// being folded into one that has already been partially emitted.
func (p *Planner) forceNewPathStart() {
	if n := len(p.paths); n > 0 {
		p.paths[n-1].done = true
	}
}
