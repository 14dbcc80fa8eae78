// Package gcode implements the G-code Emitter: the printer-state machine
// that owns the output sink, tracks position/extruder/retraction/fan
// state, and serialises each planned move into firmware-specific text.
//
// An Emitter is created once per output file, configured with the setters
// below before the first move, reused across every layer of the print,
// and finalised exactly once.
package gcode

import (
	"io"
	"math"
	"os"

	"fdmtoolpath/pkg/colormix"
	"fdmtoolpath/pkg/errors"
	"fdmtoolpath/pkg/geom"
	"fdmtoolpath/pkg/gflavor"
	"fdmtoolpath/pkg/log"
	"fdmtoolpath/pkg/tagpatch"
	"fdmtoolpath/pkg/timeest"
)

// maxLineLen is the fixed line-length budget inherited from the firmware
// parsers this core targets. It is enforced, not silently widened.
const maxLineLen = 96

// firstLineState is the "pristine -> priming-done" edge from the design
// notes, modeled as an explicit three-state enum rather than a package
// or struct-level boolean flag.
type firstLineState int

const (
	firstLinePristine firstLineState = iota
	firstLinePriming
	firstLinePrimed
)

// Logger is the narrow collaborator interface the emitter reports totals
// and skipped operations through.
type Logger interface {
	Logf(format string, args ...interface{})
}

type logAdapter struct{ l *log.Logger }

func (a logAdapter) Logf(format string, args ...interface{}) {
	a.l.Info(format, args...)
}

// NewLoggerAdapter wraps a *log.Logger so it satisfies the Logger
// interface this package and pkg/tagpatch consume.
func NewLoggerAdapter(l *log.Logger) Logger {
	return logAdapter{l: l}
}

// Emitter is the long-lived mutable aggregate described in the design
// notes: pass it around by pointer, never duplicate it, never make it a
// package-level singleton.
type Emitter struct {
	sink     io.Writer
	sinkFile *os.File
	logger   Logger

	flavor gflavor.Flavor
	caps   gflavor.Caps

	currentPosition geom.Point3
	startPosition   geom.Point3
	zPos            int32 // pending Z in micrometres, applied on the next move

	extrusionAmount                     float64
	extrusionAmountAtPreviousRetraction float64
	extrusionPerMM                      float64

	retractionAmount       float64
	retractionSpeedMMps    int
	switchRetraction       float64
	minimalExtrusionBefore float64
	zHop                   int32
	primeAmount            float64

	currentSpeed    float64 // mm/s; kept equal to the last emitted F value / 60
	currentFanSpeed int     // percent; -1 means "never set"
	isRetracted     bool
	lastBFBRpm      float64

	extruderNr        int
	totalFilament     []float64
	extruderOffset    []geom.Point
	extruder0OffsetXY geom.Point

	switchExtruderPre, switchExtruderPost string

	firstLine        firstLineState
	firstLineSection float64

	currentLayer, totalLayer int

	colorCfg     colormix.Config
	colorState   colormix.State
	twoInOneOut  bool
	obfuscateCmd bool

	layerThicknessMM   float64
	filamentDiameterMM float64
	flowPercent        float64

	totalPrintTime float64
	estimator      timeest.Estimator
}

// New creates an Emitter that writes to stdout (unseekable; tag patching
// will be skipped and logged) using the REPRAP flavor until reconfigured.
func New(logger Logger) *Emitter {
	if logger == nil {
		logger = NewLoggerAdapter(log.GetLogger("gcode"))
	}
	e := &Emitter{
		sink:            os.Stdout,
		logger:          logger,
		flavor:          gflavor.REPRAP,
		caps:            gflavor.Lookup(gflavor.REPRAP),
		currentFanSpeed: -1,
		totalFilament:   make([]float64, 1),
		extruderOffset:  make([]geom.Point, 1),
		estimator:       timeest.NewSimple(),
	}
	return e
}

// SetEstimator overrides the default acceleration-agnostic time estimator
// with an external kernel (out of scope for this core; see pkg/timeest).
func (e *Emitter) SetEstimator(est timeest.Estimator) {
	e.estimator = est
}

// SetFilename opens path as the output sink, truncating any existing
// file. The sink must support seek-and-overwrite so finalize can rewrite
// header tags under ULTIGCODE; *os.File satisfies that.
func (e *Emitter) SetFilename(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.IOError("setFilename", err)
	}
	if e.sinkFile != nil {
		e.sinkFile.Close()
	}
	e.sinkFile = f
	e.sink = f
	return nil
}

// SetSink installs an arbitrary writer as the output sink, bypassing
// SetFilename's file-open step. Used by callers (and tests) that already
// have an in-memory or otherwise non-file destination; tag patching is
// only available if w also implements tagpatch.Seeker.
func (e *Emitter) SetSink(w io.Writer) {
	if e.sinkFile != nil {
		e.sinkFile.Close()
		e.sinkFile = nil
	}
	e.sink = w
}

// Close releases the underlying file sink, if one was opened via
// SetFilename. Closing the implicit stdout sink is a no-op.
func (e *Emitter) Close() error {
	if e.sinkFile != nil {
		return e.sinkFile.Close()
	}
	return nil
}

// SetFlavor selects the firmware dialect. An unknown flavor is a
// configuration error, not a runtime fallback.
func (e *Emitter) SetFlavor(f gflavor.Flavor) error {
	if !f.Valid() {
		return errors.ConfigError("setFlavor", "unknown flavor")
	}
	e.flavor = f
	e.caps = gflavor.Lookup(f)
	return nil
}

// Flavor returns the currently configured flavor.
func (e *Emitter) Flavor() gflavor.Flavor {
	return e.flavor
}

func (e *Emitter) growExtruderTables(n int) {
	for len(e.totalFilament) <= n {
		e.totalFilament = append(e.totalFilament, 0)
	}
	for len(e.extruderOffset) <= n {
		e.extruderOffset = append(e.extruderOffset, geom.Point{})
	}
}

// SetExtruderOffset records the XY offset of extruder id relative to the
// machine's home extruder.
func (e *Emitter) SetExtruderOffset(id int, p geom.Point) {
	e.growExtruderTables(id)
	e.extruderOffset[id] = p
}

// SetExtruder0OffsetXY sets the global offset applied to every extruder
// in addition to its own per-extruder offset.
func (e *Emitter) SetExtruder0OffsetXY(p geom.Point) {
	e.extruder0OffsetXY = p
}

// SetSwitchExtruderCode records the verbatim scripts written immediately
// before and after selecting a new extruder in SwitchExtruder.
func (e *Emitter) SetSwitchExtruderCode(pre, post string) {
	e.switchExtruderPre = pre
	e.switchExtruderPost = post
}

// SetRetractionSettings configures the retraction/un-retraction contract.
// zHopUM is the Z lift applied while retracted, in micrometres.
func (e *Emitter) SetRetractionSettings(amount float64, speedMMps int, switchRetraction, minimalExtrusionBefore float64, zHopUM int32, primeAmount float64) {
	e.retractionAmount = amount
	e.retractionSpeedMMps = speedMMps
	e.switchRetraction = switchRetraction
	e.minimalExtrusionBefore = minimalExtrusionBefore
	e.zHop = zHopUM
	e.primeAmount = primeAmount
}

// SetExtrusion derives extrusionPerMM from layer thickness, filament
// diameter and flow percentage. Volumetric flavors (ULTIGCODE,
// REPRAP_VOLUMATRIC) take layer thickness directly, since their firmware
// computes the cross-section itself; other flavors divide by the
// filament's cross-sectional area and scale by flow%.
//
// A non-positive filament diameter is a configuration error: the
// division this would otherwise require is precluded by this precondition
// rather than guarded at the call site inside writeMove.
func (e *Emitter) SetExtrusion(layerThicknessMM, filamentDiameterMM, flowPercent float64) error {
	if filamentDiameterMM <= 0 {
		return errors.ConfigError("setExtrusion", "filament diameter must be positive")
	}
	e.layerThicknessMM = layerThicknessMM
	e.filamentDiameterMM = filamentDiameterMM
	e.flowPercent = flowPercent

	if e.caps.Volumetric {
		e.extrusionPerMM = layerThicknessMM
		return nil
	}
	radius := filamentDiameterMM / 2.0
	area := math.Pi * radius * radius
	e.extrusionPerMM = layerThicknessMM / area * (flowPercent / 100.0)
	return nil
}

// SetZ sets the pending Z height (micrometres); it takes effect the next
// time a move is written.
func (e *Emitter) SetZ(zUM int32) {
	e.zPos = zUM
}

// SetCurrentLayer records the 0-based index of the layer being emitted,
// used by colour-mixing Layer and Mix modes.
func (e *Emitter) SetCurrentLayer(n int) {
	e.currentLayer = n
}

// SetTotalLayer records the total layer count, used by colour-mixing
// Layer and Mix modes.
func (e *Emitter) SetTotalLayer(n int) {
	e.totalLayer = n
}

// SetFirstLineSection sets the cross-section (mm^2-equivalent constant)
// used to size the one-shot first-line priming extrusion.
func (e *Emitter) SetFirstLineSection(section float64) {
	e.firstLineSection = section
}

// SetColorMixing configures the dual-filament ("two-in-one-out nozzle")
// blend strategy. Passing enabled=false disables dual-channel output
// entirely, regardless of cfg.
func (e *Emitter) SetColorMixing(cfg colormix.Config, enabled bool) {
	e.colorCfg = cfg
	e.twoInOneOut = enabled
}

// SetCommandObfuscation enables or disables the reversible per-position
// Caesar shift applied to every checksummed command line (see §4.1.2 of
// the design: an output option orthogonal to flavor).
func (e *Emitter) SetCommandObfuscation(enabled bool) {
	e.obfuscateCmd = enabled
}

// CurrentPosition returns the last commanded 3D position.
func (e *Emitter) CurrentPosition() geom.Point3 {
	return e.currentPosition
}

// ExtrusionAmount returns the cumulative extrusion since the last reset.
func (e *Emitter) ExtrusionAmount() float64 {
	return e.extrusionAmount
}

// ExtrusionPerMM returns the mm of filament (or mm^3, under a volumetric
// flavor) SetExtrusion derived from layer thickness, filament diameter,
// and flow percent.
func (e *Emitter) ExtrusionPerMM() float64 {
	return e.extrusionPerMM
}

// IsRetracted reports whether the extruder is currently retracted.
func (e *Emitter) IsRetracted() bool {
	return e.isRetracted
}

// CurrentSpeed returns the mm/s of the last emitted F value.
func (e *Emitter) CurrentSpeed() float64 {
	return e.currentSpeed
}

// TotalFilament returns the filament total for extruder id: the folded-in
// amount from previous resetExtrusionValue calls, plus whatever is
// currently pending on the counter if id is the active extruder.
func (e *Emitter) TotalFilament(id int) float64 {
	if id < 0 || id >= len(e.totalFilament) {
		return 0
	}
	total := e.totalFilament[id]
	if id == e.extruderNr {
		total += e.extrusionAmount
	}
	return total
}

// UpdateTotalPrintTime folds the time-estimate kernel's pending duration
// into the running total and resets the kernel, so the next batch of
// planned waypoints starts from a clean estimate. The Planner calls this
// once per layer after draining its paths into the Emitter.
func (e *Emitter) UpdateTotalPrintTime() {
	e.totalPrintTime += e.estimator.Calculate()
	e.estimator.Reset()
}

var _ tagpatch.Logger = Logger(nil) // Logger satisfies tagpatch's collaborator shape.
