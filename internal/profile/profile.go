// Package profile loads a printer profile -- the YAML document that
// describes a printer's flavor, extrusion geometry, retraction behaviour,
// and colour-mixing configuration -- and applies it onto a freshly
// constructed Emitter/Planner pair through their existing setter API.
//
// The loader never reaches into Emitter or Planner internals: every field
// below except the descriptive nozzle_diameter_mm maps onto a public
// setter or planner.New argument, so a profile is just a serialisable
// snapshot of the same configuration surface the core already exposes.
package profile

import (
	"os"

	"gopkg.in/yaml.v2"

	"fdmtoolpath/pkg/colormix"
	"fdmtoolpath/pkg/errors"
	"fdmtoolpath/pkg/gcode"
	"fdmtoolpath/pkg/geom"
	"fdmtoolpath/pkg/gflavor"
	"fdmtoolpath/pkg/planner"
)

// defaultTravelSpeedMMps and defaultRetractionMinimalDistanceUM apply
// when a profile leaves its Planner-facing fields unset, matching the
// values a caller would otherwise have hardcoded itself.
const defaultTravelSpeedMMps = 150

var defaultRetractionMinimalDistanceUM = geom.MM2INT(1.5)

// Retraction mirrors SetRetractionSettings' parameter list.
type Retraction struct {
	AmountMM           float64 `yaml:"amount_mm"`
	SpeedMMps          int     `yaml:"speed_mm_s"`
	SwitchRetractionMM float64 `yaml:"switch_retraction_mm"`
	MinimalExtrusionMM float64 `yaml:"minimal_extrusion_before_mm"`
	ZHopUM             int32   `yaml:"z_hop_um"`
	PrimeAmountMM      float64 `yaml:"prime_amount_mm"`
}

// Offset is one extruder's XY offset, in micrometres.
type Offset struct {
	XUM int32 `yaml:"x_um"`
	YUM int32 `yaml:"y_um"`
}

// ColorMixing mirrors SetColorMixing's Config plus the enable flag.
type ColorMixing struct {
	Enabled          bool   `yaml:"enabled"`
	Mode             string `yaml:"mode"` // single, double, layer, mix
	ColorA           int    `yaml:"color_a"`
	ColorB           int    `yaml:"color_b"`
	OverlapCount     int    `yaml:"overlap_count"`
	MixType          string `yaml:"mix_type"` // positional, fixed
	FixedProportionA int    `yaml:"fixed_proportion_a"`
}

// Profile is the top-level document a printer profile YAML file decodes
// into.
type Profile struct {
	Flavor                    string      `yaml:"flavor"`
	NozzleDiameterMM          float64     `yaml:"nozzle_diameter_mm"`
	LayerThicknessMM          float64     `yaml:"layer_thickness_mm"`
	FilamentDiameterMM        float64     `yaml:"filament_diameter_mm"`
	FlowPercent               float64     `yaml:"flow_percent"`
	Retraction                Retraction  `yaml:"retraction"`
	ExtruderOffsets           []Offset    `yaml:"extruder_offsets"`
	ColorMixing               ColorMixing `yaml:"color_mixing"`
	TravelSpeedMMps           int         `yaml:"travel_speed_mm_s"`
	RetractionMinimalDistance int32       `yaml:"retraction_minimal_distance_um"`
	StartCode                 string      `yaml:"start_code"`
	EndCode                   string      `yaml:"end_code"`
}

var flavorByName = map[string]gflavor.Flavor{
	"REPRAP":            gflavor.REPRAP,
	"ULTIGCODE":         gflavor.ULTIGCODE,
	"MAKERBOT":          gflavor.MAKERBOT,
	"BFB":               gflavor.BFB,
	"MACH3":             gflavor.MACH3,
	"REPRAP_VOLUMATRIC": gflavor.REPRAP_VOLUMATRIC,
}

var colorModeByName = map[string]colormix.Mode{
	"single": colormix.Single,
	"double": colormix.Double,
	"layer":  colormix.Layer,
	"mix":    colormix.Mix,
}

var mixTypeByName = map[string]colormix.MixType{
	"positional": colormix.Positional,
	"fixed":      colormix.FixedProportion,
}

// Load reads and parses a printer profile from path. It does not validate
// field values beyond what YAML decoding itself enforces; Apply rejects
// an unknown flavor or colour-mixing name, a non-positive filament
// diameter, and negative speeds.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IOError("profile.Load", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(errors.Config, "profile.Load", err)
	}
	return &p, nil
}

// resolveFlavor looks up a flavor by name, defaulting to REPRAP when the
// field is empty (matching the Emitter's own zero-value default).
func (p *Profile) resolveFlavor() (gflavor.Flavor, error) {
	if p.Flavor == "" {
		return gflavor.REPRAP, nil
	}
	f, ok := flavorByName[p.Flavor]
	if !ok {
		return 0, errors.ConfigError("profile.resolveFlavor", "unknown flavor name: "+p.Flavor)
	}
	return f, nil
}

// Apply configures e with every setting this profile describes. It is the
// single point where a profile document turns into calls against the
// core's public setter API.
func (p *Profile) Apply(e *gcode.Emitter) error {
	flavor, err := p.resolveFlavor()
	if err != nil {
		return err
	}
	if err := e.SetFlavor(flavor); err != nil {
		return err
	}

	if err := e.SetExtrusion(p.LayerThicknessMM, p.FilamentDiameterMM, p.FlowPercent); err != nil {
		return err
	}

	if p.Retraction.SpeedMMps < 0 || p.TravelSpeedMMps < 0 {
		return errors.ConfigError("profile.Apply", "speeds must not be negative")
	}

	r := p.Retraction
	e.SetRetractionSettings(r.AmountMM, r.SpeedMMps, r.SwitchRetractionMM, r.MinimalExtrusionMM, r.ZHopUM, r.PrimeAmountMM)

	for i, off := range p.ExtruderOffsets {
		e.SetExtruderOffset(i, geom.Pt(off.XUM, off.YUM))
	}

	if p.ColorMixing.Enabled {
		cfg, err := p.ColorMixing.toConfig()
		if err != nil {
			return err
		}
		e.SetColorMixing(cfg, true)
	}

	if p.StartCode != "" {
		if err := e.WriteCode(p.StartCode); err != nil {
			return err
		}
	}

	return nil
}

// EffectiveTravelSpeedMMps returns the configured travel speed,
// defaulting to defaultTravelSpeedMMps when the profile leaves it unset.
// Both NewPlanner and a caller's own final travel move (e.g. Finalize's
// lift-and-park) should use this rather than re-deriving their own
// constant.
func (p *Profile) EffectiveTravelSpeedMMps() int {
	if p.TravelSpeedMMps <= 0 {
		return defaultTravelSpeedMMps
	}
	return p.TravelSpeedMMps
}

// EffectiveRetractionMinimalDistanceUM returns the configured minimal
// travel distance before retraction policy considers retracting a move,
// defaulting to defaultRetractionMinimalDistanceUM when unset.
func (p *Profile) EffectiveRetractionMinimalDistanceUM() int32 {
	if p.RetractionMinimalDistance <= 0 {
		return defaultRetractionMinimalDistanceUM
	}
	return p.RetractionMinimalDistance
}

// NewPlanner constructs a *planner.Planner bound to e, wired with this
// profile's travel speed and retraction-minimal-distance settings rather
// than caller-supplied constants -- the Planner half of Apply's "wire a
// document onto the core's existing setter API" contract.
func (p *Profile) NewPlanner(e *gcode.Emitter) *planner.Planner {
	return planner.New(e, p.EffectiveTravelSpeedMMps(), p.EffectiveRetractionMinimalDistanceUM())
}

// toConfig translates the YAML-facing ColorMixing block into colormix.Config,
// rejecting unknown mode/mix-type names as configuration errors.
func (c ColorMixing) toConfig() (colormix.Config, error) {
	mode, ok := colorModeByName[c.Mode]
	if !ok {
		return colormix.Config{}, errors.ConfigError("profile.ColorMixing", "unknown mode: "+c.Mode)
	}
	mixType := colormix.Positional
	if c.MixType != "" {
		mt, ok := mixTypeByName[c.MixType]
		if !ok {
			return colormix.Config{}, errors.ConfigError("profile.ColorMixing", "unknown mix_type: "+c.MixType)
		}
		mixType = mt
	}
	return colormix.Config{
		Mode:             mode,
		ColorA:           c.ColorA,
		ColorB:           c.ColorB,
		OverlapCount:     c.OverlapCount,
		MixType:          mixType,
		FixedProportionA: c.FixedProportionA,
	}, nil
}
