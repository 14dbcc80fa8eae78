// Package colormix implements the dual-filament "two-in-one-out nozzle"
// colour blending strategies. Each strategy is a variant of how the delta
// between the single combined extrusion counter and the sum of the two
// channel counters gets distributed between channel A and channel B; the
// split is dispatched once, here, rather than as interleaved if-chains in
// the move-writing path.
package colormix

// Mode selects which blend strategy governs how Δ = extrusionAmount -
// AAmount - BAmount is distributed between the two channels on every
// extruding move.
type Mode int

const (
	// Single always emits the full (not delta) extrusion amount split
	// evenly: both channels track 0.5*extrusionAmount.
	Single Mode = iota
	// Double routes all of Δ to whichever channel matches the active
	// extruder (A for extruder 0, B for extruder 1).
	Double
	// Layer alternates which channel absorbs Δ on a per-layer stripe,
	// per Config.OverlapCount.
	Layer
	// Mix blends by layer-height percentage between ColorA and ColorB
	// bounds, using either a fixed proportion or a linear gradient.
	Mix
)

// MixType selects how Mix mode interpolates within its bounds.
type MixType int

const (
	// Positional linearly interpolates within [ColorA, ColorB] (or
	// [ColorB, ColorA] if reversed), saturating outside the bounds.
	Positional MixType = 0
	// FixedProportion ignores layer height and always applies a fixed
	// split given by FixedProportionA.
	FixedProportion MixType = 1
)

// Config holds the parameters for every blend strategy at once; only the
// fields relevant to the active Mode are consulted.
type Config struct {
	Mode Mode

	// ColorA, ColorB bound the gradient for Mix mode, expressed as a
	// percentage of total layer height (0-100).
	ColorA, ColorB int

	// OverlapCount is the number of Layer-mode stripes across the whole
	// print; each stripe spans totalLayer/OverlapCount layers.
	OverlapCount int

	// MixType selects Positional vs FixedProportion for Mix mode.
	MixType MixType

	// FixedProportionA is the percentage of Δ routed to channel A when
	// MixType is FixedProportion.
	FixedProportionA int
}

// State tracks the running per-channel totals. It is owned by the emitter
// and updated on every extruding move once two-in-one-out mode is active.
type State struct {
	AAmount, BAmount float64
}

// Split computes the updated (AAmount, BAmount) for a move that has just
// brought the combined counter to totalExtrusion, given the extruder
// currently selected and the layer position. It returns the new state;
// callers assign it back into the emitter.
//
// Single, Double, and the Layer and Mix shares leave AAmount+BAmount ==
// totalExtrusion (the two Mix shares are complements of one another).
// Layer and Mix with totalLayer == 0, and an unknown Mode, return s
// unchanged.
func Split(cfg Config, s State, extruderNr, currentLayer, totalLayer int, totalExtrusion float64) State {
	delta := totalExtrusion - s.AAmount - s.BAmount

	switch cfg.Mode {
	case Single:
		return State{AAmount: 0.5 * totalExtrusion, BAmount: 0.5 * totalExtrusion}

	case Double:
		if extruderNr == 0 {
			return State{AAmount: s.AAmount + delta, BAmount: s.BAmount}
		}
		return State{AAmount: s.AAmount, BAmount: s.BAmount + delta}

	case Layer:
		return splitLayer(cfg, s, currentLayer, totalLayer, delta)

	case Mix:
		return splitMix(cfg, s, currentLayer, totalLayer, delta)

	default:
		return s
	}
}

// splitLayer alternates the channel that absorbs Δ on a per-layer stripe.
//
// The reference implementation computes
//
//	count := currentLayer * OverlapCount / totalLayer
//
// using truncating integer division before ever looking at a fractional
// remainder; a trailing "+ 0.5" in the original source is applied to that
// already-truncated integer and therefore never changes the result for
// non-negative inputs. This is preserved deliberately (see DESIGN.md) so
// that observed stripe boundaries match the reference rather than a
// "corrected" round-half-up.
func splitLayer(cfg Config, s State, currentLayer, totalLayer int, delta float64) State {
	if totalLayer == 0 {
		return s
	}
	count := (currentLayer * cfg.OverlapCount / totalLayer) % 2
	if count == 0 {
		return State{AAmount: s.AAmount + delta, BAmount: s.BAmount}
	}
	return State{AAmount: s.AAmount, BAmount: s.BAmount + delta}
}

// splitMix blends by layer-height percentage, or by a fixed proportion.
func splitMix(cfg Config, s State, currentLayer, totalLayer int, delta float64) State {
	if totalLayer == 0 {
		return s
	}
	if cfg.MixType == FixedProportion {
		fracA := float64(cfg.FixedProportionA) / 100.0
		return State{AAmount: s.AAmount + delta*fracA, BAmount: s.BAmount + delta*(1-fracA)}
	}

	pct := currentLayer * 100 / totalLayer
	a, b := cfg.ColorA, cfg.ColorB

	switch {
	case a > b:
		switch {
		case pct >= b && pct <= a:
			frac := float64(pct-b) / float64(a-b)
			return State{AAmount: s.AAmount + delta*frac, BAmount: s.BAmount + delta*(1-frac)}
		case pct < b:
			return State{AAmount: s.AAmount, BAmount: s.BAmount + delta}
		default: // pct > a
			return State{AAmount: s.AAmount + delta, BAmount: s.BAmount}
		}
	case a < b:
		switch {
		case pct <= b && pct >= a:
			frac := float64(pct-a) / float64(b-a)
			return State{AAmount: s.AAmount + delta*(1-frac), BAmount: s.BAmount + delta*frac}
		case pct < a:
			return State{AAmount: s.AAmount + delta, BAmount: s.BAmount}
		default: // pct > b
			return State{AAmount: s.AAmount, BAmount: s.BAmount + delta}
		}
	default: // a == b
		switch {
		case pct < a:
			return State{AAmount: s.AAmount + delta, BAmount: s.BAmount}
		case pct > a:
			return State{AAmount: s.AAmount, BAmount: s.BAmount + delta}
		default: // pct == a
			return State{AAmount: s.AAmount + delta*0.5, BAmount: s.BAmount + delta*0.5}
		}
	}
}
