package colormix

import "testing"

func approxEq(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}

func TestSingleAlwaysEvenSplit(t *testing.T) {
	cfg := Config{Mode: Single}
	s := Split(cfg, State{AAmount: 1, BAmount: 1}, 0, 0, 10, 4.0)
	if !approxEq(s.AAmount, 2.0) || !approxEq(s.BAmount, 2.0) {
		t.Fatalf("Single split = %+v", s)
	}
}

func TestDoubleRoutesByExtruder(t *testing.T) {
	cfg := Config{Mode: Double}
	s := Split(cfg, State{}, 0, 0, 10, 1.0)
	if !approxEq(s.AAmount, 1.0) || !approxEq(s.BAmount, 0.0) {
		t.Fatalf("extruder0: %+v", s)
	}
	s = Split(cfg, State{}, 1, 0, 10, 1.0)
	if !approxEq(s.AAmount, 0.0) || !approxEq(s.BAmount, 1.0) {
		t.Fatalf("extruder1: %+v", s)
	}
}

func TestLayerStripeParity(t *testing.T) {
	cfg := Config{Mode: Layer, OverlapCount: 1}
	// currentLayer*OverlapCount/totalLayer truncates to 0 while
	// currentLayer < totalLayer, so channel A absorbs delta.
	s := Split(cfg, State{}, 0, 3, 10, 1.0)
	if !approxEq(s.AAmount, 1.0) || !approxEq(s.BAmount, 0.0) {
		t.Fatalf("layer<totalLayer: %+v", s)
	}
	// currentLayer==totalLayer gives count=1 -> channel B.
	s = Split(cfg, State{}, 0, 10, 10, 1.0)
	if !approxEq(s.BAmount, 1.0) || !approxEq(s.AAmount, 0.0) {
		t.Fatalf("layer==totalLayer: %+v", s)
	}
}

func TestLayerZeroTotalIsNoop(t *testing.T) {
	cfg := Config{Mode: Layer, OverlapCount: 1}
	prev := State{AAmount: 5, BAmount: 5}
	if got := Split(cfg, prev, 0, 1, 0, 20); got != prev {
		t.Fatalf("expected no-op on totalLayer=0, got %+v", got)
	}
}

func TestMixFixedProportion(t *testing.T) {
	cfg := Config{Mode: Mix, MixType: FixedProportion, FixedProportionA: 25}
	s := Split(cfg, State{}, 0, 5, 10, 4.0)
	if !approxEq(s.AAmount, 1.0) || !approxEq(s.BAmount, 3.0) {
		t.Fatalf("fixed proportion: %+v", s)
	}
}

func TestMixPositionalTieBreak(t *testing.T) {
	cfg := Config{Mode: Mix, MixType: Positional, ColorA: 50, ColorB: 50}
	s := Split(cfg, State{}, 0, 5, 10, 2.0) // pct == 50 == ColorA == ColorB
	if !approxEq(s.AAmount, 1.0) || !approxEq(s.BAmount, 1.0) {
		t.Fatalf("tie break should split 50/50: %+v", s)
	}
	// below bound: all to A
	s = Split(cfg, State{}, 0, 0, 10, 2.0)
	if !approxEq(s.AAmount, 2.0) || !approxEq(s.BAmount, 0.0) {
		t.Fatalf("below bound should favor A: %+v", s)
	}
	// above bound: all to B
	s = Split(cfg, State{}, 0, 6, 10, 2.0)
	if !approxEq(s.BAmount, 2.0) || !approxEq(s.AAmount, 0.0) {
		t.Fatalf("above bound should favor B: %+v", s)
	}
}

func TestMixPositionalGradientAscending(t *testing.T) {
	cfg := Config{Mode: Mix, MixType: Positional, ColorA: 0, ColorB: 100}
	s := Split(cfg, State{}, 0, 5, 10, 1.0) // pct=50, a<b so frac=(50-0)/(100-0)=0.5 -> B gets 0.5
	if !approxEq(s.AAmount, 0.5) || !approxEq(s.BAmount, 0.5) {
		t.Fatalf("ascending midpoint: %+v", s)
	}
}
