package geom

import "testing"

func TestVsizeMM(t *testing.T) {
	p := Pt(3000, 4000)
	if got := VsizeMM(p); got != 5.0 {
		t.Fatalf("VsizeMM = %v, want 5.0", got)
	}
}

func TestShorterThan(t *testing.T) {
	p := Pt(3000, 4000) // length 5000
	if !ShorterThan(p, 5001) {
		t.Fatalf("expected 5000 < 5001")
	}
	if ShorterThan(p, 5000) {
		t.Fatalf("expected 5000 not strictly shorter than 5000")
	}
	if ShorterThan(p, 4999) {
		t.Fatalf("expected 5000 not shorter than 4999")
	}
}

func TestINT2MMRoundTrip(t *testing.T) {
	if got := INT2MM(1500); got != 1.5 {
		t.Fatalf("INT2MM(1500) = %v, want 1.5", got)
	}
	if got := MM2INT(1.5); got != 1500 {
		t.Fatalf("MM2INT(1.5) = %v, want 1500", got)
	}
}

func TestPointArith(t *testing.T) {
	a := Pt(10, 20)
	b := Pt(3, 4)
	if got := a.Add(b); got != Pt(13, 24) {
		t.Fatalf("Add = %v", got)
	}
	if got := a.Sub(b); got != Pt(7, 16) {
		t.Fatalf("Sub = %v", got)
	}
	if !a.Eq(Pt(10, 20)) {
		t.Fatalf("Eq failed")
	}
}
