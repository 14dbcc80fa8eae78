// Package geom provides the integer geometry primitives the tool-path core
// is built on: 2D points in micrometre units, 3D positions, and the handful
// of exact vector operations the emitter and planner need.
package geom

import "math"

// Point is a 2D point in micrometres. Coordinates are exact integers so that
// repeated accumulation across a whole print never drifts.
type Point struct {
	X, Y int32
}

// Pt is a convenience constructor.
func Pt(x, y int32) Point {
	return Point{X: x, Y: y}
}

// Add returns p+q.
func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y}
}

// Sub returns p-q.
func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y}
}

// Neg returns -p.
func (p Point) Neg() Point {
	return Point{-p.X, -p.Y}
}

// Div returns the point scaled down by an integer divisor (used when
// averaging two waypoints during small-move coalescing).
func (p Point) Div(n int32) Point {
	return Point{p.X / n, p.Y / n}
}

// Eq reports whether p and q are the same point.
func (p Point) Eq(q Point) bool {
	return p.X == q.X && p.Y == q.Y
}

// Vsize2 returns the squared Euclidean length, exact in int64.
func Vsize2(p Point) int64 {
	x, y := int64(p.X), int64(p.Y)
	return x*x + y*y
}

// Vsize returns the Euclidean length in micrometres.
func Vsize(p Point) int64 {
	return int64(math.Sqrt(float64(Vsize2(p))))
}

// VsizeMM returns the Euclidean length converted to millimetres.
func VsizeMM(p Point) float64 {
	return math.Sqrt(float64(p.X)*float64(p.X) + float64(p.Y)*float64(p.Y)) / 1000.0
}

// ShorterThan reports whether the length of p is strictly shorter than len,
// without taking a square root (mirrors the micrometre-domain comparisons
// the planner does when deciding whether a travel move needs a retraction).
func ShorterThan(p Point, length int32) bool {
	if length < 0 {
		return false
	}
	return Vsize2(p) < int64(length)*int64(length)
}

// INT2MM converts a micrometre integer quantity to millimetres.
func INT2MM(v int32) float64 {
	return float64(v) / 1000.0
}

// MM2INT converts a millimetre quantity to a micrometre integer, rounding
// to the nearest micrometre.
func MM2INT(v float64) int32 {
	if v >= 0 {
		return int32(v*1000.0 + 0.5)
	}
	return int32(v*1000.0 - 0.5)
}

// Point3 is a 3D position in micrometres (X, Y, Z).
type Point3 struct {
	X, Y, Z int32
}

// Pt3 is a convenience constructor.
func Pt3(x, y, z int32) Point3 {
	return Point3{X: x, Y: y, Z: z}
}

// XY projects a 3D position down to its XY component.
func (p Point3) XY() Point {
	return Point{X: p.X, Y: p.Y}
}

// Eq reports whether p and q are the same 3D position.
func (p Point3) Eq(q Point3) bool {
	return p.X == q.X && p.Y == q.Y && p.Z == q.Z
}

// WithXY rebuilds a Point3 from an XY point, keeping the current Z.
func (p Point3) WithXY(xy Point) Point3 {
	return Point3{X: xy.X, Y: xy.Y, Z: p.Z}
}
