// Package combing defines the obstacle-aware travel oracle the planner
// consults when routing travel moves, along with a direct-visibility
// default implementation good enough to exercise the planner's combing
// branch without pulling in a full geometric avoidance engine (out of
// scope for this core).
package combing

import "fdmtoolpath/pkg/geom"

// Oracle is the external collaborator interface the planner calls into.
// Calc attempts to produce an obstacle-free polyline from one point to
// another; Inside tests whether a point is within the combing region;
// MoveInside nudges a point that has drifted outside back in by at least
// distance micrometres, reporting whether it succeeded.
type Oracle interface {
	Calc(from, to geom.Point) (path []geom.Point, ok bool)
	Inside(p geom.Point) bool
	MoveInside(p *geom.Point, distance int32) bool
}

// Polygon is a closed ring of vertices, wound in either direction.
type Polygon []geom.Point

// Default is a direct-visibility combing oracle: it knows the boundary of
// the printed region as a set of polygons and only ever routes travel
// moves along the straight line between two points, succeeding when that
// line stays inside the boundary and failing otherwise (which tells the
// planner to fall back to a retracted travel). It does not route *around*
// obstacles the way a full comb avoidance engine would.
type Default struct {
	boundary []Polygon
}

// NewDefault builds a combing oracle from the polygons that bound the
// region moves should stay inside (typically the layer's outer wall
// loops).
func NewDefault(boundary []Polygon) *Default {
	return &Default{boundary: boundary}
}

// Calc returns the direct line from->to when both endpoints, and enough
// of the midpoint, stay inside the boundary; otherwise it reports failure
// so the planner can fall back to a retraction.
func (d *Default) Calc(from, to geom.Point) ([]geom.Point, bool) {
	if !d.Inside(from) || !d.Inside(to) {
		return nil, false
	}
	mid := geom.Pt((from.X+to.X)/2, (from.Y+to.Y)/2)
	if !d.Inside(mid) {
		return nil, false
	}
	return []geom.Point{to}, true
}

// Inside reports whether p is inside any of the boundary polygons, using
// an even-odd ray-casting test.
func (d *Default) Inside(p geom.Point) bool {
	for _, poly := range d.boundary {
		if pointInPolygon(poly, p) {
			return true
		}
	}
	return false
}

// MoveInside moves p onto the nearest edge of the closest boundary
// polygon and then distance micrometres along that edge's normal, on the
// side facing the polygon's centroid, in a single step. It reports
// whether the moved point is inside.
func (d *Default) MoveInside(p *geom.Point, distance int32) bool {
	if d.Inside(*p) {
		return true
	}
	if len(d.boundary) == 0 {
		return false
	}
	poly, edgeStart, edgeEnd := nearestEdge(d.boundary, *p)
	if poly == nil {
		return false
	}
	proj := projectOntoSegment(*p, edgeStart, edgeEnd)
	inward := inwardNormal(edgeStart, edgeEnd, centroid(poly))
	moved := geom.Pt(proj.X+scaleComponent(inward.X, distance), proj.Y+scaleComponent(inward.Y, distance))
	*p = moved
	return d.Inside(*p)
}

func pointInPolygon(poly Polygon, p geom.Point) bool {
	if len(poly) < 3 {
		return false
	}
	inside := false
	j := len(poly) - 1
	for i := range poly {
		pi, pj := poly[i], poly[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) {
			slope := float64(pj.X-pi.X) * float64(p.Y-pi.Y) / float64(pj.Y-pi.Y)
			if float64(p.X) < float64(pi.X)+slope {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

func nearestEdge(polys []Polygon, p geom.Point) (Polygon, geom.Point, geom.Point) {
	var best Polygon
	var bestA, bestB geom.Point
	bestDist := int64(-1)
	for _, poly := range polys {
		if len(poly) < 2 {
			continue
		}
		for i := range poly {
			a := poly[i]
			b := poly[(i+1)%len(poly)]
			proj := projectOntoSegment(p, a, b)
			d := geom.Vsize2(p.Sub(proj))
			if bestDist == -1 || d < bestDist {
				bestDist = d
				best = poly
				bestA, bestB = a, b
			}
		}
	}
	return best, bestA, bestB
}

func projectOntoSegment(p, a, b geom.Point) geom.Point {
	abx, aby := float64(b.X-a.X), float64(b.Y-a.Y)
	lenSq := abx*abx + aby*aby
	if lenSq == 0 {
		return a
	}
	apx, apy := float64(p.X-a.X), float64(p.Y-a.Y)
	t := (apx*abx + apy*aby) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return geom.Pt(a.X+int32(t*abx), a.Y+int32(t*aby))
}

func centroid(poly Polygon) geom.Point {
	var sx, sy int64
	for _, v := range poly {
		sx += int64(v.X)
		sy += int64(v.Y)
	}
	n := int64(len(poly))
	if n == 0 {
		return geom.Point{}
	}
	return geom.Pt(int32(sx/n), int32(sy/n))
}

// inwardNormal returns a unit-ish direction from the edge midpoint toward
// the polygon centroid, used to push a point back inside past an edge.
func inwardNormal(a, b, centroid geom.Point) geom.Point {
	mid := geom.Pt((a.X+b.X)/2, (a.Y+b.Y)/2)
	dir := centroid.Sub(mid)
	length := geom.Vsize(dir)
	if length == 0 {
		return geom.Point{}
	}
	return geom.Pt(int32(float64(dir.X)/float64(length)*1000), int32(float64(dir.Y)/float64(length)*1000))
}

func scaleComponent(unitMilli int32, distance int32) int32 {
	return int32(int64(unitMilli) * int64(distance) / 1000)
}
