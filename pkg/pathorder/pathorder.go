// Package pathorder provides the default nearest-neighbour path-order
// optimiser: given a starting position and a set of polygons, it chooses a
// visit order and, for each polygon, the starting vertex that minimises
// total travel. The planner treats this as an external, swappable
// collaborator (see pkg/planner); a production slicer would plug in a
// spatial-index-accelerated version here instead.
package pathorder

import "fdmtoolpath/pkg/geom"

// Polygon is a closed ring of vertices.
type Polygon []geom.Point

// Optimizer greedily orders a set of polygons by nearest-neighbour
// distance from a seed position, picking the closest vertex of each
// candidate polygon as its entry point.
type Optimizer struct {
	start    geom.Point
	polygons []Polygon

	// PolyOrder lists polygon indices (into the slice passed to
	// AddPolygon, in call order) in the chosen visiting order.
	PolyOrder []int

	// PolyStart[i] is the vertex index within polygon i to start
	// traversal from; valid once Optimize has run.
	PolyStart []int
}

// New creates an Optimizer seeded from the given position.
func New(start geom.Point) *Optimizer {
	return &Optimizer{start: start}
}

// AddPolygon registers a polygon to be ordered.
func (o *Optimizer) AddPolygon(p Polygon) {
	o.polygons = append(o.polygons, p)
	o.PolyStart = append(o.PolyStart, 0)
}

// Optimize runs the greedy nearest-neighbour pass, filling PolyOrder and
// PolyStart. It is safe to call once; calling it again recomputes from
// scratch using the same registered polygons.
func (o *Optimizer) Optimize() {
	n := len(o.polygons)
	visited := make([]bool, n)
	o.PolyOrder = o.PolyOrder[:0]
	cur := o.start

	for visited2Count := 0; visited2Count < n; visited2Count++ {
		best := -1
		bestVertex := 0
		bestDist := int64(-1)
		for i, poly := range o.polygons {
			if visited[i] || len(poly) == 0 {
				continue
			}
			vIdx, d := closestVertex(poly, cur)
			if bestDist == -1 || d < bestDist {
				bestDist = d
				best = i
				bestVertex = vIdx
			}
		}
		if best == -1 {
			break
		}
		visited[best] = true
		o.PolyOrder = append(o.PolyOrder, best)
		o.PolyStart[best] = bestVertex
		cur = o.polygons[best][bestVertex]
	}
}

func closestVertex(poly Polygon, from geom.Point) (int, int64) {
	bestIdx := 0
	bestDist := geom.Vsize2(poly[0].Sub(from))
	for i := 1; i < len(poly); i++ {
		d := geom.Vsize2(poly[i].Sub(from))
		if d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	return bestIdx, bestDist
}
