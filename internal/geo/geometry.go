package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// AsMultiPolygon widens polygonal geometry to a MultiPolygon. The second
// return value is false for non-polygonal geometry.
func AsMultiPolygon(g orb.Geometry) (orb.MultiPolygon, bool) {
	switch v := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{v}, true
	case orb.MultiPolygon:
		return v, true
	default:
		return nil, false
	}
}

// Area returns the planar area of mp in square CRS units.
func Area(mp orb.MultiPolygon) float64 {
	return math.Abs(planar.Area(mp))
}

// Centroid returns the area-weighted centroid of mp. Degenerate shapes fall
// back to the centre of their bounding box.
func Centroid(mp orb.MultiPolygon) orb.Point {
	c, area := planar.CentroidArea(mp)
	if area == 0 || math.IsNaN(c[0]) || math.IsNaN(c[1]) {
		return mp.Bound().Center()
	}
	return c
}

// Intersects reports whether two polygonal footprints share at least one
// point, boundaries included.
func Intersects(a, b orb.MultiPolygon) bool {
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	for _, pa := range a {
		for _, pb := range b {
			if polygonsIntersect(pa, pb) {
				return true
			}
		}
	}
	return false
}

func polygonsIntersect(a, b orb.Polygon) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}

	for _, ra := range a {
		for _, rb := range b {
			if ringsCross(ra, rb) {
				return true
			}
		}
	}

	// No boundary crossings: either one contains the other or they are
	// disjoint (including one sitting inside the other's hole).
	if len(a[0]) > 0 && planar.PolygonContains(b, a[0][0]) {
		return true
	}
	if len(b[0]) > 0 && planar.PolygonContains(a, b[0][0]) {
		return true
	}
	return false
}

func ringsCross(a, b orb.Ring) bool {
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			if segmentsIntersect(a[i], a[i+1], b[j], b[j+1]) {
				return true
			}
		}
	}
	return false
}

// segmentsIntersect uses orientation tests; touching and collinear overlap
// both count.
func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := orient(q1, q2, p1)
	d2 := orient(q1, q2, p2)
	d3 := orient(p1, p2, q1)
	d4 := orient(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(q1, q2, p1)) ||
		(d2 == 0 && onSegment(q1, q2, p2)) ||
		(d3 == 0 && onSegment(p1, p2, q1)) ||
		(d4 == 0 && onSegment(p1, p2, q2))
}

func orient(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}
