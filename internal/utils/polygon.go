package utils

import "sort"

// ConvexHull computes the convex hull of a set of points using the
// monotone chain algorithm. Returns the hull in CCW order without
// duplicating the first point at the end. Useful for drawing a clean
// outline around detector corner points, which may arrive unordered.
func ConvexHull(pts []Point) []Point {
	n := len(pts)
	if n <= 1 {
		return append([]Point(nil), pts...)
	}
	p := make([]Point, n)
	copy(p, pts)
	sort.Slice(p, func(i, j int) bool {
		if p[i].X != p[j].X {
			return p[i].X < p[j].X
		}
		return p[i].Y < p[j].Y
	})
	p = dedupPoints(p)
	if len(p) <= 2 {
		return p
	}
	lower := halfHull(p)
	reversed := make([]Point, len(p))
	for i, q := range p {
		reversed[len(p)-1-i] = q
	}
	upper := halfHull(reversed)
	hull := make([]Point, 0, len(lower)+len(upper)-2)
	hull = append(hull, lower[:len(lower)-1]...)
	hull = append(hull, upper[:len(upper)-1]...)
	return hull
}

func dedupPoints(sorted []Point) []Point {
	out := sorted[:0]
	for i, p := range sorted {
		if i == 0 || p != sorted[i-1] {
			out = append(out, p)
		}
	}
	return out
}

func halfHull(p []Point) []Point {
	hull := make([]Point, 0, len(p))
	for _, q := range p {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], q) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, q)
	}
	return hull
}

// cross returns the z-component of (b-a) x (c-a); positive for a left turn.
func cross(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}
