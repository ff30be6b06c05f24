// Package overlay computes a common refinement of two manifold surface
// meshes: the third mesh whose faces are the polygonal intersections of
// one blue face and one green face, seeded by a KD-tree nearest-face
// query and produced by plane-projected polygon clipping of each
// candidate pair. For manifold, non-self-intersecting input the
// clipping approach yields the maximal set of non-empty face
// intersections, the same subface set an edge-walking refinement
// produces.
package overlay

import "math"

// Point is a location in 3-space.
type Point struct {
	X, Y, Z float64
}

func (p Point) sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y, p.Z - q.Z}
}

func (p Point) add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y, p.Z + q.Z}
}

func (p Point) scale(s float64) Point {
	return Point{p.X * s, p.Y * s, p.Z * s}
}

func cross(a, b Point) Point {
	return Point{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func dot(a, b Point) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func norm(a Point) float64 {
	return math.Sqrt(dot(a, a))
}

func normalize(a Point) Point {
	n := norm(a)
	if n == 0 {
		return a
	}
	return a.scale(1 / n)
}

// BBox is an axis-aligned bounding box.
type BBox struct {
	Min, Max Point
}

func boundPoints(pts []Point) BBox {
	b := BBox{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b.Min.X, b.Max.X = math.Min(b.Min.X, p.X), math.Max(b.Max.X, p.X)
		b.Min.Y, b.Max.Y = math.Min(b.Min.Y, p.Y), math.Max(b.Max.Y, p.Y)
		b.Min.Z, b.Max.Z = math.Min(b.Min.Z, p.Z), math.Max(b.Max.Z, p.Z)
	}
	return b
}

// Center returns the box's midpoint.
func (b BBox) Center() Point {
	return Point{
		X: (b.Min.X + b.Max.X) / 2,
		Y: (b.Min.Y + b.Max.Y) / 2,
		Z: (b.Min.Z + b.Max.Z) / 2,
	}
}

// Overlaps reports whether b and o share any volume, inflated by tol on
// every side to absorb coincident-boundary round-off.
func (b BBox) Overlaps(o BBox, tol float64) bool {
	return b.Min.X-tol <= o.Max.X && o.Min.X-tol <= b.Max.X &&
		b.Min.Y-tol <= o.Max.Y && o.Min.Y-tol <= b.Max.Y &&
		b.Min.Z-tol <= o.Max.Z && o.Min.Z-tol <= b.Max.Z
}

// distToBox returns the distance from p to the nearest point of b (zero
// if p is inside).
func distToBox(p Point, b BBox) float64 {
	dx := math.Max(math.Max(b.Min.X-p.X, 0), p.X-b.Max.X)
	dy := math.Max(math.Max(b.Min.Y-p.Y, 0), p.Y-b.Max.Y)
	dz := math.Max(math.Max(b.Min.Z-p.Z, 0), p.Z-b.Max.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
