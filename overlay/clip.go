package overlay

import "math"

// planeBasis returns an orthonormal (u, v) basis spanning the plane of
// a polygon given its unit normal.
func planeBasis(normal Point) (u, v Point) {
	ref := Point{1, 0, 0}
	if math.Abs(normal.X) > 0.9 {
		ref = Point{0, 1, 0}
	}
	u = normalize(cross(normal, ref))
	v = cross(normal, u)
	return u, v
}

func faceNormal(poly []Point) Point {
	// Newell's method: robust for near-planar, non-triangular polygons.
	var n Point
	for i := range poly {
		a := poly[i]
		b := poly[(i+1)%len(poly)]
		n.X += (a.Y - b.Y) * (a.Z + b.Z)
		n.Y += (a.Z - b.Z) * (a.X + b.X)
		n.Z += (a.X - b.X) * (a.Y + b.Y)
	}
	return normalize(n)
}

type point2 struct{ x, y float64 }

func project2D(poly []Point, origin, u, v Point) []point2 {
	out := make([]point2, len(poly))
	for i, p := range poly {
		d := p.sub(origin)
		out[i] = point2{dot(d, u), dot(d, v)}
	}
	return out
}

func unproject2D(p point2, origin, u, v Point) Point {
	return origin.add(u.scale(p.x)).add(v.scale(p.y))
}

func polygonArea2D(poly []point2) float64 {
	var sum float64
	for i := range poly {
		a := poly[i]
		b := poly[(i+1)%len(poly)]
		sum += a.x*b.y - b.x*a.y
	}
	return sum / 2
}

// PolygonArea returns the area of a planar polygon given in 3-space.
func PolygonArea(poly []Point) float64 {
	if len(poly) < 3 {
		return 0
	}
	n := faceNormal(poly)
	u, v := planeBasis(n)
	return math.Abs(polygonArea2D(project2D(poly, poly[0], u, v)))
}

// clipConvex clips the subject polygon against the convex clip polygon
// (Sutherland-Hodgman), both in the clip polygon's 2-d plane coordinates.
// Returns nil if the polygons do not overlap.
func clipConvex(subject, clip []point2) []point2 {
	out := subject
	n := len(clip)
	for i := 0; i < n && len(out) > 0; i++ {
		a, b := clip[i], clip[(i+1)%n]
		out = clipEdge(out, a, b)
	}
	if len(out) < 3 {
		return nil
	}
	return out
}

func clipEdge(poly []point2, a, b point2) []point2 {
	inside := func(p point2) bool {
		return (b.x-a.x)*(p.y-a.y)-(b.y-a.y)*(p.x-a.x) >= 0
	}
	intersect := func(p, q point2) point2 {
		a1 := (b.x-a.x)*(p.y-a.y) - (b.y-a.y)*(p.x-a.x)
		a2 := (b.x-a.x)*(q.y-a.y) - (b.y-a.y)*(q.x-a.x)
		t := a1 / (a1 - a2)
		return point2{p.x + t*(q.x-p.x), p.y + t*(q.y-p.y)}
	}

	var out []point2
	for i := range poly {
		cur := poly[i]
		prev := poly[(i+len(poly)-1)%len(poly)]
		curIn, prevIn := inside(cur), inside(prev)
		if curIn {
			if !prevIn {
				out = append(out, intersect(prev, cur))
			}
			out = append(out, cur)
		} else if prevIn {
			out = append(out, intersect(prev, cur))
		}
	}
	return out
}

// ClipFaces computes the intersection polygon of two planar, convex
// polygons that may not lie in exactly the same plane: subject is
// projected onto clip's plane before clipping, which is valid when both
// already lie close to a shared surface (the case the overlay engine is
// seeded for).
func ClipFaces(subject, clip []Point) []Point {
	if len(clip) < 3 || len(subject) < 3 {
		return nil
	}
	n := faceNormal(clip)
	u, v := planeBasis(n)
	origin := clip[0]

	clip2 := project2D(clip, origin, u, v)
	if polygonArea2D(clip2) < 0 {
		reverse2(clip2)
	}
	subj2 := project2D(subject, origin, u, v)
	if polygonArea2D(subj2) < 0 {
		reverse2(subj2)
	}

	out2 := clipConvex(subj2, clip2)
	if out2 == nil {
		return nil
	}
	out := make([]Point, len(out2))
	for i, p := range out2 {
		out[i] = unproject2D(p, origin, u, v)
	}
	return out
}

func reverse2(p []point2) {
	for i, j := 0, len(p)-1; i < j; i, j = i+1, j-1 {
		p[i], p[j] = p[j], p[i]
	}
}
