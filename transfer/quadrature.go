package transfer

import "github.com/sarchlab/concom/overlay"

// gaussPoint is one quadrature point/weight pair over a subface, in
// 3-space (it lies on both the blue and green parent faces by
// construction of the overlay).
type gaussPoint struct {
	P overlay.Point
	W float64
}

// Order selects the quadrature rule: Order1 is exact for a linear
// field (single centroid point per triangle), Order2 is exact for a
// quadratic field (the standard 3-point triangle rule).
type Order int

const (
	Order1 Order = iota
	Order2
)

// gaussPoints triangulates poly by a fan from its first vertex and
// returns the quadrature points of the requested order over the whole
// polygon.
func gaussPoints(poly []overlay.Point, order Order) []gaussPoint {
	if len(poly) < 3 {
		return nil
	}
	var out []gaussPoint
	for i := 1; i < len(poly)-1; i++ {
		a, b, c := poly[0], poly[i], poly[i+1]
		out = append(out, triangleGauss(a, b, c, order)...)
	}
	return out
}

func triangleGauss(a, b, c overlay.Point, order Order) []gaussPoint {
	area := overlay.PolygonArea([]overlay.Point{a, b, c})
	if area == 0 {
		return nil
	}
	if order == Order1 {
		centroid := overlay.Point{
			X: (a.X + b.X + c.X) / 3,
			Y: (a.Y + b.Y + c.Y) / 3,
			Z: (a.Z + b.Z + c.Z) / 3,
		}
		return []gaussPoint{{P: centroid, W: area}}
	}

	// Standard 3-point rule over barycentric (2/3, 1/6, 1/6) and its two
	// permutations, each weighted area/3; exact for quadratics.
	weights := [3][3]float64{
		{2.0 / 3, 1.0 / 6, 1.0 / 6},
		{1.0 / 6, 2.0 / 3, 1.0 / 6},
		{1.0 / 6, 1.0 / 6, 2.0 / 3},
	}
	pts := make([]gaussPoint, 3)
	for i, w := range weights {
		pts[i] = gaussPoint{
			P: overlay.Point{
				X: w[0]*a.X + w[1]*b.X + w[2]*c.X,
				Y: w[0]*a.Y + w[1]*b.Y + w[2]*c.Y,
				Z: w[0]*a.Z + w[1]*b.Z + w[2]*c.Z,
			},
			W: area / 3,
		}
	}
	return pts
}
