package transfer

import "github.com/sarchlab/concom/overlay"

// shapeWeights returns one weight per vertex of face (a tri/quad
// polygon, in winding order) for point p, which must lie in face's
// plane. This is the linear-fit shape function the transfer's
// Gauss-point evaluation is built on.
//
// Triangles use the standard 3-point barycentric formula; quads are
// handled by splitting into the two triangles (0,1,2) and (0,2,3) and
// using whichever one contains p (falling back to the less-negative
// one near a shared edge, then clamping/renormalizing), which is the
// same fan-triangulation idiom package overlay uses to seed its own
// quadrature.
func shapeWeights(face []overlay.Point, p overlay.Point) []float64 {
	switch len(face) {
	case 3:
		wa, wb, wc := baryTriangle(face[0], face[1], face[2], p)
		return []float64{wa, wb, wc}
	case 4:
		return shapeWeightsQuad(face, p)
	default:
		return nil
	}
}

// baryTriangle returns the barycentric weights of p with respect to
// triangle (a, b, c), valid for any p coplanar with the triangle.
func baryTriangle(a, b, c, p overlay.Point) (wa, wb, wc float64) {
	v0 := sub(b, a)
	v1 := sub(c, a)
	v2 := sub(p, a)

	d00 := dot(v0, v0)
	d01 := dot(v0, v1)
	d11 := dot(v1, v1)
	d20 := dot(v2, v0)
	d21 := dot(v2, v1)

	denom := d00*d11 - d01*d01
	if denom == 0 {
		return 1, 0, 0
	}
	wb = (d11*d20 - d01*d21) / denom
	wc = (d00*d21 - d01*d20) / denom
	wa = 1 - wb - wc
	return wa, wb, wc
}

func shapeWeightsQuad(face []overlay.Point, p overlay.Point) []float64 {
	wa1, wb1, wc1 := baryTriangle(face[0], face[1], face[2], p)
	wa2, wb2, wc2 := baryTriangle(face[0], face[2], face[3], p)

	min1 := minOf3(wa1, wb1, wc1)
	min2 := minOf3(wa2, wb2, wc2)

	var w [4]float64
	if min1 >= min2 {
		w = [4]float64{wa1, wb1, wc1, 0}
	} else {
		w = [4]float64{wa2, 0, wb2, wc2}
	}

	// Clamp negatives (p slightly outside the chosen triangle, near a
	// shared diagonal or the polygon boundary) and renormalize.
	sum := 0.0
	for i := range w {
		if w[i] < 0 {
			w[i] = 0
		}
		sum += w[i]
	}
	if sum == 0 {
		return []float64{0.25, 0.25, 0.25, 0.25}
	}
	for i := range w {
		w[i] /= sum
	}
	return w[:]
}

func sub(p, q overlay.Point) overlay.Point {
	return overlay.Point{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

func dot(a, b overlay.Point) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func minOf3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
