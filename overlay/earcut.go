package overlay

// triangulateEarCut triangulates a simple planar polygon given as a
// ring in 3-space, returning triples of indices into the ring. The
// overlay persists only triangles, so every clipped subface polygon
// passes through here before entering a Refinement.
func triangulateEarCut(poly []Point) [][3]int {
	n := len(poly)
	if n < 3 {
		return nil
	}
	if n == 3 {
		return [][3]int{{0, 1, 2}}
	}

	normal := faceNormal(poly)
	u, v := planeBasis(normal)
	pts := project2D(poly, poly[0], u, v)
	if polygonArea2D(pts) < 0 {
		// Work on a counterclockwise copy, emitting original indices.
		rev := make([]point2, n)
		for i := range pts {
			rev[i] = pts[n-1-i]
		}
		tris := earCut2D(rev)
		for t := range tris {
			for k := 0; k < 3; k++ {
				tris[t][k] = n - 1 - tris[t][k]
			}
		}
		return tris
	}
	return earCut2D(pts)
}

func earCut2D(pts []point2) [][3]int {
	n := len(pts)
	ring := make([]int, n)
	for i := range ring {
		ring[i] = i
	}

	var tris [][3]int
	guard := 0
	for len(ring) > 3 && guard < n*n {
		guard++
		clipped := false
		for i := 0; i < len(ring); i++ {
			prev := ring[(i+len(ring)-1)%len(ring)]
			cur := ring[i]
			next := ring[(i+1)%len(ring)]

			if !isEar(pts, ring, prev, cur, next) {
				continue
			}
			tris = append(tris, [3]int{prev, cur, next})
			ring = append(ring[:i], ring[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			// Degenerate ring (collinear runs); fall back to a fan so the
			// caller still gets full coverage.
			for i := 1; i < len(ring)-1; i++ {
				tris = append(tris, [3]int{ring[0], ring[i], ring[i+1]})
			}
			return tris
		}
	}
	if len(ring) == 3 {
		tris = append(tris, [3]int{ring[0], ring[1], ring[2]})
	}
	return tris
}

func isEar(pts []point2, ring []int, a, b, c int) bool {
	if cross2(pts[a], pts[b], pts[c]) <= 0 {
		return false // reflex or degenerate corner
	}
	for _, r := range ring {
		if r == a || r == b || r == c {
			continue
		}
		if pointInTri2(pts[r], pts[a], pts[b], pts[c]) {
			return false
		}
	}
	return true
}

func cross2(o, a, b point2) float64 {
	return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x)
}

func pointInTri2(p, a, b, c point2) bool {
	d1 := cross2(a, b, p)
	d2 := cross2(b, c, p)
	d3 := cross2(c, a, p)
	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	return !(hasNeg && hasPos)
}
