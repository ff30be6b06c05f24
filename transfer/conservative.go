package transfer

import (
	"github.com/sarchlab/concom/errs"
	"github.com/sarchlab/concom/overlay"
)

// massRow is one row of the target mass matrix, sparse by construction
// since a target node's shape function only overlaps nodes of faces it
// belongs to.
type massRow map[int]float64

// TransferConservative implements the least-squares conservative
// transfer: minimize ||u_t - u_s||^2 over the common
// refinement. The right-hand side is built by integrating source shape
// functions against target ones on each subface at Gauss points (order
// per the order argument); the target-side mass matrix is solved by
// conjugate gradients (tol/maxIter, or the documented defaults when
// <= 0).
//
// Only nodal->nodal and elemental->elemental transfers have a
// meaningful mass-matrix fit (mixed-location transfer has no shared
// shape-function space to minimize over); those are routed through
// Interpolate instead, so all four location combinations remain
// supported.
func TransferConservative(blueTopo, greenTopo Topology, subfaces []overlay.Subface, src Field, targetElemental bool, order Order, tol float64, maxIter int) (Field, error) {
	if targetElemental != src.Elemental {
		return Interpolate(blueTopo, greenTopo, subfaces, src, targetElemental)
	}
	if targetElemental {
		return transferElementalConservative(blueTopo, greenTopo, subfaces, src)
	}
	return transferNodalConservative(blueTopo, greenTopo, subfaces, src, order, tol, maxIter)
}

// transferElementalConservative has one degree of freedom per face, so
// the "mass matrix" is diagonal (face self-area) and the solve reduces
// to the plain area-weighted average already computed by Interpolate;
// it is exact, not merely least-squares, for a piecewise-constant
// target space.
func transferElementalConservative(blueTopo, greenTopo Topology, subfaces []overlay.Subface, src Field) (Field, error) {
	return interpolateToElemental(blueTopo, greenTopo, subfaces, src)
}

func transferNodalConservative(blueTopo, greenTopo Topology, subfaces []overlay.Subface, src Field, order Order, tol float64, maxIter int) (Field, error) {
	op := "transfer.conservative"
	n := greenTopo.NumNodes
	rows := make([]massRow, n)
	for i := range rows {
		rows[i] = make(massRow)
	}
	b := make([]float64, n)

	for _, sf := range subfaces {
		greenFace := greenTopo.Mesh.Faces[sf.GreenFace]
		greenNodes := greenTopo.Faces[sf.GreenFace]

		for _, gp := range gaussPoints(sf.Polygon, order) {
			gw := shapeWeights(greenFace, gp.P)
			uSrc := src.valueAt(blueTopo, sf.BlueFace, gp.P)

			for k, wk := range gw {
				nk := greenNodes[k]
				b[nk] += gp.W * wk * uSrc
				for l, wl := range gw {
					nl := greenNodes[l]
					rows[nk][nl] += gp.W * wk * wl
				}
			}
		}
	}

	mul := func(x []float64) []float64 {
		out := make([]float64, n)
		for i, row := range rows {
			var s float64
			for j, a := range row {
				s += a * x[j]
			}
			out[i] = s
		}
		return out
	}

	x, err := conjugateGradient(mul, b, tol, maxIter)
	if err != nil {
		return Field{}, errs.Wrap(op, err)
	}
	return Field{Elemental: false, Nodal: x}, nil
}
