package transfer

import (
	"github.com/sarchlab/concom/errs"
	"github.com/sarchlab/concom/overlay"
)

// Field is a source or target field over a Topology: either one value
// per global node (nodal) or one value per face (elemental).
type Field struct {
	Elemental bool
	Nodal     []float64 // indexed by Topology.NumNodes
	ByFace    []float64 // indexed by face, used when Elemental
}

func (f Field) valueAt(topo Topology, faceIdx int, p overlay.Point) float64 {
	if f.Elemental {
		return f.ByFace[faceIdx]
	}
	face := topo.Mesh.Faces[faceIdx]
	weights := shapeWeights(face, p)
	var v float64
	for k, w := range weights {
		v += w * f.Nodal[topo.Faces[faceIdx][k]]
	}
	return v
}

// Interpolate evaluates src (defined over blueTopo) at each target
// location implied by targetElemental/subfaces and returns a Field over
// greenTopo: evaluate the
// source field at each target sub-node's parametric location in its
// source parent, and average by integration weight.
func Interpolate(blueTopo, greenTopo Topology, subfaces []overlay.Subface, src Field, targetElemental bool) (Field, error) {
	op := "transfer.interpolate"
	if src.Elemental && src.ByFace == nil {
		return Field{}, errs.New(errs.InvalidArgument, op, "elemental source field has no face values")
	}
	if !src.Elemental && src.Nodal == nil {
		return Field{}, errs.New(errs.InvalidArgument, op, "nodal source field has no node values")
	}

	if targetElemental {
		return interpolateToElemental(blueTopo, greenTopo, subfaces, src)
	}
	return interpolateToNodal(blueTopo, greenTopo, subfaces, src)
}

func interpolateToElemental(blueTopo, greenTopo Topology, subfaces []overlay.Subface, src Field) (Field, error) {
	sumW := make([]float64, len(greenTopo.Mesh.Faces))
	sumV := make([]float64, len(greenTopo.Mesh.Faces))

	for _, sf := range subfaces {
		for _, gp := range gaussPoints(sf.Polygon, Order1) {
			v := src.valueAt(blueTopo, sf.BlueFace, gp.P)
			sumV[sf.GreenFace] += v * gp.W
			sumW[sf.GreenFace] += gp.W
		}
	}

	out := make([]float64, len(greenTopo.Mesh.Faces))
	for g := range out {
		if sumW[g] > 0 {
			out[g] = sumV[g] / sumW[g]
		}
	}
	return Field{Elemental: true, ByFace: out}, nil
}

func interpolateToNodal(blueTopo, greenTopo Topology, subfaces []overlay.Subface, src Field) (Field, error) {
	sumW := make([]float64, greenTopo.NumNodes)
	sumV := make([]float64, greenTopo.NumNodes)

	for _, sf := range subfaces {
		greenFace := greenTopo.Mesh.Faces[sf.GreenFace]
		greenNodes := greenTopo.Faces[sf.GreenFace]
		area := overlay.PolygonArea(sf.Polygon)
		for vi, vtx := range greenFace {
			// Every vertex of the green face receives the source field of
			// the subface's blue face evaluated at that vertex, weighted by
			// the subface's area, its integration weight.
			v := src.valueAt(blueTopo, sf.BlueFace, vtx)
			node := greenNodes[vi]
			sumV[node] += v * area
			sumW[node] += area
		}
	}

	out := make([]float64, greenTopo.NumNodes)
	for n := range out {
		if sumW[n] > 0 {
			out[n] = sumV[n] / sumW[n]
		}
	}
	return Field{Elemental: false, Nodal: out}, nil
}
