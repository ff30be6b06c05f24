package transfer

import "github.com/sarchlab/concom/overlay"

// TransferLoad implements the third, "load transfer", mode: src holds an elemental *extensive* quantity per blue face (a
// total, not a density — e.g. a force or a mass, as opposed to a
// field value) and the result distributes each blue face's total to
// every green face it overlaps in exact proportion to the overlapping
// area. Because the subfaces of one blue face partition its full area,
// the sum of every green face's received share equals the blue face's
// original total exactly (up to floating-point round-off), preserving
// the global integral the way a per-field-value interpolation cannot.
func TransferLoad(blueTopo, greenTopo Topology, subfaces []overlay.Subface, srcLoad []float64) []float64 {
	blueArea := make([]float64, len(blueTopo.Mesh.Faces))
	for i := range blueTopo.Mesh.Faces {
		blueArea[i] = blueTopo.FaceArea(i)
	}

	out := make([]float64, len(greenTopo.Mesh.Faces))
	for _, sf := range subfaces {
		ba := blueArea[sf.BlueFace]
		if ba == 0 {
			continue
		}
		share := sf.Area() / ba
		out[sf.GreenFace] += share * srcLoad[sf.BlueFace]
	}
	return out
}
