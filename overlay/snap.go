package overlay

import (
	"log/slog"
	"math"
	"sort"
)

// FeatureParams configures the feature-detection and snapping pass
// that runs before the overlay proper: dihedral threshold (radians)
// for sharp edges, the signal-to-noise ratio a candidate must clear
// against the mesh's background dihedral noise, and the
// vertex-to-vertex snapping tolerance (zero means "derive from the
// shortest edge" the same way the overlay's own tolerances default).
type FeatureParams struct {
	DihedralThreshold float64
	MinSNR            float64
	SnapTolerance     float64
}

// SnapReport summarizes what a snapping pass did.
type SnapReport struct {
	SnappedVertices int
	DemotedCorners  []int
}

// detectFeatureVertices projects a DetectFeatures result down to the
// node sets the snapping pass matches on: every node on a surviving
// sharp edge, and the subset that are corners.
func detectFeatureVertices(m IndexedMesh, p FeatureParams) (featureNodes map[int]bool, corners map[int]bool, err error) {
	feat, err := DetectFeatures(m, p)
	if err != nil {
		return nil, nil, err
	}

	featureNodes = make(map[int]bool)
	for _, fe := range feat.Edges {
		featureNodes[fe.Edge.A] = true
		featureNodes[fe.Edge.B] = true
	}
	corners = make(map[int]bool)
	for _, n := range feat.Corners {
		corners[n] = true
	}
	return featureNodes, corners, nil
}

// meanDihedral is the background dihedral level the SNR filter
// measures candidates against: the mean angle over every interior
// edge of the mesh.
func meanDihedral(m IndexedMesh) float64 {
	all, err := DetectSharpEdges(m, 0)
	if err != nil || len(all) == 0 {
		return 0
	}
	var sum float64
	for _, fe := range all {
		sum += fe.DihedralRadian
	}
	return sum / float64(len(all))
}

// SnapFeatures aligns blue's feature graph to green's: every blue
// feature vertex within tolerance of a green feature vertex is moved
// exactly onto it, so the overlay's edge walks see coincident feature
// curves instead of two curves a round-off apart. A blue corner with
// no green corner in range is demoted to a regular vertex with a
// warning, per the overlay's failure-mode contract; blue.Positions is
// modified in place.
func SnapFeatures(blue *IndexedMesh, green IndexedMesh, p FeatureParams) (SnapReport, error) {
	var report SnapReport

	blueFeat, blueCorners, err := detectFeatureVertices(*blue, p)
	if err != nil {
		return report, err
	}
	greenFeat, greenCorners, err := detectFeatureVertices(green, p)
	if err != nil {
		return report, err
	}

	tol := p.SnapTolerance
	if tol <= 0 {
		tol = shortestEdgeIndexed(*blue) * 1e-3
	}

	blueNodes := make([]int, 0, len(blueFeat))
	for bn := range blueFeat {
		blueNodes = append(blueNodes, bn)
	}
	sort.Ints(blueNodes)

	for _, bn := range blueNodes {
		candidates := greenFeat
		if blueCorners[bn] {
			candidates = greenCorners
		}
		gn, dist := nearestNode(blue.Positions[bn], green, candidates)
		if gn >= 0 && dist <= tol {
			blue.Positions[bn] = green.Positions[gn]
			report.SnappedVertices++
			continue
		}
		if blueCorners[bn] {
			// No matching green corner: the corner cannot anchor the
			// feature graphs to each other, so it participates as a
			// regular vertex.
			report.DemotedCorners = append(report.DemotedCorners, bn)
			slog.Warn("feature corner has no counterpart within tolerance; demoting to regular vertex",
				"node", bn, "tolerance", tol)
		}
	}
	return report, nil
}

func nearestNode(p Point, m IndexedMesh, among map[int]bool) (int, float64) {
	best := -1
	bestDist := math.Inf(1)
	for n := range among {
		d := norm(p.sub(m.Positions[n]))
		if d < bestDist {
			best, bestDist = n, d
		}
	}
	return best, bestDist
}

func shortestEdgeIndexed(m IndexedMesh) float64 {
	min := math.Inf(1)
	for _, e := range m.Elements {
		for i := range e.Nodes {
			a := m.Positions[e.Nodes[i]]
			b := m.Positions[e.Nodes[(i+1)%len(e.Nodes)]]
			d := norm(a.sub(b))
			if d > 0 && d < min {
				min = d
			}
		}
	}
	if math.IsInf(min, 1) {
		return 1
	}
	return min
}
