package overlay

import (
	"math"

	"github.com/sarchlab/concom/topology"
)

// IndexedMesh is a mesh with shared nodes, needed for feature detection
// (dihedral angles require knowing which faces share an edge).
type IndexedMesh struct {
	Positions []Point
	Elements  []topology.Element
}

// FeatureEdge is a sharp edge between two adjacent faces whose dihedral
// angle exceeds the detection threshold.
type FeatureEdge struct {
	Edge           topology.Edge
	DihedralRadian float64
}

// Features is the feature graph of one mesh: the surviving sharp
// edges, the maximal sharp curves they chain into, and the corner
// nodes joining them.
type Features struct {
	Edges   []FeatureEdge
	Curves  [][]topology.Edge
	Corners []int
}

// DetectFeatures runs the full feature-detection pass: sharp edges by
// dihedral-angle threshold, a signal-to-noise filter against the
// mesh's background dihedral level, then curve chaining and corner
// extraction. It is the entry point the snapping pass and overlay
// callers use; DetectSharpEdges below is the raw first stage.
func DetectFeatures(m IndexedMesh, p FeatureParams) (Features, error) {
	edges, err := DetectSharpEdges(m, p.DihedralThreshold)
	if err != nil {
		return Features{}, err
	}

	if p.MinSNR > 0 && len(edges) > 0 {
		noise := meanDihedral(m)
		if noise > 0 {
			kept := edges[:0]
			for _, fe := range edges {
				if fe.DihedralRadian >= p.MinSNR*noise {
					kept = append(kept, fe)
				}
			}
			edges = kept
		}
	}

	return Features{
		Edges:   edges,
		Curves:  SharpCurves(edges),
		Corners: Corners(edges),
	}, nil
}

// DetectSharpEdges flags every interior edge whose two incident face
// normals differ by more than thresholdRadians. Sharp edges seed the
// sharp-curve and corner passes below.
func DetectSharpEdges(m IndexedMesh, thresholdRadians float64) ([]FeatureEdge, error) {
	mesh := topology.Mesh{NumNodes: len(m.Positions), Elements: m.Elements}
	dual, err := topology.BuildDual(mesh)
	if err != nil {
		return nil, err
	}

	normals := make([]Point, len(m.Elements))
	for i, e := range m.Elements {
		pts := make([]Point, len(e.Nodes))
		for j, n := range e.Nodes {
			pts[j] = m.Positions[n]
		}
		normals[i] = faceNormal(pts)
	}

	seen := make(map[topology.Edge]bool)
	var out []FeatureEdge
	for fi, neighbors := range dual.ElementToElements {
		for _, fj := range neighbors {
			if fj <= fi {
				continue
			}
			edge, ok := sharedEdge(m.Elements[fi], m.Elements[fj])
			if !ok || seen[edge] {
				continue
			}
			seen[edge] = true

			cosA := dot(normals[fi], normals[fj])
			cosA = math.Max(-1, math.Min(1, cosA))
			angle := math.Acos(cosA)
			if angle >= thresholdRadians {
				out = append(out, FeatureEdge{Edge: edge, DihedralRadian: angle})
			}
		}
	}
	return out, nil
}

func sharedEdge(a, b topology.Element) (topology.Edge, bool) {
	has := func(e topology.Element, n int) bool {
		for _, v := range e.Nodes {
			if v == n {
				return true
			}
		}
		return false
	}
	var shared []int
	for _, n := range a.Nodes {
		if has(b, n) {
			shared = append(shared, n)
		}
	}
	if len(shared) != 2 {
		return topology.Edge{}, false
	}
	if shared[0] > shared[1] {
		shared[0], shared[1] = shared[1], shared[0]
	}
	return topology.Edge{A: shared[0], B: shared[1]}, true
}

// SharpCurves groups sharp edges into maximal chains that meet only at
// their endpoints (a corner is a node shared by more than two sharp
// edges, or by exactly two whose curves turn past the corner
// threshold — the latter is left to the caller, which already has the
// positions to compute turning angle).
func SharpCurves(edges []FeatureEdge) [][]topology.Edge {
	adj := make(map[int][]topology.Edge)
	for _, fe := range edges {
		adj[fe.Edge.A] = append(adj[fe.Edge.A], fe.Edge)
		adj[fe.Edge.B] = append(adj[fe.Edge.B], fe.Edge)
	}
	isCorner := func(n int) bool { return len(adj[n]) != 2 }

	// Open chains are walked from a corner end so each is collected
	// whole; chains with no corner (closed loops) come last.
	starts := make([]FeatureEdge, 0, len(edges))
	for pass := 0; pass < 2; pass++ {
		for _, fe := range edges {
			if (isCorner(fe.Edge.A) || isCorner(fe.Edge.B)) == (pass == 0) {
				starts = append(starts, fe)
			}
		}
	}

	visited := make(map[topology.Edge]bool)
	var curves [][]topology.Edge
	for _, fe := range starts {
		if visited[fe.Edge] {
			continue
		}
		var curve []topology.Edge
		cur := fe.Edge
		from := fe.Edge.A
		if !isCorner(from) {
			from = fe.Edge.B
		}
		for {
			visited[cur] = true
			curve = append(curve, cur)
			next := cur.A
			if next == from {
				next = cur.B
			}
			if isCorner(next) {
				break
			}
			var advanced bool
			for _, e := range adj[next] {
				if !visited[e] {
					from, cur = next, e
					advanced = true
					break
				}
			}
			if !advanced {
				break
			}
		}
		curves = append(curves, curve)
	}
	return curves
}

// Corners returns every node touched by a sharp edge count other than
// exactly two: rank-n junctions and curve endpoints.
func Corners(edges []FeatureEdge) []int {
	degree := make(map[int]int)
	for _, fe := range edges {
		degree[fe.Edge.A]++
		degree[fe.Edge.B]++
	}
	var corners []int
	for n, d := range degree {
		if d != 2 {
			corners = append(corners, n)
		}
	}
	return corners
}
