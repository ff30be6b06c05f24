package topology

import (
	"sort"

	"github.com/sarchlab/concom/errs"
)

// BorderNodes returns the pane-boundary nodes of an unstructured mesh,
// parameterized by ghost level. Level 0 returns the real border: nodes
// on edges used by exactly one real element. Higher
// levels return border ghost nodes: nodes on the boundary of the full
// mesh (ghost elements included) that are not already on the real
// border. m.GhostElements trailing elements of m.Elements are the
// ghost layer.
func BorderNodes(m Mesh, ghostLevel int) ([]int, error) {
	op := "topology.border_nodes"
	if ghostLevel < 0 {
		return nil, errs.New(errs.InvalidArgument, op, "negative ghost level")
	}
	if m.GhostElements > len(m.Elements) {
		return nil, errs.New(errs.InvalidSize, op, "ghost element count exceeds element count")
	}

	real := Mesh{
		NumNodes: m.NumNodes,
		Elements: m.Elements[:len(m.Elements)-m.GhostElements],
	}
	realBorder := nodesOf(BorderEdges(real))
	if ghostLevel == 0 {
		return sortedKeys(realBorder), nil
	}

	fullBorder := nodesOf(BorderEdges(m))
	for n := range realBorder {
		delete(fullBorder, n)
	}
	return sortedKeys(fullBorder), nil
}

// StructuredBorderNodes returns the node ids of the given ghost ring
// of a structured block: level 0 is the boundary shell of the real
// region, level i >= 1 is the i-th ghost shell around it. Node ids are
// row-major over the padded grid ((shape[d]+2*ghostLayers) nodes per
// dimension d; degenerate dimensions of extent 1 are not padded).
func StructuredBorderNodes(shape [3]int, ghostLayers, level int) ([]int, error) {
	op := "topology.structured_border_nodes"
	if level < 0 || level > ghostLayers {
		return nil, errs.New(errs.GhostLayers, op, "ghost level outside the block's ghost layers")
	}
	for _, n := range shape {
		if n < 1 {
			return nil, errs.New(errs.InvalidSize, op, "structured shape extent must be >= 1")
		}
	}

	var dims, lo, hi [3]int
	for d := 0; d < 3; d++ {
		if shape[d] == 1 {
			dims[d] = 1
			lo[d] = 0
			hi[d] = 0
			continue
		}
		dims[d] = shape[d] + 2*ghostLayers
		lo[d] = ghostLayers
		hi[d] = ghostLayers + shape[d] - 1
	}

	// ring is how far outside the real region a grid point sits
	// (Chebyshev); points inside score by distance to the nearest real
	// boundary face, so the level-0 shell is the real border itself.
	ring := func(a, b, c int) int {
		out := 0
		inner := -1 << 30
		for d, v := range [3]int{a, b, c} {
			if dims[d] == 1 {
				continue
			}
			switch {
			case v < lo[d]:
				if lo[d]-v > out {
					out = lo[d] - v
				}
			case v > hi[d]:
				if v-hi[d] > out {
					out = v - hi[d]
				}
			default:
				edge := v - lo[d]
				if hi[d]-v < edge {
					edge = hi[d] - v
				}
				if -edge > inner {
					inner = -edge
				}
			}
		}
		if out > 0 {
			return out
		}
		return inner // 0 on the real boundary, negative depth inside
	}

	var out []int
	for c := 0; c < dims[2]; c++ {
		for b := 0; b < dims[1]; b++ {
			for a := 0; a < dims[0]; a++ {
				r := ring(a, b, c)
				if (level == 0 && r == 0) || (level > 0 && r == level) {
					out = append(out, (c*dims[1]+b)*dims[0]+a)
				}
			}
		}
	}
	return out, nil
}

func nodesOf(edges []Edge) map[int]bool {
	nodes := make(map[int]bool)
	for _, e := range edges {
		nodes[e.A] = true
		nodes[e.B] = true
	}
	return nodes
}

func sortedKeys(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
