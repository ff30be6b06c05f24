// Package topology derives connectivity structures from a pane's raw
// element-to-node table: the node-to-element dual, simple 2-manifold
// adjacency between elements, and border (boundary) edge detection.
package topology

import (
	"fmt"
	"sort"

	"github.com/sarchlab/concom/errs"
	"github.com/sarchlab/concom/pane"
)

// Element is one unstructured-mesh face: its shape and the node
// indices forming it, in winding order.
type Element struct {
	Type  pane.ElementType
	Nodes []int
}

// Mesh is the subset of a pane's unstructured connectivity topology
// cares about: the node count and the element-to-node table. The
// trailing GhostElements entries of Elements are the ghost layer.
type Mesh struct {
	NumNodes      int
	Elements      []Element
	GhostElements int
}

func expectedNodeCount(t pane.ElementType) (int, error) {
	switch t {
	case pane.Tri:
		return 3, nil
	case pane.Quad:
		return 4, nil
	default:
		return 0, errs.New(errs.InvalidArgument, "topology", "element type is not a surface face (tri/quad)")
	}
}

// Edge is an undirected node pair, always stored with A < B so two
// elements sharing an edge produce equal keys regardless of winding.
type Edge struct {
	A, B int
}

func normalizeEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

func edgesOf(e Element) []Edge {
	n := len(e.Nodes)
	edges := make([]Edge, n)
	for i := 0; i < n; i++ {
		edges[i] = normalizeEdge(e.Nodes[i], e.Nodes[(i+1)%n])
	}
	return edges
}

// Dual is the derived connectivity of a mesh: which elements touch
// each node, and which elements are edge-adjacent to each other.
type Dual struct {
	NodeToElements    [][]int
	ElementToElements [][]int
}

// BuildDual computes the node/element adjacency of m.
func BuildDual(m Mesh) (Dual, error) {
	op := "topology.build_dual"
	for i, e := range m.Elements {
		want, err := expectedNodeCount(e.Type)
		if err != nil {
			return Dual{}, errs.Wrap(op, err)
		}
		if len(e.Nodes) != want {
			return Dual{}, errs.New(errs.InvalidArgument, op, fmt.Sprintf("element %d has %d nodes, want %d", i, len(e.Nodes), want))
		}
		for _, n := range e.Nodes {
			if n < 0 || n >= m.NumNodes {
				return Dual{}, errs.New(errs.InvalidArgument, op, fmt.Sprintf("element %d references out-of-range node %d", i, n))
			}
		}
	}

	d := Dual{
		NodeToElements:    make([][]int, m.NumNodes),
		ElementToElements: make([][]int, len(m.Elements)),
	}
	for ei, e := range m.Elements {
		for _, n := range e.Nodes {
			d.NodeToElements[n] = append(d.NodeToElements[n], ei)
		}
	}

	edgeOwners := make(map[Edge][]int)
	for ei, e := range m.Elements {
		for _, edge := range edgesOf(e) {
			edgeOwners[edge] = append(edgeOwners[edge], ei)
		}
	}
	for _, owners := range edgeOwners {
		if len(owners) == 2 {
			a, b := owners[0], owners[1]
			d.ElementToElements[a] = append(d.ElementToElements[a], b)
			d.ElementToElements[b] = append(d.ElementToElements[b], a)
		}
	}
	for i := range d.ElementToElements {
		sort.Ints(d.ElementToElements[i])
	}
	for i := range d.NodeToElements {
		sort.Ints(d.NodeToElements[i])
	}

	return d, nil
}

// CSR is an offsets-and-values compressed sparse row table: the
// incidence list of row i is Values[Offsets[i]:Offsets[i+1]].
type CSR struct {
	Offsets []int
	Values  []int
}

// Row returns row i's values.
func (c CSR) Row(i int) []int {
	return c.Values[c.Offsets[i]:c.Offsets[i+1]]
}

// NodeToElementsCSR packs the node-to-element dual into its CSR form.
func (d Dual) NodeToElementsCSR() CSR {
	c := CSR{Offsets: make([]int, len(d.NodeToElements)+1)}
	for i, row := range d.NodeToElements {
		c.Offsets[i+1] = c.Offsets[i] + len(row)
		c.Values = append(c.Values, row...)
	}
	return c
}

// IsManifold reports whether m is a simple 2-manifold: every edge is
// shared by at most two elements. A non-manifold mesh (an edge shared
// by three or more faces) cannot be given a consistent half-edge
// orientation and is rejected by the overlay engine.
func IsManifold(m Mesh) (bool, error) {
	edgeOwners := make(map[Edge]int)
	for _, e := range m.Elements {
		for _, edge := range edgesOf(e) {
			edgeOwners[edge]++
		}
	}
	for _, count := range edgeOwners {
		if count > 2 {
			return false, nil
		}
	}
	return true, nil
}

// BorderEdges returns the edges used by exactly one element: the open
// boundary of the surface.
func BorderEdges(m Mesh) []Edge {
	edgeOwners := make(map[Edge]int)
	for _, e := range m.Elements {
		for _, edge := range edgesOf(e) {
			edgeOwners[edge]++
		}
	}
	var border []Edge
	for edge, count := range edgeOwners {
		if count == 1 {
			border = append(border, edge)
		}
	}
	sort.Slice(border, func(i, j int) bool {
		if border[i].A != border[j].A {
			return border[i].A < border[j].A
		}
		return border[i].B < border[j].B
	})
	return border
}
