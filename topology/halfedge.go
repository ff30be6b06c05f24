package topology

import (
	"fmt"

	"github.com/sarchlab/concom/errs"
)

// HalfEdge is one directed side of an element edge. Next walks the
// owning face counterclockwise; Opposite is the twin on the adjacent
// face, or -1 on a border.
type HalfEdge struct {
	Origin   int
	Dest     int
	Face     int
	Next     int
	Opposite int
}

// Manifold is an oriented half-edge structure over a simple
// 2-manifold surface: it supports neighbor walks around faces and
// vertices, and face enumeration in a fixed order.
type Manifold struct {
	mesh      Mesh
	halfedges []HalfEdge
	faceStart []int // first half-edge of each face
	outgoing  []int // one outgoing half-edge per node, -1 if isolated
}

// BuildManifold constructs the half-edge structure of m. It rejects
// non-manifold input (an edge shared by three or more faces) and
// inconsistently oriented input (two faces traversing a shared edge in
// the same direction).
func BuildManifold(m Mesh) (*Manifold, error) {
	op := "topology.build_manifold"

	man := &Manifold{
		mesh:      m,
		faceStart: make([]int, len(m.Elements)),
		outgoing:  make([]int, m.NumNodes),
	}
	for i := range man.outgoing {
		man.outgoing[i] = -1
	}

	directed := make(map[[2]int]int)
	for fi, e := range m.Elements {
		want, err := expectedNodeCount(e.Type)
		if err != nil {
			return nil, errs.Wrap(op, err)
		}
		if len(e.Nodes) != want {
			return nil, errs.New(errs.InvalidArgument, op, fmt.Sprintf("element %d has %d nodes, want %d", fi, len(e.Nodes), want))
		}

		n := len(e.Nodes)
		base := len(man.halfedges)
		man.faceStart[fi] = base
		for i := 0; i < n; i++ {
			a, b := e.Nodes[i], e.Nodes[(i+1)%n]
			key := [2]int{a, b}
			if _, dup := directed[key]; dup {
				return nil, errs.New(errs.InvalidArgument, op, fmt.Sprintf("edge %d-%d traversed twice in the same direction: input is non-manifold or inconsistently oriented", a, b))
			}
			directed[key] = base + i
			man.halfedges = append(man.halfedges, HalfEdge{
				Origin:   a,
				Dest:     b,
				Face:     fi,
				Next:     base + (i+1)%n,
				Opposite: -1,
			})
			if man.outgoing[a] == -1 {
				man.outgoing[a] = base + i
			}
		}
	}

	for idx := range man.halfedges {
		he := &man.halfedges[idx]
		if twin, ok := directed[[2]int{he.Dest, he.Origin}]; ok {
			he.Opposite = twin
		}
	}

	return man, nil
}

// NumFaces returns the face count.
func (m *Manifold) NumFaces() int { return len(m.mesh.Elements) }

// HalfEdges returns the half-edge table.
func (m *Manifold) HalfEdges() []HalfEdge { return m.halfedges }

// Face returns the element backing face f.
func (m *Manifold) Face(f int) Element { return m.mesh.Elements[f] }

// FaceHalfEdges enumerates face f's half-edges in traversal order.
func (m *Manifold) FaceHalfEdges(f int) []int {
	start := m.faceStart[f]
	n := len(m.mesh.Elements[f].Nodes)
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = start + i
	}
	return out
}

// IsBorder reports whether half-edge he has no twin.
func (m *Manifold) IsBorder(he int) bool {
	return m.halfedges[he].Opposite == -1
}

// Star returns the faces incident to node, walking twin/next links
// counterclockwise from any outgoing half-edge. On an open fan (node
// on the border) the walk restarts clockwise to pick up the far side.
func (m *Manifold) Star(node int) []int {
	start := m.outgoing[node]
	if start == -1 {
		return nil
	}

	var faces []int
	seen := make(map[int]bool)

	// Counterclockwise: twin of the incoming half-edge, then next.
	he := start
	for {
		f := m.halfedges[he].Face
		if seen[f] {
			break
		}
		seen[f] = true
		faces = append(faces, f)

		prev := m.prevInFace(he)
		twin := m.halfedges[prev].Opposite
		if twin == -1 {
			break
		}
		he = twin
	}

	// Clockwise from the start, for border fans.
	he = m.halfedges[start].Opposite
	for he != -1 {
		next := m.halfedges[he].Next
		f := m.halfedges[next].Face
		if seen[f] {
			break
		}
		seen[f] = true
		faces = append(faces, f)
		he = m.halfedges[next].Opposite
	}

	return faces
}

// Link returns the nodes of node's incident faces, excluding node
// itself: the ring the overlay's edge-intersection phase walks.
func (m *Manifold) Link(node int) []int {
	var ring []int
	seen := make(map[int]bool)
	for _, f := range m.Star(node) {
		for _, v := range m.mesh.Elements[f].Nodes {
			if v != node && !seen[v] {
				seen[v] = true
				ring = append(ring, v)
			}
		}
	}
	return ring
}

// FaceNeighbor returns the face across face f's i-th edge, or -1 on a
// border.
func (m *Manifold) FaceNeighbor(f, i int) int {
	he := m.faceStart[f] + i
	twin := m.halfedges[he].Opposite
	if twin == -1 {
		return -1
	}
	return m.halfedges[twin].Face
}

func (m *Manifold) prevInFace(he int) int {
	cur := he
	for m.halfedges[cur].Next != he {
		cur = m.halfedges[cur].Next
	}
	return cur
}
