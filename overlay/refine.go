package overlay

import (
	"math"

	"github.com/sarchlab/concom/errs"
)

// ParentKind discriminates where a sub-node sits on a source face.
type ParentKind int

const (
	// ParentFace marks a sub-node interior to its parent face.
	ParentFace ParentKind = iota
	// ParentEdge marks a sub-node on the parent face's Index-th edge
	// (the edge from vertex Index to vertex Index+1).
	ParentEdge
	// ParentVertex marks a sub-node coincident with the parent face's
	// Index-th vertex.
	ParentVertex
)

// ParentRef locates a sub-node on one side: the pane, the pane-local
// face index, the containment kind, and the natural coordinates within
// the face (barycentric (xi, eta) for triangles, bilinear (xi, eta) in
// [0,1]^2 for quads).
type ParentRef struct {
	Pane  int
	Face  int
	Kind  ParentKind
	Index int
	Xi    float64
	Eta   float64
}

// SubNode is one node of the common refinement, annotated with its
// parent on each input surface.
type SubNode struct {
	Pos   Point
	Blue  ParentRef
	Green ParentRef
}

// SubfaceRef is the cross-side address of a subface: the pane id plus
// the subface's local id within that pane, with the pane-local parent
// face carried alongside for direct lookup.
type SubfaceRef struct {
	Pane    int
	Face    int
	LocalID int
}

// RefTriangle is one triangular subface of the refinement.
type RefTriangle struct {
	BluePane  int
	BlueFace  int
	GreenPane int
	GreenFace int
	Nodes     [3]int // indices into Refinement.Nodes

	// BlueLocal and GreenLocal are this triangle's local id within its
	// pane's subface list on each side.
	BlueLocal  int
	GreenLocal int
}

// PaneSubfaces groups one pane's share of the refinement: its subface
// triangles in local-id order, and the same triangles bucketed under
// the pane-local face each one refines.
type PaneSubfaces struct {
	Subfaces []int
	Faces    map[int][]int
}

// Refinement is the persisted form of a common refinement: the
// deduplicated sub-nodes, the ear-cut triangles, and per-pane indices
// on each side with cross-side counterpart links.
type Refinement struct {
	Nodes     []SubNode
	Triangles []RefTriangle

	Blue  map[int]*PaneSubfaces
	Green map[int]*PaneSubfaces
}

// CounterpartOfBlue returns the green-side address of the blue subface
// named by (pane id, pane-local id).
func (r *Refinement) CounterpartOfBlue(paneID, localID int) (SubfaceRef, bool) {
	ps, ok := r.Blue[paneID]
	if !ok || localID < 0 || localID >= len(ps.Subfaces) {
		return SubfaceRef{}, false
	}
	t := r.Triangles[ps.Subfaces[localID]]
	return SubfaceRef{Pane: t.GreenPane, Face: t.GreenFace, LocalID: t.GreenLocal}, true
}

// CounterpartOfGreen returns the blue-side address of the green
// subface named by (pane id, pane-local id).
func (r *Refinement) CounterpartOfGreen(paneID, localID int) (SubfaceRef, bool) {
	ps, ok := r.Green[paneID]
	if !ok || localID < 0 || localID >= len(ps.Subfaces) {
		return SubfaceRef{}, false
	}
	t := r.Triangles[ps.Subfaces[localID]]
	return SubfaceRef{Pane: t.BluePane, Face: t.BlueFace, LocalID: t.BlueLocal}, true
}

// Refine runs the overlay and persists its output: every clipped
// subface polygon is ear-cut into triangles, each triangle corner
// becomes a sub-node deduplicated by position and tagged with its
// parametric location on both parents, and per-pane subface lists
// with counterpart links are built for each side.
func (o *Overlay) Refine() (*Refinement, error) {
	op := "overlay.refine"

	subfaces, err := o.Compute()
	if err != nil {
		return nil, errs.Wrap(op, err)
	}

	tol := o.tolerance()
	etol := tol
	if o.EpsE > 0 {
		etol = o.EpsE
	}
	r := &Refinement{
		Blue:  make(map[int]*PaneSubfaces),
		Green: make(map[int]*PaneSubfaces),
	}
	for _, m := range o.Blue.Panes {
		r.Blue[m.PaneID] = &PaneSubfaces{Faces: make(map[int][]int)}
	}
	for _, m := range o.Green.Panes {
		r.Green[m.PaneID] = &PaneSubfaces{Faces: make(map[int][]int)}
	}

	blueFaces := facesByPane(o.Blue)
	greenFaces := facesByPane(o.Green)
	dedup := newNodeDedup(tol)

	for _, sf := range subfaces {
		bFace := blueFaces[sf.BluePane][sf.BlueFace]
		gFace := greenFaces[sf.GreenPane][sf.GreenFace]

		for _, tri := range triangulateEarCut(sf.Polygon) {
			var nodes [3]int
			for k, vi := range tri {
				p := sf.Polygon[vi]
				idx, fresh := dedup.lookup(p)
				if fresh {
					r.Nodes = append(r.Nodes, SubNode{
						Pos:   p,
						Blue:  locateOnFace(bFace, sf.BluePane, sf.BlueFace, p, etol),
						Green: locateOnFace(gFace, sf.GreenPane, sf.GreenFace, p, etol),
					})
				}
				nodes[k] = idx
			}

			bp := r.Blue[sf.BluePane]
			gp := r.Green[sf.GreenPane]
			ti := len(r.Triangles)
			r.Triangles = append(r.Triangles, RefTriangle{
				BluePane:   sf.BluePane,
				BlueFace:   sf.BlueFace,
				GreenPane:  sf.GreenPane,
				GreenFace:  sf.GreenFace,
				Nodes:      nodes,
				BlueLocal:  len(bp.Subfaces),
				GreenLocal: len(gp.Subfaces),
			})
			bp.Subfaces = append(bp.Subfaces, ti)
			bp.Faces[sf.BlueFace] = append(bp.Faces[sf.BlueFace], ti)
			gp.Subfaces = append(gp.Subfaces, ti)
			gp.Faces[sf.GreenFace] = append(gp.Faces[sf.GreenFace], ti)
		}
	}

	return r, nil
}

func facesByPane(s Surface) map[int][]Face {
	out := make(map[int][]Face, len(s.Panes))
	for _, m := range s.Panes {
		out[m.PaneID] = m.Faces
	}
	return out
}

// nodeDedup merges sub-node positions within tol of each other, so
// triangles from adjacent subfaces share node indices.
type nodeDedup struct {
	cell  float64
	index map[[3]int64]int
	next  int
}

func newNodeDedup(tol float64) *nodeDedup {
	cell := tol
	if cell <= 0 {
		cell = 1e-12
	}
	return &nodeDedup{cell: cell, index: make(map[[3]int64]int)}
}

func (d *nodeDedup) lookup(p Point) (idx int, fresh bool) {
	key := [3]int64{
		int64(math.Round(p.X / d.cell)),
		int64(math.Round(p.Y / d.cell)),
		int64(math.Round(p.Z / d.cell)),
	}
	if i, ok := d.index[key]; ok {
		return i, false
	}
	i := d.next
	d.next++
	d.index[key] = i
	return i, true
}

// locateOnFace computes p's parametric location on face and classifies
// it as vertex, edge or interior within tol.
func locateOnFace(face Face, paneID, faceIdx int, p Point, tol float64) ParentRef {
	ref := ParentRef{Pane: paneID, Face: faceIdx, Kind: ParentFace}

	for i, v := range face {
		if norm(p.sub(v)) <= tol {
			ref.Kind = ParentVertex
			ref.Index = i
			ref.Xi, ref.Eta = vertexParam(len(face), i)
			return ref
		}
	}

	switch len(face) {
	case 3:
		wa, wb, wc := baryWeights(face[0], face[1], face[2], p)
		ref.Xi, ref.Eta = wb, wc
		edgeTol := tol / maxEdgeLen(face)
		switch {
		case math.Abs(wc) <= edgeTol:
			ref.Kind, ref.Index = ParentEdge, 0 // edge v0-v1
		case math.Abs(wa) <= edgeTol:
			ref.Kind, ref.Index = ParentEdge, 1 // edge v1-v2
		case math.Abs(wb) <= edgeTol:
			ref.Kind, ref.Index = ParentEdge, 2 // edge v2-v0
		}
	case 4:
		xi, eta := invBilinear(face, p)
		ref.Xi, ref.Eta = xi, eta
		edgeTol := tol / maxEdgeLen(face)
		switch {
		case math.Abs(eta) <= edgeTol:
			ref.Kind, ref.Index = ParentEdge, 0
		case math.Abs(xi-1) <= edgeTol:
			ref.Kind, ref.Index = ParentEdge, 1
		case math.Abs(eta-1) <= edgeTol:
			ref.Kind, ref.Index = ParentEdge, 2
		case math.Abs(xi) <= edgeTol:
			ref.Kind, ref.Index = ParentEdge, 3
		}
	}
	return ref
}

func vertexParam(nVerts, i int) (xi, eta float64) {
	if nVerts == 3 {
		switch i {
		case 0:
			return 0, 0
		case 1:
			return 1, 0
		default:
			return 0, 1
		}
	}
	switch i {
	case 0:
		return 0, 0
	case 1:
		return 1, 0
	case 2:
		return 1, 1
	default:
		return 0, 1
	}
}

func maxEdgeLen(face Face) float64 {
	best := 0.0
	for i := range face {
		d := norm(face[i].sub(face[(i+1)%len(face)]))
		if d > best {
			best = d
		}
	}
	if best == 0 {
		return 1
	}
	return best
}

// baryWeights returns the barycentric weights of p in triangle
// (a, b, c), valid for any p coplanar with it.
func baryWeights(a, b, c, p Point) (wa, wb, wc float64) {
	v0 := b.sub(a)
	v1 := c.sub(a)
	v2 := p.sub(a)

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

// invBilinear inverts the bilinear map of a planar quad at p by Newton
// iteration in the quad's plane.
func invBilinear(face Face, p Point) (xi, eta float64) {
	n := faceNormal(face)
	u, v := planeBasis(n)
	q := project2D(face, face[0], u, v)
	pp := project2D([]Point{p}, face[0], u, v)[0]

	xi, eta = 0.5, 0.5
	for iter := 0; iter < 16; iter++ {
		// F(xi, eta) = sum of the four bilinear shape terms minus pp.
		fx := (1-xi)*(1-eta)*q[0].x + xi*(1-eta)*q[1].x + xi*eta*q[2].x + (1-xi)*eta*q[3].x - pp.x
		fy := (1-xi)*(1-eta)*q[0].y + xi*(1-eta)*q[1].y + xi*eta*q[2].y + (1-xi)*eta*q[3].y - pp.y

		dxdxi := -(1-eta)*q[0].x + (1-eta)*q[1].x + eta*q[2].x - eta*q[3].x
		dydxi := -(1-eta)*q[0].y + (1-eta)*q[1].y + eta*q[2].y - eta*q[3].y
		dxdeta := -(1-xi)*q[0].x - xi*q[1].x + xi*q[2].x + (1-xi)*q[3].x
		dydeta := -(1-xi)*q[0].y - xi*q[1].y + xi*q[2].y + (1-xi)*q[3].y

		det := dxdxi*dydeta - dxdeta*dydxi
		if det == 0 {
			break
		}
		dXi := (fx*dydeta - fy*dxdeta) / det
		dEta := (fy*dxdxi - fx*dydxi) / det
		xi -= dXi
		eta -= dEta
		if math.Abs(dXi)+math.Abs(dEta) < 1e-14 {
			break
		}
	}
	return xi, eta
}
