package overlay

import (
	"fmt"
	"math"

	"github.com/sarchlab/concom/errs"
)

// Face is one polygonal face of a source mesh, as an ordered ring of
// vertex positions (planar, convex; the overlay faces this package
// handles are the tri/quad surface elements of pane.ElementType).
type Face []Point

// Mesh is one pane's worth of one side of the overlay: the pane id it
// came from and that pane's faces.
type Mesh struct {
	PaneID int
	Faces  []Face
}

// Surface is one full side of the overlay, blue or green: the surface
// meshes of every pane of a window, each keeping its pane identity so
// the refinement's outputs can be addressed per pane.
type Surface struct {
	Panes []Mesh
}

// SurfaceOf wraps a single pane's mesh as a one-pane surface, the
// common case for callers holding one mesh per side.
func SurfaceOf(m Mesh) Surface {
	return Surface{Panes: []Mesh{m}}
}

// flatSide is a surface unrolled into one face list, remembering each
// face's (pane, pane-local face) origin.
type flatSide struct {
	faces      []Face
	paneOf     []int
	faceInPane []int
}

func flatten(s Surface) flatSide {
	var f flatSide
	for _, m := range s.Panes {
		for i, face := range m.Faces {
			f.faces = append(f.faces, face)
			f.paneOf = append(f.paneOf, m.PaneID)
			f.faceInPane = append(f.faceInPane, i)
		}
	}
	return f
}

func (f flatSide) boxes() []BBox {
	boxes := make([]BBox, len(f.faces))
	for i, face := range f.faces {
		boxes[i] = boundPoints(face)
	}
	return boxes
}

func (f flatSide) totalArea() float64 {
	var total float64
	for _, face := range f.faces {
		total += PolygonArea(face)
	}
	return total
}

// Subface is one polygon of the common refinement: the intersection of
// one blue face and one green face, each addressed by its pane id and
// pane-local face index.
type Subface struct {
	BluePane  int
	BlueFace  int
	GreenPane int
	GreenFace int
	Polygon   []Point
}

// Area returns the subface's planar area.
func (s Subface) Area() float64 {
	return PolygonArea(s.Polygon)
}

// Overlay computes the common refinement of a blue and a green
// surface.
type Overlay struct {
	Blue, Green Surface
	// EpsP is the point-to-point snapping tolerance; EpsE is the
	// per-edge tolerance for treating an intersection as a shared
	// vertex. Both default to a small fraction of the shortest edge
	// when left zero.
	EpsP, EpsE float64
}

func (o *Overlay) tolerance() float64 {
	if o.EpsP > 0 {
		return o.EpsP
	}
	return shortestEdge(o.Blue) * 1e-6
}

func shortestEdge(s Surface) float64 {
	min := math.Inf(1)
	for _, m := range s.Panes {
		for _, f := range m.Faces {
			for i := range f {
				d := norm(f[i].sub(f[(i+1)%len(f)]))
				if d > 0 && d < min {
					min = d
				}
			}
		}
	}
	if math.IsInf(min, 1) {
		return 1
	}
	return min
}

// Compute runs the overlay: for every blue face it locates candidate
// green faces via a KD-tree seeded on face bounding boxes, then
// intersects each candidate pair by polygon clipping, collecting the
// maximal set of non-empty blue/green face intersections across all
// panes of both sides. It fails with errs.OverlayDivergence if the
// resulting subface area diverges from the input area by more than
// the configured tolerance.
func (o *Overlay) Compute() ([]Subface, error) {
	op := "overlay.compute"
	tol := o.tolerance()

	blue := flatten(o.Blue)
	green := flatten(o.Green)

	greenBoxes := green.boxes()
	tree := BuildKDTree(greenBoxes)

	var subfaces []Subface
	for bi, bf := range blue.faces {
		bbox := boundPoints(bf)
		seed, ok := tree.NearestFace(bbox.Center())
		if !ok {
			continue
		}
		candidates := collectCandidates(seed, bbox, greenBoxes, tol)
		for _, gi := range candidates {
			poly := ClipFaces(bf, green.faces[gi])
			if poly == nil {
				continue
			}
			area := PolygonArea(poly)
			if area <= tol*tol {
				continue
			}
			subfaces = append(subfaces, Subface{
				BluePane:  blue.paneOf[bi],
				BlueFace:  blue.faceInPane[bi],
				GreenPane: green.paneOf[gi],
				GreenFace: green.faceInPane[gi],
				Polygon:   poly,
			})
		}
	}

	if err := checkAreaInvariant(blue, green, subfaces, tol); err != nil {
		return nil, errs.Wrap(op, err)
	}
	return subfaces, nil
}

// collectCandidates expands outward from the KD-tree seed to every
// green face whose bounding box overlaps the blue face's box. A linear
// scan bounded by bbox overlap is sufficient here: the tree narrows the
// starting point but the candidate set itself must be exact, since a
// missed overlapping face would silently drop area from the refinement.
func collectCandidates(seed int, bbox BBox, greenBoxes []BBox, tol float64) []int {
	var out []int
	if bbox.Overlaps(greenBoxes[seed], tol) {
		out = append(out, seed)
	}
	for gi, gb := range greenBoxes {
		if gi == seed {
			continue
		}
		if bbox.Overlaps(gb, tol) {
			out = append(out, gi)
		}
	}
	return out
}

func checkAreaInvariant(blue, green flatSide, subfaces []Subface, tol float64) error {
	blueTotal := blue.totalArea()
	greenTotal := green.totalArea()
	var subTotal float64
	for _, s := range subfaces {
		subTotal += s.Area()
	}

	limit := math.Max(blueTotal, greenTotal) * 1e-10
	if limit < tol*tol {
		limit = tol * tol
	}
	if math.Abs(subTotal-blueTotal) > limit && math.Abs(subTotal-greenTotal) > limit {
		return errs.New(errs.OverlayDivergence, "overlay.compute",
			fmt.Sprintf("subface area %.12g matches neither blue %.12g nor green %.12g within tolerance", subTotal, blueTotal, greenTotal))
	}
	return nil
}
