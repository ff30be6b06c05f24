package overlay_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/concom/errs"
	"github.com/sarchlab/concom/overlay"
	"github.com/sarchlab/concom/pane"
	"github.com/sarchlab/concom/topology"
)

// fanAndQuad builds the smallest interesting overlay pair: a blue mesh
// of four triangles fanning from the center of the unit square, and a
// green mesh of the same square as a single quad.
func fanAndQuad() (blue, green overlay.Mesh) {
	n := []overlay.Point{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
		{X: 0.5, Y: 0.5},
	}
	blue.PaneID = 1
	for _, idx := range [][]int{{0, 1, 4}, {1, 2, 4}, {2, 3, 4}, {3, 0, 4}} {
		var f overlay.Face
		for _, k := range idx {
			f = append(f, n[k])
		}
		blue.Faces = append(blue.Faces, f)
	}
	green.PaneID = 1
	green.Faces = []overlay.Face{{n[0], n[1], n[2], n[3]}}
	return blue, green
}

func unitQuadMesh(paneID int) overlay.Mesh {
	return overlay.Mesh{PaneID: paneID, Faces: []overlay.Face{{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
	}}}
}

var _ = Describe("Overlay", func() {
	Describe("E5: four-triangle fan against a unit quad", func() {
		var (
			blue, green overlay.Mesh
			ov          *overlay.Overlay
			subfaces    []overlay.Subface
		)

		BeforeEach(func() {
			blue, green = fanAndQuad()
			ov = &overlay.Overlay{
				Blue:  overlay.SurfaceOf(blue),
				Green: overlay.SurfaceOf(green),
			}
			var err error
			subfaces, err = ov.Compute()
			Expect(err).NotTo(HaveOccurred())
		})

		It("produces one subface per blue triangle", func() {
			Expect(subfaces).To(HaveLen(4))
			seen := make(map[int]bool)
			for _, sf := range subfaces {
				Expect(sf.GreenPane).To(Equal(1))
				Expect(sf.GreenFace).To(Equal(0))
				Expect(sf.BluePane).To(Equal(1))
				seen[sf.BlueFace] = true
				Expect(sf.Area()).To(BeNumerically("~", 0.25, 1e-12))
			}
			Expect(seen).To(HaveLen(4))
		})

		It("conserves total area on both sides (invariant 6)", func() {
			var sub, blueTotal float64
			for _, sf := range subfaces {
				sub += sf.Area()
			}
			for _, f := range blue.Faces {
				blueTotal += overlay.PolygonArea(f)
			}
			greenTotal := overlay.PolygonArea(green.Faces[0])
			Expect(sub).To(BeNumerically("~", blueTotal, 1e-10))
			Expect(sub).To(BeNumerically("~", greenTotal, 1e-10))
		})

		It("assigns identity parametric coordinates on the unit quad", func() {
			ref, err := ov.Refine()
			Expect(err).NotTo(HaveOccurred())

			for _, sn := range ref.Nodes {
				// The unit square's bilinear map is the identity, so a
				// sub-node's green (xi, eta) must equal its position.
				Expect(sn.Green.Xi).To(BeNumerically("~", sn.Pos.X, 1e-9))
				Expect(sn.Green.Eta).To(BeNumerically("~", sn.Pos.Y, 1e-9))
				Expect(sn.Green.Pane).To(Equal(1))
				Expect(sn.Green.Face).To(Equal(0))
			}
		})

		It("classifies corner sub-nodes as parent vertices on both sides", func() {
			ref, err := ov.Refine()
			Expect(err).NotTo(HaveOccurred())

			var cornerSeen bool
			for _, sn := range ref.Nodes {
				if sn.Pos.X == 0 && sn.Pos.Y == 0 {
					cornerSeen = true
					Expect(sn.Green.Kind).To(Equal(overlay.ParentVertex))
					Expect(sn.Green.Index).To(Equal(0))
					Expect(sn.Blue.Kind).To(Equal(overlay.ParentVertex))
				}
			}
			Expect(cornerSeen).To(BeTrue())
		})

		It("links each blue subface to its green counterpart and back", func() {
			ref, err := ov.Refine()
			Expect(err).NotTo(HaveOccurred())

			for paneID, ps := range ref.Blue {
				for local := range ps.Subfaces {
					g, ok := ref.CounterpartOfBlue(paneID, local)
					Expect(ok).To(BeTrue())
					back, ok := ref.CounterpartOfGreen(g.Pane, g.LocalID)
					Expect(ok).To(BeTrue())
					Expect(back.Pane).To(Equal(paneID))
					Expect(back.LocalID).To(Equal(local))
				}
			}
		})

		It("covers the refinement's area with its ear-cut triangles", func() {
			ref, err := ov.Refine()
			Expect(err).NotTo(HaveOccurred())

			var total float64
			for _, t := range ref.Triangles {
				poly := []overlay.Point{
					ref.Nodes[t.Nodes[0]].Pos,
					ref.Nodes[t.Nodes[1]].Pos,
					ref.Nodes[t.Nodes[2]].Pos,
				}
				total += overlay.PolygonArea(poly)
			}
			Expect(total).To(BeNumerically("~", 1, 1e-10))
		})
	})

	Describe("multi-pane blue surface against one green pane", func() {
		var ov *overlay.Overlay

		BeforeEach(func() {
			blue, _ := fanAndQuad()
			// Split the fan across two panes, two triangles each.
			left := overlay.Mesh{PaneID: 3, Faces: blue.Faces[:2]}
			right := overlay.Mesh{PaneID: 4, Faces: blue.Faces[2:]}
			ov = &overlay.Overlay{
				Blue:  overlay.Surface{Panes: []overlay.Mesh{left, right}},
				Green: overlay.SurfaceOf(unitQuadMesh(7)),
			}
		})

		It("addresses each subface by its own pane id and pane-local face", func() {
			subfaces, err := ov.Compute()
			Expect(err).NotTo(HaveOccurred())
			Expect(subfaces).To(HaveLen(4))

			perPane := make(map[int][]int)
			for _, sf := range subfaces {
				Expect(sf.GreenPane).To(Equal(7))
				perPane[sf.BluePane] = append(perPane[sf.BluePane], sf.BlueFace)
			}
			Expect(perPane[3]).To(ConsistOf(0, 1))
			Expect(perPane[4]).To(ConsistOf(0, 1))
		})

		It("carries pane ids through the counterpart links", func() {
			ref, err := ov.Refine()
			Expect(err).NotTo(HaveOccurred())

			Expect(ref.Blue).To(HaveKey(3))
			Expect(ref.Blue).To(HaveKey(4))
			Expect(ref.Green[7].Subfaces).To(HaveLen(4))

			for _, paneID := range []int{3, 4} {
				for local := range ref.Blue[paneID].Subfaces {
					g, ok := ref.CounterpartOfBlue(paneID, local)
					Expect(ok).To(BeTrue())
					Expect(g.Pane).To(Equal(7))
					back, ok := ref.CounterpartOfGreen(g.Pane, g.LocalID)
					Expect(ok).To(BeTrue())
					Expect(back).To(Equal(overlay.SubfaceRef{
						Pane:    paneID,
						Face:    ref.Triangles[ref.Blue[paneID].Subfaces[local]].BlueFace,
						LocalID: local,
					}))
				}
			}
		})
	})

	Describe("offset quad against the unit square", func() {
		It("reports divergence for a genuine partial overlap", func() {
			// The intersection covers only half of either input, so the
			// refinement's area matches neither side.
			blue := overlay.Mesh{PaneID: 1, Faces: []overlay.Face{{
				{X: 0.5, Y: 0}, {X: 1.5, Y: 0}, {X: 1.5, Y: 1}, {X: 0.5, Y: 1},
			}}}

			ov := &overlay.Overlay{
				Blue:  overlay.SurfaceOf(blue),
				Green: overlay.SurfaceOf(unitQuadMesh(1)),
			}
			_, err := ov.Compute()
			Expect(errs.Is(err, errs.OverlayDivergence)).To(BeTrue())
		})
	})

	Describe("failure modes", func() {
		It("reports divergence when the meshes do not overlap", func() {
			blue := overlay.Mesh{PaneID: 1, Faces: []overlay.Face{{
				{X: 100, Y: 100}, {X: 101, Y: 100}, {X: 100.5, Y: 101},
			}}}

			ov := &overlay.Overlay{
				Blue:  overlay.SurfaceOf(blue),
				Green: overlay.SurfaceOf(unitQuadMesh(1)),
			}
			_, err := ov.Compute()
			Expect(errs.Is(err, errs.OverlayDivergence)).To(BeTrue())
		})
	})

	Describe("KD-tree seeding", func() {
		It("finds the face whose box contains the query point", func() {
			boxes := []overlay.BBox{
				{Min: overlay.Point{X: 0, Y: 0}, Max: overlay.Point{X: 1, Y: 1}},
				{Min: overlay.Point{X: 5, Y: 5}, Max: overlay.Point{X: 6, Y: 6}},
				{Min: overlay.Point{X: -3, Y: -3}, Max: overlay.Point{X: -2, Y: -2}},
			}
			tree := overlay.BuildKDTree(boxes)
			idx, ok := tree.NearestFace(overlay.Point{X: 5.5, Y: 5.5})
			Expect(ok).To(BeTrue())
			Expect(idx).To(Equal(1))
		})
	})

	Describe("feature detection", func() {
		// A roof: two triangles folded along edge (1, 2).
		roof := overlay.IndexedMesh{
			Positions: []overlay.Point{
				{X: 0, Y: 0, Z: 0},
				{X: 1, Y: 0, Z: 0},
				{X: 1, Y: 1, Z: 0},
				{X: 2, Y: 1, Z: 1},
			},
			Elements: []topology.Element{
				{Type: pane.Tri, Nodes: []int{0, 1, 2}},
				{Type: pane.Tri, Nodes: []int{1, 3, 2}},
			},
		}

		It("flags the fold as a sharp edge", func() {
			edges, err := overlay.DetectSharpEdges(roof, math.Pi/6)
			Expect(err).NotTo(HaveOccurred())
			Expect(edges).To(HaveLen(1))
			Expect(edges[0].Edge).To(Equal(topology.Edge{A: 1, B: 2}))
		})

		It("assembles the full feature graph through DetectFeatures", func() {
			feat, err := overlay.DetectFeatures(roof, overlay.FeatureParams{
				DihedralThreshold: math.Pi / 6,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(feat.Edges).To(HaveLen(1))
			Expect(feat.Corners).To(ConsistOf(1, 2))
			Expect(feat.Curves).To(HaveLen(1))
			Expect(feat.Curves[0]).To(HaveLen(1))
		})

		It("treats the fold's endpoints as corners of a one-edge curve", func() {
			edges, err := overlay.DetectSharpEdges(roof, math.Pi/6)
			Expect(err).NotTo(HaveOccurred())
			corners := overlay.Corners(edges)
			Expect(corners).To(ConsistOf(1, 2))

			curves := overlay.SharpCurves(edges)
			Expect(curves).To(HaveLen(1))
			Expect(curves[0]).To(HaveLen(1))
		})

		It("finds no features on a flat sheet", func() {
			flat := overlay.IndexedMesh{
				Positions: []overlay.Point{
					{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
				},
				Elements: []topology.Element{
					{Type: pane.Tri, Nodes: []int{0, 1, 2}},
					{Type: pane.Tri, Nodes: []int{0, 2, 3}},
				},
			}
			edges, err := overlay.DetectSharpEdges(flat, math.Pi/6)
			Expect(err).NotTo(HaveOccurred())
			Expect(edges).To(BeEmpty())
		})
	})

	Describe("SnapFeatures", func() {
		It("moves a blue feature vertex onto its green counterpart", func() {
			mkRoof := func(shift float64) overlay.IndexedMesh {
				return overlay.IndexedMesh{
					Positions: []overlay.Point{
						{X: 0, Y: 0, Z: 0},
						{X: 1 + shift, Y: 0, Z: 0},
						{X: 1 + shift, Y: 1, Z: 0},
						{X: 2, Y: 1, Z: 1},
					},
					Elements: []topology.Element{
						{Type: pane.Tri, Nodes: []int{0, 1, 2}},
						{Type: pane.Tri, Nodes: []int{1, 3, 2}},
					},
				}
			}

			blue := mkRoof(1e-4)
			green := mkRoof(0)

			report, err := overlay.SnapFeatures(&blue, green, overlay.FeatureParams{
				DihedralThreshold: math.Pi / 6,
				SnapTolerance:     1e-3,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(report.SnappedVertices).To(BeNumerically(">=", 2))
			Expect(blue.Positions[1]).To(Equal(green.Positions[1]))
			Expect(blue.Positions[2]).To(Equal(green.Positions[2]))
		})

		It("demotes a blue corner with no green match", func() {
			blue := overlay.IndexedMesh{
				Positions: []overlay.Point{
					{X: 0, Y: 0, Z: 0},
					{X: 1, Y: 0, Z: 0},
					{X: 1, Y: 1, Z: 0},
					{X: 2, Y: 1, Z: 1},
				},
				Elements: []topology.Element{
					{Type: pane.Tri, Nodes: []int{0, 1, 2}},
					{Type: pane.Tri, Nodes: []int{1, 3, 2}},
				},
			}
			// Green is flat: no feature graph at all.
			green := overlay.IndexedMesh{
				Positions: []overlay.Point{
					{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
				},
				Elements: []topology.Element{
					{Type: pane.Tri, Nodes: []int{0, 1, 2}},
					{Type: pane.Tri, Nodes: []int{0, 2, 3}},
				},
			}

			report, err := overlay.SnapFeatures(&blue, green, overlay.FeatureParams{
				DihedralThreshold: math.Pi / 6,
				SnapTolerance:     1e-6,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(report.SnappedVertices).To(BeZero())
			Expect(report.DemotedCorners).To(ConsistOf(1, 2))
		})
	})
})
