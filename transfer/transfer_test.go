package transfer_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/concom/overlay"
	"github.com/sarchlab/concom/transfer"
)

// squareMeshes returns a blue mesh of four triangles fanning from the
// center of a unit square, and a green mesh of the same square as one
// quad over the same square.
func squareMeshes() (blue, green overlay.Mesh, blueTopo, greenTopo transfer.Topology) {
	n := []overlay.Point{
		{X: 0, Y: 0}, // 0
		{X: 1, Y: 0}, // 1
		{X: 1, Y: 1}, // 2
		{X: 0, Y: 1}, // 3
		{X: 0.5, Y: 0.5}, // 4, center
	}
	blueFaceIdx := [][]int{
		{0, 1, 4},
		{1, 2, 4},
		{2, 3, 4},
		{3, 0, 4},
	}
	blue.Faces = make([]overlay.Face, len(blueFaceIdx))
	for i, idx := range blueFaceIdx {
		for _, k := range idx {
			blue.Faces[i] = append(blue.Faces[i], n[k])
		}
	}

	m := []overlay.Point{
		{X: 0, Y: 0},
		{X: 1, Y: 0},
		{X: 1, Y: 1},
		{X: 0, Y: 1},
	}
	greenFaceIdx := [][]int{{0, 1, 2, 3}}
	green.Faces = make([]overlay.Face, 1)
	for _, k := range greenFaceIdx[0] {
		green.Faces[0] = append(green.Faces[0], m[k])
	}

	blueTopo = transfer.Topology{Mesh: blue, Faces: blueFaceIdx, NumNodes: len(n)}
	greenTopo = transfer.Topology{Mesh: green, Faces: greenFaceIdx, NumNodes: len(m)}
	return blue, green, blueTopo, greenTopo
}

// triangulatedGrid splits an n x n cell unit-square grid into two
// triangles per cell; quadGrid keeps the cells as quads.
func triangulatedGrid(n int) (overlay.Mesh, transfer.Topology) {
	pts, node := gridNodes(n)
	var mesh overlay.Mesh
	var faces [][]int
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			a, b, c, d := node(i, j), node(i+1, j), node(i+1, j+1), node(i, j+1)
			for _, tri := range [][]int{{a, b, c}, {a, c, d}} {
				var f overlay.Face
				for _, k := range tri {
					f = append(f, pts[k])
				}
				mesh.Faces = append(mesh.Faces, f)
				faces = append(faces, tri)
			}
		}
	}
	return mesh, transfer.Topology{Mesh: mesh, Faces: faces, NumNodes: len(pts)}
}

func quadGrid(n int) (overlay.Mesh, transfer.Topology) {
	pts, node := gridNodes(n)
	var mesh overlay.Mesh
	var faces [][]int
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			q := []int{node(i, j), node(i+1, j), node(i+1, j+1), node(i, j+1)}
			var f overlay.Face
			for _, k := range q {
				f = append(f, pts[k])
			}
			mesh.Faces = append(mesh.Faces, f)
			faces = append(faces, q)
		}
	}
	return mesh, transfer.Topology{Mesh: mesh, Faces: faces, NumNodes: len(pts)}
}

func gridNodes(n int) ([]overlay.Point, func(i, j int) int) {
	var pts []overlay.Point
	for j := 0; j <= n; j++ {
		for i := 0; i <= n; i++ {
			pts = append(pts, overlay.Point{X: float64(i) / float64(n), Y: float64(j) / float64(n)})
		}
	}
	return pts, func(i, j int) int { return j*(n+1) + i }
}

var _ = Describe("Transfer", func() {
	var (
		blue, green         overlay.Mesh
		blueTopo, greenTopo transfer.Topology
		subfaces            []overlay.Subface
	)

	BeforeEach(func() {
		blue, green, blueTopo, greenTopo = squareMeshes()
		ov := &overlay.Overlay{
			Blue:  overlay.SurfaceOf(blue),
			Green: overlay.SurfaceOf(green),
		}
		var err error
		subfaces, err = ov.Compute()
		Expect(err).NotTo(HaveOccurred())
		Expect(subfaces).NotTo(BeEmpty())
	})

	Describe("Interpolate", func() {
		It("carries a constant elemental source field through unchanged", func() {
			src := transfer.Field{Elemental: true, ByFace: []float64{3, 3, 3, 3}}
			out, err := transfer.Interpolate(blueTopo, greenTopo, subfaces, src, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ByFace[0]).To(BeNumerically("~", 3, 1e-9))
		})

		It("carries a constant nodal source field to the target nodes", func() {
			src := transfer.Field{Nodal: []float64{2, 2, 2, 2, 2}}
			out, err := transfer.Interpolate(blueTopo, greenTopo, subfaces, src, false)
			Expect(err).NotTo(HaveOccurred())
			for _, v := range out.Nodal {
				Expect(v).To(BeNumerically("~", 2, 1e-6))
			}
		})
	})

	Describe("TransferConservative", func() {
		It("preserves a constant source field's integral over the target (invariant 7)", func() {
			src := transfer.Field{Nodal: []float64{5, 5, 5, 5, 5}}
			out, err := transfer.TransferConservative(blueTopo, greenTopo, subfaces, src, false, transfer.Order2, 0, 0)
			Expect(err).NotTo(HaveOccurred())

			targetArea := overlay.PolygonArea(green.Faces[0])
			integral := 0.0
			for _, w := range out.Nodal {
				integral += w
			}
			// A constant field is reproduced at every node for a mesh with
			// no boundary under-determination, so the simple nodal average
			// times area approximates the true integral closely here.
			avg := integral / float64(len(out.Nodal))
			Expect(avg * targetArea).To(BeNumerically("~", 5*targetArea, 1e-3))
		})

		It("returns a diverging result as TransferDivergence when the cap is too tight", func() {
			src := transfer.Field{Nodal: []float64{1, 2, 3, 4, 5}}
			_, err := transfer.TransferConservative(blueTopo, greenTopo, subfaces, src, false, transfer.Order2, 1e-30, 1)
			Expect(err).To(HaveOccurred())
		})
	})

	// E6-style check: a linear field transfers exactly (up to solver
	// tolerance) under the quadratic-quadrature conservative variant,
	// across unlike discretizations of the same square.
	Describe("linear-field reproduction across unlike grids", func() {
		It("reproduces 2x+3y from a triangulated grid onto a quad grid", func() {
			tri, triTopo := triangulatedGrid(3)
			quad, quadTopo := quadGrid(2)

			ov := &overlay.Overlay{
				Blue:  overlay.SurfaceOf(tri),
				Green: overlay.SurfaceOf(quad),
			}
			sf, err := ov.Compute()
			Expect(err).NotTo(HaveOccurred())

			lin := func(p overlay.Point) float64 { return 2*p.X + 3*p.Y }
			src := transfer.Field{Nodal: make([]float64, triTopo.NumNodes)}
			for f, face := range triTopo.Mesh.Faces {
				for k, p := range face {
					src.Nodal[triTopo.Faces[f][k]] = lin(p)
				}
			}

			out, err := transfer.TransferConservative(triTopo, quadTopo, sf, src, false, transfer.Order2, 1e-12, 500)
			Expect(err).NotTo(HaveOccurred())

			for f, face := range quadTopo.Mesh.Faces {
				for k, p := range face {
					got := out.Nodal[quadTopo.Faces[f][k]]
					Expect(got).To(BeNumerically("~", lin(p), 1e-6))
				}
			}
		})
	})

	Describe("TransferLoad", func() {
		It("preserves the global sum of an extensive quantity", func() {
			areas := make([]float64, len(blue.Faces))
			total := 0.0
			for i, f := range blue.Faces {
				areas[i] = overlay.PolygonArea(f)
				total += areas[i]
			}
			out := transfer.TransferLoad(blueTopo, greenTopo, subfaces, areas)
			sum := 0.0
			for _, v := range out {
				sum += v
			}
			Expect(sum).To(BeNumerically("~", total, 1e-9))
		})
	})
})
