package topology_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/concom/pane"
	"github.com/sarchlab/concom/topology"
)

var _ = Describe("Topology", func() {
	// Two triangles sharing the edge (1,2):
	//   0---1
	//    \ /|\
	//     X | 3
	//    / \|/
	//   (2)-+
	twoTris := topology.Mesh{
		NumNodes: 4,
		Elements: []topology.Element{
			{Type: pane.Tri, Nodes: []int{0, 1, 2}},
			{Type: pane.Tri, Nodes: []int{1, 3, 2}},
		},
	}

	Describe("BuildDual", func() {
		It("reports which elements touch each node", func() {
			d, err := topology.BuildDual(twoTris)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.NodeToElements[1]).To(Equal([]int{0, 1}))
			Expect(d.NodeToElements[2]).To(Equal([]int{0, 1}))
			Expect(d.NodeToElements[0]).To(Equal([]int{0}))
			Expect(d.NodeToElements[3]).To(Equal([]int{1}))
		})

		It("marks elements adjacent across a shared edge", func() {
			d, err := topology.BuildDual(twoTris)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.ElementToElements[0]).To(Equal([]int{1}))
			Expect(d.ElementToElements[1]).To(Equal([]int{0}))
		})

		It("rejects an element with the wrong node count for its type", func() {
			bad := topology.Mesh{
				NumNodes: 3,
				Elements: []topology.Element{{Type: pane.Tri, Nodes: []int{0, 1}}},
			}
			_, err := topology.BuildDual(bad)
			Expect(err).To(HaveOccurred())
		})

		It("rejects an out-of-range node reference", func() {
			bad := topology.Mesh{
				NumNodes: 2,
				Elements: []topology.Element{{Type: pane.Tri, Nodes: []int{0, 1, 5}}},
			}
			_, err := topology.BuildDual(bad)
			Expect(err).To(HaveOccurred())
		})

		It("handles quad elements", func() {
			m := topology.Mesh{
				NumNodes: 4,
				Elements: []topology.Element{{Type: pane.Quad, Nodes: []int{0, 1, 2, 3}}},
			}
			d, err := topology.BuildDual(m)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.NodeToElements[0]).To(Equal([]int{0}))
		})
	})

	Describe("IsManifold", func() {
		It("accepts an edge shared by exactly two elements", func() {
			ok, err := topology.IsManifold(twoTris)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})

		It("rejects an edge shared by three or more elements", func() {
			m := topology.Mesh{
				NumNodes: 5,
				Elements: []topology.Element{
					{Type: pane.Tri, Nodes: []int{0, 1, 2}},
					{Type: pane.Tri, Nodes: []int{0, 1, 3}},
					{Type: pane.Tri, Nodes: []int{0, 1, 4}},
				},
			}
			ok, err := topology.IsManifold(m)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})

	Describe("BorderEdges", func() {
		It("returns only edges used by a single element", func() {
			border := topology.BorderEdges(twoTris)
			Expect(border).To(ConsistOf(
				topology.Edge{A: 0, B: 1},
				topology.Edge{A: 0, B: 2},
				topology.Edge{A: 1, B: 3},
				topology.Edge{A: 2, B: 3},
			))
		})

		It("still returns the open edges of a three-triangle strip", func() {
			m := topology.Mesh{
				NumNodes: 4,
				Elements: []topology.Element{
					{Type: pane.Tri, Nodes: []int{0, 1, 2}},
					{Type: pane.Tri, Nodes: []int{1, 3, 2}},
					{Type: pane.Tri, Nodes: []int{0, 2, 3}},
				},
			}
			border := topology.BorderEdges(m)
			Expect(border).NotTo(BeEmpty())
		})
	})

	Describe("CSR packing", func() {
		It("packs the node-to-element dual into offsets and values", func() {
			d, err := topology.BuildDual(twoTris)
			Expect(err).NotTo(HaveOccurred())
			csr := d.NodeToElementsCSR()
			Expect(csr.Offsets).To(Equal([]int{0, 1, 3, 5, 6}))
			Expect(csr.Row(1)).To(Equal([]int{0, 1}))
			Expect(csr.Row(3)).To(Equal([]int{1}))
		})
	})

	Describe("BuildManifold", func() {
		It("links twins across the shared edge", func() {
			man, err := topology.BuildManifold(twoTris)
			Expect(err).NotTo(HaveOccurred())

			hes := man.HalfEdges()
			var found bool
			for i, he := range hes {
				if he.Origin == 1 && he.Dest == 2 {
					found = true
					Expect(he.Opposite).NotTo(Equal(-1))
					twin := hes[he.Opposite]
					Expect(twin.Origin).To(Equal(2))
					Expect(twin.Dest).To(Equal(1))
					Expect(twin.Opposite).To(Equal(i))
				}
			}
			Expect(found).To(BeTrue())
		})

		It("walks the star of a shared node over both faces", func() {
			man, err := topology.BuildManifold(twoTris)
			Expect(err).NotTo(HaveOccurred())
			Expect(man.Star(1)).To(ConsistOf(0, 1))
			Expect(man.Star(0)).To(ConsistOf(0))
		})

		It("returns the link ring around a node", func() {
			man, err := topology.BuildManifold(twoTris)
			Expect(err).NotTo(HaveOccurred())
			Expect(man.Link(1)).To(ConsistOf(0, 2, 3))
		})

		It("finds the neighbor face across an interior edge and -1 across a border", func() {
			man, err := topology.BuildManifold(twoTris)
			Expect(err).NotTo(HaveOccurred())
			// Face 0's edges are 0->1, 1->2, 2->0; only 1->2 has a twin.
			Expect(man.FaceNeighbor(0, 0)).To(Equal(-1))
			Expect(man.FaceNeighbor(0, 1)).To(Equal(1))
			Expect(man.FaceNeighbor(0, 2)).To(Equal(-1))
		})

		It("rejects inconsistently oriented input", func() {
			flipped := topology.Mesh{
				NumNodes: 4,
				Elements: []topology.Element{
					{Type: pane.Tri, Nodes: []int{0, 1, 2}},
					{Type: pane.Tri, Nodes: []int{1, 2, 3}}, // traverses 1->2 again
				},
			}
			_, err := topology.BuildManifold(flipped)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("BorderNodes", func() {
		// twoTris plus a ghost triangle hanging off edge (1,3).
		withGhost := topology.Mesh{
			NumNodes: 5,
			Elements: []topology.Element{
				{Type: pane.Tri, Nodes: []int{0, 1, 2}},
				{Type: pane.Tri, Nodes: []int{1, 3, 2}},
				{Type: pane.Tri, Nodes: []int{1, 4, 3}},
			},
			GhostElements: 1,
		}

		It("returns every real border node at level 0", func() {
			nodes, err := topology.BorderNodes(withGhost, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(Equal([]int{0, 1, 2, 3}))
		})

		It("returns only ghost-border nodes at level 1", func() {
			nodes, err := topology.BorderNodes(withGhost, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(Equal([]int{4}))
		})

		It("rejects a negative level", func() {
			_, err := topology.BorderNodes(withGhost, -1)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("StructuredBorderNodes", func() {
		It("returns the real boundary shell at level 0", func() {
			// 3x3 block, one ghost layer: padded grid is 5x5. The real
			// region spans rows/cols 1..3; its boundary is the 8-node ring
			// around the center.
			nodes, err := topology.StructuredBorderNodes([3]int{3, 3, 1}, 1, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(Equal([]int{6, 7, 8, 11, 13, 16, 17, 18}))
		})

		It("returns the first ghost shell at level 1", func() {
			nodes, err := topology.StructuredBorderNodes([3]int{3, 3, 1}, 1, 1)
			Expect(err).NotTo(HaveOccurred())
			// The outer 16-node ring of the 5x5 padded grid.
			Expect(nodes).To(HaveLen(16))
			Expect(nodes).To(ContainElements(0, 4, 20, 24))
		})

		It("rejects a level beyond the block's ghost layers", func() {
			_, err := topology.StructuredBorderNodes([3]int{3, 3, 1}, 1, 2)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("face geometry", func() {
		square := []topology.Vec3{
			{0, 0, 0}, {2, 0, 0}, {2, 2, 0}, {0, 2, 0},
		}

		It("computes quad area by fan triangulation", func() {
			e := topology.Element{Type: pane.Quad, Nodes: []int{0, 1, 2, 3}}
			Expect(topology.FaceArea(e, square)).To(BeNumerically("~", 4, 1e-12))
		})

		It("computes an upward unit normal for a counterclockwise face", func() {
			e := topology.Element{Type: pane.Tri, Nodes: []int{0, 1, 2}}
			n := topology.FaceNormal(e, square)
			Expect(n[2]).To(BeNumerically("~", 1, 1e-12))
		})

		It("computes the vertex-average centroid", func() {
			e := topology.Element{Type: pane.Quad, Nodes: []int{0, 1, 2, 3}}
			c := topology.FaceCentroid(e, square)
			Expect(c).To(Equal(topology.Vec3{1, 1, 0}))
		})
	})
})
