package window_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/concom/dataitem"
	"github.com/sarchlab/concom/errs"
	"github.com/sarchlab/concom/pane"
	"github.com/sarchlab/concom/typetag"
	"github.com/sarchlab/concom/window"
)

var _ = Describe("Window", func() {
	var w *window.Window

	BeforeEach(func() {
		w = window.New("W", fakeComm{rank: 0, size: 1, name: "world"})
	})

	It("propagates a new data item template to existing panes", func() {
		_, err := w.NewPane(1)
		Expect(err).NotTo(HaveOccurred())

		id, err := w.NewDataItem("temperature", dataitem.PerNode, typetag.F64, 1, "K")
		Expect(err).NotTo(HaveOccurred())

		p, err := w.GetPane(1, false)
		Expect(err).NotTo(HaveOccurred())
		d, err := p.GetDataItem(id)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Name).To(Equal("temperature"))
	})

	It("rejects a duplicate data item name", func() {
		_, err := w.NewDataItem("temperature", dataitem.PerNode, typetag.F64, 1, "K")
		Expect(err).NotTo(HaveOccurred())
		_, err = w.NewDataItem("temperature", dataitem.PerNode, typetag.F64, 1, "K")
		Expect(errs.Is(err, errs.NameInUse)).To(BeTrue())
	})

	It("rejects creating the reserved dummy pane", func() {
		_, err := w.NewPane(0)
		Expect(errs.Is(err, errs.InvalidArgument)).To(BeTrue())
	})

	Describe("E1: window lifecycle", func() {
		It("reports status 0 for an uninitialized data item, then PaneNotExist after delete", func() {
			id, err := w.NewDataItem("pressure", dataitem.WindowScoped, typetag.F64, 1, "Pa")
			Expect(err).NotTo(HaveOccurred())

			status, err := w.GetStatus(0, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(0))

			_, err = w.NewPane(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(w.DeletePane(1)).To(Succeed())

			_, err = w.GetPane(1, false)
			Expect(errs.Is(err, errs.PaneNotExist)).To(BeTrue())
		})
	})

	Describe("GetDataItemHandle", func() {
		It("returns a stable handle for a registered name", func() {
			id, err := w.NewDataItem("pressure", dataitem.WindowScoped, typetag.F64, 1, "Pa")
			Expect(err).NotTo(HaveOccurred())

			handle, err := w.GetDataItemHandle("pressure")
			Expect(err).NotTo(HaveOccurred())
			Expect(handle).To(Equal(id))
		})

		It("errors for an unknown name", func() {
			_, err := w.GetDataItemHandle("nope")
			Expect(errs.Is(err, errs.NotFound)).To(BeTrue())
		})
	})

	Describe("Functions", func() {
		It("registers and looks up a function by name", func() {
			called := false
			err := w.RegisterFunction(&window.Function{
				Name:   "sum",
				Intent: "bI",
				Entry: func(args []any) error {
					called = true
					return nil
				},
			})
			Expect(err).NotTo(HaveOccurred())

			f, err := w.GetFunction("sum")
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Entry(nil)).To(Succeed())
			Expect(called).To(BeTrue())
		})

		It("rejects a duplicate function name", func() {
			reg := func() error {
				return w.RegisterFunction(&window.Function{Name: "f", Entry: func([]any) error { return nil }})
			}
			Expect(reg()).To(Succeed())
			Expect(errs.Is(reg(), errs.NameInUse)).To(BeTrue())
		})
	})

	Describe("window-level Inherit", func() {
		var src *window.Window

		BeforeEach(func() {
			src = window.New("S", fakeComm{rank: 0, size: 1, name: "world"})
			_, err := src.NewDataItem("temperature", dataitem.PerNode, typetag.F64, 1, "K")
			Expect(err).NotTo(HaveOccurred())

			p, err := src.NewPane(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.SetNodeCount(4, 1)).To(Succeed())
			Expect(p.NodalCoordinates.AllocateArray()).To(Succeed())
			for i := 0; i < 4; i++ {
				Expect(p.NodalCoordinates.SetFloat64(i, 0, float64(i))).To(Succeed())
			}

			id, err := src.GetDataItemHandle("temperature")
			Expect(err).NotTo(HaveOccurred())
			d, err := p.GetDataItem(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.AllocateArray()).To(Succeed())
			for i := 0; i < 4; i++ {
				Expect(d.SetFloat64(i, 0, 300+float64(i))).To(Succeed())
			}
		})

		It("use-inherits a named item as a zero-copy alias", func() {
			trg := window.New("T", fakeComm{rank: 0, size: 1, name: "world"})
			Expect(window.Inherit(trg, src, "temperature", dataitem.Use, true, "", 0)).To(Succeed())

			tp, err := trg.GetPane(1, false)
			Expect(err).NotTo(HaveOccurred())
			id, err := trg.GetDataItemHandle("temperature")
			Expect(err).NotTo(HaveOccurred())
			td, err := tp.GetDataItem(id)
			Expect(err).NotTo(HaveOccurred())

			Expect(td.Status()).To(Equal(3))
			v, err := td.Float64(2, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(302.0))

			// Writes through the view land in the source buffer.
			Expect(td.SetFloat64(2, 0, -1)).To(Succeed())
			sp, err := src.GetPane(1, false)
			Expect(err).NotTo(HaveOccurred())
			sid, err := src.GetDataItemHandle("temperature")
			Expect(err).NotTo(HaveOccurred())
			sd, err := sp.GetDataItem(sid)
			Expect(err).NotTo(HaveOccurred())
			sv, err := sd.Float64(2, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(sv).To(Equal(-1.0))
		})

		It("copy-inherits real items byte for byte (round-trip law 9)", func() {
			trg := window.New("T", fakeComm{rank: 0, size: 1, name: "world"})
			Expect(window.Inherit(trg, src, "temperature", dataitem.Copy, false, "", 0)).To(Succeed())

			tp, err := trg.GetPane(1, false)
			Expect(err).NotTo(HaveOccurred())
			id, err := trg.GetDataItemHandle("temperature")
			Expect(err).NotTo(HaveOccurred())
			td, err := tp.GetDataItem(id)
			Expect(err).NotTo(HaveOccurred())

			// Real items only: ghosts were excluded.
			Expect(td.ItemCount).To(Equal(3))
			for i := 0; i < 3; i++ {
				sp := src.Panes[1]
				sid, err := src.GetDataItemHandle("temperature")
				Expect(err).NotTo(HaveOccurred())
				sd, err := sp.GetDataItem(sid)
				Expect(err).NotTo(HaveOccurred())
				sraw, err := sd.Raw(i, 0)
				Expect(err).NotTo(HaveOccurred())
				traw, err := td.Raw(i, 0)
				Expect(err).NotTo(HaveOccurred())
				Expect(traw).To(Equal(sraw))
			}
		})

		It("bulk-inherits the MESH target: coordinates plus connectivity", func() {
			sp := src.Panes[1]
			Expect(sp.AddConnectivity(pane.Connectivity{
				Unstructured: &pane.UnstructuredBlock{Type: pane.Tri, ElementCount: 2},
			})).To(Succeed())

			trg := window.New("T", fakeComm{rank: 0, size: 1, name: "world"})
			Expect(window.Inherit(trg, src, window.TargetMesh, dataitem.Copy, true, "", 0)).To(Succeed())

			tp, err := trg.GetPane(1, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(tp.Connectivities).To(HaveLen(1))
			Expect(tp.NodalCoordinates.ItemCount).To(Equal(4))
			v, err := tp.NodalCoordinates.Float64(3, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(3.0))
		})

		It("filters the pane set by a pane-scoped predicate", func() {
			_, err := src.NewDataItem("partition", dataitem.PaneScoped, typetag.I32, 1, "")
			Expect(err).NotTo(HaveOccurred())

			p2, err := src.NewPane(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(p2.SetNodeCount(2, 0)).To(Succeed())

			pid, err := src.GetDataItemHandle("partition")
			Expect(err).NotTo(HaveOccurred())
			for paneID, want := range map[int]int64{1: 7, 2: 8} {
				d, err := src.Panes[paneID].GetDataItem(pid)
				Expect(err).NotTo(HaveOccurred())
				Expect(d.SetSize(1, 0)).To(Succeed())
				Expect(d.AllocateArray()).To(Succeed())
				Expect(d.SetInt64(0, 0, want)).To(Succeed())
			}

			trg := window.New("T", fakeComm{rank: 0, size: 1, name: "world"})
			Expect(window.Inherit(trg, src, "temperature", dataitem.Use, true, "partition", 7)).To(Succeed())

			Expect(trg.RealPaneIDs()).To(Equal([]int{1}))
		})

		It("errors on an unknown source name", func() {
			trg := window.New("T", fakeComm{rank: 0, size: 1, name: "world"})
			err := window.Inherit(trg, src, "nope", dataitem.Use, true, "", 0)
			Expect(errs.Is(err, errs.NotFound)).To(BeTrue())
		})
	})

	Describe("InitDone", func() {
		It("accepts a window whose materialized items fit their capacity", func() {
			_, err := w.NewDataItem("temperature", dataitem.PerNode, typetag.F64, 1, "K")
			Expect(err).NotTo(HaveOccurred())
			p, err := w.NewPane(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.SetNodeCount(3, 0)).To(Succeed())
			id, err := w.GetDataItemHandle("temperature")
			Expect(err).NotTo(HaveOccurred())
			d, err := p.GetDataItem(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.AllocateArray()).To(Succeed())

			Expect(w.InitDone()).To(Succeed())
			Expect(w.Status).To(Equal(window.NoChange))
		})

		It("rejects item_count above capacity with InvalidCapacity", func() {
			_, err := w.NewDataItem("temperature", dataitem.PerNode, typetag.F64, 1, "K")
			Expect(err).NotTo(HaveOccurred())
			p, err := w.NewPane(1)
			Expect(err).NotTo(HaveOccurred())
			id, err := w.GetDataItemHandle("temperature")
			Expect(err).NotTo(HaveOccurred())
			d, err := p.GetDataItem(id)
			Expect(err).NotTo(HaveOccurred())

			// Bind a two-item external buffer, then declare three items.
			buf := make([]byte, 2*8)
			Expect(d.SetSize(2, 0)).To(Succeed())
			Expect(d.SetArray(buf, 0, 0, false)).To(Succeed())
			d.ItemCount = 3

			err = w.InitDone()
			Expect(errs.Is(err, errs.InvalidCapacity)).To(BeTrue())
		})
	})
})
