package moduleapi_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/concom/dataitem"
	"github.com/sarchlab/concom/errs"
	"github.com/sarchlab/concom/registry"
	"github.com/sarchlab/concom/registry/moduleapi"
	"github.com/sarchlab/concom/typetag"
	"github.com/sarchlab/concom/window"
)

var _ = Describe("API", func() {
	var (
		r *registry.Registry
		a *moduleapi.API
		w *window.Window
	)

	BeforeEach(func() {
		var err error
		r, err = registry.Init(nil)
		Expect(err).NotTo(HaveOccurred())
		a = moduleapi.New(r)

		w, err = r.NewWindow("solver", nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(r.Finalize()).To(Succeed())
	})

	Describe("handle resolution", func() {
		It("rejects a non-dotted identifier", func() {
			_, err := a.GetDataItemHandle("nodotthere")
			Expect(errs.Is(err, errs.InvalidArgument)).To(BeTrue())
		})

		It("resolves a window-scoped data item by its dotted name", func() {
			_, err := w.NewDataItem("temperature", dataitem.WindowScoped, typetag.F64, 1, "K")
			Expect(err).NotTo(HaveOccurred())

			handle, err := a.GetDataItemHandle("solver.temperature")
			Expect(err).NotTo(HaveOccurred())
			Expect(handle).NotTo(BeZero())
		})

		It("resolves a registered function by its dotted name and dispatches through it", func() {
			var called bool
			Expect(w.RegisterFunction(&window.Function{
				Name:   "step",
				Intent: "",
				Entry:  func(args []any) error { called = true; return nil },
			})).To(Succeed())

			handle, err := a.GetFunctionHandle("solver.step")
			Expect(err).NotTo(HaveOccurred())

			Expect(a.CallFunction(handle, nil, nil)).To(Succeed())
			Expect(called).To(BeTrue())
		})
	})

	Describe("SetArray/GetArray", func() {
		It("binds an external buffer and reads it back through the dotted surface", func() {
			_, err := w.NewDataItem("pressure", dataitem.PerNode, typetag.F64, 1, "Pa")
			Expect(err).NotTo(HaveOccurred())

			p, err := w.NewPane(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.SetNodeCount(2, 0)).To(Succeed())

			buf := make([]byte, 16)
			Expect(a.SetArray("solver.pressure", 1, buf, 1, 2, false)).To(Succeed())

			id, err := a.GetDataItemHandle("solver.pressure")
			Expect(err).NotTo(HaveOccurred())

			raw, err := a.GetArray("solver.pressure", 1, 0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(raw).To(HaveLen(8))
			_ = id
		})
	})

	Describe("GetStatus", func() {
		It("returns -1 for an unresolvable dotted reference", func() {
			Expect(a.GetStatus("missing.item", 1, 0)).To(Equal(-1))
		})
	})

	Describe("error surface", func() {
		It("records the last error after a failing call", func() {
			_, err := a.GetWindowHandle("nosuchwindow")
			Expect(err).To(HaveOccurred())
			Expect(a.GetLastError()).NotTo(BeEmpty())

			kind, ok := a.GetErrorCode()
			Expect(ok).To(BeTrue())
			Expect(kind).To(Equal(errs.NotFound))
		})
	})
})
