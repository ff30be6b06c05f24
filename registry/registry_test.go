package registry_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/concom/errs"
	"github.com/sarchlab/concom/registry"
	"github.com/sarchlab/concom/window"
)

var _ = Describe("Registry", func() {
	var r *registry.Registry

	BeforeEach(func() {
		var err error
		r, err = registry.Init(nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(r.Finalize()).To(Succeed())
	})

	It("rejects a second Init while one is live", func() {
		_, err := registry.Init(nil)
		Expect(errs.Is(err, errs.AlreadyInitialized)).To(BeTrue())
	})

	It("allows Init again after Finalize", func() {
		Expect(r.Finalize()).To(Succeed())
		r2, err := registry.Init(nil)
		Expect(err).NotTo(HaveOccurred())
		r = r2
	})

	Describe("E1: window lifecycle", func() {
		It("creates and deletes a window, status -1 once gone", func() {
			_, err := r.NewWindow("W", nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(r.DeleteWindow("W")).To(Succeed())
			Expect(r.GetStatus("W", 0, 0)).To(Equal(-1))
		})

		It("rejects a duplicate window name", func() {
			_, err := r.NewWindow("W", nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = r.NewWindow("W", nil)
			Expect(errs.Is(err, errs.NameInUse)).To(BeTrue())
		})
	})

	Describe("handles", func() {
		It("never reuses a window handle within a run", func() {
			_, err := r.NewWindow("A", nil)
			Expect(err).NotTo(HaveOccurred())
			h1, err := r.GetWindowHandle("A")
			Expect(err).NotTo(HaveOccurred())

			Expect(r.DeleteWindow("A")).To(Succeed())
			_, err = r.GetWindowHandle("A")
			Expect(errs.Is(err, errs.NotFound)).To(BeTrue())

			_, err = r.NewWindow("B", nil)
			Expect(err).NotTo(HaveOccurred())
			h2, err := r.GetWindowHandle("B")
			Expect(err).NotTo(HaveOccurred())
			Expect(h2).NotTo(Equal(h1))
		})
	})

	Describe("error mode", func() {
		It("returns an error in ErrorCodeMode", func() {
			_, err := r.GetWindow("missing")
			Expect(err).To(HaveOccurred())
		})

		It("panics in ExceptionMode", func() {
			r.SetErrorMode(registry.ExceptionMode)
			Expect(func() { _, _ = r.GetWindow("missing") }).To(Panic())
			r.SetErrorMode(registry.ErrorCodeMode)
		})
	})

	Describe("profiling", func() {
		It("accumulates call counts and self/tree time", func() {
			r.EnableProfiling(nil)
			Expect(r.Call("W.f", func() error { return nil })).To(Succeed())
			Expect(r.Call("W.f", func() error { return nil })).To(Succeed())

			calls, _, _, ok := r.Profile("W.f")
			Expect(ok).To(BeTrue())
			Expect(calls).To(Equal(2))
		})
	})

	Describe("E7: module nested load", func() {
		It("unloading A implicitly deletes nested window B", func() {
			registry.RegisterModule("nested-demo", func() registry.Module {
				return &nestedDemoModule{}
			})

			Expect(r.LoadModule("nested-demo", "A")).To(Succeed())

			_, err := r.GetWindowHandle("B")
			Expect(err).NotTo(HaveOccurred())

			Expect(r.UnloadModule("A")).To(Succeed())

			_, err = r.GetWindowHandle("B")
			Expect(errs.Is(err, errs.NotFound)).To(BeTrue())
		})
	})
})

// nestedDemoModule exercises the nested-load contract: its Load opens
// a second window "B" under a different name and registers a function
// there.
type nestedDemoModule struct{}

func (m *nestedDemoModule) Load(ctx *registry.ModuleContext) error {
	if _, err := ctx.NewWindow(ctx.WindowName(), nil); err != nil {
		return err
	}
	b, err := ctx.NewWindow("B", nil)
	if err != nil {
		return err
	}
	return b.RegisterFunction(&window.Function{
		Name:  "noop",
		Entry: func([]any) error { return nil },
	})
}

func (m *nestedDemoModule) Unload(ctx *registry.ModuleContext) error {
	return nil
}
