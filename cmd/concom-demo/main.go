// Command concom-demo wires up a two-pane window, drives one ghost
// exchange, one dispatched function call, and one overlay-backed field
// transfer end to end, and prints the resulting profiling report.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/concom/dataitem"
	"github.com/sarchlab/concom/dispatch"
	"github.com/sarchlab/concom/overlay"
	"github.com/sarchlab/concom/registry"
	"github.com/sarchlab/concom/transfer"
	"github.com/sarchlab/concom/typetag"
	"github.com/sarchlab/concom/window"
)

func main() {
	fmt.Println("==============================================================================")
	fmt.Println("CONCOM DEMO: two-pane thermal window")
	fmt.Println("==============================================================================")

	reg, err := registry.Init(nil)
	if err != nil {
		log.Fatalf("registry.init: %v", err)
	}
	defer reg.Finalize()
	reg.EnableProfiling(nil)

	w, err := reg.NewWindow("thermal", nil)
	if err != nil {
		log.Fatalf("new_window: %v", err)
	}

	if _, err := w.NewDataItem("temperature", dataitem.PerNode, typetag.F64, 1, "K"); err != nil {
		log.Fatalf("new_dataitem: %v", err)
	}

	left, err := w.NewPane(1)
	if err != nil {
		log.Fatalf("new_pane(1): %v", err)
	}
	if err := left.SetNodeCount(2, 1); err != nil {
		log.Fatalf("set_size(1): %v", err)
	}

	right, err := w.NewPane(2)
	if err != nil {
		log.Fatalf("new_pane(2): %v", err)
	}
	if err := right.SetNodeCount(2, 1); err != nil {
		log.Fatalf("set_size(2): %v", err)
	}

	fieldHandle, err := reg.GetDataItemHandle("thermal", "temperature")
	if err != nil {
		log.Fatalf("get_dataitem_handle: %v", err)
	}

	leftTemp, err := left.GetDataItem(fieldHandle)
	if err != nil {
		log.Fatalf("get_dataitem(left): %v", err)
	}
	if err := leftTemp.AllocateArray(); err != nil {
		log.Fatalf("allocate_array(left): %v", err)
	}
	if err := leftTemp.SetFloat64(0, 0, 310.0); err != nil {
		log.Fatalf("set(left): %v", err)
	}

	rightTemp, err := right.GetDataItem(fieldHandle)
	if err != nil {
		log.Fatalf("get_dataitem(right): %v", err)
	}
	if err := rightTemp.AllocateArray(); err != nil {
		log.Fatalf("allocate_array(right): %v", err)
	}

	fmt.Println("\n---- STAGE 1: wiring the panes ----")
	engine := sim.NewSerialEngine()
	topo := window.NewTopologyBuilder(engine, 1*sim.GHz)
	exchanges, err := topo.Build(w, []window.PaneLink{{SrcPane: 1, DstPane: 2}})
	if err != nil {
		log.Fatalf("build_topology: %v", err)
	}
	fmt.Printf("created %d exchanges\n", len(exchanges))

	fmt.Println("\n---- STAGE 2: ghost exchange ----")
	if err := exchanges[1].SendGhostUpdate(2, fieldHandle, []int{1}, leftTemp, []int{0}); err != nil {
		log.Fatalf("send_ghost_update: %v", err)
	}
	if err := engine.Run(); err != nil {
		log.Fatalf("engine.run: %v", err)
	}
	exchanges[2].Tick(0)

	ghostVal, err := rightTemp.Float64(1, 0)
	if err != nil {
		log.Fatalf("read ghost value: %v", err)
	}
	fmt.Printf("pane 2 ghost slot now reads %.2f K\n", ghostVal)

	fmt.Println("\n---- STAGE 3: dispatched function call ----")
	var reported float64
	err = w.RegisterFunction(&window.Function{
		Name:   "report_ghost",
		Intent: "",
		Entry: func(args []any) error {
			v, err := rightTemp.Float64(1, 0)
			if err != nil {
				return err
			}
			reported = v
			return nil
		},
	})
	if err != nil {
		log.Fatalf("register_function: %v", err)
	}

	funcHandle, err := reg.GetFunctionHandle("thermal", "report_ghost")
	if err != nil {
		log.Fatalf("get_function_handle: %v", err)
	}

	d := dispatch.New(reg)
	if err := d.CallFunction(funcHandle, nil, nil); err != nil {
		log.Fatalf("call_function: %v", err)
	}
	fmt.Printf("report_ghost observed %.2f K\n", reported)

	fmt.Println("\n---- STAGE 4: surface overlay and transfer ----")
	blue, green, blueTopo, greenTopo := planarMeshes()
	ov := &overlay.Overlay{
		Blue:  overlay.SurfaceOf(blue),
		Green: overlay.SurfaceOf(green),
	}
	subfaces, err := ov.Compute()
	if err != nil {
		log.Fatalf("overlay.compute: %v", err)
	}
	overlay.DumpAreas(os.Stdout, overlay.SurfaceOf(blue), subfaces)

	src := transfer.Field{Nodal: []float64{300, 300, 300, 300, 300}}
	out, err := transfer.TransferConservative(blueTopo, greenTopo, subfaces, src, false, transfer.Order2, 0, 0)
	if err != nil {
		log.Fatalf("transfer.conservative: %v", err)
	}
	fmt.Printf("transferred constant field, target node 0 reads %.2f K\n", out.Nodal[0])

	fmt.Println("\n---- STAGE 5: profiling report ----")
	reg.PrintProfileReport()
}

// planarMeshes builds a four-triangle fan and a single quad over the
// same unit square, the smallest overlay pair with a nontrivial
// refinement.
func planarMeshes() (blue, green overlay.Mesh, blueTopo, greenTopo transfer.Topology) {
	n := []overlay.Point{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
		{X: 0.5, Y: 0.5},
	}
	blue.PaneID = 1
	green.PaneID = 1
	blueIdx := [][]int{{0, 1, 4}, {1, 2, 4}, {2, 3, 4}, {3, 0, 4}}
	for _, idx := range blueIdx {
		var f overlay.Face
		for _, k := range idx {
			f = append(f, n[k])
		}
		blue.Faces = append(blue.Faces, f)
	}
	greenIdx := [][]int{{0, 1, 2, 3}}
	green.Faces = []overlay.Face{{n[0], n[1], n[2], n[3]}}

	blueTopo = transfer.Topology{Mesh: blue, Faces: blueIdx, NumNodes: 5}
	greenTopo = transfer.Topology{Mesh: green, Faces: greenIdx, NumNodes: 4}
	return blue, green, blueTopo, greenTopo
}
