package window

import (
	"fmt"

	"github.com/sarchlab/akita/v4/mem/idealmemcontroller"
	"github.com/sarchlab/akita/v4/mem/mem"
	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/akita/v4/sim/directconnection"

	"github.com/sarchlab/concom/errs"
	"github.com/sarchlab/concom/panecomm"
)

// TopologyBuilder wires one panecomm.Exchange per pane and connects
// pairs of them with an akita directconnection, driven by an explicit
// link list naming the pane-to-pane adjacency rather than any fixed
// grid shape.
type TopologyBuilder struct {
	engine     sim.Engine
	freq       sim.Freq
	monitor    *monitoring.Monitor
	memoryMode string
}

// NewTopologyBuilder creates a builder driving every Exchange it
// creates off engine/freq.
func NewTopologyBuilder(engine sim.Engine, freq sim.Freq) *TopologyBuilder {
	return &TopologyBuilder{engine: engine, freq: freq}
}

// WithMonitor registers every Exchange this builder creates with
// monitor.
func (b *TopologyBuilder) WithMonitor(monitor *monitoring.Monitor) *TopologyBuilder {
	b.monitor = monitor
	return b
}

// WithMemoryMode selects how received payloads are journaled:
// "shared" backs every Exchange with one memory controller, "local"
// gives each pane its own, and "" (the default) skips the backing
// entirely.
func (b *TopologyBuilder) WithMemoryMode(mode string) *TopologyBuilder {
	b.memoryMode = mode
	return b
}

// PaneLink names one peer-to-peer wiring to establish between two
// panes of the same window: each pane's Exchange treats the other
// pane's id as its "peer rank", and Conn is the ghost/shared-node plan
// that drives what each side sends and expects back.
type PaneLink struct {
	SrcPane int
	DstPane int
	Conn    panecomm.Connectivity
}

// Build creates one Exchange per real pane of w, registers every data
// item currently on that pane with its Exchange, and plugs a
// directconnection between each named link's two endpoints: one pass
// creates a component per pane, a second plugs a direct connection
// between each linked pair.
func (b *TopologyBuilder) Build(w *Window, links []PaneLink) (map[int]*panecomm.Exchange, error) {
	op := fmt.Sprintf("%s.build_topology", w.Name)

	exchanges := make(map[int]*panecomm.Exchange)
	for _, id := range w.RealPaneIDs() {
		p, err := w.GetPane(id, false)
		if err != nil {
			return nil, errs.Wrap(op, err)
		}

		name := fmt.Sprintf("%s.Pane[%d].Exchange", w.Name, id)
		ex := panecomm.NewExchange(name, b.engine, b.freq)
		if b.monitor != nil {
			b.monitor.RegisterComponent(ex)
		}
		for itemID, item := range p.DataItems {
			ex.RegisterItem(itemID, item)
		}
		exchanges[id] = ex
	}

	if err := b.createStagingMemory(w, exchanges); err != nil {
		return nil, errs.Wrap(op, err)
	}

	for i, link := range links {
		srcEx, ok := exchanges[link.SrcPane]
		if !ok {
			return nil, errs.New(errs.PaneNotExist, op, "link names an unknown source pane")
		}
		dstEx, ok := exchanges[link.DstPane]
		if !ok {
			return nil, errs.New(errs.PaneNotExist, op, "link names an unknown destination pane")
		}

		linkName := fmt.Sprintf("%s.Link[%d](%d-%d)", w.Name, i, link.SrcPane, link.DstPane)
		conn := directconnection.MakeBuilder().
			WithEngine(b.engine).
			WithFreq(b.freq).
			Build(linkName)

		srcPort := panecomm.NewPort(srcEx, 4, linkName+".Src")
		dstPort := panecomm.NewPort(dstEx, 4, linkName+".Dst")
		conn.PlugIn(srcPort)
		conn.PlugIn(dstPort)

		srcEx.ConnectPeer(link.DstPane, srcPort, dstPort.AsRemote())
		dstEx.ConnectPeer(link.SrcPane, dstPort, srcPort.AsRemote())

		if err := persistConnectivity(w, link.SrcPane, link.Conn); err != nil {
			return nil, errs.Wrap(op, err)
		}
		if err := persistConnectivity(w, link.DstPane, link.Conn); err != nil {
			return nil, errs.Wrap(op, err)
		}
	}

	return exchanges, nil
}

// createStagingMemory backs the window's exchanges with
// idealmemcontroller storage per the builder's memory mode: one
// controller for the whole window, or one per pane.
func (b *TopologyBuilder) createStagingMemory(w *Window, exchanges map[int]*panecomm.Exchange) error {
	switch b.memoryMode {
	case "":
		return nil
	case "shared":
		ctrl := idealmemcontroller.MakeBuilder().
			WithEngine(b.engine).
			WithNewStorage(64 * mem.MB).
			WithLatency(5).
			Build(fmt.Sprintf("%s.SharedStaging", w.Name))
		if b.monitor != nil {
			b.monitor.RegisterComponent(ctrl)
		}
		for _, ex := range exchanges {
			ex.AttachStagingMemory(ctrl.Storage)
		}
		return nil
	case "local":
		for id, ex := range exchanges {
			ctrl := idealmemcontroller.MakeBuilder().
				WithEngine(b.engine).
				WithNewStorage(64 * mem.MB).
				WithLatency(5).
				Build(fmt.Sprintf("%s.Pane[%d].Staging", w.Name, id))
			if b.monitor != nil {
				b.monitor.RegisterComponent(ctrl)
			}
			ex.AttachStagingMemory(ctrl.Storage)
		}
		return nil
	default:
		return errs.New(errs.InvalidArgument, "topology_builder.memory_mode", "unknown memory mode "+b.memoryMode)
	}
}

// persistConnectivity encodes conn into paneID's reserved
// pane_connectivity data item , the same bit-exact
// block stream package panecomm already round-trips through
// Encode/Decode, so a host reading that data item back sees the wiring
// this builder established.
func persistConnectivity(w *Window, paneID int, conn panecomm.Connectivity) error {
	p, err := w.GetPane(paneID, false)
	if err != nil {
		return err
	}
	buf := panecomm.Encode(conn)
	// pane_connectivity is typed I32 (4 bytes each); Stride is counted in
	// type units, so the whole blob is one "item" of len(buf)/4 int32s.
	return p.PaneConnectivity.SetArray(buf, len(buf)/4, 1, true)
}
