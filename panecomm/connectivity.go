package panecomm

import (
	"encoding/binary"
	"sort"

	"github.com/sarchlab/concom/errs"
)

// Run is one remote pane's slice of a connectivity block: the local
// ids this pane contributes to (or expects from) that remote pane, in
// a fixed order both sides agree on.
type Run struct {
	PaneID int
	Items  []int
}

// Block is one of the five per-kind lists of a pane's connectivity,
// keyed by remote pane id.
type Block []Run

// Find returns the run for remote pane id, if present.
func (b Block) Find(paneID int) (Run, bool) {
	for _, r := range b {
		if r.PaneID == paneID {
			return r, true
		}
	}
	return Run{}, false
}

// Connectivity is a pane's communication plan: five blocks, each a
// list of per-remote-pane runs, telling a pane communicator which
// local nodes participate in shared-node
// reductions, which real values to ship to a neighbor's ghost layer,
// and which ghost slots to fill from a neighbor's real layer. The
// element blocks mirror the node blocks in matching order.
type Connectivity struct {
	SharedNodes         Block
	RealNodesToSend     Block
	GhostNodesToReceive Block
	RealElementsToSend  Block
	GhostElementsToRecv Block
}

func (c Connectivity) blocks() []Block {
	return []Block{
		c.SharedNodes,
		c.RealNodesToSend,
		c.GhostNodesToReceive,
		c.RealElementsToSend,
		c.GhostElementsToRecv,
	}
}

// CommunicatingPanes returns the sorted distinct remote pane ids named
// anywhere in c, matching the stream's num_communicating_panes prefix.
func (c Connectivity) CommunicatingPanes() []int {
	seen := make(map[int]bool)
	for _, b := range c.blocks() {
		for _, r := range b {
			seen[r.PaneID] = true
		}
	}
	out := make([]int, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Encode serializes c as a flat int32 stream:
// num_communicating_panes, then for each of the five blocks one
// pane_count followed by pane_count runs of (pane_id, item_count,
// item_ids...). The layout is bit-exact; it is the integration
// contract with the import/export collaborator.
func Encode(c Connectivity) []byte {
	size := 4
	for _, b := range c.blocks() {
		size += 4
		for _, r := range b {
			size += 8 + 4*len(r.Items)
		}
	}

	buf := make([]byte, size)
	off := 0
	put := func(v int) {
		binary.LittleEndian.PutUint32(buf[off:], uint32(int32(v)))
		off += 4
	}

	put(len(c.CommunicatingPanes()))
	for _, b := range c.blocks() {
		put(len(b))
		for _, r := range b {
			put(r.PaneID)
			put(len(r.Items))
			for _, id := range r.Items {
				put(id)
			}
		}
	}
	return buf
}

// Decode parses the stream written by Encode.
func Decode(buf []byte) (Connectivity, error) {
	op := "panecomm.decode"
	off := 0
	get := func() (int, error) {
		if off+4 > len(buf) {
			return 0, errs.New(errs.InvalidArgument, op, "truncated connectivity stream")
		}
		v := int(int32(binary.LittleEndian.Uint32(buf[off:])))
		off += 4
		return v, nil
	}

	if _, err := get(); err != nil { // num_communicating_panes
		return Connectivity{}, err
	}

	var c Connectivity
	dsts := []*Block{
		&c.SharedNodes,
		&c.RealNodesToSend,
		&c.GhostNodesToReceive,
		&c.RealElementsToSend,
		&c.GhostElementsToRecv,
	}
	for _, dst := range dsts {
		paneCount, err := get()
		if err != nil {
			return Connectivity{}, err
		}
		if paneCount < 0 {
			return Connectivity{}, errs.New(errs.InvalidArgument, op, "negative pane count")
		}
		runs := make(Block, 0, paneCount)
		for p := 0; p < paneCount; p++ {
			paneID, err := get()
			if err != nil {
				return Connectivity{}, err
			}
			n, err := get()
			if err != nil {
				return Connectivity{}, err
			}
			if n < 0 {
				return Connectivity{}, errs.New(errs.InvalidArgument, op, "negative run length")
			}
			items := make([]int, n)
			for i := 0; i < n; i++ {
				items[i], err = get()
				if err != nil {
					return Connectivity{}, err
				}
			}
			runs = append(runs, Run{PaneID: paneID, Items: items})
		}
		if len(runs) > 0 {
			*dst = runs
		}
	}
	return c, nil
}
