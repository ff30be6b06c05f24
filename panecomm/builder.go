package panecomm

import (
	"fmt"
	"math"
	"sort"

	"github.com/sarchlab/concom/errs"
)

// PaneGeometry is the per-pane input to the connectivity builder: the
// pane's identity in the global (rank, pane-id) order plus the
// positions the matching runs on. The trailing GhostNodes entries of
// Nodes are the pane's ghost layer; likewise for element centroids.
type PaneGeometry struct {
	PaneID int
	Rank   int

	// Nodes holds one x/y/z triple per node, real nodes first.
	Nodes      [][3]float64
	GhostNodes int

	// ElemCentroids holds one centroid per element, real elements
	// first. May be nil when the window carries no element fields.
	ElemCentroids [][3]float64
	GhostElems    int
}

func (g PaneGeometry) realNodes() int { return len(g.Nodes) - g.GhostNodes }

func (g PaneGeometry) realElems() int { return len(g.ElemCentroids) - g.GhostElems }

// ConnectivityBuilder computes every pane's five connectivity blocks
// from node/element co-location. Ties are broken by the total order
// (rank, pane-id, local-id), and the primary owner of a shared node is
// the instance with the lowest (rank, pane-id).
type ConnectivityBuilder struct {
	tol float64
}

// MakeConnectivityBuilder creates a builder with the default matching
// tolerance.
func MakeConnectivityBuilder() ConnectivityBuilder {
	return ConnectivityBuilder{tol: 1e-9}
}

// WithTolerance overrides the co-location tolerance: two positions
// within tol of each other (per axis) denote the same physical point.
func (b ConnectivityBuilder) WithTolerance(tol float64) ConnectivityBuilder {
	b.tol = tol
	return b
}

// instanceRef names one (pane, local-id) instance of a physical point,
// ordered by the global (rank, pane-id, local-id) total order.
type instanceRef struct {
	rank    int
	paneID  int
	localID int
	ghost   bool
}

func (a instanceRef) less(b instanceRef) bool {
	if a.rank != b.rank {
		return a.rank < b.rank
	}
	if a.paneID != b.paneID {
		return a.paneID < b.paneID
	}
	return a.localID < b.localID
}

// Build computes one Connectivity per pane id. Real nodes co-located
// across panes become shared nodes on every instance; a ghost node
// co-located with a remote real node becomes a
// ghost-receive/real-send pair with matching run order on both sides.
// Element centroids drive the two element blocks the same way ghost
// nodes drive the node blocks.
func (b ConnectivityBuilder) Build(panes []PaneGeometry) (map[int]*Connectivity, error) {
	op := "panecomm.build_connectivity"

	out := make(map[int]*Connectivity, len(panes))
	for _, g := range panes {
		if _, dup := out[g.PaneID]; dup {
			return nil, errs.New(errs.NameInUse, op, fmt.Sprintf("pane id %d given twice", g.PaneID))
		}
		if g.GhostNodes > len(g.Nodes) || g.GhostElems > len(g.ElemCentroids) {
			return nil, errs.New(errs.InvalidSize, op, fmt.Sprintf("pane %d ghost count exceeds item count", g.PaneID))
		}
		out[g.PaneID] = &Connectivity{}
	}

	groups := b.colocate(panes, false)
	b.fillSharedNodes(groups, out)
	b.fillGhostBlocks(groups, out, false)

	if hasElems(panes) {
		elemGroups := b.colocate(panes, true)
		b.fillGhostBlocks(elemGroups, out, true)
	}

	for _, c := range out {
		sortConnectivity(c)
	}
	return out, nil
}

func hasElems(panes []PaneGeometry) bool {
	for _, g := range panes {
		if len(g.ElemCentroids) > 0 {
			return true
		}
	}
	return false
}

// colocate buckets every instance by its quantized position and
// returns the co-location groups, each sorted by the global total
// order so the first entry is the deterministic primary.
func (b ConnectivityBuilder) colocate(panes []PaneGeometry, elems bool) [][]instanceRef {
	cell := b.tol
	if cell <= 0 {
		cell = 1e-9
	}
	key := func(p [3]float64) [3]int64 {
		return [3]int64{
			int64(math.Round(p[0] / cell)),
			int64(math.Round(p[1] / cell)),
			int64(math.Round(p[2] / cell)),
		}
	}

	buckets := make(map[[3]int64][]instanceRef)
	for _, g := range panes {
		pts := g.Nodes
		nReal := g.realNodes()
		if elems {
			pts = g.ElemCentroids
			nReal = g.realElems()
		}
		for i, p := range pts {
			ref := instanceRef{rank: g.Rank, paneID: g.PaneID, localID: i, ghost: i >= nReal}
			buckets[key(p)] = append(buckets[key(p)], ref)
		}
	}

	keys := make([][3]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, c := keys[i], keys[j]
		if a[0] != c[0] {
			return a[0] < c[0]
		}
		if a[1] != c[1] {
			return a[1] < c[1]
		}
		return a[2] < c[2]
	})

	groups := make([][]instanceRef, 0, len(keys))
	for _, k := range keys {
		group := buckets[k]
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].less(group[j]) })
		groups = append(groups, group)
	}
	return groups
}

// fillSharedNodes records, for every group with two or more real
// instances, each instance's local id under every other instance's
// pane. Run order is the co-location group visit order, identical on
// both sides of each pair, so the k-th entry of pane P's run for Q and
// the k-th entry of Q's run for P name the same physical node.
func (b ConnectivityBuilder) fillSharedNodes(groups [][]instanceRef, out map[int]*Connectivity) {
	for _, group := range groups {
		var real []instanceRef
		for _, ref := range group {
			if !ref.ghost {
				real = append(real, ref)
			}
		}
		if len(real) < 2 {
			continue
		}
		for _, ref := range real {
			for _, other := range real {
				if other.paneID == ref.paneID {
					continue
				}
				appendRun(&out[ref.paneID].SharedNodes, other.paneID, ref.localID)
			}
		}
	}
}

// fillGhostBlocks pairs each ghost instance with the primary real
// instance of its group (lowest (rank, pane-id, local-id)): the ghost
// side records a receive, the owner records the matching send, in the
// same order.
func (b ConnectivityBuilder) fillGhostBlocks(groups [][]instanceRef, out map[int]*Connectivity, elems bool) {
	for _, group := range groups {
		var owner *instanceRef
		for i := range group {
			if !group[i].ghost {
				owner = &group[i]
				break
			}
		}
		if owner == nil {
			continue
		}
		for _, ref := range group {
			if !ref.ghost || ref.paneID == owner.paneID {
				continue
			}
			recv := out[ref.paneID]
			send := out[owner.paneID]
			if elems {
				appendRun(&recv.GhostElementsToRecv, owner.paneID, ref.localID)
				appendRun(&send.RealElementsToSend, ref.paneID, owner.localID)
			} else {
				appendRun(&recv.GhostNodesToReceive, owner.paneID, ref.localID)
				appendRun(&send.RealNodesToSend, ref.paneID, owner.localID)
			}
		}
	}
}

func appendRun(b *Block, paneID, localID int) {
	for i := range *b {
		if (*b)[i].PaneID == paneID {
			(*b)[i].Items = append((*b)[i].Items, localID)
			return
		}
	}
	*b = append(*b, Run{PaneID: paneID, Items: []int{localID}})
}

// sortConnectivity orders every block's runs by remote pane id so the
// encoded stream is deterministic. Item order within a run is already
// fixed by group visit order and must not be re-sorted: both sides of
// a pair rely on it being identical.
func sortConnectivity(c *Connectivity) {
	for _, b := range c.blocks() {
		sort.Slice(b, func(i, j int) bool { return b[i].PaneID < b[j].PaneID })
	}
}
