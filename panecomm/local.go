package panecomm

import (
	"sort"

	"github.com/sarchlab/concom/dataitem"
	"github.com/sarchlab/concom/errs"
)

// The functions in this file are the pane communicator's shared-memory
// fast path: when both panes of a communicating pair live on the
// same rank, values are copied directly between their data items
// instead of crossing the transport. The Exchange component handles
// the cross-rank half of the same operations.

type instKey struct {
	paneID  int
	localID int
}

// unionFind merges pairwise-matched node instances into co-location
// groups, so a node shared by three or more panes reduces once over
// all of its instances rather than pairwise.
type unionFind struct {
	parent map[instKey]instKey
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[instKey]instKey)}
}

func (u *unionFind) find(k instKey) instKey {
	p, ok := u.parent[k]
	if !ok {
		u.parent[k] = k
		return k
	}
	if p == k {
		return k
	}
	root := u.find(p)
	u.parent[k] = root
	return root
}

func (u *unionFind) union(a, b instKey) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}

// sharedGroups zips each pane's shared-node run against the matching
// run on the remote pane (k-th entry to k-th entry) and merges the
// pairs into full co-location groups.
func sharedGroups(conns map[int]*Connectivity) ([][]instKey, error) {
	op := "panecomm.shared_groups"
	u := newUnionFind()

	paneIDs := make([]int, 0, len(conns))
	for id := range conns {
		paneIDs = append(paneIDs, id)
	}
	sort.Ints(paneIDs)

	for _, p := range paneIDs {
		for _, run := range conns[p].SharedNodes {
			q := run.PaneID
			remote, ok := conns[q]
			if !ok {
				continue // q lives on another rank; Exchange covers it
			}
			back, ok := remote.SharedNodes.Find(p)
			if !ok || len(back.Items) != len(run.Items) {
				return nil, errs.New(errs.InvalidArgument, op, "shared-node runs do not mirror each other")
			}
			for k := range run.Items {
				u.union(instKey{p, run.Items[k]}, instKey{q, back.Items[k]})
			}
		}
	}

	byRoot := make(map[instKey][]instKey)
	for k := range u.parent {
		root := u.find(k)
		byRoot[root] = append(byRoot[root], k)
	}

	roots := make([]instKey, 0, len(byRoot))
	for r := range byRoot {
		roots = append(roots, r)
	}
	sort.Slice(roots, func(i, j int) bool {
		if roots[i].paneID != roots[j].paneID {
			return roots[i].paneID < roots[j].paneID
		}
		return roots[i].localID < roots[j].localID
	})

	groups := make([][]instKey, 0, len(roots))
	for _, r := range roots {
		g := byRoot[r]
		sort.Slice(g, func(i, j int) bool {
			if g[i].paneID != g[j].paneID {
				return g[i].paneID < g[j].paneID
			}
			return g[i].localID < g[j].localID
		})
		groups = append(groups, g)
	}
	return groups, nil
}

// ReduceOnSharedNodes reduces every shared-node group of the given
// panes' data items under op and broadcasts the result back to all
// instances, so all copies agree. items maps pane
// id to that pane's instance of the field being reduced.
func ReduceOnSharedNodes(op ReduceOp, items map[int]*dataitem.DataItem, conns map[int]*Connectivity) error {
	opName := "panecomm.reduce_on_shared_nodes"
	groups, err := sharedGroups(conns)
	if err != nil {
		return errs.Wrap(opName, err)
	}

	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		first, ok := items[group[0].paneID]
		if !ok {
			return errs.New(errs.NotFound, opName, "no data item for pane in shared group")
		}
		for c := 0; c < first.ComponentCount; c++ {
			refs := make([]NodeRef, 0, len(group))
			for _, k := range group {
				item, ok := items[k.paneID]
				if !ok {
					return errs.New(errs.NotFound, opName, "no data item for pane in shared group")
				}
				refs = append(refs, NodeRef{Item: item, Index: k.localID, Comp: c})
			}
			if err := ReduceSharedNodes(op, refs); err != nil {
				return errs.Wrap(opName, err)
			}
		}
	}
	return nil
}

// UpdateGhostNodes copies every owner's real value into the matching
// ghost slot on each receiving pane, for all pane pairs local to this
// rank. Applying it twice yields the same state as applying it once.
func UpdateGhostNodes(items map[int]*dataitem.DataItem, conns map[int]*Connectivity) error {
	return updateGhosts("panecomm.update_ghost_nodes", items, conns, false)
}

// UpdateGhostElements is the element analog of UpdateGhostNodes.
func UpdateGhostElements(items map[int]*dataitem.DataItem, conns map[int]*Connectivity) error {
	return updateGhosts("panecomm.update_ghost_elements", items, conns, true)
}

func updateGhosts(op string, items map[int]*dataitem.DataItem, conns map[int]*Connectivity, elems bool) error {
	paneIDs := make([]int, 0, len(conns))
	for id := range conns {
		paneIDs = append(paneIDs, id)
	}
	sort.Ints(paneIDs)

	for _, p := range paneIDs {
		recvBlock := conns[p].GhostNodesToReceive
		if elems {
			recvBlock = conns[p].GhostElementsToRecv
		}
		for _, run := range recvBlock {
			owner := run.PaneID
			ownerConn, ok := conns[owner]
			if !ok {
				continue // cross-rank pair; Exchange covers it
			}
			sendBlock := ownerConn.RealNodesToSend
			if elems {
				sendBlock = ownerConn.RealElementsToSend
			}
			send, ok := sendBlock.Find(p)
			if !ok || len(send.Items) != len(run.Items) {
				return errs.New(errs.InvalidArgument, op, "send/receive runs do not mirror each other")
			}

			dst, ok := items[p]
			if !ok {
				return errs.New(errs.NotFound, op, "no data item for receiving pane")
			}
			src, ok := items[owner]
			if !ok {
				return errs.New(errs.NotFound, op, "no data item for owning pane")
			}
			for k := range run.Items {
				for c := 0; c < src.ComponentCount; c++ {
					raw, err := src.Raw(send.Items[k], c)
					if err != nil {
						return errs.Wrap(op, err)
					}
					dstRaw, err := dst.Raw(run.Items[k], c)
					if err != nil {
						return errs.Wrap(op, err)
					}
					copy(dstRaw, raw)
				}
			}
		}
	}
	return nil
}
