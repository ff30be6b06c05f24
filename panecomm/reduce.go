package panecomm

import (
	"math"

	"github.com/sarchlab/concom/dataitem"
	"github.com/sarchlab/concom/errs"
)

// ReduceOp selects how contributions to a shared node are combined.
type ReduceOp int

const (
	Sum ReduceOp = iota
	MaxAbs
	MinAbs
	Average
)

func combine(op ReduceOp, values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errs.New(errs.InvalidArgument, "panecomm.combine", "no values to reduce")
	}
	switch op {
	case Sum:
		var s float64
		for _, v := range values {
			s += v
		}
		return s, nil
	case Average:
		var s float64
		for _, v := range values {
			s += v
		}
		return s / float64(len(values)), nil
	case MaxAbs:
		best := values[0]
		for _, v := range values[1:] {
			if math.Abs(v) > math.Abs(best) {
				best = v
			}
		}
		return best, nil
	case MinAbs:
		best := values[0]
		for _, v := range values[1:] {
			if math.Abs(v) < math.Abs(best) {
				best = v
			}
		}
		return best, nil
	default:
		return 0, errs.New(errs.InvalidArgument, "panecomm.combine", "unknown reduce op")
	}
}

// NodeRef names one (item, real-node-index, component) reference that
// participates in a shared-node reduction group.
type NodeRef struct {
	Item  *dataitem.DataItem
	Index int
	Comp  int
}

// ReduceSharedNodes combines the values of every ref in group under op
// and writes the result back to each ref, implementing the
// same-process half of the shared-node reduction (every
// pane that aliases a physical node converges on one value). Cross-rank
// groups are additionally folded in via Exchange.ContributeShared
// before this is called.
func ReduceSharedNodes(op ReduceOp, group []NodeRef) error {
	if len(group) == 0 {
		return nil
	}
	values := make([]float64, len(group))
	for i, ref := range group {
		v, err := ref.Item.Float64(ref.Index, ref.Comp)
		if err != nil {
			return errs.Wrap("panecomm.reduce_shared_nodes", err)
		}
		values[i] = v
	}
	result, err := combine(op, values)
	if err != nil {
		return err
	}
	for _, ref := range group {
		if err := ref.Item.SetFloat64(ref.Index, ref.Comp, result); err != nil {
			return errs.Wrap("panecomm.reduce_shared_nodes", err)
		}
	}
	return nil
}
