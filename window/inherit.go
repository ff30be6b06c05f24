package window

import (
	"fmt"
	"sort"

	"github.com/sarchlab/concom/dataitem"
	"github.com/sarchlab/concom/errs"
	"github.com/sarchlab/concom/pane"
)

// Reserved composite targets of bulk inherit and allocation calls:
// COORDS is the nodal coordinates, CONN the
// connectivity tables, MESH = COORDS + CONN, PMESH = MESH + pane
// connectivity, DATA every user data item, ALL = PMESH + DATA.
const (
	TargetCoords = "COORDS"
	TargetConn   = "CONN"
	TargetMesh   = "MESH"
	TargetPMesh  = "PMESH"
	TargetData   = "DATA"
	TargetAll    = "ALL"
)

func isComposite(name string) bool {
	switch name {
	case TargetCoords, TargetConn, TargetMesh, TargetPMesh, TargetData, TargetAll:
		return true
	}
	return false
}

func wantsConn(name string) bool {
	return name == TargetConn || name == TargetMesh || name == TargetPMesh || name == TargetAll
}

func wantsCoords(name string) bool {
	return name == TargetCoords || name == TargetMesh || name == TargetPMesh || name == TargetAll
}

func wantsPaneConn(name string) bool {
	return name == TargetPMesh || name == TargetAll
}

func wantsData(name string) bool {
	return name == TargetData || name == TargetAll
}

// Inherit populates trg from src, pane by pane. name is either a data
// item name registered on src or one of the reserved composite
// targets; mode follows dataitem.Inherit. When
// predicate is non-empty only src panes whose pane-scoped predicate
// item holds value are selected, and under Use the selected subset
// becomes trg's pane set.
func Inherit(trg, src *Window, name string, mode dataitem.InheritMode, withGhost bool, predicate string, value int64) error {
	op := fmt.Sprintf("%s.inherit", trg.Name)

	paneIDs, err := selectPanes(src, predicate, value)
	if err != nil {
		return errs.Wrap(op, err)
	}

	for _, id := range paneIDs {
		sp, err := src.GetPane(id, false)
		if err != nil {
			return errs.Wrap(op, err)
		}
		tp, ok := trg.Panes[id]
		if !ok {
			tp, err = trg.NewPane(id)
			if err != nil {
				return errs.Wrap(op, err)
			}
		}
		if err := inheritOnPane(trg, tp, src, sp, name, mode, withGhost); err != nil {
			return errs.Wrap(op, err)
		}
	}

	trg.Status = Changed
	return nil
}

func selectPanes(src *Window, predicate string, value int64) ([]int, error) {
	ids := src.RealPaneIDs()
	if predicate == "" {
		return ids, nil
	}

	predID, err := src.GetDataItemHandle(predicate)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, id := range ids {
		p := src.Panes[id]
		d, err := p.GetDataItem(predID)
		if err != nil {
			return nil, err
		}
		v, err := d.Int64(0, 0)
		if err != nil {
			return nil, err
		}
		if v == value {
			out = append(out, id)
		}
	}
	return out, nil
}

func inheritOnPane(trg *Window, tp *pane.Pane, src *Window, sp *pane.Pane, name string, mode dataitem.InheritMode, withGhost bool) error {
	if !isComposite(name) {
		return inheritNamed(trg, tp, src, sp, name, mode, withGhost)
	}

	if wantsConn(name) {
		if err := inheritConnectivity(tp, sp); err != nil {
			return err
		}
	}
	if wantsCoords(name) {
		if err := dataitem.Inherit(tp.NodalCoordinates, sp.NodalCoordinates, mode, withGhost); err != nil {
			return err
		}
		// Nodal items on tp follow the coordinates' node count.
		n, g := tp.NodalCoordinates.ItemCount, tp.NodalCoordinates.GhostCount
		for _, d := range tp.DataItems {
			if d.Location == dataitem.PerNode && d != tp.NodalCoordinates {
				if err := d.SetSize(n, g); err != nil {
					return err
				}
			}
		}
	}
	if wantsPaneConn(name) {
		if sp.PaneConnectivity.Status() != 0 {
			if err := dataitem.Inherit(tp.PaneConnectivity, sp.PaneConnectivity, mode, withGhost); err != nil {
				return err
			}
		}
	}
	if wantsData(name) {
		names := make([]string, 0, len(src.metadata))
		for n := range src.metadata {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			m := src.metadata[n]
			if m.Location == dataitem.WindowScoped && tp.ID != pane.DummyPaneID {
				continue
			}
			if err := inheritNamed(trg, tp, src, sp, n, mode, withGhost); err != nil {
				return err
			}
		}
	}
	return nil
}

// inheritConnectivity mirrors src's tables onto the target pane; a
// target pane that already carries tables is assumed to have been
// populated by an earlier inherit of the same mesh.
func inheritConnectivity(tp *pane.Pane, sp *pane.Pane) error {
	if len(tp.Connectivities) > 0 {
		return nil
	}
	for _, c := range sp.Connectivities {
		if err := tp.AddConnectivity(c); err != nil {
			return err
		}
	}
	return nil
}

func inheritNamed(trg *Window, tp *pane.Pane, src *Window, sp *pane.Pane, name string, mode dataitem.InheritMode, withGhost bool) error {
	m, ok := src.metadata[name]
	if !ok {
		return errs.New(errs.NotFound, fmt.Sprintf("%s.inherit", trg.Name), name)
	}
	srcItem, err := sp.GetDataItem(m.ID)
	if err != nil {
		return err
	}

	if _, registered := trg.idByName[name]; !registered {
		if _, err := trg.NewDataItem(name, m.Location, m.Type, m.ComponentCount, m.Unit); err != nil {
			return err
		}
	}
	trgID := trg.idByName[name]
	trgItem, err := tp.GetDataItem(trgID)
	if err != nil {
		return err
	}
	return dataitem.Inherit(trgItem, srcItem, mode, withGhost)
}

// InitDone marks the end of a window's initialization phase: every
// materialized data item must satisfy item_count <= capacity, after
// which the window's status resets so derived structures can be
// rebuilt against a stable shape.
func (w *Window) InitDone() error {
	op := fmt.Sprintf("%s.window_init_done", w.Name)
	for _, p := range w.Panes {
		for _, d := range p.DataItems {
			if d.Status() == 0 {
				continue
			}
			if d.ItemCount > d.Capacity {
				return errs.New(errs.InvalidCapacity, op,
					fmt.Sprintf("%s on pane %d: item_count %d exceeds capacity %d", d.Name, p.ID, d.ItemCount, d.Capacity))
			}
		}
	}
	w.Status = NoChange
	return nil
}
