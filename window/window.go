// Package window implements the top-level catalog: a named collection
// of panes, window-scoped data items and registered functions, owning
// one message-passing communicator.
package window

import (
	"fmt"
	"sort"

	"github.com/sarchlab/concom/dataitem"
	"github.com/sarchlab/concom/errs"
	"github.com/sarchlab/concom/pane"
	"github.com/sarchlab/concom/typetag"
)

// Communicator is the message-passing group a window is bound to. The
// concrete, akita-backed implementation lives in package registry
// (registry.Communicator).
type Communicator interface {
	Rank() int
	Size() int
	Name() string
}

// Status invalidates derived structures (dual connectivity, manifolds,
// border sets) built in package topology.
type Status int

const (
	NoChange Status = iota
	Changed
	Shrunk
)

// Metadata is the per-window template for a data item: its location,
// type, component count and unit. Creating a pane instantiates one
// DataItem per entry.
type Metadata struct {
	ID             int
	Name           string
	Location       dataitem.Location
	Type           typetag.Tag
	ComponentCount int
	Unit           string
}

// Intent characters, one per dispatcher argument.
// Uppercase marks an argument optional. In-out gets its own character
// ('x') so each argument still costs exactly one rune; see
// package dispatch for the parser.
const (
	IntentBoundSelf = 'b'
	IntentIn        = 'i'
	IntentOut       = 'o'
	IntentInOut     = 'x'
)

// Function is a registered callable entry point.
type Function struct {
	Name string
	// Entry is invoked with one element per argument, erased to any,
	// mirroring the dispatcher's void* argument vector.
	Entry func(args []any) error
	// Self, if non-nil, is the window-scoped data item holding the
	// bound "self" pointer for a member function.
	Self   *dataitem.DataItem
	Intent string
	Types  []typetag.Tag
}

// Window is the top-level catalog: panes, window-scoped data items and
// registered functions, plus the communicator they share.
type Window struct {
	Name         string
	Communicator Communicator

	Panes   map[int]*pane.Pane
	ProcMap map[int]int // pane id -> owner rank, covering all global panes

	metadata  map[string]*Metadata
	idByName  map[string]int
	nextID    int
	functions map[string]*Function

	Status Status
}

// New creates a window bound to comm, with the reserved dummy pane (id
// 0) already present to hold window-scoped data items.
func New(name string, comm Communicator) *Window {
	w := &Window{
		Name:         name,
		Communicator: comm,
		Panes:        make(map[int]*pane.Pane),
		ProcMap:      make(map[int]int),
		metadata:     make(map[string]*Metadata),
		idByName:     make(map[string]int),
		functions:    make(map[string]*Function),
		nextID:       1,
	}
	w.Panes[pane.DummyPaneID] = pane.New(pane.DummyPaneID)
	return w
}

// NewDataItem registers data item metadata on the window and propagates
// it to every existing pane (including the dummy pane, for
// window-scoped items). For vector items it also creates "N-name"
// per-component sub-items, following dataitem.New.
func (w *Window) NewDataItem(name string, loc dataitem.Location, tag typetag.Tag, componentCount int, unit string) (int, error) {
	op := fmt.Sprintf("%s.new_dataitem", w.Name)
	if _, exists := w.idByName[name]; exists {
		return 0, errs.New(errs.NameInUse, op, name)
	}

	id := w.nextID
	w.nextID++
	w.metadata[name] = &Metadata{
		ID: id, Name: name, Location: loc, Type: tag,
		ComponentCount: componentCount, Unit: unit,
	}
	w.idByName[name] = id

	for _, p := range w.Panes {
		if err := w.instantiateOn(p, w.metadata[name]); err != nil {
			return 0, errs.Wrap(op, err)
		}
	}

	w.Status = Changed
	return id, nil
}

func (w *Window) instantiateOn(p *pane.Pane, m *Metadata) error {
	if m.Location == dataitem.WindowScoped && p.ID != pane.DummyPaneID {
		return nil
	}
	d, _, err := dataitem.New(m.ID, m.Name, m.Location, m.Type, m.ComponentCount, m.Unit)
	if err != nil {
		return err
	}
	return p.AddDataItem(d)
}

// NewPane creates pane id, instantiating every registered data item
// template on it.
func (w *Window) NewPane(id int) (*pane.Pane, error) {
	op := fmt.Sprintf("%s.new_pane", w.Name)
	if id == pane.DummyPaneID {
		return nil, errs.New(errs.InvalidArgument, op, "pane id 0 is reserved")
	}
	if _, exists := w.Panes[id]; exists {
		return nil, errs.New(errs.NameInUse, op, "pane id already present")
	}

	p := pane.New(id)
	names := make([]string, 0, len(w.metadata))
	for n := range w.metadata {
		names = append(names, n)
	}
	sort.Strings(names) // deterministic instantiation order
	for _, n := range names {
		if err := w.instantiateOn(p, w.metadata[n]); err != nil {
			return nil, errs.Wrap(op, err)
		}
	}

	w.Panes[id] = p
	w.ProcMap[id] = w.Communicator.Rank()
	w.Status = Changed
	return p, nil
}

// DeletePane removes a pane and every data item it owns.
func (w *Window) DeletePane(id int) error {
	op := fmt.Sprintf("%s.delete_pane", w.Name)
	if id == pane.DummyPaneID {
		return errs.New(errs.InvalidArgument, op, "cannot delete the dummy pane")
	}
	if _, ok := w.Panes[id]; !ok {
		return errs.New(errs.PaneNotExist, op, "")
	}
	delete(w.Panes, id)
	delete(w.ProcMap, id)
	w.Status = Shrunk
	return nil
}

// GetPane looks up a pane by id. Pane 0 (the dummy pane) is returned
// only when allowDummy is true, matching operations that forbid it
// with PaneNotExist.
func (w *Window) GetPane(id int, allowDummy bool) (*pane.Pane, error) {
	op := fmt.Sprintf("%s.get_pane", w.Name)
	if id == pane.DummyPaneID && !allowDummy {
		return nil, errs.New(errs.PaneNotExist, op, "pane 0 used where only non-dummy allowed")
	}
	p, ok := w.Panes[id]
	if !ok {
		return nil, errs.New(errs.PaneNotExist, op, "")
	}
	return p, nil
}

// RealPaneIDs returns the sorted ids of every non-dummy pane.
func (w *Window) RealPaneIDs() []int {
	ids := make([]int, 0, len(w.Panes))
	for id := range w.Panes {
		if id != pane.DummyPaneID {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// GetDataItemHandle looks up the stable id for a window-scoped metadata
// name.
func (w *Window) GetDataItemHandle(name string) (int, error) {
	id, ok := w.idByName[name]
	if !ok {
		return 0, errs.New(errs.NotFound, fmt.Sprintf("%s.get_dataitem_handle", w.Name), name)
	}
	return id, nil
}

// RegisterFunction registers a callable entry point under name.
func (w *Window) RegisterFunction(f *Function) error {
	op := fmt.Sprintf("%s.register_function", w.Name)
	if _, exists := w.functions[f.Name]; exists {
		return errs.New(errs.NameInUse, op, f.Name)
	}
	w.functions[f.Name] = f
	return nil
}

// GetFunction looks up a registered function by name.
func (w *Window) GetFunction(name string) (*Function, error) {
	f, ok := w.functions[name]
	if !ok {
		return nil, errs.New(errs.NotFound, fmt.Sprintf("%s.get_function_handle", w.Name), name)
	}
	return f, nil
}

// Functions returns every registered function, for module unload and
// diagnostics.
func (w *Window) Functions() map[string]*Function {
	return w.functions
}

// GetStatus reports the initialization state code for a dotted
// "window.dataitem" reference: -1 for a missing window is handled by
// the registry; here, 0 uninitialized, 1 external, 2 const, 3
// inherited-use, 4 runtime-allocated.
func (w *Window) GetStatus(paneID, dataitemID int) (int, error) {
	p, err := w.GetPane(paneID, true)
	if err != nil {
		return -1, err
	}
	d, err := p.GetDataItem(dataitemID)
	if err != nil {
		return -1, err
	}
	return d.Status(), nil
}
