// Package pane implements one partition of a mesh: nodal coordinates,
// connectivity tables, and the data items defined on it.
package pane

import (
	"fmt"

	"github.com/sarchlab/concom/dataitem"
	"github.com/sarchlab/concom/errs"
	"github.com/sarchlab/concom/typetag"
)

// ElementType names the fixed shape of an unstructured element block.
type ElementType int

const (
	Tri ElementType = iota
	Quad
	Tet
	Hex
)

// Reserved data item ids, shared process-wide.
const (
	IDCoords           = -1
	IDConn             = -2
	IDPaneConnectivity = -3
	IDMeshGroup        = -4
	IDPartitionedGroup = -5
	IDDataGroup        = -6
	IDAllGroup         = -7
	// DummyPaneID is the reserved pane id (0) holding window-scoped data
	// items.
	DummyPaneID = 0
)

// StructuredBlock names a structured i/j/k block with a ghost-layer
// count.
type StructuredBlock struct {
	Shape      [3]int
	GhostLayers int
}

// UnstructuredBlock names an unstructured element block of a fixed
// element type, with element count, ghost-element count, and an offset
// so that global element ids are dense across the pane.
type UnstructuredBlock struct {
	Type        ElementType
	ElementCount int
	GhostCount   int
	Offset       int
}

// Connectivity is one connectivity table: exactly one of Structured or
// Unstructured is set.
type Connectivity struct {
	Structured   *StructuredBlock
	Unstructured *UnstructuredBlock
}

// IsStructured reports whether this table describes a structured block.
func (c Connectivity) IsStructured() bool {
	return c.Structured != nil
}

// Pane is one connected partition of a mesh.
type Pane struct {
	ID int

	NodalCoordinates *dataitem.DataItem
	coordComponents  []*dataitem.DataItem

	Connectivities []Connectivity

	DataItems map[int]*dataitem.DataItem

	PaneConnectivity *dataitem.DataItem

	structured bool // true once the pane's kind is fixed
	kindSet    bool
}

// New creates an empty pane. id must be > 0 for a real pane; id 0 is
// reserved for the dummy pane holding window-scoped data items.
func New(id int) *Pane {
	p := &Pane{
		ID:        id,
		DataItems: make(map[int]*dataitem.DataItem),
	}

	coords, comps, _ := dataitem.New(IDCoords, "nodal_coordinates", dataitem.PerNode, typetag.F64, 3, "")
	p.NodalCoordinates = coords
	p.coordComponents = comps
	p.DataItems[IDCoords] = coords

	pc, _, _ := dataitem.New(IDPaneConnectivity, "pane_connectivity", dataitem.PaneScoped, typetag.I32, 1, "")
	p.PaneConnectivity = pc
	p.DataItems[IDPaneConnectivity] = pc

	return p
}

// CoordComponents returns the per-axis (x, y, z) views of
// NodalCoordinates.
func (p *Pane) CoordComponents() []*dataitem.DataItem {
	return p.coordComponents
}

// AddConnectivity appends one connectivity table. A pane must be
// exactly one kind (structured XOR unstructured); mixing kinds is
// rejected.
func (p *Pane) AddConnectivity(c Connectivity) error {
	op := fmt.Sprintf("pane[%d].add_connectivity", p.ID)
	if c.Structured == nil && c.Unstructured == nil {
		return errs.New(errs.InvalidArgument, op, "connectivity table must set Structured or Unstructured")
	}
	if c.Structured != nil && c.Unstructured != nil {
		return errs.New(errs.InvalidArgument, op, "connectivity table cannot set both Structured and Unstructured")
	}

	if p.kindSet && p.structured != c.IsStructured() {
		return errs.New(errs.InvalidArgument, op, "pane mixes structured and unstructured connectivity")
	}
	p.structured = c.IsStructured()
	p.kindSet = true

	if c.Unstructured != nil {
		wantOffset := p.totalElements()
		if c.Unstructured.Offset != wantOffset {
			return errs.New(errs.InvalidArgument, op, "element ids must be dense and gap-free across blocks")
		}
	}

	p.Connectivities = append(p.Connectivities, c)
	return nil
}

// IsStructured reports whether this pane's mesh kind is structured.
func (p *Pane) IsStructured() bool {
	return p.structured
}

func (p *Pane) totalElements() int {
	n := 0
	for _, c := range p.Connectivities {
		if c.Unstructured != nil {
			n += c.Unstructured.ElementCount
		}
	}
	return n
}

// NodeCount returns the number of nodes implied by NodalCoordinates.
func (p *Pane) NodeCount() int {
	return p.NodalCoordinates.ItemCount
}

// SetNodeCount is the one and only way to set the pane's node count:
// setting size on the coordinates item, which every other nodal item
// then follows.
func (p *Pane) SetNodeCount(nodes, ghostNodes int) error {
	op := fmt.Sprintf("pane[%d].set_node_count", p.ID)
	if err := p.NodalCoordinates.SetSize(nodes, ghostNodes); err != nil {
		return errs.Wrap(op, err)
	}
	for _, d := range p.DataItems {
		if d.Location == dataitem.PerNode && d != p.NodalCoordinates {
			if err := d.SetSize(nodes, ghostNodes); err != nil {
				return errs.Wrap(op, err)
			}
		}
	}
	return nil
}

// AddDataItem registers a pane-local data item created from a window's
// template (see window.NewDataItem).
func (p *Pane) AddDataItem(d *dataitem.DataItem) error {
	op := fmt.Sprintf("pane[%d].add_dataitem", p.ID)
	if _, exists := p.DataItems[d.ID]; exists {
		return errs.New(errs.NameInUse, op, "data item id already present on pane")
	}
	p.DataItems[d.ID] = d
	return nil
}

// GetDataItem looks up a data item by id.
func (p *Pane) GetDataItem(id int) (*dataitem.DataItem, error) {
	d, ok := p.DataItems[id]
	if !ok {
		return nil, errs.New(errs.DataItemNotExist, fmt.Sprintf("pane[%d].get_dataitem", p.ID), "")
	}
	return d, nil
}

// DeleteDataItem removes a data item from the pane.
func (p *Pane) DeleteDataItem(id int) error {
	if _, ok := p.DataItems[id]; !ok {
		return errs.New(errs.DataItemNotExist, fmt.Sprintf("pane[%d].delete_dataitem", p.ID), "")
	}
	delete(p.DataItems, id)
	return nil
}
