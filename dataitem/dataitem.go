// Package dataitem implements the typed, strided, zero-copy field view
// a window binds to each of its panes. A DataItem never owns its scalar
// encoding logic beyond a typetag.Tag and a byte buffer; reads and
// writes go through Raw and the typed accessors built on
// encoding/binary.
package dataitem

import (
	"encoding/binary"
	"fmt"

	"github.com/sarchlab/concom/errs"
	"github.com/sarchlab/concom/typetag"
)

// Location is where a data item lives.
type Location int

const (
	WindowScoped Location = iota
	PaneScoped
	PerNode
	PerElement
)

// Ownership discriminates who owns the backing buffer, following the
// arena-and-index idiom from the design notes: a data item never embeds
// a copy constructor, only a discriminator and (for views) a parent.
type Ownership int

const (
	ExternallySetMutable Ownership = iota
	ExternallySetConst
	OwnedByRuntime
	InheritedUse
	InheritedClone
	InheritedCopy
)

// InheritMode selects how Inherit populates the target item.
type InheritMode int

const (
	Use InheritMode = iota
	Clone
	Copy
)

// Treat is the legacy ABI pointer convention knob. Value 2 is
// preserved but its semantics were never pinned down by any caller
// still in use.
type Treat int

const (
	TreatDefault Treat = iota
	TreatAlt
	// TreatUnverified mirrors legacy treat=2, kept only so callers that
	// depend on it do not regress.
	TreatUnverified
)

// Bounds holds an optional typed value range for CheckBounds.
type Bounds struct {
	Min, Max float64
}

// DataItem is a typed view into a contiguous buffer, bound to one pane
// (or to the window itself, for window-scoped items).
type DataItem struct {
	ID             int
	Name           string
	Location       Location
	Type           typetag.Tag
	ComponentCount int
	Unit           string
	Stride         int // 0 means "same as ComponentCount"
	ItemCount      int
	GhostCount     int
	Capacity       int
	Ownership      Ownership
	Parent         *DataItem
	Treat          Treat

	buf        []byte
	bounds     *Bounds
	components []*DataItem // populated only on the aggregate of a vector item
	compIndex  int          // index of this item within its aggregate's components, -1 if not a component view
}

// New creates an unmaterialized data item. Its buffer is nil until one
// of SetArray, AllocateArray, ResizeArray or Inherit is called.
//
// For vector items (componentCount > 1) it also returns the "N-name"
// per-component sub-items, one per component, each sharing the
// aggregate's buffer with offset and strided views (invariant 4).
func New(id int, name string, loc Location, tag typetag.Tag, componentCount int, unit string) (*DataItem, []*DataItem, error) {
	op := fmt.Sprintf("%s.new_dataitem", name)
	if componentCount < 1 {
		return nil, nil, errs.New(errs.InvalidArgument, op, "component_count must be >= 1")
	}

	d := &DataItem{
		ID:             id,
		Name:           name,
		Location:       loc,
		Type:           tag,
		ComponentCount: componentCount,
		Unit:           unit,
		Ownership:      ExternallySetMutable,
		compIndex:      -1,
	}

	if componentCount == 1 {
		return d, nil, nil
	}

	subs := make([]*DataItem, componentCount)
	for i := 0; i < componentCount; i++ {
		subs[i] = &DataItem{
			ID:             id,
			Name:           fmt.Sprintf("%d-%s", i, name),
			Location:       loc,
			Type:           tag,
			ComponentCount: 1,
			Unit:           unit,
			Ownership:      InheritedUse,
			Parent:         d,
			compIndex:      i,
		}
	}
	d.components = subs

	return d, subs, nil
}

// Components returns the per-component sub-items of a vector data item,
// or nil for a scalar item.
func (d *DataItem) Components() []*DataItem {
	return d.components
}

// EffectiveStride returns Stride if set, otherwise ComponentCount
// (invariant 2).
func (d *DataItem) EffectiveStride() int {
	if d.Stride == 0 {
		return d.ComponentCount
	}
	return d.Stride
}

// RealItemCount returns ItemCount - GhostCount.
func (d *DataItem) RealItemCount() int {
	return d.ItemCount - d.GhostCount
}

// IsConst reports whether the item may never be mutated.
func (d *DataItem) IsConst() bool {
	return d.Ownership == ExternallySetConst
}

// IsComponentView reports whether d is a per-component view of a vector
// aggregate.
func (d *DataItem) IsComponentView() bool {
	return d.compIndex >= 0
}

func (d *DataItem) checkSizes(op string, items, ghosts int) error {
	if items < 0 || ghosts < 0 {
		return errs.New(errs.InvalidSize, op, "negative size")
	}
	if ghosts > items {
		return errs.New(errs.InvalidSize, op, "ghost_count > item_count")
	}
	return nil
}

// SetSize declares the logical item count and ghost count. For nodal or
// connectivity-governing items the caller (the pane layer) is
// responsible for propagating the resulting node/element count to
// sibling items; this function only enforces the item's own invariants.
func (d *DataItem) SetSize(items, ghosts int) error {
	op := fmt.Sprintf("%s.set_size", d.Name)
	if err := d.checkSizes(op, items, ghosts); err != nil {
		return err
	}
	if d.buf != nil && items > d.Capacity {
		return errs.New(errs.InvalidCapacity, op, "item_count exceeds existing capacity")
	}
	d.ItemCount = items
	d.GhostCount = ghosts
	for _, c := range d.components {
		c.ItemCount = items
		c.GhostCount = ghosts
	}
	return nil
}

func (d *DataItem) byteLen(capacity int) int {
	return capacity * d.EffectiveStride() * d.Type.ByteSize()
}

// SetArray binds an externally owned buffer. The runtime never frees
// this memory (Deallocate is a no-op on it). stride and capacity, if
// zero, default to ComponentCount and ItemCount respectively.
func (d *DataItem) SetArray(buf []byte, stride, capacity int, isConst bool) error {
	op := fmt.Sprintf("%s.set_array", d.Name)
	if d.IsConst() && !isConst {
		return errs.New(errs.ConstViolation, op, "cannot rebind a const item as mutable")
	}
	if stride != 0 {
		d.Stride = stride
	}
	if capacity == 0 {
		capacity = d.ItemCount
	}
	if d.ItemCount > capacity {
		return errs.New(errs.InvalidCapacity, op, "item_count exceeds capacity")
	}
	need := d.byteLen(capacity)
	if len(buf) < need {
		return errs.New(errs.InvalidArgument, op, "external buffer too small")
	}
	d.buf = buf
	d.Capacity = capacity
	if isConst {
		d.Ownership = ExternallySetConst
	} else {
		d.Ownership = ExternallySetMutable
	}
	return nil
}

// AllocateArray materializes a runtime-owned buffer sized to Capacity
// (defaulting to ItemCount if Capacity is unset).
func (d *DataItem) AllocateArray() error {
	op := fmt.Sprintf("%s.allocate_array", d.Name)
	if d.IsConst() {
		return errs.New(errs.ConstViolation, op, "allocation onto a const item is rejected")
	}
	if d.Parent != nil && d.Ownership == InheritedUse {
		return errs.New(errs.InvalidArgument, op, "cannot allocate onto a use-inherited view")
	}
	if d.Capacity < d.ItemCount {
		d.Capacity = d.ItemCount
	}
	if d.buf != nil && len(d.buf) == d.byteLen(d.Capacity) {
		// Re-allocating with unchanged sizes never leaks: the existing
		// buffer address is reused.
		d.Ownership = OwnedByRuntime
		return nil
	}
	d.buf = make([]byte, d.byteLen(d.Capacity))
	d.Ownership = OwnedByRuntime
	return nil
}

// ResizeArray changes ItemCount (and optionally GhostCount), reusing
// the existing allocation when Capacity already suffices and growing
// otherwise.
func (d *DataItem) ResizeArray(items, ghosts int) error {
	op := fmt.Sprintf("%s.resize_array", d.Name)
	if err := d.checkSizes(op, items, ghosts); err != nil {
		return err
	}
	if d.IsConst() {
		return errs.New(errs.ConstViolation, op, "cannot resize a const item")
	}
	if d.Ownership != OwnedByRuntime && d.buf != nil {
		return errs.New(errs.InvalidArgument, op, "resize_array requires a runtime-owned buffer")
	}

	if items > d.Capacity {
		newBuf := make([]byte, d.byteLen(items))
		copy(newBuf, d.buf)
		d.buf = newBuf
		d.Capacity = items
	}
	d.ItemCount = items
	d.GhostCount = ghosts
	d.Ownership = OwnedByRuntime
	return nil
}

// AppendArray grows the item by n additional real items, reallocating
// geometrically (+20%) once Capacity is exceeded.
func (d *DataItem) AppendArray(n int) error {
	op := fmt.Sprintf("%s.append_array", d.Name)
	if d.IsConst() {
		return errs.New(errs.ConstViolation, op, "cannot append to a const item")
	}
	if n < 0 {
		return errs.New(errs.InvalidArgument, op, "append count must be >= 0")
	}
	newCount := d.ItemCount + n
	if newCount > d.Capacity {
		newCap := d.Capacity + d.Capacity/5 // +20%
		if newCap < newCount {
			newCap = newCount
		}
		newBuf := make([]byte, d.byteLen(newCap))
		copy(newBuf, d.buf)
		d.buf = newBuf
		d.Capacity = newCap
	}
	d.ItemCount = newCount
	d.Ownership = OwnedByRuntime
	return nil
}

// DeallocateArray releases a runtime-owned buffer. It is a no-op on
// external or parent-inherited (use) buffers.
func (d *DataItem) DeallocateArray() {
	if d.Ownership != OwnedByRuntime {
		return
	}
	d.buf = nil
	d.ItemCount = 0
	d.GhostCount = 0
	d.Capacity = 0
}

// SetBounds installs an optional typed value range.
func (d *DataItem) SetBounds(b Bounds) {
	d.bounds = &b
}

// GetBounds returns the installed bounds, if any.
func (d *DataItem) GetBounds() (Bounds, bool) {
	if d.bounds == nil {
		return Bounds{}, false
	}
	return *d.bounds, true
}

// CheckBounds returns the number of real items (ghosts excluded) whose
// first component falls outside the installed bounds, without
// modifying the data. It requires the item to be of a floating point
// type; other types always report zero violations.
func (d *DataItem) CheckBounds() (int, error) {
	op := fmt.Sprintf("%s.check_bounds", d.Name)
	if d.bounds == nil {
		return 0, nil
	}
	if d.Type != typetag.F32 && d.Type != typetag.F64 {
		return 0, nil
	}
	violations := 0
	for i := 0; i < d.RealItemCount(); i++ {
		v, err := d.Float64(i, 0)
		if err != nil {
			return 0, errs.Wrap(op, err)
		}
		if v < d.bounds.Min || v > d.bounds.Max {
			violations++
		}
	}
	return violations, nil
}

// offset returns the byte offset of (item, comp) within the buffer that
// actually backs this item (following component-view indirection).
func (d *DataItem) offset(item, comp int) (backing *DataItem, byteOff int, err error) {
	if d.IsComponentView() {
		return d.Parent.offset(item, d.compIndex)
	}
	if comp < 0 || comp >= d.ComponentCount {
		return nil, 0, errs.New(errs.InvalidArgument, d.Name, "component index out of range")
	}
	if item < 0 || item >= d.ItemCount {
		return nil, 0, errs.New(errs.InvalidArgument, d.Name, "item index out of range")
	}
	if d.buf == nil {
		return nil, 0, errs.New(errs.NotInitialized, d.Name, "buffer not materialized")
	}
	off := (item*d.EffectiveStride() + comp) * d.Type.ByteSize()
	return d, off, nil
}

// Raw returns a zero-copy byte-slice view of one scalar at (item, comp).
// Mutating the returned slice mutates the underlying buffer, including
// through any aggregate/component alias (invariant 3).
func (d *DataItem) Raw(item, comp int) ([]byte, error) {
	backing, off, err := d.offset(item, comp)
	if err != nil {
		return nil, err
	}
	size := d.Type.ByteSize()
	return backing.buf[off : off+size], nil
}

// Float64 reads one scalar as a float64. Requires Type to be f32 or f64.
func (d *DataItem) Float64(item, comp int) (float64, error) {
	raw, err := d.Raw(item, comp)
	if err != nil {
		return 0, err
	}
	switch d.Type {
	case typetag.F64:
		return asFloat64(raw), nil
	case typetag.F32:
		return float64(asFloat32(raw)), nil
	default:
		return 0, errs.New(errs.InvalidArgument, d.Name, "not a floating point item")
	}
}

// SetFloat64 writes one scalar from a float64. Requires Type to be f32
// or f64 and the item to not be const.
func (d *DataItem) SetFloat64(item, comp int, v float64) error {
	if d.IsConst() {
		return errs.New(errs.ConstViolation, d.Name, "write to const item")
	}
	raw, err := d.Raw(item, comp)
	if err != nil {
		return err
	}
	switch d.Type {
	case typetag.F64:
		binary.LittleEndian.PutUint64(raw, mathFloat64bits(v))
	case typetag.F32:
		binary.LittleEndian.PutUint32(raw, mathFloat32bits(float32(v)))
	default:
		return errs.New(errs.InvalidArgument, d.Name, "not a floating point item")
	}
	return nil
}

// Int64 reads one scalar as an int64, sign- or zero-extending from its
// native width.
func (d *DataItem) Int64(item, comp int) (int64, error) {
	raw, err := d.Raw(item, comp)
	if err != nil {
		return 0, err
	}
	switch d.Type {
	case typetag.I8:
		return int64(int8(raw[0])), nil
	case typetag.U8:
		return int64(raw[0]), nil
	case typetag.I16:
		return int64(int16(binary.LittleEndian.Uint16(raw))), nil
	case typetag.U16:
		return int64(binary.LittleEndian.Uint16(raw)), nil
	case typetag.I32:
		return int64(int32(binary.LittleEndian.Uint32(raw))), nil
	case typetag.U32:
		return int64(binary.LittleEndian.Uint32(raw)), nil
	case typetag.I64, typetag.U64:
		return int64(binary.LittleEndian.Uint64(raw)), nil
	default:
		return 0, errs.New(errs.InvalidArgument, d.Name, "not an integer item")
	}
}

// SetInt64 writes one scalar from an int64, truncating to the item's
// native width.
func (d *DataItem) SetInt64(item, comp int, v int64) error {
	if d.IsConst() {
		return errs.New(errs.ConstViolation, d.Name, "write to const item")
	}
	raw, err := d.Raw(item, comp)
	if err != nil {
		return err
	}
	switch d.Type {
	case typetag.I8, typetag.U8:
		raw[0] = byte(v)
	case typetag.I16, typetag.U16:
		binary.LittleEndian.PutUint16(raw, uint16(v))
	case typetag.I32, typetag.U32:
		binary.LittleEndian.PutUint32(raw, uint32(v))
	case typetag.I64, typetag.U64:
		binary.LittleEndian.PutUint64(raw, uint64(v))
	default:
		return errs.New(errs.InvalidArgument, d.Name, "not an integer item")
	}
	return nil
}

// CopyArray copies real items (and ghosts, if withGhost) element-wise
// from src into d. Types must be compatible (invariant 5).
func CopyArray(dst, src *DataItem, withGhost bool) error {
	op := fmt.Sprintf("%s.copy_array", dst.Name)
	if !typetag.Compatible(dst.Type, src.Type) {
		return errs.New(errs.IncompatibleTypes, op, "src/dst types do not share representation")
	}
	if dst.IsConst() {
		return errs.New(errs.ConstViolation, op, "copy into const item")
	}
	n := src.RealItemCount()
	if withGhost {
		n = src.ItemCount
	}
	if n > dst.ItemCount {
		return errs.New(errs.InvalidSize, op, "destination too small for copy")
	}
	comps := src.ComponentCount
	if comps > dst.ComponentCount {
		comps = dst.ComponentCount
	}
	for i := 0; i < n; i++ {
		for c := 0; c < comps; c++ {
			raw, err := src.Raw(i, c)
			if err != nil {
				return errs.Wrap(op, err)
			}
			dstRaw, err := dst.Raw(i, c)
			if err != nil {
				return errs.Wrap(op, err)
			}
			copy(dstRaw, raw)
		}
	}
	return nil
}

// Inherit populates trg from src according to mode.
//
//   - Use: trg becomes a zero-copy alias of src's buffer; trg shares
//     src's sizes and cannot be independently allocated into.
//   - Clone: trg gets matching sizes and metadata with a freshly
//     allocated, empty buffer.
//   - Copy: like Clone, followed by an element-wise copy of current
//     values (real items only, unless withGhost).
func Inherit(trg, src *DataItem, mode InheritMode, withGhost bool) error {
	op := fmt.Sprintf("%s.inherit", trg.Name)
	if !typetag.Compatible(trg.Type, src.Type) {
		return errs.New(errs.IncompatibleTypes, op, "src/trg types do not share representation")
	}

	trg.Parent = src
	trg.ComponentCount = src.ComponentCount
	trg.Stride = src.Stride

	switch mode {
	case Use:
		trg.ItemCount = src.ItemCount
		trg.GhostCount = src.GhostCount
		trg.Capacity = src.Capacity
		trg.buf = src.buf
		trg.Ownership = InheritedUse
		return nil
	case Clone:
		n := src.ItemCount
		g := src.GhostCount
		if !withGhost {
			n = src.RealItemCount()
			g = 0
		}
		trg.ItemCount = n
		trg.GhostCount = g
		trg.Capacity = n
		trg.Ownership = InheritedClone
		trg.buf = make([]byte, trg.byteLen(n))
		return nil
	case Copy:
		n := src.ItemCount
		g := src.GhostCount
		if !withGhost {
			n = src.RealItemCount()
			g = 0
		}
		trg.ItemCount = n
		trg.GhostCount = g
		trg.Capacity = n
		trg.Ownership = InheritedCopy
		trg.buf = make([]byte, trg.byteLen(n))
		return CopyArray(trg, src, withGhost)
	default:
		return errs.New(errs.InvalidArgument, op, "unknown inherit mode")
	}
}

// Status returns the get_status code for a single data item (the -1/"missing window" case is handled by the
// window package).
func (d *DataItem) Status() int {
	if d.buf == nil {
		return 0
	}
	switch d.Ownership {
	case ExternallySetMutable:
		return 1
	case ExternallySetConst:
		return 2
	case InheritedUse:
		return 3
	case OwnedByRuntime, InheritedClone, InheritedCopy:
		return 4
	default:
		return 0
	}
}
