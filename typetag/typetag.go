// Package typetag defines the closed enumeration of primitive scalar
// kinds a data item may hold, along with their byte sizes and
// cross-ABI compatibility classes. The name table doubles as the
// vocabulary for diagnostics and wire-format dumps.
package typetag

import "fmt"

// Tag identifies one primitive scalar kind.
type Tag int

const (
	I8 Tag = iota
	U8
	I16
	U16
	I32
	U32
	I64
	U64
	F32
	F64
	Bool
	Char
	OpaquePointer
	StringView
	RawPointer
	ObjectHandle
)

var names = [...]string{
	"i8", "u8", "i16", "u16", "i32", "u32", "i64", "u64",
	"f32", "f64", "bool", "char",
	"opaque-pointer", "string-view", "raw-pointer", "object-handle",
}

var byteSizes = [...]int{
	1, 1, 2, 2, 4, 4, 8, 8,
	4, 8, 1, 1,
	8, 16, 8, 4,
}

// abiClass groups tags that share the same in-memory representation
// across the two supported language ABIs (e.g. native int and C int).
// Pointer-shaped tags share a class distinct from integer-shaped tags of
// the same width, since a pointer is never interchangeable with an
// integer of equal size even though their byte sizes coincide.
var abiClass = [...]int{
	0, 1, 2, 3, 4, 5, 6, 7, // i8..u64, each its own width+signedness class
	8, 9, 10, 11, // f32, f64, bool, char
	12, 13, 12, 14, // opaque-pointer, string-view, raw-pointer (same class as opaque-pointer), object-handle
}

// String returns the tag's canonical name.
func (t Tag) String() string {
	if int(t) < 0 || int(t) >= len(names) {
		return fmt.Sprintf("Tag(%d)", int(t))
	}
	return names[t]
}

// ByteSize returns the fixed byte size of one scalar of this tag.
func (t Tag) ByteSize() int {
	if int(t) < 0 || int(t) >= len(byteSizes) {
		return 0
	}
	return byteSizes[t]
}

// Valid reports whether t is one of the sixteen defined tags.
func (t Tag) Valid() bool {
	return int(t) >= 0 && int(t) < len(names)
}

// Compatible reports whether a and b denote the same in-memory
// representation across the two supported language ABIs.
func Compatible(a, b Tag) bool {
	if !a.Valid() || !b.Valid() {
		return false
	}
	return abiClass[a] == abiClass[b]
}

// Parse looks up a tag by its canonical name, for config/module
// loaders that read type names from text.
func Parse(name string) (Tag, bool) {
	for i, n := range names {
		if n == name {
			return Tag(i), true
		}
	}
	return 0, false
}
