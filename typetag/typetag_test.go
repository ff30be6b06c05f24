package typetag_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/concom/typetag"
)

var _ = Describe("Tag", func() {
	It("reports byte sizes for every defined tag", func() {
		Expect(typetag.I32.ByteSize()).To(Equal(4))
		Expect(typetag.F64.ByteSize()).To(Equal(8))
		Expect(typetag.Bool.ByteSize()).To(Equal(1))
	})

	It("round-trips names through Parse", func() {
		tag, ok := typetag.Parse("f64")
		Expect(ok).To(BeTrue())
		Expect(tag).To(Equal(typetag.F64))
	})

	It("rejects unknown names", func() {
		_, ok := typetag.Parse("nope")
		Expect(ok).To(BeFalse())
	})

	It("considers i32 compatible with itself but not with f32", func() {
		Expect(typetag.Compatible(typetag.I32, typetag.I32)).To(BeTrue())
		Expect(typetag.Compatible(typetag.I32, typetag.F32)).To(BeFalse())
	})

	It("considers raw-pointer compatible with opaque-pointer", func() {
		Expect(typetag.Compatible(typetag.RawPointer, typetag.OpaquePointer)).To(BeTrue())
	})

	It("considers object-handle incompatible with opaque-pointer", func() {
		Expect(typetag.Compatible(typetag.ObjectHandle, typetag.OpaquePointer)).To(BeFalse())
	})

	It("prints Tag(n) for an out-of-range value", func() {
		var bogus typetag.Tag = 99
		Expect(bogus.Valid()).To(BeFalse())
		Expect(bogus.String()).To(Equal("Tag(99)"))
	})
})
