package slabcache

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestAlign(t *testing.T) {
	Convey("When aligning values to a power of two", t, func() {
		So(align(0, 8), ShouldEqual, 0)
		So(align(1, 8), ShouldEqual, 8)
		So(align(8, 8), ShouldEqual, 8)
		So(align(9, 8), ShouldEqual, 16)
		So(align(4097, 4096), ShouldEqual, 8192)
		So(align(144, 4096), ShouldEqual, 4096)
	})
}

func TestObjectStride(t *testing.T) {
	Convey("Object strides are rounded up to the pointer width", t, func() {
		So(objectStride(1), ShouldEqual, pointerWidth)
		So(objectStride(pointerWidth), ShouldEqual, pointerWidth)
		So(objectStride(pointerWidth+1), ShouldEqual, 2*pointerWidth)
		So(objectStride(16), ShouldEqual, 16)
	})
}

func TestSlabGeometry(t *testing.T) {
	Convey("The slab header takes 16 bytes", t, func() {
		So(headerSize, ShouldEqual, 16)
	})

	Convey("When objects are small the slab is a single page", t, func() {
		size := slabByteSize(16, 4096, 8)
		So(size, ShouldEqual, 4096)

		Convey("and holds many more objects than the hint", func() {
			So(slabCapacity(size, 16), ShouldEqual, 255)
			So(slabCapacity(slabByteSize(24, 4096, 8), 24), ShouldEqual, 170)
		})
	})

	Convey("When objects are larger than a page the slab spans several pages", t, func() {
		stride := objectStride(65535)
		So(stride, ShouldEqual, 65536)

		size := slabByteSize(stride, 4096, 8)
		So(size, ShouldEqual, 528384)
		So(size%4096, ShouldEqual, 0)
		So(slabCapacity(size, stride), ShouldEqual, 8)
	})

	Convey("When the slab is rounded up the capacity is recomputed from the real size", t, func() {
		size := slabByteSize(1024, 4096, 8)
		So(size, ShouldEqual, 12288)
		So(slabCapacity(size, 1024), ShouldEqual, 11)
	})
}
