package slabcache

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSlabList(t *testing.T) {
	Convey("When pushing slabs onto a list", t, func() {
		partial := newSlabList(listPartial)
		full := newSlabList(listFull)
		a, b, c := &slab{pos: -1}, &slab{pos: -1}, &slab{pos: -1}
		partial.push(a)
		partial.push(b)
		partial.push(c)

		So(partial.len(), ShouldEqual, 3)
		So(partial.head(), ShouldPointTo, c)
		So(b.list, ShouldEqual, listPartial)
		So(b.pos, ShouldEqual, 1)

		Convey("removing a slab in the middle keeps positions consistent", func() {
			partial.remove(a)
			So(partial.len(), ShouldEqual, 2)
			So(a.list, ShouldEqual, listNone)
			So(a.pos, ShouldEqual, -1)
			for pos, s := range partial.slabs {
				So(s.pos, ShouldEqual, pos)
			}
			So(partial.head(), ShouldPointTo, b)
		})

		Convey("moving the head hands it to the other list", func() {
			partial.move(c, &full)
			So(partial.head(), ShouldPointTo, b)
			So(full.head(), ShouldPointTo, c)
			So(c.list, ShouldEqual, listFull)
			So(c.pos, ShouldEqual, 0)
		})

		Convey("removing a slab from the wrong list panics", func() {
			So(func() { full.remove(a) }, ShouldPanic)
		})

		Convey("pushing a slab that is in a list panics", func() {
			So(func() { full.push(a) }, ShouldPanic)
		})
	})

	Convey("An empty list has no head", t, func() {
		l := newSlabList(listEmpty)
		So(l.head(), ShouldBeNil)
		So(l.len(), ShouldEqual, 0)
	})
}
