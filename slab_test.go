package slabcache

import (
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewSlab(t *testing.T) {
	Convey("When creating a new slab", t, func() {
		s, err := newSlab(16, 4096)
		So(err, ShouldBeNil)
		Reset(func() { s.release() })

		h := s.header()
		So(h.stride, ShouldEqual, 16)
		So(h.capacity, ShouldEqual, 255)
		So(len(s.data), ShouldEqual, 4096)

		Convey("all of its slots are free and chained in order", func() {
			So(h.freeCount, ShouldEqual, 255)
			So(h.freeHead, ShouldEqual, 0)
			for i := uint32(0); i < 254; i++ {
				So(s.next(i), ShouldEqual, i+1)
			}
			So(s.next(254), ShouldEqual, uint32(noFreeSlot))
			So(s.used.Count(), ShouldEqual, 0)
			So(s.verify(), ShouldBeNil)
		})

		Convey("it belongs to the empty category but to no list yet", func() {
			So(s.category(), ShouldEqual, listEmpty)
			So(s.list, ShouldEqual, listNone)
			So(s.pos, ShouldEqual, -1)
		})
	})

	Convey("When the slots don't fill the slab completely", t, func() {
		s, err := newSlab(32, 4096)
		So(err, ShouldBeNil)
		Reset(func() { s.release() })

		So(s.capacity(), ShouldEqual, 127)

		Convey("the bytes after the last slot are never written", func() {
			end := s.offset(s.capacity())
			So(end, ShouldEqual, 4080)
			for _, b := range s.data[end:] {
				So(b, ShouldEqual, 0)
			}
			So(s.next(126), ShouldEqual, uint32(noFreeSlot))
		})
	})

	Convey("When the OS refuses to map memory", t, func() {
		saved := mapRegion
		mapRegion = func(int) ([]byte, error) { return nil, errors.New("ENOMEM") }
		Reset(func() { mapRegion = saved })

		_, err := newSlab(16, 4096)
		So(errors.Is(err, ErrOutOfMemory), ShouldBeTrue)
	})
}

func TestSlabPopPush(t *testing.T) {
	Convey("When taking slots from a slab", t, func() {
		s, err := newSlab(16, 4096)
		So(err, ShouldBeNil)
		Reset(func() { s.release() })

		first := s.pop(true)
		second := s.pop(true)
		third := s.pop(true)
		So([]uint32{first, second, third}, ShouldResemble, []uint32{0, 1, 2})
		So(s.freeCount(), ShouldEqual, 252)
		So(s.category(), ShouldEqual, listPartial)
		So(s.used.Test(1), ShouldBeTrue)
		So(s.verify(), ShouldBeNil)

		Convey("the slots are handed out zeroed", func() {
			for _, b := range s.slot(second) {
				So(b, ShouldEqual, 0)
			}
		})

		Convey("a slot put back is the next one handed out", func() {
			s.push(second)
			So(s.freeCount(), ShouldEqual, 253)
			So(s.used.Test(1), ShouldBeFalse)
			So(s.verify(), ShouldBeNil)

			So(s.pop(true), ShouldEqual, second)
			So(s.pop(true), ShouldEqual, 3)
			So(s.verify(), ShouldBeNil)
		})

		Convey("taking every slot makes the slab full", func() {
			for s.freeCount() > 0 {
				s.pop(false)
			}
			So(s.category(), ShouldEqual, listFull)
			So(s.header().freeHead, ShouldEqual, uint32(noFreeSlot))
			So(s.used.Count(), ShouldEqual, 255)
			So(s.verify(), ShouldBeNil)
		})

		Convey("caller data written into a slot does not disturb the free list", func() {
			slot := s.slot(first)
			for i := range slot {
				slot[i] = 0xff
			}
			So(s.verify(), ShouldBeNil)
			So(s.pop(true), ShouldEqual, 3)
		})
	})
}

func TestSlabSlotIndex(t *testing.T) {
	Convey("When resolving addresses within a slab", t, func() {
		s, err := newSlab(16, 4096)
		So(err, ShouldBeNil)
		Reset(func() { s.release() })

		Convey("slot addresses map back to their index", func() {
			for _, idx := range []uint32{0, 1, 100, 254} {
				got, err := s.slotIndex(s.objAddr(idx))
				So(err, ShouldBeNil)
				So(got, ShouldEqual, idx)
			}
		})

		Convey("addresses in the header are rejected", func() {
			_, err := s.slotIndex(s.addr())
			So(errors.Is(err, ErrInvalidPointer), ShouldBeTrue)
			_, err = s.slotIndex(s.addr() + headerSize - 1)
			So(errors.Is(err, ErrInvalidPointer), ShouldBeTrue)
		})

		Convey("addresses inside a slot are rejected", func() {
			_, err := s.slotIndex(s.objAddr(3) + 4)
			So(errors.Is(err, ErrInvalidPointer), ShouldBeTrue)
		})
	})

	Convey("When a slab has bytes after its last slot", t, func() {
		s, err := newSlab(32, 4096)
		So(err, ShouldBeNil)
		Reset(func() { s.release() })

		_, err = s.slotIndex(s.objAddr(s.capacity()))
		So(errors.Is(err, ErrInvalidPointer), ShouldBeTrue)
		So(s.contains(s.objAddr(s.capacity())), ShouldBeTrue)
	})
}

func TestSlabVerifyDetectsCorruption(t *testing.T) {
	Convey("When slab bookkeeping is broken", t, func() {
		s, err := newSlab(16, 4096)
		So(err, ShouldBeNil)
		Reset(func() { s.release() })

		Convey("a wrong free count is found", func() {
			s.header().freeCount--
			So(errors.Is(s.verify(), ErrCorrupted), ShouldBeTrue)
		})

		Convey("a free list loop is found", func() {
			s.setNext(10, 3)
			So(errors.Is(s.verify(), ErrCorrupted), ShouldBeTrue)
		})

		Convey("a link out of range is found", func() {
			s.setNext(10, 255)
			So(errors.Is(s.verify(), ErrCorrupted), ShouldBeTrue)
		})

		Convey("an allocated slot on the free list is found", func() {
			s.used.Set(7)
			So(errors.Is(s.verify(), ErrCorrupted), ShouldBeTrue)
		})
	})
}

func TestSlabRelease(t *testing.T) {
	Convey("When the OS fails to unmap a slab", t, func() {
		s, err := newSlab(16, 4096)
		So(err, ShouldBeNil)

		saved := unmapRegion
		unmapRegion = func(data []byte) error {
			saved(data)
			return errors.New("EINVAL")
		}
		Reset(func() { unmapRegion = saved })

		err = s.release()
		So(errors.Is(err, ErrReleaseFailed), ShouldBeTrue)
		So(s.data, ShouldBeNil)
	})
}

func TestSlabString(t *testing.T) {
	Convey("When printing a slab", t, func() {
		s, err := newSlab(16, 4096)
		So(err, ShouldBeNil)
		Reset(func() { s.release() })

		s.pop(true)
		out := s.String()
		So(out, ShouldContainSubstring, "Objects Per Slab: 255")
		So(out, ShouldContainSubstring, "Free Objects: 254")
		So(out, ShouldContainSubstring, "Free List: 1 2 3")
	})
}
