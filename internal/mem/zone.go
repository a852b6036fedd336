package mem

import "beeos/internal/defs"

/// ZoneFlag_t identifies which physical region an allocation should be
/// drawn from, per spec.md §3.
type ZoneFlag_t uint

const (
	ZONE_DMA  ZoneFlag_t = 1 << iota /// DMA-reachable, constrained range
	ZONE_LOW                         /// low memory, DMA-reachable
	ZONE_HIGH                        /// general purpose, unconstrained
)

/// Zone_t wraps one buddy instance over a contiguous physical region.
/// Grounded on biscuit/src/mem/dmap.go's VREC/VDIRECT window constants,
/// here repurposed to describe a physical (not virtual-window) region.
type Zone_t struct {
	BaseFrame int        /// first absolute frame number in this zone
	NFrames   int        /// frame count (power of two)
	Flags     ZoneFlag_t /// LOW/HIGH/DMA classification
	buddy     *Buddy_t
	next      *Zone_t
}

/// ZoneChain_t is the linked chain of installed zones, searched by
/// allocation policy per spec.md §4.2.
type ZoneChain_t struct {
	head  *Zone_t
	tail  *Zone_t
	table *FrameTable_t
}

/// NewZoneChain creates an empty chain backed by the given global frame
/// table (so per-frame refcounts are consistent across zones).
func NewZoneChain(ft *FrameTable_t) *ZoneChain_t {
	return &ZoneChain_t{table: ft}
}

/// AddZone installs a new zone of nframes (must be a power of two)
/// starting at baseFrame, classified by flags.
func (zc *ZoneChain_t) AddZone(baseFrame, nframes int, flags ZoneFlag_t) *Zone_t {
	z := &Zone_t{
		BaseFrame: baseFrame,
		NFrames:   nframes,
		Flags:     flags,
		buddy:     NewBuddy(nframes),
	}
	if zc.head == nil {
		zc.head, zc.tail = z, z
	} else {
		zc.tail.next = z
		zc.tail = z
	}
	return z
}

/// Alloc walks the zone chain for the first zone whose flags satisfy
/// want, allocates a block of the given order from its buddy, and bumps
/// the frame's reference count to 1 (spec.md §4.2: "on success increments
/// the frame's reference count").
func (zc *ZoneChain_t) Alloc(want ZoneFlag_t, order int) (int, defs.Err_t) {
	for z := zc.head; z != nil; z = z.next {
		if z.Flags&want == 0 {
			continue
		}
		local, ok := z.buddy.Alloc(order)
		if !ok {
			continue
		}
		frameNo := z.BaseFrame + local
		zc.table.Lock()
		zc.table.Frames[frameNo].Refcnt = 1
		zc.table.Unlock()
		return frameNo, 0
	}
	return 0, -defs.ENOMEM
}

/// Free decrements the frame's reference count and, only at zero,
/// releases it to its owning zone's buddy (spec.md §4.2).
func (zc *ZoneChain_t) Free(frameNo, order int) {
	z := zc.zoneOf(frameNo)
	if z == nil {
		panic("free of frame not owned by any zone")
	}
	if zc.table.Refdown(frameNo) {
		z.buddy.Free(frameNo-z.BaseFrame, order)
	}
}

/// Refup increments a frame's reference count without allocating,
/// supporting future shared-frame (copy-on-write) use per spec.md §4.2.
func (zc *ZoneChain_t) Refup(frameNo int) {
	zc.table.Refup(frameNo)
}

/// Frame returns the PGSIZE-byte window backing absolute frame frameNo,
/// for callers (internal/vm) that need to read or write page contents.
func (zc *ZoneChain_t) Frame(frameNo int) []byte {
	return zc.table.Frame(frameNo)
}

func (zc *ZoneChain_t) zoneOf(frameNo int) *Zone_t {
	for z := zc.head; z != nil; z = z.next {
		if frameNo >= z.BaseFrame && frameNo < z.BaseFrame+z.NFrames {
			return z
		}
	}
	return nil
}

/// Totals reports (allocated, free) frame counts across every zone,
/// the invariant spec.md §8 requires to be constant across alloc/free.
func (zc *ZoneChain_t) Totals() (allocated, free int) {
	for z := zc.head; z != nil; z = z.next {
		f := z.buddy.FreeCount()
		free += f
		allocated += z.NFrames - f
	}
	return
}
