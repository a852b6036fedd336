package mem

import "testing"

func TestZoneChainAllocFreeConservesTotals(t *testing.T) {
	ft := NewFrameTable(256)
	zc := NewZoneChain(ft)
	zc.AddZone(0, 64, ZONE_LOW)
	zc.AddZone(64, 128, ZONE_HIGH)

	allocBefore, freeBefore := zc.Totals()
	if allocBefore != 0 || freeBefore != 192 {
		t.Fatalf("initial totals = (%d,%d), want (0,192)", allocBefore, freeBefore)
	}

	var frames []int
	for i := 0; i < 10; i++ {
		f, err := zc.Alloc(ZONE_HIGH, 0)
		if err != 0 {
			t.Fatalf("alloc %d failed: %v", i, err)
		}
		if f < 64 || f >= 192 {
			t.Fatalf("HIGH alloc returned frame outside HIGH zone: %d", f)
		}
		frames = append(frames, f)
	}
	allocMid, freeMid := zc.Totals()
	if allocMid+freeMid != 192 {
		t.Fatalf("total frames changed: %d+%d != 192", allocMid, freeMid)
	}

	for _, f := range frames {
		zc.Free(f, 0)
	}
	allocAfter, freeAfter := zc.Totals()
	if allocAfter != allocBefore || freeAfter != freeBefore {
		t.Fatalf("totals after free = (%d,%d), want (%d,%d)", allocAfter, freeAfter, allocBefore, freeBefore)
	}
}

func TestZoneChainAllocFailsWhenExhausted(t *testing.T) {
	ft := NewFrameTable(8)
	zc := NewZoneChain(ft)
	zc.AddZone(0, 8, ZONE_DMA)
	for i := 0; i < 8; i++ {
		if _, err := zc.Alloc(ZONE_DMA, 0); err != 0 {
			t.Fatalf("alloc %d unexpectedly failed", i)
		}
	}
	if _, err := zc.Alloc(ZONE_DMA, 0); err == 0 {
		t.Fatal("expected ENOMEM once zone is exhausted")
	}
}

func TestZoneRefupSharesFrameWithoutDoubleFree(t *testing.T) {
	ft := NewFrameTable(4)
	zc := NewZoneChain(ft)
	zc.AddZone(0, 4, ZONE_LOW)
	f, err := zc.Alloc(ZONE_LOW, 0)
	if err != 0 {
		t.Fatal(err)
	}
	zc.Refup(f) // simulate a second owner sharing the frame
	zc.Free(f, 0)
	if ft.Refcnt(f) != 1 {
		t.Fatalf("refcnt after one free = %d, want 1", ft.Refcnt(f))
	}
	zc.Free(f, 0)
	if ft.Refcnt(f) != 0 {
		t.Fatalf("refcnt after second free = %d, want 0", ft.Refcnt(f))
	}
}
