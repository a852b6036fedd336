package slab

import (
	"testing"

	"beeos/internal/mem"
)

func newTestAllocator(nframes int) *Allocator_t {
	ft := mem.NewFrameTable(nframes)
	zc := mem.NewZoneChain(ft)
	zc.AddZone(0, nframes, mem.ZONE_LOW)
	return Bootstrap(zc)
}

func TestCacheEmbeddedAllocFreeRoundTrip(t *testing.T) {
	a := newTestAllocator(64)
	c := a.NewCache("embedded32", 32, nil, nil)
	if c.External {
		t.Fatal("32-byte objects should use embedded bufctl mode")
	}

	id, buf, err := c.Alloc()
	if err != 0 {
		t.Fatalf("alloc failed: %v", err)
	}
	if id != 0 {
		t.Fatalf("embedded cache should not mint an id, got %d", id)
	}
	if len(buf) != 32 {
		t.Fatalf("buf len = %d, want 32", len(buf))
	}
	if c.partial.Len() != 1 || c.full.Len() != 0 {
		t.Fatalf("expected one partial slab after first alloc")
	}

	c.FreeEmbedded(buf)
	if c.empty.Len() != 0 {
		t.Fatalf("fully-freed slab should be reclaimed back to the zone, not kept empty")
	}
}

func TestCacheExternalAllocFreeViaHash(t *testing.T) {
	a := newTestAllocator(64)
	c := a.NewCache("external1024", 1024, nil, nil)
	if !c.External {
		t.Fatal("1024-byte objects should use external bufctl mode")
	}

	id, buf, err := c.Alloc()
	if err != 0 {
		t.Fatalf("alloc failed: %v", err)
	}
	if id == 0 {
		t.Fatal("external cache should mint a nonzero bufctl id")
	}
	if len(buf) != 1024 {
		t.Fatalf("buf len = %d, want 1024", len(buf))
	}

	c.Free(id)
	if c.hash != nil {
		t.Fatal("hash should be torn down once load returns to zero")
	}
}

func TestCacheFullPartialEmptyTransitions(t *testing.T) {
	a := newTestAllocator(64)
	c := a.NewCache("small64", 64, nil, nil)

	objs := mem.PGSIZE / 64
	var bufs [][]byte
	for i := 0; i < objs; i++ {
		_, buf, err := c.Alloc()
		if err != 0 {
			t.Fatalf("alloc %d failed: %v", i, err)
		}
		bufs = append(bufs, buf)
	}
	if c.full.Len() != 1 || c.partial.Len() != 0 {
		t.Fatalf("slab should be full after filling all %d objects", objs)
	}

	c.FreeEmbedded(bufs[0])
	if c.full.Len() != 0 || c.partial.Len() != 1 {
		t.Fatal("slab should move from full to partial after one free")
	}

	for _, b := range bufs[1:] {
		c.FreeEmbedded(b)
	}
	if c.partial.Len() != 0 || c.full.Len() != 0 {
		t.Fatal("slab should leave partial once fully drained")
	}
}

func TestKmallocSizeClassesAndLargeObjects(t *testing.T) {
	a := newTestAllocator(256)

	o, err := a.Kmalloc(100)
	if err != 0 {
		t.Fatalf("kmalloc failed: %v", err)
	}
	if len(o.Bytes) != 100 {
		t.Fatalf("len = %d, want 100", len(o.Bytes))
	}
	a.Kfree(o)

	big, err := a.Kmalloc(maxCachedSize + 1)
	if err != 0 {
		t.Fatalf("large kmalloc failed: %v", err)
	}
	if !big.large {
		t.Fatal("request above maxCachedSize should take the large-object path")
	}
	a.Kfree(big)
}
