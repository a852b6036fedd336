package slab

import (
	"beeos/internal/defs"
	"beeos/internal/mem"
)

// sizeClassFor rounds n up to the nearest power-of-two size class,
// clamped to [16, SLAB_UNIT/4]. Requests above the largest class bypass
// the cache layer entirely (large-object path below).
func sizeClassFor(n int) int {
	cls := 16
	for cls < n {
		cls *= 2
	}
	return cls
}

const maxCachedSize = SLAB_UNIT / 4

/// KObj_t is the handle Kmalloc hands back in place of a raw address: Go
/// gives no legal way to recover a slab/bufctl from a bare pointer, so
/// the handle carries what Kfree needs to reverse the allocation.
type KObj_t struct {
	Bytes    []byte
	cache    *Cache_t
	id       uint64   // set when cache.External
	embedded bool
	large    bool
	frame    int
	order    int
	zones    *mem.ZoneChain_t
}

func (a *Allocator_t) classFor(size int) *Cache_t {
	a.Lock()
	defer a.Unlock()
	c, ok := a.sizeClasses[size]
	if !ok {
		c = a.newCache("kmalloc-", size, nil, nil, true)
		c.Name += itoa(size)
		a.sizeClasses[size] = c
	}
	return c
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

/// Kmalloc allocates n bytes from the size-classed slab caches, falling
/// back to a direct multi-page zone allocation for large requests, per
/// spec.md §4.3's generic heap on top of the object caches.
func (a *Allocator_t) Kmalloc(n int) (*KObj_t, defs.Err_t) {
	if n <= 0 {
		panic("slab: kmalloc of non-positive size")
	}
	if n > maxCachedSize {
		order := int(log2Ceil(pagesFor(n)))
		frame, err := a.zones.Alloc(mem.ZONE_HIGH|mem.ZONE_LOW|mem.ZONE_DMA, order)
		if err != 0 {
			return nil, err
		}
		return &KObj_t{
			Bytes: make([]byte, pow2(order)*mem.PGSIZE),
			large: true,
			frame: frame,
			order: order,
			zones: a.zones,
		}, 0
	}

	cls := sizeClassFor(n)
	c := a.classFor(cls)
	id, buf, err := c.Alloc()
	if err != 0 {
		return nil, err
	}
	return &KObj_t{
		Bytes:    buf[:n],
		cache:    c,
		id:       id,
		embedded: !c.External,
	}, 0
}

/// Kfree releases an object obtained from Kmalloc.
func (a *Allocator_t) Kfree(o *KObj_t) {
	if o.large {
		o.zones.Free(o.frame, o.order)
		return
	}
	if o.embedded {
		o.cache.FreeEmbedded(o.Bytes)
		return
	}
	o.cache.Free(o.id)
}

func pagesFor(n int) int {
	p := (n + mem.PGSIZE - 1) / mem.PGSIZE
	if p < 1 {
		p = 1
	}
	return p
}

func pow2(order int) int {
	return 1 << uint(order)
}

func log2Ceil(v int) uint {
	var order uint
	for pow2(int(order)) < v {
		order++
	}
	return order
}
