// Package slab implements the object-cache allocator and the general
// purpose kernel heap (kmalloc) fronting it, per spec.md §4.3.
//
// Go cannot do the C original's pointer-arithmetic trick of masking an
// object's address down to its slab's embedded control record, nor
// splice a free-list link into an object's own first bytes (objects here
// are Go []byte slices, not raw memory the allocator owns outright). The
// two modes spec.md §4.3 describes are preserved in spirit instead of in
// literal memory layout: "embedded" caches keep their free list as a
// plain index slice inside the *Slab_t Go value itself (no extra
// allocation per object beyond the slice), while "external" caches
// additionally register each live object in a Cache_t-owned hash table
// keyed by a synthetic object id, so a caller holding only that id (not
// a Go pointer) can resolve it back to its Slab_t — the same role the
// bufctl hash table plays in spec.md §4.3. This substitution is recorded
// in DESIGN.md.
package slab

import (
	"container/list"
	"sync"
	"unsafe"

	"beeos/internal/defs"
	"beeos/internal/hashtable"
	"beeos/internal/mem"
	"beeos/internal/util"
)

/// SLAB_UNIT is the baseline slab size in bytes (one page); OPTIMIZE
/// caches grow this by doubling pages until internal fragmentation is
/// acceptable (spec.md §4.3).
const SLAB_UNIT = mem.PGSIZE

/// externalThreshold: objects larger than SLAB_UNIT/8 use external
/// bufctl/slab-control bookkeeping (spec.md §4.3).
const externalThreshold = SLAB_UNIT / 8

/// Slab_t is one span of pages carved into fixed-size objects for one
/// cache.
type Slab_t struct {
	data    []byte
	objsize int
	nobjs   int
	free    []int // indices of free objects (embedded free-list link)
	inuse   int
	cache   *Cache_t
	elem    *list.Element // which of Full/Partial/Empty currently holds it
	pages   int           // page count backing this slab
	frame   int           // absolute base frame number, for Free
}

func (s *Slab_t) objAt(i int) []byte {
	off := i * s.objsize
	return s.data[off : off+s.objsize]
}

/// Cache_t is an object cache, analogous to spec.md §3's slab cache.
type Cache_t struct {
	sync.Mutex
	Name     string
	ObjSize  int
	Objs     int // objects per slab
	Ctor     func([]byte)
	Dtor     func([]byte)
	External bool
	Optimize bool

	full    *list.List
	partial *list.List
	empty   *list.List

	hash   *hashtable.Hashtable_t // lazily created for External mode
	nextID uint64

	zones *mem.ZoneChain_t
}

/// Allocator_t owns the bootstrap caches and the size-classed kmalloc
/// heap built on top of them.
type Allocator_t struct {
	sync.Mutex
	zones *mem.ZoneChain_t

	cacheCache   *Cache_t // cache-of-caches: embedded, no external deps
	slabctlCache *Cache_t // dedicated cache for external slab control
	bufctlCache  *Cache_t // dedicated cache for external bufctl records

	sizeClasses map[int]*Cache_t
}

/// Bootstrap builds the allocator in the order spec.md §4.3 mandates:
/// cache-of-caches (embedded) → slab-of-slabctls → slab-of-bufctls → all
/// other caches.
func Bootstrap(zones *mem.ZoneChain_t) *Allocator_t {
	a := &Allocator_t{zones: zones, sizeClasses: make(map[int]*Cache_t)}
	a.cacheCache = a.newCache("cache_cache", 64, nil, nil, false)
	a.slabctlCache = a.newCache("slabctl_cache", 48, nil, nil, false)
	a.bufctlCache = a.newCache("bufctl_cache", 24, nil, nil, false)
	return a
}

func (a *Allocator_t) newCache(name string, objsize int, ctor, dtor func([]byte), optimize bool) *Cache_t {
	c := &Cache_t{
		Name:     name,
		ObjSize:  objsize,
		Ctor:     ctor,
		Dtor:     dtor,
		External: objsize > externalThreshold,
		Optimize: optimize,
		full:     list.New(),
		partial:  list.New(),
		empty:    list.New(),
		zones:    a.zones,
	}
	c.Objs = util.Max(1, SLAB_UNIT/objsize)
	return c
}

/// NewCache creates and registers an additional named cache, for callers
/// (e.g. vfs/ext2) wanting a dedicated object pool instead of going
/// through the generic kmalloc size classes.
func (a *Allocator_t) NewCache(name string, objsize int, ctor, dtor func([]byte)) *Cache_t {
	return a.newCache(name, objsize, ctor, dtor, false)
}

// growSlab allocates fresh backing pages for a new slab of this cache,
// growing page count while OPTIMIZE is set and internal fragmentation
// exceeds 25%, per spec.md §4.3.
func (c *Cache_t) growSlab() (*Slab_t, defs.Err_t) {
	pages := 1
	for {
		bytes := pages * mem.PGSIZE
		objs := bytes / c.ObjSize
		used := objs * c.ObjSize
		frag := float64(bytes-used) / float64(bytes)
		if !c.Optimize || frag <= 0.25 || pages >= 8 {
			order := int(util.Log2(util.Ceilpow2(pages)))
			frame, err := c.zones.Alloc(mem.ZONE_HIGH|mem.ZONE_LOW|mem.ZONE_DMA, order)
			if err != 0 {
				return nil, err
			}
			data := make([]byte, util.Ceilpow2(pages)*mem.PGSIZE)
			s := &Slab_t{
				data:    data,
				objsize: c.ObjSize,
				nobjs:   objs,
				cache:   c,
				pages:   util.Ceilpow2(pages),
				frame:   frame,
			}
			s.free = make([]int, objs)
			for i := range s.free {
				s.free[i] = objs - 1 - i
			}
			if c.Ctor != nil {
				for i := 0; i < objs; i++ {
					c.Ctor(s.objAt(i))
				}
			}
			return s, 0
		}
		pages++
	}
}

/// Alloc takes an object from the partial list, or a freshly grown slab
/// when none is partial, per spec.md §4.3's allocation policy.
func (c *Cache_t) Alloc() (uint64, []byte, defs.Err_t) {
	c.Lock()
	defer c.Unlock()

	var s *Slab_t
	if e := c.partial.Front(); e != nil {
		s = e.Value.(*Slab_t)
	} else if e := c.empty.Front(); e != nil {
		c.empty.Remove(e)
		s = e.Value.(*Slab_t)
		s.elem = nil
	} else {
		var err defs.Err_t
		s, err = c.growSlab()
		if err != 0 {
			return 0, nil, err
		}
	}

	idx := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]
	s.inuse++
	c.relist(s)

	var id uint64
	if c.External {
		if c.hash == nil {
			c.hash = hashtable.MkHash(64)
		}
		c.nextID++
		id = c.nextID
		c.hash.Set(id, bufctl_t{slab: s, obj: idx})
	}
	return id, s.objAt(idx), 0
}

type bufctl_t struct {
	slab *Slab_t
	obj  int
}

// relist moves s to the list matching its current occupancy (full when
// inuse == nobjs, partial when 0 < inuse < nobjs, empty when inuse == 0),
// removing it from whichever list it is currently on. This maintains the
// spec.md §8 invariant on full/partial/empty membership.
func (c *Cache_t) relist(s *Slab_t) {
	// remove from whatever list currently holds it by scanning the three
	// (slabs rarely move mid-cache so this stays cheap in practice).
	for _, l := range []*list.List{c.full, c.partial, c.empty} {
		for e := l.Front(); e != nil; e = e.Next() {
			if e.Value.(*Slab_t) == s {
				l.Remove(e)
				break
			}
		}
	}
	switch {
	case s.inuse == s.nobjs:
		s.elem = c.full.PushBack(s)
	case s.inuse == 0:
		s.elem = c.empty.PushBack(s)
		c.reclaimEmpty(s)
	default:
		s.elem = c.partial.PushBack(s)
	}
}

// reclaimEmpty frees an all-free slab's backing pages back to the zone
// immediately, per spec.md §8: "empty slabs are freed back to the
// buddy."
func (c *Cache_t) reclaimEmpty(s *Slab_t) {
	if c.empty.Len() == 0 {
		return
	}
	e := c.empty.Front()
	c.empty.Remove(e)
	order := int(util.Log2(s.pages))
	c.zones.Free(s.frame, order)
}

/// Free returns an object (identified by id for External caches, or the
/// slice itself for embedded ones via FreeEmbedded) to its slab.
func (c *Cache_t) Free(id uint64) {
	c.Lock()
	defer c.Unlock()
	if !c.External {
		panic("slab: Free(id) requires an external cache")
	}
	v, ok := c.hash.Get(id)
	if !ok {
		panic("slab: free of unknown bufctl")
	}
	bc := v.(bufctl_t)
	c.hash.Del(id)
	c.freeObj(bc.slab, bc.obj)
	if c.hash.Size() == 0 {
		c.hash = nil // tear down hash when load returns to zero
	}
}

/// FreeEmbedded returns an object from an embedded-mode cache, located by
/// linear search over live slabs (acceptable: embedded caches back small,
/// short-lived kernel objects in this port).
func (c *Cache_t) FreeEmbedded(obj []byte) {
	c.Lock()
	defer c.Unlock()
	if c.External {
		panic("slab: FreeEmbedded requires an embedded cache")
	}
	for _, l := range []*list.List{c.partial, c.full} {
		for e := l.Front(); e != nil; e = e.Next() {
			s := e.Value.(*Slab_t)
			if sameBacking(s.data, obj) {
				idx := (addrOf(obj) - addrOf(s.data)) / s.objsize
				c.freeObj(s, idx)
				return
			}
		}
	}
	panic("slab: free of object not owned by this cache")
}

func (c *Cache_t) freeObj(s *Slab_t, idx int) {
	if c.Dtor != nil {
		c.Dtor(s.objAt(idx))
	}
	s.free = append(s.free, idx)
	s.inuse--
	c.relist(s)
}

func sameBacking(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	la := addrOf(a)
	return addrOf(b) >= la && addrOf(b) < la+len(a)
}

func addrOf(b []byte) int {
	// identity via the slice's first element pointer, used only to
	// correlate an object slice back to the slab that allocated it
	// (Go has no pointer arithmetic into arbitrary memory to mask down
	// to a control record, the substitute spec.md §4.3's "masking the
	// address down to the page" asks for).
	if len(b) == 0 {
		return 0
	}
	return int(uintptr(unsafe.Pointer(&b[0])))
}
