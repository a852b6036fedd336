// Package hashtable implements a bucket-chained hash table keyed by
// uint64, used by the slab allocator's external bufctl lookup and the
// VFS inode cache. Grounded on biscuit/src/hashtable/hashtable.go,
// narrowed from its interface{}-keyed generic form (which supported
// Ustr/int/string keys for networking lookups this kernel core does not
// need) down to the uint64 key this core's two callers actually use.
package hashtable

import "sync"

type elem_t struct {
	key   uint64
	value interface{}
	next  *elem_t
}

type bucket_t struct {
	sync.Mutex
	first *elem_t
}

/// Hashtable_t maps uint64 keys to arbitrary values via per-bucket locks.
type Hashtable_t struct {
	table []*bucket_t
}

/// MkHash allocates a hash table with the given number of buckets.
func MkHash(size int) *Hashtable_t {
	if size <= 0 {
		size = 1
	}
	ht := &Hashtable_t{table: make([]*bucket_t, size)}
	for i := range ht.table {
		ht.table[i] = &bucket_t{}
	}
	return ht
}

func (ht *Hashtable_t) bucketFor(key uint64) *bucket_t {
	return ht.table[khash(key)%uint64(len(ht.table))]
}

/// Get looks up key and reports whether it was found.
func (ht *Hashtable_t) Get(key uint64) (interface{}, bool) {
	b := ht.bucketFor(key)
	b.Lock()
	defer b.Unlock()
	for e := b.first; e != nil; e = e.next {
		if e.key == key {
			return e.value, true
		}
	}
	return nil, false
}

/// Set inserts key/value, returning false if key already existed (in
/// which case nothing is changed, matching the teacher's Set contract).
func (ht *Hashtable_t) Set(key uint64, value interface{}) bool {
	b := ht.bucketFor(key)
	b.Lock()
	defer b.Unlock()
	for e := b.first; e != nil; e = e.next {
		if e.key == key {
			return false
		}
	}
	b.first = &elem_t{key: key, value: value, next: b.first}
	return true
}

/// Del removes key. It panics if key is absent, matching the teacher's
/// "del of non-existing key" invariant.
func (ht *Hashtable_t) Del(key uint64) {
	b := ht.bucketFor(key)
	b.Lock()
	defer b.Unlock()
	var last *elem_t
	for e := b.first; e != nil; e = e.next {
		if e.key == key {
			if last == nil {
				b.first = e.next
			} else {
				last.next = e.next
			}
			return
		}
		last = e
	}
	panic("del of non-existing key")
}

/// Size returns the total number of elements stored.
func (ht *Hashtable_t) Size() int {
	n := 0
	for _, b := range ht.table {
		b.Lock()
		for e := b.first; e != nil; e = e.next {
			n++
		}
		b.Unlock()
	}
	return n
}

func khash(key uint64) uint64 {
	// murmur3 fmix64-style avalanche (first xor-shift/multiply round) on a
	// fixed-width key
	h := key
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return h
}
