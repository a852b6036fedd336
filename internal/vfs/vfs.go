// Package vfs implements the polymorphic filesystem interface of
// spec.md §4.7: a superblock/inode/file abstraction, path resolution
// (fs_namei), mount points, and an inode cache keyed by (device, ino).
//
// Grounded on the teacher's biscuit/src/ufs/ufs.go (the wrapping
// filesystem-facade shape: Stat/Read/Ls/Unlink delegating to per-inode
// operations) and biscuit/src/stat/stat.go (Stat_t's exact field set,
// reworked from the teacher's accessor-method style to plain exported
// fields since nothing here needs the teacher's raw-bytes layout
// trick). The inode cache uses internal/hashtable, grounded on
// biscuit/src/hashtable/hashtable.go.
package vfs

import (
	"sync"

	"beeos/internal/defs"
	"beeos/internal/hashtable"
)

/// Stat_t mirrors the fields spec.md's fstat syscall must populate.
/// Field set grounded on biscuit/src/stat/stat.go's Stat_t.
type Stat_t struct {
	Dev   int
	Ino   int
	Mode  uint32
	Size  int64
	Rdev  int
	Uid   int
	Nlink int
}

/// InodeOps_i is the per-inode-type operation set spec.md §4.7 names:
/// {read, write, lookup, readdir, truncate}. internal/ext2 is the only
/// implementer today; device special files are dispatched separately
/// by internal/dev (spec.md §4.9), not through this interface.
type InodeOps_i interface {
	Read(in *Inode_t, buf []byte, off int64) (int, defs.Err_t)
	Write(in *Inode_t, buf []byte, off int64) (int, defs.Err_t)
	Lookup(in *Inode_t, name string) (*Inode_t, defs.Err_t)
	Readdir(in *Inode_t, i int) (name string, ino int, err defs.Err_t)
	Truncate(in *Inode_t, size int64) defs.Err_t
}

// Inode mode bits, narrowed to what directory traversal and execve need.
const (
	S_IFDIR uint32 = 1 << 14
	S_IFREG uint32 = 1 << 15
	S_IFCHR uint32 = 1 << 13
)

/// Inode_t is one in-core inode: device/ino identity, refcounted per
/// spec.md §4.7 ("inode_lookup increments refcount on hit, iput
/// decrements and destroys when zero"), and the per-filesystem
/// operations dispatching read/write/lookup/readdir/truncate.
type Inode_t struct {
	mu       sync.Mutex
	Sb       *Superblock_t
	Ino      int
	Mode     uint32
	Size     int64
	Rdev     int
	Uid, Gid int
	refcount int
	Ops      InodeOps_i
	Priv     interface{} // filesystem-private inode data (e.g. ext2's block pointer table)
}

/// Ref increments the inode's refcount; satisfies proc.FileRef_i so an
/// Inode_t can be used directly as a task's cwd.
func (in *Inode_t) Ref() {
	in.mu.Lock()
	in.refcount++
	in.mu.Unlock()
}

/// Unref decrements the inode's refcount, evicting it from its
/// superblock's cache when it reaches zero. No filesystem-specific
/// per-inode destructor is called; SbOps_i has none.
func (in *Inode_t) Unref() {
	in.mu.Lock()
	in.refcount--
	dead := in.refcount == 0
	in.mu.Unlock()
	if dead {
		in.Sb.cache.evict(in.Sb.Device, in.Ino)
	}
}

func (in *Inode_t) IsDir() bool { return in.Mode&S_IFDIR != 0 }

/// Stat populates a Stat_t snapshot of this inode.
func (in *Inode_t) Stat() Stat_t {
	in.mu.Lock()
	defer in.mu.Unlock()
	return Stat_t{Dev: in.Sb.Device, Ino: in.Ino, Mode: in.Mode, Size: in.Size, Rdev: in.Rdev, Uid: in.Uid}
}

/// SbOps_i is the operation a superblock needs to materialize an inode
/// on a cache miss: spec.md §4.8's sb_inode_read, abstracted away from
/// any one on-disk format.
type SbOps_i interface {
	ReadInode(ino int) (*Inode_t, defs.Err_t)
}

/// Superblock_t is {device, root inode, operations}, spec.md §4.7.
type Superblock_t struct {
	Device  int
	RootIno int
	Ops     SbOps_i
	cache   *inodeCache_t
	root    *Inode_t
}

/// NewSuperblock wires a filesystem's ReadInode implementation into a
/// fresh inode cache and resolves the root inode (conventionally ino 2
/// for ext2, per spec.md §4.8).
func NewSuperblock(device, rootIno int, ops SbOps_i) (*Superblock_t, defs.Err_t) {
	sb := &Superblock_t{Device: device, RootIno: rootIno, Ops: ops, cache: newInodeCache()}
	root, err := sb.Iget(rootIno)
	if err != 0 {
		return nil, err
	}
	sb.root = root
	return sb, 0
}

/// Root returns the superblock's root inode (a new reference).
func (sb *Superblock_t) Root() *Inode_t {
	sb.root.Ref()
	return sb.root
}

/// Iget resolves ino through the inode cache, reading it from the
/// underlying filesystem on a miss — spec.md §4.7's "inode_lookup
/// increments refcount on hit".
func (sb *Superblock_t) Iget(ino int) (*Inode_t, defs.Err_t) {
	if in, ok := sb.cache.lookup(sb.Device, ino); ok {
		in.Ref()
		return in, 0
	}
	in, err := sb.Ops.ReadInode(ino)
	if err != 0 {
		return nil, err
	}
	in.Sb = sb
	in.refcount = 1
	sb.cache.insert(sb.Device, ino, in)
	return in, 0
}

type inodeCache_t struct {
	ht *hashtable.Hashtable_t
}

func newInodeCache() *inodeCache_t {
	return &inodeCache_t{ht: hashtable.MkHash(64)}
}

func cacheKey(device, ino int) uint64 {
	return uint64(uint32(device))<<32 | uint64(uint32(ino))
}

func (c *inodeCache_t) lookup(device, ino int) (*Inode_t, bool) {
	v, ok := c.ht.Get(cacheKey(device, ino))
	if !ok {
		return nil, false
	}
	return v.(*Inode_t), true
}

func (c *inodeCache_t) insert(device, ino int, in *Inode_t) {
	c.ht.Set(cacheKey(device, ino), in)
}

func (c *inodeCache_t) evict(device, ino int) {
	c.ht.Del(cacheKey(device, ino))
}
