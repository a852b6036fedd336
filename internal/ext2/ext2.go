// Package ext2 implements the read-only ext2 reader of spec.md §4.8:
// superblock/group-descriptor parsing, on-disk inode decoding,
// direct/single-indirect block resolution, and directory lookup.
//
// On-disk field offsets are not named by spec.md or retrievable from
// the corpus (no ext2.h was captured in original_source/, only the
// .c); this package uses the standard ext2 revision-0 on-disk layout,
// which is what original_source/kernel/src/fs/ext2.c's field accesses
// (dsb.magic, dsb.log_block_size, dsb.inodes_per_group,
// gd.inode_table, dnode.mode/uid/gid/size/block) are consistent with.
// The sb_inode_read addressing arithmetic (literal 1024-byte units
// regardless of actual block size) is copied verbatim from that file
// per the "resolve ambiguity from original_source" rule; spec.md §4.8
// states the same formula. Directory content is read through Read,
// which uses the volume's real block size.
//
// Grounded structurally on biscuit/src/fs/super.go's accessor-pair
// convention (reworked into encoding/binary reads over a byte buffer,
// since ext2's on-disk layout is fixed-field rather than the
// teacher's own log-based format) and internal/vfs.InodeOps_i for the
// read/lookup/readdir contract this reader implements.
package ext2

import (
	"encoding/binary"
	"io"

	"beeos/internal/defs"
	"beeos/internal/vfs"
)

const (
	magic        = 0xef53
	rootIno      = 2
	ndirBlocks   = 12
	indBlockIdx  = 12
	dblBlockIdx  = 13
	tplBlockIdx  = 14
	groupDescLen = 32
	diskInodeLen = 128
	direntMinLen = 8
)

type groupDesc_t struct {
	inodeTable uint32
}

/// Fs_t is one mounted ext2 volume: the parsed superblock fields and
/// group-descriptor table needed to resolve any inode number to its
/// on-disk location.
type Fs_t struct {
	dev            io.ReaderAt
	blockSize      uint32
	logBlockSize   uint32
	inodesPerGroup uint32
	groups         []groupDesc_t
}

/// Create reads the superblock and group-descriptor table off dev and
/// wires a vfs.Superblock_t over it, rooted at ino 2 — spec.md §4.8's
/// sb_create.
func Create(device int, dev io.ReaderAt) (*vfs.Superblock_t, defs.Err_t) {
	var raw [1024]byte
	if n, err := dev.ReadAt(raw[:], 1024); (err != nil && err != io.EOF) || n != len(raw) {
		return nil, defs.EIO
	}

	if binary.LittleEndian.Uint16(raw[56:]) != magic {
		return nil, defs.EINVAL
	}

	blocksCount := binary.LittleEndian.Uint32(raw[4:])
	blocksPerGroup := binary.LittleEndian.Uint32(raw[32:])
	logBlockSize := binary.LittleEndian.Uint32(raw[24:])
	inodesPerGroup := binary.LittleEndian.Uint32(raw[40:])

	fs := &Fs_t{
		dev:            dev,
		blockSize:      1024 << logBlockSize,
		logBlockSize:   logBlockSize,
		inodesPerGroup: inodesPerGroup,
	}

	numGroups := (blocksCount-1)/blocksPerGroup + 1
	gdBlock := uint32(2)
	if logBlockSize == 0 {
		gdBlock = 3
	}
	gdOff := int64(fs.blockSize) * int64(gdBlock-1)
	gdRaw := make([]byte, int(numGroups)*groupDescLen)
	if n, err := dev.ReadAt(gdRaw, gdOff); (err != nil && err != io.EOF) || n != len(gdRaw) {
		return nil, defs.EIO
	}
	fs.groups = make([]groupDesc_t, numGroups)
	for i := range fs.groups {
		fs.groups[i].inodeTable = binary.LittleEndian.Uint32(gdRaw[i*groupDescLen+8:])
	}

	return vfs.NewSuperblock(device, rootIno, fs)
}

type blockPtrs_t [15]uint32

/// ReadInode implements vfs.SbOps_i: spec.md §4.8's sb_inode_read.
func (fs *Fs_t) ReadInode(ino int) (*vfs.Inode_t, defs.Err_t) {
	group := (ino - 1) / int(fs.inodesPerGroup)
	if group < 0 || group >= len(fs.groups) {
		return nil, defs.ENOENT
	}
	local := (ino - 1) % int(fs.inodesPerGroup)
	blockno := (local*diskInodeLen)/1024 + int(fs.groups[group].inodeTable)
	index := local % (1024 / diskInodeLen)

	var raw [diskInodeLen]byte
	off := int64(blockno)*1024 + int64(index)*diskInodeLen
	if n, err := fs.dev.ReadAt(raw[:], off); (err != nil && err != io.EOF) || n != len(raw) {
		return nil, defs.EIO
	}

	mode := binary.LittleEndian.Uint16(raw[0:])
	uid := binary.LittleEndian.Uint16(raw[2:])
	size := binary.LittleEndian.Uint32(raw[4:])
	gid := binary.LittleEndian.Uint16(raw[24:])

	var blocks blockPtrs_t
	for i := 0; i < 15; i++ {
		blocks[i] = binary.LittleEndian.Uint32(raw[40+i*4:])
	}

	in := &vfs.Inode_t{
		Ino:  ino,
		Mode: uint32(mode),
		Size: int64(size),
		Uid:  int(uid),
		Gid:  int(gid),
		Ops:  fs,
		Priv: &blocks,
	}
	if in.Mode&(0xe<<12) == 0x2<<12 || in.Mode&(0xe<<12) == 0x6<<12 {
		// S_IFCHR (0x2000) or S_IFBLK (0x6000): rdev lives in block[0]
		in.Rdev = int(blocks[0])
	}
	return in, 0
}

func (fs *Fs_t) blocks(in *vfs.Inode_t) *blockPtrs_t {
	return in.Priv.(*blockPtrs_t)
}

// offsetToBlock resolves a byte offset within a file to an absolute
// block number, panicking on double/triple indirection per spec.md
// §9's declared-unsupported gap.
func (fs *Fs_t) offsetToBlock(fileOff int64, blocks *blockPtrs_t) (uint32, defs.Err_t) {
	shift := 10 + fs.logBlockSize
	if fileOff < int64(ndirBlocks)*int64(fs.blockSize) {
		return blocks[fileOff>>shift], 0
	}

	idx := (fileOff >> shift) - ndirBlocks
	ind := idx & 0xff
	dbl := (idx >> 8) & 0xff
	tpl := (idx >> 16) & 0xff
	if tpl != 0 {
		panic("ext2: triple indirect blocks are not supported")
	}
	if dbl != 0 {
		panic("ext2: double indirect blocks are not supported")
	}

	indirectBlock := blocks[indBlockIdx]
	buf := make([]byte, fs.blockSize)
	n, err := fs.dev.ReadAt(buf, int64(indirectBlock)*int64(fs.blockSize))
	if (err != nil && err != io.EOF) || n != len(buf) {
		return 0, defs.EIO
	}
	return binary.LittleEndian.Uint32(buf[ind*4:]), 0
}

/// Read implements vfs.InodeOps_i.Read: direct blocks for offsets below
/// 12 block units, single-indirect beyond that, per spec.md §4.8.
func (fs *Fs_t) Read(in *vfs.Inode_t, buf []byte, off int64) (int, defs.Err_t) {
	if in.Size <= off {
		return 0, 0
	}
	count := int64(len(buf))
	if in.Size < off+count {
		count = in.Size - off
	}

	blocks := fs.blocks(in)
	fileOff := off
	firstOff := off
	left := count
	pos := 0
	for left > 0 {
		block, err := fs.offsetToBlock(fileOff, blocks)
		if err != 0 {
			break
		}
		blockOff := firstOff % int64(fs.blockSize)
		ext2Off := int64(block)*int64(fs.blockSize) + blockOff
		n := left
		if avail := int64(fs.blockSize) - blockOff; n > avail {
			n = avail
		}
		got, rerr := fs.dev.ReadAt(buf[pos:pos+int(n)], ext2Off)
		if (rerr != nil && rerr != io.EOF) || int64(got) != n {
			break
		}
		left -= n
		fileOff += n
		pos += int(n)
		firstOff = 0
	}
	return int(count - left), 0
}

/// Write is unsupported: spec.md §1 scopes this reader read-only.
func (fs *Fs_t) Write(in *vfs.Inode_t, buf []byte, off int64) (int, defs.Err_t) {
	return 0, defs.EACCES
}

/// Truncate is unsupported: spec.md §1 scopes this reader read-only.
func (fs *Fs_t) Truncate(in *vfs.Inode_t, size int64) defs.Err_t {
	return defs.EACCES
}

func (fs *Fs_t) readDir(dir *vfs.Inode_t) ([]byte, defs.Err_t) {
	buf := make([]byte, dir.Size)
	n, err := fs.Read(dir, buf, 0)
	if err != 0 || int64(n) != dir.Size {
		return nil, defs.EIO
	}
	return buf, 0
}

/// Lookup implements vfs.InodeOps_i.Lookup: spec.md §4.8's linear
/// dirent scan for a matching name_len+bytes pair.
func (fs *Fs_t) Lookup(dir *vfs.Inode_t, name string) (*vfs.Inode_t, defs.Err_t) {
	data, err := fs.readDir(dir)
	if err != 0 {
		return nil, err
	}
	for pos := 0; pos+direntMinLen <= len(data); {
		ino := binary.LittleEndian.Uint32(data[pos:])
		recLen := binary.LittleEndian.Uint16(data[pos+4:])
		nameLen := int(data[pos+6])
		if recLen == 0 {
			break
		}
		if ino != 0 && nameLen == len(name) && string(data[pos+8:pos+8+nameLen]) == name {
			return dir.Sb.Iget(int(ino))
		}
		pos += int(recLen)
	}
	return nil, defs.ENOENT
}

/// Readdir implements vfs.InodeOps_i.Readdir: the i-th entry's name and
/// inode number, per spec.md §4.8.
func (fs *Fs_t) Readdir(dir *vfs.Inode_t, i int) (string, int, defs.Err_t) {
	data, err := fs.readDir(dir)
	if err != 0 {
		return "", 0, err
	}
	n := 0
	for pos := 0; pos+direntMinLen <= len(data); {
		ino := binary.LittleEndian.Uint32(data[pos:])
		recLen := binary.LittleEndian.Uint16(data[pos+4:])
		nameLen := int(data[pos+6])
		if recLen == 0 {
			break
		}
		if ino != 0 {
			if n == i {
				return string(data[pos+8 : pos+8+nameLen]), int(ino), 0
			}
			n++
		}
		pos += int(recLen)
	}
	return "", 0, defs.ENOENT
}
