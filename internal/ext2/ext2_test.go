package ext2

import (
	"bytes"
	"encoding/binary"
	"testing"

	"beeos/internal/defs"
)

// fakeDisk backs io.ReaderAt with an in-memory byte slice, standing in
// for the block device spec.md §4.8 reads through.
type fakeDisk struct{ data []byte }

func (d *fakeDisk) ReadAt(buf []byte, off int64) (int, error) {
	n := copy(buf, d.data[off:])
	return n, nil
}

func putU32(b []byte, off int, v uint32) { binary.LittleEndian.PutUint32(b[off:], v) }
func putU16(b []byte, off int, v uint16) { binary.LittleEndian.PutUint16(b[off:], v) }

// buildImage assembles a minimal 1024-byte-block ext2 image with a
// single group: root directory (ino 2) containing one regular file
// "hello.txt" (ino 11).
func buildImage(t *testing.T) []byte {
	t.Helper()
	const blockSize = 1024
	const totalBlocks = 32
	img := make([]byte, totalBlocks*blockSize)

	// Superblock at byte 1024 (block 1).
	sb := img[1024 : 1024+1024]
	putU32(sb, 0, 64)   // s_inodes_count
	putU32(sb, 4, totalBlocks) // s_blocks_count
	putU32(sb, 24, 0)   // s_log_block_size => 1024-byte blocks
	putU32(sb, 32, totalBlocks) // s_blocks_per_group (single group)
	putU32(sb, 40, 64)  // s_inodes_per_group
	putU16(sb, 56, magic)

	// Group descriptor table: block size 1024 => gdBlock = 3 => block index 2.
	gdBlock := 2
	gd := img[gdBlock*blockSize : gdBlock*blockSize+groupDescLen]
	inodeTableBlock := uint32(4)
	putU32(gd, 8, inodeTableBlock)

	// Inode table: 128-byte inodes, 8 per 1024-byte block.
	writeInode := func(ino int, mode uint16, size uint32, dataBlock uint32) {
		local := ino - 1
		blockno := int(inodeTableBlock) + (local*diskInodeLen)/1024
		idx := local % (1024 / diskInodeLen)
		rec := img[blockno*blockSize+idx*diskInodeLen : blockno*blockSize+(idx+1)*diskInodeLen]
		putU16(rec, 0, mode)
		putU32(rec, 4, size)
		putU32(rec, 40, dataBlock) // blocks[0]
	}

	const rootDataBlock = 16
	const fileDataBlock = 17
	const fileIno = 11

	// Root directory content: one dirent for "hello.txt".
	var dirBuf bytes.Buffer
	name := "hello.txt"
	recLen := direntMinLen + len(name)
	if recLen%4 != 0 {
		recLen += 4 - recLen%4
	}
	dirent := make([]byte, recLen)
	putU32(dirent, 0, uint32(fileIno))
	putU16(dirent, 4, uint16(recLen))
	dirent[6] = byte(len(name))
	dirent[7] = 1 // file_type: regular
	copy(dirent[8:], name)
	dirBuf.Write(dirent)
	copy(img[rootDataBlock*blockSize:], dirBuf.Bytes())

	writeInode(rootIno, 0x4000|0755, uint32(dirBuf.Len()), rootDataBlock)

	fileContent := []byte("hello ext2 world")
	copy(img[fileDataBlock*blockSize:], fileContent)
	writeInode(fileIno, 0x8000|0644, uint32(len(fileContent)), fileDataBlock)

	return img
}

func TestCreateLookupReadRoundTrip(t *testing.T) {
	img := buildImage(t)
	disk := &fakeDisk{data: img}

	sb, err := Create(1, disk)
	if err != 0 {
		t.Fatalf("Create failed: %v", err)
	}
	root := sb.Root()
	defer root.Unref()
	if !root.IsDir() {
		t.Fatal("root inode should be a directory")
	}

	file, err := root.Ops.Lookup(root, "hello.txt")
	if err != 0 {
		t.Fatalf("Lookup failed: %v", err)
	}
	defer file.Unref()

	buf := make([]byte, 64)
	n, rerr := file.Ops.Read(file, buf, 0)
	if rerr != 0 {
		t.Fatalf("Read failed: %v", rerr)
	}
	if got := string(buf[:n]); got != "hello ext2 world" {
		t.Fatalf("Read = %q, want %q", got, "hello ext2 world")
	}
}

func TestLookupMissingNameReturnsENOENT(t *testing.T) {
	img := buildImage(t)
	disk := &fakeDisk{data: img}
	sb, err := Create(1, disk)
	if err != 0 {
		t.Fatalf("Create failed: %v", err)
	}
	root := sb.Root()
	defer root.Unref()

	if _, err := root.Ops.Lookup(root, "nope.txt"); err != defs.ENOENT {
		t.Fatalf("Lookup of missing name = %v, want -ENOENT", err)
	}
}

func TestReaddirReturnsEntryThenEOF(t *testing.T) {
	img := buildImage(t)
	disk := &fakeDisk{data: img}
	sb, err := Create(1, disk)
	if err != 0 {
		t.Fatalf("Create failed: %v", err)
	}
	root := sb.Root()
	defer root.Unref()

	name, ino, err := root.Ops.Readdir(root, 0)
	if err != 0 || name != "hello.txt" || ino != 11 {
		t.Fatalf("Readdir(0) = (%q,%d,%v), want (hello.txt,11,0)", name, ino, err)
	}
	if _, _, err := root.Ops.Readdir(root, 1); err != defs.ENOENT {
		t.Fatalf("Readdir(1) = %v, want -ENOENT (past the single entry)", err)
	}
}

func TestOffsetToBlockPanicsOnDoubleIndirect(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic resolving a double-indirect offset")
		}
	}()
	fs := &Fs_t{blockSize: 1024, logBlockSize: 0}
	var blocks blockPtrs_t
	// offset past direct (12) + single-indirect (256) blocks in 1KiB units.
	farOffset := int64(12+256+1) * 1024
	fs.offsetToBlock(farOffset, &blocks)
}
