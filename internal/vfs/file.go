package vfs

import (
	"io"
	"sync"

	"beeos/internal/defs"
)

/// File_t is an open-file object: {refcount, offset, inode}, spec.md
/// §4.7. Several fds (via dup, or a fork'd child) may share one
/// File_t, which is why it carries its own refcount distinct from the
/// inode's.
type File_t struct {
	mu       sync.Mutex
	refcount int
	offset   int64
	Inode    *Inode_t
}

const (
	SEEK_SET = 0
	SEEK_CUR = 1
	SEEK_END = 2
)

/// Open wraps an already-resolved inode in a fresh File_t with a
/// starting refcount of 1 and offset 0. The caller's inode reference is
/// consumed (transferred into the File_t).
func Open(in *Inode_t) *File_t {
	return &File_t{refcount: 1, Inode: in}
}

/// Ref increments the file's refcount (dup, fork).
func (f *File_t) Ref() {
	f.mu.Lock()
	f.refcount++
	f.mu.Unlock()
}

/// Unref decrements the file's refcount, releasing the underlying
/// inode reference once no fd references this File_t anymore.
func (f *File_t) Unref() {
	f.mu.Lock()
	f.refcount--
	dead := f.refcount == 0
	f.mu.Unlock()
	if dead {
		f.Inode.Unref()
	}
}

/// Read reads into buf at the file's current offset, advancing it.
func (f *File_t) Read(buf []byte) (int, defs.Err_t) {
	f.mu.Lock()
	off := f.offset
	f.mu.Unlock()

	n, err := f.Inode.Ops.Read(f.Inode, buf, off)
	if err != 0 {
		return 0, err
	}
	f.mu.Lock()
	f.offset += int64(n)
	f.mu.Unlock()
	return n, 0
}

/// Write writes buf at the file's current offset, advancing it.
func (f *File_t) Write(buf []byte) (int, defs.Err_t) {
	f.mu.Lock()
	off := f.offset
	f.mu.Unlock()

	n, err := f.Inode.Ops.Write(f.Inode, buf, off)
	if err != 0 {
		return 0, err
	}
	f.mu.Lock()
	f.offset += int64(n)
	f.mu.Unlock()
	return n, 0
}

/// Lseek repositions the file's offset per whence, rejecting a
/// negative result with -EINVAL.
func (f *File_t) Lseek(off int64, whence int) (int64, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var newOff int64
	switch whence {
	case SEEK_SET:
		newOff = off
	case SEEK_CUR:
		newOff = f.offset + off
	case SEEK_END:
		newOff = f.Inode.Size + off
	default:
		return 0, defs.EINVAL
	}
	if newOff < 0 {
		return 0, defs.EINVAL
	}
	f.offset = newOff
	return newOff, 0
}

// ReadAt implements io.ReaderAt over the file's inode, at a caller-
// supplied offset independent of the file's cursor — execve uses this
// to hand an opened executable straight to internal/elf.Parse.
func (f *File_t) ReadAt(buf []byte, off int64) (int, error) {
	n, err := f.Inode.Ops.Read(f.Inode, buf, off)
	if err != 0 {
		return n, errno_t(err)
	}
	if n < len(buf) {
		return n, io.EOF
	}
	return n, nil
}

type errno_t defs.Err_t

func (e errno_t) Error() string { return "vfs i/o error" }
