package dev

import (
	"sync"

	"beeos/internal/defs"
)

/// RawDisk_t is the D_RAWDISK backing store: a fixed-size byte array
/// standing in for the initrd/block device spec.md §6's boot contract
/// hands the kernel. It implements both Handler_i (for dispatch) and
/// io.ReaderAt directly, so internal/ext2.Create can read straight off
/// it without an adapter.
type RawDisk_t struct {
	mu   sync.Mutex
	data []byte
}

/// NewRawDisk allocates a zeroed backing store of size bytes.
func NewRawDisk(size int) *RawDisk_t {
	return &RawDisk_t{data: make([]byte, size)}
}

/// Load replaces the disk's contents with img (e.g. an initrd image),
/// truncating or zero-extending to the configured size.
func (r *RawDisk_t) Load(img []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := copy(r.data, img)
	for i := n; i < len(r.data); i++ {
		r.data[i] = 0
	}
}

/// ReadAt implements io.ReaderAt.
func (r *RawDisk_t) ReadAt(buf []byte, off int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if off < 0 || off > int64(len(r.data)) {
		return 0, errOutOfRange{}
	}
	n := copy(buf, r.data[off:])
	return n, nil
}

type errOutOfRange struct{}

func (errOutOfRange) Error() string { return "dev: offset out of range" }

/// IO implements Handler_i for the D_RAWDISK major.
func (r *RawDisk_t) IO(rw RW_t, off int64, buf []byte) (int, bool, defs.Err_t) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if off < 0 || off > int64(len(r.data)) {
		return 0, true, defs.EINVAL
	}
	switch rw {
	case DEV_READ:
		n := copy(buf, r.data[off:])
		return n, off+int64(n) >= int64(len(r.data)), 0
	case DEV_WRITE:
		n := copy(r.data[off:], buf)
		return n, off+int64(n) >= int64(len(r.data)), 0
	default:
		return 0, false, defs.EINVAL
	}
}
