package vfs

import (
	"strings"

	"beeos/internal/defs"
)

/// MountTable_t associates absolute sub-paths with a superblock whose
/// root substitutes for that path, spec.md §4.7: "mount associates a
/// sub-path with a different superblock; lookups crossing a mount
/// boundary substitute the mounted superblock's root."
type MountTable_t struct {
	root   *Superblock_t
	mounts map[string]*Superblock_t
}

/// NewMountTable creates a mount table rooted at root.
func NewMountTable(root *Superblock_t) *MountTable_t {
	return &MountTable_t{root: root, mounts: make(map[string]*Superblock_t)}
}

/// Mount grafts sb's root onto path, which must already resolve to a
/// directory in the existing tree (spec.md does not define mounting
/// over a non-existent path).
func (mt *MountTable_t) Mount(path string, sb *Superblock_t) {
	mt.mounts[cleanPath(path)] = sb
}

func cleanPath(path string) string {
	path = strings.Trim(path, "/")
	return path
}

func splitComponents(path string) []string {
	clean := cleanPath(path)
	if clean == "" {
		return nil
	}
	return strings.Split(clean, "/")
}

/// Namei resolves path to an inode, walking from root (absolute paths)
/// or cwd (relative paths), invoking Lookup on each directory
/// component and substituting a mounted superblock's root at a mount
/// boundary. A missing component fails with -ENOENT; resolving through
/// a non-directory fails with -ENOENT per spec.md's "failed components
/// return NOENT."
func (mt *MountTable_t) Namei(path string, cwd *Inode_t) (*Inode_t, defs.Err_t) {
	var cur *Inode_t
	if strings.HasPrefix(path, "/") || cwd == nil {
		cur = mt.root.Root()
	} else {
		cur = cwd
		cur.Ref()
	}

	comps := splitComponents(path)
	consumed := ""
	for _, name := range comps {
		if !cur.IsDir() {
			cur.Unref()
			return nil, defs.ENOENT
		}
		next, err := cur.Ops.Lookup(cur, name)
		cur.Unref()
		if err != 0 {
			return nil, err
		}
		cur = next
		if consumed == "" {
			consumed = name
		} else {
			consumed = consumed + "/" + name
		}
		if sb, ok := mt.mounts[consumed]; ok {
			cur.Unref()
			cur = sb.Root()
		}
	}
	return cur, 0
}
