package engine

import (
	"strings"

	"github.com/mrpotato53/raidfs"
	"github.com/mrpotato53/raidfs/raidio"
	"github.com/mrpotato53/raidfs/rnode"
)

// splitPath breaks a slash-delimited path into its nonempty segments,
// tolerating a trailing slash and repeated slashes.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolve walks path from the root inode to the inode it names.
func (m *Mount) resolve(path string) (rnode.Inode, error) {
	cur, err := raidio.ReadInode(m.disks, raidfs.RootInodeNumber)
	if err != nil {
		return rnode.Inode{}, err
	}

	for _, seg := range splitPath(path) {
		if !cur.IsDir() {
			return rnode.Inode{}, raidfs.ErrNotADirectory
		}

		inum, found, err := m.findEntry(&cur, seg)
		if err != nil {
			return rnode.Inode{}, err
		}
		if !found {
			return rnode.Inode{}, raidfs.ErrNotFound
		}

		cur, err = raidio.ReadInode(m.disks, inum)
		if err != nil {
			return rnode.Inode{}, err
		}
	}

	return cur, nil
}

// resolveParent resolves the parent directory of path and returns it along
// with path's final segment. It fails with raidfs.ErrInvalidArgument for the
// root path, which has no parent.
func (m *Mount) resolveParent(path string) (rnode.Inode, string, error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return rnode.Inode{}, "", raidfs.ErrInvalidArgument.WithMessage("path has no parent")
	}

	base := segs[len(segs)-1]
	parentPath := "/" + strings.Join(segs[:len(segs)-1], "/")

	parent, err := m.resolve(parentPath)
	if err != nil {
		return rnode.Inode{}, "", err
	}
	return parent, base, nil
}
