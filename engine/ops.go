package engine

import (
	"os"

	"github.com/mrpotato53/raidfs"
	"github.com/mrpotato53/raidfs/raidio"
	"github.com/mrpotato53/raidfs/rnode"
)

// DirEntry is one entry a directory listing reports, including the
// synthesized "." and ".." records ReadDir always adds first.
type DirEntry struct {
	Name string
	Inum uint32
}

// GetAttr resolves path and returns its inode.
func (m *Mount) GetAttr(path string) (rnode.Inode, error) {
	return m.resolve(path)
}

// Mknod creates a regular file at path with the given mode, uid, and gid.
// It fails with raidfs.ErrExists if path is already occupied.
func (m *Mount) Mknod(path string, mode os.FileMode, uid, gid uint32) (rnode.Inode, error) {
	parent, name, err := m.resolveParent(path)
	if err != nil {
		return rnode.Inode{}, err
	}
	if !parent.IsDir() {
		return rnode.Inode{}, raidfs.ErrNotADirectory
	}
	if _, found, err := m.findEntry(&parent, name); err != nil {
		return rnode.Inode{}, err
	} else if found {
		return rnode.Inode{}, raidfs.ErrExists
	}

	child, err := raidio.AllocateInode(m.disks, uint32(mode.Perm()), uid, gid, m.now)
	if err != nil {
		return rnode.Inode{}, err
	}
	child.Nlink = 1
	if err := raidio.WriteInode(m.disks, child); err != nil {
		return rnode.Inode{}, err
	}

	if err := m.allocEntry(&parent, child.Number, name); err != nil {
		raidio.FreeInode(m.disks, child.Number)
		return rnode.Inode{}, err
	}
	if err := raidio.WriteInode(m.disks, parent); err != nil {
		return rnode.Inode{}, err
	}

	return child, nil
}

// Mkdir creates a directory at path. A freshly created directory has a
// link count of 2; creating it also adds one to its parent's link count,
// matching ".." implicitly referencing the parent.
func (m *Mount) Mkdir(path string, mode os.FileMode, uid, gid uint32) (rnode.Inode, error) {
	parent, name, err := m.resolveParent(path)
	if err != nil {
		return rnode.Inode{}, err
	}
	if !parent.IsDir() {
		return rnode.Inode{}, raidfs.ErrNotADirectory
	}
	if _, found, err := m.findEntry(&parent, name); err != nil {
		return rnode.Inode{}, err
	} else if found {
		return rnode.Inode{}, raidfs.ErrExists
	}

	child, err := raidio.AllocateInode(m.disks, uint32(mode.Perm())|uint32(os.ModeDir), uid, gid, m.now)
	if err != nil {
		return rnode.Inode{}, err
	}
	child.Nlink = 2
	if err := raidio.WriteInode(m.disks, child); err != nil {
		return rnode.Inode{}, err
	}

	if err := m.allocEntry(&parent, child.Number, name); err != nil {
		raidio.FreeInode(m.disks, child.Number)
		return rnode.Inode{}, err
	}
	parent.Nlink++
	if err := raidio.WriteInode(m.disks, parent); err != nil {
		return rnode.Inode{}, err
	}

	return child, nil
}

// Unlink removes the directory entry at path and frees its inode once no
// entry references it. It fails with raidfs.ErrIsADirectory if path names a
// directory.
func (m *Mount) Unlink(path string) error {
	parent, name, err := m.resolveParent(path)
	if err != nil {
		return err
	}

	inum, found, err := m.findEntry(&parent, name)
	if err != nil {
		return err
	}
	if !found {
		return raidfs.ErrNotFound
	}

	target, err := raidio.ReadInode(m.disks, inum)
	if err != nil {
		return err
	}
	if target.IsDir() {
		return raidfs.ErrIsADirectory
	}

	if err := m.clearEntry(&parent, name); err != nil {
		return err
	}

	target.Nlink--
	if target.Nlink == 0 {
		return raidio.FreeInode(m.disks, inum)
	}
	return raidio.WriteInode(m.disks, target)
}

// Rmdir removes the empty directory at path. It fails with
// raidfs.ErrPermissionDenied on the root, raidfs.ErrNotADirectory if path
// names a regular file, and raidfs.ErrDirectoryNotEmpty if the directory
// has any live entries.
func (m *Mount) Rmdir(path string) error {
	if len(splitPath(path)) == 0 {
		return raidfs.ErrPermissionDenied
	}

	parent, name, err := m.resolveParent(path)
	if err != nil {
		return err
	}

	inum, found, err := m.findEntry(&parent, name)
	if err != nil {
		return err
	}
	if !found {
		return raidfs.ErrNotFound
	}

	target, err := raidio.ReadInode(m.disks, inum)
	if err != nil {
		return err
	}
	if !target.IsDir() {
		return raidfs.ErrNotADirectory
	}

	empty, err := m.dirIsEmpty(&target)
	if err != nil {
		return err
	}
	if !empty {
		return raidfs.ErrDirectoryNotEmpty
	}

	if err := m.clearEntry(&parent, name); err != nil {
		return err
	}
	if err := raidio.FreeInode(m.disks, inum); err != nil {
		return err
	}

	parent.Nlink--
	return raidio.WriteInode(m.disks, parent)
}

// Read fills buf with up to len(buf) bytes from path starting at offset,
// returning the number of bytes actually read.
func (m *Mount) Read(path string, offset uint64, buf []byte) (int, error) {
	inode, err := m.resolve(path)
	if err != nil {
		return 0, err
	}
	if inode.IsDir() {
		return 0, raidfs.ErrIsADirectory
	}
	return m.readAt(&inode, offset, buf)
}

// Write writes data to path starting at offset, growing the file and
// allocating blocks as needed, and returns the number of bytes written.
func (m *Mount) Write(path string, offset uint64, data []byte) (int, error) {
	inode, err := m.resolve(path)
	if err != nil {
		return 0, err
	}
	if inode.IsDir() {
		return 0, raidfs.ErrIsADirectory
	}

	n, err := m.writeAt(&inode, offset, data)
	if err != nil {
		raidio.WriteInode(m.disks, inode)
		return n, err
	}
	if err := raidio.WriteInode(m.disks, inode); err != nil {
		return n, err
	}
	return n, nil
}

// ReadDir lists path's contents, with "." and ".." synthesized first,
// followed by every live entry in block/slot order.
func (m *Mount) ReadDir(path string) ([]DirEntry, error) {
	dir, err := m.resolve(path)
	if err != nil {
		return nil, err
	}
	if !dir.IsDir() {
		return nil, raidfs.ErrNotADirectory
	}

	parent, _, err := m.resolveParent(path)
	parentInum := dir.Number
	if err == nil {
		parentInum = parent.Number
	}

	entries, err := m.listEntries(&dir)
	if err != nil {
		return nil, err
	}

	out := make([]DirEntry, 0, len(entries)+2)
	out = append(out, DirEntry{Name: ".", Inum: dir.Number})
	out = append(out, DirEntry{Name: "..", Inum: parentInum})
	for _, e := range entries {
		out = append(out, DirEntry{Name: e.Name, Inum: e.Inum})
	}
	return out, nil
}

// Stat reports filesystem capacity, the way a host framework surfaces it
// for statfs(2).
func (m *Mount) Stat() Stat {
	geo := m.disks.Geometry

	var usedBlocks uint64
	for l := uint64(0); l < geo.NumDataBlocks; l++ {
		if raidio.BlockExists(m.disks, l) {
			usedBlocks++
		}
	}

	var usedInodes uint64
	for n := uint64(0); n < geo.NumInodes; n++ {
		if raidio.InodeAllocated(m.disks, uint32(n)) {
			usedInodes++
		}
	}

	return Stat{
		BlockSize:   raidfs.BlockSize,
		TotalBlocks: geo.NumDataBlocks,
		FreeBlocks:  geo.NumDataBlocks - usedBlocks,
		TotalInodes: geo.NumInodes,
		FreeInodes:  geo.NumInodes - usedInodes,
	}
}

