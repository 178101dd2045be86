package engine

import (
	"github.com/mrpotato53/raidfs"
	"github.com/mrpotato53/raidfs/raidio"
	"github.com/mrpotato53/raidfs/rnode"
)

// findEntry searches every block of dir for name, returning the inode number
// it names.
func (m *Mount) findEntry(dir *rnode.Inode, name string) (uint32, bool, error) {
	refs, err := m.allocatedBlockRefs(dir)
	if err != nil {
		return 0, false, err
	}

	for _, ref := range refs {
		block, err := raidio.ReadBlock(m.disks, uint64(ref))
		if err != nil {
			return 0, false, err
		}
		for slot := 0; slot < raidfs.EntriesPerBlock; slot++ {
			e := decodeDirEntry(entrySlot(block, slot))
			if e.Inum != 0 && e.Name == name {
				return e.Inum, true, nil
			}
		}
	}

	return 0, false, nil
}

// allocEntry writes a (childIno, name) record into dir, reusing a free slot
// in an existing directory block before allocating a new one. dir's
// Direct/Size fields may be mutated; the caller must persist dir via
// raidio.WriteInode afterward. New directory blocks are taken only from
// dir's direct references: a directory that has exhausted them fails with
// ErrNoSpace rather than growing into its indirect block.
func (m *Mount) allocEntry(dir *rnode.Inode, childIno uint32, name string) error {
	if len(name) > raidfs.MaxEntryNameLength {
		return raidfs.ErrNameTooLong
	}

	refs, err := m.allocatedBlockRefs(dir)
	if err != nil {
		return err
	}

	for _, ref := range refs {
		block, err := raidio.ReadBlock(m.disks, uint64(ref))
		if err != nil {
			return err
		}
		for slot := 0; slot < raidfs.EntriesPerBlock; slot++ {
			e := decodeDirEntry(entrySlot(block, slot))
			if e.Inum == 0 {
				encodeDirEntry(dirEntry{Inum: childIno, Name: name}, entrySlot(block, slot))
				return raidio.WriteBlock(m.disks, uint64(ref), block)
			}
		}
	}

	freeSlot := -1
	for i, d := range dir.Direct {
		if !d.Valid() {
			freeSlot = i
			break
		}
	}
	if freeSlot == -1 {
		return raidfs.ErrNoSpace
	}

	newBlockIdx, err := raidio.AllocateBlock(m.disks)
	if err != nil {
		return err
	}
	dir.Direct[freeSlot] = rnode.BlockRef(newBlockIdx)

	block := make([]byte, raidfs.BlockSize)
	encodeDirEntry(dirEntry{Inum: childIno, Name: name}, entrySlot(block, 0))
	if err := raidio.WriteBlock(m.disks, uint64(newBlockIdx), block); err != nil {
		return err
	}

	dir.Size += raidfs.BlockSize
	return nil
}

// clearEntry zeroes the record named name in dir, marking the slot free
// again. If that leaves the directory block with no live entries, the block
// is freed, dir's reference to it is cleared, dir.Size shrinks by one block,
// and dir is persisted. It returns raidfs.ErrNotFound if no such entry
// exists.
func (m *Mount) clearEntry(dir *rnode.Inode, name string) error {
	refs, err := m.allocatedBlockRefs(dir)
	if err != nil {
		return err
	}

	for _, ref := range refs {
		block, err := raidio.ReadBlock(m.disks, uint64(ref))
		if err != nil {
			return err
		}
		for slot := 0; slot < raidfs.EntriesPerBlock; slot++ {
			e := decodeDirEntry(entrySlot(block, slot))
			if e.Inum != 0 && e.Name == name {
				encodeDirEntry(dirEntry{}, entrySlot(block, slot))
				for s := 0; s < raidfs.EntriesPerBlock; s++ {
					if decodeDirEntry(entrySlot(block, s)).Inum != 0 {
						return raidio.WriteBlock(m.disks, uint64(ref), block)
					}
				}
				for i, d := range dir.Direct {
					if d == ref {
						dir.Direct[i] = rnode.NoRef
					}
				}
				dir.Size -= raidfs.BlockSize
				if err := raidio.FreeBlock(m.disks, uint64(ref)); err != nil {
					return err
				}
				return raidio.WriteInode(m.disks, *dir)
			}
		}
	}

	return raidfs.ErrNotFound
}

// dirIsEmpty reports whether dir contains no live entries in any of its
// blocks.
func (m *Mount) dirIsEmpty(dir *rnode.Inode) (bool, error) {
	refs, err := m.allocatedBlockRefs(dir)
	if err != nil {
		return false, err
	}

	for _, ref := range refs {
		block, err := raidio.ReadBlock(m.disks, uint64(ref))
		if err != nil {
			return false, err
		}
		for slot := 0; slot < raidfs.EntriesPerBlock; slot++ {
			e := decodeDirEntry(entrySlot(block, slot))
			if e.Inum != 0 {
				return false, nil
			}
		}
	}

	return true, nil
}

// listEntries returns every live (inum, name) record across dir's blocks, in
// block and slot order.
func (m *Mount) listEntries(dir *rnode.Inode) ([]dirEntry, error) {
	refs, err := m.allocatedBlockRefs(dir)
	if err != nil {
		return nil, err
	}

	var out []dirEntry
	for _, ref := range refs {
		block, err := raidio.ReadBlock(m.disks, uint64(ref))
		if err != nil {
			return nil, err
		}
		for slot := 0; slot < raidfs.EntriesPerBlock; slot++ {
			e := decodeDirEntry(entrySlot(block, slot))
			if e.Inum != 0 {
				out = append(out, e)
			}
		}
	}

	return out, nil
}
