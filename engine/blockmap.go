package engine

import (
	"github.com/mrpotato53/raidfs"
	"github.com/mrpotato53/raidfs/raidio"
	"github.com/mrpotato53/raidfs/rnode"
)

// blockRefAt returns the block reference stored for logical block index i
// of inode, following the indirect block if necessary. It does not
// allocate; a sentinel BlockRef means the block has never been written.
func (m *Mount) blockRefAt(inode *rnode.Inode, i uint64) (rnode.BlockRef, error) {
	if i < raidfs.NumDirectBlocks {
		return inode.Direct[i], nil
	}

	indirectSlot := i - raidfs.NumDirectBlocks
	if indirectSlot >= raidfs.IndirectRefs {
		return rnode.NoRef, raidfs.ErrNoSpace
	}
	if !inode.Indirect.Valid() {
		return rnode.NoRef, nil
	}

	block, err := raidio.ReadBlock(m.disks, uint64(inode.Indirect))
	if err != nil {
		return rnode.NoRef, err
	}
	return raidio.ReadRef(block, int(indirectSlot)), nil
}

// ensureBlockRefAt returns the block reference for logical block index i of
// inode, allocating a fresh data block (and the indirect block itself, if
// needed) on first use. The caller is responsible for persisting inode
// afterwards, since allocating an indirect block changes inode.Indirect.
func (m *Mount) ensureBlockRefAt(inode *rnode.Inode, i uint64) (rnode.BlockRef, error) {
	if i >= raidfs.MaxFileBlocks {
		return rnode.NoRef, raidfs.ErrNoSpace
	}

	if i < raidfs.NumDirectBlocks {
		if inode.Direct[i].Valid() {
			return inode.Direct[i], nil
		}
		newBlock, err := raidio.AllocateBlock(m.disks)
		if err != nil {
			return rnode.NoRef, err
		}
		inode.Direct[i] = rnode.BlockRef(newBlock)
		return inode.Direct[i], nil
	}

	indirectSlot := int(i - raidfs.NumDirectBlocks)

	if !inode.Indirect.Valid() {
		newIndirect, err := raidio.AllocateBlock(m.disks)
		if err != nil {
			return rnode.NoRef, err
		}
		inode.Indirect = rnode.BlockRef(newIndirect)
		// AllocateBlock zeroed the block, but a zero slot would read back
		// as a valid reference to block 0, so every slot is overwritten
		// with the sentinel.
		block, err := raidio.ReadBlock(m.disks, uint64(newIndirect))
		if err != nil {
			return rnode.NoRef, err
		}
		for slot := 0; slot < raidfs.IndirectRefs; slot++ {
			raidio.WriteRef(block, slot, rnode.NoRef)
		}
		if err := raidio.WriteBlock(m.disks, uint64(newIndirect), block); err != nil {
			return rnode.NoRef, err
		}
	}

	block, err := raidio.ReadBlock(m.disks, uint64(inode.Indirect))
	if err != nil {
		return rnode.NoRef, err
	}

	ref := raidio.ReadRef(block, indirectSlot)
	if ref.Valid() {
		return ref, nil
	}

	newBlock, err := raidio.AllocateBlock(m.disks)
	if err != nil {
		return rnode.NoRef, err
	}
	raidio.WriteRef(block, indirectSlot, rnode.BlockRef(newBlock))
	if err := raidio.WriteBlock(m.disks, uint64(inode.Indirect), block); err != nil {
		return rnode.NoRef, err
	}
	return rnode.BlockRef(newBlock), nil
}

// allocatedBlockRefs returns every non-sentinel direct and indirect block
// reference of inode, used by directory iteration and by Rmdir's
// empty-check.
func (m *Mount) allocatedBlockRefs(inode *rnode.Inode) ([]rnode.BlockRef, error) {
	refs := make([]rnode.BlockRef, 0, raidfs.NumDirectBlocks)
	for _, d := range inode.Direct {
		if d.Valid() {
			refs = append(refs, d)
		}
	}

	if inode.Indirect.Valid() {
		block, err := raidio.ReadBlock(m.disks, uint64(inode.Indirect))
		if err != nil {
			return nil, err
		}
		for i := 0; i < raidfs.IndirectRefs; i++ {
			ref := raidio.ReadRef(block, i)
			if ref.Valid() {
				refs = append(refs, ref)
			}
		}
	}

	return refs, nil
}
