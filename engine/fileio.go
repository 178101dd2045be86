package engine

import (
	"github.com/mrpotato53/raidfs"
	"github.com/mrpotato53/raidfs/raidio"
	"github.com/mrpotato53/raidfs/rnode"
)

// readAt copies up to len(buf) bytes starting at offset out of inode's data,
// stopping at inode.Size.
func (m *Mount) readAt(inode *rnode.Inode, offset uint64, buf []byte) (int, error) {
	if offset >= inode.Size {
		return 0, nil
	}
	want := uint64(len(buf))
	if offset+want > inode.Size {
		want = inode.Size - offset
	}

	var read uint64
	for read < want {
		logicalBlock := (offset + read) / raidfs.BlockSize
		blockOff := (offset + read) % raidfs.BlockSize
		n := raidfs.BlockSize - blockOff
		if remaining := want - read; n > remaining {
			n = remaining
		}

		ref, err := m.blockRefAt(inode, logicalBlock)
		if err != nil {
			return int(read), err
		}
		if !ref.Valid() {
			for i := uint64(0); i < n; i++ {
				buf[read+i] = 0
			}
		} else {
			block, err := raidio.ReadBlock(m.disks, uint64(ref))
			if err != nil {
				return int(read), err
			}
			copy(buf[read:read+n], block[blockOff:blockOff+n])
		}

		read += n
	}

	return int(read), nil
}

// writeAt writes data at offset into inode's data, allocating blocks as
// needed and growing inode.Size to cover the write. The caller must persist
// inode afterward.
func (m *Mount) writeAt(inode *rnode.Inode, offset uint64, data []byte) (int, error) {
	var written uint64
	total := uint64(len(data))

	for written < total {
		logicalBlock := (offset + written) / raidfs.BlockSize
		blockOff := (offset + written) % raidfs.BlockSize
		n := raidfs.BlockSize - blockOff
		if remaining := total - written; n > remaining {
			n = remaining
		}

		ref, err := m.ensureBlockRefAt(inode, logicalBlock)
		if err != nil {
			return int(written), err
		}

		block, err := raidio.ReadBlock(m.disks, uint64(ref))
		if err != nil {
			return int(written), err
		}
		copy(block[blockOff:blockOff+n], data[written:written+n])
		if err := raidio.WriteBlock(m.disks, uint64(ref), block); err != nil {
			return int(written), err
		}

		written += n
		if offset+written > inode.Size {
			inode.Size = offset + written
		}
	}

	return int(written), nil
}
