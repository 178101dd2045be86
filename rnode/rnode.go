// Package rnode is the typed view of a raidfs inode: a fixed-size on-disk
// record (rawInode) and a Go-native wrapper (Inode) that owns the decoded,
// typed fields the rest of the engine works with.
package rnode

import (
	"bytes"
	"encoding/binary"
	"os"
	"time"

	"github.com/mrpotato53/raidfs"
)

// BlockRef is a block reference as stored inline in an inode or an indirect
// block: either a valid, non-negative logical block number, or the sentinel
// "no block" value. Modeling it as its own type keeps -1 from ever being
// conflated with a valid block index 0.
type BlockRef int32

// NoRef is the sentinel BlockRef meaning "no block referenced here".
const NoRef = BlockRef(raidfs.NoBlock)

// Valid reports whether r refers to an actual block.
func (r BlockRef) Valid() bool {
	return r != NoRef
}

// rawInode is the exact on-disk layout of one inode. It always occupies
// layout.InodeSize (one block) regardless of how many of its bytes are
// meaningful.
type rawInode struct {
	Mode    uint32
	UID     uint32
	GID     uint32
	Size    uint64
	Nlink   uint32
	Atime   int64
	Mtime   int64
	Ctime   int64
	Direct  [raidfs.NumDirectBlocks]int32
	Indirect int32
}

const rawInodeWireSize = 4 + 4 + 4 + 8 + 4 + 8 + 8 + 8 + raidfs.NumDirectBlocks*4 + 4

// Compile-time guarantee that one inode fits within its allotted block.
var _ [raidfs.BlockSize - rawInodeWireSize]byte

// Inode is the decoded, in-memory view of one inode. Number is not stored on
// disk; it's the inode's index in the inode table, supplied by the caller
// that decoded it.
type Inode struct {
	Number  uint32
	Mode    os.FileMode
	UID     uint32
	GID     uint32
	Size    uint64
	Nlink   uint32
	Atime   time.Time
	Mtime   time.Time
	Ctime   time.Time
	Direct  [raidfs.NumDirectBlocks]BlockRef
	Indirect BlockRef
}

// IsDir reports whether this inode describes a directory.
func (n *Inode) IsDir() bool {
	return n.Mode.IsDir()
}

// IsRegular reports whether this inode describes a regular file.
func (n *Inode) IsRegular() bool {
	return n.Mode.IsRegular()
}

// Decode reads an Inode from exactly layout.InodeSize bytes of raw inode
// table data.
func Decode(number uint32, data []byte) (Inode, error) {
	var raw rawInode
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &raw); err != nil {
		return Inode{}, raidfs.Error("decode inode").Wrap(err)
	}

	n := Inode{
		Number:   number,
		Mode:     os.FileMode(raw.Mode),
		UID:      raw.UID,
		GID:      raw.GID,
		Size:     raw.Size,
		Nlink:    raw.Nlink,
		Atime:    time.Unix(raw.Atime, 0).UTC(),
		Mtime:    time.Unix(raw.Mtime, 0).UTC(),
		Ctime:    time.Unix(raw.Ctime, 0).UTC(),
		Indirect: BlockRef(raw.Indirect),
	}
	for i, v := range raw.Direct {
		n.Direct[i] = BlockRef(v)
	}
	return n, nil
}

// Encode serializes n into exactly layout.InodeSize bytes, suitable for
// writing directly into the inode table region of the canonical buffer.
func Encode(n Inode) []byte {
	raw := rawInode{
		Mode:     uint32(n.Mode),
		UID:      n.UID,
		GID:      n.GID,
		Size:     n.Size,
		Nlink:    n.Nlink,
		Atime:    n.Atime.Unix(),
		Mtime:    n.Mtime.Unix(),
		Ctime:    n.Ctime.Unix(),
		Indirect: int32(n.Indirect),
	}
	for i, v := range n.Direct {
		raw.Direct[i] = int32(v)
	}

	buf := new(bytes.Buffer)
	buf.Grow(raidfs.BlockSize)
	binary.Write(buf, binary.LittleEndian, &raw)

	out := make([]byte, raidfs.BlockSize)
	copy(out, buf.Bytes())
	return out
}

// NewEmpty builds a fresh, zero-sized inode with every block reference set
// to the sentinel, the given mode/uid/gid, and every timestamp set to now.
func NewEmpty(number uint32, mode os.FileMode, uid, gid uint32, now time.Time) Inode {
	n := Inode{
		Number:   number,
		Mode:     mode,
		UID:      uid,
		GID:      gid,
		Atime:    now,
		Mtime:    now,
		Ctime:    now,
		Indirect: NoRef,
	}
	for i := range n.Direct {
		n.Direct[i] = NoRef
	}
	return n
}
