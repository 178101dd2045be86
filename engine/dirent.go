package engine

import (
	"bytes"

	"github.com/mrpotato53/raidfs"
)

// dirEntry is the decoded form of one fixed-width directory entry record:
// an inode number, 0 meaning the slot is free, and a zero-padded name.
type dirEntry struct {
	Inum uint32
	Name string
}

func decodeDirEntry(raw []byte) dirEntry {
	inum := uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
	nameBytes := raw[4:raidfs.DirEntrySize]
	name := nameBytes
	if idx := bytes.IndexByte(nameBytes, 0); idx >= 0 {
		name = nameBytes[:idx]
	}
	return dirEntry{Inum: inum, Name: string(name)}
}

func encodeDirEntry(e dirEntry, raw []byte) {
	raw[0] = byte(e.Inum)
	raw[1] = byte(e.Inum >> 8)
	raw[2] = byte(e.Inum >> 16)
	raw[3] = byte(e.Inum >> 24)
	nameBytes := raw[4:raidfs.DirEntrySize]
	for i := range nameBytes {
		nameBytes[i] = 0
	}
	copy(nameBytes, e.Name)
}

// entrySlot returns a view of the i'th directory entry slot within a block
// buffer.
func entrySlot(block []byte, i int) []byte {
	off := i * raidfs.DirEntrySize
	return block[off : off+raidfs.DirEntrySize]
}
