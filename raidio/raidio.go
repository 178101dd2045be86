// Package raidio is the RAID-aware block addressing and I/O layer: it
// translates a logical block number into the physical (image, offset) pair
// to read or write, and implements majority-vote reconciliation for
// mirrored-verified reads.
package raidio

import (
	"os"
	"time"

	"github.com/mrpotato53/raidfs"
	"github.com/mrpotato53/raidfs/bitalloc"
	"github.com/mrpotato53/raidfs/diskset"
	"github.com/mrpotato53/raidfs/layout"
	"github.com/mrpotato53/raidfs/rnode"
)

// splitStriped maps a logical data block index to the image that holds it
// and that block's local index within the image: image (L mod N) at local
// index (L div N).
func splitStriped(l uint64, numImages int) (imageIndex int, local uint64) {
	n := uint64(numImages)
	return int(l % n), l / n
}

func dataBitmapBytes(geo layout.Geometry) int {
	return int(layout.BitmapBytes(geo.NumDataBlocks))
}

func inodeBitmapBytes(geo layout.Geometry) int {
	return int(layout.BitmapBytes(geo.NumInodes))
}

// dataBitmapView returns the []byte view of the data bitmap that owns bit
// `local` for the given logical block's owning image: under striped mode
// the bitmap lives privately in that image's own mapped region, under
// mirrored modes it lives in the shared canonical buffer.
func dataBitmapView(s *diskset.Set, imageIndex int) []byte {
	n := dataBitmapBytes(s.Geometry)
	if s.Mode == raidfs.RAIDStriped {
		img := s.Images[imageIndex]
		return img.DataAt(s.Geometry.DataBitmapOff, uint64(n))
	}
	return s.Canonical[s.Geometry.DataBitmapOff : s.Geometry.DataBitmapOff+uint64(n)]
}

func inodeBitmapView(s *diskset.Set) []byte {
	n := inodeBitmapBytes(s.Geometry)
	return s.Canonical[s.Geometry.InodeBitmapOff : s.Geometry.InodeBitmapOff+uint64(n)]
}

// BlockExists reports whether logical data block l is currently allocated.
func BlockExists(s *diskset.Set, l uint64) bool {
	if l >= s.Geometry.NumDataBlocks {
		return false
	}
	if s.Mode == raidfs.RAIDStriped {
		imageIndex, local := splitStriped(l, s.NumImages())
		return bitalloc.Get(dataBitmapView(s, imageIndex), int(local))
	}
	return bitalloc.Get(dataBitmapView(s, 0), int(l))
}

// ReadBlock returns a fresh copy of logical data block l's contents. Under
// mirrored-verified mode, it reconciles the images by majority vote,
// breaking ties by the lowest image index.
func ReadBlock(s *diskset.Set, l uint64) ([]byte, error) {
	if !BlockExists(s, l) {
		return nil, raidfs.ErrNotFound
	}

	switch s.Mode {
	case raidfs.RAIDStriped:
		imageIndex, local := splitStriped(l, s.NumImages())
		off := s.Geometry.DataRegionOff + local*raidfs.BlockSize
		out := make([]byte, raidfs.BlockSize)
		copy(out, s.Images[imageIndex].DataAt(off, raidfs.BlockSize))
		return out, nil

	case raidfs.RAIDMirrored:
		off := s.Geometry.DataRegionOff + l*raidfs.BlockSize
		out := make([]byte, raidfs.BlockSize)
		copy(out, s.Images[0].DataAt(off, raidfs.BlockSize))
		return out, nil

	default: // RAIDMirroredVerified
		off := s.Geometry.DataRegionOff + l*raidfs.BlockSize
		copies := make([][]byte, s.NumImages())
		for i, img := range s.Images {
			copies[i] = img.DataAt(off, raidfs.BlockSize)
		}
		return majorityVote(copies), nil
	}
}

// majorityVote picks the copy with the most byte-identical peers, breaking
// ties by the lowest index.
func majorityVote(copies [][]byte) []byte {
	bestIndex := 0
	bestCount := -1
	for i := range copies {
		count := 0
		for j := range copies {
			if i == j {
				continue
			}
			if bytesEqual(copies[i], copies[j]) {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			bestIndex = i
		}
	}

	out := make([]byte, len(copies[bestIndex]))
	copy(out, copies[bestIndex])
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// WriteBlock writes exactly one block's worth of data to logical data block
// l, which must already be allocated. Under striped mode only the owning
// image is written; under mirrored modes every image's data region is
// written at the same offset.
func WriteBlock(s *diskset.Set, l uint64, data []byte) error {
	if !BlockExists(s, l) {
		return raidfs.ErrNotFound
	}
	writeBlockUnchecked(s, l, data)
	return nil
}

func writeBlockUnchecked(s *diskset.Set, l uint64, data []byte) {
	if s.Mode == raidfs.RAIDStriped {
		imageIndex, local := splitStriped(l, s.NumImages())
		off := s.Geometry.DataRegionOff + local*raidfs.BlockSize
		s.BroadcastDataBlock([]*diskset.Image{s.Images[imageIndex]}, off, data)
		return
	}

	off := s.Geometry.DataRegionOff + l*raidfs.BlockSize
	s.BroadcastDataBlock(s.Images, off, data)
}

// AllocateBlock scans for the first unallocated logical data block in
// ascending order, marks it allocated, zeroes its contents, and returns its
// logical index. It returns raidfs.ErrNoSpace if none is free.
func AllocateBlock(s *diskset.Set) (uint64, error) {
	n := s.NumImages()
	zero := make([]byte, raidfs.BlockSize)

	for l := uint64(0); l < s.Geometry.NumDataBlocks; l++ {
		var imageIndex int
		var local uint64
		if s.Mode == raidfs.RAIDStriped {
			imageIndex, local = splitStriped(l, n)
		} else {
			local = l
		}

		bm := dataBitmapView(s, imageIndex)
		if bitalloc.Get(bm, int(local)) {
			continue
		}
		bitalloc.Set(bm, int(local), true)
		if s.Mode != raidfs.RAIDStriped {
			s.BroadcastMetadata()
		}
		writeBlockUnchecked(s, l, zero)
		return l, nil
	}

	return 0, raidfs.ErrNoSpace
}

// FreeBlock clears the allocation bit for logical data block l and zeroes
// its contents.
func FreeBlock(s *diskset.Set, l uint64) error {
	if !BlockExists(s, l) {
		return nil
	}

	n := s.NumImages()
	var imageIndex int
	var local uint64
	if s.Mode == raidfs.RAIDStriped {
		imageIndex, local = splitStriped(l, n)
	} else {
		local = l
	}

	bm := dataBitmapView(s, imageIndex)
	bitalloc.Free(bm, int(local))
	if s.Mode != raidfs.RAIDStriped {
		s.BroadcastMetadata()
	}

	writeBlockUnchecked(s, l, make([]byte, raidfs.BlockSize))
	return nil
}

// AllocateInode finds the first free inode number, initializes it with the
// given mode/uid/gid and zeroed contents, writes it into the inode table,
// and returns it.
func AllocateInode(s *diskset.Set, mode, uid, gid uint32, now func() int64) (rnode.Inode, error) {
	bm := inodeBitmapView(s)
	idx, err := bitalloc.AllocateFirstFree(bm, int(s.Geometry.NumInodes))
	if err != nil {
		return rnode.Inode{}, err
	}

	n := rnode.NewEmpty(uint32(idx), os.FileMode(mode), uid, gid, time.Unix(now(), 0).UTC())
	if err := WriteInode(s, n); err != nil {
		bitalloc.Free(bm, idx)
		return rnode.Inode{}, err
	}
	return n, nil
}

// InodeAllocated reports whether inode number n's bitmap bit is set.
func InodeAllocated(s *diskset.Set, n uint32) bool {
	if uint64(n) >= s.Geometry.NumInodes {
		return false
	}
	return bitalloc.Get(inodeBitmapView(s), int(n))
}

// ReadInode returns the decoded inode n. It fails with raidfs.ErrNotFound if
// n's bitmap bit is clear.
func ReadInode(s *diskset.Set, n uint32) (rnode.Inode, error) {
	if !InodeAllocated(s, n) {
		return rnode.Inode{}, raidfs.ErrNotFound
	}
	off := s.Geometry.InodeTableOff + uint64(n)*layout.InodeSize
	return rnode.Decode(n, s.Canonical[off:off+layout.InodeSize])
}

// WriteInode encodes n and writes it into the inode table slot for
// n.Number, broadcasting the canonical buffer to every image.
func WriteInode(s *diskset.Set, n rnode.Inode) error {
	if uint64(n.Number) >= s.Geometry.NumInodes {
		return raidfs.ErrInvalidArgument.WithMessage("inode number out of range")
	}
	off := s.Geometry.InodeTableOff + uint64(n.Number)*layout.InodeSize
	copy(s.Canonical[off:off+layout.InodeSize], rnode.Encode(n))
	s.BroadcastMetadata()
	return nil
}

// FreeInode releases every direct and indirect data block referenced by
// inode n, frees the indirect block itself, zeroes the inode, and clears
// its bitmap bit.
func FreeInode(s *diskset.Set, n uint32) error {
	inode, err := ReadInode(s, n)
	if err != nil {
		return err
	}

	for _, ref := range inode.Direct {
		if ref.Valid() {
			FreeBlock(s, uint64(ref))
		}
	}

	if inode.Indirect.Valid() {
		indirectBlock, err := ReadBlock(s, uint64(inode.Indirect))
		if err == nil {
			for i := 0; i < raidfs.IndirectRefs; i++ {
				ref := readRef(indirectBlock, i)
				if ref.Valid() {
					FreeBlock(s, uint64(ref))
				}
			}
		}
		FreeBlock(s, uint64(inode.Indirect))
	}

	off := s.Geometry.InodeTableOff + uint64(n)*layout.InodeSize
	zero := make([]byte, layout.InodeSize)
	copy(s.Canonical[off:off+layout.InodeSize], zero)
	bitalloc.Free(inodeBitmapView(s), int(n))
	s.BroadcastMetadata()
	return nil
}

// readRef decodes the i'th block reference stored in an indirect block.
func readRef(block []byte, i int) rnode.BlockRef {
	off := i * raidfs.RefSize
	v := int32(block[off]) | int32(block[off+1])<<8 | int32(block[off+2])<<16 | int32(block[off+3])<<24
	return rnode.BlockRef(v)
}

// writeRef encodes the i'th block reference into an indirect block.
func writeRef(block []byte, i int, ref rnode.BlockRef) {
	off := i * raidfs.RefSize
	v := int32(ref)
	block[off] = byte(v)
	block[off+1] = byte(v >> 8)
	block[off+2] = byte(v >> 16)
	block[off+3] = byte(v >> 24)
}

// WriteRef is the exported form of writeRef, used by the engine when it
// populates a freshly allocated indirect block.
func WriteRef(block []byte, i int, ref rnode.BlockRef) {
	writeRef(block, i, ref)
}

// ReadRef is the exported form of readRef, used by the engine when it
// follows an inode's indirect block.
func ReadRef(block []byte, i int) rnode.BlockRef {
	return readRef(block, i)
}
