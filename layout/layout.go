// Package layout computes the byte offsets of every region of a raidfs
// image from its inode and data-block counts, the way mkfs derives them at
// format time and mount re-derives them from a superblock.
package layout

import "github.com/mrpotato53/raidfs"

// RoundUp rounds n up to the nearest multiple of the given value.
func RoundUp(n, multiple uint64) uint64 {
	if multiple == 0 {
		return n
	}
	remainder := n % multiple
	if remainder == 0 {
		return n
	}
	return n + (multiple - remainder)
}

// RoundUpToBlock rounds n up to the nearest multiple of raidfs.BlockSize.
func RoundUpToBlock(n uint64) uint64 {
	return RoundUp(n, raidfs.BlockSize)
}

// BitmapBytes returns the number of bytes needed to store a bitmap holding
// the given number of bits.
func BitmapBytes(bits uint64) uint64 {
	return (bits + 7) / 8
}

// InodeSize is the fixed, serialized size of one inode. Each inode occupies
// exactly one block on disk, so InodeSize is defined in terms of
// raidfs.BlockSize rather than the other way around.
const InodeSize = raidfs.BlockSize

// Geometry holds every derived offset and size for one formatted filesystem.
// It is computed once, at format time, and re-derived identically at mount
// time from the counts recorded in the superblock.
type Geometry struct {
	NumInodes      uint64
	NumDataBlocks  uint64
	InodeBitmapOff uint64
	DataBitmapOff  uint64
	InodeTableOff  uint64
	DataRegionOff  uint64
	// RequiredImageSize is the minimum size, in bytes, of an image holding
	// the full metadata region plus the full data region of NumDataBlocks
	// blocks: the per-image requirement under mirrored modes, returned by
	// MirroredImageSize. Striped images need less; see StripedImageSize.
	RequiredImageSize uint64
}

// Compute derives a Geometry from an already block32-rounded inode count and
// data block count:
//
//	inode bitmap offset = size_of(superblock)
//	data bitmap offset  = inode bitmap offset + ceil(inode_count/8)
//	inode table offset  = data bitmap offset + ceil(block_count/8), rounded up to a block
//	data region offset  = inode table offset + inode_count*blockSize, rounded up to a block
//	required image size = data region offset + block_count*blockSize, rounded up to a block
func Compute(numInodes, numDataBlocks uint64) Geometry {
	g := Geometry{NumInodes: numInodes, NumDataBlocks: numDataBlocks}

	g.InodeBitmapOff = SuperblockSize
	g.DataBitmapOff = g.InodeBitmapOff + BitmapBytes(numInodes)
	g.InodeTableOff = RoundUpToBlock(g.DataBitmapOff + BitmapBytes(numDataBlocks))
	g.DataRegionOff = RoundUpToBlock(g.InodeTableOff + numInodes*InodeSize)
	g.RequiredImageSize = RoundUpToBlock(g.DataRegionOff + numDataBlocks*raidfs.BlockSize)

	return g
}

// MirroredImageSize returns the minimum image size required for mirrored (or
// mirrored-verified) mode, where every image stores the entire data region
// rather than 1/N of it. For this geometry's fixed layout the two are the
// same value: RequiredImageSize already assumes every block lives somewhere
// in a single data region of numDataBlocks blocks, which is exactly what
// mirrored mode needs per image. Striped mode instead spreads the same
// logical numDataBlocks blocks across N images, so each image only needs
// ceil(numDataBlocks/N) local data block slots; StripedImageSize computes
// that smaller requirement.
func (g Geometry) MirroredImageSize() uint64 {
	return g.RequiredImageSize
}

// StripedImageSize returns the minimum size required for one image under
// striped mode across numImages images, where this image holds only the
// blocks whose logical index L satisfies L%numImages == thisImagePosition
// (at most ceil(numDataBlocks/numImages) of them).
func (g Geometry) StripedImageSize(numImages uint64) uint64 {
	localBlocks := (g.NumDataBlocks + numImages - 1) / numImages
	return RoundUpToBlock(g.DataRegionOff + localBlocks*raidfs.BlockSize)
}

// RoundInodeOrBlockCount rounds a requested inode or data-block count up to
// the next multiple of 32.
func RoundInodeOrBlockCount(n uint64) uint64 {
	return RoundUp(n, 32)
}
