package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundUp(t *testing.T) {
	assert.Equal(t, uint64(32), RoundUp(1, 32))
	assert.Equal(t, uint64(32), RoundUp(32, 32))
	assert.Equal(t, uint64(64), RoundUp(33, 32))
	assert.Equal(t, uint64(0), RoundUp(0, 32))
}

func TestBitmapBytes(t *testing.T) {
	assert.Equal(t, uint64(1), BitmapBytes(1))
	assert.Equal(t, uint64(1), BitmapBytes(8))
	assert.Equal(t, uint64(2), BitmapBytes(9))
	assert.Equal(t, uint64(4), BitmapBytes(32))
}

func TestComputeOffsetsByHand(t *testing.T) {
	// 32 inodes, 32 data blocks: a small worked example checked by hand
	// against the offset formulas.
	g := Compute(32, 32)

	require.Equal(t, SuperblockSize, g.InodeBitmapOff)
	require.Equal(t, SuperblockSize+BitmapBytes(32), g.DataBitmapOff)
	require.Equal(t, RoundUpToBlock(g.DataBitmapOff+BitmapBytes(32)), g.InodeTableOff)
	require.Equal(t, RoundUpToBlock(g.InodeTableOff+32*InodeSize), g.DataRegionOff)
	require.Equal(t, RoundUpToBlock(g.DataRegionOff+32*512), g.RequiredImageSize)
}

func TestComputeIndependentOfRAIDMode(t *testing.T) {
	// The metadata region's layout doesn't depend on how many images span
	// the filesystem or what RAID mode it uses.
	a := Compute(64, 128)
	b := Compute(64, 128)
	assert.Equal(t, a, b)
}

func TestStripedImageSizeSmallerThanMirrored(t *testing.T) {
	g := Compute(32, 320)
	striped := g.StripedImageSize(4)
	mirrored := g.MirroredImageSize()
	assert.Less(t, striped, mirrored)
}

func TestRoundInodeOrBlockCount(t *testing.T) {
	assert.Equal(t, uint64(32), RoundInodeOrBlockCount(1))
	assert.Equal(t, uint64(32), RoundInodeOrBlockCount(32))
	assert.Equal(t, uint64(64), RoundInodeOrBlockCount(33))
}
