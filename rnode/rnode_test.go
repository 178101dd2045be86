package rnode

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrpotato53/raidfs"
)

func TestNewEmptyAllSentinels(t *testing.T) {
	now := time.Unix(1000, 0).UTC()
	n := NewEmpty(3, os.ModeDir|0755, 1, 2, now)

	assert.Equal(t, uint32(3), n.Number)
	assert.True(t, n.IsDir())
	assert.False(t, n.IsRegular())
	assert.Equal(t, uint32(1), n.UID)
	assert.Equal(t, uint32(2), n.GID)
	assert.Equal(t, uint64(0), n.Size)
	assert.False(t, n.Indirect.Valid())
	for _, d := range n.Direct {
		assert.False(t, d.Valid())
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Unix(5000, 0).UTC()
	orig := NewEmpty(7, 0644, 10, 20, now)
	orig.Size = 1024
	orig.Nlink = 1
	orig.Direct[0] = BlockRef(5)
	orig.Direct[1] = BlockRef(6)
	orig.Indirect = BlockRef(99)

	encoded := Encode(orig)
	require.Len(t, encoded, raidfs.BlockSize)

	decoded, err := Decode(7, encoded)
	require.NoError(t, err)

	assert.Equal(t, orig.Number, decoded.Number)
	assert.Equal(t, orig.Mode, decoded.Mode)
	assert.Equal(t, orig.UID, decoded.UID)
	assert.Equal(t, orig.GID, decoded.GID)
	assert.Equal(t, orig.Size, decoded.Size)
	assert.Equal(t, orig.Nlink, decoded.Nlink)
	assert.Equal(t, orig.Direct, decoded.Direct)
	assert.Equal(t, orig.Indirect, decoded.Indirect)
	assert.WithinDuration(t, orig.Atime, decoded.Atime, 0)
}

func TestBlockRefValid(t *testing.T) {
	assert.False(t, NoRef.Valid())
	assert.True(t, BlockRef(0).Valid())
	assert.True(t, BlockRef(42).Valid())
}

func TestIsRegular(t *testing.T) {
	n := NewEmpty(1, 0644, 0, 0, time.Unix(0, 0))
	assert.True(t, n.IsRegular())
	assert.False(t, n.IsDir())
}
