package diskset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrpotato53/raidfs"
	raidtesting "github.com/mrpotato53/raidfs/testing"
)

func formatScratch(t *testing.T, mode raidfs.RAIDMode, numImages int) []string {
	t.Helper()
	return raidtesting.CreateFormattedImages(t, mode, numImages, 32, 64)
}

func TestOpenMirroredRoundTrip(t *testing.T) {
	paths := formatScratch(t, raidfs.RAIDMirrored, 3)

	s, err := Open(paths)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, raidfs.RAIDMirrored, s.Mode)
	assert.Equal(t, 3, s.NumImages())
	assert.NotZero(t, s.RunID)
}

func TestOpenRequiresAtLeastTwoImages(t *testing.T) {
	paths := formatScratch(t, raidfs.RAIDMirrored, 3)

	_, err := Open(paths[:1])
	assert.ErrorIs(t, err, raidfs.ErrInvalidArgument)
}

func TestOpenRejectsMismatchedRunID(t *testing.T) {
	a := formatScratch(t, raidfs.RAIDMirrored, 2)
	b := formatScratch(t, raidfs.RAIDMirrored, 2)

	mixed := []string{a[0], b[1]}
	_, err := Open(mixed)
	assert.ErrorIs(t, err, raidfs.ErrMountMismatch)
}

func TestBroadcastMetadataReachesEveryImage(t *testing.T) {
	paths := formatScratch(t, raidfs.RAIDMirrored, 2)

	s, err := Open(paths)
	require.NoError(t, err)
	defer s.Close()

	s.Canonical[s.Geometry.InodeBitmapOff] = 0xAB
	s.BroadcastMetadata()

	for _, img := range s.Images {
		assert.Equal(t, byte(0xAB), img.Mapped[s.Geometry.InodeBitmapOff])
	}
}

func TestBroadcastMetadataUnderStripedPreservesPerImageDataBitmap(t *testing.T) {
	paths := formatScratch(t, raidfs.RAIDStriped, 2)

	s, err := Open(paths)
	require.NoError(t, err)
	defer s.Close()

	// Simulate a per-image data bitmap bit set directly in mapped memory,
	// the way raidio's dataBitmapView mutates it under striped mode. The
	// canonical buffer's own copy of that byte range is never touched and
	// stays at its format-time zero value.
	s.Images[0].Mapped[s.Geometry.DataBitmapOff] = 0x01

	s.Canonical[s.Geometry.InodeBitmapOff] = 0xAB
	s.BroadcastMetadata()

	assert.Equal(t, byte(0xAB), s.Images[0].Mapped[s.Geometry.InodeBitmapOff])
	assert.Equal(t, byte(0xAB), s.Images[1].Mapped[s.Geometry.InodeBitmapOff])
	assert.Equal(t, byte(0x01), s.Images[0].Mapped[s.Geometry.DataBitmapOff],
		"striped-mode broadcast must not overwrite a per-image data bitmap bit")
}

func TestBroadcastDataBlockStripedTargetsOneImage(t *testing.T) {
	paths := formatScratch(t, raidfs.RAIDStriped, 2)

	s, err := Open(paths)
	require.NoError(t, err)
	defer s.Close()

	off := s.Geometry.DataRegionOff
	data := make([]byte, raidfs.BlockSize)
	for i := range data {
		data[i] = 0x42
	}

	s.BroadcastDataBlock([]*Image{s.Images[0]}, off, data)
	assert.Equal(t, byte(0x42), s.Images[0].Mapped[off])
	assert.NotEqual(t, byte(0x42), s.Images[1].Mapped[off])
}
