package engine

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrpotato53/raidfs"
	"github.com/mrpotato53/raidfs/layout"
	"github.com/mrpotato53/raidfs/mkfs"
	raidtesting "github.com/mrpotato53/raidfs/testing"
)

func mountScratch(t *testing.T, mode raidfs.RAIDMode, numImages int, numInodes, numBlocks uint64) *Mount {
	t.Helper()
	paths := raidtesting.CreateFormattedImages(t, mode, numImages, numInodes, numBlocks)

	m, err := Open(paths)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

// Root directory starts empty with link count 2.
func TestScenarioRootAttr(t *testing.T) {
	m := mountScratch(t, raidfs.RAIDMirrored, 2, 32, 32)

	root, err := m.GetAttr("/")
	require.NoError(t, err)
	assert.True(t, root.IsDir())
	assert.EqualValues(t, 0, root.Size)
	assert.EqualValues(t, 2, root.Nlink)
}

// A file created, written, and read back under striped mode must survive
// the metadata broadcast that follows the write: the per-image data
// bitmap bit set by the allocation must still be set afterward.
func TestScenarioWriteReadUnderStriped(t *testing.T) {
	m := mountScratch(t, raidfs.RAIDStriped, 2, 32, 32)

	_, err := m.Mknod("/f", 0644, 0, 0)
	require.NoError(t, err)

	data := bytes.Repeat([]byte{0x3C}, 100)
	n, err := m.Write("/f", 0, data)
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	buf := make([]byte, 100)
	n, err = m.Read("/f", 0, buf)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, data, buf)
}

// Nested directory creation and listing.
func TestScenarioMkdirNestedReaddir(t *testing.T) {
	m := mountScratch(t, raidfs.RAIDMirrored, 2, 32, 32)

	_, err := m.Mkdir("/a", 0755, 0, 0)
	require.NoError(t, err)
	_, err = m.Mkdir("/a/b", 0755, 0, 0)
	require.NoError(t, err)

	entries, err := m.ReadDir("/a")
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name] = true
	}
	assert.Equal(t, map[string]bool{".": true, "..": true, "b": true}, names)
}

// A write spanning multiple blocks reads back byte-identical.
func TestScenarioWriteReadMultiBlockFile(t *testing.T) {
	m := mountScratch(t, raidfs.RAIDMirrored, 2, 64, 256)

	_, err := m.Mknod("/f", 0644, 0, 0)
	require.NoError(t, err)

	data := bytes.Repeat([]byte{0xAB}, 5000)
	n, err := m.Write("/f", 0, data)
	require.NoError(t, err)
	assert.Equal(t, 5000, n)

	buf := make([]byte, 5000)
	n, err = m.Read("/f", 0, buf)
	require.NoError(t, err)
	assert.Equal(t, 5000, n)
	assert.Equal(t, data, buf)

	inode, err := m.GetAttr("/f")
	require.NoError(t, err)
	assert.EqualValues(t, 5000, inode.Size)

	allocated := 0
	for _, d := range inode.Direct {
		if d.Valid() {
			allocated++
		}
	}
	assert.GreaterOrEqual(t, allocated, 2)
}

// A write far enough past the direct blocks forces indirect allocation.
func TestScenarioIndirectBlockWrite(t *testing.T) {
	m := mountScratch(t, raidfs.RAIDMirrored, 2, 64, 512)

	_, err := m.Mknod("/f", 0644, 0, 0)
	require.NoError(t, err)

	offset := uint64(raidfs.BlockSize) * (raidfs.NumDirectBlocks + 2)
	n, err := m.Write("/f", offset, []byte{0x5A})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	inode, err := m.GetAttr("/f")
	require.NoError(t, err)
	assert.True(t, inode.Indirect.Valid())

	buf := make([]byte, 1)
	_, err = m.Read("/f", offset, buf)
	require.NoError(t, err)
	assert.Equal(t, byte(0x5A), buf[0])

	zeros := make([]byte, raidfs.BlockSize)
	_, err = m.Read("/f", 0, zeros)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, raidfs.BlockSize), zeros)
}

// Rmdir refuses a non-empty directory until it's cleared.
func TestScenarioRmdirRequiresEmpty(t *testing.T) {
	m := mountScratch(t, raidfs.RAIDMirrored, 2, 32, 32)

	_, err := m.Mkdir("/a", 0755, 0, 0)
	require.NoError(t, err)
	_, err = m.Mknod("/a/x", 0644, 0, 0)
	require.NoError(t, err)

	err = m.Rmdir("/a")
	assert.ErrorIs(t, err, raidfs.ErrDirectoryNotEmpty)

	require.NoError(t, m.Unlink("/a/x"))
	require.NoError(t, m.Rmdir("/a"))

	entries, err := m.ReadDir("/")
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "a", e.Name)
	}
}

func TestRmdirDisallowsRoot(t *testing.T) {
	m := mountScratch(t, raidfs.RAIDMirrored, 2, 32, 32)
	assert.ErrorIs(t, m.Rmdir("/"), raidfs.ErrPermissionDenied)
}

func TestMknodThenMkdirSameNameFails(t *testing.T) {
	m := mountScratch(t, raidfs.RAIDMirrored, 2, 32, 32)

	_, err := m.Mknod("/dup", 0644, 0, 0)
	require.NoError(t, err)

	_, err = m.Mkdir("/dup", 0755, 0, 0)
	assert.ErrorIs(t, err, raidfs.ErrExists)
}

func TestUnlinkOnDirectoryFails(t *testing.T) {
	m := mountScratch(t, raidfs.RAIDMirrored, 2, 32, 32)

	_, err := m.Mkdir("/a", 0755, 0, 0)
	require.NoError(t, err)

	err = m.Unlink("/a")
	assert.ErrorIs(t, err, raidfs.ErrIsADirectory)
}

func TestMknodUnlinkRestoresBitmaps(t *testing.T) {
	m := mountScratch(t, raidfs.RAIDMirrored, 2, 32, 32)

	statBefore := m.Stat()

	_, err := m.Mknod("/tmp", 0644, 0, 0)
	require.NoError(t, err)
	require.NoError(t, m.Unlink("/tmp"))

	statAfter := m.Stat()
	assert.Equal(t, statBefore.FreeInodes, statAfter.FreeInodes)
	assert.Equal(t, statBefore.FreeBlocks, statAfter.FreeBlocks)
}

func TestMkdirRmdirRestoresBitmaps(t *testing.T) {
	m := mountScratch(t, raidfs.RAIDMirrored, 2, 32, 32)

	statBefore := m.Stat()

	_, err := m.Mkdir("/tmp", 0755, 0, 0)
	require.NoError(t, err)
	require.NoError(t, m.Rmdir("/tmp"))

	statAfter := m.Stat()
	assert.Equal(t, statBefore.FreeInodes, statAfter.FreeInodes)
	assert.Equal(t, statBefore.FreeBlocks, statAfter.FreeBlocks)
}

// Mirrored-verified recovery: a corrupted copy on one image is outvoted
// by the other two on read.
func TestScenarioMirroredVerifiedRecovery(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		filepath.Join(dir, "m0"),
		filepath.Join(dir, "m1"),
		filepath.Join(dir, "m2"),
	}
	require.NoError(t, mkfs.Format(mkfs.Options{
		Mode:          raidfs.RAIDMirroredVerified,
		ImagePaths:    paths,
		NumInodes:     32,
		NumDataBlocks: 32,
	}))

	m, err := Open(paths)
	require.NoError(t, err)

	_, err = m.Mknod("/f", 0644, 0, 0)
	require.NoError(t, err)

	good := bytes.Repeat([]byte{0x11}, raidfs.BlockSize)
	_, err = m.Write("/f", 0, good)
	require.NoError(t, err)
	inode, err := m.GetAttr("/f")
	require.NoError(t, err)
	fileBlock := uint64(inode.Direct[0])
	require.NoError(t, m.Close())

	raw, err := os.ReadFile(paths[0])
	require.NoError(t, err)

	// Corrupt image 0's copy of the file's first data block, in place.
	geo := layout.Compute(32, 32)
	corrupted := make([]byte, len(raw))
	copy(corrupted, raw)
	for i := uint64(0); i < raidfs.BlockSize; i++ {
		corrupted[geo.DataRegionOff+fileBlock*raidfs.BlockSize+i] = 0xFF
	}
	require.NoError(t, os.WriteFile(paths[0], corrupted, 0644))

	m2, err := Open(paths)
	require.NoError(t, err)
	defer m2.Close()

	buf := make([]byte, raidfs.BlockSize)
	_, err = m2.Read("/f", 0, buf)
	require.NoError(t, err)
	assert.Equal(t, good, buf)
}
