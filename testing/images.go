// Package testing holds scratch-image helpers shared by this module's own
// test suites. The package name matches the standard library's testing
// package, so test files import it under an alias (raidtesting).
package testing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mrpotato53/raidfs"
	"github.com/mrpotato53/raidfs/mkfs"
)

// CreateFormattedImages formats numImages scratch backing images under t's
// temp directory with the given RAID mode, inode count, and data block
// count, and returns their paths ready for diskset.Open/engine.Open. It is
// guaranteed to either return a valid slice or fail the test and abort.
func CreateFormattedImages(
	t *testing.T, mode raidfs.RAIDMode, numImages int, numInodes, numDataBlocks uint64,
) []string {
	dir := t.TempDir()
	paths := make([]string, numImages)
	for i := range paths {
		paths[i] = filepath.Join(dir, "image"+string(rune('0'+i)))
	}

	err := mkfs.Format(mkfs.Options{
		Mode:          mode,
		ImagePaths:    paths,
		NumInodes:     numInodes,
		NumDataBlocks: numDataBlocks,
	})
	require.NoError(t, err, "failed to format scratch images")

	for _, p := range paths {
		_, statErr := os.Stat(p)
		require.NoError(t, statErr, "scratch image missing after format: %s", p)
	}

	return paths
}
