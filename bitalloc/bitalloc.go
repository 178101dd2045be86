// Package bitalloc implements the first-fit bitmap allocator shared by the
// inode bitmap and every data bitmap (the canonical one under mirrored
// modes, or a single image's private bitmap under striped mode).
//
// Every function here operates directly against a caller-supplied []byte
// view rather than owning storage itself, so the same allocator logic
// serves the canonical metadata buffer and a striped image's local data
// bitmap equally; the caller decides which bytes are live and is
// responsible for broadcasting any mutation per the write-broadcast
// discipline.
package bitalloc

import (
	"github.com/boljen/go-bitmap"
	"github.com/mrpotato53/raidfs"
)

// Get reports whether bit index i is set in bm.
func Get(bm []byte, i int) bool {
	return bitmap.Bitmap(bm).Get(i)
}

// Set sets or clears bit index i in bm.
func Set(bm []byte, i int, value bool) {
	bitmap.Bitmap(bm).Set(i, value)
}

// AllocateFirstFree scans bm in ascending bit order for the first clear bit
// among the first numBits bits, sets it, and returns its index. It returns
// raidfs.ErrNoSpace if every bit in range is already set.
func AllocateFirstFree(bm []byte, numBits int) (int, error) {
	b := bitmap.Bitmap(bm)
	for i := 0; i < numBits; i++ {
		if !b.Get(i) {
			b.Set(i, true)
			return i, nil
		}
	}
	return 0, raidfs.ErrNoSpace
}

// Free clears bit index i in bm. Freeing an already-clear bit is a no-op,
// matching the engine's own idempotent free-on-unlink/free-on-rmdir paths.
func Free(bm []byte, i int) {
	bitmap.Bitmap(bm).Set(i, false)
}

// CountSet returns the number of set bits among the first numBits bits of
// bm.
func CountSet(bm []byte, numBits int) int {
	b := bitmap.Bitmap(bm)
	count := 0
	for i := 0; i < numBits; i++ {
		if b.Get(i) {
			count++
		}
	}
	return count
}
