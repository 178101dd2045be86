// Package engine is the mounted filesystem: RAID-aware path resolution,
// directory entry management, block-crossing file I/O, and the named
// operation surface (GetAttr, Mknod, Mkdir, Unlink, Rmdir, Read, Write,
// ReadDir) a host dispatch framework calls into.
//
// The engine is single-threaded cooperative: operations never overlap and
// there is no internal locking. All mutable state lives in the *diskset.Set
// this Mount wraps; Mount itself is a thin, reusable frame around that
// state, encapsulating mutable state in a single value threaded through
// every operation rather than process-wide variables.
package engine

import (
	"time"

	"github.com/mrpotato53/raidfs"
	"github.com/mrpotato53/raidfs/diskset"
)

// Mount is a live mount of a raidfs filesystem: the verified, ordered set of
// backing images plus the canonical metadata buffer they share.
type Mount struct {
	disks *diskset.Set
	// now is overridable in tests so timestamp-sensitive assertions don't
	// need to tolerate wall-clock skew.
	now func() int64
}

// Open mounts the filesystem spread across the given backing image paths.
// See diskset.Open for the failure modes.
func Open(paths []string) (*Mount, error) {
	disks, err := diskset.Open(paths)
	if err != nil {
		return nil, err
	}
	return &Mount{disks: disks, now: func() int64 { return time.Now().Unix() }}, nil
}

// Close unmounts the filesystem, unmapping and closing every backing image.
func (m *Mount) Close() error {
	return m.disks.Close()
}

// RAIDMode reports the RAID mode this filesystem was formatted with.
func (m *Mount) RAIDMode() raidfs.RAIDMode {
	return m.disks.Mode
}

// Stat summarizes the filesystem's capacity, mirroring the sort of
// information a host framework surfaces for statfs(2).
type Stat struct {
	BlockSize   uint64
	TotalBlocks uint64
	FreeBlocks  uint64
	TotalInodes uint64
	FreeInodes  uint64
}
