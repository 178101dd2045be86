// Package diskset opens and memory-maps the ordered set of backing images
// that make up one raidfs filesystem, verifies that they were formatted
// together, and owns the canonical metadata buffer every other layer reads
// and writes through.
package diskset

import (
	"bytes"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sys/unix"

	"github.com/mrpotato53/raidfs"
	"github.com/mrpotato53/raidfs/layout"
)

// Image is one opened, memory-mapped backing image.
type Image struct {
	Path   string
	file   *os.File
	Mapped []byte
}

// DataAt returns a slice of this image's mapped region of length len,
// starting at byte offset off.
func (img *Image) DataAt(off, length uint64) []byte {
	return img.Mapped[off : off+length]
}

func (img *Image) close() error {
	var result error
	if img.Mapped != nil {
		if err := unix.Munmap(img.Mapped); err != nil {
			result = multierror.Append(result, fmt.Errorf("munmap %s: %w", img.Path, err))
		}
	}
	if img.file != nil {
		if err := img.file.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close %s: %w", img.Path, err))
		}
	}
	return result
}

// Set is the ordered, verified collection of backing images for one mount,
// plus the canonical metadata buffer (superblock through end of inode
// table) that all metadata reads are served from and all metadata mutations
// are staged into before being broadcast out to every image.
type Set struct {
	Images    []*Image
	Mode      raidfs.RAIDMode
	Geometry  layout.Geometry
	RunID     int64
	Canonical []byte

	metadataLen uint64
}

// Open opens and memory-maps every path in paths, in whatever order they're
// given, then reorders them by the mount position recorded in each image's
// own superblock. It fails if fewer than two paths are given, if any image
// can't be opened or mapped, if two images claim the same mount position,
// if the images disagree on run id or RAID mode, or — for mirrored modes —
// if their bitmaps and inode tables aren't byte-identical.
func Open(paths []string) (*Set, error) {
	if len(paths) < 2 {
		return nil, raidfs.ErrInvalidArgument.WithMessage("at least two backing images are required")
	}

	opened := make([]*Image, 0, len(paths))
	var openErr error
	for _, p := range paths {
		img, err := openAndMap(p)
		if err != nil {
			openErr = multierror.Append(openErr, err)
			continue
		}
		opened = append(opened, img)
	}
	if openErr != nil {
		for _, img := range opened {
			img.close()
		}
		return nil, openErr
	}

	slots := make([]*Image, len(opened))
	var sb layout.Superblock
	var runID int64
	var mode raidfs.RAIDMode

	for i, img := range opened {
		decoded, err := layout.DecodeSuperblock(img.Mapped[:layout.SuperblockSize])
		if err != nil {
			closeAll(opened)
			return nil, fmt.Errorf("%s: %w", img.Path, err)
		}

		if i == 0 {
			sb, runID, mode = decoded, decoded.RunID, decoded.RAIDMode
		} else if decoded.RunID != runID || decoded.RAIDMode != mode {
			closeAll(opened)
			return nil, raidfs.ErrMountMismatch.WithMessage(
				fmt.Sprintf("%s does not belong to the same formatting run", img.Path))
		}

		pos := int(decoded.MountPosition)
		if pos < 0 || pos >= len(opened) {
			closeAll(opened)
			return nil, raidfs.ErrMountMismatch.WithMessage(
				fmt.Sprintf("%s has an out-of-range mount position %d", img.Path, pos))
		}
		if slots[pos] != nil {
			closeAll(opened)
			return nil, raidfs.ErrMountMismatch.WithMessage(
				fmt.Sprintf("two images claim mount position %d", pos))
		}
		slots[pos] = img
	}

	metadataLen := sb.Geometry.DataRegionOff

	for _, img := range slots {
		required := sb.Geometry.MirroredImageSize()
		if mode == raidfs.RAIDStriped {
			required = sb.Geometry.StripedImageSize(uint64(len(slots)))
		}
		if uint64(len(img.Mapped)) < required {
			closeAll(opened)
			return nil, raidfs.ErrInvalidArgument.WithMessage(
				fmt.Sprintf("%s is smaller than the %d bytes this filesystem requires", img.Path, required))
		}
	}

	if mode.IsMirrored() {
		// The superblock differs per image (mount position), so only the
		// bitmaps and inode table are compared.
		start := sb.Geometry.InodeBitmapOff
		first := slots[0].Mapped[start:metadataLen]
		for _, img := range slots[1:] {
			if !bytes.Equal(first, img.Mapped[start:metadataLen]) {
				closeAll(opened)
				return nil, raidfs.ErrMountMismatch.WithMessage(
					fmt.Sprintf("%s's metadata region does not match the other images", img.Path))
			}
		}
	}

	canonical := make([]byte, metadataLen)
	copy(canonical, slots[0].Mapped[:metadataLen])

	return &Set{
		Images:      slots,
		Mode:        mode,
		Geometry:    sb.Geometry,
		RunID:       runID,
		Canonical:   canonical,
		metadataLen: metadataLen,
	}, nil
}

func openAndMap(path string) (*Image, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, raidfs.Error("open backing image").Wrap(err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, raidfs.Error("stat backing image").Wrap(err)
	}
	if info.Size() == 0 {
		f.Close()
		return nil, raidfs.ErrInvalidArgument.WithMessage(path + " is empty")
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, raidfs.Error("mmap backing image").Wrap(err)
	}

	return &Image{Path: path, file: f, Mapped: mapped}, nil
}

func closeAll(images []*Image) {
	for _, img := range images {
		img.close()
	}
}

// NumImages returns how many backing images this filesystem spans.
func (s *Set) NumImages() int {
	return len(s.Images)
}

// BroadcastMetadata copies the canonical buffer's bitmaps and inode table
// into every image's mapped metadata region: every mutation touching a
// bitmap, an inode, or the inode table is staged in the canonical buffer
// first and then copied out to every image. The superblock is not copied,
// since each image's superblock records that image's own mount position.
//
// Under striped mode the data bitmap is never staged in the canonical
// buffer — each image owns its own private copy, mutated directly in its
// mapped memory — so that byte range is excluded from the copy here.
// Broadcasting it anyway would stamp the canonical buffer's stale,
// all-zero placeholder back over every image's real data bitmap.
func (s *Set) BroadcastMetadata() {
	start := s.Geometry.InodeBitmapOff
	if s.Mode != raidfs.RAIDStriped {
		for _, img := range s.Images {
			copy(img.Mapped[start:s.metadataLen], s.Canonical[start:])
		}
		return
	}

	head := s.Geometry.DataBitmapOff
	tail := s.Geometry.InodeTableOff
	for _, img := range s.Images {
		copy(img.Mapped[start:head], s.Canonical[start:head])
		copy(img.Mapped[tail:s.metadataLen], s.Canonical[tail:s.metadataLen])
	}
}

// BroadcastDataBlock writes data (exactly one block) into the data region at
// byte offset off on every image in targets, per the write-broadcast
// discipline's rule for data mutations under mirrored modes. Under striped
// mode, callers pass a single-element targets slice naming the owning
// image.
func (s *Set) BroadcastDataBlock(targets []*Image, off uint64, data []byte) {
	for _, img := range targets {
		copy(img.Mapped[off:off+uint64(len(data))], data)
	}
}

// Close unmaps and closes every backing image.
func (s *Set) Close() error {
	var result error
	for _, img := range s.Images {
		if err := img.close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
