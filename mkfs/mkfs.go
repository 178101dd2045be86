// Package mkfs formats a fresh set of raidfs backing images: one state
// machine run with no persistent state of its own.
package mkfs

import (
	"fmt"
	"os"
	"time"

	"github.com/mrpotato53/raidfs"
	"github.com/mrpotato53/raidfs/bitalloc"
	"github.com/mrpotato53/raidfs/layout"
	"github.com/mrpotato53/raidfs/rnode"
)

// Options holds the parsed format-tool parameters, corresponding directly to
// the CLI flags of the mkfs command.
type Options struct {
	Mode          raidfs.RAIDMode
	ImagePaths    []string
	NumInodes     uint64
	NumDataBlocks uint64
}

func validate(opts Options) error {
	if len(opts.ImagePaths) < 2 {
		return raidfs.ErrInvalidArgument.WithMessage("at least two backing images are required")
	}
	if len(opts.ImagePaths) > raidfs.MaxImages {
		return raidfs.ErrInvalidArgument.WithMessage("too many backing images")
	}
	if opts.NumInodes == 0 {
		return raidfs.ErrInvalidArgument.WithMessage("inode count must be nonzero")
	}
	if opts.NumDataBlocks == 0 {
		return raidfs.ErrInvalidArgument.WithMessage("data block count must be nonzero")
	}
	for _, p := range opts.ImagePaths {
		if len(p) > raidfs.MaxImagePathLength {
			return raidfs.ErrInvalidArgument.WithMessage("image path too long: " + p)
		}
	}
	return nil
}

// Format lays out a brand-new filesystem across opts.ImagePaths: round the
// requested inode and block counts up to the next multiple of 32, compute
// the region offsets, and on every image write a
// superblock (carrying that image's mount position and a run id shared by
// every image in the set), a zeroed data bitmap, an inode bitmap with bit 0
// set, and an inode table whose first entry is the root directory.
func Format(opts Options) error {
	if err := validate(opts); err != nil {
		return err
	}

	numInodes := layout.RoundInodeOrBlockCount(opts.NumInodes)
	numBlocks := layout.RoundInodeOrBlockCount(opts.NumDataBlocks)
	geo := layout.Compute(numInodes, numBlocks)

	requiredSize := geo.MirroredImageSize()
	if opts.Mode == raidfs.RAIDStriped {
		requiredSize = geo.StripedImageSize(uint64(len(opts.ImagePaths)))
	}

	runID := time.Now().UnixNano()

	inodeBitmap := make([]byte, layout.BitmapBytes(numInodes))
	bitalloc.Set(inodeBitmap, raidfs.RootInodeNumber, true)

	dataBitmap := make([]byte, layout.BitmapBytes(numBlocks))

	now := time.Now().UTC()
	root := rnode.NewEmpty(raidfs.RootInodeNumber, os.ModeDir|0755, 0, 0, now)
	root.Nlink = 2

	inodeTable := make([]byte, numInodes*layout.InodeSize)
	copy(inodeTable, rnode.Encode(root))

	created := make([]*os.File, 0, len(opts.ImagePaths))
	for i, path := range opts.ImagePaths {
		f, err := formatOneImage(path, i, opts.Mode, geo, runID, requiredSize, opts.ImagePaths, inodeBitmap, dataBitmap, inodeTable)
		if err != nil {
			for _, c := range created {
				c.Close()
			}
			return err
		}
		created = append(created, f)
	}

	for _, f := range created {
		f.Close()
	}
	return nil
}

func formatOneImage(
	path string,
	mountPosition int,
	mode raidfs.RAIDMode,
	geo layout.Geometry,
	runID int64,
	requiredSize uint64,
	allPaths []string,
	inodeBitmap, dataBitmap, inodeTable []byte,
) (*os.File, error) {
	existed := true
	if _, err := os.Stat(path); os.IsNotExist(err) {
		existed = false
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, raidfs.Error("open backing image for format").Wrap(err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, raidfs.Error("stat backing image").Wrap(err)
	}

	if uint64(info.Size()) < requiredSize {
		if existed {
			f.Close()
			return nil, raidfs.ErrInvalidArgument.WithMessage(fmt.Sprintf(
				"%s is %d bytes, smaller than the %d bytes this filesystem requires",
				path, info.Size(), requiredSize))
		}
		if err := f.Truncate(int64(requiredSize)); err != nil {
			f.Close()
			return nil, raidfs.Error("resize backing image").Wrap(err)
		}
	}

	sb := layout.Superblock{
		RAIDMode:      mode,
		Geometry:      geo,
		MountPosition: uint32(mountPosition),
		RunID:         runID,
		ImagePaths:    allPaths,
	}
	encoded, err := layout.EncodeSuperblock(sb)
	if err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.WriteAt(encoded, 0); err != nil {
		f.Close()
		return nil, raidfs.Error("write superblock").Wrap(err)
	}
	if _, err := f.WriteAt(inodeBitmap, int64(geo.InodeBitmapOff)); err != nil {
		f.Close()
		return nil, raidfs.Error("write inode bitmap").Wrap(err)
	}
	if _, err := f.WriteAt(dataBitmap, int64(geo.DataBitmapOff)); err != nil {
		f.Close()
		return nil, raidfs.Error("write data bitmap").Wrap(err)
	}
	if _, err := f.WriteAt(inodeTable, int64(geo.InodeTableOff)); err != nil {
		f.Close()
		return nil, raidfs.Error("write inode table").Wrap(err)
	}

	return f, nil
}
