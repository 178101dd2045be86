package layout

import (
	"bytes"
	"encoding/binary"

	"github.com/mrpotato53/raidfs"
)

// rawSuperblock is the exact on-disk layout of the header at offset 0 of
// every backing image. ImagePaths is a fixed-capacity table
// of NUL-padded path strings so the header has one fixed size regardless of
// how many images the filesystem actually spans (the unused trailing
// entries, beyond NumImages, are left zeroed).
type rawSuperblock struct {
	RAIDMode       uint8
	_              [7]byte // alignment padding, always zero
	NumInodes      uint64
	NumDataBlocks  uint64
	InodeBitmapOff uint64
	DataBitmapOff  uint64
	InodeTableOff  uint64
	DataRegionOff  uint64
	MountPosition  uint32
	NumImages      uint32
	RunID          int64
	ImagePaths     [raidfs.MaxImages][raidfs.MaxImagePathLength + 1]byte
}

// SuperblockSize is the fixed, serialized size of the superblock header.
var SuperblockSize = uint64(binary.Size(rawSuperblock{}))

// Superblock is the decoded, in-memory view of a raw superblock.
type Superblock struct {
	RAIDMode      raidfs.RAIDMode
	Geometry      Geometry
	MountPosition uint32
	RunID         int64
	ImagePaths    []string
}

// EncodeSuperblock serializes sb into exactly SuperblockSize bytes.
func EncodeSuperblock(sb Superblock) ([]byte, error) {
	if len(sb.ImagePaths) > raidfs.MaxImages {
		return nil, raidfs.ErrInvalidArgument.WithMessage("too many backing images")
	}

	raw := rawSuperblock{
		RAIDMode:       uint8(sb.RAIDMode),
		NumInodes:      sb.Geometry.NumInodes,
		NumDataBlocks:  sb.Geometry.NumDataBlocks,
		InodeBitmapOff: sb.Geometry.InodeBitmapOff,
		DataBitmapOff:  sb.Geometry.DataBitmapOff,
		InodeTableOff:  sb.Geometry.InodeTableOff,
		DataRegionOff:  sb.Geometry.DataRegionOff,
		MountPosition:  sb.MountPosition,
		NumImages:      uint32(len(sb.ImagePaths)),
		RunID:          sb.RunID,
	}

	for i, p := range sb.ImagePaths {
		if len(p) > raidfs.MaxImagePathLength {
			return nil, raidfs.ErrInvalidArgument.WithMessage("image path too long: " + p)
		}
		copy(raw.ImagePaths[i][:], p)
	}

	buf := new(bytes.Buffer)
	buf.Grow(int(SuperblockSize))
	if err := binary.Write(buf, binary.LittleEndian, &raw); err != nil {
		return nil, raidfs.Error("encode superblock").Wrap(err)
	}
	return buf.Bytes(), nil
}

// DecodeSuperblock parses a Superblock from exactly SuperblockSize bytes.
func DecodeSuperblock(data []byte) (Superblock, error) {
	if uint64(len(data)) < SuperblockSize {
		return Superblock{}, raidfs.ErrInvalidArgument.WithMessage("image too small to hold a superblock")
	}

	var raw rawSuperblock
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &raw); err != nil {
		return Superblock{}, raidfs.Error("decode superblock").Wrap(err)
	}

	if raw.RAIDMode > uint8(raidfs.RAIDMirroredVerified) {
		return Superblock{}, raidfs.ErrUnrecognizedRAIDMode
	}

	paths := make([]string, raw.NumImages)
	for i := range paths {
		paths[i] = nulTerminatedString(raw.ImagePaths[i][:])
	}

	return Superblock{
		RAIDMode:      raidfs.RAIDMode(raw.RAIDMode),
		MountPosition: raw.MountPosition,
		RunID:         raw.RunID,
		ImagePaths:    paths,
		Geometry: Geometry{
			NumInodes:         raw.NumInodes,
			NumDataBlocks:     raw.NumDataBlocks,
			InodeBitmapOff:    raw.InodeBitmapOff,
			DataBitmapOff:     raw.DataBitmapOff,
			InodeTableOff:     raw.InodeTableOff,
			DataRegionOff:     raw.DataRegionOff,
			RequiredImageSize: RoundUpToBlock(raw.DataRegionOff + raw.NumDataBlocks*raidfs.BlockSize),
		},
	}, nil
}

func nulTerminatedString(b []byte) string {
	if idx := bytes.IndexByte(b, 0); idx >= 0 {
		return string(b[:idx])
	}
	return string(b)
}
