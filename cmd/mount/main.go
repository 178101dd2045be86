// Command mount attaches a raidfs filesystem to a mountpoint via FUSE.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
	"github.com/hanwen/go-fuse/v2/fuse/pathfs"
	cli "github.com/urfave/cli/v2"

	"github.com/mrpotato53/raidfs"
	"github.com/mrpotato53/raidfs/engine"
	"github.com/mrpotato53/raidfs/rnode"
)

func main() {
	app := &cli.App{
		Name:      "mount.raidfs",
		Usage:     "mount a raidfs filesystem",
		UsageText: "mount.raidfs <image> <image> [<image> ...] <mountpoint>",
		Action:    runMount,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "mount.raidfs: %s\n", err)
		os.Exit(1)
	}
}

func runMount(c *cli.Context) error {
	args := c.Args().Slice()
	if len(args) < 3 {
		return raidfs.ErrInvalidArgument.WithMessage(
			"usage: mount.raidfs <image> <image> [<image> ...] <mountpoint>")
	}

	mountpoint := args[len(args)-1]
	imagePaths := args[:len(args)-1]

	m, err := engine.Open(imagePaths)
	if err != nil {
		return err
	}

	fs := &raidFileSystem{FileSystem: pathfs.NewDefaultFileSystem(), mount: m}
	nodeFs := pathfs.NewPathNodeFs(fs, nil)
	server, _, err := nodefs.MountRoot(mountpoint, nodeFs.Root(), nil)
	if err != nil {
		m.Close()
		return raidfs.Error("mount").Wrap(err)
	}

	log.Printf("mounted %v (%s) at %s", imagePaths, m.RAIDMode(), mountpoint)
	server.Serve()
	return m.Close()
}

// raidFileSystem adapts *engine.Mount's path-based operations to go-fuse's
// pathfs.FileSystem interface. Everything not explicitly overridden falls
// through to the embedded default, which reports ENOSYS.
type raidFileSystem struct {
	pathfs.FileSystem
	mount *engine.Mount
}

func fusePath(name string) string {
	return "/" + name
}

func errToStatus(err error) fuse.Status {
	switch {
	case err == nil:
		return fuse.OK
	case errors.Is(err, raidfs.ErrNotFound):
		return fuse.ENOENT
	case errors.Is(err, raidfs.ErrExists):
		return fuse.Status(syscall.EEXIST)
	case errors.Is(err, raidfs.ErrNotADirectory):
		return fuse.Status(syscall.ENOTDIR)
	case errors.Is(err, raidfs.ErrDirectoryNotEmpty):
		return fuse.Status(syscall.ENOTEMPTY)
	case errors.Is(err, raidfs.ErrPermissionDenied):
		return fuse.EPERM
	case errors.Is(err, raidfs.ErrNoSpace):
		return fuse.Status(syscall.ENOSPC)
	case errors.Is(err, raidfs.ErrIsADirectory):
		return fuse.Status(syscall.EISDIR)
	case errors.Is(err, raidfs.ErrNameTooLong):
		return fuse.Status(syscall.ENAMETOOLONG)
	case errors.Is(err, raidfs.ErrInvalidArgument):
		return fuse.EINVAL
	default:
		return fuse.EIO
	}
}

func (fs *raidFileSystem) String() string {
	return "raidfs"
}

func (fs *raidFileSystem) GetAttr(name string, context *fuse.Context) (*fuse.Attr, fuse.Status) {
	inode, err := fs.mount.GetAttr(fusePath(name))
	if err != nil {
		return nil, errToStatus(err)
	}
	return attrFromInode(inode), fuse.OK
}

func attrFromInode(inode rnode.Inode) *fuse.Attr {
	return &fuse.Attr{
		Ino:   uint64(inode.Number),
		Size:  inode.Size,
		Mode:  uint32(inode.Mode.Perm()) | dirModeBit(inode),
		Nlink: inode.Nlink,
		Uid:   inode.UID,
		Gid:   inode.GID,
		Atime: uint64(inode.Atime.Unix()),
		Mtime: uint64(inode.Mtime.Unix()),
		Ctime: uint64(inode.Ctime.Unix()),
	}
}

func dirModeBit(inode rnode.Inode) uint32 {
	if inode.IsDir() {
		return fuse.S_IFDIR
	}
	return fuse.S_IFREG
}

func (fs *raidFileSystem) Mkdir(name string, mode uint32, context *fuse.Context) fuse.Status {
	_, err := fs.mount.Mkdir(fusePath(name), os.FileMode(mode).Perm()|os.ModeDir, context.Uid, context.Gid)
	return errToStatus(err)
}

func (fs *raidFileSystem) Mknod(name string, mode uint32, dev uint32, context *fuse.Context) fuse.Status {
	_, err := fs.mount.Mknod(fusePath(name), os.FileMode(mode).Perm(), context.Uid, context.Gid)
	return errToStatus(err)
}

func (fs *raidFileSystem) Unlink(name string, context *fuse.Context) fuse.Status {
	return errToStatus(fs.mount.Unlink(fusePath(name)))
}

func (fs *raidFileSystem) Rmdir(name string, context *fuse.Context) fuse.Status {
	return errToStatus(fs.mount.Rmdir(fusePath(name)))
}

func (fs *raidFileSystem) OpenDir(name string, context *fuse.Context) ([]fuse.DirEntry, fuse.Status) {
	entries, err := fs.mount.ReadDir(fusePath(name))
	if err != nil {
		return nil, errToStatus(err)
	}

	out := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, fuse.DirEntry{Name: e.Name, Ino: uint64(e.Inum)})
	}
	return out, fuse.OK
}

func (fs *raidFileSystem) Open(name string, flags uint32, context *fuse.Context) (nodefs.File, fuse.Status) {
	if _, err := fs.mount.GetAttr(fusePath(name)); err != nil {
		return nil, errToStatus(err)
	}
	return &raidFile{File: nodefs.NewDefaultFile(), mount: fs.mount, path: fusePath(name)}, fuse.OK
}

func (fs *raidFileSystem) Create(name string, flags uint32, mode uint32, context *fuse.Context) (nodefs.File, fuse.Status) {
	if _, err := fs.mount.Mknod(fusePath(name), os.FileMode(mode).Perm(), context.Uid, context.Gid); err != nil {
		return nil, errToStatus(err)
	}
	return &raidFile{File: nodefs.NewDefaultFile(), mount: fs.mount, path: fusePath(name)}, fuse.OK
}

// raidFile is the per-open-file handle go-fuse keeps for the duration of a
// file descriptor; every call is forwarded straight through to the
// engine, which keeps no handle-local state of its own.
type raidFile struct {
	nodefs.File
	mount *engine.Mount
	path  string
}

func (f *raidFile) Read(dest []byte, off int64) (fuse.ReadResult, fuse.Status) {
	n, err := f.mount.Read(f.path, uint64(off), dest)
	if err != nil {
		return nil, errToStatus(err)
	}
	return fuse.ReadResultData(dest[:n]), fuse.OK
}

func (f *raidFile) Write(data []byte, off int64) (uint32, fuse.Status) {
	n, err := f.mount.Write(f.path, uint64(off), data)
	if err != nil {
		return uint32(n), errToStatus(err)
	}
	return uint32(n), fuse.OK
}

func (f *raidFile) GetAttr(out *fuse.Attr) fuse.Status {
	inode, err := f.mount.GetAttr(f.path)
	if err != nil {
		return errToStatus(err)
	}
	*out = *attrFromInode(inode)
	return fuse.OK
}

func (f *raidFile) Flush() fuse.Status {
	return fuse.OK
}
