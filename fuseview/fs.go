// Package fuseview serves a read-only FUSE view of a mountvfs.VFS.
package fuseview

import (
	"os"
	"syscall"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/absfs/mountvfs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	dirPerm  = 0555
	filePerm = 0444
)

// FS is the FUSE filesystem. Every node resolves its VFS path on each
// request, so mounts and invalidations show up without remounting.
type FS struct {
	v   *mountvfs.VFS
	log logrus.FieldLogger
	uid uint32
	gid uint32
}

var _ fusefs.FS = (*FS)(nil)

// Option configures an FS.
type Option func(*FS)

// WithLogger sets the logger of request failures.
func WithLogger(l logrus.FieldLogger) Option {
	return func(f *FS) {
		f.log = l
	}
}

// WithOwner sets the owner reported for every node. The default is the
// current process.
func WithOwner(uid, gid uint32) Option {
	return func(f *FS) {
		f.uid = uid
		f.gid = gid
	}
}

// New returns a FUSE view of v.
func New(v *mountvfs.VFS, opts ...Option) *FS {
	f := &FS{
		v:   v,
		uid: uint32(os.Getuid()),
		gid: uint32(os.Getgid()),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logrus.StandardLogger()
	}
	return f
}

// Root implements fusefs.FS.
func (f *FS) Root() (fusefs.Node, error) {
	return &Dir{fs: f, path: mountvfs.Root, inode: 1}, nil
}

// errno maps an engine error onto the errno returned to the kernel.
func (f *FS) errno(op string, p mountvfs.Path, err error) error {
	switch {
	case errors.Is(err, mountvfs.ErrFileNotFound),
		errors.Is(err, mountvfs.ErrDirectoryNotFound),
		errors.Is(err, mountvfs.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, mountvfs.ErrAccessDenied):
		return syscall.EACCES
	case errors.Is(err, mountvfs.ErrOutOfMemory):
		return syscall.EFBIG
	case errors.Is(err, mountvfs.ErrNonCanonicalPath):
		return syscall.EINVAL
	}
	f.log.WithFields(logrus.Fields{
		"op":       op,
		"vfs_path": p.String(),
	}).WithError(err).Warn("fuse request failed")
	return syscall.EIO
}

func (f *FS) fillAttr(a *fuse.Attr, inode uint64, mode os.FileMode) {
	a.Inode = inode
	a.Mode = mode
	a.Uid = f.uid
	a.Gid = f.gid
	a.BlockSize = 4096
}

func direntType(isDir bool) fuse.DirentType {
	if isDir {
		return fuse.DT_Dir
	}
	return fuse.DT_File
}
