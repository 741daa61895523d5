package fuseview

import (
	"context"
	"syscall"
	"time"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/absfs/mountvfs"
)

// File is a file node. Reads load the whole file through the VFS cache.
type File struct {
	fs    *FS
	path  mountvfs.Path
	inode uint64
	size  int64
	mtime time.Time
}

var (
	_ fusefs.Node            = (*File)(nil)
	_ fusefs.NodeOpener      = (*File)(nil)
	_ fusefs.HandleReadAller = (*File)(nil)
)

// Attr implements fusefs.Node.
func (f *File) Attr(_ context.Context, a *fuse.Attr) error {
	f.fs.fillAttr(a, f.inode, filePerm)
	a.Size = uint64(f.size)
	a.Blocks = uint64((f.size + 511) / 512)
	a.Mtime = f.mtime
	a.Atime = f.mtime
	a.Ctime = f.mtime
	a.Nlink = 1
	return nil
}

// Open implements fusefs.NodeOpener. Only read access is granted.
func (f *File) Open(_ context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	if !req.Flags.IsReadOnly() {
		return nil, syscall.EPERM
	}
	resp.Flags |= fuse.OpenKeepCache
	return f, nil
}

// ReadAll implements fusefs.HandleReadAller.
func (f *File) ReadAll(_ context.Context) ([]byte, error) {
	data, err := f.fs.v.Load(f.path)
	if err != nil {
		return nil, f.fs.errno("read", f.path, err)
	}
	return data, nil
}
