package fuseview

import (
	"context"
	"os"
	"syscall"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/absfs/mountvfs"
)

// Dir is a directory node.
type Dir struct {
	fs    *FS
	path  mountvfs.Path
	inode uint64
}

var (
	_ fusefs.Node               = (*Dir)(nil)
	_ fusefs.NodeStringLookuper = (*Dir)(nil)
	_ fusefs.HandleReadDirAller = (*Dir)(nil)
)

// Attr implements fusefs.Node.
func (d *Dir) Attr(_ context.Context, a *fuse.Attr) error {
	d.fs.fillAttr(a, d.inode, os.ModeDir|dirPerm)
	a.Nlink = 2
	return nil
}

// Lookup implements fusefs.NodeStringLookuper. A file shadows a
// directory of the same name.
func (d *Dir) Lookup(_ context.Context, name string) (fusefs.Node, error) {
	inode := fusefs.GenerateDynamicInode(d.inode, name)

	fp, err := d.path.Child(name, false)
	if err != nil {
		return nil, syscall.ENOENT
	}
	if info, err := d.fs.v.Stat(fp); err == nil {
		return &File{fs: d.fs, path: fp, inode: inode, size: info.Size, mtime: info.ModTime}, nil
	}

	dp, err := d.path.Child(name, true)
	if err != nil {
		return nil, syscall.ENOENT
	}
	if _, err := d.fs.v.Stat(dp); err != nil {
		return nil, d.fs.errno("lookup", dp, err)
	}
	return &Dir{fs: d.fs, path: dp, inode: inode}, nil
}

// ReadDirAll implements fusefs.HandleReadDirAller.
func (d *Dir) ReadDirAll(_ context.Context) ([]fuse.Dirent, error) {
	entries, err := d.fs.v.ReadDir(d.path)
	if err != nil {
		return nil, d.fs.errno("readdir", d.path, err)
	}
	dirents := make([]fuse.Dirent, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		dirents = append(dirents, fuse.Dirent{
			Inode: fusefs.GenerateDynamicInode(d.inode, e.Name),
			Name:  e.Name,
			Type:  direntType(e.IsDir),
		})
	}
	return dirents, nil
}
