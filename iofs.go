package mountvfs

import (
	"bytes"
	"io"
	"io/fs"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// FS returns a read-only io/fs view of the VFS. Names use io/fs syntax;
// "." is the root. The view implements fs.ReadDirFS, fs.ReadFileFS and
// fs.StatFS.
func (v *VFS) FS() fs.FS {
	return &ioFS{v: v}
}

type ioFS struct {
	v *VFS
}

var (
	_ fs.ReadDirFS  = (*ioFS)(nil)
	_ fs.ReadFileFS = (*ioFS)(nil)
	_ fs.StatFS     = (*ioFS)(nil)
)

// resolve finds name as a file first and as a directory second.
func (fsys *ioFS) resolve(op, name string) (Path, *Directory, *File, error) {
	if !fs.ValidPath(name) {
		return Path{}, nil, nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	root := fsys.v.root.Load()
	if name == "." {
		d, _, err := fsys.v.lookup(root, Root, 0)
		if err != nil {
			return Path{}, nil, nil, &fs.PathError{Op: op, Path: name, Err: err}
		}
		return Root, d, nil, nil
	}

	p, err := ParsePath(name)
	if err != nil {
		return Path{}, nil, nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	_, f, err := fsys.v.lookup(root, p, 0)
	if err == nil {
		return p, nil, f, nil
	}
	if !errors.Is(err, ErrFileNotFound) {
		return Path{}, nil, nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
	}
	dp, err := DirPath(name)
	if err != nil {
		return Path{}, nil, nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	d, _, err := fsys.v.lookup(root, dp, 0)
	if err != nil {
		return Path{}, nil, nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
	}
	return dp, d, nil, nil
}

func (fsys *ioFS) Open(name string) (fs.File, error) {
	p, d, f, err := fsys.resolve("open", name)
	if err != nil {
		return nil, err
	}
	if d != nil {
		return &ioDir{info: dirInfo(name), entries: ioEntries(d)}, nil
	}
	data, err := fsys.v.Load(p)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &ioFile{info: newIOInfo(f), r: bytes.NewReader(data)}, nil
}

func (fsys *ioFS) Stat(name string) (fs.FileInfo, error) {
	_, d, f, err := fsys.resolve("stat", name)
	if err != nil {
		return nil, err
	}
	if d != nil {
		return dirInfo(name), nil
	}
	return newIOInfo(f), nil
}

func (fsys *ioFS) ReadDir(name string) ([]fs.DirEntry, error) {
	_, d, _, err := fsys.resolve("readdir", name)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: errors.New("not a directory")}
	}
	return ioEntries(d), nil
}

func (fsys *ioFS) ReadFile(name string) ([]byte, error) {
	p, d, _, err := fsys.resolve("read", name)
	if err != nil {
		return nil, err
	}
	if d != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: errors.New("is a directory")}
	}
	data, err := fsys.v.Load(p)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	return append([]byte(nil), data...), nil
}

// ioInfo implements fs.FileInfo and fs.DirEntry.
type ioInfo struct {
	name  string
	size  int64
	mode  fs.FileMode
	mtime time.Time
	file  *File
}

func newIOInfo(f *File) *ioInfo {
	return &ioInfo{name: f.name, size: f.size, mode: 0444, mtime: f.mtime, file: f}
}

func dirInfo(name string) *ioInfo {
	base := name
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == Separator {
			base = name[i+1:]
			break
		}
	}
	return &ioInfo{name: base, mode: fs.ModeDir | 0555}
}

func (i *ioInfo) Name() string               { return i.name }
func (i *ioInfo) Size() int64                { return i.size }
func (i *ioInfo) Mode() fs.FileMode          { return i.mode }
func (i *ioInfo) ModTime() time.Time         { return i.mtime }
func (i *ioInfo) IsDir() bool                { return i.mode.IsDir() }
func (i *ioInfo) Type() fs.FileMode          { return i.mode.Type() }
func (i *ioInfo) Info() (fs.FileInfo, error) { return i, nil }

// Sys returns the *File for files and nil for directories.
func (i *ioInfo) Sys() interface{} {
	if i.file == nil {
		return nil
	}
	return i.file
}

// ioEntries lists d sorted by name as fs.ReadDir requires.
func ioEntries(d *Directory) []fs.DirEntry {
	entries := dirEntries(d)
	list := make([]fs.DirEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir {
			list = append(list, dirInfo(e.Name))
			continue
		}
		list = append(list, newIOInfo(e.File))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

type ioFile struct {
	info *ioInfo
	r    *bytes.Reader
}

func (f *ioFile) Stat() (fs.FileInfo, error) { return f.info, nil }

func (f *ioFile) Read(p []byte) (int, error) { return f.r.Read(p) }

func (f *ioFile) ReadAt(p []byte, off int64) (int, error) { return f.r.ReadAt(p, off) }

func (f *ioFile) Seek(offset int64, whence int) (int64, error) { return f.r.Seek(offset, whence) }

func (f *ioFile) Close() error { return nil }

type ioDir struct {
	info    *ioInfo
	entries []fs.DirEntry
	offset  int
}

func (d *ioDir) Stat() (fs.FileInfo, error) { return d.info, nil }

func (d *ioDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.info.name, Err: errors.New("is a directory")}
}

func (d *ioDir) Close() error { return nil }

func (d *ioDir) ReadDir(n int) ([]fs.DirEntry, error) {
	rest := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return append([]fs.DirEntry(nil), rest...), nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	if n > len(rest) {
		n = len(rest)
	}
	d.offset += n
	return append([]fs.DirEntry(nil), rest[:n]...), nil
}
