package mountvfs

import (
	"io"
	"os"
	"path"
	"strings"

	"github.com/absfs/absfs"
	"github.com/pkg/errors"
)

// AbsBackend stores real directories in an absfs.FileSystem, such as a
// memfs instance or any other absfs implementation. Paths are slash
// separated and absolute within that filesystem.
type AbsBackend struct {
	fs absfs.FileSystem
}

var _ Backend = (*AbsBackend)(nil)

// NewAbsBackend returns a Backend over fs.
func NewAbsBackend(fs absfs.FileSystem) *AbsBackend {
	return &AbsBackend{fs: fs}
}

// FileSystem returns the wrapped filesystem.
func (b *AbsBackend) FileSystem() absfs.FileSystem {
	return b.fs
}

// cleanAbsPath normalizes a path to the absolute form absfs expects
func cleanAbsPath(p string) string {
	cleaned := path.Clean("/" + p)
	return cleaned
}

func (b *AbsBackend) List(dir string) ([]FileRecord, []string, error) {
	dir = cleanAbsPath(dir)
	f, err := b.fs.Open(dir)
	if err != nil {
		return nil, nil, classifyIOError(err, "list %s", dir)
	}
	defer f.Close()

	infos, err := f.Readdir(-1)
	if err != nil && err != io.EOF {
		return nil, nil, classifyIOError(err, "list %s", dir)
	}
	var files []FileRecord
	var subdirs []string
	for _, info := range infos {
		switch {
		case info.Name() == "." || info.Name() == "..":
		case info.IsDir():
			subdirs = append(subdirs, info.Name())
		case info.Mode().IsRegular():
			files = append(files, FileRecord{Name: info.Name(), Size: info.Size(), ModTime: info.ModTime()})
		}
	}
	return files, subdirs, nil
}

func (b *AbsBackend) ReadFile(dir, name string) ([]byte, error) {
	p := b.Join(dir, name)
	f, err := b.fs.Open(p)
	if err != nil {
		return nil, classifyIOError(err, "read %s", p)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, classifyIOError(err, "read %s", p)
	}
	return data, nil
}

func (b *AbsBackend) WriteFile(dir, name string, data []byte) error {
	p := b.Join(dir, name)
	f, err := b.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return classifyIOError(err, "write %s", p)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return classifyIOError(err, "write %s", p)
	}
	return classifyIOError(f.Close(), "close %s", p)
}

func (b *AbsBackend) CreateDirectory(dir string) error {
	dir = cleanAbsPath(dir)
	return classifyIOError(b.fs.MkdirAll(dir, 0755), "mkdir %s", dir)
}

func (b *AbsBackend) Delete(dir, name string) error {
	p := b.Join(dir, name)
	return classifyIOError(b.fs.Remove(p), "delete %s", p)
}

func (b *AbsBackend) Open(dir, name string) (BackendFile, error) {
	p := b.Join(dir, name)
	f, err := b.fs.Open(p)
	if err != nil {
		return nil, classifyIOError(err, "open %s", p)
	}
	return f, nil
}

func (b *AbsBackend) Join(dir, name string) string {
	return cleanAbsPath(path.Join(dir, name))
}

func (b *AbsBackend) Rel(base, target string) (string, bool) {
	base = cleanAbsPath(base)
	target = cleanAbsPath(target)
	if base == target {
		return "", true
	}
	prefix := base
	if prefix != "/" {
		prefix += "/"
	}
	if !strings.HasPrefix(target, prefix) {
		return "", false
	}
	return strings.TrimPrefix(target, prefix), true
}

func (b *AbsBackend) Canonical(p string) (string, error) {
	if p == "" {
		return "", errors.Wrap(ErrNonCanonicalPath, "empty real path")
	}
	return cleanAbsPath(p), nil
}
