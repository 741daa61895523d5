package mountvfs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// AferoBackend stores real directories in an afero.Fs. Paths use the host
// separator, as afero does.
type AferoBackend struct {
	fs afero.Fs

	// FileMode is used for files created by WriteFile. Zero means 0644.
	FileMode os.FileMode
	// DirMode is used for directories created by CreateDirectory. Zero means 0755.
	DirMode os.FileMode
}

var _ Backend = (*AferoBackend)(nil)

// NewAferoBackend returns a Backend over fs. A nil fs means the host
// filesystem.
func NewAferoBackend(fs afero.Fs) *AferoBackend {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &AferoBackend{fs: fs, FileMode: 0644, DirMode: 0755}
}

// Fs returns the wrapped filesystem.
func (b *AferoBackend) Fs() afero.Fs {
	return b.fs
}

func (b *AferoBackend) fileMode() os.FileMode {
	if b.FileMode == 0 {
		return 0644
	}
	return b.FileMode
}

func (b *AferoBackend) dirMode() os.FileMode {
	if b.DirMode == 0 {
		return 0755
	}
	return b.DirMode
}

func (b *AferoBackend) List(dir string) ([]FileRecord, []string, error) {
	infos, err := afero.ReadDir(b.fs, dir)
	if err != nil {
		return nil, nil, classifyIOError(err, "list %s", dir)
	}
	var files []FileRecord
	var subdirs []string
	for _, info := range infos {
		name := info.Name()
		if name == "." || name == ".." {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			// follow links so linked directories are enumerated too
			target, err := b.fs.Stat(filepath.Join(dir, name))
			if err != nil {
				continue
			}
			info = target
		}
		switch {
		case info.IsDir():
			subdirs = append(subdirs, name)
		case info.Mode().IsRegular():
			files = append(files, FileRecord{Name: name, Size: info.Size(), ModTime: info.ModTime()})
		}
	}
	return files, subdirs, nil
}

func (b *AferoBackend) ReadFile(dir, name string) ([]byte, error) {
	p := filepath.Join(dir, name)
	data, err := afero.ReadFile(b.fs, p)
	if err != nil {
		return nil, classifyIOError(err, "read %s", p)
	}
	return data, nil
}

func (b *AferoBackend) WriteFile(dir, name string, data []byte) error {
	p := filepath.Join(dir, name)
	return classifyIOError(afero.WriteFile(b.fs, p, data, b.fileMode()), "write %s", p)
}

func (b *AferoBackend) CreateDirectory(dir string) error {
	return classifyIOError(b.fs.MkdirAll(dir, b.dirMode()), "mkdir %s", dir)
}

func (b *AferoBackend) Delete(dir, name string) error {
	p := filepath.Join(dir, name)
	return classifyIOError(b.fs.Remove(p), "delete %s", p)
}

func (b *AferoBackend) Open(dir, name string) (BackendFile, error) {
	p := filepath.Join(dir, name)
	f, err := b.fs.Open(p)
	if err != nil {
		return nil, classifyIOError(err, "open %s", p)
	}
	return f, nil
}

func (b *AferoBackend) Join(dir, name string) string {
	return filepath.Join(dir, name)
}

func (b *AferoBackend) Rel(base, target string) (string, bool) {
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return filepath.ToSlash(rel), true
}

// Canonical resolves p against the working directory on the host
// filesystem and against the root everywhere else.
func (b *AferoBackend) Canonical(p string) (string, error) {
	if p == "" {
		return "", errors.Wrap(ErrNonCanonicalPath, "empty real path")
	}
	if _, ok := b.fs.(*afero.OsFs); !ok {
		return filepath.Clean(string(filepath.Separator) + p), nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errors.Wrapf(err, "canonicalize %s", p)
	}
	return filepath.Clean(abs), nil
}
