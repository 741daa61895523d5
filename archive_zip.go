package mountvfs

import (
	"archive/zip"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ZipFormat opens zip containers.
type ZipFormat struct {
	// Extensions lists the recognized file name suffixes, compared
	// case-insensitively. Empty means ".zip".
	Extensions []string
}

var _ ArchiveFormat = ZipFormat{}

func (z ZipFormat) Match(name string) bool {
	exts := z.Extensions
	if len(exts) == 0 {
		exts = []string{".zip"}
	}
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func (z ZipFormat) Open(f BackendFile, size int64) (ArchiveReader, error) {
	r, err := zip.NewReader(f, size)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(ErrArchiveCorrupt, err.Error())
	}
	return &zipReader{file: f, zr: r}, nil
}

type zipReader struct {
	file BackendFile
	zr   *zip.Reader
}

func (r *zipReader) ForEachEntry(fn func(string, int64, time.Time, ArchiveHandle) error) error {
	for i, f := range r.zr.File {
		if err := fn(f.Name, int64(f.UncompressedSize64), f.Modified, ArchiveHandle(i)); err != nil {
			return err
		}
	}
	return nil
}

func (r *zipReader) Load(handle ArchiveHandle) ([]byte, error) {
	if handle < 0 || int(handle) >= len(r.zr.File) {
		return nil, errors.Errorf("entry %d out of range", handle)
	}
	rc, err := r.zr.File[handle].Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (r *zipReader) Close() error {
	return r.file.Close()
}
