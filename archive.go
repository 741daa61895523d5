package mountvfs

import (
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// ArchiveHandle identifies one entry inside an open archive.
type ArchiveHandle int

// ArchiveReader walks and loads the entries of an open archive.
type ArchiveReader interface {
	// ForEachEntry calls fn for every entry in archive order. Directory
	// entries are reported with a trailing "/" in internalPath. A non-nil
	// error from fn stops the walk and is returned.
	ForEachEntry(fn func(internalPath string, size int64, mtime time.Time, handle ArchiveHandle) error) error
	Load(handle ArchiveHandle) ([]byte, error)
	Close() error
}

// ArchiveFormat recognizes and opens one archive container format.
type ArchiveFormat interface {
	// Match reports whether a file with this name is an archive of the format.
	Match(name string) bool
	// Open reads the archive from f, whose size is size. The reader owns f
	// from then on and closes it in Close; on error f is closed by Open.
	Open(f BackendFile, size int64) (ArchiveReader, error)
}

// sharedArchive is an open archive shared by every ArchiveEntry pointing
// into it. The reader is closed when the last reference is released.
type sharedArchive struct {
	path   string
	reader ArchiveReader
	refs   atomic.Int64

	closeOnce sync.Once
	closed    atomic.Bool
}

func newSharedArchive(path string, reader ArchiveReader) *sharedArchive {
	a := &sharedArchive{path: path, reader: reader}
	a.refs.Store(1)
	return a
}

// retain adds a reference. The caller must already hold one, directly or
// through a tree node it reads under its directory lock.
func (a *sharedArchive) retain() {
	a.refs.Add(1)
}

// tryRetain adds a reference unless the archive has already been closed.
func (a *sharedArchive) tryRetain() bool {
	for {
		n := a.refs.Load()
		if n <= 0 {
			return false
		}
		if a.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (a *sharedArchive) release() {
	if a.refs.Add(-1) > 0 {
		return
	}
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		a.reader.Close()
	})
}

func (a *sharedArchive) load(handle ArchiveHandle) ([]byte, error) {
	if a.closed.Load() {
		return nil, errors.Wrapf(ErrArchiveCorrupt, "archive %s released", a.path)
	}
	data, err := a.reader.Load(handle)
	if err != nil {
		return nil, errors.Wrapf(ErrArchiveCorrupt, "load entry %d of %s: %v", handle, a.path, err)
	}
	return data, nil
}

// archiveEntryPath converts an archive-internal name into a VFS path
// relative to the directory holding the archive. Names that would escape
// that directory or contain forbidden characters are rejected.
func archiveEntryPath(name string) (Path, bool) {
	name = strings.TrimLeft(name, "/")
	if name == "" {
		return Path{}, false
	}
	dir := strings.HasSuffix(name, "/")
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned != strings.TrimSuffix(name, "/") {
		return Path{}, false
	}
	if dir {
		cleaned += "/"
	}
	p, err := ParsePath(cleaned)
	if err != nil {
		return Path{}, false
	}
	return p, true
}

// matchArchive returns the first format recognizing name.
func matchArchive(formats []ArchiveFormat, name string) ArchiveFormat {
	for _, f := range formats {
		if f.Match(name) {
			return f
		}
	}
	return nil
}
