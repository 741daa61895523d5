package mountvfs

import (
	"io"
	"os"
	"time"
)

// FileRecord describes one regular file found by Backend.List.
type FileRecord struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// BackendFile is a random-access handle returned by Backend.Open. Archive
// readers keep it open for as long as any entry of the archive is
// referenced by the tree.
type BackendFile interface {
	io.ReaderAt
	io.Closer
	Stat() (os.FileInfo, error)
}

// Backend enumerates and stores real directories. Paths handed to a
// Backend are in its own syntax; the engine never interprets them beyond
// Join, Rel and Canonical.
//
// Implementations must be safe for concurrent use and comparable with ==.
type Backend interface {
	// List returns the regular files and the subdirectory names of dir.
	List(dir string) (files []FileRecord, subdirs []string, err error)
	ReadFile(dir, name string) ([]byte, error)
	WriteFile(dir, name string, data []byte) error
	CreateDirectory(dir string) error
	Delete(dir, name string) error
	Open(dir, name string) (BackendFile, error)

	// Join returns the path of name inside dir.
	Join(dir, name string) string
	// Rel returns target relative to base using "/" separators, and false
	// when target is not inside base.
	Rel(base, target string) (string, bool)
	// Canonical returns the normalized form of p used as mount table key.
	Canonical(p string) (string, error)
}

// isCurrentDirShorthand reports whether p is a spelling of "the current
// directory" that cannot be mounted.
func isCurrentDirShorthand(p string) bool {
	switch p {
	case ".", "./", ".\\":
		return true
	}
	return false
}
