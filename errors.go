package mountvfs

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
)

var (
	// ErrNonCanonicalPath is returned for malformed VFS paths and for the
	// current-directory shorthand passed as a mount source.
	ErrNonCanonicalPath = errors.New("non-canonical path")
	// ErrAlreadyMounted is returned when a real path is already in the mount table
	ErrAlreadyMounted = errors.New("real path already mounted")
	// ErrDirectoryNotFound is returned when a lookup crosses a missing directory
	ErrDirectoryNotFound = errors.New("directory not found")
	// ErrFileNotFound is returned when a lookup requires a file that is absent
	ErrFileNotFound = errors.New("file not found")
	// ErrNoRealDirectory is returned when a write targets a VFS directory
	// that has no attached real directory to store into.
	ErrNoRealDirectory = errors.New("no real directory attached")
	// ErrIO classifies failures reported by the backend
	ErrIO = errors.New("i/o error")
	// ErrNotFound classifies backend failures for missing real paths
	ErrNotFound = errors.New("real path not found")
	// ErrAccessDenied classifies backend permission failures
	ErrAccessDenied = errors.New("access denied")
	// ErrArchiveCorrupt is returned when an archive cannot be read
	ErrArchiveCorrupt = errors.New("archive corrupt")
	// ErrOutOfMemory is returned when a file exceeds the configured load limit
	ErrOutOfMemory = errors.New("out of memory")
)

// Operation names used in *Error values and log fields.
const (
	OpMount      = "mount"
	OpLookup     = "lookup"
	OpPopulate   = "populate"
	OpLoad       = "load"
	OpCreate     = "create"
	OpRemove     = "remove"
	OpStat       = "stat"
	OpReadDir    = "readdir"
	OpRealPath   = "realpath"
	OpInvalidate = "invalidate"
)

// Error records a failed VFS operation and the path it was applied to.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("mountvfs: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("mountvfs: %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Err: err}
}

// ioError carries a backend failure together with its class sentinel so
// that both errors.Is(err, ErrIO) and errors.Is(err, os.ErrNotExist) hold.
type ioError struct {
	class error
	cause error
}

func (e *ioError) Error() string {
	return e.class.Error() + ": " + e.cause.Error()
}

func (e *ioError) Unwrap() error {
	return e.cause
}

func (e *ioError) Is(target error) bool {
	return target == e.class || target == ErrIO
}

// classifyIOError maps a backend error onto ErrNotFound, ErrAccessDenied
// or ErrIO, keeping the original error reachable.
func classifyIOError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	var class error
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAccessDenied):
		return errors.Wrapf(err, format, args...)
	case os.IsNotExist(err), errors.Is(err, os.ErrNotExist):
		class = ErrNotFound
	case os.IsPermission(err), errors.Is(err, os.ErrPermission):
		class = ErrAccessDenied
	default:
		class = ErrIO
	}
	return &ioError{class: class, cause: errors.Wrapf(err, format, args...)}
}
