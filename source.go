package mountvfs

import (
	"fmt"
)

// Priority ranks sources contributing the same name; higher wins.
type Priority uint

// Precedence breaks ties between otherwise identical files.
type Precedence int

const (
	// PrecedenceArchived marks files packed inside an archive
	PrecedenceArchived Precedence = iota
	// PrecedenceLoose marks files stored directly in a real directory
	PrecedenceLoose
)

func (p Precedence) String() string {
	switch p {
	case PrecedenceArchived:
		return "archived"
	case PrecedenceLoose:
		return "loose"
	}
	return fmt.Sprintf("Precedence(%d)", int(p))
}

// MountFlags modify how a real directory is attached.
type MountFlags uint8

const (
	// MountWatch registers the directory, and every subdirectory
	// attached from it during population, with the Watcher.
	MountWatch MountFlags = 1 << iota
	// MountArchivable marks the directory's contents as eligible for
	// packing into archives by build tooling. The engine carries the flag
	// to every synthesized subdirectory but does not interpret it.
	MountArchivable
)

func (f MountFlags) String() string {
	s := ""
	if f&MountWatch != 0 {
		s += "watch"
	}
	if f&MountArchivable != 0 {
		if s != "" {
			s += "|"
		}
		s += "archivable"
	}
	if s == "" {
		return "none"
	}
	return s
}

// Source is the backing store a File's contents are loaded from.
type Source interface {
	// Priority is the rank of the mount that contributed the file.
	Priority() Priority
	// Precedence tells loose files from archived ones.
	Precedence() Precedence
	// Load returns the contents of the named file. Archive entries ignore name.
	Load(name string) ([]byte, error)
	// String describes the source for logs and FileInfo.Origin.
	String() string
}

// RealDirectory is a backend directory attached to a VFS directory.
// Its fields are immutable after construction.
type RealDirectory struct {
	backend  Backend
	path     string
	priority Priority
	flags    MountFlags
}

var _ Source = (*RealDirectory)(nil)

func newRealDirectory(backend Backend, path string, priority Priority, flags MountFlags) *RealDirectory {
	return &RealDirectory{backend: backend, path: path, priority: priority, flags: flags}
}

// Path returns the backend path of the directory.
func (rd *RealDirectory) Path() string { return rd.path }

// Flags returns the mount flags the directory was attached with.
func (rd *RealDirectory) Flags() MountFlags { return rd.flags }

func (rd *RealDirectory) Priority() Priority { return rd.priority }

func (rd *RealDirectory) Precedence() Precedence { return PrecedenceLoose }

func (rd *RealDirectory) Load(name string) ([]byte, error) {
	return rd.backend.ReadFile(rd.path, name)
}

// Store writes data to the named file inside the directory.
func (rd *RealDirectory) Store(name string, data []byte) error {
	return rd.backend.WriteFile(rd.path, name, data)
}

func (rd *RealDirectory) String() string {
	return rd.path
}

// child synthesizes the RealDirectory of a subdirectory found during population.
func (rd *RealDirectory) child(name string) *RealDirectory {
	return newRealDirectory(rd.backend, rd.backend.Join(rd.path, name), rd.priority, rd.flags)
}

// ArchiveEntry is a file packed inside an archive. Every ArchiveEntry
// referenced by the tree holds one reference on the shared archive.
type ArchiveEntry struct {
	archive  *sharedArchive
	handle   ArchiveHandle
	internal string
	priority Priority
}

var _ Source = (*ArchiveEntry)(nil)

func (ae *ArchiveEntry) Priority() Priority { return ae.priority }

func (ae *ArchiveEntry) Precedence() Precedence { return PrecedenceArchived }

func (ae *ArchiveEntry) Load(string) ([]byte, error) {
	return ae.archive.load(ae.handle)
}

// ArchivePath returns the backend path of the containing archive.
func (ae *ArchiveEntry) ArchivePath() string { return ae.archive.path }

// InternalPath returns the path of the entry inside the archive.
func (ae *ArchiveEntry) InternalPath() string { return ae.internal }

func (ae *ArchiveEntry) String() string {
	return ae.archive.path + "!" + ae.internal
}

// releaseSource drops the archive reference held by src, if any.
func releaseSource(src Source) {
	if ae, ok := src.(*ArchiveEntry); ok {
		ae.archive.release()
	}
}

func retainSource(src Source) {
	if ae, ok := src.(*ArchiveEntry); ok {
		ae.archive.retain()
	}
}

// tryRetainSource is retainSource for callers holding no reference yet.
// It fails when src is an archive entry whose archive was closed.
func tryRetainSource(src Source) bool {
	if ae, ok := src.(*ArchiveEntry); ok {
		return ae.archive.tryRetain()
	}
	return true
}
