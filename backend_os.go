package mountvfs

import "github.com/spf13/afero"

// OSBackend stores real directories on the host filesystem through
// afero's OsFs.
type OSBackend struct {
	AferoBackend
}

var _ Backend = (*OSBackend)(nil)

// NewOSBackend returns a Backend over the host filesystem.
func NewOSBackend() *OSBackend {
	return &OSBackend{AferoBackend: AferoBackend{fs: afero.NewOsFs(), FileMode: 0644, DirMode: 0755}}
}
