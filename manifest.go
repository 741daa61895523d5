package mountvfs

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Manifest is a mount table read from YAML:
//
//	cache_size: 67108864
//	mounts:
//	  - vfs: ""
//	    path: /opt/game/data
//	  - vfs: mods/
//	    path: /home/user/mods/a
//	    priority: 1
//	    watch: true
type Manifest struct {
	// CacheSize is the file cache budget in bytes. Nil keeps the default.
	CacheSize   *int64          `yaml:"cache_size,omitempty"`
	MaxFileSize int64           `yaml:"max_file_size,omitempty"`
	Mounts      []ManifestMount `yaml:"mounts"`
}

// ManifestMount is one mount table entry of a Manifest.
type ManifestMount struct {
	VFS        string `yaml:"vfs"`
	Path       string `yaml:"path"`
	Priority   uint   `yaml:"priority"`
	Watch      bool   `yaml:"watch"`
	Archivable bool   `yaml:"archivable"`
}

// Flags returns the mount flags of the entry.
func (m ManifestMount) Flags() MountFlags {
	var flags MountFlags
	if m.Watch {
		flags |= MountWatch
	}
	if m.Archivable {
		flags |= MountArchivable
	}
	return flags
}

// LoadManifest decodes a manifest and checks that every entry names a
// real path and a valid VFS directory.
func LoadManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decode manifest")
	}
	for i, mount := range m.Mounts {
		if mount.Path == "" {
			return nil, errors.Errorf("manifest mount %d: missing path", i)
		}
		if _, err := DirPath(mount.VFS); err != nil {
			return nil, errors.Wrapf(err, "manifest mount %d", i)
		}
	}
	return &m, nil
}

// ReadManifestFile loads the manifest stored at name.
func ReadManifestFile(name string) (*Manifest, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "open manifest")
	}
	defer f.Close()
	m, err := LoadManifest(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", name)
	}
	return m, nil
}

// Options returns the VFS options the manifest configures.
func (m *Manifest) Options() []Option {
	var opts []Option
	if m.CacheSize != nil {
		opts = append(opts, WithCacheSize(*m.CacheSize))
	}
	if m.MaxFileSize > 0 {
		opts = append(opts, WithMaxFileSize(m.MaxFileSize))
	}
	return opts
}

// Apply mounts every entry onto v in manifest order. It stops at the
// first failing entry.
func (m *Manifest) Apply(v *VFS) error {
	for i, mount := range m.Mounts {
		dir, err := DirPath(mount.VFS)
		if err != nil {
			return errors.Wrapf(err, "manifest mount %d", i)
		}
		if err := v.Mount(dir, mount.Path, Priority(mount.Priority), mount.Flags()); err != nil {
			return errors.Wrapf(err, "manifest mount %d", i)
		}
	}
	return nil
}
