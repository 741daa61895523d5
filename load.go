package mountvfs

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Load returns the contents of the file p, from the cache when possible.
// The returned slice is shared with the cache and must not be modified.
func (v *VFS) Load(p Path) ([]byte, error) {
	if p.IsDir() {
		return nil, newError(OpLoad, p.String(), errors.Wrap(ErrNonCanonicalPath, "not a file path"))
	}
	key := p.Key()
	if data, ok := v.cache.get(key); ok {
		return data, nil
	}
	token := v.cache.begin()

	f, err := v.lookupRef(p)
	if err != nil {
		v.cache.abort(token)
		return nil, newError(OpLoad, p.String(), err)
	}
	defer releaseSource(f.source)

	if v.maxFileSize > 0 && f.size > v.maxFileSize {
		v.cache.abort(token)
		return nil, newError(OpLoad, p.String(),
			errors.Wrapf(ErrOutOfMemory, "%d bytes exceed the %d byte limit", f.size, v.maxFileSize))
	}
	data, err := f.source.Load(f.name)
	if err != nil {
		v.cache.abort(token)
		return nil, newError(OpLoad, p.String(), err)
	}

	if evicted := v.cache.put(key, data, token); len(evicted) > 0 {
		v.pathLog(p).WithField("evicted", len(evicted)).Debug("cache evicted files")
	}
	return data, nil
}

// lookupRefAttempts bounds how often lookupRef looks p up again after
// finding it dropped by a concurrent invalidation or rebuild.
const lookupRefAttempts = 3

// lookupRef resolves the file p and takes a reference on its source, so
// an invalidation, RemoveFile, Clear or Rebuild running meanwhile cannot
// close an archive under the read. The caller releases it.
func (v *VFS) lookupRef(p Path) (*File, error) {
	for attempt := 1; ; attempt++ {
		root := v.root.Load()
		d, _, err := v.lookup(root, p, 0)
		if err == nil {
			if f := d.fileRef(p.Base()); f != nil {
				return f, nil
			}
			err = errors.Wrapf(ErrFileNotFound, "%q", p.Base())
		}
		// a missing file is retried only while its directory awaits the
		// repopulation an invalidation requested, or the tree was swapped
		retry := errors.Is(err, ErrFileNotFound) && (!d.Populated() || v.root.Load() != root)
		if !retry || attempt == lookupRefAttempts {
			return nil, err
		}
	}
}

// Invalidate drops cached state for p. For a file the cached contents and
// the tree node are dropped; for a directory every cached file below it is
// dropped. Either way the directory is repopulated on its next lookup, so
// changes made to the real directories become visible.
func (v *VFS) Invalidate(p Path) error {
	dirPath := p
	if p.IsDir() {
		v.cache.invalidateTree(p.Key())
	} else {
		v.cache.invalidate(p.Key())
		dirPath = p.Parent()
	}

	d, _, err := v.lookup(v.root.Load(), dirPath, lookupSkipPopulate)
	if err != nil {
		if errors.Is(err, ErrDirectoryNotFound) {
			// never materialized, nothing is stale
			return nil
		}
		return newError(OpInvalidate, p.String(), err)
	}

	d.mu.Lock()
	if !p.IsDir() {
		d.removeFileLocked(p.Base())
	}
	d.requestRepopulateLocked()
	d.mu.Unlock()

	v.pathLog(p).Debug("invalidated")
	return nil
}

// Repopulate makes the next lookup of dir enumerate its real directories again.
func (v *VFS) Repopulate(dir Path) error {
	if !dir.IsDir() {
		return newError(OpInvalidate, dir.String(), errors.Wrap(ErrNonCanonicalPath, "not a directory path"))
	}
	return v.Invalidate(dir)
}

// HandleChange invalidates whatever the changed real path maps to. Paths
// outside every mount are ignored.
func (v *VFS) HandleChange(realPath string) {
	p, err := v.VirtualPath(realPath)
	if err != nil {
		v.log.WithField("real_path", realPath).WithError(err).Debug("change outside the mount table")
		return
	}
	if err := v.Invalidate(p); err != nil {
		v.log.WithFields(logrus.Fields{
			"real_path": realPath,
			"vfs_path":  p.String(),
		}).WithError(err).Warn("cannot invalidate changed path")
	}
}
