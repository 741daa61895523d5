package mountvfs

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// CreateFile stores data as the file p and makes it visible in the tree.
//
// Missing directories on the way are created, in the tree and below the
// parent's authoritative real directory. The data is written to the
// authoritative real directory of p's parent. When a higher-priority file
// already shadows p, the data is still stored but that file stays visible.
func (v *VFS) CreateFile(p Path, data []byte) error {
	if p.IsDir() {
		return newError(OpCreate, p.String(), errors.Wrap(ErrNonCanonicalPath, "not a file path"))
	}

	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	d, _, err := v.lookup(v.root.Load(), p.Parent(), LookupAddMissingDirs|LookupCreateRealDirs)
	if err != nil {
		return newError(OpCreate, p.String(), err)
	}
	target := d.Authoritative()
	if target == nil {
		return newError(OpCreate, p.String(), ErrNoRealDirectory)
	}

	name := p.Base()
	v.cache.invalidate(p.Key())
	if err := target.Store(name, data); err != nil {
		return newError(OpCreate, p.String(), err)
	}

	f := newFile(name, int64(len(data)), time.Now(), target)
	d.mu.Lock()
	// the node already backed by the rewritten real file is always refreshed
	if old, ok := d.files[nameKey(name)]; ok {
		if rd, ok := old.source.(*RealDirectory); ok && rd.backend == target.backend && rd.path == target.path {
			d.removeFileLocked(name)
		}
	}
	inserted := d.insertFileLocked(f, v.tolerance)
	d.mu.Unlock()
	v.cache.invalidate(p.Key())

	log := v.pathLog(p).WithField("real_path", target.backend.Join(target.path, name))
	if !inserted {
		log.WithField("priority", target.priority).Warn("created file is shadowed by a higher-priority file")
		return nil
	}
	log.WithField("size", len(data)).Debug("created file")
	return nil
}

// RemoveFile drops the file p from the tree and the cache. The real file
// is left alone; it reappears when its directory is repopulated.
func (v *VFS) RemoveFile(p Path) error {
	if p.IsDir() {
		return newError(OpRemove, p.String(), errors.Wrap(ErrNonCanonicalPath, "not a file path"))
	}

	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	d, _, err := v.lookup(v.root.Load(), p, 0)
	if err != nil {
		return newError(OpRemove, p.String(), err)
	}
	d.mu.Lock()
	removed := d.removeFileLocked(p.Base())
	d.mu.Unlock()
	v.cache.invalidate(p.Key())

	if removed != nil {
		v.pathLog(p).WithFields(logrus.Fields{
			"origin": removed.source.String(),
		}).Debug("removed file")
	}
	return nil
}
