package mountvfs

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Mount attaches the real directory realPath to the VFS directory vfsDir.
//
// The VFS directory and its missing ancestors are created as empty nodes;
// nothing is enumerated until the directory is first looked up. Mounting
// several real directories onto the same VFS directory layers them by
// priority. A real path can be mounted only once.
func (v *VFS) Mount(vfsDir Path, realPath string, priority Priority, flags MountFlags) error {
	if !vfsDir.IsDir() {
		return newError(OpMount, vfsDir.String(), errors.Wrap(ErrNonCanonicalPath, "mount point is not a directory path"))
	}
	if isCurrentDirShorthand(realPath) {
		return newError(OpMount, realPath, errors.Wrap(ErrNonCanonicalPath, "current directory shorthand"))
	}
	canonical, err := v.backend.Canonical(realPath)
	if err != nil {
		return newError(OpMount, realPath, err)
	}

	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	if prev, ok := v.mountIndex[canonical]; ok {
		return newError(OpMount, realPath, errors.Wrapf(ErrAlreadyMounted, "at %q", prev.vfsDir))
	}
	m := &mountRecord{
		vfsDir:  vfsDir,
		realDir: newRealDirectory(v.backend, canonical, priority, flags),
	}
	if err := v.attachMount(v.root.Load(), m); err != nil {
		return newError(OpMount, vfsDir.String(), err)
	}
	v.mounts = append(v.mounts, m)
	v.mountIndex[canonical] = m

	v.log.WithFields(logrus.Fields{
		"vfs_path":  vfsDir.String(),
		"real_path": canonical,
		"priority":  priority,
		"flags":     flags,
	}).Debug("mounted")

	if flags&MountWatch != 0 {
		v.registerWatch(canonical)
	}
	return nil
}

// attachMount adds the mount record to the tree rooted at root. The
// caller holds v.writeMu.
func (v *VFS) attachMount(root *Directory, m *mountRecord) error {
	d, _, err := v.lookup(root, m.vfsDir, LookupAddMissingDirs|lookupSkipPopulate)
	if err != nil {
		return err
	}

	d.mu.Lock()
	replaced := false
	for i, s := range d.sources {
		// a directory synthesized during population is superseded by the
		// explicit mount of the same real path
		if s.backend == m.realDir.backend && s.path == m.realDir.path {
			d.sources[i] = m.realDir
			replaced = true
			break
		}
	}
	if !replaced {
		d.sources = append(d.sources, m.realDir)
	}
	d.authoritative = d.bestSourceLocked()
	d.requestRepopulateLocked()
	d.mu.Unlock()

	v.cache.invalidateTree(m.vfsDir.Key())
	return nil
}
