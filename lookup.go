package mountvfs

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// LookupFlags modify the behavior of Lookup.
type LookupFlags uint8

const (
	// LookupAddMissingDirs creates empty directory nodes for missing
	// path components instead of failing with ErrDirectoryNotFound.
	LookupAddMissingDirs LookupFlags = 1 << iota
	// LookupCreateRealDirs creates and attaches a real directory, below the
	// parent's authoritative real directory, for every traversed directory
	// that has none. Failure to create one is logged and not fatal.
	LookupCreateRealDirs

	// lookupSkipPopulate traverses the tree as materialized so far
	lookupSkipPopulate
)

// Lookup resolves p from the root, populating every directory it visits.
// For a directory path the returned file is nil. For a file path a
// missing file fails with ErrFileNotFound.
func (v *VFS) Lookup(p Path, flags LookupFlags) (*Directory, *File, error) {
	d, f, err := v.lookup(v.root.Load(), p, flags)
	if err != nil {
		return nil, nil, newError(OpLookup, p.String(), err)
	}
	return d, f, nil
}

// LookupDir resolves the directory path p without creating anything.
func (v *VFS) LookupDir(p Path) (*Directory, error) {
	if !p.IsDir() {
		return nil, newError(OpLookup, p.String(), errors.Wrap(ErrNonCanonicalPath, "not a directory path"))
	}
	d, _, err := v.Lookup(p, 0)
	return d, err
}

// LookupFile resolves the file path p without creating anything.
func (v *VFS) LookupFile(p Path) (*File, error) {
	if p.IsDir() {
		return nil, newError(OpLookup, p.String(), errors.Wrap(ErrNonCanonicalPath, "not a file path"))
	}
	_, f, err := v.Lookup(p, 0)
	return f, err
}

func (v *VFS) lookup(start *Directory, p Path, flags LookupFlags) (*Directory, *File, error) {
	populate := flags&lookupSkipPopulate == 0
	addMissing := flags&LookupAddMissingDirs != 0

	comps := p.Components()
	fileName := ""
	if !p.IsDir() {
		fileName = comps[len(comps)-1]
		comps = comps[:len(comps)-1]
	}

	d := start
	if populate {
		v.populate(d)
	}
	for _, name := range comps {
		d.mu.Lock()
		child, created := d.subdirLocked(name, addMissing)
		parentReal := d.authoritative
		d.mu.Unlock()
		if child == nil {
			return nil, nil, errors.Wrapf(ErrDirectoryNotFound, "%q", name)
		}
		if created {
			v.log.WithField("dir", name).Debug("added missing directory node")
		}
		if flags&LookupCreateRealDirs != 0 {
			v.ensureRealDirectory(child, parentReal, name)
		}
		if populate {
			v.populate(child)
		}
		d = child
	}

	if fileName == "" {
		return d, nil, nil
	}
	f := d.File(fileName)
	if f == nil {
		return d, nil, errors.Wrapf(ErrFileNotFound, "%q", fileName)
	}
	return d, f, nil
}

// ensureRealDirectory attaches a real directory below parentReal to child
// when child has none, creating it in the backend first.
func (v *VFS) ensureRealDirectory(child *Directory, parentReal *RealDirectory, name string) {
	child.mu.Lock()
	attached := len(child.sources) > 0
	child.mu.Unlock()
	if attached {
		return
	}
	if parentReal == nil {
		v.log.WithField("dir", name).Debug("no parent real directory to create below")
		return
	}

	rd := parentReal.child(name)
	if err := rd.backend.CreateDirectory(rd.path); err != nil {
		v.log.WithFields(logrus.Fields{
			"dir":       name,
			"real_path": rd.path,
		}).WithError(err).Warn("cannot create real directory")
		return
	}

	child.mu.Lock()
	if child.attachLocked(rd) {
		child.requestRepopulateLocked()
	}
	if child.authoritative == nil {
		child.authoritative = rd
	}
	child.mu.Unlock()
	v.log.WithField("real_path", rd.path).Debug("created real directory")
}
