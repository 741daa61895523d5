package mountvfs

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ignoredDirs are version-control directories never attached during population
var ignoredDirs = map[string]bool{
	".svn": true,
	".git": true,
	".hg":  true,
}

// sourceListing is the result of enumerating one attached real directory,
// gathered without holding the directory lock.
type sourceListing struct {
	realDir  *RealDirectory
	files    []FileRecord
	subdirs  []string
	archives []archiveListing
}

type archiveListing struct {
	archive *sharedArchive
	entries []archiveRecord
}

type archiveRecord struct {
	path   Path
	size   int64
	mtime  time.Time
	handle ArchiveHandle
}

// populate fills d from its attached real directories unless it is
// already populated. Concurrent callers wait for the pass in progress, so
// every attached real directory is enumerated once per pass.
//
// Enumeration runs without d.mu held; insertions run under it. Failures of
// individual sources are recorded on d and their contribution is omitted.
func (v *VFS) populate(d *Directory) {
	d.mu.Lock()
	for d.state == statePopulating {
		d.cond.Wait()
	}
	if d.state == statePopulated {
		d.mu.Unlock()
		return
	}
	d.state = statePopulating
	gen := d.gen
	sources := d.orderedSourcesLocked()
	d.mu.Unlock()

	listings := make([]sourceListing, 0, len(sources))
	var errs []error
	for _, rd := range sources {
		listing, archiveErrs, err := v.enumerate(rd)
		if err != nil {
			v.log.WithFields(logrus.Fields{
				"real_path": rd.path,
				"priority":  rd.priority,
			}).WithError(err).Warn("skipping unreadable real directory")
			errs = append(errs, newError(OpPopulate, rd.path, err))
			continue
		}
		errs = append(errs, archiveErrs...)
		listings = append(listings, listing)
	}

	d.mu.Lock()
	touched := make(map[*Directory]struct{})
	for _, l := range listings {
		v.insertListingLocked(d, l, touched)
	}
	for child := range touched {
		child.mu.Lock()
		if child.authoritative == nil {
			child.authoritative = child.bestSourceLocked()
		}
		child.mu.Unlock()
	}
	d.errs = errs
	if d.gen == gen {
		d.state = statePopulated
	} else {
		d.state = stateUnpopulated
	}
	d.cond.Broadcast()
	d.mu.Unlock()

	for _, l := range listings {
		for _, a := range l.archives {
			// drop the reference held by the enumeration itself
			a.archive.release()
		}
	}
	for _, rd := range sources {
		if rd.flags&MountWatch != 0 {
			v.registerWatch(rd.path)
		}
	}
	v.log.WithFields(logrus.Fields{
		"dir":     d.name,
		"sources": len(sources),
		"errors":  len(errs),
	}).Debug("populated directory")
}

// enumerate lists rd and opens the archives found directly inside it.
// Archives that cannot be opened are reported in the second result and
// left out of the listing.
func (v *VFS) enumerate(rd *RealDirectory) (sourceListing, []error, error) {
	files, subdirs, err := rd.backend.List(rd.path)
	if err != nil {
		return sourceListing{}, nil, err
	}
	res := sourceListing{realDir: rd, subdirs: subdirs}
	var failed []error
	for _, rec := range files {
		format := matchArchive(v.formats, rec.Name)
		if format == nil {
			res.files = append(res.files, rec)
			continue
		}
		listing, err := v.openArchive(rd, rec, format)
		if err != nil {
			archivePath := rd.backend.Join(rd.path, rec.Name)
			v.log.WithField("archive", archivePath).WithError(err).Warn("skipping corrupt archive")
			failed = append(failed, newError(OpPopulate, archivePath, err))
			continue
		}
		res.archives = append(res.archives, listing)
	}
	return res, failed, nil
}

// openArchive opens an archive file and collects its entries. The
// returned archive holds the enumeration reference.
func (v *VFS) openArchive(rd *RealDirectory, rec FileRecord, format ArchiveFormat) (archiveListing, error) {
	f, err := rd.backend.Open(rd.path, rec.Name)
	if err != nil {
		return archiveListing{}, err
	}
	size := rec.Size
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	reader, err := format.Open(f, size)
	if err != nil {
		return archiveListing{}, errors.Wrap(ErrArchiveCorrupt, err.Error())
	}
	archivePath := rd.backend.Join(rd.path, rec.Name)
	archive := newSharedArchive(archivePath, reader)

	var entries []archiveRecord
	err = reader.ForEachEntry(func(name string, size int64, mtime time.Time, handle ArchiveHandle) error {
		p, ok := archiveEntryPath(name)
		if !ok {
			v.log.WithFields(logrus.Fields{
				"archive": archivePath,
				"entry":   name,
			}).Warn("skipping archive entry with invalid path")
			return nil
		}
		entries = append(entries, archiveRecord{path: p, size: size, mtime: mtime, handle: handle})
		return nil
	})
	if err != nil {
		archive.release()
		return archiveListing{}, errors.Wrap(ErrArchiveCorrupt, err.Error())
	}
	return archiveListing{archive: archive, entries: entries}, nil
}

// insertListingLocked merges one source's contribution into d. Children
// that received a real directory are collected in touched. The caller
// holds d.mu.
func (v *VFS) insertListingLocked(d *Directory, l sourceListing, touched map[*Directory]struct{}) {
	rd := l.realDir
	for _, rec := range l.files {
		if !validName(rec.Name) {
			v.log.WithFields(logrus.Fields{
				"real_path": rd.path,
				"name":      rec.Name,
			}).Debug("skipping file with invalid name")
			continue
		}
		d.insertFileLocked(newFile(rec.Name, rec.Size, rec.ModTime, rd), v.tolerance)
	}

	for _, a := range l.archives {
		for _, e := range a.entries {
			v.insertArchiveEntryLocked(d, e.path.Components(), e.path.IsDir(), a.archive, e, rd.priority)
		}
	}

	for _, name := range l.subdirs {
		if ignoredDirs[name] || !validName(name) {
			continue
		}
		child, _ := d.subdirLocked(name, true)
		child.mu.Lock()
		if child.attachLocked(rd.child(name)) {
			child.requestRepopulateLocked()
		}
		child.mu.Unlock()
		touched[child] = struct{}{}
	}
}

// insertArchiveEntryLocked inserts an archive entry at comps below d,
// creating intermediate directories since archivers need not emit them
// first. The caller holds d.mu; child locks are taken parent first.
func (v *VFS) insertArchiveEntryLocked(d *Directory, comps []string, isDir bool, archive *sharedArchive, e archiveRecord, priority Priority) {
	if len(comps) == 0 {
		return
	}
	if len(comps) == 1 && !isDir {
		src := &ArchiveEntry{archive: archive, handle: e.handle, internal: e.path.String(), priority: priority}
		if d.insertFileLocked(newFile(comps[0], e.size, e.mtime, src), v.tolerance) {
			archive.retain()
		}
		return
	}
	child, _ := d.subdirLocked(comps[0], true)
	if len(comps) == 1 {
		return
	}
	child.mu.Lock()
	defer child.mu.Unlock()
	v.insertArchiveEntryLocked(child, comps[1:], isDir, archive, e, priority)
}
