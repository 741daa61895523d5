package mountvfs

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// popState is the population state of a Directory.
type popState int

const (
	stateUnpopulated popState = iota
	statePopulating
	statePopulated
)

func (s popState) String() string {
	switch s {
	case stateUnpopulated:
		return "unpopulated"
	case statePopulating:
		return "populating"
	case statePopulated:
		return "populated"
	}
	return "unknown"
}

// File is a file node of the VFS tree. Files are immutable; a conflicting
// contribution that wins replaces the node in its directory.
type File struct {
	name     string
	size     int64
	mtime    time.Time
	priority Priority
	source   Source
}

func newFile(name string, size int64, mtime time.Time, source Source) *File {
	return &File{name: name, size: size, mtime: mtime, priority: source.Priority(), source: source}
}

// Name returns the case-preserved file name.
func (f *File) Name() string { return f.name }

func (f *File) Size() int64 { return f.size }

func (f *File) ModTime() time.Time { return f.mtime }

func (f *File) Priority() Priority { return f.priority }

func (f *File) Source() Source { return f.source }

func (f *File) Precedence() Precedence { return f.source.Precedence() }

// Load reads the file contents from its source, bypassing the cache. An
// archived file that has been dropped from the tree and whose archive was
// closed since fails with ErrArchiveCorrupt; VFS.Load does not.
func (f *File) Load() ([]byte, error) {
	if !tryRetainSource(f.source) {
		return nil, errors.Wrapf(ErrArchiveCorrupt, "%s released", f.source)
	}
	defer releaseSource(f.source)
	return f.source.Load(f.name)
}

// shouldReplace is the conflict law applied when candidate would be
// inserted under a name already held by existing.
//
// Priority dominates regardless of mtime. At equal priority, files whose
// size and mtime agree within tolerance are identical content and only a
// higher precedence (loose over archived) replaces. Otherwise the
// candidate replaces only when it is strictly newer beyond tolerance.
// Ties keep the existing file, so the first-mounted source wins.
func shouldReplace(existing, candidate *File, tolerance time.Duration) bool {
	if candidate.priority != existing.priority {
		return candidate.priority > existing.priority
	}
	delta := candidate.mtime.Sub(existing.mtime)
	if candidate.size == existing.size && absDuration(delta) <= tolerance {
		return candidate.Precedence() > existing.Precedence()
	}
	return delta > tolerance
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Directory is a directory node of the VFS tree. It owns its child nodes
// and the ordered list of real directories attached to it.
type Directory struct {
	name string

	mu    sync.Mutex
	cond  *sync.Cond
	state popState
	// gen counts repopulate requests; a population pass that observes a
	// change of gen leaves the directory unpopulated.
	gen           uint64
	files         map[string]*File
	dirs          map[string]*Directory
	sources       []*RealDirectory
	authoritative *RealDirectory
	errs          []error
}

func newDirectory(name string) *Directory {
	d := &Directory{
		name:  name,
		files: make(map[string]*File),
		dirs:  make(map[string]*Directory),
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Name returns the case-preserved directory name; "" for the root.
func (d *Directory) Name() string { return d.name }

// Sources returns the attached real directories in attachment order.
func (d *Directory) Sources() []*RealDirectory {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*RealDirectory(nil), d.sources...)
}

// Authoritative returns the real directory writes into d are stored in,
// or nil when d has no attached real directory.
func (d *Directory) Authoritative() *RealDirectory {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.authoritative
}

// Errors returns the source failures recorded by the last population pass.
func (d *Directory) Errors() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.errs...)
}

// Populated reports whether d is populated and has no pending repopulate request.
func (d *Directory) Populated() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == statePopulated
}

// File returns the named file without populating d.
func (d *Directory) File(name string) *File {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.files[nameKey(name)]
}

// Subdirectory returns the named child directory without populating d.
func (d *Directory) Subdirectory(name string) *Directory {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirs[nameKey(name)]
}

// fileRef returns the named file with a reference taken on its source,
// or nil. The caller releases the reference with releaseSource.
func (d *Directory) fileRef(name string) *File {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := d.files[nameKey(name)]
	if f != nil {
		retainSource(f.source)
	}
	return f
}

// Files returns the files of d sorted by name.
func (d *Directory) Files() []*File {
	d.mu.Lock()
	files := make([]*File, 0, len(d.files))
	for _, f := range d.files {
		files = append(files, f)
	}
	d.mu.Unlock()
	sort.Slice(files, func(i, j int) bool {
		return nameKey(files[i].name) < nameKey(files[j].name)
	})
	return files
}

// Subdirectories returns the child directories of d sorted by name.
func (d *Directory) Subdirectories() []*Directory {
	d.mu.Lock()
	dirs := make([]*Directory, 0, len(d.dirs))
	for _, c := range d.dirs {
		dirs = append(dirs, c)
	}
	d.mu.Unlock()
	sort.Slice(dirs, func(i, j int) bool {
		return nameKey(dirs[i].name) < nameKey(dirs[j].name)
	})
	return dirs
}

// subdirLocked returns the named child, creating an empty unattached one
// when create is set. The caller holds d.mu.
func (d *Directory) subdirLocked(name string, create bool) (*Directory, bool) {
	key := nameKey(name)
	if c, ok := d.dirs[key]; ok {
		return c, false
	}
	if !create {
		return nil, false
	}
	c := newDirectory(name)
	d.dirs[key] = c
	return c, true
}

// insertFileLocked adds candidate under its name, applying the conflict
// law on collision. It reports whether candidate is now in the tree; the
// caller keeps ownership of a rejected candidate's source reference.
// The caller holds d.mu.
func (d *Directory) insertFileLocked(candidate *File, tolerance time.Duration) bool {
	key := nameKey(candidate.name)
	existing, ok := d.files[key]
	if ok && !shouldReplace(existing, candidate, tolerance) {
		return false
	}
	d.files[key] = candidate
	if ok {
		releaseSource(existing.source)
	}
	return true
}

// removeFileLocked drops the named file. The caller holds d.mu.
func (d *Directory) removeFileLocked(name string) *File {
	key := nameKey(name)
	f, ok := d.files[key]
	if !ok {
		return nil
	}
	delete(d.files, key)
	releaseSource(f.source)
	return f
}

// attachLocked appends rd to the attachment list unless a real directory
// with the same backend path is already attached. The caller holds d.mu.
func (d *Directory) attachLocked(rd *RealDirectory) bool {
	for _, s := range d.sources {
		if s.backend == rd.backend && s.path == rd.path {
			return false
		}
	}
	d.sources = append(d.sources, rd)
	return true
}

// bestSourceLocked returns the highest-priority attached real directory,
// the most recently attached one on ties. The caller holds d.mu.
func (d *Directory) bestSourceLocked() *RealDirectory {
	var best *RealDirectory
	for _, s := range d.sources {
		if best == nil || s.priority >= best.priority {
			best = s
		}
	}
	return best
}

// orderedSourcesLocked returns the attachment list in population order:
// priority descending, attachment order ascending. The caller holds d.mu.
func (d *Directory) orderedSourcesLocked() []*RealDirectory {
	ordered := append([]*RealDirectory(nil), d.sources...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].priority > ordered[j].priority
	})
	return ordered
}

// requestRepopulateLocked makes the next lookup populate d again.
// The caller holds d.mu.
func (d *Directory) requestRepopulateLocked() {
	d.gen++
	if d.state == statePopulated {
		d.state = stateUnpopulated
	}
}

// release drops every archive reference held by the subtree rooted at d.
// It is called on trees that have been detached from the VFS.
func (d *Directory) release() {
	d.mu.Lock()
	files := d.files
	dirs := d.dirs
	d.files = make(map[string]*File)
	d.dirs = make(map[string]*Directory)
	d.mu.Unlock()

	for _, f := range files {
		releaseSource(f.source)
	}
	for _, c := range dirs {
		c.release()
	}
}
