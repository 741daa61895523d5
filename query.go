package mountvfs

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// FileInfo describes a file or directory of the VFS.
type FileInfo struct {
	Name       string
	Size       int64
	ModTime    time.Time
	Priority   Priority
	Precedence Precedence
	// Origin is the backend path of a loose file, "archive!entry" for an
	// archived one, and the authoritative real directory of a directory.
	Origin string
	IsDir  bool
}

// DirEntry is one entry returned by ReadDir. File is nil for directories.
type DirEntry struct {
	Name  string
	IsDir bool
	File  *File
}

// Stat describes the file or directory p.
func (v *VFS) Stat(p Path) (FileInfo, error) {
	d, f, err := v.lookup(v.root.Load(), p, 0)
	if err != nil {
		return FileInfo{}, newError(OpStat, p.String(), err)
	}
	if f != nil {
		return fileInfo(f), nil
	}
	info := FileInfo{Name: p.Base(), IsDir: true}
	if rd := d.Authoritative(); rd != nil {
		info.Origin = rd.path
		info.Priority = rd.priority
		info.Precedence = PrecedenceLoose
	}
	return info, nil
}

func fileInfo(f *File) FileInfo {
	origin := f.source.String()
	if rd, ok := f.source.(*RealDirectory); ok {
		origin = rd.backend.Join(rd.path, f.name)
	}
	return FileInfo{
		Name:       f.name,
		Size:       f.size,
		ModTime:    f.mtime,
		Priority:   f.priority,
		Precedence: f.Precedence(),
		Origin:     origin,
	}
}

// ReadDir lists the directory dir, populating it first. Entries are
// sorted by name ignoring case.
func (v *VFS) ReadDir(dir Path) ([]DirEntry, error) {
	if !dir.IsDir() {
		return nil, newError(OpReadDir, dir.String(), errors.Wrap(ErrNonCanonicalPath, "not a directory path"))
	}
	d, _, err := v.lookup(v.root.Load(), dir, 0)
	if err != nil {
		return nil, newError(OpReadDir, dir.String(), err)
	}
	return dirEntries(d), nil
}

func dirEntries(d *Directory) []DirEntry {
	d.mu.Lock()
	entries := make([]DirEntry, 0, len(d.files)+len(d.dirs))
	for _, f := range d.files {
		entries = append(entries, DirEntry{Name: f.name, File: f})
	}
	for _, c := range d.dirs {
		entries = append(entries, DirEntry{Name: c.name, IsDir: true})
	}
	d.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		ki, kj := nameKey(entries[i].Name), nameKey(entries[j].Name)
		if ki != kj {
			return ki < kj
		}
		return entries[i].IsDir && !entries[j].IsDir
	})
	return entries
}

// RealPath returns the backend path behind p: the real file of a loose
// file, the archive of an archived one, or the authoritative real
// directory of a directory.
func (v *VFS) RealPath(p Path) (string, error) {
	d, f, err := v.lookup(v.root.Load(), p, 0)
	if err != nil {
		return "", newError(OpRealPath, p.String(), err)
	}
	if f == nil {
		rd := d.Authoritative()
		if rd == nil {
			return "", newError(OpRealPath, p.String(), ErrNoRealDirectory)
		}
		return rd.path, nil
	}
	switch src := f.source.(type) {
	case *RealDirectory:
		return src.backend.Join(src.path, f.name), nil
	case *ArchiveEntry:
		return src.ArchivePath(), nil
	}
	return "", newError(OpRealPath, p.String(), errors.Errorf("unknown source %T", f.source))
}

// VirtualPath maps a backend path back into the VFS through the mount
// table. The mount with the longest real path containing realPath wins.
// The result is a file path unless realPath is a mounted directory itself.
func (v *VFS) VirtualPath(realPath string) (Path, error) {
	canonical, err := v.backend.Canonical(realPath)
	if err != nil {
		return Path{}, err
	}

	v.writeMu.Lock()
	var best *mountRecord
	var bestRel string
	for _, m := range v.mounts {
		rel, ok := v.backend.Rel(m.realDir.path, canonical)
		if !ok {
			continue
		}
		if best == nil || len(m.realDir.path) > len(best.realDir.path) {
			best, bestRel = m, rel
		}
	}
	v.writeMu.Unlock()

	if best == nil {
		return Path{}, errors.Wrapf(ErrNotFound, "%s is not below any mount", realPath)
	}
	if bestRel == "" {
		return best.vfsDir, nil
	}
	rel, err := ParsePath(bestRel)
	if err != nil {
		return Path{}, err
	}
	return best.vfsDir.Join(rel)
}

// ForEachFile calls fn for every file of dir whose name matches pattern,
// descending into subdirectories when recursive is set. Names are matched
// case-insensitively with path.Match syntax; an empty pattern matches
// everything. A non-nil error from fn stops the walk and is returned.
func (v *VFS) ForEachFile(dir Path, pattern string, recursive bool, fn func(Path, *File) error) error {
	if !dir.IsDir() {
		return newError(OpReadDir, dir.String(), errors.Wrap(ErrNonCanonicalPath, "not a directory path"))
	}
	pattern = strings.ToLower(pattern)
	if _, err := path.Match(pattern, ""); err != nil {
		return newError(OpReadDir, dir.String(), errors.Wrapf(err, "pattern %q", pattern))
	}
	d, _, err := v.lookup(v.root.Load(), dir, 0)
	if err != nil {
		return newError(OpReadDir, dir.String(), err)
	}
	return v.walk(d, dir, pattern, recursive, fn)
}

func (v *VFS) walk(d *Directory, dir Path, pattern string, recursive bool, fn func(Path, *File) error) error {
	for _, f := range d.Files() {
		if pattern != "" {
			if ok, _ := path.Match(pattern, nameKey(f.name)); !ok {
				continue
			}
		}
		p, err := dir.Child(f.name, false)
		if err != nil {
			return err
		}
		if err := fn(p, f); err != nil {
			return err
		}
	}
	if !recursive {
		return nil
	}
	for _, c := range d.Subdirectories() {
		v.populate(c)
		p, err := dir.Child(c.name, true)
		if err != nil {
			return err
		}
		if err := v.walk(c, p, pattern, recursive, fn); err != nil {
			return err
		}
	}
	return nil
}

// Text returns an indented dump of the tree as materialized so far.
// Nothing is populated.
func (v *VFS) Text() string {
	var b strings.Builder
	writeTree(&b, v.root.Load(), 0)
	return b.String()
}

func writeTree(b *strings.Builder, d *Directory, depth int) {
	indent := strings.Repeat("  ", depth)
	name := d.Name()
	if name == "" {
		name = "<root>"
	}
	d.mu.Lock()
	fmt.Fprintf(b, "%s%s/ [%s, %d sources]\n", indent, name, d.state, len(d.sources))
	d.mu.Unlock()

	for _, f := range d.Files() {
		fmt.Fprintf(b, "%s  %s (%d bytes, priority %d, %s) %s\n",
			indent, f.name, f.size, f.priority, f.Precedence(), f.source)
	}
	for _, c := range d.Subdirectories() {
		writeTree(b, c, depth+1)
	}
}
