package mountvfs

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	// Separator joins path components. Directory paths end with it.
	Separator = '/'
	// MaxPathLength is the longest VFS path text accepted by ParsePath.
	MaxPathLength = 4096
)

// forbiddenChars may not appear in any path component.
const forbiddenChars = "\\\x00*?\"<>|"

// Path is a validated VFS path: an ordered sequence of components where
// the last component is empty iff the path denotes a directory. The zero
// value is the root directory.
//
// Comparison is case-insensitive; the original spelling is preserved for
// display and for calls into the backend.
type Path struct {
	parts []string
}

// Root is the VFS root directory.
var Root = Path{}

// ParsePath validates text and returns the corresponding Path.
//
// The empty string denotes the root. Directory paths end with "/", file
// paths do not. A leading separator, empty components other than the
// trailing directory marker, "." and ".." components, forbidden characters
// and texts longer than MaxPathLength are rejected with ErrNonCanonicalPath.
func ParsePath(text string) (Path, error) {
	if text == "" {
		return Root, nil
	}
	if len(text) > MaxPathLength {
		return Path{}, errors.Wrapf(ErrNonCanonicalPath, "path exceeds %d bytes", MaxPathLength)
	}
	if text[0] == Separator {
		return Path{}, errors.Wrapf(ErrNonCanonicalPath, "%q has a leading separator", text)
	}
	parts := strings.Split(text, string(Separator))
	for i, part := range parts {
		last := i == len(parts)-1
		if err := checkComponent(part, last); err != nil {
			return Path{}, errors.Wrapf(err, "%q", text)
		}
	}
	return Path{parts: parts}, nil
}

// MustParsePath is like ParsePath but panics on error.
func MustParsePath(text string) Path {
	p, err := ParsePath(text)
	if err != nil {
		panic(err)
	}
	return p
}

// DirPath parses text as a directory path, appending the trailing
// separator when it is missing.
func DirPath(text string) (Path, error) {
	if text != "" && text[len(text)-1] != Separator {
		text += string(Separator)
	}
	return ParsePath(text)
}

func checkComponent(part string, last bool) error {
	switch {
	case part == "":
		if !last {
			return errors.Wrap(ErrNonCanonicalPath, "empty component")
		}
		return nil
	case part == "." || part == "..":
		return errors.Wrapf(ErrNonCanonicalPath, "component %q", part)
	case strings.ContainsAny(part, forbiddenChars):
		return errors.Wrapf(ErrNonCanonicalPath, "component %q contains a forbidden character", part)
	}
	return nil
}

// validName reports whether name can be used as a single component.
func validName(name string) bool {
	return name != "" && checkComponent(name, false) == nil && !strings.ContainsRune(name, Separator)
}

// IsDir reports whether p denotes a directory.
func (p Path) IsDir() bool {
	return len(p.parts) == 0 || p.parts[len(p.parts)-1] == ""
}

// IsRoot reports whether p is the root directory.
func (p Path) IsRoot() bool {
	return len(p.parts) == 0 || (len(p.parts) == 1 && p.parts[0] == "")
}

// Components returns the non-empty components of p.
func (p Path) Components() []string {
	if p.IsDir() && len(p.parts) > 0 {
		return append([]string(nil), p.parts[:len(p.parts)-1]...)
	}
	return append([]string(nil), p.parts...)
}

// Base returns the last non-empty component, or "" for the root.
func (p Path) Base() string {
	comps := p.Components()
	if len(comps) == 0 {
		return ""
	}
	return comps[len(comps)-1]
}

// Parent returns the directory containing p. The parent of the root is the root.
func (p Path) Parent() Path {
	comps := p.Components()
	if len(comps) <= 1 {
		return Root
	}
	parts := append(comps[:len(comps)-1:len(comps)-1], "")
	return Path{parts: parts}
}

// Join appends rel to the directory p. It fails if p is a file path.
func (p Path) Join(rel Path) (Path, error) {
	if !p.IsDir() {
		return Path{}, errors.Wrapf(ErrNonCanonicalPath, "join onto file path %q", p)
	}
	if rel.IsRoot() {
		return p, nil
	}
	parts := append(p.Components(), rel.parts...)
	if len(strings.Join(parts, string(Separator))) > MaxPathLength {
		return Path{}, errors.Wrapf(ErrNonCanonicalPath, "path exceeds %d bytes", MaxPathLength)
	}
	return Path{parts: parts}, nil
}

// Child returns the path of the named entry inside the directory p.
func (p Path) Child(name string, dir bool) (Path, error) {
	if !validName(name) {
		return Path{}, errors.Wrapf(ErrNonCanonicalPath, "component %q", name)
	}
	text := name
	if dir {
		text += string(Separator)
	}
	return p.Join(Path{parts: strings.Split(text, string(Separator))})
}

// String returns the VFS text form of p.
func (p Path) String() string {
	return strings.Join(p.parts, string(Separator))
}

// Key returns the case-folded text form of p, used for map keys.
func (p Path) Key() string {
	return strings.ToLower(p.String())
}

// Equal reports whether p and q name the same path, ignoring case.
func (p Path) Equal(q Path) bool {
	return strings.EqualFold(p.String(), q.String())
}

// nameKey folds a single component for use as a child map key.
func nameKey(name string) string {
	return strings.ToLower(name)
}
