package mountvfs

import (
	"errors"
	"testing"
	"time"
)

func TestLookup(t *testing.T) {
	v, mem := newMemVFS(t)
	writeFile(t, mem, "/data/Maps/Level1.map", []byte("map"), time.Time{})
	mustMount(t, v, "", "/data", 0, 0)

	d, f, err := v.Lookup(Root, 0)
	if err != nil || d != v.Root() || f != nil {
		t.Errorf("root lookup = %v, %v, %v", d, f, err)
	}

	d, f, err = v.Lookup(MustParsePath("maps/"), 0)
	if err != nil || f != nil {
		t.Fatalf("directory lookup = %v, %v", f, err)
	}
	if d.Name() != "Maps" {
		t.Errorf("directory name = %q, spelling not preserved", d.Name())
	}

	f, err = v.LookupFile(MustParsePath("MAPS/level1.MAP"))
	if err != nil {
		t.Fatalf("case-insensitive lookup failed: %v", err)
	}
	if f.Name() != "Level1.map" {
		t.Errorf("file name = %q", f.Name())
	}
}

func TestLookupErrors(t *testing.T) {
	v, mem := newMemVFS(t)
	writeFile(t, mem, "/data/a/b.txt", []byte("b"), time.Time{})
	mustMount(t, v, "", "/data", 0, 0)

	tests := []struct {
		path string
		want error
	}{
		{"missing/", ErrDirectoryNotFound},
		{"missing/b.txt", ErrDirectoryNotFound},
		{"a/missing.txt", ErrFileNotFound},
		{"a/missing/", ErrDirectoryNotFound},
	}
	for _, tt := range tests {
		_, _, err := v.Lookup(MustParsePath(tt.path), 0)
		if !errors.Is(err, tt.want) {
			t.Errorf("Lookup(%q) error = %v, want %v", tt.path, err, tt.want)
		}
		var verr *Error
		if !errors.As(err, &verr) || verr.Op != OpLookup || verr.Path != tt.path {
			t.Errorf("Lookup(%q) error %v is not a lookup *Error", tt.path, err)
		}
	}

	if _, err := v.LookupDir(MustParsePath("a/b.txt")); !errors.Is(err, ErrNonCanonicalPath) {
		t.Errorf("LookupDir with file path error = %v", err)
	}
	if _, err := v.LookupFile(MustParsePath("a/")); !errors.Is(err, ErrNonCanonicalPath) {
		t.Errorf("LookupFile with directory path error = %v", err)
	}
}

func TestLookupAddMissingDirs(t *testing.T) {
	v, _ := newMemVFS(t)

	d, _, err := v.Lookup(MustParsePath("new/nested/dir/"), LookupAddMissingDirs)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if d.Name() != "dir" || len(d.Sources()) != 0 {
		t.Errorf("created node = %q with %d sources", d.Name(), len(d.Sources()))
	}
	if _, err := v.LookupDir(MustParsePath("new/nested/")); err != nil {
		t.Errorf("intermediate node missing: %v", err)
	}
}

func TestLookupCreateRealDirs(t *testing.T) {
	v, mem := newMemVFS(t)
	if err := mem.MkdirAll("/data", 0755); err != nil {
		t.Fatal(err)
	}
	mustMount(t, v, "", "/data", 2, 0)

	d, _, err := v.Lookup(MustParsePath("saves/slot1/"), LookupAddMissingDirs|LookupCreateRealDirs)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	rd := d.Authoritative()
	if rd == nil || rd.Path() != "/data/saves/slot1" {
		t.Fatalf("Authoritative = %v", rd)
	}
	if rd.Priority() != 2 {
		t.Errorf("created real directory priority = %d, want the parent's", rd.Priority())
	}
	info, err := mem.Stat("/data/saves/slot1")
	if err != nil || !info.IsDir() {
		t.Errorf("real directory not created: %v", err)
	}
}

func TestLookupCreateRealDirsWithoutParent(t *testing.T) {
	v, _ := newMemVFS(t)

	d, _, err := v.Lookup(MustParsePath("orphan/"), LookupAddMissingDirs|LookupCreateRealDirs)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if d.Authoritative() != nil {
		t.Error("real directory attached without a parent real directory")
	}
}
