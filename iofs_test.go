package mountvfs

import (
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"
	"time"
)

func TestFSConformance(t *testing.T) {
	v, mem := newMemVFS(t)
	writeFile(t, mem, "/base/readme.txt", []byte("base readme"), baseTime)
	writeFile(t, mem, "/base/docs/guide.txt", []byte("guide"), baseTime)
	writeFile(t, mem, "/mod/docs/guide.txt", []byte("modded guide"), baseTime)
	writeFile(t, mem, "/mod/assets.zip", buildZip(t, []zipEntry{
		{name: "models/unit.dae", data: "<collada/>", mtime: baseTime},
	}), baseTime)
	mustMount(t, v, "", "/base", 0, 0)
	mustMount(t, v, "", "/mod", 1, 0)

	if err := fstest.TestFS(v.FS(), "readme.txt", "docs/guide.txt", "models/unit.dae"); err != nil {
		t.Fatal(err)
	}

	data, err := fs.ReadFile(v.FS(), "docs/guide.txt")
	if err != nil || string(data) != "modded guide" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}
}

func TestFSErrors(t *testing.T) {
	v, mem := newMemVFS(t)
	writeFile(t, mem, "/data/a.txt", []byte("a"), time.Time{})
	mustMount(t, v, "", "/data", 0, 0)
	fsys := v.FS()

	if _, err := fsys.Open("missing.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open missing error = %v", err)
	}
	if _, err := fsys.Open("/a.txt"); !errors.Is(err, fs.ErrInvalid) {
		t.Errorf("Open invalid name error = %v", err)
	}
	if _, err := fs.ReadDir(fsys, "a.txt"); err == nil {
		t.Error("ReadDir of a file succeeded")
	}

	info, err := fs.Stat(fsys, ".")
	if err != nil || !info.IsDir() {
		t.Errorf("Stat(.) = %v, %v", info, err)
	}
	info, err = fs.Stat(fsys, "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := info.Sys().(*File); !ok {
		t.Errorf("Sys() = %T, want *File", info.Sys())
	}
}
