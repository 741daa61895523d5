package mountvfs

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
	"time"
)

type zipEntry struct {
	name  string
	data  string
	mtime time.Time
}

func buildZip(t testing.TB, entries []zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate, Modified: e.mtime})
		if err != nil {
			t.Fatalf("CreateHeader %s: %v", e.name, err)
		}
		if _, err := w.Write([]byte(e.data)); err != nil {
			t.Fatalf("Write %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip Close: %v", err)
	}
	return buf.Bytes()
}

func TestArchiveTransparency(t *testing.T) {
	v, mem := newMemVFS(t)
	writeFile(t, mem, "/data/pack.zip", buildZip(t, []zipEntry{
		{name: "textures/", mtime: baseTime},
		{name: "textures/stone.png", data: "stone", mtime: baseTime},
		{name: "deep/er/leaf.txt", data: "leaf", mtime: baseTime},
		{name: "empty/", mtime: baseTime},
	}), baseTime)
	writeFile(t, mem, "/data/loose.txt", []byte("loose"), baseTime)
	mustMount(t, v, "game/", "/data", 0, 0)

	if got := mustLoad(t, v, "game/textures/stone.png"); got != "stone" {
		t.Errorf("stone.png = %q", got)
	}
	// intermediate directories are created even without directory entries
	if got := mustLoad(t, v, "game/DEEP/er/leaf.txt"); got != "leaf" {
		t.Errorf("leaf.txt = %q", got)
	}
	if _, err := v.LookupDir(MustParsePath("game/empty/")); err != nil {
		t.Errorf("empty directory entry not materialized: %v", err)
	}
	// the container itself is not a file of the tree
	if _, err := v.LookupFile(MustParsePath("game/pack.zip")); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("pack.zip lookup error = %v", err)
	}

	info, err := v.Stat(MustParsePath("game/textures/stone.png"))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Precedence != PrecedenceArchived || info.Size != 5 {
		t.Errorf("Stat = %+v", info)
	}
	if info.Origin != "/data/pack.zip!textures/stone.png" {
		t.Errorf("Origin = %q", info.Origin)
	}
	realPath, err := v.RealPath(MustParsePath("game/textures/stone.png"))
	if err != nil || realPath != "/data/pack.zip" {
		t.Errorf("RealPath = %q, %v", realPath, err)
	}
}

// TestLooseBeatsArchived checks that identical files prefer the loose copy
// whichever source is enumerated first
func TestLooseBeatsArchived(t *testing.T) {
	v, mem := newMemVFS(t)
	writeFile(t, mem, "/zipped/pack.zip", buildZip(t, []zipEntry{
		{name: "same.txt", data: "zippd", mtime: baseTime},
	}), baseTime)
	writeFile(t, mem, "/loose/same.txt", []byte("loose"), baseTime)
	mustMount(t, v, "", "/zipped", 0, 0)
	mustMount(t, v, "", "/loose", 0, 0)

	if got := mustLoad(t, v, "same.txt"); got != "loose" {
		t.Errorf("same.txt = %q, want the loose copy", got)
	}
}

func TestArchivePriority(t *testing.T) {
	v, mem := newMemVFS(t)
	writeFile(t, mem, "/mod/pack.zip", buildZip(t, []zipEntry{
		{name: "config.txt", data: "from mod", mtime: baseTime},
	}), baseTime)
	writeFile(t, mem, "/base/config.txt", []byte("from base, newer"), baseTime.Add(time.Hour))
	mustMount(t, v, "", "/base", 0, 0)
	mustMount(t, v, "", "/mod", 1, 0)

	if got := mustLoad(t, v, "config.txt"); got != "from mod" {
		t.Errorf("config.txt = %q, want the higher-priority archived file", got)
	}
}

func TestCorruptArchive(t *testing.T) {
	v, mem := newMemVFS(t)
	writeFile(t, mem, "/data/broken.zip", []byte("this is not a zip file"), time.Time{})
	writeFile(t, mem, "/data/ok.txt", []byte("ok"), time.Time{})
	mustMount(t, v, "", "/data", 0, 0)

	if got := mustLoad(t, v, "ok.txt"); got != "ok" {
		t.Errorf("ok.txt = %q", got)
	}
	errs := v.Root().Errors()
	if len(errs) != 1 || !errors.Is(errs[0], ErrArchiveCorrupt) {
		t.Errorf("Errors() = %v, want one ErrArchiveCorrupt", errs)
	}
}

func TestArchiveFormatsDisabled(t *testing.T) {
	v, mem := newMemVFS(t, WithArchiveFormats())
	writeFile(t, mem, "/data/pack.zip", buildZip(t, []zipEntry{{name: "in.txt", data: "in"}}), time.Time{})
	mustMount(t, v, "", "/data", 0, 0)

	if _, err := v.LookupFile(MustParsePath("pack.zip")); err != nil {
		t.Errorf("pack.zip should be a plain file: %v", err)
	}
	if _, err := v.LookupFile(MustParsePath("in.txt")); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("in.txt lookup error = %v", err)
	}
}

func TestArchiveReleasedOnClear(t *testing.T) {
	v, mem := newMemVFS(t)
	writeFile(t, mem, "/data/pack.zip", buildZip(t, []zipEntry{
		{name: "a.txt", data: "a", mtime: baseTime},
		{name: "b.txt", data: "b", mtime: baseTime},
	}), baseTime)
	mustMount(t, v, "", "/data", 0, 0)

	f, err := v.LookupFile(MustParsePath("a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	archive := f.Source().(*ArchiveEntry).archive
	if got := archive.refs.Load(); got != 2 {
		t.Errorf("refs = %d, want one per file", got)
	}

	if err := v.RemoveFile(MustParsePath("a.txt")); err != nil {
		t.Fatal(err)
	}
	if got := archive.refs.Load(); got != 1 {
		t.Errorf("refs after RemoveFile = %d, want 1", got)
	}
	if archive.closed.Load() {
		t.Fatal("archive closed while b.txt still references it")
	}

	v.Clear()
	if !archive.closed.Load() {
		t.Error("archive not closed after Clear")
	}
}

func TestArchiveEntryPath(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"a.txt", "a.txt", true},
		{"dir/", "dir/", true},
		{"dir/sub/file", "dir/sub/file", true},
		{"/abs/file", "abs/file", true},
		{"../escape", "", false},
		{"a/../../escape", "", false},
		{"a/./b", "", false},
		{"a\\b", "", false},
		{"", "", false},
		{"/", "", false},
	}
	for _, tt := range tests {
		p, ok := archiveEntryPath(tt.name)
		if ok != tt.ok {
			t.Errorf("archiveEntryPath(%q) ok = %v, want %v", tt.name, ok, tt.ok)
			continue
		}
		if ok && p.String() != tt.want {
			t.Errorf("archiveEntryPath(%q) = %q, want %q", tt.name, p, tt.want)
		}
	}
}

func TestZipFormatMatch(t *testing.T) {
	z := ZipFormat{}
	for name, want := range map[string]bool{"a.zip": true, "A.ZIP": true, "a.zip.txt": false, "zip": false} {
		if got := z.Match(name); got != want {
			t.Errorf("Match(%q) = %v, want %v", name, got, want)
		}
	}
	custom := ZipFormat{Extensions: []string{".pk3", ".zip"}}
	if !custom.Match("maps.PK3") {
		t.Error("custom extension not matched")
	}
}

// TestArchiveReferenceOutlivesRebuild holds a reference on an archived
// file across a Rebuild that drops the tree holding it
func TestArchiveReferenceOutlivesRebuild(t *testing.T) {
	v, mem := newMemVFS(t, WithCacheSize(0))
	writeFile(t, mem, "/data/pack.zip", buildZip(t, []zipEntry{
		{name: "a.txt", data: "archived a", mtime: baseTime},
	}), baseTime)
	mustMount(t, v, "", "/data", 0, 0)

	f, err := v.lookupRef(MustParsePath("a.txt"))
	if err != nil {
		t.Fatalf("lookupRef failed: %v", err)
	}
	entry := f.Source().(*ArchiveEntry)
	if err := v.Rebuild(); err != nil {
		t.Fatal(err)
	}
	data, err := f.Source().Load(f.Name())
	if err != nil || string(data) != "archived a" {
		t.Fatalf("Load through a held reference = %q, %v", data, err)
	}
	if entry.archive.closed.Load() {
		t.Fatal("archive closed while a reference is held")
	}
	releaseSource(f.Source())
	if !entry.archive.closed.Load() {
		t.Error("archive still open after the last reference was released")
	}

	// a File dropped from the tree before Load reports the closed archive
	if _, err := f.Load(); !errors.Is(err, ErrArchiveCorrupt) {
		t.Errorf("Load of a dropped archived file error = %v", err)
	}

	// Load resolves against the rebuilt tree
	old, err := v.LookupFile(MustParsePath("a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Rebuild(); err != nil {
		t.Fatal(err)
	}
	if got := mustLoad(t, v, "a.txt"); got != "archived a" {
		t.Errorf("a.txt after Rebuild = %q", got)
	}
	if _, err := old.Load(); !errors.Is(err, ErrArchiveCorrupt) {
		t.Errorf("Load of the pre-Rebuild node error = %v", err)
	}
}
