package mountvfs

import (
	"io"
	"os"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/absfs/absfs"
	"github.com/absfs/memfs"
	"github.com/sirupsen/logrus"
)

// mustNewMemFS creates a new memfs or panics
func mustNewMemFS() absfs.FileSystem {
	mfs, err := memfs.NewFS()
	if err != nil {
		panic(err)
	}
	return mfs
}

// writeFile writes data to name, creating parent directories, and sets
// its modification time unless mtime is zero
func writeFile(t testing.TB, fs absfs.FileSystem, name string, data []byte, mtime time.Time) {
	t.Helper()
	if dir := path.Dir(name); dir != "/" {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("MkdirAll %s: %v", dir, err)
		}
	}
	f, err := fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		t.Fatalf("OpenFile %s: %v", name, err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("Write %s: %v", name, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close %s: %v", name, err)
	}
	if !mtime.IsZero() {
		if err := fs.Chtimes(name, mtime, mtime); err != nil {
			t.Fatalf("Chtimes %s: %v", name, err)
		}
	}
}

// readFile reads a file from a filesystem
func readFile(fs absfs.FileSystem, name string) ([]byte, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newMemVFS returns a VFS over a fresh memfs backend
func newMemVFS(t testing.TB, opts ...Option) (*VFS, absfs.FileSystem) {
	t.Helper()
	mem := mustNewMemFS()
	base := []Option{WithBackend(NewAbsBackend(mem)), WithLogger(quietLogger())}
	return New(append(base, opts...)...), mem
}

func mustMount(t testing.TB, v *VFS, vfsDir, realPath string, priority Priority, flags MountFlags) {
	t.Helper()
	dir, err := DirPath(vfsDir)
	if err != nil {
		t.Fatalf("DirPath %q: %v", vfsDir, err)
	}
	if err := v.Mount(dir, realPath, priority, flags); err != nil {
		t.Fatalf("Mount %q -> %q: %v", realPath, vfsDir, err)
	}
}

func mustLoad(t testing.TB, v *VFS, p string) string {
	t.Helper()
	data, err := v.Load(MustParsePath(p))
	if err != nil {
		t.Fatalf("Load %q: %v", p, err)
	}
	return string(data)
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// countingBackend counts List calls per directory and can inject
// failures and delays.
type countingBackend struct {
	*AbsBackend

	mu     sync.Mutex
	lists  map[string]int
	fail   map[string]error
	delay  time.Duration
	onList func(dir string)
}

func newCountingBackend(fs absfs.FileSystem) *countingBackend {
	return &countingBackend{
		AbsBackend: NewAbsBackend(fs),
		lists:      make(map[string]int),
		fail:       make(map[string]error),
	}
}

func (b *countingBackend) List(dir string) ([]FileRecord, []string, error) {
	b.mu.Lock()
	b.lists[dir]++
	err := b.fail[dir]
	hook := b.onList
	b.mu.Unlock()

	if hook != nil {
		hook(dir)
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if err != nil {
		return nil, nil, err
	}
	return b.AbsBackend.List(dir)
}

func (b *countingBackend) listCount(dir string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lists[dir]
}
