package mountvfs

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultCacheSize is the default byte budget of the file cache
	DefaultCacheSize = 64 << 20
	// DefaultTimeTolerance is the mtime difference below which two files
	// count as equally recent (FAT filesystems store mtimes with 2s resolution)
	DefaultTimeTolerance = 2 * time.Second
)

// VFS is an overlay engine instance. Lookups and loads may run
// concurrently from any number of goroutines; Mount, CreateFile,
// RemoveFile, Clear and Rebuild are serialized internally.
type VFS struct {
	backend     Backend
	formats     []ArchiveFormat
	watcher     Watcher
	log         logrus.FieldLogger
	tolerance   time.Duration
	maxFileSize int64
	cacheSize   int64

	root  atomic.Pointer[Directory]
	cache *Cache

	writeMu    sync.Mutex
	mounts     []*mountRecord
	mountIndex map[string]*mountRecord

	watchMu sync.Mutex
	watches map[string]WatchHandle
}

// mountRecord is one entry of the mount table.
type mountRecord struct {
	vfsDir  Path
	realDir *RealDirectory
}

// MountInfo describes one entry of the mount table.
type MountInfo struct {
	VFSPath  Path
	RealPath string
	Priority Priority
	Flags    MountFlags
}

// Option is a functional option for configuring a VFS
type Option func(*VFS)

// WithBackend sets the backend real directories are read from and written to
func WithBackend(b Backend) Option {
	return func(v *VFS) {
		v.backend = b
	}
}

// WithLogger sets the logger. The default writes warnings to stderr.
func WithLogger(l logrus.FieldLogger) Option {
	return func(v *VFS) {
		v.log = l
	}
}

// WithCacheSize sets the byte budget of the file cache. Zero disables caching.
func WithCacheSize(bytes int64) Option {
	return func(v *VFS) {
		v.cacheSize = bytes
	}
}

// WithMaxFileSize makes Load fail with ErrOutOfMemory for larger files.
// Zero means no limit.
func WithMaxFileSize(bytes int64) Option {
	return func(v *VFS) {
		v.maxFileSize = bytes
	}
}

// WithWatcher sets the collaborator directories mounted with MountWatch
// are registered with.
func WithWatcher(w Watcher) Option {
	return func(v *VFS) {
		v.watcher = w
	}
}

// WithArchiveFormats replaces the recognized archive formats. Passing no
// format disables archive expansion.
func WithArchiveFormats(formats ...ArchiveFormat) Option {
	return func(v *VFS) {
		v.formats = formats
	}
}

// WithTimeTolerance sets the mtime tolerance of the conflict law
func WithTimeTolerance(d time.Duration) Option {
	return func(v *VFS) {
		v.tolerance = d
	}
}

func defaultLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

// New creates an empty VFS with the specified options
func New(opts ...Option) *VFS {
	v := &VFS{
		backend:    NewOSBackend(),
		formats:    []ArchiveFormat{ZipFormat{}},
		tolerance:  DefaultTimeTolerance,
		cacheSize:  DefaultCacheSize,
		mountIndex: make(map[string]*mountRecord),
		watches:    make(map[string]WatchHandle),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.log == nil {
		v.log = defaultLogger()
	}
	v.cache = newCache(v.cacheSize)
	v.root.Store(newDirectory(""))
	return v
}

// Name returns the name of the filesystem
func (v *VFS) Name() string {
	return "mountvfs"
}

// Backend returns the backend real directories live in
func (v *VFS) Backend() Backend {
	return v.backend
}

// Root returns the root directory node of the current tree
func (v *VFS) Root() *Directory {
	return v.root.Load()
}

// Mounts returns a snapshot of the mount table in mount order
func (v *VFS) Mounts() []MountInfo {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	infos := make([]MountInfo, 0, len(v.mounts))
	for _, m := range v.mounts {
		infos = append(infos, MountInfo{
			VFSPath:  m.vfsDir,
			RealPath: m.realDir.path,
			Priority: m.realDir.priority,
			Flags:    m.realDir.flags,
		})
	}
	return infos
}

// Clear drops the tree, the cache, the mount table and all watch
// registrations. The VFS is empty afterwards.
func (v *VFS) Clear() {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	old := v.root.Swap(newDirectory(""))
	v.cache.clear()
	v.mounts = nil
	v.mountIndex = make(map[string]*mountRecord)
	v.unregisterAllWatches()
	old.release()
	v.log.Debug("vfs cleared")
}

// Rebuild drops the tree and the cache and replays the mount table in
// its original order. Directories are populated lazily again.
func (v *VFS) Rebuild() error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	root := newDirectory("")
	for _, m := range v.mounts {
		if err := v.attachMount(root, m); err != nil {
			return newError(OpMount, m.vfsDir.String(), err)
		}
	}
	old := v.root.Swap(root)
	v.cache.clear()
	old.release()
	v.log.WithField("mounts", len(v.mounts)).Debug("vfs rebuilt")
	return nil
}

// CacheStats returns file cache statistics
func (v *VFS) CacheStats() CacheStats {
	return v.cache.Stats()
}

func (v *VFS) pathLog(p Path) logrus.FieldLogger {
	return v.log.WithField("vfs_path", p.String())
}
