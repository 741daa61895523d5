/*
Package mountvfs provides a virtual filesystem overlay engine: real
directories and archives are mounted onto directories of a single logical
tree, and every file of that tree resolves to exactly one backing source.

# Overview

A VFS starts empty. Mount attaches a real directory to a VFS directory
with a priority. Nothing is read until a directory is first looked up;
it is then populated from all attached real directories, and any
archives found in them are expanded in place as if their entries were
loose files.

	v := mountvfs.New()
	v.Mount(mountvfs.Root, "/opt/game/data", 0, 0)
	v.Mount(mountvfs.MustParsePath("mods/"), "/home/user/mods/a", 1, mountvfs.MountWatch)

	data, err := v.Load(mountvfs.MustParsePath("textures/t.png"))

# Paths

VFS paths are slash separated and relative to the root. Directory paths
end with "/", file paths do not, and "" is the root. Paths are compared
case-insensitively and keep their spelling for display. ParsePath
rejects ".", "..", empty components, backslashes and wildcard characters.

# Conflict Resolution

When several sources contribute the same name, the file from the
higher-priority mount wins regardless of mount order or modification
time. At equal priority a file that is newer by more than the time
tolerance (2 seconds by default) replaces an older one. Files that agree
in size and modification time count as identical; a loose file then wins
over an archived one. Any remaining tie keeps the first-mounted file.

# Writing

CreateFile stores a file in the authoritative real directory of its VFS
directory. That real directory is fixed when the VFS directory is first
materialized and only changes when a real directory is mounted onto it
explicitly, so writes do not migrate when unrelated mounts are added.
Missing directories are created below the parent's authoritative real
directory.

# Caching and Invalidation

Loaded contents are kept in an LRU cache bounded by a byte budget
(WithCacheSize). Invalidate drops a cached file and makes its directory
repopulate on the next lookup. A NotifyWatcher passed with WithWatcher
delivers changes of directories mounted with MountWatch; wire its Run
loop to HandleChange.

# Backends

Real directories live in a Backend. OSBackend is the host filesystem and
the default. AferoBackend adapts any afero.Fs and AbsBackend adapts any
absfs.FileSystem; both are convenient in tests:

	v := mountvfs.New(mountvfs.WithBackend(mountvfs.NewAferoBackend(afero.NewMemMapFs())))

	mem, _ := memfs.NewFS()
	v = mountvfs.New(mountvfs.WithBackend(mountvfs.NewAbsBackend(mem)))

# Views

FS returns a read-only io/fs view of the tree. Package fuseview serves the
same view over FUSE.

# Thread Safety

Lookups, loads and queries may run concurrently from any number of
goroutines; concurrent first lookups of a directory enumerate each of
its real directories once. Mount, CreateFile, RemoveFile, Clear and
Rebuild are serialized internally.
*/
package mountvfs
