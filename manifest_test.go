package mountvfs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testManifest = `
cache_size: 1024
max_file_size: 100
mounts:
  - vfs: ""
    path: /base
  - vfs: mods
    path: /mods/a
    priority: 2
    watch: true
    archivable: true
`

func TestLoadManifest(t *testing.T) {
	m, err := LoadManifest(strings.NewReader(testManifest))
	require.NoError(t, err)
	require.NotNil(t, m.CacheSize)
	require.EqualValues(t, 1024, *m.CacheSize)
	require.Len(t, m.Mounts, 2)
	require.Equal(t, ManifestMount{VFS: "mods", Path: "/mods/a", Priority: 2, Watch: true, Archivable: true}, m.Mounts[1])
	require.Equal(t, MountWatch|MountArchivable, m.Mounts[1].Flags())
	require.Len(t, m.Options(), 2)
}

func TestManifestApply(t *testing.T) {
	m, err := LoadManifest(strings.NewReader(testManifest))
	require.NoError(t, err)

	mem := mustNewMemFS()
	writeFile(t, mem, "/base/a.txt", []byte("base"), time.Time{})
	writeFile(t, mem, "/mods/a/b.txt", []byte("mod"), time.Time{})
	opts := append(m.Options(), WithBackend(NewAbsBackend(mem)), WithLogger(quietLogger()))
	v := New(opts...)
	require.NoError(t, m.Apply(v))

	require.Equal(t, "base", mustLoad(t, v, "a.txt"))
	require.Equal(t, "mod", mustLoad(t, v, "mods/b.txt"))
	require.EqualValues(t, 1024, v.CacheStats().MaxBytes)

	mounts := v.Mounts()
	require.Len(t, mounts, 2)
	require.Equal(t, "mods/", mounts[1].VFSPath.String())
	require.Equal(t, Priority(2), mounts[1].Priority)

	// a second application fails on the first entry
	err = m.Apply(v)
	require.ErrorIs(t, err, ErrAlreadyMounted)
	require.Contains(t, err.Error(), "manifest mount 0")
}

func TestLoadManifestErrors(t *testing.T) {
	tests := map[string]string{
		"missing path":  "mounts:\n  - vfs: x/\n",
		"bad vfs path":  "mounts:\n  - vfs: a//b\n    path: /x\n",
		"unknown field": "mounts:\n  - vfs: x/\n    path: /x\n    prio: 3\n",
		"not yaml":      "mounts: [",
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadManifest(strings.NewReader(text))
			require.Error(t, err)
		})
	}

	m, err := LoadManifest(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, m.Mounts)
	require.Empty(t, m.Options())
}

func TestReadManifestFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "mounts.yaml")
	require.NoError(t, os.WriteFile(name, []byte(testManifest), 0644))

	m, err := ReadManifestFile(name)
	require.NoError(t, err)
	require.Len(t, m.Mounts, 2)

	_, err = ReadManifestFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
