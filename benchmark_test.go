package mountvfs

import (
	"fmt"
	"testing"
)

// benchVFS mounts layers directories of files each at the root
func benchVFS(b *testing.B, layers, files int, opts ...Option) *VFS {
	v, mem := newMemVFS(b, opts...)
	for l := 0; l < layers; l++ {
		for i := 0; i < files; i++ {
			writeFile(b, mem, fmt.Sprintf("/layer%d/dir/file%d.txt", l, i), []byte("content"), baseTime)
		}
		mustMount(b, v, "", fmt.Sprintf("/layer%d", l), Priority(l), 0)
	}
	return v
}

// BenchmarkLoadCached benchmarks Load served from the file cache
func BenchmarkLoadCached(b *testing.B) {
	v := benchVFS(b, 3, 100)
	p := MustParsePath("dir/file50.txt")
	if _, err := v.Load(p); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := v.Load(p); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkLoadUncached benchmarks Load with caching disabled
func BenchmarkLoadUncached(b *testing.B) {
	v := benchVFS(b, 3, 100, WithCacheSize(0))
	p := MustParsePath("dir/file50.txt")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := v.Load(p); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkLookup benchmarks lookups in an already populated tree
func BenchmarkLookup(b *testing.B) {
	v := benchVFS(b, 3, 100)
	p := MustParsePath("dir/file50.txt")
	if _, err := v.LookupFile(p); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := v.LookupFile(p); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkNegativeLookup benchmarks lookups of files nobody provides
func BenchmarkNegativeLookup(b *testing.B) {
	v := benchVFS(b, 3, 100)
	p := MustParsePath("dir/missing.txt")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := v.LookupFile(p); err == nil {
			b.Fatal("expected error for missing file")
		}
	}
}

// BenchmarkPopulate benchmarks merging three layers of a directory
func BenchmarkPopulate(b *testing.B) {
	v := benchVFS(b, 3, 100)
	dir := MustParsePath("dir/")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := v.Repopulate(dir); err != nil {
			b.Fatal(err)
		}
		if _, err := v.ReadDir(dir); err != nil {
			b.Fatal(err)
		}
	}
}
