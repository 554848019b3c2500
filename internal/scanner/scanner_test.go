package scanner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestScan_FiltersIgnoredFoldersAndExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.go"), "package main")
	writeFile(t, filepath.Join(root, "node_modules", "dep", "index.js"), "module.exports = {}")
	writeFile(t, filepath.Join(root, "image.png"), "binary")
	writeFile(t, filepath.Join(root, "README.md"), "# hello")
	writeFile(t, filepath.Join(root, "Dockerfile"), "FROM scratch")

	s := New(nil)
	files, err := s.Scan(root)
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		rel = append(rel, f.RelativePath)
	}

	require.Contains(t, rel, "main.go")
	require.Contains(t, rel, "README.md")
	require.Contains(t, rel, "Dockerfile")
	require.NotContains(t, rel, "image.png")
	require.NotContains(t, rel, "node_modules/dep/index.js")
}

func TestScan_RespectsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "generated/\n*.secret\n")
	writeFile(t, filepath.Join(root, "generated", "out.go"), "package generated")
	writeFile(t, filepath.Join(root, "config.secret"), "token")
	writeFile(t, filepath.Join(root, "main.go"), "package main")

	s := New(nil)
	files, err := s.Scan(root)
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		rel = append(rel, f.RelativePath)
	}
	require.Contains(t, rel, "main.go")
	require.NotContains(t, rel, "generated/out.go")
}

func TestScan_UsesTTLCache(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.go"), "package main")

	s := New(nil)
	first, err := s.Scan(root)
	require.NoError(t, err)
	require.Len(t, first, 1)

	writeFile(t, filepath.Join(root, "second.go"), "package main")
	second, err := s.Scan(root)
	require.NoError(t, err)
	require.Len(t, second, 1, "cached result should be reused within the TTL window")
}

func TestRead_CachesUntilMtimeChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.go")
	writeFile(t, path, "package main")

	s := New(nil)
	content, err := s.Read(path)
	require.NoError(t, err)
	require.Equal(t, "package main", content)

	time.Sleep(10 * time.Millisecond)
	writeFile(t, path, "package main // updated")
	content, err = s.Read(path)
	require.NoError(t, err)
	require.Equal(t, "package main // updated", content)
}

func TestReadSafe_ReturnsErrorTextInsteadOfFailing(t *testing.T) {
	s := New(nil)
	content := s.ReadSafe(filepath.Join(t.TempDir(), "missing.go"))
	require.Contains(t, content, "Error reading file")
}

func TestConcat_OrdersSpecialFilesFirst(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.go")
	b := filepath.Join(dir, "README.md")
	writeFile(t, a, "package a")
	writeFile(t, b, "# readme")

	s := New(nil)
	out := s.Concat([]string{a, b}, 1<<20)

	idxReadme := indexOf(out, "=== File: README.md ===")
	idxA := indexOf(out, "=== File: a.go ===")
	require.GreaterOrEqual(t, idxReadme, 0)
	require.GreaterOrEqual(t, idxA, 0)
	require.Less(t, idxReadme, idxA, "special files should sort before regular files")
}

func TestConcat_SkipsFilesBeyondByteBudget(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.go")
	b := filepath.Join(dir, "b.go")
	writeFile(t, a, "package a // small")
	writeFile(t, b, "package b // also small but budget forces a skip")

	s := New(nil)
	out := s.Concat([]string{a, b}, 40)

	require.Contains(t, out, "a.go")
	require.Contains(t, out, "skipped")
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
