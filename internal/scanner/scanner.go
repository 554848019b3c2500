// Package scanner implements C1: a lazy, cache-backed directory walk over a
// workspace root plus a file-content cache, grounded on the original
// lazy_file_scanner.py's policy (supported extensions, special filenames,
// ignore folders, LRU content cache, TTL'd directory scans).
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/codediagram/backend/internal/logging"
	"github.com/codediagram/backend/pkg/types"
)

const (
	// DirCacheTTL is how long a directory scan result is reused before the
	// next call re-walks the filesystem.
	DirCacheTTL = 5 * time.Minute

	// DefaultCacheCapacity bounds the number of cached file contents.
	DefaultCacheCapacity = 100

	// DefaultMaxCacheableFileSize bypasses the cache for larger files.
	DefaultMaxCacheableFileSize = 1 << 20 // 1MiB
)

var defaultIgnoreFolders = []string{
	"venv", ".venv", "env", "__pycache__", "node_modules", "dist", "build",
	".git", ".mypy_cache", ".claude", ".github", ".vscode", ".idea", ".roo",
	"results", "logs", ".tox", ".nox", ".pytest_cache", "htmlcov", "cover",
}

var supportedExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".java": true, ".c": true, ".cpp": true, ".h": true, ".hpp": true,
	".php": true, ".go": true, ".rs": true, ".kt": true, ".scala": true,
	".html": true, ".css": true, ".sql": true, ".yaml": true, ".yml": true,
	".json": true, ".xml": true, ".md": true, ".txt": true, ".sh": true,
	".bat": true, ".ps1": true,
}

var specialFiles = map[string]bool{
	".env": true, ".gitignore": true, "requirements.txt": true,
	"package.json": true, "Dockerfile": true, "docker-compose.yml": true,
	"Makefile": true, "README.md": true,
}

// Scanner provides a lazy directory walk plus content cache over a single
// process's lifetime, shared across all sessions.
type Scanner struct {
	ignoreFolders map[string]bool

	mu       sync.Mutex
	dirCache map[string]dirCacheEntry

	content *contentCache

	watcher *fsnotify.Watcher
}

type dirCacheEntry struct {
	files     []types.FileInfo
	expiresAt time.Time
}

// New creates a Scanner. extraIgnoreFolders supplements the built-in set
// (spec.md §6 IGNORE_FOLDERS).
func New(extraIgnoreFolders []string) *Scanner {
	ignore := make(map[string]bool, len(defaultIgnoreFolders)+len(extraIgnoreFolders))
	for _, f := range defaultIgnoreFolders {
		ignore[f] = true
	}
	for _, f := range extraIgnoreFolders {
		ignore[f] = true
	}

	s := &Scanner{
		ignoreFolders: ignore,
		dirCache:      make(map[string]dirCacheEntry),
		content:       newContentCache(DefaultCacheCapacity),
	}

	if w, err := fsnotify.NewWatcher(); err == nil {
		s.watcher = w
		go s.watchLoop()
	} else {
		logging.Warn().Err(err).Msg("scanner: failed to start fsnotify watcher, relying on TTL only")
	}

	return s
}

// watchLoop invalidates a root's directory-scan cache entry early when
// fsnotify reports a change under it, instead of waiting for the TTL.
func (s *Scanner) watchLoop() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.invalidateRootsUnder(ev.Name)
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (s *Scanner) invalidateRootsUnder(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for root := range s.dirCache {
		if strings.HasPrefix(path, root) {
			delete(s.dirCache, root)
		}
	}
}

// Scan walks root (using the TTL'd directory cache when fresh) and returns
// every file that passes the ignore/extension/special-file policy.
func (s *Scanner) Scan(root string) ([]types.FileInfo, error) {
	root = filepath.Clean(root)

	s.mu.Lock()
	if entry, ok := s.dirCache[root]; ok && time.Now().Before(entry.expiresAt) {
		s.mu.Unlock()
		return entry.files, nil
	}
	s.mu.Unlock()

	gitignore := loadGitignore(root)

	var files []types.FileInfo
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries, don't fail the whole walk
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}

		if info.IsDir() {
			if s.shouldSkipDir(info.Name(), rel, gitignore) {
				return filepath.SkipDir
			}
			return nil
		}

		if info.Size() == 0 {
			return nil
		}
		if !s.includeFile(info.Name(), rel, gitignore) {
			return nil
		}

		files = append(files, types.FileInfo{
			AbsolutePath: path,
			RelativePath: filepath.ToSlash(rel),
			Size:         info.Size(),
			MTime:        info.ModTime().Unix(),
			Extension:    strings.ToLower(filepath.Ext(info.Name())),
			IsSpecial:    specialFiles[info.Name()],
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.dirCache[root] = dirCacheEntry{files: files, expiresAt: time.Now().Add(DirCacheTTL)}
	s.mu.Unlock()

	if s.watcher != nil {
		_ = s.watcher.Add(root)
	}

	return files, nil
}

func (s *Scanner) shouldSkipDir(name, rel string, gi *gitignoreSet) bool {
	if s.ignoreFolders[name] {
		return true
	}
	return gi.matchesDir(rel)
}

func (s *Scanner) includeFile(name, rel string, gi *gitignoreSet) bool {
	if gi.matchesFile(rel) {
		return false
	}
	if specialFiles[name] {
		return true
	}
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Read returns the content of path, using the content cache when fresh.
func (s *Scanner) Read(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	if info.Size() > DefaultMaxCacheableFileSize {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return string(data), nil
	}

	if content, ok := s.content.get(path, info.ModTime()); ok {
		return content, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	content := string(data)
	s.content.put(path, content, info.ModTime())
	return content, nil
}

// ReadSafe is like Read but never errors: failures are rendered inline as
// the file's "content" per spec.md §4.1 Failure policy.
func (s *Scanner) ReadSafe(path string) string {
	content, err := s.Read(path)
	if err != nil {
		return fmt.Sprintf("Error reading file %s: %v", filepath.Base(path), err)
	}
	return content
}

// Concat builds the combined-content block described in spec.md §4.1.
func (s *Scanner) Concat(paths []string, maxTotalBytes int) string {
	paths = dedupe(paths)

	type entry struct {
		path    string
		size    int64
		special bool
	}
	entries := make([]entry, 0, len(paths))
	for _, p := range paths {
		size := int64(0)
		if info, err := os.Stat(p); err == nil {
			size = info.Size()
		}
		entries = append(entries, entry{path: p, size: size, special: specialFiles[filepath.Base(p)]})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].special != entries[j].special {
			return entries[i].special
		}
		return entries[i].size < entries[j].size
	})

	var sb strings.Builder
	total := 0
	included := 0
	skipped := 0

	for _, e := range entries {
		content := s.ReadSafe(e.path)
		block := fmt.Sprintf("\n\n=== File: %s ===\n%s", filepath.Base(e.path), content)
		if total+len(block) > maxTotalBytes && included > 0 {
			skipped++
			continue
		}
		sb.WriteString(block)
		total += len(block)
		included++
	}

	if skipped > 0 {
		sb.WriteString(fmt.Sprintf("\n\n=== %d file(s) skipped: would exceed %d byte context limit ===", skipped, maxTotalBytes))
	}

	return sb.String()
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// matchGlob reports whether rel matches a doublestar-style ignore pattern.
func matchGlob(pattern, rel string) bool {
	ok, _ := doublestar.Match(pattern, rel)
	return ok
}
