package scanner

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// gitignoreSet holds the directory- and file-scoped glob patterns read from
// a workspace's .gitignore, matched with doublestar so that "**" patterns
// behave the way a real gitignore implementation expects.
type gitignoreSet struct {
	dirPatterns  []string
	filePatterns []string
}

// loadGitignore reads root/.gitignore if present. Missing or unreadable
// files simply yield an empty set; this is a best-effort filter layered on
// top of the fixed ignore-folder list, not a strict requirement.
func loadGitignore(root string) *gitignoreSet {
	gi := &gitignoreSet{}

	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return gi
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "/")

		isDir := strings.HasSuffix(line, "/")
		line = strings.TrimSuffix(line, "/")

		pattern := line
		if !strings.Contains(pattern, "/") {
			pattern = "**/" + pattern
		}

		if isDir {
			gi.dirPatterns = append(gi.dirPatterns, pattern, pattern+"/**")
		} else {
			gi.dirPatterns = append(gi.dirPatterns, pattern+"/**")
			gi.filePatterns = append(gi.filePatterns, pattern)
		}
	}

	return gi
}

func (gi *gitignoreSet) matchesDir(rel string) bool {
	if gi == nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range gi.dirPatterns {
		if matchGlob(p, rel) {
			return true
		}
	}
	return false
}

func (gi *gitignoreSet) matchesFile(rel string) bool {
	if gi == nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range gi.filePatterns {
		if matchGlob(p, rel) {
			return true
		}
	}
	return false
}
