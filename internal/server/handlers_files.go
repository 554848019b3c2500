package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/codediagram/backend/internal/convo"
	"github.com/codediagram/backend/pkg/types"
)

type scanFilesRequest struct {
	Path string `json:"path"`
}

type scanFilesResponse struct {
	Directory string                `json:"directory"`
	Files     []types.FileInfo      `json:"files"`
	Tree      *types.FileTreeNode   `json:"tree"`
}

func (s *Server) scanFiles(w http.ResponseWriter, r *http.Request) {
	var req scanFilesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "path is required")
		return
	}

	files, err := s.scanner.Scan(req.Path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, scanFilesResponse{
		Directory: req.Path,
		Files:     files,
		Tree:      buildFileTree(req.Path, files),
	})
}

// buildFileTree renders a flat []FileInfo into the directory-tree shape
// clients use to render a file picker.
func buildFileTree(root string, files []types.FileInfo) *types.FileTreeNode {
	rootNode := &types.FileTreeNode{Name: filepath.Base(root), Path: root, IsDir: true}
	dirs := map[string]*types.FileTreeNode{"": rootNode}

	for _, f := range files {
		dir := filepath.Dir(f.RelativePath)
		if dir == "." {
			dir = ""
		}
		parent := getDirRecursive(dirs, dir, root)
		parent.Children = append(parent.Children, &types.FileTreeNode{
			Name: filepath.Base(f.RelativePath),
			Path: f.AbsolutePath,
		})
	}

	sortTree(rootNode)
	return rootNode
}

func getDirRecursive(dirs map[string]*types.FileTreeNode, rel, root string) *types.FileTreeNode {
	if node, ok := dirs[rel]; ok {
		return node
	}
	parentRel := filepath.Dir(rel)
	if parentRel == "." {
		parentRel = ""
	}
	parent := getDirRecursive(dirs, parentRel, root)
	node := &types.FileTreeNode{Name: filepath.Base(rel), Path: filepath.Join(root, rel), IsDir: true}
	parent.Children = append(parent.Children, node)
	dirs[rel] = node
	return node
}

func sortTree(node *types.FileTreeNode) {
	sort.Slice(node.Children, func(i, j int) bool {
		a, b := node.Children[i], node.Children[j]
		if a.IsDir != b.IsDir {
			return a.IsDir
		}
		return a.Name < b.Name
	})
	for _, c := range node.Children {
		if c.IsDir {
			sortTree(c)
		}
	}
}

type readFilesContentRequest struct {
	Files []string `json:"files"`
}

type readFilesContentResponse struct {
	CombinedContent string `json:"combinedContent"`
}

func (s *Server) readFilesContent(w http.ResponseWriter, r *http.Request) {
	var req readFilesContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Files) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "files is required")
		return
	}

	combined := s.scanner.Concat(req.Files, convo.DefaultMaxContextBytes)
	writeJSON(w, http.StatusOK, readFilesContentResponse{CombinedContent: combined})
}

// extractCode extracts fenced code blocks from inline content, returning
// each block's language tag and body. A messageId without content is
// rejected; stored messages are not looked up.
type extractCodeRequest struct {
	MessageID   string `json:"messageId"`
	Content     string `json:"content"`
	AgainstFile string `json:"againstFile"`
}

type extractedBlock struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Diff     string `json:"diff,omitempty"`
}

func (s *Server) extractCode(w http.ResponseWriter, r *http.Request) {
	var req extractCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	content := req.Content
	if content == "" && req.MessageID != "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "messageId lookup requires content; pass content directly")
		return
	}
	if content == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "content is required")
		return
	}

	blocks := extractFencedBlocks(content)

	// Best-effort: when the caller names a file already on disk, diff the
	// first extracted block against its current contents so a client can
	// show what a generated snippet would change. A missing or unreadable
	// file just means no diff, never a failed extraction.
	if req.AgainstFile != "" && len(blocks) > 0 {
		if existing, err := os.ReadFile(req.AgainstFile); err == nil {
			blocks[0].Diff = diffAgainstFile(string(existing), blocks[0].Code)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"blocks": blocks})
}

// diffAgainstFile renders a unified line diff between a file's current
// contents and a candidate replacement.
func diffAgainstFile(before, after string) string {
	if before == after {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	patches := dmp.PatchMake(before, diffs)
	return dmp.PatchToText(patches)
}

func extractFencedBlocks(text string) []extractedBlock {
	const fence = "```"
	var blocks []extractedBlock
	rest := text
	for {
		start := strings.Index(rest, fence)
		if start == -1 {
			break
		}
		rest = rest[start+len(fence):]
		end := strings.Index(rest, fence)
		if end == -1 {
			break
		}
		block := rest[:end]
		rest = rest[end+len(fence):]

		lang := ""
		body := block
		if nl := strings.IndexByte(block, '\n'); nl != -1 {
			tag := strings.TrimSpace(block[:nl])
			if tag != "" && !strings.ContainsAny(tag, " \t{}") {
				lang = tag
				body = block[nl+1:]
			}
		}
		blocks = append(blocks, extractedBlock{Language: lang, Code: strings.TrimSpace(body)})
	}
	return blocks
}
