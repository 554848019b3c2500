package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanFiles_BuildsTreeFromScannedFiles(t *testing.T) {
	srv := setupTestServer(t)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pkg", "lib.go"), []byte("package pkg"), 0644))

	req := httptest.NewRequest("POST", "/api/v1/files/scan", bytes.NewBufferString(`{"path":"`+dir+`"}`))
	w := httptest.NewRecorder()

	srv.scanFiles(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp scanFilesResponse
	require.NoError(t, decodeJSON(w, &resp))
	require.Len(t, resp.Files, 2)
	require.NotNil(t, resp.Tree)
	require.True(t, resp.Tree.IsDir)
}

func TestScanFiles_RejectsMissingPath(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("POST", "/api/v1/files/scan", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()

	srv.scanFiles(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReadFilesContent_ConcatenatesFiles(t *testing.T) {
	srv := setupTestServer(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(file, []byte("package a"), 0644))

	req := httptest.NewRequest("POST", "/api/v1/files/content", bytes.NewBufferString(`{"files":["`+file+`"]}`))
	w := httptest.NewRecorder()

	srv.readFilesContent(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp readFilesContentResponse
	require.NoError(t, decodeJSON(w, &resp))
	require.Contains(t, resp.CombinedContent, "package a")
}

func TestReadFilesContent_RejectsEmptyFileList(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("POST", "/api/v1/files/content", bytes.NewBufferString(`{"files":[]}`))
	w := httptest.NewRecorder()

	srv.readFilesContent(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractCode_ParsesFencedBlocks(t *testing.T) {
	srv := setupTestServer(t)

	content := "some text\n```go\npackage main\n```\nmore text\n```\nno lang\n```"
	req := httptest.NewRequest("POST", "/api/v1/code/extract", bytes.NewBufferString(`{"content":`+quoteJSON(content)+`}`))
	w := httptest.NewRecorder()

	srv.extractCode(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Blocks []extractedBlock `json:"blocks"`
	}
	require.NoError(t, decodeJSON(w, &resp))
	require.Len(t, resp.Blocks, 2)
	require.Equal(t, "go", resp.Blocks[0].Language)
	require.Equal(t, "package main", resp.Blocks[0].Code)
	require.Equal(t, "", resp.Blocks[1].Language)
}

func TestExtractCode_DiffsAgainstExistingFile(t *testing.T) {
	srv := setupTestServer(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0644))

	content := "```go\npackage main\n\nfunc main() {}\n```"
	body := `{"content":` + quoteJSON(content) + `,"againstFile":` + quoteJSON(file) + `}`
	req := httptest.NewRequest("POST", "/api/v1/code/extract", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	srv.extractCode(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Blocks []extractedBlock `json:"blocks"`
	}
	require.NoError(t, decodeJSON(w, &resp))
	require.Len(t, resp.Blocks, 1)
	require.NotEmpty(t, resp.Blocks[0].Diff)
}

func TestExtractCode_RejectsEmptyContent(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("POST", "/api/v1/code/extract", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()

	srv.extractCode(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func quoteJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
