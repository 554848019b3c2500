package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codediagram/backend/internal/toolsurface"
)

func TestListMCPTools_ReturnsAllRegisteredTools(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/mcp/tools", nil)
	w := httptest.NewRecorder()

	srv.listMCPTools(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tools []mcpToolDescriptor `json:"tools"`
	}
	require.NoError(t, decodeJSON(w, &resp))
	require.Len(t, resp.Tools, 3)
}

func TestCallMCPTool_UnknownToolReturnsNotFound(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("POST", "/api/v1/mcp/tools/does_not_exist", bytes.NewBufferString(`{}`))
	req = req.WithContext(withURLParam(req.Context(), "name", "does_not_exist"))
	w := httptest.NewRecorder()

	srv.callMCPTool(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCallMCPTool_GenerateDiagramWrapsResultContent(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("POST", "/api/v1/mcp/tools/generate_diagram", bytes.NewBufferString(`{"prompt":"draw the login flow","diagram_type":"mermaid"}`))
	req = req.WithContext(withURLParam(req.Context(), "name", "generate_diagram"))
	w := httptest.NewRecorder()

	srv.callMCPTool(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp toolsurface.ToolContent
	require.NoError(t, decodeJSON(w, &resp))
	require.NotEmpty(t, resp.Content)
}
