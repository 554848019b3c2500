package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codediagram/backend/internal/toolsurface"
)

type mcpToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

func (s *Server) listMCPTools(w http.ResponseWriter, r *http.Request) {
	tools := s.tools.List()
	out := make([]mcpToolDescriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, mcpToolDescriptor{Name: t.Name(), Description: t.Description(), InputSchema: t.Schema()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

func (s *Server) callMCPTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	args, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "failed to read request body")
		return
	}

	result, callErr, ok := s.tools.Call(r.Context(), name, args)
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "unknown tool: "+name)
		return
	}

	// Tool-call failures surface in-band via IsError, per spec.md §4.9 (the
	// tool surface never turns an internal failure into an HTTP error
	// status, mirroring the JSON-RPC "result" shape for tools/call).
	writeJSON(w, http.StatusOK, toolsurface.WrapResult(result, callErr))
}
