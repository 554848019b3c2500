package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codediagram/backend/internal/storage"
	"github.com/codediagram/backend/pkg/types"
)

type createShellSessionRequest struct {
	WorkingDirectory string `json:"working_directory"`
	ShellType        string `json:"shell_type"`
}

func (s *Server) createShellSession(w http.ResponseWriter, r *http.Request) {
	var req createShellSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
			return
		}
	}

	kind := types.ShellKind(req.ShellType)
	if kind == "" {
		kind = types.ShellAuto
	}

	info, err := s.shells.CreateSession(req.WorkingDirectory, kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) listShellSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.shells.List()})
}

func (s *Server) getShellSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, err := s.shells.Info(id)
	if err != nil {
		writeShellError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) closeShellSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.shells.Close(id); err != nil {
		writeShellError(w, err)
		return
	}
	writeSuccess(w)
}

func writeShellError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "shell session not found")
		return
	}
	writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
}
