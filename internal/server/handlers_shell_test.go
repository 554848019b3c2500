package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codediagram/backend/pkg/types"
)

func TestCreateShellSession_DefaultsToWorkspaceRoot(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("POST", "/api/v1/shell/sessions", nil)
	w := httptest.NewRecorder()

	srv.createShellSession(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var info types.ShellSessionInfo
	require.NoError(t, decodeJSON(w, &info))
	require.NotEmpty(t, info.ID)
}

func TestGetShellSession_NotFound(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/shell/sessions/missing", nil)
	req = req.WithContext(withURLParam(req.Context(), "id", "missing"))
	w := httptest.NewRecorder()

	srv.getShellSession(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListShellSessions_ReturnsCreatedSessions(t *testing.T) {
	srv := setupTestServer(t)

	createReq := httptest.NewRequest("POST", "/api/v1/shell/sessions", nil)
	createW := httptest.NewRecorder()
	srv.createShellSession(createW, createReq)

	req := httptest.NewRequest("GET", "/api/v1/shell/sessions", nil)
	w := httptest.NewRecorder()
	srv.listShellSessions(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Sessions []types.ShellSessionInfo `json:"sessions"`
	}
	require.NoError(t, decodeJSON(w, &resp))
	require.Len(t, resp.Sessions, 1)
}

func TestCloseShellSession_RemovesSession(t *testing.T) {
	srv := setupTestServer(t)

	createReq := httptest.NewRequest("POST", "/api/v1/shell/sessions", nil)
	createW := httptest.NewRecorder()
	srv.createShellSession(createW, createReq)

	var info types.ShellSessionInfo
	require.NoError(t, decodeJSON(createW, &info))

	req := httptest.NewRequest("DELETE", "/api/v1/shell/sessions/"+info.ID, nil)
	req = req.WithContext(withURLParam(req.Context(), "id", info.ID))
	w := httptest.NewRecorder()

	srv.closeShellSession(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	getReq := httptest.NewRequest("GET", "/api/v1/shell/sessions/"+info.ID, nil)
	getReq = getReq.WithContext(withURLParam(getReq.Context(), "id", info.ID))
	getW := httptest.NewRecorder()
	srv.getShellSession(getW, getReq)
	require.Equal(t, http.StatusNotFound, getW.Code)
}
