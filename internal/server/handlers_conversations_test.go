package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codediagram/backend/pkg/types"
)

func TestCreateConversation_DefaultsFromAppConfig(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("POST", "/api/v1/conversations", nil)
	w := httptest.NewRecorder()

	srv.createConversation(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var snap types.SessionSnapshot
	require.NoError(t, decodeJSON(w, &snap))
	require.Equal(t, "anthropic", snap.Provider)
	require.Equal(t, "m", snap.Model)
	require.NotEmpty(t, snap.ID)
}

func TestGetConversationSummary_NotFound(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/conversations/missing/summary", nil)
	req = req.WithContext(withURLParam(req.Context(), "id", "missing"))
	w := httptest.NewRecorder()

	srv.getConversationSummary(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateConversationModel_OnlyTouchesModel(t *testing.T) {
	srv := setupTestServer(t)
	session := srv.convos.Create("k", "anthropic", []string{"m", "m2"}, "m", "")

	body := bytes.NewBufferString(`{"model":"m2"}`)
	req := httptest.NewRequest("PUT", "/api/v1/conversations/"+session.ID()+"/model", body)
	req = req.WithContext(withURLParam(req.Context(), "id", session.ID()))
	w := httptest.NewRecorder()

	srv.updateConversationModel(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var snap types.SessionSnapshot
	require.NoError(t, decodeJSON(w, &snap))
	require.Equal(t, "m2", snap.Model)
	require.Equal(t, "anthropic", snap.Provider)
}

func TestUpdateConversationModel_RejectsEmptyModel(t *testing.T) {
	srv := setupTestServer(t)
	session := srv.convos.Create("k", "anthropic", []string{"m"}, "m", "")

	req := httptest.NewRequest("PUT", "/api/v1/conversations/"+session.ID()+"/model", bytes.NewBufferString(`{}`))
	req = req.WithContext(withURLParam(req.Context(), "id", session.ID()))
	w := httptest.NewRecorder()

	srv.updateConversationModel(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateConversationAPIKey_OnlyTouchesAPIKey(t *testing.T) {
	srv := setupTestServer(t)
	session := srv.convos.Create("k", "anthropic", []string{"m"}, "m", "")

	req := httptest.NewRequest("PUT", "/api/v1/conversations/"+session.ID()+"/api-key", bytes.NewBufferString(`{"api_key":"new-key"}`))
	req = req.WithContext(withURLParam(req.Context(), "id", session.ID()))
	w := httptest.NewRecorder()

	srv.updateConversationAPIKey(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var snap types.SessionSnapshot
	require.NoError(t, decodeJSON(w, &snap))
	require.Equal(t, "m", snap.Model)
}
