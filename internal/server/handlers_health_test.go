package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealth_ReturnsOK(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()

	srv.health(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, decodeJSON(w, &body))
	require.Equal(t, "ok", body["status"])
	require.NotEmpty(t, body["timestamp"])
}
