package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codediagram/backend/internal/provider"
	"github.com/codediagram/backend/internal/storage"
)

type createConversationRequest struct {
	APIKey   string `json:"api_key"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (s *Server) createConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
			return
		}
	}

	providerID := req.Provider
	if providerID == "" && s.appConfig != nil {
		providerID = s.appConfig.Provider
	}
	model := req.Model
	if model == "" && s.appConfig != nil {
		model = s.appConfig.DefaultModel
	}
	apiKey := req.APIKey
	if apiKey == "" && s.appConfig != nil {
		apiKey = s.appConfig.APIKey
	}

	var availableModels []string
	if s.appConfig != nil {
		availableModels = s.appConfig.AvailableModels
	}

	session := s.convos.Create(apiKey, providerID, availableModels, model, "")
	writeJSON(w, http.StatusCreated, session.Summary())
}

func (s *Server) getConversationSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := s.convos.Get(id)
	if err != nil {
		writeNotFoundOrInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Summary())
}

type updateModelRequest struct {
	Model string `json:"model"`
}

func (s *Server) updateConversationModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := s.convos.Get(id)
	if err != nil {
		writeNotFoundOrInternal(w, err)
		return
	}

	var req updateModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Model == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "model is required")
		return
	}

	session.Configure("", "", req.Model, nil)
	writeJSON(w, http.StatusOK, session.Summary())
}

type updateAPIKeyRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) updateConversationAPIKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := s.convos.Get(id)
	if err != nil {
		writeNotFoundOrInternal(w, err)
		return
	}

	var req updateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "api_key is required")
		return
	}

	session.Configure(req.APIKey, "", "", nil)
	writeJSON(w, http.StatusOK, session.Summary())
}

func writeNotFoundOrInternal(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		return
	}
	writeProviderError(w, err)
}

func writeProviderError(w http.ResponseWriter, err error) {
	var cfgErr *provider.ConfigError
	if errors.As(err, &cfgErr) {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	var upstreamErr *provider.UpstreamError
	if errors.As(err, &upstreamErr) {
		writeError(w, http.StatusInternalServerError, ErrCodeProviderError, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
}
