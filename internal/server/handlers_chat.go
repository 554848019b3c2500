package server

import (
	"encoding/json"
	"net/http"

	"github.com/codediagram/backend/internal/convo"
	"github.com/codediagram/backend/pkg/types"
)

type chatSettings struct {
	APIKey   string `json:"apiKey"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type chatRequest struct {
	Message        string       `json:"message"`
	ConversationID string       `json:"conversationId"`
	Settings       chatSettings `json:"settings"`
	ContextFiles   []string     `json:"contextFiles"`
}

type chatResponseMessage struct {
	Role    types.Role `json:"role"`
	Content string     `json:"content"`
}

type chatResponseData struct {
	Message        chatResponseMessage `json:"message"`
	ConversationID string               `json:"conversationId"`
	Usage          types.TokenUsage     `json:"usage"`
}

type chatResponse struct {
	Success bool             `json:"success"`
	Data    chatResponseData `json:"data"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "message is required")
		return
	}

	session, err := s.resolveChatSession(req)
	if err != nil {
		writeNotFoundOrInternal(w, err)
		return
	}

	if len(req.ContextFiles) > 0 {
		session.UpdateFiles(req.ContextFiles, false)
	}

	result, err := session.Ask(r.Context(), req.Message)
	if err != nil {
		if _, ok := err.(*convo.ValidationError); ok {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
			return
		}
		writeProviderError(w, err)
		return
	}

	s.persistHistory(r.Context(), session)

	writeJSON(w, http.StatusOK, chatResponse{
		Success: true,
		Data: chatResponseData{
			Message:        chatResponseMessage{Role: types.RoleAssistant, Content: result.ResponseMarkdown},
			ConversationID: session.ID(),
			Usage:          result.Tokens,
		},
	})
}

// resolveChatSession finds the conversationId'd session, or creates one
// from settings when conversationId is absent (the implicit "first turn
// with no prior /conversations call" path).
func (s *Server) resolveChatSession(req chatRequest) (*convo.Session, error) {
	if req.ConversationID != "" {
		return s.convos.Get(req.ConversationID)
	}

	providerID := req.Settings.Provider
	model := req.Settings.Model
	apiKey := req.Settings.APIKey
	if s.appConfig != nil {
		if providerID == "" {
			providerID = s.appConfig.Provider
		}
		if model == "" {
			model = s.appConfig.DefaultModel
		}
		if apiKey == "" {
			apiKey = s.appConfig.APIKey
		}
	}

	var availableModels []string
	if s.appConfig != nil {
		availableModels = s.appConfig.AvailableModels
	}

	return s.convos.Create(apiKey, providerID, availableModels, model, ""), nil
}
