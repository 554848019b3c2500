package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codediagram/backend/internal/convo"
	"github.com/codediagram/backend/internal/logging"
	"github.com/codediagram/backend/pkg/types"
)

// persistHistory appends the question/answer turn recorded in session's
// QuestionLog to the append-only C10 log, grounded on original_source's
// history_service.py persisting every completed turn after Ask returns.
func (s *Server) persistHistory(ctx context.Context, session *convo.Session) {
	if s.histories == nil {
		return
	}
	snap := session.Summary()
	messages := make([]types.HistoryMessage, 0, len(snap.QuestionLog)*2)
	for _, q := range snap.QuestionLog {
		if q.Status != types.QuestionCompleted {
			continue
		}
		messages = append(messages,
			types.HistoryMessage{Role: types.RoleUser, Content: q.Question},
			types.HistoryMessage{Role: types.RoleAssistant, Content: q.Response, Tokens: q.Tokens.Total, ElapsedMS: q.ElapsedMS},
		)
	}
	if _, err := s.histories.Save(ctx, session.ID(), messages, nil); err != nil {
		logging.Warn().Err(err).Str("sessionID", session.ID()).Msg("failed to persist conversation history")
	}
}

func (s *Server) getConversationHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.histories == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "no history recorded for this conversation")
		return
	}

	file, err := s.histories.Load(r.Context(), id)
	if err != nil {
		writeNotFoundOrInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (s *Server) dropConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.convos.Get(id); err != nil {
		writeNotFoundOrInternal(w, err)
		return
	}
	s.convos.Drop(id)
	writeSuccess(w)
}
