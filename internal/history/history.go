// Package history implements C10: the append-only per-conversation log.
//
// Each conversation is assigned a GUID on its first Save and a start
// timestamp; the on-disk filename is "<YYYYMMDD-HHMMSS>_<guid>.json" under
// the configured history directory. Lookup by session id is a linear scan
// over that directory — the filename itself is keyed by guid, not session
// id, so there is no separate index to keep consistent.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/codediagram/backend/internal/storage"
	"github.com/codediagram/backend/pkg/types"
)

// Store persists HistoryFile snapshots under a directory, one file per
// conversation.
type Store struct {
	storage *storage.Storage
}

// New creates a Store rooted at dir.
func New(dir string) *Store {
	return &Store{storage: storage.New(dir)}
}

// Save writes the full message snapshot for sessionID, preserving the
// existing GUID and CreatedAt if a file already exists for this session.
func (s *Store) Save(ctx context.Context, sessionID string, messages []types.HistoryMessage, metadata map[string]any) (*types.HistoryFile, error) {
	existing, filename, err := s.find(ctx, sessionID)
	now := time.Now().UTC()

	var file types.HistoryFile
	switch {
	case err == nil:
		file = *existing
	case errors.Is(err, storage.ErrNotFound):
		file = types.HistoryFile{
			GUID:      uuid.New().String(),
			SessionID: sessionID,
			CreatedAt: now.Format(time.RFC3339),
		}
		filename = now.Format("20060102-150405") + "_" + file.GUID
	default:
		return nil, fmt.Errorf("history: save: %w", err)
	}

	file.SessionID = sessionID
	file.LastUpdated = now.Format(time.RFC3339)
	file.Messages = messages
	file.MessageCount = len(messages)
	if metadata != nil {
		file.Metadata = metadata
	}

	if err := s.storage.Put(ctx, []string{filename}, &file); err != nil {
		return nil, fmt.Errorf("history: save: %w", err)
	}
	return &file, nil
}

// Load returns the HistoryFile for sessionID, or storage.ErrNotFound.
func (s *Store) Load(ctx context.Context, sessionID string) (*types.HistoryFile, error) {
	f, _, err := s.find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes the history file for sessionID, if any. Deleting a
// nonexistent session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	_, filename, err := s.find(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.storage.Delete(ctx, []string{filename})
}

// List returns a summary of every stored conversation, sorted by
// LastUpdated descending.
func (s *Store) List(ctx context.Context) ([]types.HistorySummary, error) {
	var out []types.HistorySummary
	err := s.storage.Scan(ctx, nil, func(key string, data json.RawMessage) error {
		var f types.HistoryFile
		if jsonErr := json.Unmarshal(data, &f); jsonErr != nil {
			return nil
		}
		out = append(out, types.HistorySummary{
			GUID:         f.GUID,
			SessionID:    f.SessionID,
			CreatedAt:    f.CreatedAt,
			LastUpdated:  f.LastUpdated,
			MessageCount: f.MessageCount,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdated > out[j].LastUpdated })
	return out, nil
}

// find locates the stored file for sessionID, returning its parsed content
// and the filename (without extension) it is stored under.
func (s *Store) find(ctx context.Context, sessionID string) (*types.HistoryFile, string, error) {
	var found *types.HistoryFile
	var foundName string

	err := s.storage.Scan(ctx, nil, func(key string, data json.RawMessage) error {
		if found != nil {
			return nil
		}
		var f types.HistoryFile
		if jsonErr := json.Unmarshal(data, &f); jsonErr != nil {
			return nil
		}
		if f.SessionID == sessionID {
			found = &f
			foundName = key
		}
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("history: find: %w", err)
	}
	if found == nil {
		return nil, "", storage.ErrNotFound
	}
	return found, foundName, nil
}
