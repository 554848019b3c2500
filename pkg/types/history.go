package types

// HistoryMessage is a Message snapshot enriched with per-turn metadata for
// the append-only history file.
type HistoryMessage struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Tokens    int    `json:"tokens,omitempty"`
	ElapsedMS int64  `json:"elapsedMs,omitempty"`
}

// HistoryFile is the on-disk shape of one conversation's append-only log.
type HistoryFile struct {
	GUID         string           `json:"guid"`
	SessionID    string           `json:"sessionID"`
	CreatedAt    string           `json:"createdAt"`
	LastUpdated  string           `json:"lastUpdated"`
	MessageCount int              `json:"messageCount"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
	Messages     []HistoryMessage `json:"messages"`
}

// HistorySummary is the listing shape returned by C10.List.
type HistorySummary struct {
	GUID         string `json:"guid"`
	SessionID    string `json:"sessionID"`
	CreatedAt    string `json:"createdAt"`
	LastUpdated  string `json:"lastUpdated"`
	MessageCount int    `json:"messageCount"`
}
