package types

// Config represents the process-wide application configuration, loaded from
// a global config file, an optional per-workspace config file, and finally
// environment variables (later sources win).
type Config struct {
	// Provider/model defaults used when a new conversation does not specify
	// its own.
	Provider        string   `json:"provider,omitempty"`
	DefaultModel    string   `json:"defaultModel,omitempty"`
	AvailableModels []string `json:"availableModels,omitempty"`
	APIKey          string   `json:"apiKey,omitempty"`

	// CodePath is the workspace root that bounds file reads and shell
	// working directories.
	CodePath string `json:"codePath,omitempty"`

	// IgnoreFolders supplements the built-in ignore set for the file
	// scanner.
	IgnoreFolders []string `json:"ignoreFolders,omitempty"`

	// D2ExecutablePath / MermaidExecutablePath override the conventional
	// search locations for the diagram CLIs.
	D2ExecutablePath      string `json:"d2ExecutablePath,omitempty"`
	MermaidExecutablePath string `json:"mermaidExecutablePath,omitempty"`

	// PromptsDir holds the agent prompt library text files.
	PromptsDir string `json:"promptsDir,omitempty"`

	// HistoryDir / StaticDir are output directories for C10 and C4.
	HistoryDir string `json:"historyDir,omitempty"`
	StaticDir  string `json:"staticDir,omitempty"`

	// Port the HTTP server listens on.
	Port int `json:"port,omitempty"`

	// ShellWorkspaceRoot bounds C8 shell sessions; defaults to CodePath.
	ShellWorkspaceRoot string `json:"shellWorkspaceRoot,omitempty"`
}

// Model represents an LLM model available from a provider.
type Model struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ProviderID      string `json:"providerID"`
	ContextLength   int    `json:"contextLength,omitempty"`
	MaxOutputTokens int    `json:"maxOutputTokens,omitempty"`
	SupportsTools   bool   `json:"supportsTools,omitempty"`
}
