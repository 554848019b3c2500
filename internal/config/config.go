package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"

	"github.com/codediagram/backend/internal/logging"
	"github.com/codediagram/backend/pkg/types"
)

// Load loads configuration from multiple sources (priority order):
//  1. Global config (~/.config/codediagram/config.json[c])
//  2. Project config (<directory>/.codediagram/config.json[c])
//  3. .env file in the working directory (if present)
//  4. Environment variables
func Load(directory string) (*types.Config, error) {
	cfg := &types.Config{}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logging.Warn().Err(err).Msg("failed to load .env file")
	}

	globalPath := GlobalConfigPath()
	loadConfigFile(globalPath, cfg)
	loadConfigFile(globalPath+"c", cfg)

	if directory != "" {
		loadConfigFile(ProjectConfigPath(directory), cfg)
		loadConfigFile(ProjectConfigPath(directory)+"c", cfg)
	}

	applyEnvOverrides(cfg)

	if cfg.CodePath == "" {
		cfg.CodePath = directory
	}
	if cfg.ShellWorkspaceRoot == "" {
		cfg.ShellWorkspaceRoot = cfg.CodePath
	}
	if cfg.HistoryDir == "" {
		cfg.HistoryDir = GetPaths().HistoryPath()
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = GetPaths().StaticPath()
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}

	return cfg, nil
}

// loadConfigFile loads a single JSON or JSONC config file, merging it into
// cfg. Missing files are silently skipped.
func loadConfigFile(path string, cfg *types.Config) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	data = jsonc.ToJSON(data)

	var fileConfig types.Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		logging.Warn().Str("path", path).Err(err).Msg("failed to parse config file")
		return
	}

	mergeConfig(cfg, &fileConfig)
}

// mergeConfig merges non-zero fields of source into target.
func mergeConfig(target, source *types.Config) {
	if source.Provider != "" {
		target.Provider = source.Provider
	}
	if source.DefaultModel != "" {
		target.DefaultModel = source.DefaultModel
	}
	if len(source.AvailableModels) > 0 {
		target.AvailableModels = source.AvailableModels
	}
	if source.APIKey != "" {
		target.APIKey = source.APIKey
	}
	if source.CodePath != "" {
		target.CodePath = source.CodePath
	}
	if len(source.IgnoreFolders) > 0 {
		target.IgnoreFolders = source.IgnoreFolders
	}
	if source.D2ExecutablePath != "" {
		target.D2ExecutablePath = source.D2ExecutablePath
	}
	if source.MermaidExecutablePath != "" {
		target.MermaidExecutablePath = source.MermaidExecutablePath
	}
	if source.PromptsDir != "" {
		target.PromptsDir = source.PromptsDir
	}
	if source.HistoryDir != "" {
		target.HistoryDir = source.HistoryDir
	}
	if source.StaticDir != "" {
		target.StaticDir = source.StaticDir
	}
	if source.Port != 0 {
		target.Port = source.Port
	}
	if source.ShellWorkspaceRoot != "" {
		target.ShellWorkspaceRoot = source.ShellWorkspaceRoot
	}
}

// applyEnvOverrides applies environment variable overrides, per spec.md §6.
func applyEnvOverrides(cfg *types.Config) {
	if v := os.Getenv("API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("DEFAULT_MODEL"); v != "" {
		cfg.DefaultModel = v
	}
	if v := os.Getenv("MODELS"); v != "" {
		cfg.AvailableModels = splitCSV(v)
	}
	if v := os.Getenv("CODE_PATH"); v != "" {
		cfg.CodePath = v
	}
	if v := os.Getenv("D2_EXECUTABLE_PATH"); v != "" {
		cfg.D2ExecutablePath = v
	}
	if v := os.Getenv("MERMAID_EXECUTABLE_PATH"); v != "" {
		cfg.MermaidExecutablePath = v
	}
	if v := os.Getenv("IGNORE_FOLDERS"); v != "" {
		cfg.IgnoreFolders = splitCSV(v)
	}
	if v := os.Getenv("PROMPTS_DIR"); v != "" {
		cfg.PromptsDir = v
	}
	if v := os.Getenv("HISTORY_DIR"); v != "" {
		cfg.HistoryDir = v
	}
	if v := os.Getenv("STATIC_DIR"); v != "" {
		cfg.StaticDir = v
	}
	if v := os.Getenv("SHELL_WORKSPACE_ROOT"); v != "" {
		cfg.ShellWorkspaceRoot = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Save writes cfg to path as indented JSON.
func Save(cfg *types.Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
