package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codediagram/backend/internal/config"
	"github.com/codediagram/backend/internal/convo"
	"github.com/codediagram/backend/internal/diagram"
	"github.com/codediagram/backend/internal/history"
	"github.com/codediagram/backend/internal/logging"
	"github.com/codediagram/backend/internal/promptlib"
	"github.com/codediagram/backend/internal/provider"
	"github.com/codediagram/backend/internal/scanner"
	"github.com/codediagram/backend/internal/server"
	"github.com/codediagram/backend/internal/shellsession"
	"github.com/codediagram/backend/internal/toolsurface"
	"github.com/codediagram/backend/pkg/types"
)

var (
	servePort     int
	serveHostname string
	serveDir      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the codediagram HTTP API",
	Long: `Start codediagram-server as a headless server that exposes an HTTP
API for scanning a codebase, chatting about it through an LLM provider, and
rendering the D2/Mermaid diagrams those conversations produce.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHostname, "hostname", "127.0.0.1", "Hostname shown in the startup log URL (the server listens on all interfaces)")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory (codebase root)")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	logging.Info().Str("version", Version).Msg("Starting codediagram server")
	logging.Info().Str("directory", workDir).Msg("Working directory")

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if model := GetGlobalModel(); model != "" {
		appConfig.DefaultModel = model
	}

	providers := buildProviders(appConfig)
	providerReg := provider.NewRegistry(providers...)

	sc := scanner.New(appConfig.IgnoreFolders)
	prompts := promptlib.NewLibrary(appConfig.PromptsDir)
	renderer := diagram.New(appConfig.D2ExecutablePath, appConfig.MermaidExecutablePath)

	convoDeps := convo.Deps{
		Scanner:   sc,
		Providers: providerReg,
		Prompts:   prompts,
		Renderer:  renderer,
		StaticDir: appConfig.StaticDir,
	}

	shellRoot := appConfig.ShellWorkspaceRoot
	if shellRoot == "" {
		shellRoot = appConfig.CodePath
	}
	shells := shellsession.NewManager(shellRoot)

	histories := history.New(appConfig.HistoryDir)

	tools := toolsurface.NewRegistry(toolsurface.Deps{
		Providers:    providerReg,
		Prompts:      prompts,
		Renderer:     renderer,
		DefaultModel: appConfig.DefaultModel,
		ProviderID:   appConfig.Provider,
	})

	if !cmd.Flags().Changed("port") {
		servePort = appConfig.Port
	}

	serverConfig := server.DefaultConfig()
	serverConfig.Port = servePort
	serverConfig.Directory = workDir

	srv := server.New(serverConfig, appConfig, convoDeps, shells, histories, tools)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logging.Info().
			Str("hostname", serveHostname).
			Int("port", servePort).
			Str("url", fmt.Sprintf("http://%s:%d", serveHostname, servePort)).
			Msg("Server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("Server error")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Server shutdown error")
	}

	logging.Info().Msg("Server stopped")
	return nil
}

// buildProviders wires every built-in provider with its catalog of models,
// leaving the API key empty (and the provider effectively disabled, per
// Provider.Ask's ConfigError path) when no key is configured for it.
func buildProviders(cfg *types.Config) []provider.Provider {
	anthropicKey, openaiKey := "", ""
	switch cfg.Provider {
	case "openai":
		openaiKey = cfg.APIKey
	default:
		anthropicKey = cfg.APIKey
	}

	return []provider.Provider{
		provider.NewAnthropicProvider(anthropicKey, anthropicModels()),
		provider.NewOpenAIProvider(openaiKey, openAIModels()),
	}
}

func anthropicModels() []types.Model {
	return []types.Model{
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ProviderID: "anthropic", ContextLength: 200000, MaxOutputTokens: 64000, SupportsTools: true},
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", ProviderID: "anthropic", ContextLength: 200000, MaxOutputTokens: 32000, SupportsTools: true},
		{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", ProviderID: "anthropic", ContextLength: 200000, MaxOutputTokens: 8192, SupportsTools: true},
	}
}

func openAIModels() []types.Model {
	return []types.Model{
		{ID: "gpt-4o", Name: "GPT-4o", ProviderID: "openai", ContextLength: 128000, MaxOutputTokens: 16384, SupportsTools: true},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", ProviderID: "openai", ContextLength: 128000, MaxOutputTokens: 16384, SupportsTools: true},
	}
}
