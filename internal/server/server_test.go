package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/codediagram/backend/internal/convo"
	"github.com/codediagram/backend/internal/diagram"
	"github.com/codediagram/backend/internal/promptlib"
	"github.com/codediagram/backend/internal/provider"
	"github.com/codediagram/backend/internal/scanner"
	"github.com/codediagram/backend/internal/shellsession"
	"github.com/codediagram/backend/internal/toolsurface"
	"github.com/codediagram/backend/pkg/types"
)

type stubProvider struct {
	id    string
	reply string
	usage types.TokenUsage
	err   error
}

func (p *stubProvider) ID() string            { return p.id }
func (p *stubProvider) Name() string          { return p.id }
func (p *stubProvider) Models() []types.Model { return nil }
func (p *stubProvider) SetApiKey(string)      {}

func (p *stubProvider) Ask(_ context.Context, _ string, _ []types.Message, _, _ string) (string, types.TokenUsage, error) {
	if p.err != nil {
		return "", types.TokenUsage{}, p.err
	}
	return p.reply, p.usage, nil
}

// setupTestServer builds a Server with every collaborator wired to an
// in-memory/tempdir-backed stub, mirroring the teacher's setupTestServer
// helper that constructs the struct directly rather than via New (so tests
// can reach unexported fields without standing up a real HTTP listener).
func setupTestServer(t *testing.T) *Server {
	t.Helper()

	stub := &stubProvider{id: "anthropic", reply: "ok response"}
	providers := provider.NewRegistry(stub)
	prompts := promptlib.NewLibrary("")
	sc := scanner.New(nil)
	renderer := diagram.New("", "")

	convoDeps := convo.Deps{
		Scanner:   sc,
		Providers: providers,
		Prompts:   prompts,
		Renderer:  renderer,
		StaticDir: t.TempDir(),
	}

	toolDeps := toolsurface.Deps{
		Providers:    providers,
		Prompts:      prompts,
		Renderer:     renderer,
		DefaultModel: "m",
		ProviderID:   "anthropic",
	}

	return &Server{
		config:    DefaultConfig(),
		appConfig: &types.Config{StaticDir: t.TempDir(), Provider: "anthropic", DefaultModel: "m", APIKey: "k", AvailableModels: []string{"m"}},
		scanner:   sc,
		renderer:  renderer,
		convos:    convo.NewRegistry(convoDeps),
		shells:    shellsession.NewManager(t.TempDir()),
		histories: nil,
		tools:     toolsurface.NewRegistry(toolDeps),
		upgrader:  newWebsocketUpgrader(),
	}
}

// withURLParam attaches a chi route param to a request's context, the same
// way the teacher's handler tests drive handlers directly without a router.
func withURLParam(ctx context.Context, key, value string) context.Context {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return context.WithValue(ctx, chi.RouteCtxKey, rctx)
}

func decodeJSON(w *httptest.ResponseRecorder, v any) error {
	return json.Unmarshal(w.Body.Bytes(), v)
}
