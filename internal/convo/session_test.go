package convo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codediagram/backend/internal/promptlib"
	"github.com/codediagram/backend/internal/provider"
	"github.com/codediagram/backend/internal/scanner"
	"github.com/codediagram/backend/pkg/types"
)

type stubProvider struct {
	id          string
	reply       string
	usage       types.TokenUsage
	err         error
	lastHistory []types.Message
	lastContext string
}

func (p *stubProvider) ID() string            { return p.id }
func (p *stubProvider) Name() string          { return p.id }
func (p *stubProvider) Models() []types.Model { return nil }
func (p *stubProvider) SetApiKey(string)      {}

func (p *stubProvider) Ask(_ context.Context, _ string, history []types.Message, codebaseContent, _ string) (string, types.TokenUsage, error) {
	p.lastHistory = history
	p.lastContext = codebaseContent
	if p.err != nil {
		return "", types.TokenUsage{}, p.err
	}
	return p.reply, p.usage, nil
}

func newTestSession(t *testing.T, stub *stubProvider) *Session {
	t.Helper()
	deps := Deps{
		Scanner:   scanner.New(nil),
		Providers: provider.NewRegistry(stub),
		Prompts:   promptlib.NewLibrary(""),
	}
	reg := NewRegistry(deps)
	return reg.Create("k", stub.id, []string{"m"}, "m", "")
}

func TestAsk_FirstTurnInjectsContextAndSingleSystemMessage(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.py")
	require.NoError(t, os.WriteFile(file, []byte("print('hi')"), 0644))

	stub := &stubProvider{id: "anthropic", reply: "Here is an explanation."}
	s := newTestSession(t, stub)

	s.UpdateFiles([]string{file}, true)

	result, err := s.Ask(context.Background(), "Explain this")
	require.NoError(t, err)
	require.Equal(t, "Here is an explanation.", result.ResponseMarkdown)

	snap := s.Summary()
	require.Len(t, snap.History, 3)
	require.Equal(t, types.RoleSystem, snap.History[0].Role)
	require.Contains(t, snap.History[0].Content, "print('hi')")
	require.Equal(t, types.RoleUser, snap.History[1].Role)
	require.Equal(t, types.RoleAssistant, snap.History[2].Role)
	require.Equal(t, []string{file}, snap.PersistentFiles)
}

func TestAsk_SecondTurnUpdatesSystemMessageWithoutDuplicating(t *testing.T) {
	dir := t.TempDir()
	fileA := filepath.Join(dir, "a.py")
	fileB := filepath.Join(dir, "b.py")
	require.NoError(t, os.WriteFile(fileA, []byte("a-content"), 0644))
	require.NoError(t, os.WriteFile(fileB, []byte("b-content"), 0644))

	stub := &stubProvider{id: "anthropic", reply: "ok"}
	s := newTestSession(t, stub)

	s.UpdateFiles([]string{fileA}, true)
	_, err := s.Ask(context.Background(), "Explain this")
	require.NoError(t, err)

	s.UpdateFiles([]string{fileA, fileB}, true)
	_, err = s.Ask(context.Background(), "Now consider b.py")
	require.NoError(t, err)

	snap := s.Summary()
	require.Len(t, snap.History, 5)
	require.Equal(t, types.RoleSystem, snap.History[0].Role)
	require.Contains(t, snap.History[0].Content, "b-content")

	systemCount := 0
	for _, m := range snap.History {
		if m.Role == types.RoleSystem {
			systemCount++
		}
	}
	require.Equal(t, 1, systemCount)
}

func TestAsk_EmptyQuestionReturnsValidationError(t *testing.T) {
	s := newTestSession(t, &stubProvider{id: "anthropic"})
	_, err := s.Ask(context.Background(), "   ")
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestAsk_EmptyAPIKeyReturnsConfigError(t *testing.T) {
	deps := Deps{
		Scanner:   scanner.New(nil),
		Providers: provider.NewRegistry(&stubProvider{id: "anthropic"}),
		Prompts:   promptlib.NewLibrary(""),
	}
	reg := NewRegistry(deps)
	s := reg.Create("", "anthropic", []string{"m"}, "m", "")

	_, err := s.Ask(context.Background(), "hello")
	require.Error(t, err)
	var cerr *provider.ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestAsk_ProviderFailureMarksQuestionFailed(t *testing.T) {
	stub := &stubProvider{id: "anthropic", err: &provider.UpstreamError{Provider: "anthropic", Err: context.DeadlineExceeded}}
	s := newTestSession(t, stub)

	_, err := s.Ask(context.Background(), "hello")
	require.Error(t, err)

	snap := s.Summary()
	require.Len(t, snap.QuestionLog, 1)
	require.Equal(t, types.QuestionFailed, snap.QuestionLog[0].Status)
}

func TestUpdateFiles_IsIdempotent(t *testing.T) {
	s := newTestSession(t, &stubProvider{id: "anthropic"})
	s.UpdateFiles([]string{"a.py", "b.py"}, true)
	first := s.Summary()
	s.UpdateFiles([]string{"a.py", "b.py"}, true)
	second := s.Summary()

	require.Equal(t, first.SelectedFiles, second.SelectedFiles)
	require.Equal(t, first.PersistentFiles, second.PersistentFiles)
}
