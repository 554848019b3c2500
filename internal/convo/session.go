// Package convo implements C5 (Conversation Session) and C7 (Session
// Registry): the stateful, per-conversation Ask algorithm and the
// process-wide map that owns sessions.
package convo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/codediagram/backend/internal/diagram"
	"github.com/codediagram/backend/internal/promptlib"
	"github.com/codediagram/backend/internal/provider"
	"github.com/codediagram/backend/internal/scanner"
	"github.com/codediagram/backend/pkg/types"
)

// DefaultMaxContextBytes bounds the C1.Concat call used for context
// injection.
const DefaultMaxContextBytes = 120_000

// Deps are the collaborators a Session needs; shared across every Session a
// Registry creates.
type Deps struct {
	Scanner         *scanner.Scanner
	Providers       *provider.Registry
	Prompts         *promptlib.Library
	Renderer        *diagram.Renderer
	StaticDir       string
	MaxContextBytes int
	ToolCommandPatterns []string
}

// AskResult is the outcome of one Session.Ask call.
type AskResult struct {
	ResponseMarkdown string
	ResponseHTML     string
	Tokens           types.TokenUsage
	ElapsedMS        int64
	Index            int
}

// Session is C5: the mutable state of one conversation plus the Ask
// algorithm that drives it. All exported methods are safe for concurrent
// use; Ask and the mutation operations are serialised by mu so that two
// concurrent calls on the same session never interleave history writes
// (spec.md §5).
type Session struct {
	deps Deps

	mu              sync.Mutex
	id              string
	providerID      string
	model           string
	apiKey          string
	availableModels []string
	workspaceRoot   string
	selectedFiles   []string
	persistentFiles []string
	history         []types.Message
	questionLog     []types.QuestionRecord
	lastTokenUsage  types.TokenUsage
}

func newSession(id string, deps Deps) *Session {
	if deps.MaxContextBytes <= 0 {
		deps.MaxContextBytes = DefaultMaxContextBytes
	}
	if deps.ToolCommandPatterns == nil {
		deps.ToolCommandPatterns = defaultToolCommandPatterns
	}
	return &Session{id: id, deps: deps}
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string { return s.id }

// Configure mutates provider/model/api_key/available_models. If model is
// non-empty and absent from availableModels, it is appended.
func (s *Session) Configure(apiKey, providerID, model string, availableModels []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if apiKey != "" {
		s.apiKey = apiKey
	}
	if providerID != "" {
		s.providerID = providerID
	}
	if availableModels != nil {
		s.availableModels = append([]string(nil), availableModels...)
	}
	if model != "" {
		s.model = model
		if !containsString(s.availableModels, model) {
			s.availableModels = append(s.availableModels, model)
		}
	}

	if p, ok := s.deps.Providers.Get(s.providerID); ok && apiKey != "" {
		p.SetApiKey(apiKey)
	}
}

// SetWorkspace validates path, resets selected/persistent files, and
// returns an initial file scan.
func (s *Session) SetWorkspace(path string) ([]types.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("workspace path %q: %v", path, err)}
	}
	if !info.IsDir() {
		return nil, &ValidationError{Reason: fmt.Sprintf("workspace path %q is not a directory", path)}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	files, err := s.deps.Scanner.Scan(abs)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.workspaceRoot = abs
	s.selectedFiles = nil
	s.persistentFiles = nil
	s.mu.Unlock()

	return files, nil
}

// UpdateFiles replaces selected_files and, when makePersistent is set,
// copies the same set into persistent_files. Idempotent: calling it twice
// with the same selection yields identical selected/persistent files
// (spec.md §8).
func (s *Session) UpdateFiles(selected []string, makePersistent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selectedFiles = dedupeStrings(selected)
	if makePersistent {
		s.persistentFiles = append([]string(nil), s.selectedFiles...)
	} else {
		s.persistentFiles = intersect(s.persistentFiles, s.selectedFiles)
	}
}

// Clear truncates history and question_log.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.questionLog = nil
	s.lastTokenUsage = types.TokenUsage{}
}

// Summary returns a point-in-time snapshot of the session.
func (s *Session) Summary() types.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return types.SessionSnapshot{
		ID:              s.id,
		Provider:        s.providerID,
		Model:           s.model,
		AvailableModels: append([]string(nil), s.availableModels...),
		WorkspaceRoot:   s.workspaceRoot,
		SelectedFiles:   append([]string(nil), s.selectedFiles...),
		PersistentFiles: append([]string(nil), s.persistentFiles...),
		History:         append([]types.Message(nil), s.history...),
		QuestionLog:     append([]types.QuestionRecord(nil), s.questionLog...),
		LastTokenUsage:  s.lastTokenUsage,
	}
}

// Ask implements spec.md §4.5's thirteen-step algorithm.
func (s *Session) Ask(ctx context.Context, question string) (*AskResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Step 1.
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &ValidationError{Reason: "question must not be empty"}
	}
	if s.apiKey == "" {
		return nil, &provider.ConfigError{Reason: "session has no api_key configured"}
	}

	// Step 2.
	isFirst := len(s.history) == 0
	record := types.QuestionRecord{
		ID:        ulid.Make().String(),
		Question:  question,
		Status:    types.QuestionPending,
		Timestamp: time.Now().UnixMilli(),
	}
	s.questionLog = append(s.questionLog, record)
	recordIdx := len(s.questionLog) - 1

	// Step 3.
	needsContext := isFirst || looksLikeToolCommand(question, s.deps.ToolCommandPatterns)

	// Step 4.
	s.history = append(s.history, types.Message{Role: types.RoleUser, Content: question})

	// Step 5.
	if isFirst && len(s.persistentFiles) == 0 {
		s.persistentFiles = append([]string(nil), s.selectedFiles...)
	}
	context := ""
	if needsContext {
		context = s.deps.Scanner.Concat(unionStrings(s.persistentFiles, s.selectedFiles), s.deps.MaxContextBytes)
	}

	// Step 6.
	agentPrompt := s.deps.Prompts.SelectForQuestion(question)

	// Step 7: outbound history excludes the system entry and the user
	// message just appended (it is sent as `question` separately).
	outbound := make([]types.Message, 0, len(s.history))
	for _, m := range s.history[:len(s.history)-1] {
		if m.Role == types.RoleSystem {
			continue
		}
		outbound = append(outbound, m)
	}

	p, ok := s.deps.Providers.Get(s.providerID)
	if !ok {
		s.failQuestion(recordIdx, fmt.Sprintf("unknown provider %q", s.providerID))
		return nil, provider.ErrUnknownProvider(s.providerID)
	}

	// Step 8.
	start := time.Now()
	answer, usage, err := p.Ask(ctx, question, outbound, context, s.model)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		s.failQuestion(recordIdx, err.Error())
		return nil, err
	}

	// Step 9.
	if s.deps.Renderer != nil {
		answer = s.deps.Renderer.Repair(ctx, answer, question, s.makeAskFunc(ctx, outbound, s.model), s.makePersistFunc())
	}

	// Step 10.
	s.history = append(s.history, types.Message{Role: types.RoleAssistant, Content: answer})

	// Step 11: centralised invariant-preserving system message rewrite. The
	// system message always carries the current file context, even on turns
	// that did not send it to the provider.
	systemContext := context
	if !needsContext {
		systemContext = s.deps.Scanner.Concat(unionStrings(s.persistentFiles, s.selectedFiles), s.deps.MaxContextBytes)
	}
	s.reinjectSystemMessage(agentPrompt, systemContext)

	// Step 12.
	s.lastTokenUsage = usage
	s.questionLog[recordIdx].Status = types.QuestionCompleted
	s.questionLog[recordIdx].Response = answer
	s.questionLog[recordIdx].Tokens = usage
	s.questionLog[recordIdx].ElapsedMS = elapsed
	s.questionLog[recordIdx].ModelUsed = s.model

	// Step 13.
	return &AskResult{
		ResponseMarkdown: answer,
		ResponseHTML:     renderHTML(answer),
		Tokens:           usage,
		ElapsedMS:        elapsed,
		Index:            recordIdx,
	}, nil
}

func (s *Session) failQuestion(idx int, errText string) {
	s.questionLog[idx].Status = types.QuestionFailed
	s.questionLog[idx].Response = errText
}

// reinjectSystemMessage centralises the "overwrite index 0 if system, else
// insert at 0" mutation per spec.md §9, so it can only ever run once per
// Ask completion and can never duplicate the system message.
func (s *Session) reinjectSystemMessage(agentPrompt, contextText string) {
	var sb strings.Builder
	sb.WriteString("Respond in Markdown only. Do not use raw HTML tags in prose.\n\n")
	sb.WriteString(agentPrompt)
	if contextText != "" {
		sb.WriteString("\n\n")
		sb.WriteString(contextText)
	}
	sysMsg := types.Message{Role: types.RoleSystem, Content: sb.String()}

	if len(s.history) > 0 && s.history[0].Role == types.RoleSystem {
		s.history[0] = sysMsg
		return
	}
	s.history = append([]types.Message{sysMsg}, s.history...)
}

func (s *Session) makeAskFunc(ctx context.Context, outbound []types.Message, model string) diagram.AskFunc {
	return func(_ context.Context, correctionPrompt string) (string, error) {
		p, ok := s.deps.Providers.Get(s.providerID)
		if !ok {
			return "", provider.ErrUnknownProvider(s.providerID)
		}
		text, _, err := p.Ask(ctx, correctionPrompt, outbound, "", model)
		return text, err
	}
}

func (s *Session) makePersistFunc() diagram.PersistFunc {
	if s.deps.StaticDir == "" {
		return nil
	}
	return func(kind diagram.Kind, data []byte) (string, error) {
		dir := filepath.Join(s.deps.StaticDir, string(kind)+"_diagrams")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
		name := fmt.Sprintf("%s_diagram_%s_%d.svg", kind, time.Now().Format("20060102_150405"), time.Now().UnixNano()%100000000)
		full := filepath.Join(dir, name)
		if err := os.WriteFile(full, data, 0644); err != nil {
			return "", err
		}
		return filepath.Join("static", string(kind)+"_diagrams", name), nil
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func intersect(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, v := range b {
		inB[v] = true
	}
	out := make([]string, 0, len(a))
	for _, v := range a {
		if inB[v] {
			out = append(out, v)
		}
	}
	return out
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range append(append([]string(nil), a...), b...) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
