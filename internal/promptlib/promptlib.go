// Package promptlib loads and selects the reusable agent prompt texts used
// to steer model behaviour for a given task (spec.md glossary: "Agent
// prompt"). Prompts are looked up by name; a fixed set of built-ins ship
// with the binary and can be overridden by text files under PromptsDir.
package promptlib

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/codediagram/backend/internal/logging"
)

// Well-known prompt names.
const (
	FormattingDefault = "default-formatting"
	MermaidArchitect  = "mermaid-architecture"
	D2Architect       = "d2-architecture"
	C4Architect       = "c4-architecture"
)

// Library is a name -> prompt-text registry.
type Library struct {
	mu      sync.RWMutex
	prompts map[string]string
}

// NewLibrary creates a Library seeded with the built-in prompts, then
// overlays any same-named `.txt` files found under dir (dir may be empty).
func NewLibrary(dir string) *Library {
	l := &Library{prompts: builtins()}
	if dir != "" {
		l.loadDir(dir)
	}
	return l
}

// Get returns the prompt text registered under name.
func (l *Library) Get(name string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.prompts[name]
	return p, ok
}

// Register adds or overwrites a prompt.
func (l *Library) Register(name, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompts[name] = text
}

// SelectForQuestion chooses the agent prompt for a user question: the
// architecture prompt for the named diagram kind when the question also
// mentions an authoring verb, otherwise the default formatting prompt, per
// spec.md §4.5 step 6.
func (l *Library) SelectForQuestion(question string) string {
	q := strings.ToLower(question)

	mentionsVerb := false
	for _, verb := range []string{"diagram", "generate", "create"} {
		if strings.Contains(q, verb) {
			mentionsVerb = true
			break
		}
	}

	if mentionsVerb {
		if strings.Contains(q, "mermaid") {
			if p, ok := l.Get(MermaidArchitect); ok {
				return p
			}
		}
		if strings.Contains(q, "d2") {
			if p, ok := l.Get(D2Architect); ok {
				return p
			}
		}
	}

	p, _ := l.Get(FormattingDefault)
	return p
}

// ForDiagramKind returns the architecture prompt for a specific diagram
// kind, used directly by the C9 generate_diagram tool.
func (l *Library) ForDiagramKind(kind string) string {
	switch kind {
	case "mermaid":
		p, _ := l.Get(MermaidArchitect)
		return p
	case "d2":
		p, _ := l.Get(D2Architect)
		return p
	case "c4":
		p, _ := l.Get(C4Architect)
		return p
	default:
		p, _ := l.Get(FormattingDefault)
		return p
	}
}

func (l *Library) loadDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn().Str("dir", dir).Err(err).Msg("failed to read prompts directory")
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".txt")
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		l.Register(name, string(data))
	}
}

func builtins() map[string]string {
	return map[string]string{
		FormattingDefault: "Respond in Markdown only. Do not use raw HTML tags. " +
			"Use fenced code blocks for any source code or diagram definitions.",
		MermaidArchitect: "You are an expert at writing Mermaid diagrams. When asked to " +
			"create or generate a diagram, respond with a single fenced ```mermaid code " +
			"block containing valid Mermaid syntax. Prefer flowchart or sequence diagrams " +
			"unless the user specifies another type. Keep node ids short and quote labels " +
			"that contain spaces or punctuation.",
		D2Architect: "You are an expert at writing D2 diagrams. When asked to create or " +
			"generate a diagram, respond with a single fenced ```d2 code block containing " +
			"valid D2 syntax. Databases -> shape: cylinder. Always close quotes on labels. " +
			"Prefer simple, complete diagrams over elaborate ones.",
		C4Architect: "You are an expert at writing C4 model diagrams using the " +
			"Person/System/Container/Component/Rel/Boundary notation. Respond with a " +
			"single fenced ```c4 code block. Always give every element a short id, a " +
			"quoted label, and close every boundary block you open.",
	}
}
