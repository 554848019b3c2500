// Package toolsurface implements C9: a fixed set of named tools
// (generate_diagram, render_diagram, generate_and_render) exposed over both
// a REST shape and a JSON-RPC 2.0 shape, grounded on the teacher's
// internal/tool/registry.go (map registry with RWMutex) generalized from an
// open-ended agent tool set to these three fixed diagram tools.
package toolsurface

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/codediagram/backend/internal/diagram"
	"github.com/codediagram/backend/internal/promptlib"
	"github.com/codediagram/backend/internal/provider"
	"github.com/codediagram/backend/pkg/types"
)

// Tool is one named, schema-described tool.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Call(ctx context.Context, args json.RawMessage) (any, error)
}

// Registry is the fixed map of the three named tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// Deps are the collaborators the three tools need.
type Deps struct {
	Providers    *provider.Registry
	Prompts      *promptlib.Library
	Renderer     *diagram.Renderer
	DefaultModel string
	ProviderID   string
}

// NewRegistry builds the registry with generate_diagram, render_diagram,
// and generate_and_render registered.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	r.Register(&generateDiagramTool{deps: deps})
	r.Register(&renderDiagramTool{deps: deps})
	r.Register(&generateAndRenderTool{deps: deps})
	return r
}

// Register adds or replaces a tool under its own name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool, sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Call invokes a tool by name against raw JSON arguments. ok reports
// whether name refers to a registered tool at all, distinct from a tool
// call returning an application-level error.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (result any, callErr error, ok bool) {
	t, found := r.Get(name)
	if !found {
		return nil, nil, false
	}
	result, callErr = t.Call(ctx, args)
	return result, callErr, true
}

// GenerateDiagramResult is generate_diagram's return shape.
type GenerateDiagramResult struct {
	DiagramCode    string `json:"diagram_code"`
	DiagramType    string `json:"diagram_type"`
	Prompt         string `json:"prompt"`
	AIGenerated    bool   `json:"ai_generated"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// RenderDiagramResult is render_diagram's return shape.
type RenderDiagramResult struct {
	ImageData    string `json:"image_data"`
	OutputFormat string `json:"output_format"`
	DiagramType  string `json:"diagram_type"`
}

// GenerateAndRenderResult combines both.
type GenerateAndRenderResult struct {
	GenerateDiagramResult
	RenderDiagramResult
}

var placeholderDiagrams = map[string]string{
	"mermaid": "graph TD\n    A[Diagram generation failed] --> B[Placeholder]",
	"d2":      "placeholder: {\n  label: \"Diagram generation failed\"\n}",
	"c4":      "Person(user, \"User\")\nSystem(system, \"Placeholder system\")\nRel(user, system, \"uses\")",
}

func placeholderFor(kind string) string {
	if p, ok := placeholderDiagrams[kind]; ok {
		return p
	}
	return placeholderDiagrams["mermaid"]
}

type generateDiagramArgs struct {
	Prompt      string `json:"prompt"`
	DiagramType string `json:"diagram_type"`
}

type generateDiagramTool struct{ deps Deps }

func (t *generateDiagramTool) Name() string { return "generate_diagram" }

func (t *generateDiagramTool) Description() string {
	return "Generates diagram source code (mermaid, d2, or c4) for a natural-language prompt."
}

func (t *generateDiagramTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"prompt": {"type": "string"},
			"diagram_type": {"type": "string", "enum": ["mermaid", "d2", "c4"]}
		},
		"required": ["prompt", "diagram_type"]
	}`)
}

func (t *generateDiagramTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args generateDiagramArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("toolsurface: invalid arguments: %w", err)
	}
	return generate(ctx, t.deps, args.Prompt, args.DiagramType), nil
}

// generate never returns an error: any internal failure becomes a
// placeholder result with ai_generated=false, per spec.md §4.9.
func generate(ctx context.Context, deps Deps, prompt, diagramType string) GenerateDiagramResult {
	result := GenerateDiagramResult{DiagramType: diagramType, Prompt: prompt}

	p, ok := deps.Providers.Get(deps.ProviderID)
	if !ok {
		result.DiagramCode = placeholderFor(diagramType)
		result.FallbackReason = provider.ErrUnknownProvider(deps.ProviderID).Error()
		return result
	}

	agentPrompt := deps.Prompts.ForDiagramKind(diagramType)
	history := []types.Message{{Role: types.RoleSystem, Content: agentPrompt}}
	answer, _, err := p.Ask(ctx, prompt, history, "", deps.DefaultModel)
	if err != nil {
		result.DiagramCode = placeholderFor(diagramType)
		result.FallbackReason = err.Error()
		return result
	}

	code := firstFencedBlock(answer)
	if code == "" {
		result.DiagramCode = placeholderFor(diagramType)
		result.FallbackReason = "model response contained no fenced code block"
		return result
	}

	result.DiagramCode = code
	result.AIGenerated = true
	return result
}

// firstFencedBlock extracts the contents of the first ``` fenced block in
// text, stripping an optional language tag on the opening fence.
func firstFencedBlock(text string) string {
	const fence = "```"
	start := strings.Index(text, fence)
	if start == -1 {
		return ""
	}
	rest := text[start+len(fence):]
	end := strings.Index(rest, fence)
	if end == -1 {
		return ""
	}
	block := rest[:end]
	if nl := strings.IndexByte(block, '\n'); nl != -1 {
		tag := strings.TrimSpace(block[:nl])
		if tag != "" && !strings.ContainsAny(tag, " \t{}") {
			block = block[nl+1:]
		}
	}
	return strings.TrimSpace(block)
}

type renderDiagramArgs struct {
	Code         string `json:"code"`
	DiagramType  string `json:"diagram_type"`
	OutputFormat string `json:"output_format"`
}

type renderDiagramTool struct{ deps Deps }

func (t *renderDiagramTool) Name() string { return "render_diagram" }

func (t *renderDiagramTool) Description() string {
	return "Renders diagram source code (mermaid, d2, or c4) to an image."
}

func (t *renderDiagramTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"code": {"type": "string"},
			"diagram_type": {"type": "string", "enum": ["mermaid", "d2", "c4"]},
			"output_format": {"type": "string", "enum": ["svg", "png"], "default": "svg"}
		},
		"required": ["code", "diagram_type"]
	}`)
}

func (t *renderDiagramTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args renderDiagramArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("toolsurface: invalid arguments: %w", err)
	}
	if args.OutputFormat == "" {
		args.OutputFormat = "svg"
	}
	return render(ctx, t.deps, args.Code, args.DiagramType, args.OutputFormat)
}

func render(ctx context.Context, deps Deps, code, diagramType, outputFormat string) (RenderDiagramResult, error) {
	if deps.Renderer == nil {
		return RenderDiagramResult{}, fmt.Errorf("toolsurface: no renderer configured")
	}

	source := code
	kind := diagramType
	if diagramType == "c4" {
		source = diagram.ConvertC4ToD2(code)
		kind = "d2"
	}

	if kind == string(diagram.KindD2) && outputFormat == "png" {
		return RenderDiagramResult{}, fmt.Errorf("toolsurface: d2 rendering only supports svg output")
	}

	var ok bool
	var data string
	var errText string
	switch diagram.Kind(kind) {
	case diagram.KindD2:
		ok, data, errText = deps.Renderer.RenderD2SVG(ctx, source)
	case diagram.KindMermaid:
		ok, data, errText = deps.Renderer.RenderMermaid(ctx, source, outputFormat)
	default:
		return RenderDiagramResult{}, fmt.Errorf("toolsurface: unsupported diagram_type %q", diagramType)
	}

	if !ok {
		return RenderDiagramResult{}, fmt.Errorf("toolsurface: render failed: %s", errText)
	}

	return RenderDiagramResult{ImageData: data, OutputFormat: outputFormat, DiagramType: diagramType}, nil
}

type generateAndRenderArgs struct {
	Prompt       string `json:"prompt"`
	DiagramType  string `json:"diagram_type"`
	OutputFormat string `json:"output_format"`
}

type generateAndRenderTool struct{ deps Deps }

func (t *generateAndRenderTool) Name() string { return "generate_and_render" }

func (t *generateAndRenderTool) Description() string {
	return "Generates diagram source code for a prompt and renders it in one call."
}

func (t *generateAndRenderTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"prompt": {"type": "string"},
			"diagram_type": {"type": "string", "enum": ["mermaid", "d2", "c4"]},
			"output_format": {"type": "string", "enum": ["svg", "png"], "default": "svg"}
		},
		"required": ["prompt", "diagram_type"]
	}`)
}

func (t *generateAndRenderTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args generateAndRenderArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("toolsurface: invalid arguments: %w", err)
	}
	if args.OutputFormat == "" {
		args.OutputFormat = "svg"
	}

	gen := generate(ctx, t.deps, args.Prompt, args.DiagramType)

	combined := GenerateAndRenderResult{GenerateDiagramResult: gen}
	rendered, err := render(ctx, t.deps, gen.DiagramCode, args.DiagramType, args.OutputFormat)
	if err != nil {
		return nil, err
	}
	combined.RenderDiagramResult = rendered
	return combined, nil
}
