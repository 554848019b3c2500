package diagram

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/codediagram/backend/internal/logging"
)

// fencedBlockPattern matches ```<kind>\n...``` non-greedily across lines,
// per spec.md §4.6 step 1.
var fencedBlockPattern = regexp.MustCompile("(?s)```(d2|mermaid)\\s*\\n?(.*?)```")

// Block is one fenced diagram block detected in an LLM answer.
type Block struct {
	Kind   Kind
	Source string
	start  int
	end    int
}

// ExtractBlocks finds every ```d2 / ```mermaid fenced block in text.
func ExtractBlocks(text string) []Block {
	matches := fencedBlockPattern.FindAllStringSubmatchIndex(text, -1)
	blocks := make([]Block, 0, len(matches))
	for _, m := range matches {
		kind := Kind(text[m[2]:m[3]])
		source := text[m[4]:m[5]]
		blocks = append(blocks, Block{Kind: kind, Source: strings.Trim(source, "\n"), start: m[0], end: m[1]})
	}
	return blocks
}

// AskFunc issues a correction request back through the conversation's LLM
// gateway; it is supplied by the caller (C5) to avoid this package
// depending on the session/provider packages.
type AskFunc func(ctx context.Context, correctionPrompt string) (string, error)

// PersistFunc saves a rendered artifact and returns a path/URL a client can
// fetch it from (spec.md's static/<kind>_diagrams/... layout).
type PersistFunc func(kind Kind, data []byte) (savedPath string, err error)

var kindHints = map[Kind]string{
	KindD2:      `Databases -> shape: cylinder. Always close quotes on labels. Close every brace you open.`,
	KindMermaid: `Quote labels containing spaces or punctuation. Keep node ids short and alphanumeric.`,
}

// Repair runs the C6 validate-correct-render loop over every fenced
// diagram block in text and returns the text with successful blocks
// replaced by embedded SVG, and failing blocks annotated with a visible
// error report. It never recurses: each kind's attempt budget is a fixed
// counter (spec.md §9 "bounded iteration, not recursion").
func (r *Renderer) Repair(ctx context.Context, text, question string, ask AskFunc, persist PersistFunc) string {
	blocks := ExtractBlocks(text)
	if len(blocks) == 0 {
		return text
	}

	// Process in reverse text order so earlier replacements don't shift the
	// offsets of blocks not yet processed.
	for i := len(blocks) - 1; i >= 0; i-- {
		b := blocks[i]
		replacement := r.repairBlock(ctx, b, ask, persist)
		text = text[:b.start] + replacement + text[b.end:]
	}

	return text
}

func (r *Renderer) repairBlock(ctx context.Context, b Block, ask AskFunc, persist PersistFunc) string {
	current := b.Source
	maxAttempts := MaxAttempts[b.Kind]
	if maxAttempts == 0 {
		maxAttempts = 2
	}

	var lastErr string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ok, errText := r.validate(ctx, b.Kind, current)
		if ok {
			return r.renderSuccess(ctx, b.Kind, current, persist)
		}
		lastErr = errText

		if attempt == maxAttempts {
			break
		}

		correction := composeCorrectionPrompt(b.Kind, current, errText)
		response, err := ask(ctx, correction)
		if err != nil {
			logging.Warn().Str("kind", string(b.Kind)).Err(err).Msg("diagram repair: correction call failed")
			break
		}

		opening := strings.Count(response, "```"+string(b.Kind))
		closing := strings.Count(response, "```") - opening
		if opening > closing {
			logging.Warn().Str("kind", string(b.Kind)).Msg("diagram repair: response looks truncated (unbalanced fence markers)")
		}

		if extracted := ExtractBlocks(response); len(extracted) > 0 {
			current = extracted[0].Source
		} else {
			current = strings.TrimSpace(response)
		}
	}

	report := renderErrorReport(b.Kind, current, lastErr)

	// Best-effort final render even though validation never passed; a
	// partial artifact is still useful to a reader (spec.md §4.6 step 3).
	var ok bool
	var svg string
	switch b.Kind {
	case KindD2:
		ok, svg, _ = r.RenderD2SVG(ctx, current)
	case KindMermaid:
		ok, svg, _ = r.RenderMermaid(ctx, current, "svg")
	}
	if ok {
		savedPath := savedArtifactPath(b.Kind, svg)
		if persist != nil {
			if p, err := persist(b.Kind, []byte(svg)); err == nil && p != "" {
				savedPath = p
			}
		}
		report += fmt.Sprintf("\n<details><summary>Partial render</summary>\n\n%s\n\n[Download SVG](%s)\n\n</details>\n", svg, savedPath)
	}

	return report
}

func (r *Renderer) validate(ctx context.Context, kind Kind, src string) (bool, string) {
	switch kind {
	case KindD2:
		return r.ValidateD2(ctx, src)
	case KindMermaid:
		return r.ValidateMermaid(ctx, src)
	default:
		return false, fmt.Sprintf("unknown diagram kind %q", kind)
	}
}

func (r *Renderer) renderSuccess(ctx context.Context, kind Kind, src string, persist PersistFunc) string {
	var ok bool
	var svg, errText string

	switch kind {
	case KindD2:
		ok, svg, errText = r.RenderD2SVG(ctx, src)
	case KindMermaid:
		ok, svg, errText = r.RenderMermaid(ctx, src, "svg")
	}

	if !ok {
		return renderErrorReport(kind, src, errText)
	}

	savedPath := savedArtifactPath(kind, svg)
	if persist != nil {
		if p, err := persist(kind, []byte(svg)); err == nil && p != "" {
			savedPath = p
		} else if err != nil {
			logging.Warn().Str("kind", string(kind)).Err(err).Msg("diagram repair: failed to persist rendered SVG")
		}
	}
	return embedSuccess(kind, src, svg, savedPath)
}

func composeCorrectionPrompt(kind Kind, src, errText string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("The following %s diagram failed validation:\n\n", kind))
	sb.WriteString(fmt.Sprintf("```%s\n%s\n```\n\n", kind, src))
	sb.WriteString(fmt.Sprintf("Validator error:\n%s\n\n", errText))
	if hint, ok := kindHints[kind]; ok {
		sb.WriteString(fmt.Sprintf("Rules: %s\n\n", hint))
	}
	sb.WriteString("Return ONLY the corrected fenced code block. Keep it SIMPLE and COMPLETE.")
	return sb.String()
}

func embedSuccess(kind Kind, src, svg, savedPath string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\n<div class=\"diagram-success\">✅ %s diagram rendered successfully</div>\n\n", kind))
	sb.WriteString(svg)
	sb.WriteString(fmt.Sprintf("\n\n[Download SVG](%s)\n\n", savedPath))
	sb.WriteString("<details><summary>Source</summary>\n\n")
	sb.WriteString(fmt.Sprintf("```%s\n%s\n```\n", kind, src))
	sb.WriteString("</details>\n")
	return sb.String()
}

func renderErrorReport(kind Kind, src, errText string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\n<div class=\"diagram-error\">⚠️ %s diagram could not be validated after retrying</div>\n\n", kind))
	sb.WriteString(fmt.Sprintf("**Error:** %s\n\n", errText))
	if hint, ok := kindHints[kind]; ok {
		sb.WriteString(fmt.Sprintf("**Common fixes:** %s\n\n", hint))
	}
	sb.WriteString(fmt.Sprintf("```%s\n%s\n```\n", kind, src))
	return sb.String()
}

func savedArtifactPath(kind Kind, content string) string {
	hash := sha1.Sum([]byte(content))
	return fmt.Sprintf("static/%s_diagrams/%s_diagram_%s_%s.svg",
		kind, kind, time.Now().Format("20060102_150405"), hex.EncodeToString(hash[:])[:8])
}
