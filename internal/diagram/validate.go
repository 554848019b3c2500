// Package diagram implements C4 (validate/render against the external D2
// and Mermaid CLIs) and C6 (the bounded validate-correct-render repair
// loop). Subprocess shapes are grounded on the original Python
// d2_cli_validator.py / mermaid_cli_validator.py / renderer_v2.py; the C4
// entity model is grounded on c4_to_d2.py.
package diagram

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/codediagram/backend/internal/cliutil"
)

// Kind identifies a diagram language.
type Kind string

const (
	KindD2      Kind = "d2"
	KindMermaid Kind = "mermaid"
	KindC4      Kind = "c4"
)

// MaxAttempts is the per-kind repair-loop bound (spec.md §4.6).
var MaxAttempts = map[Kind]int{
	KindMermaid: 5,
	KindD2:      2,
}

const maxD2InputBytes = 500 * 1024

// ErrInputTooLarge's message is the error text ValidateD2 returns when src
// exceeds the size cap.
var ErrInputTooLarge = fmt.Errorf("diagram: input exceeds maximum size")

// Renderer wraps the located D2/Mermaid executables and exposes C4's
// Validate/Render contract.
type Renderer struct {
	d2Exe      string
	mermaidExe string
}

// New resolves the D2 and Mermaid executables. Either may be empty if that
// CLI was never located; calls needing it then report failure with a
// "not found" error text.
func New(d2ExecutableOverride, mermaidExecutableOverride string) *Renderer {
	d2Exe, _ := cliutil.Locate("d2", d2ExecutableOverride)
	mmdc, _ := cliutil.Locate("mmdc", mermaidExecutableOverride)
	return &Renderer{d2Exe: d2Exe, mermaidExe: mmdc}
}

var ansiEscape = regexp.MustCompile("\x1b(?:[@-Z\\\\-_]|\\[[0-?]*[ -/]*[@-~])")

// ValidateD2 compiles src with the D2 CLI (theme 1, output to stdout),
// purely to check syntax; it never writes an artifact file.
func (r *Renderer) ValidateD2(ctx context.Context, src string) (bool, string) {
	if len(src) > maxD2InputBytes {
		return false, ErrInputTooLarge.Error()
	}
	if r.d2Exe == "" {
		return false, "D2 executable not found"
	}

	res, err := cliutil.Run(ctx, r.d2Exe, []string{"{stdin}", "-", "-t", "1"}, src, 15*time.Second)
	if err == nil {
		return true, "D2 syntax is valid."
	}
	return false, cleanD2Error(res, err)
}

func cleanD2Error(res *cliutil.Result, err error) string {
	var raw string
	if res != nil {
		raw = strings.TrimSpace(res.Stderr)
		if raw == "" {
			raw = strings.TrimSpace(res.Stdout)
		}
	}
	if raw == "" {
		raw = err.Error()
	}
	raw = ansiEscape.ReplaceAllString(raw, "")
	return strings.TrimRight(raw, "\n\t ")
}

// RenderD2SVG compiles src to SVG using the D2 CLI.
func (r *Renderer) RenderD2SVG(ctx context.Context, src string) (bool, string, string) {
	if r.d2Exe == "" {
		return false, "", "D2 executable not found"
	}

	out, err := os.CreateTemp("", "d2-out-*.svg")
	if err != nil {
		return false, "", err.Error()
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	res, err := cliutil.Run(ctx, r.d2Exe, []string{"{stdin}", outPath}, src, 20*time.Second)
	if err != nil {
		return false, "", cleanD2Error(res, err)
	}

	svg, readErr := os.ReadFile(outPath)
	if readErr != nil {
		return false, "", readErr.Error()
	}
	return true, string(svg), ""
}

// ValidateMermaid compiles src to SVG with mmdc purely to check syntax.
func (r *Renderer) ValidateMermaid(ctx context.Context, src string) (bool, string) {
	if r.mermaidExe == "" {
		return false, "Mermaid CLI (mmdc) not found"
	}

	out, err := os.CreateTemp("", "mmdc-out-*.svg")
	if err != nil {
		return false, err.Error()
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	res, err := cliutil.Run(ctx, r.mermaidExe, []string{"-i", "{stdin}", "-o", outPath}, src, 30*time.Second)
	if err != nil {
		return false, cleanMermaidError(res, err)
	}
	return true, "Mermaid syntax is valid."
}

// RenderMermaid renders src to the requested format ("svg" or "png").
// PNG output is base64-encoded, matching the original renderer's contract.
func (r *Renderer) RenderMermaid(ctx context.Context, src, format string) (bool, string, string) {
	if r.mermaidExe == "" {
		return false, "", "Mermaid CLI (mmdc) not found"
	}

	ext := ".svg"
	if format == "png" {
		ext = ".png"
	}
	out, err := os.CreateTemp("", "mmdc-out-*"+ext)
	if err != nil {
		return false, "", err.Error()
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	res, err := cliutil.Run(ctx, r.mermaidExe, []string{"-i", "{stdin}", "-o", outPath}, src, 30*time.Second)
	if err != nil {
		return false, "", cleanMermaidError(res, err)
	}

	data, readErr := os.ReadFile(outPath)
	if readErr != nil {
		return false, "", readErr.Error()
	}
	if format == "png" {
		return true, base64.StdEncoding.EncodeToString(data), ""
	}
	return true, string(data), ""
}

func cleanMermaidError(res *cliutil.Result, err error) string {
	var raw string
	if res != nil {
		raw = strings.TrimSpace(res.Stderr)
		if raw == "" {
			raw = strings.TrimSpace(res.Stdout)
		}
	}
	if raw == "" {
		raw = err.Error()
	}
	raw = ansiEscape.ReplaceAllString(raw, "")

	lines := strings.Split(raw, "\n")
	relevant := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.Contains(line, "at Object.") || strings.Contains(line, "at Function.") {
			continue
		}
		if strings.HasPrefix(trimmed, "at ") && strings.Contains(trimmed, "(") {
			continue
		}
		relevant = append(relevant, line)
		if len(relevant) == 10 {
			break
		}
	}
	if len(relevant) == 0 {
		return raw
	}
	return strings.Join(relevant, "\n")
}
