// Package provider implements C2: a minimal, single-shot LLM gateway over
// Anthropic and OpenAI, used by the conversation session's Ask algorithm.
// It intentionally does not reproduce the teacher's streaming,
// tool-calling chat model abstraction — the conversation contract here is
// one question in, one answer out.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/codediagram/backend/pkg/types"
)

// ConfigError signals a provider misconfiguration (e.g. missing API key)
// detected before any network call was attempted.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return fmt.Sprintf("provider config error: %s", e.Reason) }

// UpstreamError wraps a transport failure or a malformed response from the
// provider's API.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("provider %s upstream error: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Provider is the C2 LLM Gateway contract: a single-shot Ask plus the
// mutable API key it is configured with.
type Provider interface {
	ID() string
	Name() string
	Models() []types.Model

	// Ask sends question with history (excluding the current user turn)
	// and optional codebaseContent as the system/context preamble, using
	// model. It returns the assistant's reply text.
	Ask(ctx context.Context, question string, history []types.Message, codebaseContent, model string) (string, types.TokenUsage, error)

	SetApiKey(key string)
}

// ErrEmptyModel is returned when Ask is called with no model selected.
var ErrEmptyModel = errors.New("provider: no model specified")

// errNoTextContent marks a provider response that contained no text block
// at all, treated as a malformed-response UpstreamError.
var errNoTextContent = errors.New("provider: response contained no text content")
