package provider

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"

	"github.com/codediagram/backend/internal/logging"
	"github.com/codediagram/backend/pkg/types"
)

const defaultAskTimeout = 90 * time.Second

// AnthropicProvider talks to the Anthropic Messages API directly.
type AnthropicProvider struct {
	mu     sync.RWMutex
	apiKey string
	client anthropic.Client
	models []types.Model
}

// NewAnthropicProvider constructs a provider for the given models; apiKey
// may be empty and set later via SetApiKey.
func NewAnthropicProvider(apiKey string, models []types.Model) *AnthropicProvider {
	p := &AnthropicProvider{models: models}
	p.setClient(apiKey)
	return p
}

func (p *AnthropicProvider) setClient(apiKey string) {
	p.apiKey = apiKey
	p.client = anthropic.NewClient(option.WithAPIKey(apiKey))
}

func (p *AnthropicProvider) ID() string   { return "anthropic" }
func (p *AnthropicProvider) Name() string { return "Anthropic" }

func (p *AnthropicProvider) Models() []types.Model {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]types.Model(nil), p.models...)
}

func (p *AnthropicProvider) SetApiKey(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setClient(key)
}

func (p *AnthropicProvider) Ask(ctx context.Context, question string, history []types.Message, codebaseContent, model string) (string, types.TokenUsage, error) {
	p.mu.RLock()
	apiKey := p.apiKey
	client := p.client
	p.mu.RUnlock()

	if apiKey == "" {
		return "", types.TokenUsage{}, &ConfigError{Reason: "anthropic API key is not set"}
	}
	if model == "" {
		return "", types.TokenUsage{}, ErrEmptyModel
	}

	messages := make([]anthropic.MessageParam, 0, len(history)+1)
	var systemPrompt string

	for _, m := range history {
		switch m.Role {
		case types.RoleSystem:
			if systemPrompt == "" {
				systemPrompt = m.Content
			} else {
				systemPrompt = systemPrompt + "\n\n" + m.Content
			}
		case types.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case types.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	if codebaseContent != "" {
		systemPrompt = strings.TrimSpace(systemPrompt + "\n\nRelevant codebase content:\n" + codebaseContent)
	}

	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(question)))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 4096,
		Messages:  messages,
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	var reply string
	var usage types.TokenUsage

	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, defaultAskTimeout)
		defer cancel()

		resp, err := client.Messages.New(callCtx, params)
		if err != nil {
			return backoff.Permanent(&UpstreamError{Provider: "anthropic", Err: err})
		}

		var sb strings.Builder
		hasText := false
		for _, block := range resp.Content {
			if block.Type == "text" {
				hasText = true
				sb.WriteString(block.Text)
			}
		}
		if !hasText {
			return backoff.Permanent(&UpstreamError{Provider: "anthropic", Err: errNoTextContent})
		}
		reply = sb.String()
		usage = types.TokenUsage{
			Input:  int(resp.Usage.InputTokens),
			Output: int(resp.Usage.OutputTokens),
			Cached: int(resp.Usage.CacheReadInputTokens),
		}
		usage.Total = usage.Input + usage.Output
		return nil
	}

	// No automatic retry is performed at this layer (spec: upstream
	// failures surface unchanged) — backoff is used solely to bound the
	// single attempt with a deadline consistent with the rest of the
	// gateway, not to retry it.
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 0)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		logging.Warn().Str("provider", "anthropic").Err(err).Msg("ask failed")
		return "", types.TokenUsage{}, err
	}

	return reply, usage, nil
}
