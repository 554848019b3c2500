package provider

import (
	"context"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/codediagram/backend/internal/logging"
	"github.com/codediagram/backend/pkg/types"
)

// OpenAIProvider talks to the OpenAI chat completions API directly.
type OpenAIProvider struct {
	mu     sync.RWMutex
	apiKey string
	client *openai.Client
	models []types.Model
}

// NewOpenAIProvider constructs a provider for the given models; apiKey may
// be empty and set later via SetApiKey.
func NewOpenAIProvider(apiKey string, models []types.Model) *OpenAIProvider {
	p := &OpenAIProvider{models: models}
	p.setClient(apiKey)
	return p
}

func (p *OpenAIProvider) setClient(apiKey string) {
	p.apiKey = apiKey
	p.client = openai.NewClient(apiKey)
}

func (p *OpenAIProvider) ID() string   { return "openai" }
func (p *OpenAIProvider) Name() string { return "OpenAI" }

func (p *OpenAIProvider) Models() []types.Model {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]types.Model(nil), p.models...)
}

func (p *OpenAIProvider) SetApiKey(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setClient(key)
}

func roleToOpenAI(role types.Role) string {
	switch role {
	case types.RoleSystem:
		return openai.ChatMessageRoleSystem
	case types.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

func (p *OpenAIProvider) Ask(ctx context.Context, question string, history []types.Message, codebaseContent, model string) (string, types.TokenUsage, error) {
	p.mu.RLock()
	apiKey := p.apiKey
	client := p.client
	p.mu.RUnlock()

	if apiKey == "" {
		return "", types.TokenUsage{}, &ConfigError{Reason: "openai API key is not set"}
	}
	if model == "" {
		return "", types.TokenUsage{}, ErrEmptyModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	var codeInjected bool

	for _, m := range history {
		content := m.Content
		if m.Role == types.RoleSystem && codebaseContent != "" && !codeInjected {
			content = strings.TrimSpace(content + "\n\nRelevant codebase content:\n" + codebaseContent)
			codeInjected = true
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: roleToOpenAI(m.Role), Content: content})
	}

	if codebaseContent != "" && !codeInjected {
		messages = append([]openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Relevant codebase content:\n" + codebaseContent,
		}}, messages...)
	}

	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: question})

	var reply string
	var usage types.TokenUsage

	op := func() error {
		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:     model,
			Messages:  messages,
			MaxTokens: 4096,
		})
		if err != nil {
			return backoff.Permanent(&UpstreamError{Provider: "openai", Err: err})
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(&UpstreamError{Provider: "openai", Err: errNoTextContent})
		}

		reply = resp.Choices[0].Message.Content
		usage = types.TokenUsage{
			Input:  resp.Usage.PromptTokens,
			Output: resp.Usage.CompletionTokens,
			Total:  resp.Usage.TotalTokens,
		}
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 0)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		logging.Warn().Str("provider", "openai").Err(err).Msg("ask failed")
		return "", types.TokenUsage{}, err
	}

	return reply, usage, nil
}
