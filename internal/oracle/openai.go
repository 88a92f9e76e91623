package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 10 * time.Second

	classifySystemPrompt = "You are a merchandising assistant for an aftermarket UTV parts store. " +
		"Given a visitor profile, answer with exactly one customer segment name from the list provided, and nothing else."
	rankSystemPrompt = "You are a merchandising assistant for an aftermarket UTV parts store. " +
		"Answer with a JSON array of product id strings in recommended order, and nothing else."
)

// OpenAIConfig configures the chat-completion backed oracle.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OpenAIOracle implements RankingOracle on the OpenAI chat completions API.
type OpenAIOracle struct {
	client  openai.Client
	model   shared.ChatModel
	timeout time.Duration
}

// NewOpenAIOracle constructs the oracle. An empty API key is an error; absence
// of the oracle is modelled by not constructing one at all.
func NewOpenAIOracle(cfg OpenAIConfig) (*OpenAIOracle, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai oracle: api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}

	model := shared.ChatModel(strings.TrimSpace(cfg.Model))
	if model == "" {
		model = shared.ChatModel(defaultModel)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &OpenAIOracle{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: timeout,
	}, nil
}

// ClassifySegment asks for a single segment name.
func (o *OpenAIOracle) ClassifySegment(ctx context.Context, profile string) (string, error) {
	content, err := o.complete(ctx, classifySystemPrompt, profile)
	if err != nil {
		return "", err
	}
	name := firstLine(content)
	if name == "" {
		return "", ErrEmptyResponse
	}
	return name, nil
}

// RankProducts asks for an ordered JSON array of product ids.
func (o *OpenAIOracle) RankProducts(ctx context.Context, prompt string) ([]string, error) {
	content, err := o.complete(ctx, rankSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	ids, err := parseRankedIDs(content)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (o *OpenAIOracle) complete(ctx context.Context, system, user string) (string, error) {
	if o == nil {
		return "", errors.New("openai oracle: not initialised")
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:       o.model,
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("openai oracle: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return completion.Choices[0].Message.Content, nil
}

func firstLine(content string) string {
	content = strings.TrimSpace(content)
	if idx := strings.IndexAny(content, "\r\n"); idx >= 0 {
		content = content[:idx]
	}
	return strings.Trim(strings.TrimSpace(content), `"`)
}

// parseRankedIDs accepts a bare JSON array, tolerating surrounding prose or
// code fences, and rejects anything that does not yield at least one id.
func parseRankedIDs(content string) ([]string, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, ErrEmptyResponse
	}

	var raw []string
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("oracle: unparseable ranking: %w", err)
	}

	ids := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, ErrEmptyResponse
	}
	return ids, nil
}
