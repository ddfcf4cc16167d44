package executor

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"

	"aicoder/pkg/config"
)

// planClient abstracts the one LLM interaction the planner needs: a single
// user prompt in, completion text out.
type planClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// newPlanClient builds the backend selected by the configuration. A missing
// API key yields a nil client; the planner then falls back to default plans.
func newPlanClient(cfg config.LLMConfig) (planClient, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	switch cfg.Provider {
	case config.ProviderAnthropic:
		opts := []anthropicopt.RequestOption{anthropicopt.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropicopt.WithBaseURL(cfg.BaseURL))
		}
		return &claudeClient{
			client: anthropic.NewClient(opts...),
			model:  anthropic.Model(cfg.Model),
		}, nil
	case config.ProviderOpenAI:
		opts := []openaiopt.RequestOption{openaiopt.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, openaiopt.WithBaseURL(cfg.BaseURL))
		}
		return &openAIClient{
			client: openai.NewClient(opts...),
			model:  openai.ChatModel(cfg.Model),
		}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// claudeClient wraps the Anthropic SDK.
type claudeClient struct {
	client anthropic.Client
	model  anthropic.Model
}

func (c *claudeClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   1024,
		Temperature: anthropic.Float(0),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return "", fmt.Errorf("received empty response from Claude API")
	}

	var text string
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	return text, nil
}

// openAIClient wraps the OpenAI SDK. This also covers OpenAI-compatible
// endpoints such as self-hosted coder models behind a custom base URL.
type openAIClient struct {
	client openai.Client
	model  openai.ChatModel
}

func (c *openAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("received empty response from chat completion API")
	}
	return resp.Choices[0].Message.Content, nil
}
