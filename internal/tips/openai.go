package tips

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"budgeteer/internal/core"
)

const persona = "You are a friendly, practical personal finance coach."

type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string // optional, for compatible endpoints
	Temperature float32
	MaxTokens   int
}

// OpenAIGenerator asks a chat completion model for tips.
type OpenAIGenerator struct {
	client *openai.Client
	cfg    OpenAIConfig
}

func NewOpenAIGenerator(cfg OpenAIConfig) *OpenAIGenerator {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 400
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.4
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	slog.Info("Initializing OpenAI tips generator", "model", cfg.Model)
	return &OpenAIGenerator{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, in Input) ([]core.Tip, error) {
	req := openai.ChatCompletionRequest{
		Model: g.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: persona},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(in)},
		},
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}
	slog.DebugContext(ctx, "Received tips from OpenAI",
		"finish_reason", resp.Choices[0].FinishReason,
		"total_tokens", resp.Usage.TotalTokens)

	lines := parseTips(resp.Choices[0].Message.Content)
	if len(lines) == 0 {
		return nil, ErrNoTips
	}
	out := make([]core.Tip, len(lines))
	for i, l := range lines {
		out[i] = core.Tip{Content: l, Source: SourceOpenAI}
	}
	return out, nil
}
