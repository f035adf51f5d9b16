package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicConfig struct {
	APIKey   string
	BaseURL  string // override for compatible proxies
	Model    string
	Sampling Sampling
}

// AnthropicGenerator wraps the Anthropic Messages API. The API has no
// frequency or presence penalties; top_p is left unset because several models
// reject it together with temperature.
type AnthropicGenerator struct {
	client   *anthropic.Client
	model    string
	sampling Sampling
}

func NewAnthropicGenerator(cfg AnthropicConfig) (*AnthropicGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-6"
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	sampling := cfg.Sampling
	if sampling.MaxTokens <= 0 {
		sampling = DefaultSampling()
	}
	return &AnthropicGenerator{
		client:   anthropic.NewClient(opts...),
		model:    model,
		sampling: sampling,
	}, nil
}

func (g *AnthropicGenerator) Provider() string { return "anthropic" }
func (g *AnthropicGenerator) Model() string    { return g.model }

func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.F(anthropic.Model(g.model)),
		MaxTokens:   anthropic.F(int64(g.sampling.MaxTokens)),
		Temperature: anthropic.F(g.sampling.Temperature),
		System: anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(SystemInstruction),
		}),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		}),
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if b, ok := block.AsUnion().(anthropic.TextBlock); ok {
			text.WriteString(b.Text)
		}
	}
	return strings.TrimSpace(text.String()), nil
}
