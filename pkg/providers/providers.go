package providers

import (
	"context"
	"fmt"
)

// Client completes a single prompt against a hosted model
type Client interface {
	Complete(ctx context.Context, model string, prompt string) (string, error)
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type ProviderParams struct {
	BaseURL string
	APIKey  string
}

type ProviderOption func(*ProviderParams)

func WithBaseURL(baseURL string) ProviderOption {
	return func(p *ProviderParams) {
		p.BaseURL = baseURL
	}
}

func WithAPIKey(apiKey string) ProviderOption {
	return func(p *ProviderParams) {
		p.APIKey = apiKey
	}
}

// New returns the client registered under name
func New(ctx context.Context, name string, opts ...ProviderOption) (Client, error) {
	switch name {
	case ProviderOpenAI, "":
		return OpenAi(ctx, opts...), nil
	case ProviderGemini:
		params := ProviderParams{}
		for _, opt := range opts {
			opt(&params)
		}
		return Gemini(ctx, params)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// DefaultModel returns the model used when none is configured
func DefaultModel(name string) string {
	if name == ProviderGemini {
		return "gemini-2.0-flash-exp"
	}
	return "gpt-4o-mini"
}
