package llm

import (
	"context"
	"fmt"
	"strings"
)

// ProviderFactory creates providers based on model name or explicit provider choice
type ProviderFactory struct {
	openaiAPIKey  string
	openaiBaseURL string
	geminiAPIKey  string
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(openaiAPIKey, openaiBaseURL, geminiAPIKey string) *ProviderFactory {
	return &ProviderFactory{
		openaiAPIKey:  openaiAPIKey,
		openaiBaseURL: openaiBaseURL,
		geminiAPIKey:  geminiAPIKey,
	}
}

// GetProvider returns the appropriate provider for the given model/provider name
func (f *ProviderFactory) GetProvider(ctx context.Context, model, providerName string) (Provider, error) {
	if providerName != "" {
		return f.getProviderByName(ctx, providerName)
	}
	return f.getProviderByModel(ctx, model)
}

// getProviderByName creates a provider by explicit name
func (f *ProviderFactory) getProviderByName(ctx context.Context, providerName string) (Provider, error) {
	switch strings.ToLower(providerName) {
	case providerNameOpenAI:
		return f.openAI()
	case providerNameGemini:
		return f.gemini(ctx)
	default:
		return nil, fmt.Errorf("unknown provider: %s (allowed: openai, gemini)", providerName)
	}
}

// getProviderByModel infers provider from model name
func (f *ProviderFactory) getProviderByModel(ctx context.Context, model string) (Provider, error) {
	if strings.HasPrefix(strings.ToLower(model), "gemini-") {
		return f.gemini(ctx)
	}
	// GPT models and anything unknown use OpenAI
	return f.openAI()
}

func (f *ProviderFactory) openAI() (Provider, error) {
	if f.openaiAPIKey == "" {
		return nil, fmt.Errorf("openai API key not configured")
	}
	return NewOpenAIProvider(f.openaiAPIKey, f.openaiBaseURL), nil
}

func (f *ProviderFactory) gemini(ctx context.Context) (Provider, error) {
	if f.geminiAPIKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}
	p, err := NewGeminiProvider(ctx, f.geminiAPIKey)
	if err != nil {
		return nil, err
	}
	return p, nil
}
