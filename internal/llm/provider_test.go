package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderFactory_ByName(t *testing.T) {
	ctx := context.Background()
	factory := NewProviderFactory("openai-key", "", "gemini-key")

	provider, err := factory.GetProvider(ctx, "", "OpenAI")
	require.NoError(t, err)
	assert.Equal(t, "openai", provider.Name())

	provider, err = factory.GetProvider(ctx, "", "gemini")
	require.NoError(t, err)
	assert.Equal(t, "gemini", provider.Name())

	_, err = factory.GetProvider(ctx, "", "anthropic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestProviderFactory_ByModel(t *testing.T) {
	ctx := context.Background()
	factory := NewProviderFactory("openai-key", "", "gemini-key")

	provider, err := factory.GetProvider(ctx, "gpt-4o-mini", "")
	require.NoError(t, err)
	assert.Equal(t, "openai", provider.Name())

	provider, err = factory.GetProvider(ctx, "gemini-2.5-flash", "")
	require.NoError(t, err)
	assert.Equal(t, "gemini", provider.Name())

	provider, err = factory.GetProvider(ctx, "some-local-model", "")
	require.NoError(t, err)
	assert.Equal(t, "openai", provider.Name())
}

func TestProviderFactory_MissingKeys(t *testing.T) {
	ctx := context.Background()
	factory := NewProviderFactory("", "", "")

	_, err := factory.GetProvider(ctx, "gpt-4o-mini", "")
	assert.ErrorContains(t, err, "openai API key not configured")

	_, err = factory.GetProvider(ctx, "", "gemini")
	assert.ErrorContains(t, err, "gemini API key not configured")
}

func TestNotesGrammarConfig(t *testing.T) {
	cfg := NotesGrammarConfig()
	assert.Equal(t, NotesToolName, cfg.ToolName)
	assert.Equal(t, "lark", cfg.Syntax)
	assert.Contains(t, cfg.Grammar, "start:")
	assert.Contains(t, cfg.Grammar, "note_line: PITCH SP NUMBER SP NUMBER")
}

func TestUsageMap(t *testing.T) {
	m := Usage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3}.Map()
	assert.Equal(t, 3, m["total_tokens"])
	assert.Equal(t, 1, m["input_tokens"])
}
