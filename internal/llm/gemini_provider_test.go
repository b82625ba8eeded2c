package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestGeminiProvider_Name(t *testing.T) {
	provider := &GeminiProvider{client: nil}
	assert.Equal(t, "gemini", provider.Name())
}

func TestBuildGeminiContents(t *testing.T) {
	tests := []struct {
		name       string
		inputArray []map[string]any
		wantLen    int
	}{
		{
			name:       "single user message",
			inputArray: []map[string]any{{"role": "user", "content": "test content"}},
			wantLen:    1,
		},
		{
			name:       "developer role converted to user",
			inputArray: []map[string]any{{"role": "developer", "content": "system message"}},
			wantLen:    1,
		},
		{
			name: "invalid message skipped",
			inputArray: []map[string]any{
				{"role": "user", "content": "valid"},
				{"role": "user"},
			},
			wantLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contents := buildGeminiContents(tt.inputArray)
			assert.Len(t, contents, tt.wantLen)
			for _, content := range contents {
				assert.Equal(t, "user", content.Role)
				assert.NotEmpty(t, content.Parts)
			}
		})
	}
}

func TestGeminiProvider_GenerateWithoutInput(t *testing.T) {
	provider := &GeminiProvider{client: nil}
	_, err := provider.Generate(context.Background(), &GenerationRequest{Model: "gemini-2.5-flash"})
	require.Error(t, err)
}

func TestProcessGeminiResponse(t *testing.T) {
	t.Run("joins parts and reads usage", func(t *testing.T) {
		resp, err := processGeminiResponse(&genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{{Text: "D4 1 1\n"}, {Text: "E4 2 1"}}},
			}},
			UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
				PromptTokenCount:     40,
				CandidatesTokenCount: 8,
				TotalTokenCount:      48,
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "D4 1 1\nE4 2 1", resp.RawOutput)
		assert.Equal(t, 48, resp.Usage.TotalTokens)
	})

	t.Run("no candidates", func(t *testing.T) {
		_, err := processGeminiResponse(&genai.GenerateContentResponse{})
		require.Error(t, err)
	})

	t.Run("empty text", func(t *testing.T) {
		_, err := processGeminiResponse(&genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "  "}}}}},
		})
		require.Error(t, err)
	})
}
