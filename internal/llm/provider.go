package llm

import (
	"context"
)

// Provider defines the interface for LLM providers used to continue melodies.
type Provider interface {
	// Generate returns the model's raw text output for the request.
	Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error)

	// Name returns the provider name (e.g., "openai", "gemini")
	Name() string
}

// GenerationRequest contains all parameters needed for generation
type GenerationRequest struct {
	Model         string
	InputArray    []map[string]any
	ReasoningMode string
	SystemPrompt  string
	// Temperature is ignored by reasoning models.
	Temperature float64
	// CFG grammar constraining the output (OpenAI only)
	CFGGrammar *CFGConfig
}

// CFGConfig contains context-free grammar configuration
type CFGConfig struct {
	ToolName    string // Name of the tool that will receive the constrained output
	Description string // Description of what the tool does
	Grammar     string // Lark grammar definition
	Syntax      string // "lark" or "regex" (default: "lark")
}

// Usage is the provider-neutral token count of a generation.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Map returns the usage in the shape expected by logger.LogCompletion.
func (u Usage) Map() map[string]interface{} {
	return map[string]interface{}{
		"input_tokens":  u.InputTokens,
		"output_tokens": u.OutputTokens,
		"total_tokens":  u.TotalTokens,
	}
}

// GenerationResponse contains the result from the LLM
type GenerationResponse struct {
	RawOutput string `json:"raw_output"`
	Usage     Usage  `json:"usage"`
}
