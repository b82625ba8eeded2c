package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"google.golang.org/genai"
)

const (
	providerNameGemini = "gemini"
	geminiUserRole     = "user"
)

// GeminiProvider implements the Provider interface using Google's Gemini API.
// Gemini has no grammar tools, so CFGGrammar is ignored and output is plain text.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
	}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return providerNameGemini
}

// Generate implements non-streaming generation using Gemini's API
func (p *GeminiProvider) Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error) {
	startTime := time.Now()
	log.Printf("🎵 GEMINI GENERATION REQUEST STARTED (Model: %s)", request.Model)

	transaction := sentry.StartTransaction(ctx, "gemini.generate")
	defer transaction.Finish()

	transaction.SetTag("model", request.Model)
	transaction.SetTag("provider", providerNameGemini)

	contents := buildGeminiContents(request.InputArray)
	if len(contents) == 0 {
		transaction.SetTag("success", "false")
		return nil, fmt.Errorf("gemini request has no input messages")
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: request.SystemPrompt}},
		},
	}
	if request.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(request.Temperature))
	}

	span := transaction.StartChild("gemini.api_call")
	apiStartTime := time.Now()
	result, err := p.client.Models.GenerateContent(ctx, request.Model, contents, config)
	apiDuration := time.Since(apiStartTime)
	span.Finish()

	if err != nil {
		log.Printf("❌ GEMINI REQUEST FAILED after %v: %v", apiDuration, err)
		transaction.SetTag("success", "false")
		sentry.CaptureException(err)
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	log.Printf("⏱️  GEMINI API CALL COMPLETED in %v", apiDuration)

	response, err := processGeminiResponse(result)
	if err != nil {
		transaction.SetTag("success", "false")
		return nil, err
	}

	log.Printf("✅ GEMINI GENERATION COMPLETED in %v (output: %d chars)", time.Since(startTime), len(response.RawOutput))
	transaction.SetTag("success", "true")
	return response, nil
}

// buildGeminiContents converts our input array to Gemini Content format.
// Gemini only knows "user" and "model", so developer messages go as user.
func buildGeminiContents(inputArray []map[string]any) []*genai.Content {
	var contents []*genai.Content

	for _, item := range inputArray {
		_, hasRole := item["role"].(string)
		content, hasContent := item["content"].(string)

		if !hasRole || !hasContent {
			log.Printf("⚠️  Skipping invalid input item (missing role or content): %v", item)
			continue
		}

		contents = append(contents, &genai.Content{
			Role:  geminiUserRole,
			Parts: []*genai.Part{{Text: content}},
		})
	}

	return contents
}

// processGeminiResponse converts Gemini response to our GenerationResponse
func processGeminiResponse(result *genai.GenerateContentResponse) (*GenerationResponse, error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in Gemini response")
	}

	candidate := result.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("no parts in Gemini response")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}

	textOutput := cleanTextOutput(sb.String())
	log.Printf("📥 GEMINI RESPONSE: output_length=%d", len(textOutput))
	if textOutput == "" {
		return nil, fmt.Errorf("gemini response did not include any output text")
	}

	response := &GenerationResponse{RawOutput: textOutput}
	if result.UsageMetadata != nil {
		response.Usage = Usage{
			InputTokens:  int(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(result.UsageMetadata.TotalTokenCount),
		}
		log.Printf("📊 GEMINI USAGE: input=%d, output=%d, total=%d",
			response.Usage.InputTokens, response.Usage.OutputTokens, response.Usage.TotalTokens)
	}

	return response, nil
}
