package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Conceptual-Machines/grammar-school-go/gs"
	"github.com/getsentry/sentry-go"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

const (
	developerRole = "developer"

	// Reasoning effort levels; anything else maps to "none"
	reasoningNone    = "none"
	reasoningMinimal = "minimal"
	reasoningMin     = "min"
	reasoningLow     = "low"
	reasoningMedium  = "medium"
	reasoningMed     = "med"
	reasoningHigh    = "high"

	providerNameOpenAI = "openai"

	// DefaultOpenAIBaseURL is used when no base URL is configured.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	customToolCallType = "custom_tool_call"
	maxPreviewChars    = 200
)

var modelsWithReasoning = map[string]bool{
	"gpt-5":        true,
	"gpt-5-mini":   true,
	"gpt-5-nano":   true,
	"gpt-5.1":      true,
	"gpt-5.1-mini": true,
	"gpt-5.1-nano": true,
	"gpt-5.2":      true,
	"gpt-5.2-mini": true,
	"gpt-5.2-nano": true,
	"gpt-5.2-pro":  true,
}

// OpenAIProvider implements the Provider interface using OpenAI's Responses API
type OpenAIProvider struct {
	client     *openai.Client
	apiKey     string // used for raw HTTP requests carrying CFG tools
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider. An empty baseURL selects
// the public API.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL+"/"),
	)
	return &OpenAIProvider{
		client:     &client,
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return providerNameOpenAI
}

// Generate implements non-streaming generation using OpenAI's Responses API
func (p *OpenAIProvider) Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error) {
	startTime := time.Now()
	log.Printf("🎵 OPENAI GENERATION REQUEST STARTED (Model: %s)", request.Model)

	transaction := sentry.StartTransaction(ctx, "openai.generate")
	defer transaction.Finish()

	transaction.SetTag("model", request.Model)
	transaction.SetTag("provider", providerNameOpenAI)
	transaction.SetTag("cfg", fmt.Sprintf("%t", request.CFGGrammar != nil))

	params := p.buildRequestParams(request)

	span := transaction.StartChild("openai.api_call")
	var (
		resp *GenerationResponse
		err  error
	)
	if request.CFGGrammar != nil {
		resp, err = p.executeRawCFGRequest(ctx, params, request.CFGGrammar)
	} else {
		resp, err = p.executeSDKRequest(ctx, params)
	}
	span.Finish()

	if err != nil {
		log.Printf("❌ OPENAI REQUEST FAILED after %v: %v", time.Since(startTime), err)
		transaction.SetTag("success", "false")
		sentry.CaptureException(err)
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	p.logUsageStats(resp.Usage)
	log.Printf("✅ OPENAI GENERATION COMPLETED in %v (output: %d chars)", time.Since(startTime), len(resp.RawOutput))
	transaction.SetTag("success", "true")
	return resp, nil
}

// executeSDKRequest handles plain-text requests through the SDK.
func (p *OpenAIProvider) executeSDKRequest(ctx context.Context, params responses.ResponseNewParams) (*GenerationResponse, error) {
	resp, err := p.client.Responses.New(ctx, params)
	if err != nil {
		return nil, err
	}

	textOutput := cleanTextOutput(resp.OutputText())
	if textOutput == "" {
		return nil, fmt.Errorf("openai response did not include any output text")
	}

	return &GenerationResponse{
		RawOutput: textOutput,
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}, nil
}

// executeRawCFGRequest sends the request with a CFG tool attached. The SDK
// has no type for custom grammar tools, so the params go out as raw JSON.
func (p *OpenAIProvider) executeRawCFGRequest(
	ctx context.Context,
	params responses.ResponseNewParams,
	cfg *CFGConfig,
) (*GenerationResponse, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	var paramsMap map[string]any
	if err := json.Unmarshal(paramsJSON, &paramsMap); err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	p.addCFGToolToParams(paramsMap, cfg)

	body, err := p.makeRawHTTPRequest(ctx, paramsMap)
	if err != nil {
		return nil, err
	}

	var rawResponse map[string]any
	if err := json.Unmarshal(body, &rawResponse); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if output := extractToolInput(rawResponse); output != "" {
		return &GenerationResponse{
			RawOutput: output,
			Usage:     usageFromRaw(rawResponse),
		}, nil
	}

	// The model answered in text instead of calling the tool.
	if text := cleanTextOutput(extractOutputText(rawResponse)); text != "" {
		log.Printf("⚠️  CFG tool %s was not called, using text output", cfg.ToolName)
		return &GenerationResponse{
			RawOutput: text,
			Usage:     usageFromRaw(rawResponse),
		}, nil
	}

	return nil, fmt.Errorf("openai response did not include a %s tool call", cfg.ToolName)
}

// addCFGToolToParams adds CFG tool configuration to request params
func (p *OpenAIProvider) addCFGToolToParams(paramsMap map[string]any, cfg *CFGConfig) {
	cfgTool := gs.BuildOpenAICFGTool(gs.CFGConfig{
		ToolName:    cfg.ToolName,
		Description: cfg.Description,
		Grammar:     gs.CleanGrammarForCFG(cfg.Grammar),
		Syntax:      cfg.Syntax,
	})
	log.Printf("🔧 CFG GRAMMAR CONFIGURED: %s (syntax: %s)", cfg.ToolName, cfg.Syntax)

	paramsMap["text"] = gs.GetOpenAITextFormatForCFG()

	tools, _ := paramsMap["tools"].([]any)
	paramsMap["tools"] = append(tools, cfgTool)
	paramsMap["parallel_tool_calls"] = false
}

// makeRawHTTPRequest posts the request body to the responses endpoint.
func (p *OpenAIProvider) makeRawHTTPRequest(ctx context.Context, paramsMap map[string]any) ([]byte, error) {
	payload, err := json.Marshal(paramsMap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	log.Printf("📤 Making raw HTTP request (JSON size: %d bytes)", len(payload))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/responses", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			log.Printf("⚠️  Failed to close response body: %v", closeErr)
		}
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", httpResp.StatusCode, truncateString(string(body), maxPreviewChars))
	}
	return body, nil
}

// buildRequestParams converts GenerationRequest to OpenAI-specific ResponseNewParams
func (p *OpenAIProvider) buildRequestParams(request *GenerationRequest) responses.ResponseNewParams {
	inputItems := responses.ResponseInputParam{}

	for _, item := range request.InputArray {
		role, hasRole := item["role"].(string)
		content, hasContent := item["content"].(string)

		if !hasRole || !hasContent {
			log.Printf("⚠️  Skipping invalid input item (missing role or content): %v", item)
			continue
		}

		roleEnum := responses.EasyInputMessageRoleUser
		if role == developerRole {
			roleEnum = responses.EasyInputMessageRoleDeveloper
		}

		inputItems = append(inputItems,
			responses.ResponseInputItemParamOfMessage(content, roleEnum),
		)
	}

	params := responses.ResponseNewParams{
		Model: request.Model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: inputItems,
		},
		Instructions: openai.String(request.SystemPrompt),
	}

	// Reasoning models reject temperature; the rest reject reasoning.
	if modelsWithReasoning[request.Model] {
		params.Reasoning = shared.ReasoningParam{
			Effort: reasoningEffort(request.ReasoningMode),
		}
	} else if request.Temperature > 0 {
		params.Temperature = openai.Float(request.Temperature)
	}

	return params
}

func reasoningEffort(mode string) shared.ReasoningEffort {
	switch mode {
	case reasoningMinimal, reasoningMin, reasoningLow:
		return responses.ReasoningEffortLow
	case reasoningMedium, reasoningMed:
		return responses.ReasoningEffortMedium
	case reasoningHigh:
		return responses.ReasoningEffortHigh
	default:
		return shared.ReasoningEffort(reasoningNone)
	}
}

// extractToolInput returns the input of the first custom tool call.
func extractToolInput(rawResponse map[string]any) string {
	output, _ := rawResponse["output"].([]any)
	for _, item := range output {
		itemMap, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if itemType, _ := itemMap["type"].(string); itemType != customToolCallType {
			continue
		}
		if input, ok := itemMap["input"].(string); ok && input != "" {
			log.Printf("✅ Found %s output: %s", customToolCallType, truncateString(input, maxPreviewChars))
			return input
		}
	}
	return ""
}

// extractOutputText concatenates output_text parts of message items.
func extractOutputText(rawResponse map[string]any) string {
	var sb strings.Builder
	output, _ := rawResponse["output"].([]any)
	for _, item := range output {
		itemMap, ok := item.(map[string]any)
		if !ok || itemMap["type"] != "message" {
			continue
		}
		content, _ := itemMap["content"].([]any)
		for _, part := range content {
			partMap, ok := part.(map[string]any)
			if !ok || partMap["type"] != "output_text" {
				continue
			}
			if text, ok := partMap["text"].(string); ok {
				sb.WriteString(text)
			}
		}
	}
	return sb.String()
}

func usageFromRaw(rawResponse map[string]any) Usage {
	usageMap, _ := rawResponse["usage"].(map[string]any)
	count := func(key string) int {
		if v, ok := usageMap[key].(float64); ok {
			return int(v)
		}
		return 0
	}
	return Usage{
		InputTokens:  count("input_tokens"),
		OutputTokens: count("output_tokens"),
		TotalTokens:  count("total_tokens"),
	}
}

// cleanTextOutput strips a surrounding markdown code fence.
func cleanTextOutput(text string) string {
	cleaned := strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	cleaned = strings.TrimPrefix(cleaned, "```")
	if nl := strings.IndexByte(cleaned, '\n'); nl >= 0 && !strings.ContainsAny(cleaned[:nl], " \t") {
		// drop the language tag line
		cleaned = cleaned[nl+1:]
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

// logUsageStats logs token usage statistics
func (p *OpenAIProvider) logUsageStats(usage Usage) {
	log.Printf("📊 USAGE: input=%d, output=%d, total=%d",
		usage.InputTokens, usage.OutputTokens, usage.TotalTokens)
}

// truncateString truncates a string to a maximum length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
