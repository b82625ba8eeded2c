// Package completion continues a seed melody with a language model.
package completion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Conceptual-Machines/melody-bridge/internal/llm"
	"github.com/Conceptual-Machines/melody-bridge/internal/logger"
	"github.com/Conceptual-Machines/melody-bridge/internal/models"
	"github.com/Conceptual-Machines/melody-bridge/internal/notation"
	"github.com/Conceptual-Machines/melody-bridge/internal/observability"
	"github.com/Conceptual-Machines/melody-bridge/internal/prompt"
	"github.com/Conceptual-Machines/melody-bridge/internal/theory"
	"github.com/Conceptual-Machines/melody-bridge/internal/timing"
)

// overlapTolerance absorbs float noise in model-written start times.
const overlapTolerance = 1e-9

// TokenRecorder receives token usage per completion.
type TokenRecorder interface {
	RecordTokenUsage(ctx context.Context, model string, total, input, output int)
}

// Options configure a Service. Langfuse and Metrics are optional.
type Options struct {
	Model       string
	Temperature float64
	// UseGrammar constrains OpenAI output to note lines with a CFG tool.
	UseGrammar bool
	Langfuse   *observability.LangfuseClient
	Metrics    TokenRecorder
}

// Service turns a CompleteRequest into a MelodyResult.
type Service struct {
	provider llm.Provider
	builder  *prompt.Builder
	opts     Options
	now      func() time.Time
}

// NewService creates a completion service backed by provider.
func NewService(provider llm.Provider, opts Options) *Service {
	if opts.Langfuse == nil {
		opts.Langfuse = observability.Disabled(context.Background())
	}
	return &Service{
		provider: provider,
		builder:  prompt.NewPromptBuilder(),
		opts:     opts,
		now:      time.Now,
	}
}

// Complete validates req, asks the provider for a continuation and returns
// the seed followed by the new notes. Request problems are returned as
// ValidationError.
func (s *Service) Complete(ctx context.Context, req models.CompleteRequest) (*models.MelodyResult, error) {
	seed, err := normalizeSeed(req.OriginalNotes)
	if err != nil {
		return nil, err
	}
	for i, c := range req.Chords {
		if err := c.Validate(); err != nil {
			return nil, invalidf(ErrInvalidSeed, "chord %d: %v", i, err)
		}
	}

	endTime := timing.EndTime(seed)
	targetEnd, err := timing.TargetEnd(seed, req.LengthValue, req.LengthUnit, req.BPM)
	if err != nil {
		return nil, invalid(err)
	}

	if s.provider == nil {
		return nil, ErrNoProvider
	}

	systemPrompt, err := s.builder.BuildSystemPrompt()
	if err != nil {
		return nil, fmt.Errorf("build system prompt: %w", err)
	}
	userPrompt, err := s.builder.BuildUserPrompt(prompt.Continuation{
		Mood:          req.Mood,
		Adventureness: req.Adventureness,
		BPM:           req.BPM,
		Seed:          seed,
		Chords:        req.Chords,
		EndTime:       endTime,
		TargetEnd:     targetEnd,
	})
	if err != nil {
		return nil, invalid(err)
	}
	input := []map[string]any{{
		"role":    "user",
		"content": userPrompt,
	}}

	added, err := s.generate(ctx, systemPrompt, input)
	if err != nil {
		return nil, err
	}

	for _, n := range added {
		if n.Start < endTime-overlapTolerance {
			return nil, fmt.Errorf("%w: %s starts at %v, seed ends at %v", ErrContinuationOverlap, n.Pitch, n.Start, endTime)
		}
	}

	full := make([]models.NoteEvent, 0, len(seed)+len(added))
	full = append(full, notation.SortNotes(seed)...)
	full = append(full, notation.SortNotes(added)...)

	return &models.MelodyResult{
		FullTrack:  full,
		AddedNotes: notation.SortNotes(added),
		Timestamp:  s.now().UTC().Format(time.RFC3339),
	}, nil
}

func (s *Service) generate(ctx context.Context, systemPrompt string, input []map[string]any) ([]models.NoteEvent, error) {
	transaction := sentry.StartTransaction(ctx, "melody.complete")
	defer transaction.Finish()
	transaction.SetTag("provider", s.provider.Name())
	transaction.SetTag("model", s.opts.Model)

	trace := s.opts.Langfuse.StartTrace(ctx, "melody.complete", map[string]interface{}{
		"provider": s.provider.Name(),
	})
	defer trace.Finish()
	gen := trace.Generation("continuation", map[string]interface{}{
		"temperature": s.opts.Temperature,
	})
	defer gen.Finish()

	request := &llm.GenerationRequest{
		Model:        s.opts.Model,
		InputArray:   input,
		SystemPrompt: systemPrompt,
		Temperature:  s.opts.Temperature,
	}
	if s.opts.UseGrammar {
		request.CFGGrammar = llm.NotesGrammarConfig()
	}

	start := time.Now()
	resp, err := s.provider.Generate(ctx, request)
	duration := time.Since(start)
	if err != nil {
		transaction.SetTag("success", "false")
		gen.SetLevel("ERROR")
		return nil, fmt.Errorf("completion: %w", err)
	}

	gen.LogCompletion(s.opts.Model, input, resp.RawOutput, resp.Usage)
	logger.LogCompletion(ctx, s.opts.Model, duration, resp.Usage.Map(), logger.Fields{
		"provider": s.provider.Name(),
	})
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordTokenUsage(ctx, s.opts.Model,
			resp.Usage.TotalTokens, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}

	if strings.TrimSpace(resp.RawOutput) == "" {
		transaction.SetTag("success", "false")
		return nil, ErrEmptyResponse
	}

	added, err := notation.NotesFromText(resp.RawOutput)
	if err != nil {
		transaction.SetTag("success", "false")
		return nil, fmt.Errorf("%w: %w", ErrInvalidContinuation, err)
	}
	for i := range added {
		name, err := theory.NormalizePitch(added[i].Pitch)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidContinuation, err)
		}
		added[i].Pitch = name
		if err := added[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidContinuation, err)
		}
	}

	transaction.SetTag("success", "true")
	return added, nil
}

// normalizeSeed converts numeric pitches to names and validates every note.
func normalizeSeed(notes []models.NoteEvent) ([]models.NoteEvent, error) {
	if len(notes) == 0 {
		return nil, invalid(ErrEmptySeed)
	}
	seed := make([]models.NoteEvent, len(notes))
	for i, n := range notes {
		name, err := theory.NormalizePitch(n.Pitch)
		if err != nil {
			return nil, invalidf(ErrInvalidSeed, "note %d: %v", i, err)
		}
		n.Pitch = name
		if err := n.Validate(); err != nil {
			return nil, invalidf(ErrInvalidSeed, "note %d: %v", i, err)
		}
		seed[i] = n
	}
	return seed, nil
}
