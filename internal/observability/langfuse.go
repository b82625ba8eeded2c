package observability

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/Conceptual-Machines/melody-bridge/internal/config"
	"github.com/Conceptual-Machines/melody-bridge/internal/llm"
	langfuse "github.com/henomis/langfuse-go"
	"github.com/henomis/langfuse-go/model"
)

// LangfuseClient wraps the Langfuse client with our configuration
type LangfuseClient struct {
	client  *langfuse.Langfuse
	enabled bool
	ctx     context.Context
}

// InitializeLangfuse creates the Langfuse client. A disabled client is
// returned when tracing is off; every method on it is a no-op.
func InitializeLangfuse(ctx context.Context, cfg *config.Config) *LangfuseClient {
	if !cfg.LangfuseEnabled || cfg.LangfuseSecretKey == "" {
		log.Println("⚠️  Langfuse not configured (LANGFUSE_ENABLED=false or LANGFUSE_SECRET_KEY not set)")
		return Disabled(ctx)
	}

	// The SDK reads its credentials from the environment; values from the
	// config file have to be exported before it is created.
	setEnvIfMissing("LANGFUSE_HOST", cfg.LangfuseHost)
	setEnvIfMissing("LANGFUSE_PUBLIC_KEY", cfg.LangfusePublicKey)
	setEnvIfMissing("LANGFUSE_SECRET_KEY", cfg.LangfuseSecretKey)

	lf := langfuse.New(ctx)
	log.Printf("✅ Langfuse initialized (host: %s)", cfg.LangfuseHost)

	return &LangfuseClient{
		client:  lf,
		enabled: true,
		ctx:     ctx,
	}
}

// Disabled returns a client that records nothing.
func Disabled(ctx context.Context) *LangfuseClient {
	return &LangfuseClient{enabled: false, ctx: ctx}
}

func setEnvIfMissing(key, value string) {
	if value == "" || os.Getenv(key) != "" {
		return
	}
	if err := os.Setenv(key, value); err != nil {
		log.Printf("⚠️  Failed to export %s: %v", key, err)
	}
}

// IsEnabled returns whether Langfuse is enabled
func (c *LangfuseClient) IsEnabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// StartTrace starts a new trace in Langfuse
func (c *LangfuseClient) StartTrace(ctx context.Context, name string, metadata map[string]interface{}) *Trace {
	if !c.IsEnabled() {
		return &Trace{enabled: false, ctx: ctx}
	}

	trace, err := c.client.Trace(&model.Trace{
		Name:     name,
		Metadata: metadata,
	})
	if err != nil {
		log.Printf("⚠️  Failed to create Langfuse trace: %v", err)
		return &Trace{enabled: false, ctx: ctx}
	}

	return &Trace{
		trace:   trace,
		enabled: true,
		ctx:     ctx,
		client:  c.client,
	}
}

// Trace represents a Langfuse trace
type Trace struct {
	trace   *model.Trace
	enabled bool
	ctx     context.Context
	client  *langfuse.Langfuse
}

// Generation creates a new generation span within the trace
func (t *Trace) Generation(name string, metadata map[string]interface{}) *Generation {
	if !t.enabled {
		return &Generation{enabled: false}
	}

	now := time.Now()
	gen, err := t.client.Generation(&model.Generation{
		TraceID:   t.trace.ID,
		Name:      name,
		StartTime: &now,
		Metadata:  metadata,
	}, nil)
	if err != nil {
		log.Printf("⚠️  Failed to create Langfuse generation: %v", err)
		return &Generation{enabled: false}
	}

	return &Generation{
		generation: gen,
		enabled:    true,
		client:     t.client,
	}
}

// Finish flushes the trace's batched events.
func (t *Trace) Finish() {
	if t.enabled && t.client != nil {
		t.client.Flush(t.ctx)
	}
}

// Generation represents a Langfuse generation span
type Generation struct {
	generation *model.Generation
	enabled    bool
	client     *langfuse.Langfuse
}

// Input sets the input for the generation
func (g *Generation) Input(input interface{}) {
	if g.enabled && g.generation != nil {
		g.generation.Input = input
	}
}

// Output sets the output for the generation
func (g *Generation) Output(output interface{}) {
	if g.enabled && g.generation != nil {
		g.generation.Output = output
	}
}

// Metadata adds metadata to the generation
func (g *Generation) Metadata(metadata map[string]interface{}) {
	if !g.enabled || g.generation == nil {
		return
	}
	md, ok := g.generation.Metadata.(map[string]interface{})
	if !ok || md == nil {
		md = make(map[string]interface{})
	}
	for k, v := range metadata {
		md[k] = v
	}
	g.generation.Metadata = md
}

// SetLevel sets the level of the generation
func (g *Generation) SetLevel(level model.ObservationLevel) {
	if g.enabled && g.generation != nil {
		g.generation.Level = level
	}
}

// LogCompletion records the prompt, the raw continuation text, token usage
// and estimated cost of one provider call.
func (g *Generation) LogCompletion(modelName string, input []map[string]any, output string, usage llm.Usage) {
	if !g.enabled || g.generation == nil {
		return
	}

	cost := CalculateCost(modelName, usage)
	g.Input(input)
	if output != "" {
		g.Output(output)
	}
	g.generation.Model = modelName
	g.generation.Usage = usageToModel(usage, cost)
	g.Metadata(map[string]interface{}{
		"model":    modelName,
		"cost_usd": cost,
	})
}

// Finish completes the generation and sends it to Langfuse
func (g *Generation) Finish() {
	if !g.enabled || g.generation == nil || g.client == nil {
		return
	}
	now := time.Now()
	g.generation.EndTime = &now
	if _, err := g.client.GenerationEnd(g.generation); err != nil {
		log.Printf("⚠️  Failed to end Langfuse generation: %v", err)
	}
}

func usageToModel(usage llm.Usage, cost float64) model.Usage {
	return model.Usage{
		Input:     usage.InputTokens,
		Output:    usage.OutputTokens,
		Total:     usage.TotalTokens,
		Unit:      model.ModelUsageUnitTokens,
		TotalCost: cost,
	}
}
