// Package extract drives a multi-turn tool-calling conversation against a
// finished transcript and yields one completed workflow graph.
//
// This is the batch counterpart of the live realtime path: the same tool
// vocabulary, executed against a fresh workflow with no rendering surface.
// Projection happens once, after extraction, by the caller.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/topology-ai/topology/internal/observe"
	"github.com/topology-ai/topology/internal/tools"
	"github.com/topology-ai/topology/internal/workflow"
	"github.com/topology-ai/topology/pkg/provider/llm"
	"github.com/topology-ai/topology/pkg/types"
)

// maxRounds caps the number of request/response rounds per extraction.
// Hitting the cap is logged as a warning; the partially built workflow is
// still returned, never discarded.
const maxRounds = 20

// Result is the outcome of one transcript extraction.
type Result struct {
	// Workflow is the extracted graph. On a capped run it holds whatever
	// was built before the cap.
	Workflow workflow.Workflow

	// Iterations is the number of completion rounds performed.
	Iterations int

	// FinishReason is the model's reason for the final round ("stop",
	// "length", "tool_calls", ...).
	FinishReason string

	// Capped reports whether the round cap ended the extraction.
	Capped bool
}

// Extractor runs transcript extractions against an LLM provider.
type Extractor struct {
	provider    llm.Provider
	metrics     *observe.Metrics
	temperature float64
}

// Option configures an [Extractor].
type Option func(*Extractor)

// WithTemperature sets the sampling temperature for extraction completions.
// Zero keeps the provider default.
func WithTemperature(t float64) Option {
	return func(e *Extractor) { e.temperature = t }
}

// New returns an Extractor using provider. metrics may be nil.
func New(provider llm.Provider, metrics *observe.Metrics, opts ...Option) *Extractor {
	e := &Extractor{provider: provider, metrics: metrics}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract rebuilds a workflow from transcript. Each round's tool invocations
// are executed strictly in the order the model returned them; an invocation
// whose arguments fail to parse is reported back into the conversation as an
// error string for the model to correct, rather than aborting the run. The
// loop ends when a round returns no tool calls or the round cap is hit.
func (e *Extractor) Extract(ctx context.Context, transcript string) (*Result, error) {
	store := workflow.NewStore()
	resolver := workflow.NewResolver(store)
	dispatcher := tools.NewDispatcher(store, resolver, nil, e.metrics)

	messages := []types.Message{
		{Role: "user", Content: "Transcript:\n\n" + transcript},
	}

	result := &Result{}
	for round := 1; round <= maxRounds; round++ {
		result.Iterations = round

		start := time.Now()
		resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
			Messages:     messages,
			Tools:        tools.Definitions(),
			SystemPrompt: systemPrompt,
			Temperature:  e.temperature,
		})
		if e.metrics != nil {
			e.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
			status := "ok"
			if err != nil {
				status = "error"
			}
			e.metrics.RecordProviderRequest(ctx, "llm", "extract", status)
		}
		if err != nil {
			return nil, fmt.Errorf("extract: completion round %d: %w", round, err)
		}
		if resp == nil {
			return nil, fmt.Errorf("extract: completion round %d: provider returned no response", round)
		}

		result.FinishReason = resp.FinishReason

		messages = append(messages, types.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		if len(resp.ToolCalls) == 0 {
			if result.FinishReason == "" {
				result.FinishReason = "stop"
			}
			if e.metrics != nil {
				e.metrics.ExtractionRounds.Add(ctx, int64(round),
					extractionAttrs("finished"))
			}
			break
		}

		for _, call := range resp.ToolCalls {
			content, err := dispatcher.Execute(ctx, call.Name, call.Arguments)
			if err != nil {
				// Fed back for self-correction; the round continues.
				content = "Error: " + err.Error()
				slog.Warn("tool invocation failed during extraction",
					"tool", call.Name, "round", round, "error", err)
			}
			messages = append(messages, types.Message{
				Role:       "tool",
				Content:    content,
				ToolCallID: call.ID,
			})
		}

		if round == maxRounds {
			result.Capped = true
			slog.Warn("extraction hit round cap, returning partial workflow",
				"rounds", maxRounds,
				"participants", len(store.Workflow().Participants),
				"steps", len(store.Workflow().Steps))
			if e.metrics != nil {
				e.metrics.ExtractionRounds.Add(ctx, int64(round),
					extractionAttrs("capped"))
			}
		}
	}

	result.Workflow = store.Snapshot()
	return result, nil
}

func extractionAttrs(result string) metric.AddOption {
	return metric.WithAttributes(attribute.String("result", result))
}
