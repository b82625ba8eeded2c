package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	// HTTP status code threshold for considering a request successful
	successStatusCodeThreshold = http.StatusBadRequest
)

// SentryMetrics records spans for requests, datagrams and completions
type SentryMetrics struct {
	enabled bool
}

// NewSentryMetrics creates a new Sentry metrics client
func NewSentryMetrics() *SentryMetrics {
	return &SentryMetrics{
		enabled: true, // Always enabled if Sentry is configured
	}
}

// RecordAPIRequest records API request metrics
func (m *SentryMetrics) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	if m == nil || !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "api.request")
	defer span.Finish()

	span.SetTag("endpoint", endpoint)
	span.SetTag("status_code", fmt.Sprintf("%d", statusCode))
	span.SetTag("success", fmt.Sprintf("%t", statusCode < successStatusCodeThreshold))

	span.SetData("duration_ms", duration.Milliseconds())
	span.SetData("endpoint", endpoint)
	span.SetData("status_code", statusCode)

	if statusCode < successStatusCodeThreshold {
		span.Status = sentry.SpanStatusOK
	} else {
		span.Status = sentry.SpanStatusInternalError
	}

	span.Description = fmt.Sprintf("API Request: %s", endpoint)
}

// RecordDatagram records one inbound datagram and whether it was accepted
func (m *SentryMetrics) RecordDatagram(ctx context.Context, kind string, accepted bool, size int) {
	if m == nil || !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "bridge.datagram")
	defer span.Finish()

	span.SetTag("kind", kind)
	span.SetTag("accepted", fmt.Sprintf("%t", accepted))
	span.SetData("size_bytes", size)

	if accepted {
		span.Status = sentry.SpanStatusOK
	} else {
		span.Status = sentry.SpanStatusInvalidArgument
	}
	span.Description = fmt.Sprintf("Datagram: %s", kind)
}

// RecordTokenUsage records model token usage on the current transaction
func (m *SentryMetrics) RecordTokenUsage(ctx context.Context, model string, totalTokens, inputTokens, outputTokens int) {
	if m == nil || !m.enabled {
		return
	}

	if transaction := sentry.TransactionFromContext(ctx); transaction != nil {
		transaction.SetTag("llm.model", model)
		transaction.SetData("llm.total_tokens", totalTokens)
		transaction.SetData("llm.input_tokens", inputTokens)
		transaction.SetData("llm.output_tokens", outputTokens)
	}

	span := sentry.StartSpan(ctx, "llm.token_usage")
	defer span.Finish()

	span.SetTag("model", model)
	span.SetData("total_tokens", totalTokens)
	span.SetData("input_tokens", inputTokens)
	span.SetData("output_tokens", outputTokens)

	span.Status = sentry.SpanStatusOK
	span.Description = fmt.Sprintf("Token Usage: %s", model)
}

// RecordCompletionDuration records how long a melody completion took
func (m *SentryMetrics) RecordCompletionDuration(ctx context.Context, source string, duration time.Duration, success bool) {
	if m == nil || !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "completion.request")
	defer span.Finish()

	span.SetTag("source", source)
	span.SetTag("success", fmt.Sprintf("%t", success))
	span.SetData("duration_ms", duration.Milliseconds())

	if success {
		span.Status = sentry.SpanStatusOK
	} else {
		span.Status = sentry.SpanStatusInternalError
	}

	span.Description = fmt.Sprintf("Completion (%s): %t", source, success)
}
