package metrics

import (
	"context"
	"time"
)

// Recorder fans metrics out to Sentry and CloudWatch. Either sink may be nil.
type Recorder struct {
	sentry     *SentryMetrics
	cloudwatch *Client
}

// NewRecorder combines the two sinks.
func NewRecorder(sentryMetrics *SentryMetrics, cloudwatch *Client) *Recorder {
	return &Recorder{sentry: sentryMetrics, cloudwatch: cloudwatch}
}

func (r *Recorder) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	if r == nil {
		return
	}
	r.sentry.RecordAPIRequest(ctx, endpoint, statusCode, duration)
	r.cloudwatch.RecordAPIRequest(endpoint, statusCode, duration)
}

func (r *Recorder) RecordDatagram(ctx context.Context, kind string, accepted bool, size int) {
	if r == nil {
		return
	}
	r.sentry.RecordDatagram(ctx, kind, accepted, size)
	r.cloudwatch.RecordDatagram(kind, accepted, size)
}

func (r *Recorder) RecordTokenUsage(ctx context.Context, model string, total, input, output int) {
	if r == nil {
		return
	}
	r.sentry.RecordTokenUsage(ctx, model, total, input, output)
	r.cloudwatch.RecordTokenUsage(model, total, input, output)
}

func (r *Recorder) RecordCompletion(ctx context.Context, source string, duration time.Duration, success bool) {
	if r == nil {
		return
	}
	r.sentry.RecordCompletionDuration(ctx, source, duration, success)
	r.cloudwatch.RecordCompletionDuration(source, duration, success)
}
