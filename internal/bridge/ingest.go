package bridge

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/remeh/sizedwaitgroup"

	"github.com/Conceptual-Machines/melody-bridge/internal/logger"
	"github.com/Conceptual-Machines/melody-bridge/internal/models"
	"github.com/Conceptual-Machines/melody-bridge/internal/osc"
	"github.com/Conceptual-Machines/melody-bridge/internal/payload"
)

// BusyReply is the error sent to the controller when a capture arrives
// while every worker and queue slot is taken.
const BusyReply = "busy"

// Sources recorded with stored results.
const (
	SourceUDP     = "udp"
	SourceHTTP    = "http"
	SourceCapture = "capture"
)

// Completer turns a capture request into a completed melody.
type Completer interface {
	Complete(ctx context.Context, req models.CompleteRequest) (*models.MelodyResult, error)
}

// Replier sends a reply datagram to the controller.
type Replier interface {
	Send(msg any) error
}

// History keeps stored results beyond the single slot.
type History interface {
	Record(ctx context.Context, sessionID, source string, result models.MelodyResult) error
}

// Metrics receives ingest counters.
type Metrics interface {
	RecordDatagram(ctx context.Context, kind string, accepted bool, size int)
	RecordCompletion(ctx context.Context, source string, duration time.Duration, success bool)
}

// IngesterOptions configure an Ingester. Completer, History and Metrics are optional.
type IngesterOptions struct {
	Completer Completer
	Replier   Replier
	History   History
	Metrics   Metrics
	Workers   int
	// QueueSize is how many admitted captures may wait for a free worker.
	// Captures beyond Workers+QueueSize are answered with BusyReply.
	QueueSize         int
	CompletionTimeout time.Duration
}

// Ingester decodes datagrams and routes them: result payloads go to the
// store, capture payloads are completed and the result is stored and sent
// back to the controller.
type Ingester struct {
	store *Store
	opts  IngesterOptions
	pool  sizedwaitgroup.SizedWaitGroup

	mu       sync.Mutex
	pending  int
	inflight sync.WaitGroup
}

// NewIngester builds an ingester writing into store.
func NewIngester(store *Store, opts IngesterOptions) *Ingester {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}
	if opts.CompletionTimeout <= 0 {
		opts.CompletionTimeout = 60 * time.Second
	}
	return &Ingester{
		store: store,
		opts:  opts,
		pool:  sizedwaitgroup.New(opts.Workers),
	}
}

// HandleDatagram implements DatagramHandler. It never fails: every problem
// is logged and the datagram dropped.
func (i *Ingester) HandleDatagram(ctx context.Context, data []byte, peer net.Addr) {
	fields := logger.WithDatagram(peer, len(data))

	body := string(data)
	if osc.LooksLikePacket(data) {
		pkt, err := osc.Decode(data)
		if err != nil {
			// fall through with the raw bytes; brace recovery may still find the object
			logger.Debug("Datagram is not a clean packet", fields.With(logger.Fields{"error": err.Error()}))
		} else {
			body = pkt.Argument
			fields["address"] = pkt.Address
		}
	}

	obj, err := payload.Recover(body)
	if err != nil {
		logger.Warn("Dropping unrecoverable datagram", fields.With(logger.Fields{"error": err.Error()}))
		i.recordDatagram(ctx, payload.KindUnknown, false, len(data))
		return
	}

	kind := payload.Classify(obj)
	fields["kind"] = kind.String()

	switch kind {
	case payload.KindResult:
		i.ingestResult(ctx, obj, len(data), fields)
	case payload.KindCapture:
		i.ingestCapture(ctx, obj, len(data), fields)
	default:
		logger.Warn("Dropping datagram with invalid schema", fields.With(logger.Fields{"error": payload.ErrInvalidSchema.Error()}))
		i.recordDatagram(ctx, kind, false, len(data))
	}
}

func (i *Ingester) ingestResult(ctx context.Context, obj map[string]any, size int, fields logger.Fields) {
	before := i.store.Status()
	snap, err := i.store.StoreResult(obj)
	if err != nil {
		logger.Warn("Dropping result datagram", fields.With(logger.Fields{"error": err.Error()}))
		i.recordDatagram(ctx, payload.KindResult, false, size)
		return
	}

	fields["session_id"] = snap.SessionID
	fields["added_notes"] = len(snap.Result.AddedNotes)
	if before.State != StateListening {
		logger.Warn("Result arrived outside a capture window", fields.With(logger.Fields{"state": before.State.String()}))
	}
	logger.Info("Stored result from controller", fields)

	i.recordDatagram(ctx, payload.KindResult, true, size)
	i.recordHistory(ctx, snap, SourceUDP)
}

func (i *Ingester) ingestCapture(ctx context.Context, obj map[string]any, size int, fields logger.Fields) {
	if i.opts.Completer == nil {
		logger.Warn("Dropping capture datagram: no completion backend configured", fields)
		i.recordDatagram(ctx, payload.KindCapture, false, size)
		return
	}

	req, err := payload.DecodeCapture(obj)
	if err != nil {
		logger.Warn("Dropping capture datagram", fields.With(logger.Fields{"error": err.Error()}))
		i.reply(map[string]any{"error": err.Error()}, fields)
		i.recordDatagram(ctx, payload.KindCapture, false, size)
		return
	}

	if !i.admit() {
		logger.Warn("Dropping capture datagram: completion queue full", fields.With(logger.Fields{
			"workers": i.opts.Workers,
			"queue":   i.opts.QueueSize,
		}))
		i.reply(map[string]any{"error": BusyReply}, fields)
		i.recordDatagram(ctx, payload.KindCapture, false, size)
		return
	}

	i.recordDatagram(ctx, payload.KindCapture, true, size)

	// Completions outlive the receive loop so shutdown can drain them.
	go i.runCapture(context.WithoutCancel(ctx), req, fields)
}

// admit reserves a worker or queue slot and registers the capture as in
// flight before its goroutine starts, so Wait never misses it.
func (i *Ingester) admit() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.pending >= i.opts.Workers+i.opts.QueueSize {
		return false
	}
	i.pending++
	i.inflight.Add(1)
	return true
}

func (i *Ingester) release() {
	i.mu.Lock()
	i.pending--
	i.mu.Unlock()
	i.inflight.Done()
}

func (i *Ingester) runCapture(ctx context.Context, req models.CompleteRequest, fields logger.Fields) {
	defer i.release()

	i.pool.Add()
	defer i.pool.Done()

	callCtx, cancel := context.WithTimeout(ctx, i.opts.CompletionTimeout)
	defer cancel()

	start := time.Now()
	result, err := i.opts.Completer.Complete(callCtx, req)
	duration := time.Since(start)
	if i.opts.Metrics != nil {
		i.opts.Metrics.RecordCompletion(ctx, SourceCapture, duration, err == nil)
	}

	if err != nil {
		logger.Error("Capture completion failed", err, fields.With(logger.Fields{"duration": duration}))
		i.reply(map[string]any{"error": err.Error()}, fields)
		return
	}

	snap := i.store.StoreMelody(*result)
	logger.Info("Capture completed", fields.With(logger.Fields{
		"session_id":  snap.SessionID,
		"added_notes": len(result.AddedNotes),
		"duration":    duration,
	}))

	i.reply(result, fields)
	i.recordHistory(ctx, snap, SourceCapture)
}

// Wait blocks until every admitted capture has finished, including ones
// still queued for a worker.
func (i *Ingester) Wait() {
	i.inflight.Wait()
	i.pool.Wait()
}

// RecordStored writes a snapshot stored outside the datagram path to history.
func (i *Ingester) RecordStored(ctx context.Context, snap Snapshot, source string) {
	i.recordHistory(ctx, snap, source)
}

func (i *Ingester) reply(msg any, fields logger.Fields) {
	if i.opts.Replier == nil {
		return
	}
	if err := i.opts.Replier.Send(msg); err != nil {
		logger.Warn("Reply to controller failed", fields.With(logger.Fields{"error": err.Error()}))
	}
}

func (i *Ingester) recordHistory(ctx context.Context, snap Snapshot, source string) {
	if i.opts.History == nil {
		return
	}
	if err := i.opts.History.Record(ctx, snap.SessionID, source, snap.Result); err != nil {
		logger.Warn("Failed to record result history", logger.Fields{"error": err.Error(), "session_id": snap.SessionID})
	}
}

func (i *Ingester) recordDatagram(ctx context.Context, kind payload.Kind, accepted bool, size int) {
	if i.opts.Metrics != nil {
		i.opts.Metrics.RecordDatagram(ctx, kind.String(), accepted, size)
	}
}
