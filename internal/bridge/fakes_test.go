package bridge

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/Conceptual-Machines/melody-bridge/internal/models"
)

type fakeCompleter struct {
	mu    sync.Mutex
	calls []models.CompleteRequest
	fn    func(ctx context.Context, req models.CompleteRequest) (*models.MelodyResult, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, req models.CompleteRequest) (*models.MelodyResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.fn(ctx, req)
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeReplier struct {
	mu   sync.Mutex
	sent []any
}

func (f *fakeReplier) Send(msg any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeReplier) messages() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.sent...)
}

type fakeHistory struct {
	mu      sync.Mutex
	sources []string
}

func (f *fakeHistory) Record(_ context.Context, _ string, source string, _ models.MelodyResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, source)
	return nil
}

func (f *fakeHistory) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sources...)
}

type datagramCount struct {
	kind     string
	accepted bool
}

type fakeMetrics struct {
	mu        sync.Mutex
	datagrams []datagramCount
}

func (f *fakeMetrics) RecordDatagram(_ context.Context, kind string, accepted bool, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.datagrams = append(f.datagrams, datagramCount{kind, accepted})
}

func (f *fakeMetrics) RecordCompletion(context.Context, string, time.Duration, bool) {}

func (f *fakeMetrics) counts() []datagramCount {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]datagramCount(nil), f.datagrams...)
}

type recordingHandler struct {
	mu    sync.Mutex
	got   [][]byte
	peers []net.Addr
}

func (h *recordingHandler) HandleDatagram(_ context.Context, data []byte, peer net.Addr) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, append([]byte(nil), data...))
	h.peers = append(h.peers, peer)
}

func (h *recordingHandler) datagrams() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]byte(nil), h.got...)
}
