package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conceptual-Machines/melody-bridge/internal/models"
	"github.com/Conceptual-Machines/melody-bridge/internal/osc"
)

const resultJSON = `{"full_track":[{"pitch":"C4","start":0,"duration":1},{"pitch":"D4","start":1,"duration":1}],"added_notes":[{"pitch":"D4","start":1,"duration":1}]}`

const captureJSON = `{"original_notes":[{"pitch":60,"start":0,"duration":1}],"mood":"calm","bpm":120,"length_value":2,"length_unit":"bar","adventureness":10}`

func TestIngester_RawResultIsStored(t *testing.T) {
	store := NewStore()
	store.StartCapture()
	history := &fakeHistory{}
	m := &fakeMetrics{}
	ing := NewIngester(store, IngesterOptions{History: history, Metrics: m})

	ing.HandleDatagram(context.Background(), []byte(resultJSON), nil)

	snap := store.ReadLatest()
	require.True(t, snap.HasData)
	assert.Len(t, snap.Result.FullTrack, 2)
	assert.Equal(t, []string{SourceUDP}, history.recorded())
	assert.Equal(t, []datagramCount{{"result", true}}, m.counts())
}

func TestIngester_PacketAndNoisyBodies(t *testing.T) {
	bodies := map[string][]byte{
		"osc packet":     osc.Encode("/json", resultJSON),
		"junk prefix":    []byte("junk_prefix" + resultJSON),
		"trailing bytes": append(osc.Encode("/json", resultJSON), 'x', 'y'),
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			store := NewStore()
			ing := NewIngester(store, IngesterOptions{})

			ing.HandleDatagram(context.Background(), body, nil)
			assert.True(t, store.ReadLatest().HasData)
		})
	}
}

func TestIngester_BadInputIsDropped(t *testing.T) {
	inputs := map[string][]byte{
		"not json":      []byte("not json at all"),
		"wrong schema":  []byte(`{"full_track":[]}`),
		"bad note type": []byte(`{"full_track":"x","added_notes":[]}`),
		"empty":         nil,
		"binary":        {0xff, 0x00, 0x13, 0x37},
	}

	for name, body := range inputs {
		t.Run(name, func(t *testing.T) {
			store := NewStore()
			m := &fakeMetrics{}
			ing := NewIngester(store, IngesterOptions{Metrics: m})

			assert.NotPanics(t, func() {
				ing.HandleDatagram(context.Background(), body, nil)
			})
			assert.False(t, store.ReadLatest().HasData)
			require.Len(t, m.counts(), 1)
			assert.False(t, m.counts()[0].accepted)
		})
	}
}

func TestIngester_CaptureIsCompletedStoredAndReplied(t *testing.T) {
	store := NewStore()
	store.StartCapture()
	replier := &fakeReplier{}
	history := &fakeHistory{}
	completer := &fakeCompleter{fn: func(_ context.Context, req models.CompleteRequest) (*models.MelodyResult, error) {
		added := []models.NoteEvent{{Pitch: "E4", Start: 1, Duration: 7}}
		return &models.MelodyResult{
			FullTrack:  append(append([]models.NoteEvent{}, req.OriginalNotes...), added...),
			AddedNotes: added,
		}, nil
	}}
	ing := NewIngester(store, IngesterOptions{Completer: completer, Replier: replier, History: history, Workers: 1})

	ing.HandleDatagram(context.Background(), osc.Encode("/json", captureJSON), nil)

	ing.Wait()

	require.Equal(t, 1, completer.callCount())
	assert.Equal(t, "60", completer.calls[0].OriginalNotes[0].Pitch)
	assert.Equal(t, "bar", completer.calls[0].LengthUnit)

	snap := store.ReadLatest()
	assert.Len(t, snap.Result.FullTrack, 2)
	require.Len(t, replier.messages(), 1)
	assert.IsType(t, &models.MelodyResult{}, replier.messages()[0])
	assert.Equal(t, []string{SourceCapture}, history.recorded())
}

func TestIngester_CaptureFailureRepliesWithError(t *testing.T) {
	store := NewStore()
	replier := &fakeReplier{}
	completer := &fakeCompleter{fn: func(context.Context, models.CompleteRequest) (*models.MelodyResult, error) {
		return nil, errors.New("model unavailable")
	}}
	ing := NewIngester(store, IngesterOptions{Completer: completer, Replier: replier})

	ing.HandleDatagram(context.Background(), []byte(captureJSON), nil)

	ing.Wait()
	require.Len(t, replier.messages(), 1)
	assert.Equal(t, map[string]any{"error": "model unavailable"}, replier.messages()[0])
	assert.False(t, store.ReadLatest().HasData)
}

func TestIngester_CaptureTimesOut(t *testing.T) {
	store := NewStore()
	replier := &fakeReplier{}
	completer := &fakeCompleter{fn: func(ctx context.Context, _ models.CompleteRequest) (*models.MelodyResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	ing := NewIngester(store, IngesterOptions{Completer: completer, Replier: replier, CompletionTimeout: 20 * time.Millisecond})

	ing.HandleDatagram(context.Background(), []byte(captureJSON), nil)

	ing.Wait()
	require.Len(t, replier.messages(), 1)
	msg := replier.messages()[0].(map[string]any)
	assert.Contains(t, msg["error"], "deadline exceeded")
}

func TestIngester_CaptureWithoutCompleterIsDropped(t *testing.T) {
	store := NewStore()
	m := &fakeMetrics{}
	ing := NewIngester(store, IngesterOptions{Metrics: m})

	ing.HandleDatagram(context.Background(), []byte(captureJSON), nil)

	assert.Equal(t, []datagramCount{{"capture", false}}, m.counts())
}

func echoCompleter() *fakeCompleter {
	return &fakeCompleter{fn: func(_ context.Context, req models.CompleteRequest) (*models.MelodyResult, error) {
		added := []models.NoteEvent{{Pitch: "E4", Start: 1, Duration: 1}}
		return &models.MelodyResult{
			FullTrack:  append(append([]models.NoteEvent{}, req.OriginalNotes...), added...),
			AddedNotes: added,
		}, nil
	}}
}

func TestIngester_WaitCoversAdmittedCaptures(t *testing.T) {
	for n := 0; n < 100; n++ {
		store := NewStore()
		replier := &fakeReplier{}
		completer := echoCompleter()
		ing := NewIngester(store, IngesterOptions{Completer: completer, Replier: replier, Workers: 2})

		ing.HandleDatagram(context.Background(), []byte(captureJSON), nil)
		ing.Wait()

		require.Equal(t, 1, completer.callCount(), "iteration %d", n)
		require.True(t, store.ReadLatest().HasData, "iteration %d", n)
		require.Len(t, replier.messages(), 1, "iteration %d", n)
	}
}

func TestIngester_QueueFullRepliesBusy(t *testing.T) {
	store := NewStore()
	replier := &fakeReplier{}
	m := &fakeMetrics{}
	release := make(chan struct{})
	completer := &fakeCompleter{fn: func(_ context.Context, req models.CompleteRequest) (*models.MelodyResult, error) {
		<-release
		return &models.MelodyResult{FullTrack: req.OriginalNotes, AddedNotes: []models.NoteEvent{}}, nil
	}}
	ing := NewIngester(store, IngesterOptions{
		Completer: completer,
		Replier:   replier,
		Metrics:   m,
		Workers:   1,
		QueueSize: 1,
	})

	for n := 0; n < 3; n++ {
		ing.HandleDatagram(context.Background(), []byte(captureJSON), nil)
	}

	// the third capture is refused synchronously, before any completion ran
	require.Len(t, replier.messages(), 1)
	assert.Equal(t, map[string]any{"error": BusyReply}, replier.messages()[0])
	assert.Equal(t, []datagramCount{
		{"capture", true},
		{"capture", true},
		{"capture", false},
	}, m.counts())

	close(release)
	ing.Wait()

	assert.Equal(t, 2, completer.callCount())
	assert.Len(t, replier.messages(), 3)

	// slots are freed once completions finish
	ing.HandleDatagram(context.Background(), []byte(captureJSON), nil)
	ing.Wait()
	assert.Equal(t, 3, completer.callCount())
}

func TestIngester_CompletionSurvivesReceiverShutdown(t *testing.T) {
	store := NewStore()
	replier := &fakeReplier{}
	started := make(chan struct{})
	release := make(chan struct{})
	var ctxErr error
	completer := &fakeCompleter{fn: func(ctx context.Context, req models.CompleteRequest) (*models.MelodyResult, error) {
		close(started)
		<-release
		ctxErr = ctx.Err()
		return &models.MelodyResult{FullTrack: req.OriginalNotes, AddedNotes: []models.NoteEvent{}}, nil
	}}
	ing := NewIngester(store, IngesterOptions{Completer: completer, Replier: replier, CompletionTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	ing.HandleDatagram(ctx, []byte(captureJSON), nil)
	<-started
	cancel()
	close(release)
	ing.Wait()

	assert.NoError(t, ctxErr)
	assert.True(t, store.ReadLatest().HasData)
	require.Len(t, replier.messages(), 1)
	assert.IsType(t, &models.MelodyResult{}, replier.messages()[0])
}
