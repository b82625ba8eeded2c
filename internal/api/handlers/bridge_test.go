package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conceptual-Machines/melody-bridge/internal/bridge"
	"github.com/Conceptual-Machines/melody-bridge/internal/history"
	"github.com/Conceptual-Machines/melody-bridge/internal/models"
)

const resultBody = `{
	"full_track": [
		{"pitch": "C4", "start": 0, "duration": 1},
		{"pitch": "E4", "start": 1, "duration": 1}
	],
	"added_notes": [
		{"pitch": "E4", "start": 1, "duration": 1}
	]
}`

type bridgeFixture struct {
	router   *gin.Engine
	store    *bridge.Store
	notifier *fakeNotifier
	recorder *fakeRecorder
}

func newBridgeFixture(hist HistoryReader) *bridgeFixture {
	f := &bridgeFixture{
		store:    bridge.NewStore(),
		notifier: &fakeNotifier{},
		recorder: &fakeRecorder{},
	}
	h := NewBridgeHandler(f.store, f.notifier, f.recorder, hist)

	f.router = gin.New()
	f.router.POST("/bridge/start-capture", h.StartCapture)
	f.router.GET("/bridge/latest", h.Latest)
	f.router.POST("/bridge/result", h.StoreResult)
	f.router.POST("/bridge/notify-max", h.NotifyMax)
	f.router.GET("/bridge/status", h.Status)
	f.router.GET("/bridge/history", h.History)
	return f
}

func latest(t *testing.T, f *bridgeFixture) models.BridgeLatestResponse {
	t.Helper()
	w := perform(t, f.router, http.MethodGet, "/bridge/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.BridgeLatestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestBridge_CaptureCycle(t *testing.T) {
	f := newBridgeFixture(nil)

	w := perform(t, f.router, http.MethodPost, "/bridge/start-capture", "")
	require.Equal(t, http.StatusOK, w.Code)
	started := decode(t, w)
	assert.Equal(t, "listening", started["status"])
	sessionID, _ := started["session_id"].(string)
	require.NotEmpty(t, sessionID)

	before := latest(t, f)
	assert.False(t, before.HasData)
	assert.Nil(t, before.Timestamp)
	assert.Empty(t, before.AddedNotes)
	assert.NotNil(t, before.AddedNotes)

	w = perform(t, f.router, http.MethodPost, "/bridge/result", resultBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stored := decode(t, w)
	assert.Equal(t, "ok", stored["status"])
	assert.Equal(t, "Result stored for 1 notes", stored["message"])

	after := latest(t, f)
	assert.True(t, after.HasData)
	require.NotNil(t, after.Timestamp)
	assert.Equal(t, sessionID, after.SessionID)
	assert.Len(t, after.FullTrack, 2)
	require.Len(t, after.AddedNotes, 1)
	assert.Equal(t, "E4", after.AddedNotes[0].Pitch)

	require.Len(t, f.recorder.calls, 1)
	assert.Equal(t, bridge.SourceHTTP, f.recorder.calls[0].source)

	perform(t, f.router, http.MethodPost, "/bridge/start-capture", "")
	assert.False(t, latest(t, f).HasData)
}

func TestBridge_StoreResultRecoversWrappedJSON(t *testing.T) {
	f := newBridgeFixture(nil)

	w := perform(t, f.router, http.MethodPost, "/bridge/result", `junk_prefix{"full_track":[],"added_notes":[]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, latest(t, f).HasData)
}

func TestBridge_StoreResultRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json at all"},
		{"missing added_notes", `{"full_track": []}`},
		{"bad note", `{"full_track": [{"pitch": "C4"}], "added_notes": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBridgeFixture(nil)
			f.store.StartCapture()

			w := perform(t, f.router, http.MethodPost, "/bridge/result", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode(t, w), "error")
			assert.False(t, latest(t, f).HasData)
			assert.Empty(t, f.recorder.calls)
		})
	}
}

func TestBridge_NotifyMax(t *testing.T) {
	f := newBridgeFixture(nil)

	w := perform(t, f.router, http.MethodPost, "/bridge/notify-max", `{"event":"result_ready","data":{"count":3}}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "sent", body["status"])
	assert.Equal(t, "127.0.0.1:7401", body["addr"])

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, "result_ready", f.notifier.events[0].event)
	assert.EqualValues(t, 3, f.notifier.events[0].data["count"])
}

func TestBridge_NotifyMaxWithoutData(t *testing.T) {
	f := newBridgeFixture(nil)

	w := perform(t, f.router, http.MethodPost, "/bridge/notify-max", `{"event":"ping"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.notifier.events, 1)
	assert.NotNil(t, f.notifier.events[0].data)
}

func TestBridge_NotifyMaxErrors(t *testing.T) {
	f := newBridgeFixture(nil)

	w := perform(t, f.router, http.MethodPost, "/bridge/notify-max", `{"data":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.notifier.err = errBoom
	w = perform(t, f.router, http.MethodPost, "/bridge/notify-max", `{"event":"ping"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestBridge_Status(t *testing.T) {
	f := newBridgeFixture(nil)

	body := decode(t, perform(t, f.router, http.MethodGet, "/bridge/status", ""))
	assert.Equal(t, "idle", body["state"])
	assert.NotContains(t, body, "listen_start")

	f.store.StartCapture()
	body = decode(t, perform(t, f.router, http.MethodGet, "/bridge/status", ""))
	assert.Equal(t, "listening", body["state"])
	assert.Contains(t, body, "listen_start")
	assert.Contains(t, body, "listening_for")

	perform(t, f.router, http.MethodPost, "/bridge/result", resultBody)
	body = decode(t, perform(t, f.router, http.MethodGet, "/bridge/status", ""))
	assert.Equal(t, "stored", body["state"])
	assert.EqualValues(t, 1, body["added_notes"])
	assert.Contains(t, body, "stored_at")
}

func TestBridge_HistoryDisabled(t *testing.T) {
	f := newBridgeFixture(nil)

	w := perform(t, f.router, http.MethodGet, "/bridge/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["enabled"])
	assert.Empty(t, body["entries"])
}

func TestBridge_History(t *testing.T) {
	hist := &fakeHistory{entries: []history.Entry{{ID: 7, SessionID: "s1", Source: bridge.SourceUDP}}}
	f := newBridgeFixture(hist)

	w := perform(t, f.router, http.MethodGet, "/bridge/history?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["enabled"])
	assert.Len(t, body["entries"], 1)
	assert.Equal(t, 5, hist.lastLimit)

	perform(t, f.router, http.MethodGet, "/bridge/history", "")
	assert.Equal(t, history.DefaultLimit, hist.lastLimit)

	w = perform(t, f.router, http.MethodGet, "/bridge/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	hist.err = errBoom
	w = perform(t, f.router, http.MethodGet, "/bridge/history", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
