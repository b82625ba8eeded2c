package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Conceptual-Machines/melody-bridge/internal/bridge"
	"github.com/Conceptual-Machines/melody-bridge/internal/history"
	"github.com/Conceptual-Machines/melody-bridge/internal/logger"
	"github.com/Conceptual-Machines/melody-bridge/internal/models"
	"github.com/Conceptual-Machines/melody-bridge/internal/payload"
)

// EventSender delivers one-shot events to the controller.
type EventSender interface {
	Notify(event string, data map[string]any) error
	Addr() string
}

// StoredRecorder is told about results stored through HTTP.
type StoredRecorder interface {
	RecordStored(ctx context.Context, snap bridge.Snapshot, source string)
}

// HistoryReader lists recently stored results.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

type BridgeHandler struct {
	store    *bridge.Store
	notifier EventSender
	recorder StoredRecorder
	history  HistoryReader
}

// NewBridgeHandler serves the capture session over HTTP. recorder and
// history may be nil.
func NewBridgeHandler(store *bridge.Store, notifier EventSender, recorder StoredRecorder, history HistoryReader) *BridgeHandler {
	return &BridgeHandler{
		store:    store,
		notifier: notifier,
		recorder: recorder,
		history:  history,
	}
}

// StartCapture handles POST /bridge/start-capture
func (h *BridgeHandler) StartCapture(c *gin.Context) {
	capture := h.store.StartCapture()

	logger.Info("Capture started", logger.WithContext(c).With(logger.Fields{
		"session_id": capture.SessionID,
	}))

	c.JSON(http.StatusOK, gin.H{
		"status":     "listening",
		"message":    "Bridge is listening for the next result from the controller",
		"session_id": capture.SessionID,
	})
}

// Latest handles GET /bridge/latest. It answers immediately whether or not
// a result has arrived.
func (h *BridgeHandler) Latest(c *gin.Context) {
	c.JSON(http.StatusOK, latestResponse(h.store.ReadLatest()))
}

// StoreResult handles POST /bridge/result. The body may carry stray text
// around the JSON object, as datagrams do.
func (h *BridgeHandler) StoreResult(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	obj, err := payload.Recover(string(body))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := h.store.StoreResult(obj)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, payload.ErrInvalidSchema) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if h.recorder != nil {
		h.recorder.RecordStored(c.Request.Context(), snap, bridge.SourceHTTP)
	}

	logger.Info("Result stored", logger.WithContext(c).With(logger.Fields{
		"session_id":  snap.SessionID,
		"added_notes": len(snap.Result.AddedNotes),
	}))

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": fmt.Sprintf("Result stored for %d notes", len(snap.Result.AddedNotes)),
	})
}

// NotifyMax handles POST /bridge/notify-max
func (h *BridgeHandler) NotifyMax(c *gin.Context) {
	var req models.NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Data == nil {
		req.Data = map[string]any{}
	}

	if err := h.notifier.Notify(req.Event, req.Data); err != nil {
		logger.Error("Notify failed", err, logger.WithContext(c).With(logger.Fields{"event": req.Event}))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "sent",
		"message": fmt.Sprintf("Event %q sent to controller", req.Event),
		"addr":    h.notifier.Addr(),
	})
}

// Status handles GET /bridge/status
func (h *BridgeHandler) Status(c *gin.Context) {
	st := h.store.Status()

	body := gin.H{
		"state":       st.State.String(),
		"session_id":  st.SessionID,
		"added_notes": st.AddedNotes,
	}
	if !st.ListenStart.IsZero() {
		body["listen_start"] = st.ListenStart.UTC().Format(time.RFC3339Nano)
		body["listening_for"] = formatDuration(time.Since(st.ListenStart))
	}
	if !st.StoredAt.IsZero() {
		body["stored_at"] = st.StoredAt.UTC().Format(time.RFC3339Nano)
	}

	c.JSON(http.StatusOK, body)
}

// History handles GET /bridge/history?limit=N
func (h *BridgeHandler) History(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false, "entries": []history.Entry{}})
		return
	}

	limit := history.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries, err := h.history.Recent(c.Request.Context(), limit)
	if err != nil {
		logger.Error("Failed to list history", err, logger.WithContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list history"})
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	c.JSON(http.StatusOK, gin.H{"enabled": true, "entries": entries})
}

func latestResponse(snap bridge.Snapshot) models.BridgeLatestResponse {
	resp := models.BridgeLatestResponse{
		AddedNotes: []models.NoteEvent{},
		FullTrack:  []models.NoteEvent{},
		HasData:    snap.HasData,
		SessionID:  snap.SessionID,
	}
	if !snap.HasData {
		return resp
	}
	if snap.Result.AddedNotes != nil {
		resp.AddedNotes = snap.Result.AddedNotes
	}
	if snap.Result.FullTrack != nil {
		resp.FullTrack = snap.Result.FullTrack
	}
	ts := snap.Timestamp.UTC().Format(time.RFC3339Nano)
	resp.Timestamp = &ts
	return resp
}
