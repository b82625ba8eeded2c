package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Conceptual-Machines/melody-bridge/internal/bridge"
)

type MetricsHandler struct {
	startTime time.Time
	version   string
	store     *bridge.Store
}

func NewMetricsHandler(version string, store *bridge.Store) *MetricsHandler {
	return &MetricsHandler{
		startTime: time.Now(),
		version:   version,
		store:     store,
	}
}

type MetricsResponse struct {
	Status    string        `json:"status"`
	Uptime    string        `json:"uptime"`
	Timestamp string        `json:"timestamp"`
	Version   string        `json:"version"`
	StartTime string        `json:"start_time"`
	System    SystemMetrics `json:"system"`
	Bridge    BridgeMetrics `json:"bridge"`
}

type SystemMetrics struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	MemAllocMB   uint64 `json:"mem_alloc_mb"`
	MemTotalMB   uint64 `json:"mem_total_mb"`
	NumGC        uint32 `json:"num_gc"`
}

type BridgeMetrics struct {
	State      string `json:"state"`
	SessionID  string `json:"session_id,omitempty"`
	AddedNotes int    `json:"added_notes"`
}

const (
	bytesToMB = 1024 * 1024
)

func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	st := h.store.Status()

	metrics := MetricsResponse{
		Status:    "healthy",
		Uptime:    formatDuration(time.Since(h.startTime)),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		StartTime: h.startTime.UTC().Format(time.RFC3339),
		System: SystemMetrics{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			MemAllocMB:   m.Alloc / bytesToMB,
			MemTotalMB:   m.TotalAlloc / bytesToMB,
			NumGC:        m.NumGC,
		},
		Bridge: BridgeMetrics{
			State:      st.State.String(),
			SessionID:  st.SessionID,
			AddedNotes: st.AddedNotes,
		},
	}

	c.JSON(http.StatusOK, metrics)
}
