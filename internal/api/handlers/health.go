package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const dbPingTimeout = 2 * time.Second

type HealthHandler struct {
	db         *gorm.DB
	listenAddr string
	replyAddr  string
}

// NewHealthHandler reports on the UDP endpoints and, when db is non-nil, the history database.
func NewHealthHandler(db *gorm.DB, listenAddr, replyAddr string) *HealthHandler {
	return &HealthHandler{db: db, listenAddr: listenAddr, replyAddr: replyAddr}
}

// HealthCheck returns the health status of the bridge
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status": "healthy",
		"bridge": gin.H{
			"listen_addr": h.listenAddr,
			"reply_addr":  h.replyAddr,
		},
	}

	if h.db == nil {
		body["database"] = "disabled"
		c.JSON(status, body)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), dbPingTimeout)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["database"] = "unreachable"
	} else {
		body["database"] = "ok"
	}

	c.JSON(status, body)
}
