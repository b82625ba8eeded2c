package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Conceptual-Machines/melody-bridge/internal/completion"
	"github.com/Conceptual-Machines/melody-bridge/internal/logger"
	"github.com/Conceptual-Machines/melody-bridge/internal/models"
)

// Completer continues a seed melody.
type Completer interface {
	Complete(ctx context.Context, req models.CompleteRequest) (*models.MelodyResult, error)
}

type CompleteHandler struct {
	completer Completer
}

func NewCompleteHandler(completer Completer) *CompleteHandler {
	return &CompleteHandler{completer: completer}
}

// Complete handles POST /complete
func (h *CompleteHandler) Complete(c *gin.Context) {
	var req models.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.completer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": completion.ErrNoProvider.Error()})
		return
	}

	result, err := h.completer.Complete(c.Request.Context(), req)
	if err != nil {
		c.JSON(completionStatus(err), gin.H{"error": err.Error()})
		if !completion.IsValidation(err) {
			logger.Error("Completion failed", err, logger.WithContext(c))
		}
		return
	}

	c.JSON(http.StatusOK, models.CompleteResponse{
		FullTrack:  result.FullTrack,
		AddedNotes: result.AddedNotes,
	})
}

// Default handles GET /default
func (h *CompleteHandler) Default(c *gin.Context) {
	resp, err := completion.Defaults()
	if err != nil {
		logger.Error("Failed to build default seed", err, logger.WithContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load default seed"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func completionStatus(err error) int {
	switch {
	case completion.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, completion.ErrNoProvider):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, completion.ErrEmptyResponse),
		errors.Is(err, completion.ErrInvalidContinuation),
		errors.Is(err, completion.ErrContinuationOverlap):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
