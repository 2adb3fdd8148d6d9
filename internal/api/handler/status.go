package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/domaintobiz/siteworker/internal/logger"
	"github.com/domaintobiz/siteworker/internal/worker"
)

// StatusSource exposes a point-in-time worker snapshot.
type StatusSource interface {
	Status() worker.Status
}

// QueueCounter counts jobs still waiting in the remote queue.
type QueueCounter interface {
	CountQueued(ctx context.Context) (int, error)
}

// StatusHandler reports the worker's current state and queue depth.
type StatusHandler struct {
	worker StatusSource
	queue  QueueCounter
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(w StatusSource, q QueueCounter) *StatusHandler {
	return &StatusHandler{worker: w, queue: q}
}

// Status returns the worker snapshot plus the remote queue depth. The queue
// count is best-effort: a store error is reported inline, not as a 5xx, so
// the endpoint stays useful when the store is down.
func (h *StatusHandler) Status(c *gin.Context) {
	resp := gin.H{
		"worker": h.worker.Status(),
	}

	if h.queue != nil {
		queued, err := h.queue.CountQueued(c.Request.Context())
		if err != nil {
			logger.CtxWarn(c.Request.Context(), "Failed to count queued jobs: %v", err)
			resp["queue_error"] = err.Error()
		} else {
			resp["queued_jobs"] = queued
		}
	}

	c.JSON(http.StatusOK, resp)
}
