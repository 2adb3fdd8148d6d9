package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/domaintobiz/siteworker/internal/journal"
	"github.com/domaintobiz/siteworker/internal/logger"
)

// JobLog reads this worker's local journal. *journal.Journal implements it.
type JobLog interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
	EventsFor(ctx context.Context, jobID string) ([]journal.Event, error)
}

// JobsHandler serves journaled job history for the admin API.
type JobsHandler struct {
	log JobLog
}

// NewJobsHandler creates a jobs handler. log may be nil when the journal is
// disabled; endpoints then report 503.
func NewJobsHandler(log JobLog) *JobsHandler {
	return &JobsHandler{log: log}
}

// RecentJobs returns the most recently claimed jobs, newest first.
func (h *JobsHandler) RecentJobs(c *gin.Context) {
	if h.log == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}

	entries, err := h.log.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logger.With(nil).WithCount(len(entries)).Debug(c.Request.Context(), "Served recent jobs")

	c.JSON(http.StatusOK, gin.H{
		"jobs":  entries,
		"count": len(entries),
	})
}

// JobEvents returns the journaled progress event stream for one job.
func (h *JobsHandler) JobEvents(c *gin.Context) {
	if h.log == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
		return
	}

	jobID := c.Param("id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job id is required"})
		return
	}

	events, err := h.log.EventsFor(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id": jobID,
		"events": events,
		"count":  len(events),
	})
}
