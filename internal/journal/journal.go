package journal

import (
	"context"
	"time"

	"github.com/domaintobiz/siteworker/internal/domain"
	"github.com/domaintobiz/siteworker/internal/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Journal records claimed jobs and their progress event stream locally.
// Every write is best-effort: journal failures are logged and never affect
// job processing, the same policy as remote progress reporting.
type Journal struct {
	db *gorm.DB
}

// New creates a journal over an opened database.
func New(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

// RecordClaim journals a freshly claimed job as processing.
func (j *Journal) RecordClaim(ctx context.Context, job *domain.Job, workerID string) {
	entry := &Entry{
		JobID:     job.ID,
		Domain:    job.Domain,
		WorkerID:  workerID,
		Status:    string(domain.JobStatusProcessing),
		ClaimedAt: time.Now(),
	}
	err := j.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}},
			UpdateAll: true,
		}).
		Create(entry).Error
	if err != nil {
		logger.CtxWarn(ctx, "Failed to journal job claim: %v", err)
	}
}

// RecordEvent journals one progress event and folds terminal events back
// into the entry: the error step marks the entry failed, a completed
// deploy step marks it completed.
func (j *Journal) RecordEvent(ctx context.Context, ev *domain.ProgressEvent) {
	event := &Event{
		JobID:    ev.JobID,
		StepName: ev.StepName,
		Status:   string(ev.Status),
		Progress: ev.Progress,
		Message:  ev.Message,
	}
	if err := j.db.WithContext(ctx).Create(event).Error; err != nil {
		logger.CtxWarn(ctx, "Failed to journal progress event: %v", err)
		return
	}

	switch {
	case ev.StepName == domain.StepError && ev.Status == domain.StageStatusFailed:
		j.finishEntry(ctx, ev.JobID, string(domain.JobStatusFailed), ev.Message)
	case ev.StepName == domain.StepDeploy && ev.Status == domain.StageStatusCompleted:
		j.finishEntry(ctx, ev.JobID, string(domain.JobStatusCompleted), "")
	}
}

func (j *Journal) finishEntry(ctx context.Context, jobID, status, errMsg string) {
	now := time.Now()
	updates := map[string]any{
		"status":      status,
		"finished_at": &now,
	}
	if errMsg != "" {
		updates["error"] = errMsg
	}
	err := j.db.WithContext(ctx).
		Model(&Entry{}).
		Where("job_id = ?", jobID).
		Updates(updates).Error
	if err != nil {
		logger.CtxWarn(ctx, "Failed to finalize journal entry: %v", err)
	}
}

// Recent returns the most recently claimed entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []Entry
	err := j.db.WithContext(ctx).
		Order("claimed_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// EventsFor returns the journaled event stream for one job, oldest first.
func (j *Journal) EventsFor(ctx context.Context, jobID string) ([]Event, error) {
	var events []Event
	err := j.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("id ASC").
		Find(&events).Error
	return events, err
}
