package store

import (
	"context"
	"time"

	"github.com/domaintobiz/siteworker/internal/domain"
	"github.com/domaintobiz/siteworker/internal/logger"
)

const (
	jobsTable  = "site_jobs"
	sitesTable = "sites"

	dequeueProcedure  = "dequeue_job"
	progressProcedure = "update_job_progress"
)

// JobStore exposes the job lifecycle operations on top of the REST client.
type JobStore struct {
	client *Client
	queue  string
}

// NewJobStore creates a job store for the named queue.
func NewJobStore(client *Client, queueName string) *JobStore {
	if queueName == "" {
		queueName = jobsTable
	}
	return &JobStore{client: client, queue: queueName}
}

// Dequeue claims at most one queued job for workerID. The claim is a single
// server-side procedure that selects a queued row and marks it processing
// (status, worker_id, started_at) in one transaction, so concurrent workers
// can never claim the same job. Returns ErrNoJob when the queue is empty.
func (s *JobStore) Dequeue(ctx context.Context, workerID string) (*domain.Job, error) {
	rows, err := s.client.Rpc(dequeueProcedure, map[string]any{
		"queue_name": s.queue,
		"worker_id":  workerID,
	}).Execute(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoJob
	}
	return rowToJob(rows[0]), nil
}

// Complete marks a job completed with its aggregated result.
func (s *JobStore) Complete(ctx context.Context, jobID string, result map[string]any) error {
	_, err := s.client.Table(s.queue).
		Update(map[string]any{
			"status":       string(domain.JobStatusCompleted),
			"result_data":  result,
			"completed_at": nowISO(),
		}).
		Eq("id", jobID).
		Execute(ctx)
	return err
}

// Fail marks a job failed with the triggering error message.
func (s *JobStore) Fail(ctx context.Context, jobID, message string) error {
	_, err := s.client.Table(s.queue).
		Update(map[string]any{
			"status":        string(domain.JobStatusFailed),
			"error_message": message,
			"completed_at":  nowISO(),
		}).
		Eq("id", jobID).
		Execute(ctx)
	return err
}

// InsertSite creates the denormalized site record for a completed job.
func (s *JobStore) InsertSite(ctx context.Context, site *domain.Site) error {
	_, err := s.client.Table(sitesTable).Insert(site).Execute(ctx)
	return err
}

// ReportProgress emits a fire-and-forget progress event through the
// update_job_progress procedure. Failures are logged, never returned:
// progress reporting must not affect the job outcome.
func (s *JobStore) ReportProgress(ctx context.Context, ev *domain.ProgressEvent) {
	_, err := s.client.Rpc(progressProcedure, map[string]any{
		"p_job_id":    ev.JobID,
		"p_step_name": ev.StepName,
		"p_status":    string(ev.Status),
		"p_progress":  ev.Progress,
		"p_message":   ev.Message,
	}).Execute(ctx)
	if err != nil {
		logger.CtxWarn(ctx, "Failed to report progress for step %s: %v", ev.StepName, err)
		return
	}
	logger.CtxInfo(ctx, "Progress: %s - %s (%d%%): %s", ev.StepName, ev.Status, ev.Progress, ev.Message)
}

// CountQueued returns the number of currently queued jobs, for the admin
// status endpoint. Capped at 1000.
func (s *JobStore) CountQueued(ctx context.Context) (int, error) {
	rows, err := s.client.Table(s.queue).
		Select("id").
		Eq("status", string(domain.JobStatusQueued)).
		Limit(1000).
		Execute(ctx)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// rowToJob converts a REST row into the domain type. Timestamps are parsed
// best-effort: a malformed timestamp must not abort a claim.
func rowToJob(row Row) *domain.Job {
	job := &domain.Job{
		ID:           asString(row["id"]),
		Domain:       asString(row["domain"]),
		Status:       domain.JobStatus(asString(row["status"])),
		WorkerID:     asString(row["worker_id"]),
		UserID:       asString(row["user_id"]),
		ErrorMessage: asString(row["error_message"]),
	}
	if m, ok := row["job_data"].(map[string]any); ok {
		job.JobData = m
	}
	if m, ok := row["result_data"].(map[string]any); ok {
		job.ResultData = m
	}
	job.CreatedAt = parseTime(row["created_at"])
	job.StartedAt = parseTime(row["started_at"])
	job.CompletedAt = parseTime(row["completed_at"])
	return job
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseTime(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
