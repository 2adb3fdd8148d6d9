package domain

import "time"

// JobStatus represents the lifecycle state of a site generation job.
// Values include JobStatusQueued, JobStatusProcessing, JobStatusCompleted, and JobStatusFailed.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job represents one unit of site generation work claimed from the shared queue.
// Rows live in the site_jobs table of the backing store; id and domain are
// immutable, completed/failed are terminal states.
type Job struct {
	ID           string         `json:"id"`
	Domain       string         `json:"domain"`
	Status       JobStatus      `json:"status"`
	WorkerID     string         `json:"worker_id,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	JobData      map[string]any `json:"job_data,omitempty"`
	ResultData   map[string]any `json:"result_data,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// DataString returns a string value from job_data, or empty if absent.
func (j *Job) DataString(key string) string {
	if j.JobData == nil {
		return ""
	}
	s, _ := j.JobData[key].(string)
	return s
}

// DataBool returns a boolean value from job_data, or false if absent.
func (j *Job) DataBool(key string) bool {
	if j.JobData == nil {
		return false
	}
	b, _ := j.JobData[key].(bool)
	return b
}

// DataMap returns a nested object from job_data, or nil if absent.
func (j *Job) DataMap(key string) map[string]any {
	if j.JobData == nil {
		return nil
	}
	m, _ := j.JobData[key].(map[string]any)
	return m
}
