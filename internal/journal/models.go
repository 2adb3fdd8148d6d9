package journal

import "time"

// Entry is the worker-local record of one claimed job. The remote store is
// authoritative; the journal is this worker's own audit trail and survives
// independently of store availability.
type Entry struct {
	JobID      string     `gorm:"type:text;primaryKey" json:"job_id"`
	Domain     string     `gorm:"type:text;not null" json:"domain"`
	WorkerID   string     `gorm:"type:text;not null;index" json:"worker_id"`
	Status     string     `gorm:"default:processing" json:"status"`
	Error      string     `json:"error,omitempty"`
	ClaimedAt  time.Time  `json:"claimed_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Entry.
func (Entry) TableName() string {
	return "journal_entries"
}

// Event is one progress event as emitted, in order, for a journaled job.
type Event struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID     string    `gorm:"type:text;not null;index" json:"job_id"`
	StepName  string    `gorm:"type:text;not null" json:"step_name"`
	Status    string    `gorm:"type:text;not null" json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Event.
func (Event) TableName() string {
	return "journal_events"
}
