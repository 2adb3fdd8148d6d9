package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID) on the admin API
	FieldRequestID = "request_id"

	// FieldJobID is the site generation job ID
	FieldJobID = "job_id"

	// FieldWorkerID is the identity of this worker instance
	FieldWorkerID = "worker_id"

	// FieldStage is the pipeline stage currently executing
	FieldStage = "stage"

	// FieldDomain is the target domain of the job
	FieldDomain = "domain"

	// FieldComponent is the component/module name
	FieldComponent = "component"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
