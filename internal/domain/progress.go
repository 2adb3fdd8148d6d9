package domain

// StageStatus is the state of a single pipeline stage as reported in
// progress events: running while the stage executes, then completed or failed.
type StageStatus string

const (
	StageStatusRunning   StageStatus = "running"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
)

// Pipeline stage names in execution order. StepError is the synthetic step
// reported when the pipeline aborts.
const (
	StepInitialize = "initialize"
	StepAnalyze    = "analyze"
	StepStrategy   = "strategy"
	StepDesign     = "design"
	StepContent    = "content"
	StepBuild      = "build"
	StepDeploy     = "deploy"
	StepError      = "error"
)

// Fixed progress percentages per stage. Each remote stage reports its
// floor when it starts running and its ceiling when it completes.
const (
	ProgressInitialize      = 0
	ProgressAnalyzeStart    = 10
	ProgressAnalyzeDone     = 20
	ProgressStrategyStart   = 30
	ProgressStrategyDone    = 40
	ProgressDesignStart     = 50
	ProgressDesignDone      = 60
	ProgressContentStart    = 70
	ProgressContentDone     = 80
	ProgressBuildStart      = 85
	ProgressBuildDone       = 90
	ProgressDeployStart     = 95
	ProgressDeployDone      = 100
)

// ProgressEvent is a fire-and-forget progress notification for a job.
// Emitting one never affects the job's outcome.
type ProgressEvent struct {
	JobID    string      `json:"job_id"`
	StepName string      `json:"step_name"`
	Status   StageStatus `json:"status"`
	Progress int         `json:"progress"`
	Message  string      `json:"message"`
}
