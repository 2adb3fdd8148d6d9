package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/domaintobiz/siteworker/internal/domain"
	"github.com/domaintobiz/siteworker/internal/logger"
	"github.com/domaintobiz/siteworker/internal/metrics"
	"github.com/domaintobiz/siteworker/internal/store"
)

// ProgressRecorder receives a copy of every emitted progress event, in
// addition to the store-side report. Implemented by the local journal.
type ProgressRecorder interface {
	RecordEvent(ctx context.Context, ev *domain.ProgressEvent)
}

// ResultArchiver persists a completed job's aggregated result outside the
// store. Failures must be handled internally; archiving never affects the
// job outcome.
type ResultArchiver interface {
	ArchiveResult(ctx context.Context, jobID string, result map[string]any)
}

// Orchestrator drives the fixed six-stage generation pipeline for one
// claimed job at a time. Stages are strictly sequential and non-skippable;
// the first stage failure aborts the whole run. The orchestrator is
// fallback-agnostic: degraded-mode decisions live inside the stage calls.
type Orchestrator struct {
	jobs     *store.JobStore
	stages   *StageClient
	recorder ProgressRecorder
	archiver ResultArchiver
}

// NewOrchestrator creates a pipeline orchestrator. recorder and archiver
// may be nil.
func NewOrchestrator(jobs *store.JobStore, stages *StageClient, recorder ProgressRecorder, archiver ResultArchiver) *Orchestrator {
	return &Orchestrator{
		jobs:     jobs,
		stages:   stages,
		recorder: recorder,
		archiver: archiver,
	}
}

// Run executes the pipeline for a claimed job and persists the terminal
// status. Stage failures are absorbed here (job marked failed); the
// returned error is non-nil only when even the failure state could not be
// persisted, which the supervisor treats as a worker-level fault.
func (o *Orchestrator) Run(ctx context.Context, job *domain.Job) error {
	ctx = logger.SetJobID(ctx, job.ID)
	ctx = logger.SetDomain(ctx, job.Domain)

	logger.CtxInfo(ctx, "Starting job processing for %s", job.Domain)

	origin := o.stages.Origin(job.DataString("requestOrigin"))
	execID := executionID()

	o.emit(ctx, job.ID, domain.StepInitialize, domain.StageStatusRunning, domain.ProgressInitialize, "Starting site generation...")

	analysis, err := o.runAnalyze(ctx, job, origin)
	if err != nil {
		return o.abort(ctx, job, err)
	}

	strategy, err := o.runStrategy(ctx, job, origin, analysis, execID)
	if err != nil {
		return o.abort(ctx, job, err)
	}

	design := o.runDesign(ctx, job, origin, strategy, execID)

	content, err := o.runContent(ctx, job, origin, strategy, design, execID)
	if err != nil {
		return o.abort(ctx, job, err)
	}

	website, err := o.runBuild(ctx, job, origin, strategy, design, content, execID)
	if err != nil {
		return o.abort(ctx, job, err)
	}

	deployment, err := o.runDeploy(ctx, job, website)
	if err != nil {
		return o.abort(ctx, job, err)
	}

	result := map[string]any{
		"domain":          job.Domain,
		"domain_analysis": analysis,
		"strategy":        strategy,
		"design_system":   design,
		"content":         content,
		"website":         website,
		"deployment":      deployment,
		"completed_at":    time.Now().UTC().Format(time.RFC3339),
	}

	if err := o.jobs.Complete(ctx, job.ID, result); err != nil {
		return o.abort(ctx, job, fmt.Errorf("failed to persist completion: %w", err))
	}

	o.createSiteRecord(ctx, job, result, deployment)

	if o.archiver != nil {
		o.archiver.ArchiveResult(ctx, job.ID, result)
	}

	metrics.IncJobProcessed(string(domain.JobStatusCompleted))
	logger.CtxInfo(ctx, "Job completed successfully for %s", job.Domain)
	return nil
}

// abort marks the job failed and emits the terminal error event. Only a
// failure to persist the failed state escapes to the caller.
func (o *Orchestrator) abort(ctx context.Context, job *domain.Job, cause error) error {
	logger.CtxError(ctx, "Job failed for %s: %v", job.Domain, cause)

	if err := o.jobs.Fail(ctx, job.ID, cause.Error()); err != nil {
		return fmt.Errorf("failed to persist job failure (%v): %w", cause, err)
	}

	o.emit(ctx, job.ID, domain.StepError, domain.StageStatusFailed, 0, fmt.Sprintf("Job failed: %s", cause.Error()))
	metrics.IncJobProcessed(string(domain.JobStatusFailed))
	return nil
}

func (o *Orchestrator) runAnalyze(ctx context.Context, job *domain.Job, origin string) (map[string]any, error) {
	ctx = logger.SetStage(ctx, domain.StepAnalyze)
	o.emit(ctx, job.ID, domain.StepAnalyze, domain.StageStatusRunning, domain.ProgressAnalyzeStart, "Analyzing domain...")

	// Enqueuers may ship a precomputed analysis; the remote call is skipped.
	if pre := job.DataMap("bestDomainData"); pre != nil {
		logger.CtxInfo(ctx, "Using provided domain analysis data")
		o.emit(ctx, job.ID, domain.StepAnalyze, domain.StageStatusCompleted, domain.ProgressAnalyzeDone, "Domain analysis completed")
		return pre, nil
	}

	start := time.Now()
	analysis, err := o.stages.Analyze(ctx, origin, job.Domain)
	metrics.ObserveStageDuration(domain.StepAnalyze, time.Since(start))
	if err != nil {
		return nil, err
	}

	o.emit(ctx, job.ID, domain.StepAnalyze, domain.StageStatusCompleted, domain.ProgressAnalyzeDone, "Domain analysis completed")
	return analysis, nil
}

func (o *Orchestrator) runStrategy(ctx context.Context, job *domain.Job, origin string, analysis map[string]any, execID string) (map[string]any, error) {
	ctx = logger.SetStage(ctx, domain.StepStrategy)
	o.emit(ctx, job.ID, domain.StepStrategy, domain.StageStatusRunning, domain.ProgressStrategyStart, "Generating business strategy...")

	start := time.Now()
	strategy, err := o.stages.Strategy(ctx, origin, &StrategyRequest{
		DomainAnalysis: analysis,
		AnalysisID:     execID,
		Regenerate:     job.DataBool("regenerate"),
		UserComments:   job.DataString("comments"),
		ProjectID:      job.DataString("projectId"),
	})
	metrics.ObserveStageDuration(domain.StepStrategy, time.Since(start))
	if err != nil {
		return nil, err
	}

	o.emit(ctx, job.ID, domain.StepStrategy, domain.StageStatusCompleted, domain.ProgressStrategyDone, "Business strategy generated")
	return strategy, nil
}

// runDesign is the only stage with a degraded-mode policy: when the design
// collaborator fails, a built-in default design is substituted and the
// pipeline continues.
func (o *Orchestrator) runDesign(ctx context.Context, job *domain.Job, origin string, strategy map[string]any, execID string) map[string]any {
	ctx = logger.SetStage(ctx, domain.StepDesign)
	o.emit(ctx, job.ID, domain.StepDesign, domain.StageStatusRunning, domain.ProgressDesignStart, "Creating design system...")

	start := time.Now()
	design, err := o.stages.Design(ctx, origin, job.Domain, strategy, execID)
	metrics.ObserveStageDuration(domain.StepDesign, time.Since(start))
	if err != nil {
		logger.CtxWarn(ctx, "Design generation failed, using fallback design: %v", err)
		design = fallbackDesign()
	}

	o.emit(ctx, job.ID, domain.StepDesign, domain.StageStatusCompleted, domain.ProgressDesignDone, "Design system created")
	return design
}

func (o *Orchestrator) runContent(ctx context.Context, job *domain.Job, origin string, strategy, design map[string]any, execID string) (map[string]any, error) {
	ctx = logger.SetStage(ctx, domain.StepContent)
	o.emit(ctx, job.ID, domain.StepContent, domain.StageStatusRunning, domain.ProgressContentStart, "Generating website content...")

	start := time.Now()
	content, err := o.stages.Content(ctx, origin, &ContentRequest{
		Domain:       job.Domain,
		Strategy:     strategy,
		DesignSystem: design,
		ExecutionID:  execID,
		Regenerate:   job.DataBool("regenerate"),
		UserComments: job.DataString("comments"),
		ProjectID:    job.DataString("projectId"),
	})
	metrics.ObserveStageDuration(domain.StepContent, time.Since(start))
	if err != nil {
		return nil, err
	}

	o.emit(ctx, job.ID, domain.StepContent, domain.StageStatusCompleted, domain.ProgressContentDone, "Content generated")
	return content, nil
}

func (o *Orchestrator) runBuild(ctx context.Context, job *domain.Job, origin string, strategy, design, content map[string]any, execID string) (map[string]any, error) {
	ctx = logger.SetStage(ctx, domain.StepBuild)
	o.emit(ctx, job.ID, domain.StepBuild, domain.StageStatusRunning, domain.ProgressBuildStart, "Building website...")

	start := time.Now()
	website, err := o.stages.Build(ctx, origin, &BuildRequest{
		Domain:         job.Domain,
		Strategy:       strategy,
		DesignSystem:   design,
		WebsiteContent: content,
		ExecutionID:    execID,
		Regenerate:     job.DataBool("regenerate"),
		UserComments:   job.DataString("comments"),
		ProjectID:      job.DataString("projectId"),
	})
	metrics.ObserveStageDuration(domain.StepBuild, time.Since(start))
	if err != nil {
		return nil, err
	}

	o.emit(ctx, job.ID, domain.StepBuild, domain.StageStatusCompleted, domain.ProgressBuildDone, "Website built")
	return website, nil
}

// runDeploy is not a network call: the build stage already deployed the
// site, so this stage validates and extracts the deployment URL.
func (o *Orchestrator) runDeploy(ctx context.Context, job *domain.Job, website map[string]any) (map[string]any, error) {
	ctx = logger.SetStage(ctx, domain.StepDeploy)
	o.emit(ctx, job.ID, domain.StepDeploy, domain.StageStatusRunning, domain.ProgressDeployStart, "Deploying website...")

	deploymentURL, _ := website["deploymentUrl"].(string)
	if deploymentURL == "" {
		return nil, fmt.Errorf("no deployment URL returned from website generation")
	}

	deployment := map[string]any{
		"url":        deploymentURL,
		"status":     domain.SiteStatusDeployed,
		"deployedAt": time.Now().UTC().Format(time.RFC3339),
	}

	o.emit(ctx, job.ID, domain.StepDeploy, domain.StageStatusCompleted, domain.ProgressDeployDone, "Website deployed successfully")
	return deployment, nil
}

// createSiteRecord inserts the denormalized site projection. Insert
// failures are logged only: the job is already completed and terminal.
func (o *Orchestrator) createSiteRecord(ctx context.Context, job *domain.Job, result, deployment map[string]any) {
	userID := job.DataString("userId")
	if userID == "" {
		userID = job.UserID
	}

	deploymentURL, _ := deployment["url"].(string)
	strategy, _ := result["strategy"].(map[string]any)
	content, _ := result["content"].(map[string]any)
	design, _ := result["design_system"].(map[string]any)

	site := &domain.Site{
		JobID:         job.ID,
		UserID:        userID,
		Domain:        job.Domain,
		Subdomain:     domain.SubdomainFor(job.Domain),
		BusinessModel: strategy,
		ContentData:   content,
		DesignData:    design,
		DeploymentURL: deploymentURL,
		Status:        domain.SiteStatusDeployed,
		DeployedAt:    time.Now().UTC().Format(time.RFC3339),
	}

	if err := o.jobs.InsertSite(ctx, site); err != nil {
		logger.CtxError(ctx, "Failed to create site record: %v", err)
		return
	}
	logger.CtxInfo(ctx, "Site record created for %s", job.Domain)
}

func (o *Orchestrator) emit(ctx context.Context, jobID, step string, status domain.StageStatus, progress int, message string) {
	ev := &domain.ProgressEvent{
		JobID:    jobID,
		StepName: step,
		Status:   status,
		Progress: progress,
		Message:  message,
	}
	o.jobs.ReportProgress(ctx, ev)
	if o.recorder != nil {
		o.recorder.RecordEvent(ctx, ev)
	}
}

func executionID() string {
	return "worker_" + time.Now().Format("20060102_150405")
}
