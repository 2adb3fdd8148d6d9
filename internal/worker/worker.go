package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/domaintobiz/siteworker/internal/domain"
	"github.com/domaintobiz/siteworker/internal/logger"
	"github.com/domaintobiz/siteworker/internal/store"
)

// Claimer acquires at most one queued job per call. store.JobStore
// implements it; Dequeue returns store.ErrNoJob when the queue is empty.
type Claimer interface {
	Dequeue(ctx context.Context, workerID string) (*domain.Job, error)
}

// Runner executes the full pipeline for a claimed job. A non-nil error
// means the worker itself is unhealthy (the runner could not even persist
// a job outcome), and triggers a supervisor restart.
type Runner interface {
	Run(ctx context.Context, job *domain.Job) error
}

// ClaimRecorder is notified when a job is claimed; implemented by the
// local journal. May be nil.
type ClaimRecorder interface {
	RecordClaim(ctx context.Context, job *domain.Job, workerID string)
}

// Config holds the poll loop intervals.
type Config struct {
	// IdleInterval is slept when the queue is empty.
	IdleInterval time.Duration

	// ErrorInterval is slept when the claim call itself fails, so an
	// unavailable store backs off harder than an empty queue.
	ErrorInterval time.Duration

	// RestartCooldown is slept by the supervisor before restarting a
	// crashed poll loop.
	RestartCooldown time.Duration
}

// Worker is one site generation worker instance: a supervisor wrapping a
// poll loop that claims jobs and runs them strictly one at a time.
type Worker struct {
	claimer  Claimer
	runner   Runner
	recorder ClaimRecorder

	idleInterval    time.Duration
	errorInterval   time.Duration
	restartCooldown time.Duration

	mu            sync.RWMutex
	workerID      string
	state         string
	currentJobID  string
	currentDomain string
	startedAt     time.Time
	jobsProcessed int64
}

// Worker states reported on the admin status endpoint.
const (
	StateStarting   = "starting"
	StateIdle       = "idle"
	StateProcessing = "processing"
	StateBackoff    = "backoff"
	StateStopped    = "stopped"
)

// New creates a worker. recorder may be nil.
func New(claimer Claimer, runner Runner, recorder ClaimRecorder, cfg *Config) *Worker {
	w := &Worker{
		claimer:         claimer,
		runner:          runner,
		recorder:        recorder,
		idleInterval:    cfg.IdleInterval,
		errorInterval:   cfg.ErrorInterval,
		restartCooldown: cfg.RestartCooldown,
		state:           StateStarting,
		startedAt:       time.Now(),
	}
	if w.idleInterval <= 0 {
		w.idleInterval = 5 * time.Second
	}
	if w.errorInterval <= 0 {
		w.errorInterval = 10 * time.Second
	}
	if w.restartCooldown <= 0 {
		w.restartCooldown = 10 * time.Second
	}
	return w
}

// Status is a point-in-time snapshot of the worker for the admin API.
type Status struct {
	WorkerID      string    `json:"worker_id"`
	State         string    `json:"state"`
	CurrentJobID  string    `json:"current_job_id,omitempty"`
	CurrentDomain string    `json:"current_domain,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	JobsProcessed int64     `json:"jobs_processed"`
}

// Status returns the current worker snapshot.
func (w *Worker) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Status{
		WorkerID:      w.workerID,
		State:         w.state,
		CurrentJobID:  w.currentJobID,
		CurrentDomain: w.currentDomain,
		StartedAt:     w.startedAt,
		JobsProcessed: w.jobsProcessed,
	}
}

// Run is the supervisor: it restarts the poll loop after any escaped
// failure, with a cool-down and a freshly minted worker identity each
// time. It returns when ctx is cancelled; cancellation is observed between
// iterations, never inside an in-flight call.
func (w *Worker) Run(ctx context.Context) {
	for ctx.Err() == nil {
		workerID := newWorkerID()
		w.setIdentity(workerID)
		logger.CtxInfo(ctx, "Starting site generation worker %s", workerID)

		err := w.poll(logger.SetWorkerID(ctx, workerID), workerID)
		if ctx.Err() != nil {
			break
		}
		logger.CtxError(ctx, "Worker crashed: %v, restarting in %s", err, w.restartCooldown)
		w.setState(StateBackoff, "", "")
		sleep(ctx, w.restartCooldown)
	}

	w.setState(StateStopped, "", "")
	logger.CtxInfo(ctx, "Worker stopped")
}

// poll claims and processes jobs until ctx is cancelled. The queue being
// empty and the claim call failing both keep the loop alive; they differ
// only in backoff duration. A panic or an error escaping the runner ends
// the loop and is handed to the supervisor.
func (w *Worker) poll(ctx context.Context, workerID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("poll loop panic: %v", r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		job, claimErr := w.claimer.Dequeue(ctx, workerID)
		if claimErr != nil {
			if errors.Is(claimErr, store.ErrNoJob) {
				w.setState(StateIdle, "", "")
				sleep(ctx, w.idleInterval)
				continue
			}
			logger.CtxError(ctx, "Queue polling error: %v", claimErr)
			w.setState(StateBackoff, "", "")
			sleep(ctx, w.errorInterval)
			continue
		}

		logger.CtxInfo(ctx, "Processing job %s for domain: %s", job.ID, job.Domain)
		if w.recorder != nil {
			w.recorder.RecordClaim(ctx, job, workerID)
		}

		w.setState(StateProcessing, job.ID, job.Domain)
		if runErr := w.runner.Run(ctx, job); runErr != nil {
			return runErr
		}
		w.finishJob()
	}
}

func (w *Worker) setIdentity(workerID string) {
	w.mu.Lock()
	w.workerID = workerID
	w.state = StateStarting
	w.mu.Unlock()
}

func (w *Worker) setState(state, jobID, jobDomain string) {
	w.mu.Lock()
	w.state = state
	w.currentJobID = jobID
	w.currentDomain = jobDomain
	w.mu.Unlock()
}

func (w *Worker) finishJob() {
	w.mu.Lock()
	w.state = StateIdle
	w.currentJobID = ""
	w.currentDomain = ""
	w.jobsProcessed++
	w.mu.Unlock()
}

func newWorkerID() string {
	return "worker_" + uuid.New().String()[:8]
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
