package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/domaintobiz/siteworker/internal/domain"
	"github.com/domaintobiz/siteworker/internal/store"
	"github.com/domaintobiz/siteworker/internal/transport"
)

// fakeCollaborator serves the five stage endpoints. Individual stages can be
// forced to fail; every request body is recorded per path.
type fakeCollaborator struct {
	srv      *httptest.Server
	mu       sync.Mutex
	bodies   map[string][]map[string]any
	failing  map[string]bool
	buildOut map[string]any
}

func newFakeCollaborator(t *testing.T) *fakeCollaborator {
	t.Helper()
	f := &fakeCollaborator{
		bodies:  map[string][]map[string]any{},
		failing: map[string]bool{},
		buildOut: map[string]any{
			"deploymentUrl": "https://example-com.sites.example",
			"pages":         []any{"index.html"},
		},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		raw, _ := io.ReadAll(req.Body)
		var body map[string]any
		json.Unmarshal(raw, &body)

		f.mu.Lock()
		f.bodies[req.URL.Path] = append(f.bodies[req.URL.Path], body)
		failed := f.failing[req.URL.Path]
		buildOut := f.buildOut
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if failed {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"success":false,"error":"stage exploded"}`))
			return
		}

		var data map[string]any
		switch req.URL.Path {
		case "/api/analyze":
			data = map[string]any{
				"bestDomain": map[string]any{"domain": "example.com", "score": 0.9},
			}
		case "/api/strategy":
			data = map[string]any{"businessModel": "saas"}
		case "/api/agents/design":
			data = map[string]any{"layout": "remote-layout"}
		case "/api/agents/content":
			data = map[string]any{"pages": map[string]any{"home": "welcome"}}
		case "/api/generate-website":
			data = buildOut
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeCollaborator) fail(path string) {
	f.mu.Lock()
	f.failing[path] = true
	f.mu.Unlock()
}

func (f *fakeCollaborator) calls(path string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[path]
}

// fakeJobStore is an httptest-backed store recording the PATCH, insert, and
// rpc traffic the orchestrator produces.
type fakeJobStore struct {
	srv *httptest.Server
	mu  sync.Mutex

	patches     []map[string]any
	siteInserts []map[string]any
	rpcCalls    []map[string]any
	failPatch   bool
	failSite    bool
}

func newFakeJobStore(t *testing.T) *fakeJobStore {
	t.Helper()
	f := &fakeJobStore{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		raw, _ := io.ReadAll(req.Body)
		var body map[string]any
		json.Unmarshal(raw, &body)

		f.mu.Lock()
		defer f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case req.Method == http.MethodPatch:
			if f.failPatch {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"message":"write failed"}`))
				return
			}
			f.patches = append(f.patches, body)
			w.Write([]byte(`[]`))
		case req.Method == http.MethodPost && req.URL.Path == "/rest/v1/sites":
			if f.failSite {
				w.WriteHeader(http.StatusConflict)
				w.Write([]byte(`{"message":"duplicate site"}`))
				return
			}
			f.siteInserts = append(f.siteInserts, body)
			w.Write([]byte(`[]`))
		case req.Method == http.MethodPost && strings.HasPrefix(req.URL.Path, "/rest/v1/rpc/"):
			f.rpcCalls = append(f.rpcCalls, body)
			w.Write([]byte(`[]`))
		default:
			w.Write([]byte(`[]`))
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeJobStore) jobStore(t *testing.T) *store.JobStore {
	t.Helper()
	tc, err := transport.NewClient(&transport.Config{BaseURL: f.srv.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("transport.NewClient: %v", err)
	}
	return store.NewJobStore(store.NewClientWithTransport(tc), "site_jobs")
}

// eventRecorder captures every emitted progress event in order.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (r *eventRecorder) RecordEvent(ctx context.Context, ev *domain.ProgressEvent) {
	r.mu.Lock()
	r.events = append(r.events, *ev)
	r.mu.Unlock()
}

type resultCapture struct {
	jobID  string
	result map[string]any
}

func (c *resultCapture) ArchiveResult(ctx context.Context, jobID string, result map[string]any) {
	c.jobID = jobID
	c.result = result
}

func testJob() *domain.Job {
	return &domain.Job{
		ID:     "job-1",
		Domain: "example.com",
		Status: domain.JobStatusProcessing,
		JobData: map[string]any{
			"userId": "user-7",
		},
	}
}

func newTestOrchestrator(t *testing.T, collab *fakeCollaborator, st *fakeJobStore) (*Orchestrator, *eventRecorder, *resultCapture) {
	t.Helper()
	stages := NewStageClient(&StageConfig{
		DefaultOrigin: collab.srv.URL,
		StageTimeout:  2 * time.Second,
		BuildTimeout:  2 * time.Second,
	})
	recorder := &eventRecorder{}
	archiver := &resultCapture{}
	return NewOrchestrator(st.jobStore(t), stages, recorder, archiver), recorder, archiver
}

func TestRunHappyPath(t *testing.T) {
	collab := newFakeCollaborator(t)
	st := newFakeJobStore(t)
	o, recorder, archiver := newTestOrchestrator(t, collab, st)

	if err := o.Run(context.Background(), testJob()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Every remote stage must have been called exactly once, in order.
	for _, path := range []string{"/api/analyze", "/api/strategy", "/api/agents/design", "/api/agents/content", "/api/generate-website"} {
		if n := len(collab.calls(path)); n != 1 {
			t.Errorf("%s called %d times, want 1", path, n)
		}
	}

	// Terminal patch carries completed status and the full result payload.
	if len(st.patches) != 1 {
		t.Fatalf("patches = %d, want 1", len(st.patches))
	}
	patch := st.patches[0]
	if patch["status"] != "completed" {
		t.Errorf("patch status = %v, want completed", patch["status"])
	}
	result, ok := patch["result_data"].(map[string]any)
	if !ok {
		t.Fatalf("result_data missing from patch: %v", patch)
	}
	for _, key := range []string{"domain", "domain_analysis", "strategy", "design_system", "content", "website", "deployment", "completed_at"} {
		if _, ok := result[key]; !ok {
			t.Errorf("result_data missing key %q", key)
		}
	}
	deployment, _ := result["deployment"].(map[string]any)
	if deployment["url"] != "https://example-com.sites.example" {
		t.Errorf("deployment url = %v", deployment["url"])
	}

	// A completed job gets exactly one site record.
	if len(st.siteInserts) != 1 {
		t.Fatalf("site inserts = %d, want 1", len(st.siteInserts))
	}
	site := st.siteInserts[0]
	if site["job_id"] != "job-1" || site["subdomain"] != "example-com" {
		t.Errorf("site insert = %v", site)
	}
	if site["status"] != "deployed" || site["user_id"] != "user-7" {
		t.Errorf("site insert = %v", site)
	}

	// Progress is monotone non-decreasing and ends at 100.
	if len(recorder.events) == 0 {
		t.Fatal("no progress events recorded")
	}
	last := 0
	for _, ev := range recorder.events {
		if ev.Progress < last {
			t.Errorf("progress went backwards: %d after %d (step %s)", ev.Progress, last, ev.StepName)
		}
		last = ev.Progress
	}
	final := recorder.events[len(recorder.events)-1]
	if final.StepName != domain.StepDeploy || final.Status != domain.StageStatusCompleted || final.Progress != 100 {
		t.Errorf("final event = %+v, want deploy completed at 100", final)
	}

	if archiver.jobID != "job-1" || archiver.result == nil {
		t.Errorf("archiver got jobID=%q result=%v", archiver.jobID, archiver.result)
	}
}

func TestRunUsesProvidedAnalysis(t *testing.T) {
	collab := newFakeCollaborator(t)
	st := newFakeJobStore(t)
	o, _, _ := newTestOrchestrator(t, collab, st)

	job := testJob()
	job.JobData["bestDomainData"] = map[string]any{"domain": "example.com", "precomputed": true}

	if err := o.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if n := len(collab.calls("/api/analyze")); n != 0 {
		t.Errorf("/api/analyze called %d times, want 0 when analysis is provided", n)
	}
	result := st.patches[0]["result_data"].(map[string]any)
	analysis, _ := result["domain_analysis"].(map[string]any)
	if analysis["precomputed"] != true {
		t.Errorf("domain_analysis = %v, want provided payload", analysis)
	}
}

func TestRunStrategyFailureAbortsJob(t *testing.T) {
	collab := newFakeCollaborator(t)
	collab.fail("/api/strategy")
	st := newFakeJobStore(t)
	o, recorder, _ := newTestOrchestrator(t, collab, st)

	if err := o.Run(context.Background(), testJob()); err != nil {
		t.Fatalf("Run returned error for stage failure: %v (stage failures must be absorbed)", err)
	}

	// Later stages must never run.
	for _, path := range []string{"/api/agents/design", "/api/agents/content", "/api/generate-website"} {
		if n := len(collab.calls(path)); n != 0 {
			t.Errorf("%s called %d times after strategy failure, want 0", path, n)
		}
	}

	if len(st.patches) != 1 {
		t.Fatalf("patches = %d, want 1", len(st.patches))
	}
	patch := st.patches[0]
	if patch["status"] != "failed" {
		t.Errorf("patch status = %v, want failed", patch["status"])
	}
	msg, _ := patch["error_message"].(string)
	if !strings.Contains(msg, "strategy generation failed") {
		t.Errorf("error_message = %q", msg)
	}

	if len(st.siteInserts) != 0 {
		t.Errorf("site inserts = %d, want 0 for failed job", len(st.siteInserts))
	}

	final := recorder.events[len(recorder.events)-1]
	if final.StepName != domain.StepError || final.Status != domain.StageStatusFailed || final.Progress != 0 {
		t.Errorf("final event = %+v, want error step failed at 0", final)
	}
}

func TestRunDesignFailureDegrades(t *testing.T) {
	collab := newFakeCollaborator(t)
	collab.fail("/api/agents/design")
	st := newFakeJobStore(t)
	o, _, _ := newTestOrchestrator(t, collab, st)

	if err := o.Run(context.Background(), testJob()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(st.patches) != 1 || st.patches[0]["status"] != "completed" {
		t.Fatalf("job not completed despite design fallback: %v", st.patches)
	}
	result := st.patches[0]["result_data"].(map[string]any)
	design, _ := result["design_system"].(map[string]any)
	if design["fallback"] != true {
		t.Errorf("design_system = %v, want built-in fallback", design)
	}

	// Content still runs, fed the fallback design.
	if n := len(collab.calls("/api/agents/content")); n != 1 {
		t.Errorf("/api/agents/content called %d times, want 1", n)
	}
}

func TestRunMissingDeploymentURLFails(t *testing.T) {
	collab := newFakeCollaborator(t)
	collab.mu.Lock()
	collab.buildOut = map[string]any{"pages": []any{"index.html"}}
	collab.mu.Unlock()
	st := newFakeJobStore(t)
	o, _, _ := newTestOrchestrator(t, collab, st)

	if err := o.Run(context.Background(), testJob()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(st.patches) != 1 || st.patches[0]["status"] != "failed" {
		t.Fatalf("patches = %v, want single failed patch", st.patches)
	}
	msg, _ := st.patches[0]["error_message"].(string)
	if !strings.Contains(msg, "no deployment URL") {
		t.Errorf("error_message = %q", msg)
	}
	if len(st.siteInserts) != 0 {
		t.Errorf("site inserts = %d, want 0", len(st.siteInserts))
	}
}

// TestRunUnpersistableFailureEscapes pins the one case where Run returns an
// error: the job failed and even the failure state could not be written.
func TestRunUnpersistableFailureEscapes(t *testing.T) {
	collab := newFakeCollaborator(t)
	collab.fail("/api/analyze")
	st := newFakeJobStore(t)
	st.mu.Lock()
	st.failPatch = true
	st.mu.Unlock()
	o, _, _ := newTestOrchestrator(t, collab, st)

	if err := o.Run(context.Background(), testJob()); err == nil {
		t.Fatal("Run succeeded, want error when the failed state cannot be persisted")
	}
}

func TestRunSiteInsertFailureDoesNotFailJob(t *testing.T) {
	collab := newFakeCollaborator(t)
	st := newFakeJobStore(t)
	st.mu.Lock()
	st.failSite = true
	st.mu.Unlock()

	o, _, _ := newTestOrchestrator(t, collab, st)
	if err := o.Run(context.Background(), testJob()); err != nil {
		t.Fatalf("Run: %v (site insert failures must be absorbed)", err)
	}
	if len(st.patches) != 1 || st.patches[0]["status"] != "completed" {
		t.Errorf("patches = %v, want completed", st.patches)
	}
}

func TestOriginPrefersJobRequestOrigin(t *testing.T) {
	c := NewStageClient(&StageConfig{DefaultOrigin: "https://fallback.example"})

	if got := c.Origin("https://custom.example"); got != "https://custom.example" {
		t.Errorf("Origin = %q, want caller origin", got)
	}
	if got := c.Origin(""); got != "https://fallback.example" {
		t.Errorf("Origin = %q, want default origin", got)
	}
}
