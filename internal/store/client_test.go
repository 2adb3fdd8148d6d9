package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/domaintobiz/siteworker/internal/transport"
)

// recordedRequest captures one request the fake store received.
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// fakeStore is an httptest-backed store endpoint whose handler decides the
// response per request; every request is recorded for assertions.
type fakeStore struct {
	srv      *httptest.Server
	requests []recordedRequest
	respond  func(req recordedRequest) (int, string)
}

func newFakeStore(t *testing.T) *fakeStore {
	t.Helper()
	f := &fakeStore{
		respond: func(recordedRequest) (int, string) { return 200, "[]" },
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		rec := recordedRequest{
			Method: req.Method,
			Path:   req.URL.Path,
			Query:  req.URL.RawQuery,
			Body:   body,
		}
		f.requests = append(f.requests, rec)
		status, payload := f.respond(rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(payload))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeStore) client(t *testing.T) *Client {
	t.Helper()
	tc, err := transport.NewClient(&transport.Config{
		BaseURL: f.srv.URL,
		Headers: map[string]string{
			"apikey":        "test-key",
			"Authorization": "Bearer test-key",
			"Prefer":        "return=representation",
		},
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("transport.NewClient: %v", err)
	}
	return NewClientWithTransport(tc)
}

func (f *fakeStore) last(t *testing.T) recordedRequest {
	t.Helper()
	if len(f.requests) == 0 {
		t.Fatal("fake store received no requests")
	}
	return f.requests[len(f.requests)-1]
}

func TestQuerySelectBuildsGet(t *testing.T) {
	f := newFakeStore(t)
	c := f.client(t)

	rows, err := c.Table("site_jobs").
		Select("id,domain").
		Eq("status", "queued").
		Order("created_at", true).
		Limit(5).
		Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %v, want empty", rows)
	}

	req := f.last(t)
	if req.Method != http.MethodGet {
		t.Errorf("method = %s, want GET", req.Method)
	}
	if req.Path != "/rest/v1/site_jobs" {
		t.Errorf("path = %s, want /rest/v1/site_jobs", req.Path)
	}
	for _, want := range []string{"select=id%2Cdomain", "status=eq.queued", "order=created_at.desc", "limit=5"} {
		if !containsParam(req.Query, want) {
			t.Errorf("query %q missing %q", req.Query, want)
		}
	}
}

func TestQueryInsertBuildsPost(t *testing.T) {
	f := newFakeStore(t)
	c := f.client(t)

	_, err := c.Table("sites").
		Insert(map[string]any{"job_id": "j1", "domain": "example.com"}).
		Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	req := f.last(t)
	if req.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", req.Method)
	}
	if req.Path != "/rest/v1/sites" {
		t.Errorf("path = %s, want /rest/v1/sites", req.Path)
	}
	var body map[string]any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("insert body is not JSON: %v", err)
	}
	if body["job_id"] != "j1" || body["domain"] != "example.com" {
		t.Errorf("insert body = %v", body)
	}
}

func TestQueryUpdateBuildsPatchWithFilters(t *testing.T) {
	f := newFakeStore(t)
	c := f.client(t)

	_, err := c.Table("site_jobs").
		Update(map[string]any{"status": "completed"}).
		Eq("id", "job-42").
		Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	req := f.last(t)
	if req.Method != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", req.Method)
	}
	if !containsParam(req.Query, "id=eq.job-42") {
		t.Errorf("query %q missing id filter", req.Query)
	}
	var body map[string]any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("patch body is not JSON: %v", err)
	}
	if body["status"] != "completed" {
		t.Errorf("patch body = %v, want status=completed", body)
	}
}

func TestRpcBuildsPost(t *testing.T) {
	f := newFakeStore(t)
	c := f.client(t)

	_, err := c.Rpc("dequeue_job", map[string]any{
		"queue_name": "site_jobs",
		"worker_id":  "worker_abc",
	}).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	req := f.last(t)
	if req.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", req.Method)
	}
	if req.Path != "/rest/v1/rpc/dequeue_job" {
		t.Errorf("path = %s, want /rest/v1/rpc/dequeue_job", req.Path)
	}
	var body map[string]any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("rpc body is not JSON: %v", err)
	}
	if body["queue_name"] != "site_jobs" || body["worker_id"] != "worker_abc" {
		t.Errorf("rpc body = %v", body)
	}
}

func TestDoReturnsAPIErrorOnNon2xx(t *testing.T) {
	f := newFakeStore(t)
	f.respond = func(recordedRequest) (int, string) {
		return 401, `{"message":"JWT expired"}`
	}
	c := f.client(t)

	_, err := c.Table("site_jobs").Execute(context.Background())
	if err == nil {
		t.Fatal("Execute succeeded, want APIError")
	}
	apiErr, ok := IsAPIError(err)
	if !ok {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 401 {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
}

func TestNormalizeRows(t *testing.T) {
	testCases := []struct {
		name string
		body string
		want int
	}{
		{name: "empty body", body: "", want: 0},
		{name: "json null", body: "null", want: 0},
		{name: "empty list", body: "[]", want: 0},
		{name: "single object wrapped", body: `{"id":"a"}`, want: 1},
		{name: "list passthrough", body: `[{"id":"a"},{"id":"b"}]`, want: 2},
		{name: "scalar rpc result", body: "42", want: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := normalizeRows([]byte(tc.body))
			if err != nil {
				t.Fatalf("normalizeRows: %v", err)
			}
			if len(rows) != tc.want {
				t.Errorf("len(rows) = %d, want %d", len(rows), tc.want)
			}
		})
	}
}

// containsParam reports whether raw query string carries the encoded pair.
func containsParam(rawQuery, pair string) bool {
	for _, p := range splitQuery(rawQuery) {
		if p == pair {
			return true
		}
	}
	return false
}

func splitQuery(rawQuery string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(rawQuery); i++ {
		if i == len(rawQuery) || rawQuery[i] == '&' {
			parts = append(parts, rawQuery[start:i])
			start = i + 1
		}
	}
	return parts
}
