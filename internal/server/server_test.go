package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tasktracker/internal/db"
	"tasktracker/internal/domain"
	"tasktracker/internal/engine"
	"tasktracker/internal/migrate"
	"tasktracker/internal/seed"
	"tasktracker/internal/telemetry"
)

const checklist = `stages:
  - id: basics
    title: Basics
    ordering: 1
    repositories:
      - id: regression
        title: Regression
        ordering: 1
        tasks:
          - {id: reg-setup, title: Setup, ordering: 1}
          - {id: reg-model, title: Model, ordering: 2}
      - id: clustering
        title: Clustering
        ordering: 2
        tasks:
          - {id: clu-setup, title: Setup, ordering: 1}
`

type testServer struct {
	URL    string
	DB     *sql.DB
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "tracker.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	c, err := seed.Parse([]byte(checklist))
	if err != nil {
		t.Fatalf("parse checklist: %v", err)
	}
	if _, err := seed.Load(ctx, conn, c); err != nil {
		t.Fatalf("seed: %v", err)
	}
	metrics := telemetry.NewMetrics()
	e := engine.New(conn)
	e.Metrics = metrics
	e.Now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	handler, err := New(Config{Engine: e, BasePath: "/api/v1", Metrics: metrics})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		DB:     conn,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func expectDetail(t *testing.T, res *http.Response, body []byte, status int, detail string) {
	t.Helper()
	if res.StatusCode != status {
		t.Fatalf("status %d, want %d: %s", res.StatusCode, status, string(body))
	}
	var envelope map[string]any
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal error body: %v (%s)", err, string(body))
	}
	got, _ := envelope["detail"].(string)
	if detail != "" && got != detail {
		t.Fatalf("detail %q, want %q", got, detail)
	}
	if got == "" {
		t.Fatalf("missing detail in %s", string(body))
	}
}

func getSummary(t *testing.T, srv *testServer) domain.ProgressSummary {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/progress", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("progress status %d: %s", res.StatusCode, string(data))
	}
	var s domain.ProgressSummary
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	return s
}

func TestHealth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/health", nil, map[string]string{"X-Request-Id": "req-1"})
	if res.StatusCode != http.StatusOK || strings.TrimSpace(string(data)) != `{"status":"ok"}` {
		t.Fatalf("health: %d %s", res.StatusCode, string(data))
	}
	if res.Header.Get("X-Request-Id") != "req-1" {
		t.Fatalf("request id not echoed: %q", res.Header.Get("X-Request-Id"))
	}
}

func TestProgressShape(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/progress", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("progress status %d: %s", res.StatusCode, string(data))
	}
	var raw struct {
		Stages []struct {
			Repositories []struct {
				Tasks []map[string]any `json:"tasks"`
			} `json:"repositories"`
		} `json:"stages"`
		Overall *float64 `json:"overall_progress"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw.Overall == nil || *raw.Overall != 0 {
		t.Fatalf("overall_progress missing or non-zero: %s", string(data))
	}
	task := raw.Stages[0].Repositories[0].Tasks[0]
	for _, key := range []string{"id", "repository_id", "title", "description", "ordering", "completed", "enabled", "link", "completed_at"} {
		if _, ok := task[key]; !ok {
			t.Fatalf("task json missing %q: %v", key, task)
		}
	}
	if task["link"] != nil || task["enabled"] != true {
		t.Fatalf("unexpected first task: %v", task)
	}
}

func TestCompleteAndReopen(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	url := srv.URL + "/api/v1/progress/regression/reg-setup"

	res, data := doJSON(t, client, http.MethodPost, url, map[string]any{"completed": true, "link": "https://example.com/pr/1"}, nil)
	if res.StatusCode != http.StatusOK || strings.TrimSpace(string(data)) != `{"status":"ok"}` {
		t.Fatalf("complete: %d %s", res.StatusCode, string(data))
	}
	s := getSummary(t, srv)
	reg := s.Stages[0].Repositories[0]
	if !reg.Tasks[0].Completed || reg.Tasks[0].CompletedAt == nil || *reg.Tasks[0].CompletedAt != "2024-05-01T09:30:00Z" {
		t.Fatalf("task not completed: %+v", reg.Tasks[0])
	}
	if !reg.Tasks[1].Enabled || reg.Progress.Percent != 50 || s.OverallProgress != 33.3 {
		t.Fatalf("unexpected progress: %+v overall %v", reg, s.OverallProgress)
	}

	res, data = doJSON(t, client, http.MethodPost, url, map[string]any{"completed": false, "link": nil}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reopen: %d %s", res.StatusCode, string(data))
	}
	task := getSummary(t, srv).Stages[0].Repositories[0].Tasks[0]
	if task.Completed || task.Link != nil || task.CompletedAt != nil {
		t.Fatalf("reopen did not clear: %+v", task)
	}
}

func TestValidationErrors(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/api/v1/progress/"
	link := map[string]any{"completed": true, "link": "https://example.com/pr/1"}

	res, data := doJSON(t, client, http.MethodPost, base+"regression/reg-model", link, nil)
	expectDetail(t, res, data, http.StatusBadRequest, "Complete previous tasks before unlocking this item.")

	res, data = doJSON(t, client, http.MethodPost, base+"regression/reg-setup", map[string]any{"completed": true}, nil)
	expectDetail(t, res, data, http.StatusBadRequest, "Provide a work link to mark complete.")

	res, data = doJSON(t, client, http.MethodPost, base+"regression/reg-setup", map[string]any{"completed": true, "link": "  "}, nil)
	expectDetail(t, res, data, http.StatusBadRequest, "Provide a work link to mark complete.")

	res, data = doJSON(t, client, http.MethodPost, base+"regression/missing", link, nil)
	expectDetail(t, res, data, http.StatusBadRequest, "Task not found.")

	res, data = doJSON(t, client, http.MethodPost, base+"clustering/reg-setup", link, nil)
	expectDetail(t, res, data, http.StatusBadRequest, "Task does not belong to repository.")

	if getSummary(t, srv).OverallProgress != 0 {
		t.Fatalf("rejected updates must not write")
	}
}

func TestMalformedBody(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	url := srv.URL + "/api/v1/progress/regression/reg-setup"

	res, data := doJSON(t, srv.Client(), http.MethodPost, url, "{not json", nil)
	expectDetail(t, res, data, http.StatusBadRequest, "")

	res, data = doJSON(t, srv.Client(), http.MethodPost, url, map[string]any{"link": "https://example.com"}, nil)
	expectDetail(t, res, data, http.StatusBadRequest, "")

	res, data = doJSON(t, srv.Client(), http.MethodPost, url, map[string]any{"completed": "yes"}, nil)
	expectDetail(t, res, data, http.StatusBadRequest, "")
}

func TestStoreFaultIsInternalError(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	srv.DB.Close()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/progress", nil, nil)
	expectDetail(t, res, data, http.StatusInternalServerError, "internal error")
}

func TestOpenAPIAndMetrics(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/v1/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi status %d", res.StatusCode)
	}
	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal openapi: %v", err)
	}
	for _, p := range []string{"/api/v1/health", "/api/v1/progress", "/api/v1/progress/{repo_id}/{task_id}"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Fatalf("openapi missing %s: %v", p, doc.Paths)
		}
	}

	doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/progress/regression/reg-model", map[string]any{"completed": true, "link": "x"}, nil)
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/metrics", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("metrics status %d", res.StatusCode)
	}
	for _, want := range []string{
		`tasktracker_progress_updates_total{outcome="sequential_lock"} 1`,
		`tasktracker_http_request_duration_seconds_count{method="POST",route="/api/v1/progress/{repo_id}/{task_id}",status="400"} 1`,
	} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("metrics missing %q:\n%s", want, string(data))
		}
	}
}

func TestUnknownBodyFieldsIgnored(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/progress/regression/reg-setup", map[string]any{
		"completed": true,
		"link":      "https://example.com/pr/1",
		"note":      "hi",
	}, nil)
	if res.StatusCode != http.StatusOK || strings.TrimSpace(string(data)) != `{"status":"ok"}` {
		t.Fatalf("extra field: %d %s", res.StatusCode, string(data))
	}
	if !getSummary(t, srv).Stages[0].Repositories[0].Tasks[0].Completed {
		t.Fatalf("task should be completed")
	}
}
