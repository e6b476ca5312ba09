package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"roadwatch-go/internal/cli"
	"roadwatch-go/internal/config"
	"roadwatch-go/internal/crossing"
	"roadwatch-go/internal/models"
	"roadwatch-go/internal/services/runs"
)

type fakeRuns struct {
	runs      map[string]models.Run
	submitErr error
	canceled  []string
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{runs: map[string]models.Run{
		"run-1": {ID: "run-1", Kind: models.RunKindCount, Video: "/v/cars.mov", Status: models.RunStatusCompleted, Crossings: 2},
	}}
}

func (f *fakeRuns) Submit(req models.RunRequest) (models.Run, error) {
	if f.submitErr != nil {
		return models.Run{}, f.submitErr
	}
	run := models.Run{ID: "run-2", Kind: req.Kind, Video: req.Video, Status: models.RunStatusPending}
	f.runs[run.ID] = run
	return run, nil
}

func (f *fakeRuns) Get(id string) (models.Run, error) {
	run, ok := f.runs[id]
	if !ok {
		return models.Run{}, fmt.Errorf("%w: %s", runs.ErrNotFound, id)
	}
	return run, nil
}

func (f *fakeRuns) List() []models.Run {
	out := []models.Run{}
	for _, r := range f.runs {
		out = append(out, r)
	}
	return out
}

func (f *fakeRuns) Cancel(id string) error {
	if _, err := f.Get(id); err != nil {
		return err
	}
	f.canceled = append(f.canceled, id)
	return nil
}

func (f *fakeRuns) Stats() map[models.RunStatus]int {
	return map[models.RunStatus]int{models.RunStatusCompleted: len(f.runs)}
}

type fakeCrossings map[string][]crossing.Event

func (f fakeCrossings) Crossings(_ context.Context, runID string) ([]crossing.Event, error) {
	return f[runID], nil
}

func newTestServer(t *testing.T, r *fakeRuns, c *fakeCrossings) *Server {
	t.Helper()
	cfg := &config.Config{WorkerID: "roadwatch-test", Version: "1.2.3", Port: 0}
	var src interface {
		Crossings(context.Context, string) ([]crossing.Event, error)
	}
	if c != nil {
		src = *c
	}
	s := NewServer(cfg, r, src)
	require.NoError(t, s.Setup())
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealthAndInfo(t *testing.T) {
	s := newTestServer(t, newFakeRuns(), nil)

	rec := do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	var health map[string]string
	decode(t, rec, &health)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "roadwatch-test", health["worker_id"])

	rec = do(t, s, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var info map[string]any
	decode(t, rec, &info)
	assert.Equal(t, "1.2.3", info["version"])
}

func TestSubmitRun(t *testing.T) {
	s := newTestServer(t, newFakeRuns(), nil)

	rec := do(t, s, http.MethodPost, "/runs", `{"kind":"count","video":"/v/cars.mov"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var run models.Run
	decode(t, rec, &run)
	assert.Equal(t, "run-2", run.ID)
	assert.Equal(t, models.RunStatusPending, run.Status)

	rec = do(t, s, http.MethodPost, "/runs", `{"video":"/v/cars.mov"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRunRejections(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{name: "missing file", err: &cli.RejectError{Path: "/x.mov", Err: cli.ErrNotFound}, code: http.StatusBadRequest, message: "File doesn't exist"},
		{name: "unsupported", err: &cli.RejectError{Path: "/x.mp4", Err: cli.ErrUnsupported}, code: http.StatusBadRequest, message: "File isn't supported"},
		{name: "shut down", err: runs.ErrClosed, code: http.StatusServiceUnavailable, message: runs.ErrClosed.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeRuns()
			r.submitErr = tt.err
			s := newTestServer(t, r, nil)

			rec := do(t, s, http.MethodPost, "/runs", `{"kind":"count","video":"/x.mov"}`)
			require.Equal(t, tt.code, rec.Code)
			var body map[string]string
			decode(t, rec, &body)
			assert.Equal(t, tt.message, body["error"])
		})
	}
}

func TestGetAndCancelRun(t *testing.T) {
	r := newFakeRuns()
	s := newTestServer(t, r, nil)

	rec := do(t, s, http.MethodGet, "/runs/run-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var run models.Run
	decode(t, rec, &run)
	assert.Equal(t, 2, run.Crossings)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/runs/missing", "").Code)

	assert.Equal(t, http.StatusAccepted, do(t, s, http.MethodDelete, "/runs/run-1", "").Code)
	assert.Equal(t, []string{"run-1"}, r.canceled)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodDelete, "/runs/missing", "").Code)

	rec = do(t, s, http.MethodGet, "/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count int `json:"count"`
	}
	decode(t, rec, &list)
	assert.Equal(t, 1, list.Count)
}

func TestCrossings(t *testing.T) {
	noStore := newTestServer(t, newFakeRuns(), nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, noStore, http.MethodGet, "/runs/run-1/crossings", "").Code)

	events := fakeCrossings{"run-1": {{Frame: 11, Previous: 1, Current: 0}, {Frame: 40, Previous: 2, Current: 1}}}
	s := newTestServer(t, newFakeRuns(), &events)

	rec := do(t, s, http.MethodGet, "/runs/run-1/crossings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count     int              `json:"count"`
		Crossings []crossing.Event `json:"crossings"`
	}
	decode(t, rec, &body)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, 11, body.Crossings[0].Frame)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/runs/missing/crossings", "").Code)
}

func TestSystemStatsAndCORS(t *testing.T) {
	s := newTestServer(t, newFakeRuns(), nil)

	rec := do(t, s, http.MethodGet, "/system/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Stats struct {
			Runs map[string]int `json:"runs"`
		} `json:"stats"`
	}
	decode(t, rec, &body)
	assert.Equal(t, 1, body.Stats.Runs["completed"])

	rec = do(t, s, http.MethodOptions, "/runs", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGRPCHealth(t *testing.T) {
	hs := NewHealthServer()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go hs.Serve(lis)
	defer hs.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := healthpb.NewHealthClient(conn)
	for _, service := range []string{"", ServiceName} {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	}
}
