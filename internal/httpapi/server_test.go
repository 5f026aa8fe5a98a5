package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/tongda/mmdeploy/internal/server"
	"github.com/tongda/mmdeploy/pkg/types"
)

type stubService struct {
	ready  bool
	status types.StatusResponse
	runID  string
	runErr error
}

func (s *stubService) Codebases() []types.CodebaseInfo {
	return []types.CodebaseInfo{{Name: "classification"}, {Name: "detection"}}
}

func (s *stubService) Status() types.StatusResponse { return s.status }

func (s *stubService) StartRun() (string, error) { return s.runID, s.runErr }

func (s *stubService) Ready() bool { return s.ready }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCodebasesEndpoint(t *testing.T) {
	h := NewMux(&stubService{})
	rec := get(t, h, "/codebases")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type, got %q", ct)
	}
	var resp types.CodebasesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Codebases) != 2 || resp.Codebases[0].Name != "classification" {
		t.Fatalf("unexpected codebases payload: %+v", resp)
	}
}

func TestStatusEndpoint(t *testing.T) {
	svc := &stubService{status: types.StatusResponse{
		State: "running",
		Run:   &types.RunStatus{RunID: "r1", Codebase: "detection", Stage: "inference", Done: 3, Total: 10},
		Artifacts: []types.ArtifactInfo{
			{ID: "end2end.mmdgo", Codebase: "detection", SizeBytes: 42},
		},
	}}
	rec := get(t, NewMux(svc), "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp types.StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.State != "running" || resp.Run == nil || resp.Run.Done != 3 {
		t.Fatalf("unexpected status payload: %+v", resp)
	}
	if len(resp.Artifacts) != 1 || resp.Artifacts[0].ID != "end2end.mmdgo" {
		t.Fatalf("unexpected artifacts: %+v", resp.Artifacts)
	}
}

func post(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStartRunEndpoint(t *testing.T) {
	rec := post(t, NewMux(&stubService{runID: "r-42"}), "/runs")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var resp types.RunStartedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RunID != "r-42" {
		t.Fatalf("expected run id in payload, got %+v", resp)
	}
}

func TestStartRunActiveMaps409(t *testing.T) {
	rec := post(t, NewMux(&stubService{runErr: server.ErrRunActive("r-1")}), "/runs")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var resp types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if resp.Code != http.StatusConflict {
		t.Fatalf("unexpected error payload: %+v", resp)
	}
}

func TestStartRunUnconfiguredMaps400(t *testing.T) {
	rec := post(t, NewMux(&stubService{runErr: server.ErrRunNotConfigured()}), "/runs")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	svc := &stubService{}
	h := NewMux(svc)

	if rec := get(t, h, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", rec.Code)
	}
	if rec := get(t, h, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected readyz 503 while loading, got %d", rec.Code)
	}

	svc.ready = true
	rec := get(t, h, "/readyz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected readyz 200 when ready, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ready") {
		t.Fatalf("unexpected readyz body: %q", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewMux(&stubService{})
	get(t, h, "/healthz")
	rec := get(t, h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "mmdeploy_http_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := get(t, NewMux(&stubService{}), "/healthz")
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected nosniff header, got %q", got)
	}
}
