package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vitalislabs/vitalis/internal/adapters/repository"
	"github.com/vitalislabs/vitalis/internal/domain/model"
)

// fakeDeps records calls and serves canned responses.
type fakeDeps struct {
	labPanels    int
	wearables    int
	refreshes    int
	ingestErr    error
	snapshot     model.BrainOutput
	snapshotErr  error
	published    model.PublishedVelocityState
	publishedErr error
}

func (f *fakeDeps) IngestLabPanel(_ context.Context, _, _ string, _ []model.BiomarkerReading) error {
	f.labPanels++
	return f.ingestErr
}

func (f *fakeDeps) IngestWearable(_ context.Context, _, _ string, _ []model.WearableSample) error {
	f.wearables++
	return f.ingestErr
}

func (f *fakeDeps) Refresh(_ context.Context, userID string) (model.BrainOutput, error) {
	f.refreshes++
	return model.BrainOutput{UserID: userID}, nil
}

func (f *fakeDeps) LatestOutput(_ context.Context, _ string) (model.BrainOutput, error) {
	return f.snapshot, f.snapshotErr
}

func (f *fakeDeps) Published(_ context.Context, _ string) (model.PublishedVelocityState, error) {
	return f.published, f.publishedErr
}

type fakeStats struct{}

func (fakeStats) Stats() map[string]any { return map[string]any{"started": true} }

func newTestServer(deps *fakeDeps, opts ...ServerOption) *httptest.Server {
	mux := http.NewServeMux()
	NewServer(deps, fakeStats{}, opts...).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandlePostLabs(t *testing.T) {
	deps := &fakeDeps{}
	srv := newTestServer(deps)
	defer srv.Close()

	valid := `{"user_id":"u1","upload_id":"up1","readings":[
		{"biomarker_key":"hba1c","value":5.2,"unit":"%","test_date":"2026-06-01"}]}`
	if resp := post(t, srv.URL+"/ingest/labs", valid); resp.StatusCode != http.StatusAccepted {
		t.Errorf("expected 202, got %d", resp.StatusCode)
	}
	if deps.labPanels != 1 {
		t.Errorf("expected one ingest call, got %d", deps.labPanels)
	}

	cases := map[string]string{
		"not json":     `{`,
		"no user":      `{"upload_id":"up1","readings":[{"biomarker_key":"hba1c","value":5.2,"test_date":"2026-06-01"}]}`,
		"no upload":    `{"user_id":"u1","readings":[{"biomarker_key":"hba1c","value":5.2,"test_date":"2026-06-01"}]}`,
		"no readings":  `{"user_id":"u1","upload_id":"up1","readings":[]}`,
		"bad date":     `{"user_id":"u1","upload_id":"up1","readings":[{"biomarker_key":"hba1c","value":5.2,"test_date":"June 1"}]}`,
		"no biomarker": `{"user_id":"u1","upload_id":"up1","readings":[{"value":5.2,"test_date":"2026-06-01"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if resp := post(t, srv.URL+"/ingest/labs", body); resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}

	if resp := get(t, srv.URL+"/ingest/labs"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for GET, got %d", resp.StatusCode)
	}
}

func TestHandlePostWearable(t *testing.T) {
	deps := &fakeDeps{}
	srv := newTestServer(deps)
	defer srv.Close()

	valid := `{"user_id":"u1","metric_type":"hrv","samples":[
		{"date":"2026-06-01","value":52,"source":"whoop"}]}`
	if resp := post(t, srv.URL+"/ingest/wearable", valid); resp.StatusCode != http.StatusAccepted {
		t.Errorf("expected 202, got %d", resp.StatusCode)
	}
	if deps.wearables != 1 {
		t.Errorf("expected one ingest call, got %d", deps.wearables)
	}

	missingSource := `{"user_id":"u1","metric_type":"hrv","samples":[{"date":"2026-06-01","value":52}]}`
	if resp := post(t, srv.URL+"/ingest/wearable", missingSource); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHandlePostEvaluate(t *testing.T) {
	deps := &fakeDeps{}
	srv := newTestServer(deps, WithRefreshPerMinute(1))
	defer srv.Close()

	body := `{"user_id":"u1"}`
	// Burst of 2 allows two immediate calls, the third is limited.
	for i := 0; i < 2; i++ {
		if resp := post(t, srv.URL+"/evaluate", body); resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 on call %d, got %d", i+1, resp.StatusCode)
		}
	}
	if resp := post(t, srv.URL+"/evaluate", body); resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429 once the limit is hit, got %d", resp.StatusCode)
	}
	if deps.refreshes != 2 {
		t.Errorf("expected two refresh calls, got %d", deps.refreshes)
	}

	// A different user has an independent limiter.
	if resp := post(t, srv.URL+"/evaluate", `{"user_id":"u2"}`); resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for another user, got %d", resp.StatusCode)
	}

	if resp := post(t, srv.URL+"/evaluate", `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing user_id, got %d", resp.StatusCode)
	}
}

func TestHandleGetUser(t *testing.T) {
	deps := &fakeDeps{
		snapshot:  model.BrainOutput{SnapshotID: "s1", UserID: "u1"},
		published: model.PublishedVelocityState{UserID: "u1", Velocity: 0.95, Version: 2},
	}
	srv := newTestServer(deps)
	defer srv.Close()

	if resp := get(t, srv.URL+"/users/u1/snapshot"); resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for snapshot, got %d", resp.StatusCode)
	}
	if resp := get(t, srv.URL+"/users/u1/velocity"); resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for velocity, got %d", resp.StatusCode)
	}
	if resp := get(t, srv.URL+"/users/u1/unknown"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown resource, got %d", resp.StatusCode)
	}
	if resp := get(t, srv.URL+"/users//snapshot"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for empty user id, got %d", resp.StatusCode)
	}

	deps.snapshotErr = repository.ErrNotFound
	if resp := get(t, srv.URL+"/users/u2/snapshot"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 when no snapshot exists, got %d", resp.StatusCode)
	}
}

func TestHandleHealthAndStats(t *testing.T) {
	srv := newTestServer(&fakeDeps{})
	defer srv.Close()

	if resp := get(t, srv.URL+"/healthz"); resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from healthz, got %d", resp.StatusCode)
	}
	if resp := get(t, srv.URL+"/stats"); resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from stats, got %d", resp.StatusCode)
	}
	if resp := get(t, srv.URL+"/metrics"); resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from metrics, got %d", resp.StatusCode)
	}
}
