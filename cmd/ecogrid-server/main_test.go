package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/daniacca/ecogrid/internal/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	srv := NewServer(NewLogger("error"), storage.NewMemoryStore())
	t.Cleanup(srv.Close)

	mux := http.NewServeMux()
	srv.routes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, srv
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()

	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &reqBody)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response of %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func testParams() map[string]any {
	return map[string]any{
		"grid_size":                     10,
		"initial_prey":                  20,
		"initial_predators":             5,
		"initial_substrate_probability": 0.25,
		"seed":                          42,
		"record_simulation":             true,
	}
}

func TestCreateStepAndStatistics(t *testing.T) {
	ts, _ := newTestServer(t)

	var created simulationResponse
	if code := doJSON(t, http.MethodPost, ts.URL+"/simulation", testParams(), &created); code != http.StatusCreated {
		t.Fatalf("create: got status %d, want %d", code, http.StatusCreated)
	}
	if created.SimulationID == "" {
		t.Fatal("create: empty simulation id")
	}
	if created.CurrentStep != 0 {
		t.Errorf("create: current_step = %d, want 0", created.CurrentStep)
	}
	if created.Grid == nil {
		t.Error("create: expected a grid for a 10x10 session")
	}
	if got := created.Statistics.PreyCount; got != 20 {
		t.Errorf("create: prey count = %d, want 20", got)
	}

	base := fmt.Sprintf("%s/simulation/%s", ts.URL, created.SimulationID)

	var stepped simulationResponse
	if code := doJSON(t, http.MethodPost, base+"/step?steps=5", nil, &stepped); code != http.StatusOK {
		t.Fatalf("step: got status %d", code)
	}
	if stepped.CurrentStep != 5 {
		t.Errorf("step: current_step = %d, want 5", stepped.CurrentStep)
	}
	if stepped.StepsRun != 5 {
		t.Errorf("step: steps_run = %d, want 5", stepped.StepsRun)
	}

	// Statistics reads must not advance the simulation.
	var first, second map[string]any
	doJSON(t, http.MethodGet, base+"/statistics", nil, &first)
	doJSON(t, http.MethodGet, base+"/statistics", nil, &second)
	if fmt.Sprint(first) != fmt.Sprint(second) {
		t.Error("statistics: two reads without a step differ")
	}

	var history struct {
		History []map[string]any `json:"history"`
	}
	doJSON(t, http.MethodGet, base+"/history", nil, &history)
	if len(history.History) != 6 {
		t.Errorf("history: %d points, want 6 (generation 0 plus 5 steps)", len(history.History))
	}
}

func TestCreateRejectsInvalidParameters(t *testing.T) {
	ts, _ := newTestServer(t)

	params := testParams()
	params["grid_size"] = -3
	params["initial_substrate_probability"] = 1.5

	var errResp map[string]string
	code := doJSON(t, http.MethodPost, ts.URL+"/simulation", params, &errResp)
	if code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", code, http.StatusBadRequest)
	}
	if errResp["status"] != "error" {
		t.Errorf("status field = %q, want error", errResp["status"])
	}
}

func TestUnknownSimulationReturns404(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/simulation/no-such-id")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("got status %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestRecordingLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	var created simulationResponse
	doJSON(t, http.MethodPost, ts.URL+"/simulation", testParams(), &created)
	base := fmt.Sprintf("%s/simulation/%s", ts.URL, created.SimulationID)

	doJSON(t, http.MethodPost, base+"/step?steps=3", nil, nil)

	var flushed struct {
		RecordingID string `json:"recording_id"`
		FrameCount  int    `json:"frame_count"`
	}
	if code := doJSON(t, http.MethodPost, base+"/recording/flush", nil, &flushed); code != http.StatusOK {
		t.Fatalf("flush: got status %d", code)
	}
	if flushed.FrameCount != 4 {
		t.Errorf("flush: frame_count = %d, want 4 (generation 0 plus 3 steps)", flushed.FrameCount)
	}

	var listed struct {
		Recordings []map[string]any `json:"recordings"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/recordings", nil, &listed)
	if len(listed.Recordings) != 1 {
		t.Fatalf("list: %d recordings, want 1", len(listed.Recordings))
	}

	var loaded struct {
		Frames []map[string]any `json:"frames"`
	}
	recURL := ts.URL + "/recordings/" + flushed.RecordingID
	if code := doJSON(t, http.MethodGet, recURL, nil, &loaded); code != http.StatusOK {
		t.Fatalf("load: got status %d", code)
	}
	if len(loaded.Frames) != 4 {
		t.Errorf("load: %d frames, want 4", len(loaded.Frames))
	}

	var deleted struct {
		ArtifactsRemoved int `json:"artifacts_removed"`
	}
	doJSON(t, http.MethodDelete, recURL, nil, &deleted)
	if deleted.ArtifactsRemoved != 2 {
		t.Errorf("delete: artifacts_removed = %d, want 2", deleted.ArtifactsRemoved)
	}

	if code := doJSON(t, http.MethodGet, recURL, nil, &map[string]any{}); code != http.StatusNotFound {
		t.Errorf("load after delete: got status %d, want %d", code, http.StatusNotFound)
	}
}

func TestFlushWithoutRecordingReturns404(t *testing.T) {
	ts, _ := newTestServer(t)

	params := testParams()
	params["record_simulation"] = false

	var created simulationResponse
	doJSON(t, http.MethodPost, ts.URL+"/simulation", params, &created)

	url := fmt.Sprintf("%s/simulation/%s/recording/flush", ts.URL, created.SimulationID)
	if code := doJSON(t, http.MethodPost, url, nil, &map[string]any{}); code != http.StatusNotFound {
		t.Errorf("got status %d, want %d", code, http.StatusNotFound)
	}
}

func TestDeleteSimulation(t *testing.T) {
	ts, srv := newTestServer(t)

	var created simulationResponse
	doJSON(t, http.MethodPost, ts.URL+"/simulation", testParams(), &created)

	base := fmt.Sprintf("%s/simulation/%s", ts.URL, created.SimulationID)
	if code := doJSON(t, http.MethodDelete, base, nil, nil); code != http.StatusOK {
		t.Fatalf("delete: got status %d", code)
	}
	if _, exists := srv.manager.Get(created.SimulationID); exists {
		t.Error("session still registered after delete")
	}

	resp, err := http.Get(base)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete: got status %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}
