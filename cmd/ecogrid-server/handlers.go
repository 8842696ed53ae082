package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/daniacca/ecogrid/internal/ecosim"
	"github.com/daniacca/ecogrid/internal/storage"
)

// extractSimID extracts the simulation ID from a path like
// "/simulation/{id}/..." and returns the ID plus the remaining path.
func extractSimID(path string) (ecosim.SimulationID, string) {
	if !strings.HasPrefix(path, "/simulation/") {
		return "", ""
	}
	rest := path[len("/simulation/"):]
	idx := strings.Index(rest, "/")
	if idx == -1 {
		return ecosim.SimulationID(rest), ""
	}
	return ecosim.SimulationID(rest[:idx]), rest[idx:]
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ecosim.ErrInvalidParameter):
		status = http.StatusBadRequest
	case errors.Is(err, ecosim.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"status": "error", "message": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type createSimulationRequest struct {
	SimulationID string `json:"simulation_id,omitempty"`
	ecosim.Params
}

type simulationResponse struct {
	SimulationID ecosim.SimulationID      `json:"simulation_id"`
	Status       string                   `json:"status"`
	CurrentStep  int                      `json:"current_step"`
	TotalSteps   int                      `json:"total_steps"`
	Statistics   ecosim.StatsSnapshot     `json:"statistics"`
	Grid         [][]int                  `json:"grid,omitempty"`
	Adjustment   *ecosim.AdjustmentReport `json:"adjustment_report,omitempty"`
	Events       *ecosim.EventCounters    `json:"events,omitempty"`
	StepsRun     int                      `json:"steps_run,omitempty"`
	Recording    bool                     `json:"recording"`
}

func (s *Server) simulationStatus(sim *ecosim.Simulation) string {
	if sim.IsRunning() {
		return "running"
	}
	return "idle"
}

// gridForResponse returns the wire grid for small sessions and nil for
// large ones, mirroring the frame-capture memory bound.
func gridForResponse(sim *ecosim.Simulation) [][]int {
	if sim.Params().GridSize > ecosim.FullFrameGridLimit {
		return nil
	}
	return sim.GridRows()
}

// /simulation — GET lists sessions, POST creates one.
func (s *Server) handleSimulations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"simulations": s.manager.List()})

	case http.MethodPost:
		defer r.Body.Close()

		req := createSimulationRequest{Params: s.defaultParams}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}

		sim, err := s.manager.Create(ecosim.SimulationID(req.SimulationID), req.Params)
		if err != nil {
			s.writeError(w, err)
			return
		}
		sim.SetNotificationManager(s.notifierMgr)

		adjustment := sim.Adjustment()
		s.logger.Infof("simulation created: id=%s size=%d", sim.ID(), req.Params.GridSize)
		writeJSON(w, http.StatusCreated, simulationResponse{
			SimulationID: sim.ID(),
			Status:       "created",
			CurrentStep:  sim.Generation(),
			TotalSteps:   req.Params.Steps,
			Statistics:   sim.Statistics(),
			Grid:         gridForResponse(sim),
			Adjustment:   &adjustment,
			Recording:    sim.Recording(),
		})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// /simulation/{id}[/...] — per-session operations.
func (s *Server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	id, rest := extractSimID(r.URL.Path)
	if id == "" {
		http.Error(w, "simulation ID is required in path: /simulation/{id}", http.StatusBadRequest)
		return
	}

	sim, exists := s.manager.Get(id)
	if !exists {
		http.Error(w, "simulation not found", http.StatusNotFound)
		return
	}

	switch {
	case rest == "" || rest == "/":
		switch r.Method {
		case http.MethodGet:
			s.handleStatus(w, sim)
		case http.MethodDelete:
			if err := s.manager.Delete(id); err != nil {
				s.writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}

	case rest == "/step" && r.Method == http.MethodPost:
		s.handleStep(w, r, sim)

	case rest == "/start" && r.Method == http.MethodPost:
		s.handleStart(w, r, sim)

	case rest == "/stop" && r.Method == http.MethodPost:
		sim.Stop()
		writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})

	case rest == "/grid" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"simulation_id": sim.ID(),
			"grid":          sim.GridRows(),
		})

	case rest == "/statistics" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, sim.Statistics())

	case rest == "/history" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"simulation_id": sim.ID(),
			"history":       sim.History(),
		})

	case rest == "/recording/flush" && r.Method == http.MethodPost:
		s.handleFlushRecording(w, r, sim)

	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, sim *ecosim.Simulation) {
	adjustment := sim.Adjustment()
	events := sim.Events()
	writeJSON(w, http.StatusOK, simulationResponse{
		SimulationID: sim.ID(),
		Status:       s.simulationStatus(sim),
		CurrentStep:  sim.Generation(),
		TotalSteps:   sim.Params().Steps,
		Statistics:   sim.Statistics(),
		Adjustment:   &adjustment,
		Events:       &events,
		Recording:    sim.Recording(),
	})
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request, sim *ecosim.Simulation) {
	steps := 1
	if v := r.URL.Query().Get("steps"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "steps must be a positive integer", http.StatusBadRequest)
			return
		}
		steps = n
	}

	snapshot, err := sim.StepN(steps)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, simulationResponse{
		SimulationID: sim.ID(),
		Status:       s.simulationStatus(sim),
		CurrentStep:  sim.Generation(),
		TotalSteps:   sim.Params().Steps,
		Statistics:   snapshot,
		Grid:         gridForResponse(sim),
		StepsRun:     steps,
		Recording:    sim.Recording(),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, sim *ecosim.Simulation) {
	interval := 1000
	if v := r.URL.Query().Get("interval"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "interval must be a positive number of milliseconds", http.StatusBadRequest)
			return
		}
		interval = n
	}

	sim.Run(time.Duration(interval) * time.Millisecond)
	s.logger.Infof("simulation %s auto-running every %dms", sim.ID(), interval)
	writeJSON(w, http.StatusOK, map[string]any{"status": "started", "interval_ms": interval})
}

func (s *Server) handleFlushRecording(w http.ResponseWriter, r *http.Request, sim *ecosim.Simulation) {
	meta, err := sim.FlushRecording(r.Context(), s.store)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"recording_id": meta.RecordingID,
		"frame_count":  meta.FrameCount,
	})
}

// /recordings — GET lists stored recordings.
func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	list, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recordings": list})
}

// /recordings/{id} — GET loads, DELETE removes.
func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/recordings/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "recording ID is required in path: /recordings/{id}", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		meta, frames, err := s.store.Load(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "success",
			"metadata": meta,
			"frames":   frames,
		})

	case http.MethodDelete:
		removed, err := s.store.Delete(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":            "success",
			"artifacts_removed": removed,
		})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// routes registers all handlers on the mux.
func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/simulation", s.handleSimulations)
	mux.HandleFunc("/simulation/", s.handleSimulation)
	mux.HandleFunc("/recordings", s.handleRecordings)
	mux.HandleFunc("/recordings/", s.handleRecording)
	mux.HandleFunc("/ws", s.hub.HandleWS)
}
