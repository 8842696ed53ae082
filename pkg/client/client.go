package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/daniacca/ecogrid/internal/ecosim"
)

// ParamsBuilder provides a fluent API for building simulation parameters.
// Every value starts from the stock defaults; call only the setters you
// need and finish with Build.
type ParamsBuilder struct {
	params ecosim.Params
}

// NewParams creates a parameter builder seeded with the default values.
func NewParams() *ParamsBuilder {
	return &ParamsBuilder{params: ecosim.DefaultParams()}
}

// GridSize sets the side length of the square grid.
func (pb *ParamsBuilder) GridSize(size int) *ParamsBuilder {
	pb.params.GridSize = size
	return pb
}

// Steps sets the intended number of generations. The server does not run
// them eagerly; the value is informational for step and auto-run calls.
func (pb *ParamsBuilder) Steps(steps int) *ParamsBuilder {
	pb.params.Steps = steps
	return pb
}

// Prey sets the requested initial prey count.
func (pb *ParamsBuilder) Prey(count int) *ParamsBuilder {
	pb.params.InitialPrey = count
	return pb
}

// Predators sets the requested initial predator count.
func (pb *ParamsBuilder) Predators(count int) *ParamsBuilder {
	pb.params.InitialPredators = count
	return pb
}

// Substrate sets the initial substrate probability in [0,1].
func (pb *ParamsBuilder) Substrate(prob float64) *ParamsBuilder {
	pb.params.InitialSubstrateProbability = prob
	return pb
}

// Neighborhood selects the neighborhood type, ecosim.NeighborhoodVonNeumann
// or ecosim.NeighborhoodMoore.
func (pb *ParamsBuilder) Neighborhood(nh ecosim.Neighborhood) *ParamsBuilder {
	pb.params.Neighborhood = nh
	return pb
}

// Boundary selects the grid boundary mode, ecosim.BoundaryFinite or
// ecosim.BoundaryTorus.
func (pb *ParamsBuilder) Boundary(b ecosim.Boundary) *ParamsBuilder {
	pb.params.Boundary = b
	return pb
}

// Seed fixes the random stream so the run is reproducible.
func (pb *ParamsBuilder) Seed(seed int64) *ParamsBuilder {
	pb.params.Seed = seed
	return pb
}

// Record enables per-generation frame capture on the server.
func (pb *ParamsBuilder) Record(enabled bool) *ParamsBuilder {
	pb.params.RecordSimulation = enabled
	return pb
}

// Build returns the assembled parameter set.
func (pb *ParamsBuilder) Build() ecosim.Params {
	return pb.params
}

// SimulationState is the server's view of one simulation session as
// returned by the create, step and status endpoints.
type SimulationState struct {
	SimulationID string                   `json:"simulation_id"`
	Status       string                   `json:"status"`
	CurrentStep  int                      `json:"current_step"`
	TotalSteps   int                      `json:"total_steps"`
	Statistics   ecosim.StatsSnapshot     `json:"statistics"`
	Grid         [][]int                  `json:"grid,omitempty"`
	Adjustment   *ecosim.AdjustmentReport `json:"adjustment_report,omitempty"`
	Events       *ecosim.EventCounters    `json:"events,omitempty"`
	Recording    bool                     `json:"recording"`
}

// RecordingSummary identifies a recording persisted on the server.
type RecordingSummary struct {
	RecordingID string `json:"recording_id"`
	FrameCount  int    `json:"frame_count"`
}

// Client talks to an ecogrid server over HTTP.
type Client struct {
	// BaseURL is the server's base URL, e.g. "http://localhost:8080".
	BaseURL string

	// HTTPClient is the underlying HTTP client. A nil value uses
	// http.DefaultClient.
	HTTPClient *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// do issues one request and decodes the JSON response into out when the
// status is 2xx; any other status becomes an error carrying the body.
func (c *Client) do(ctx context.Context, method string, pathParts []string, query url.Values, body, out any) error {
	u, err := url.JoinPath(c.BaseURL, pathParts...)
	if err != nil {
		return fmt.Errorf("building URL: %w", err)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// CreateSimulation creates a new session with the given parameters and
// returns its initial state, including any density adjustment the server
// applied.
func (c *Client) CreateSimulation(ctx context.Context, params ecosim.Params) (SimulationState, error) {
	var state SimulationState
	err := c.do(ctx, http.MethodPost, []string{"simulation"}, nil, params, &state)
	return state, err
}

// ListSimulations returns the ids of all sessions on the server.
func (c *Client) ListSimulations(ctx context.Context) ([]string, error) {
	var out struct {
		Simulations []string `json:"simulations"`
	}
	err := c.do(ctx, http.MethodGet, []string{"simulation"}, nil, nil, &out)
	return out.Simulations, err
}

// Status returns the current state of a session.
func (c *Client) Status(ctx context.Context, id string) (SimulationState, error) {
	var state SimulationState
	err := c.do(ctx, http.MethodGet, []string{"simulation", id}, nil, nil, &state)
	return state, err
}

// Step advances a session by n generations and returns the resulting
// state. n values below 1 advance a single generation.
func (c *Client) Step(ctx context.Context, id string, n int) (SimulationState, error) {
	query := url.Values{}
	if n > 0 {
		query.Set("steps", strconv.Itoa(n))
	}
	var state SimulationState
	err := c.do(ctx, http.MethodPost, []string{"simulation", id, "step"}, query, nil, &state)
	return state, err
}

// Start puts a session on the server's auto-run ticker with the given
// interval in milliseconds.
func (c *Client) Start(ctx context.Context, id string, intervalMS int) error {
	query := url.Values{}
	if intervalMS > 0 {
		query.Set("interval", strconv.Itoa(intervalMS))
	}
	return c.do(ctx, http.MethodPost, []string{"simulation", id, "start"}, query, nil, nil)
}

// Stop halts a session's auto-run ticker.
func (c *Client) Stop(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, []string{"simulation", id, "stop"}, nil, nil, nil)
}

// Statistics returns the session's current population statistics without
// advancing it.
func (c *Client) Statistics(ctx context.Context, id string) (ecosim.StatsSnapshot, error) {
	var stats ecosim.StatsSnapshot
	err := c.do(ctx, http.MethodGet, []string{"simulation", id, "statistics"}, nil, nil, &stats)
	return stats, err
}

// History returns the session's per-generation population series.
func (c *Client) History(ctx context.Context, id string) ([]ecosim.HistoryPoint, error) {
	var out struct {
		History []ecosim.HistoryPoint `json:"history"`
	}
	err := c.do(ctx, http.MethodGet, []string{"simulation", id, "history"}, nil, nil, &out)
	return out.History, err
}

// Grid returns the full cell grid of a session.
func (c *Client) Grid(ctx context.Context, id string) ([][]int, error) {
	var out struct {
		Grid [][]int `json:"grid"`
	}
	err := c.do(ctx, http.MethodGet, []string{"simulation", id, "grid"}, nil, nil, &out)
	return out.Grid, err
}

// DeleteSimulation destroys a session and frees its buffers.
func (c *Client) DeleteSimulation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, []string{"simulation", id}, nil, nil, nil)
}

// FlushRecording persists the session's captured frames on the server
// and returns the new recording's identity.
func (c *Client) FlushRecording(ctx context.Context, id string) (RecordingSummary, error) {
	var summary RecordingSummary
	err := c.do(ctx, http.MethodPost, []string{"simulation", id, "recording", "flush"}, nil, nil, &summary)
	return summary, err
}

// ListRecordings returns the metadata of every stored recording, newest
// first.
func (c *Client) ListRecordings(ctx context.Context) ([]ecosim.RecordingMetadata, error) {
	var out struct {
		Recordings []ecosim.RecordingMetadata `json:"recordings"`
	}
	err := c.do(ctx, http.MethodGet, []string{"recordings"}, nil, nil, &out)
	return out.Recordings, err
}

// GetRecording loads one stored recording with all its frames.
func (c *Client) GetRecording(ctx context.Context, id string) (ecosim.RecordingMetadata, []ecosim.Frame, error) {
	var out struct {
		Metadata ecosim.RecordingMetadata `json:"metadata"`
		Frames   []ecosim.Frame           `json:"frames"`
	}
	err := c.do(ctx, http.MethodGet, []string{"recordings", id}, nil, nil, &out)
	return out.Metadata, out.Frames, err
}

// DeleteRecording removes a stored recording and reports how many
// artifacts (metadata, frames) were removed.
func (c *Client) DeleteRecording(ctx context.Context, id string) (int, error) {
	var out struct {
		ArtifactsRemoved int `json:"artifacts_removed"`
	}
	err := c.do(ctx, http.MethodDelete, []string{"recordings", id}, nil, nil, &out)
	return out.ArtifactsRemoved, err
}
