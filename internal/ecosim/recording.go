package ecosim

import (
	"context"
	"time"
)

// FrameCounts is the per-frame entity census.
type FrameCounts struct {
	PredatorCount  int `json:"predator_count"`
	PreyCount      int `json:"prey_count"`
	SubstrateCount int `json:"substrate_count"`
	EmptyCount     int `json:"empty_count"`
}

// Frame is one recorded generation. For grids up to FullFrameGridLimit
// cells per side it carries a full grid copy; above that only the counts,
// to bound memory.
type Frame struct {
	Grid       [][]int     `json:"grid,omitempty"`
	GridSize   int         `json:"grid_size"`
	Step       int         `json:"step"`
	Statistics FrameCounts `json:"statistics"`
	Timestamp  time.Time   `json:"timestamp"`
}

// RecordingMetadata describes one stored recording. It is persisted as
// its own artifact, paired with the frame sequence under the same id.
type RecordingMetadata struct {
	RecordingID     string        `json:"recording_id"`
	CreatedAt       time.Time     `json:"created_at"`
	GridSize        int           `json:"grid_size"`
	FrameCount      int           `json:"frame_count"`
	Parameters      Params        `json:"parameters"`
	FinalStatistics StatsSnapshot `json:"final_statistics"`
}

// RecordingSink persists the paired metadata and frame artifacts of a
// recording. Implementations live outside the engine; a sink failure
// never affects in-memory simulation state.
type RecordingSink interface {
	Put(ctx context.Context, meta RecordingMetadata, frames []Frame) error
}

// Recorder captures one frame per committed generation, starting with
// generation 0 at session start.
type Recorder struct {
	frames []Frame
}

func newRecorder() *Recorder {
	return &Recorder{frames: make([]Frame, 0, 64)}
}

// Capture appends a frame for the given committed grid. Grids larger
// than FullFrameGridLimit are recorded counts-only.
func (r *Recorder) Capture(g *Grid, generation int) {
	counts := g.Counts()
	frame := Frame{
		GridSize: g.Size(),
		Step:     generation,
		Statistics: FrameCounts{
			PredatorCount:  counts[Predator],
			PreyCount:      counts[Prey],
			SubstrateCount: counts[Substrate],
			EmptyCount:     counts[Empty],
		},
		Timestamp: time.Now().UTC(),
	}
	if g.Size() <= FullFrameGridLimit {
		frame.Grid = g.Rows()
	}
	r.frames = append(r.frames, frame)
}

// FrameCount returns the number of captured frames.
func (r *Recorder) FrameCount() int { return len(r.frames) }

// Frames returns the captured frame sequence.
func (r *Recorder) Frames() []Frame { return r.frames }
