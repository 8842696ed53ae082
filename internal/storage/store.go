// Package storage provides durable sinks for simulation recordings. A
// recording is two paired artifacts under a shared id: the metadata
// document and the frame sequence.
package storage

import (
	"context"
	"errors"

	"github.com/daniacca/ecogrid/internal/ecosim"
)

// ErrNotFound reports that a recording, or one of its two artifacts, is
// missing from the store.
var ErrNotFound = errors.New("recording not found")

// Store is the durable sink for recording artifacts.
type Store interface {
	// Put persists both artifacts of a recording.
	Put(ctx context.Context, meta ecosim.RecordingMetadata, frames []ecosim.Frame) error

	// List enumerates recordings with both artifacts present, newest
	// first.
	List(ctx context.Context) ([]ecosim.RecordingMetadata, error)

	// Load returns both artifacts, or ErrNotFound when either is missing.
	Load(ctx context.Context, id string) (ecosim.RecordingMetadata, []ecosim.Frame, error)

	// Delete removes whichever artifacts exist under the id and reports
	// how many were removed (0, 1 or 2).
	Delete(ctx context.Context, id string) (int, error)

	// Close releases the store's resources.
	Close() error
}
