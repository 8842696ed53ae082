package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/daniacca/ecogrid/internal/ecosim"
)

// MemoryStore keeps recordings in process memory. It backs tests and is
// the fallback when the SQLite store cannot be opened.
type MemoryStore struct {
	mu       sync.RWMutex
	metadata map[string]ecosim.RecordingMetadata
	frames   map[string][]ecosim.Frame
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		metadata: make(map[string]ecosim.RecordingMetadata),
		frames:   make(map[string][]ecosim.Frame),
	}
}

func (s *MemoryStore) Put(ctx context.Context, meta ecosim.RecordingMetadata, frames []ecosim.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[meta.RecordingID] = meta
	stored := make([]ecosim.Frame, len(frames))
	copy(stored, frames)
	s.frames[meta.RecordingID] = stored
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]ecosim.RecordingMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ecosim.RecordingMetadata, 0, len(s.metadata))
	for id, meta := range s.metadata {
		if _, ok := s.frames[id]; ok {
			out = append(out, meta)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Load(ctx context.Context, id string) (ecosim.RecordingMetadata, []ecosim.Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, haveMeta := s.metadata[id]
	frames, haveFrames := s.frames[id]
	if !haveMeta || !haveFrames {
		return ecosim.RecordingMetadata{}, nil, ErrNotFound
	}
	out := make([]ecosim.Frame, len(frames))
	copy(out, frames)
	return meta, out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	if _, ok := s.metadata[id]; ok {
		delete(s.metadata, id)
		removed++
	}
	if _, ok := s.frames[id]; ok {
		delete(s.frames, id)
		removed++
	}
	return removed, nil
}

func (s *MemoryStore) Close() error { return nil }

// dropFrames removes only the frames artifact, leaving the metadata
// orphaned. Used by tests to exercise paired-artifact semantics.
func (s *MemoryStore) dropFrames(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.frames, id)
}
