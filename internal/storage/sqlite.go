package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/daniacca/ecogrid/internal/ecosim"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists recordings in a SQLite database: one row per
// metadata artifact, one row per frames artifact, paired by id.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore creates a store backed by the database at path. Call
// Init before first use.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database and creates the tables if needed.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS recordings (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			grid_size INTEGER NOT NULL,
			frame_count INTEGER NOT NULL,
			parameters TEXT NOT NULL,
			final_statistics TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS recording_frames (
			id TEXT PRIMARY KEY,
			payload TEXT NOT NULL
		);
	`)
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errors.New("sqlite store is not initialized")
	}
	return s.db, nil
}

func (s *SQLiteStore) Put(ctx context.Context, meta ecosim.RecordingMetadata, frames []ecosim.Frame) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	params, err := json.Marshal(meta.Parameters)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	stats, err := json.Marshal(meta.FinalStatistics)
	if err != nil {
		return fmt.Errorf("encode final statistics: %w", err)
	}
	payload, err := json.Marshal(frames)
	if err != nil {
		return fmt.Errorf("encode frames: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recordings (id, created_at, grid_size, frame_count, parameters, final_statistics)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			grid_size = excluded.grid_size,
			frame_count = excluded.frame_count,
			parameters = excluded.parameters,
			final_statistics = excluded.final_statistics
	`, meta.RecordingID, meta.CreatedAt.Format(time.RFC3339Nano), meta.GridSize, meta.FrameCount, string(params), string(stats))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recording_frames (id, payload)
		VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload
	`, meta.RecordingID, string(payload))
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) List(ctx context.Context) ([]ecosim.RecordingMetadata, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT r.id, r.created_at, r.grid_size, r.frame_count, r.parameters, r.final_statistics
		FROM recordings r
		INNER JOIN recording_frames f ON f.id = r.id
		ORDER BY r.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ecosim.RecordingMetadata, 0)
	for rows.Next() {
		meta, err := scanMetadata(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetadata(row rowScanner) (ecosim.RecordingMetadata, error) {
	var (
		meta      ecosim.RecordingMetadata
		createdAt string
		params    string
		stats     string
	)
	if err := row.Scan(&meta.RecordingID, &createdAt, &meta.GridSize, &meta.FrameCount, &params, &stats); err != nil {
		return ecosim.RecordingMetadata{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return ecosim.RecordingMetadata{}, fmt.Errorf("decode created_at: %w", err)
	}
	meta.CreatedAt = ts
	if err := json.Unmarshal([]byte(params), &meta.Parameters); err != nil {
		return ecosim.RecordingMetadata{}, fmt.Errorf("decode parameters: %w", err)
	}
	if err := json.Unmarshal([]byte(stats), &meta.FinalStatistics); err != nil {
		return ecosim.RecordingMetadata{}, fmt.Errorf("decode final statistics: %w", err)
	}
	return meta, nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (ecosim.RecordingMetadata, []ecosim.Frame, error) {
	db, err := s.getDB()
	if err != nil {
		return ecosim.RecordingMetadata{}, nil, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT id, created_at, grid_size, frame_count, parameters, final_statistics
		FROM recordings WHERE id = ?
	`, id)
	meta, err := scanMetadata(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ecosim.RecordingMetadata{}, nil, ErrNotFound
		}
		return ecosim.RecordingMetadata{}, nil, err
	}

	var payload string
	err = db.QueryRowContext(ctx, `SELECT payload FROM recording_frames WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ecosim.RecordingMetadata{}, nil, ErrNotFound
		}
		return ecosim.RecordingMetadata{}, nil, err
	}

	var frames []ecosim.Frame
	if err := json.Unmarshal([]byte(payload), &frames); err != nil {
		return ecosim.RecordingMetadata{}, nil, fmt.Errorf("decode frames %s: %w", id, err)
	}
	return meta, frames, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (int, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}

	removed := 0
	res, err := db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return removed, err
	}
	if n, err := res.RowsAffected(); err == nil {
		removed += int(n)
	}

	res, err = db.ExecContext(ctx, `DELETE FROM recording_frames WHERE id = ?`, id)
	if err != nil {
		return removed, err
	}
	if n, err := res.RowsAffected(); err == nil {
		removed += int(n)
	}
	return removed, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
