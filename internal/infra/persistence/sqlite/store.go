// Package sqlite snapshots the in-memory dashboard store into an embedded
// SQLite database so layouts survive restarts.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gridboard/internal/infra/persistence/memory"
	"gridboard/pkg/dashboard"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ dashboard.Store = (*Store)(nil)

const (
	bucketLayout  = "layout"
	bucketWidgets = "widgets"
)

// Store persists the in-memory state to a single SQLite table as JSON blobs.
// Every mutation is written to SQLite before memory sees it; mu serializes
// mutations so the previewed state cannot go stale before it is adopted.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the database at path and hydrates from it.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "gridboard.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	snapshot := dashboard.NewState()
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		switch bucket {
		case bucketLayout:
			if err := json.Unmarshal(payload, &snapshot.Layout); err != nil {
				return fmt.Errorf("decode layout: %w", err)
			}
		case bucketWidgets:
			if err := json.Unmarshal(payload, &snapshot.Widgets); err != nil {
				return fmt.Errorf("decode widgets: %w", err)
			}
		default:
			continue
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if found {
		s.ImportState(snapshot)
	}
	return nil
}

func (s *Store) persist(ctx context.Context, snapshot dashboard.State) (retErr error) {
	layout, err := json.Marshal(snapshot.Layout)
	if err != nil {
		return err
	}
	widgets, err := json.Marshal(snapshot.Widgets)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, row := range []struct {
		bucket  string
		payload []byte
	}{{bucketLayout, layout}, {bucketWidgets, widgets}} {
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, row.bucket, row.payload); err != nil {
			return fmt.Errorf("upsert %s: %w", row.bucket, err)
		}
	}
	return tx.Commit()
}

// commit writes next to SQLite and only then adopts it in memory, so a failed
// write leaves both sides on the previous state.
func (s *Store) commit(ctx context.Context, next dashboard.State) (dashboard.State, error) {
	if err := s.persist(ctx, next); err != nil {
		return dashboard.State{}, fmt.Errorf("persist: %w", err)
	}
	s.ImportState(next)
	return next, nil
}

// Replace snapshots the replaced state to SQLite, then applies it in memory.
func (s *Store) Replace(ctx context.Context, r dashboard.Replacement) (dashboard.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.Preview(r)
	if err != nil {
		return dashboard.State{}, err
	}
	return s.commit(ctx, next)
}

// DeleteWidget snapshots the state without id to SQLite, then applies it in
// memory.
func (s *Store) DeleteWidget(ctx context.Context, id string) (dashboard.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.PreviewDelete(id)
	if err != nil {
		return dashboard.State{}, err
	}
	return s.commit(ctx, next)
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
