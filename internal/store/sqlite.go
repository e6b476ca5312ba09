// Package store persists runs and their crossing events in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"roadwatch-go/internal/crossing"
	"roadwatch-go/internal/eventsink"
	"roadwatch-go/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

type SQLite struct {
	db *sql.DB
}

// Open creates the database if needed and applies pending migrations.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// PRAGMAs are per connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000; PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	// Not closed: closing m would close the shared *sql.DB.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	version, _, _ := m.Version()
	log.Debug().Uint("version", version).Msg("Event store schema up to date")
	return nil
}

// StartRun records a new run.
func (s *SQLite) StartRun(ctx context.Context, run models.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, kind, video, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.Video, string(run.Status), run.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun stores the final state of a run.
func (s *SQLite) FinishRun(ctx context.Context, run models.Run) error {
	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, frames = ?, crossings = ?, output = ?, finished_at = ? WHERE run_id = ?`,
		string(run.Status), run.Error, run.Frames, run.Crossings, run.Output, finished, run.ID)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// Write stores one crossing event.
func (s *SQLite) Write(ctx context.Context, rec eventsink.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO crossings (run_id, frame, previous_count, current_count) VALUES (?, ?, ?, ?)`,
		rec.RunID, rec.Frame, rec.Previous, rec.Current)
	if err != nil {
		return fmt.Errorf("insert crossing at frame %d: %w", rec.Frame, err)
	}
	return nil
}

// Crossings returns the stored events of a run ordered by frame.
func (s *SQLite) Crossings(ctx context.Context, runID string) ([]crossing.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT frame, previous_count, current_count FROM crossings WHERE run_id = ? ORDER BY frame, crossing_id`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []crossing.Event{}
	for rows.Next() {
		var ev crossing.Event
		if err := rows.Scan(&ev.Frame, &ev.Previous, &ev.Current); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Run loads a stored run.
func (s *SQLite) Run(ctx context.Context, runID string) (models.Run, error) {
	var (
		run      models.Run
		kind     string
		status   string
		errMsg   sql.NullString
		output   sql.NullString
		finished sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, kind, video, status, error, frames, crossings, output, created_at, finished_at FROM runs WHERE run_id = ?`,
		runID).Scan(&run.ID, &kind, &run.Video, &status, &errMsg, &run.Frames, &run.Crossings, &output, &run.CreatedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return models.Run{}, err
	}
	run.Kind = models.RunKind(kind)
	run.Status = models.RunStatus(status)
	run.Error = errMsg.String
	run.Output = output.String
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return run, nil
}

// Close is a no-op so the store can sit behind a per-run Multi sink; use Shutdown
// to release the database.
func (s *SQLite) Close() error { return nil }

// Shutdown closes the database.
func (s *SQLite) Shutdown() error {
	return s.db.Close()
}
