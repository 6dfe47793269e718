// Package history keeps every weekly record in a local SQLite database so
// past weeks can be listed and served without re-reading the CSV.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"timesheet/internal/aggregate"
)

// ErrNotFound is returned by Get for an unknown week.
var ErrNotFound = errors.New("week not found")

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS weeks (
		week_start     TEXT PRIMARY KEY,
		weekly_seconds INTEGER NOT NULL,
		elapsed_seconds INTEGER NOT NULL,
		recorded_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS week_totals (
		week_start TEXT NOT NULL REFERENCES weeks(week_start) ON DELETE CASCADE,
		category   TEXT NOT NULL,
		seconds    INTEGER NOT NULL,
		PRIMARY KEY (week_start, category)
	)`,
}

// Entry is one stored week.
type Entry struct {
	Record     aggregate.WeeklyRecord
	RecordedAt time.Time
}

// Store is the SQLite-backed history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path. ":memory:" gives an
// in-memory database. WAL mode and foreign keys are enabled and migrations
// are applied.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migration %d: %w", i, err)
		}
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save inserts rec, replacing any earlier record for the same week.
func (s *Store) Save(ctx context.Context, rec aggregate.WeeklyRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	key := rec.Key()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO weeks (week_start, weekly_seconds, elapsed_seconds, recorded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(week_start) DO UPDATE SET
			weekly_seconds = excluded.weekly_seconds,
			elapsed_seconds = excluded.elapsed_seconds,
			recorded_at = excluded.recorded_at`,
		key,
		int64(rec.WeeklyTotal().Seconds()),
		int64(rec.Totals.Elapsed().Seconds()),
		s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert week %s: %w", key, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM week_totals WHERE week_start = ?`, key); err != nil {
		return fmt.Errorf("clear totals %s: %w", key, err)
	}
	for _, c := range aggregate.Categories() {
		d := rec.Totals.Total(c)
		if d == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO week_totals (week_start, category, seconds) VALUES (?, ?, ?)`,
			key, string(c), int64(d/time.Second),
		); err != nil {
			return fmt.Errorf("insert total %s/%s: %w", key, c, err)
		}
	}

	return tx.Commit()
}

// List returns every stored week, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT week_start, recorded_at FROM weeks ORDER BY week_start DESC`)
	if err != nil {
		return nil, fmt.Errorf("list weeks: %w", err)
	}
	type head struct{ key, recorded string }
	var heads []head
	for rows.Next() {
		var h head
		if err := rows.Scan(&h.key, &h.recorded); err != nil {
			rows.Close()
			return nil, err
		}
		heads = append(heads, h)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(heads))
	for _, h := range heads {
		e, err := s.load(ctx, h.key, h.recorded)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Get returns the week starting on weekStart (YYYY-MM-DD).
func (s *Store) Get(ctx context.Context, weekStart string) (Entry, error) {
	var recorded string
	err := s.db.QueryRowContext(ctx, `SELECT recorded_at FROM weeks WHERE week_start = ?`, weekStart).Scan(&recorded)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, weekStart)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get week %s: %w", weekStart, err)
	}
	return s.load(ctx, weekStart, recorded)
}

func (s *Store) load(ctx context.Context, key, recorded string) (Entry, error) {
	start, err := time.Parse(aggregate.WeekStartLayout, key)
	if err != nil {
		return Entry{}, fmt.Errorf("stored week %q: %w", key, err)
	}
	at, err := time.Parse(time.RFC3339, recorded)
	if err != nil {
		return Entry{}, fmt.Errorf("stored recorded_at %q: %w", recorded, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT category, seconds FROM week_totals WHERE week_start = ?`, key)
	if err != nil {
		return Entry{}, fmt.Errorf("load totals %s: %w", key, err)
	}
	defer rows.Close()

	var acc aggregate.Accumulator
	for rows.Next() {
		var (
			code    string
			seconds int64
		)
		if err := rows.Scan(&code, &seconds); err != nil {
			return Entry{}, err
		}
		acc = acc.Add(aggregate.Category(code), time.Duration(seconds)*time.Second)
	}
	if err := rows.Err(); err != nil {
		return Entry{}, err
	}

	w := aggregate.Window{Start: start, End: start.AddDate(0, 0, 7)}
	return Entry{Record: aggregate.NewWeeklyRecord(w, acc), RecordedAt: at}, nil
}
