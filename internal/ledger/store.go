package ledger

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store persists run history in SQLite. The ledger is reporting only: the
// result store's file existence check remains the sole resume primitive,
// and a deleted ledger never affects generation.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database under dir and applies
// migrations.
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "ledger.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) applyMigrations(ctx context.Context) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")
		var count int
		row := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = ?", version)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("scan migration version: %w", err)
		}
		if count > 0 {
			continue
		}
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("record migration %s: %w", version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// StartRun records the beginning of a run and returns its identifier.
func (s *Store) StartRun(ctx context.Context, kind, model, dataset string, workers int) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (id, kind, model, dataset, workers, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, kind, model, dataset, workers, now,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun records final counts for a run.
func (s *Store) FinishRun(ctx context.Context, id string, total, completed, skipped, failed int, merged bool) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	mergedVal := 0
	if merged {
		mergedVal = 1
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE runs SET finished_at = ?, total = ?, completed = ?, skipped = ?, failed = ?, merged = ? WHERE id = ?`,
		now, total, completed, skipped, failed, mergedVal, id,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// RecordDrops persists the reasons a filter run removed lines.
func (s *Store) RecordDrops(ctx context.Context, runID string, drops []Drop) error {
	if len(drops) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin drops tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, drop := range drops {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT OR REPLACE INTO drops (run_id, line_idx, reason) VALUES (?, ?, ?)`,
			runID, drop.LineIdx, drop.Reason,
		); err != nil {
			return fmt.Errorf("insert drop: %w", err)
		}
	}
	return tx.Commit()
}

// Drops returns the recorded removals for a run, ascending by line index.
func (s *Store) Drops(ctx context.Context, runID string) ([]Drop, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT line_idx, reason FROM drops WHERE run_id = ? ORDER BY line_idx`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query drops: %w", err)
	}
	defer rows.Close()

	var drops []Drop
	for rows.Next() {
		var drop Drop
		if err := rows.Scan(&drop.LineIdx, &drop.Reason); err != nil {
			return nil, fmt.Errorf("scan drop: %w", err)
		}
		drops = append(drops, drop)
	}
	return drops, rows.Err()
}

// Runs returns the most recent runs, newest first, capped at limit.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, kind, model, dataset, workers, started_at, finished_at,
                total, completed, skipped, failed, merged
         FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			startedAt  string
			finishedAt sql.NullString
			merged     int
		)
		if err := rows.Scan(
			&run.ID, &run.Kind, &run.Model, &run.Dataset, &run.Workers,
			&startedAt, &finishedAt,
			&run.Total, &run.Completed, &run.Skipped, &run.Failed, &merged,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		if finishedAt.Valid {
			parsed, err := time.Parse(time.RFC3339Nano, finishedAt.String)
			if err == nil {
				run.FinishedAt = &parsed
			}
		}
		run.Merged = merged != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
