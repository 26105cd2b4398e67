// Package migrations applies the embedded Postgres schema.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed *.sql
var files embed.FS

const historyTable = "public.schema_migrations_meetbook"

// Result lists the migration files by outcome, in file name order.
type Result struct {
	Applied []string
	Skipped []string
}

// Runner applies embedded migrations that are not yet recorded in the history table.
type Runner struct {
	db     *sql.DB
	logger *slog.Logger
	source fs.FS
}

func NewRunner(logger *slog.Logger, db *sql.DB) *Runner {
	return &Runner{db: db, logger: logger, source: files}
}

// Up applies pending migrations one file per transaction. It stops at the first failing
// file; files applied before it stay applied and are listed in the result.
func (r *Runner) Up(ctx context.Context) (Result, error) {
	var res Result
	if r.db == nil {
		return res, errors.New("db is required")
	}
	if err := r.ensureHistory(ctx); err != nil {
		return res, err
	}

	names, err := pending(r.source)
	if err != nil {
		return res, err
	}
	done, err := r.history(ctx)
	if err != nil {
		return res, err
	}

	for _, name := range names {
		if done[name] {
			r.logger.Debug("Migration already applied", "file", name)
			res.Skipped = append(res.Skipped, name)
			continue
		}
		if err := r.apply(ctx, name); err != nil {
			return res, err
		}
		r.logger.Info("Applied migration", "file", name)
		res.Applied = append(res.Applied, name)
	}
	return res, nil
}

func pending(source fs.FS) ([]string, error) {
	names, err := fs.Glob(source, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list embedded migrations: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (r *Runner) ensureHistory(ctx context.Context) error {
	const query = `
CREATE TABLE IF NOT EXISTS ` + historyTable + ` (
	filename text PRIMARY KEY,
	applied_at timestamptz NOT NULL DEFAULT now()
)
`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure migration history: %w", err)
	}
	return nil
}

// history returns the set of recorded file names.
func (r *Runner) history(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT filename FROM `+historyTable)
	if err != nil {
		return nil, fmt.Errorf("read migration history: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("read migration history: %w", err)
		}
		done[name] = true
	}
	return done, rows.Err()
}

// apply runs one file and records it in the same transaction. Objects that already exist
// (a schema created by hand, say) count as applied.
func (r *Runner) apply(ctx context.Context, name string) error {
	body, err := fs.ReadFile(r.source, name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		if !alreadyExists(err) {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		r.logger.Warn("Migration objects already exist, recording as applied", "file", name, "error", err)
		_ = tx.Rollback()
		return r.record(ctx, r.db, name)
	}
	if err := r.record(ctx, tx, name); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Runner) record(ctx context.Context, db execer, name string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO `+historyTable+` (filename) VALUES ($1) ON CONFLICT (filename) DO NOTHING`,
		name,
	)
	if err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	return nil
}

// alreadyExists reports duplicate_table, duplicate_object and duplicate_schema errors.
func alreadyExists(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "42P07", "42710", "42P06":
		return true
	}
	return false
}
