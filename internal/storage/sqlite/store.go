// Package sqlite provides a SQLite-backed report store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/feiai2017/gridcombat/internal/storage"
	"github.com/feiai2017/gridcombat/internal/storage/sqlite/migrations"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DefaultListLimit caps ListReports when the caller passes no limit.
const DefaultListLimit = 50

// Store persists reports in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.ReportStore = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path, creating it if needed, and applies the
// embedded migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := MemoryPath
	if path != MemoryPath {
		dsn = filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == MemoryPath {
		// Every connection to :memory: is a separate database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveReport inserts r. Reports are immutable; saving an existing id returns
// storage.ErrAlreadyExists.
func (s *Store) SaveReport(ctx context.Context, r storage.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("report id is required")
	}
	if len(r.Outcome) == 0 {
		return fmt.Errorf("report outcome is required")
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var logJSON sql.NullString
	if len(r.Log) > 0 {
		logJSON = sql.NullString{String: string(r.Log), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO reports (
		   id, battle_id, name, seed, winner, turns, waves_cleared,
		   timed_out, created_at, outcome_json, log_json
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.BattleID, r.Name, r.Seed, r.Winner, r.Turns, r.WavesCleared,
		r.TimedOut, toMillis(createdAt), string(r.Outcome), logJSON,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// GetReport returns one report with its log.
func (s *Store) GetReport(ctx context.Context, id string) (storage.Report, error) {
	if err := ctx.Err(); err != nil {
		return storage.Report{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, battle_id, name, seed, winner, turns, waves_cleared,
		        timed_out, created_at, outcome_json, log_json
		   FROM reports WHERE id = ?`, id)
	r, err := scanReport(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Report{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Report{}, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

// ListReports returns the newest reports first, without their logs.
func (s *Store) ListReports(ctx context.Context, limit int) ([]storage.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, battle_id, name, seed, winner, turns, waves_cleared,
		        timed_out, created_at, outcome_json, NULL
		   FROM reports ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []storage.Report
	for rows.Next() {
		r, err := scanReport(rows, false)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner, withLog bool) (storage.Report, error) {
	var (
		r         storage.Report
		createdAt int64
		outcome   string
		logJSON   sql.NullString
	)
	if err := row.Scan(
		&r.ID, &r.BattleID, &r.Name, &r.Seed, &r.Winner, &r.Turns, &r.WavesCleared,
		&r.TimedOut, &createdAt, &outcome, &logJSON,
	); err != nil {
		return storage.Report{}, err
	}
	r.CreatedAt = fromMillis(createdAt)
	r.Outcome = []byte(outcome)
	if withLog && logJSON.Valid {
		r.Log = []byte(logJSON.String)
	}
	return r, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
