// Package store persists queue snapshots across restarts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/sheet"
)

// ReloadErrorMessage is the fixed error detail given to jobs that were not
// terminal when the process stopped. Their raw sources are gone, so the work
// cannot resume.
const ReloadErrorMessage = "interrupted by an application restart; upload the file again to retry"

// Config holds snapshot store settings.
type Config struct {
	Driver string // sqlite or postgres

	SQLitePath        string
	SQLiteJournalMode string

	PostgresDSN     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SnapshotStore persists the job queue in a relational database. Snapshots
// never contain raw source handles or thumbnail data.
type SnapshotStore struct {
	db     *sql.DB
	driver string
}

// Open connects to the configured database and ensures the schema exists.
func Open(cfg Config) (*SnapshotStore, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cfg.Driver {
	case "sqlite":
		dsn := cfg.SQLitePath
		if cfg.SQLiteJournalMode != "" {
			dsn += "?_journal_mode=" + cfg.SQLiteJournalMode
		}
		db, err = sql.Open("sqlite3", dsn)
		if err == nil {
			db.SetMaxOpenConns(1)
		}
	case "postgres":
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err == nil {
			if cfg.MaxOpenConns > 0 {
				db.SetMaxOpenConns(cfg.MaxOpenConns)
			}
			if cfg.MaxIdleConns > 0 {
				db.SetMaxIdleConns(cfg.MaxIdleConns)
			}
			if cfg.ConnMaxLifetime > 0 {
				db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
			}
		}
	default:
		return nil, fmt.Errorf("unknown store driver: %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	s := &SnapshotStore{db: db, driver: cfg.Driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SnapshotStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS queue_jobs (
			id             TEXT PRIMARY KEY,
			position       INTEGER NOT NULL,
			file_name      TEXT NOT NULL,
			mode           TEXT NOT NULL,
			status         TEXT NOT NULL,
			page_range     TEXT NOT NULL DEFAULT '',
			error_detail   TEXT NOT NULL DEFAULT '',
			output_options TEXT NOT NULL,
			result_sheets  TEXT,
			created_at     TIMESTAMP NOT NULL,
			updated_at     TIMESTAMP NOT NULL
		)
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("migrate queue_jobs: %w", err)
	}
	return nil
}

// Save replaces the persisted snapshot with the given queue, in queue order.
func (s *SnapshotStore) Save(ctx context.Context, jobs []domain.Job) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM queue_jobs`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	insert := `
		INSERT INTO queue_jobs
			(id, position, file_name, mode, status, page_range, error_detail,
			 output_options, result_sheets, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	for i, job := range jobs {
		opts, err := json.Marshal(job.OutputOptions)
		if err != nil {
			return fmt.Errorf("marshal output options: %w", err)
		}

		var sheets sql.NullString
		if job.ResultSheets != nil {
			data, err := json.Marshal(job.ResultSheets)
			if err != nil {
				return fmt.Errorf("marshal result sheets: %w", err)
			}
			sheets = sql.NullString{String: string(data), Valid: true}
		}

		_, err = tx.ExecContext(ctx, insert,
			job.ID, i, job.FileName, string(job.Mode), string(job.Status),
			job.PageRange, job.ErrorDetail, string(opts), sheets,
			job.CreatedAt, job.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert job %s: %w", job.ID, err)
		}
	}

	return tx.Commit()
}

// Load restores the persisted queue in order. Jobs that were not terminal
// when the snapshot was written come back as errors with a fixed message:
// their source handles are gone, so no work survives a restart.
func (s *SnapshotStore) Load(ctx context.Context) ([]domain.Job, error) {
	query := `
		SELECT id, file_name, mode, status, page_range, error_detail,
		       output_options, result_sheets, created_at, updated_at
		FROM queue_jobs ORDER BY position
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		var (
			job      domain.Job
			mode     string
			status   string
			opts     string
			sheetsNS sql.NullString
		)
		err := rows.Scan(&job.ID, &job.FileName, &mode, &status, &job.PageRange,
			&job.ErrorDetail, &opts, &sheetsNS, &job.CreatedAt, &job.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}

		job.Mode = domain.ConversionMode(mode)
		job.Status = domain.JobStatus(status)

		if err := json.Unmarshal([]byte(opts), &job.OutputOptions); err != nil {
			return nil, fmt.Errorf("unmarshal output options for %s: %w", job.ID, err)
		}
		if sheetsNS.Valid {
			var sheets []sheet.Sheet
			if err := json.Unmarshal([]byte(sheetsNS.String), &sheets); err != nil {
				return nil, fmt.Errorf("unmarshal result sheets for %s: %w", job.ID, err)
			}
			job.ResultSheets = sheets
		}

		if !job.Status.Terminal() {
			job.Status = domain.StatusError
			job.ErrorDetail = ReloadErrorMessage
			job.ResultSheets = nil
			job.ProgressMessage = ""
		}

		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Close closes the database connection.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}
