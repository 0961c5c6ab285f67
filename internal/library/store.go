// Package library persists synthesis jobs and their chapter manifests in
// SQLite so front ends can list past runs and resume bookkeeping after a
// restart.
package library

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/narravox/narravox/internal/config"
	_ "modernc.org/sqlite"
)

// Terminal job statuses. Cancelled is terminal but not a failure.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Job is one synthesis run.
type Job struct {
	ID         string
	SourcePath string
	Title      string
	Voice      string
	Status     string
	Error      string
	MergedPath string
	CreatedAt  time.Time
	FinishedAt time.Time
}

// ChapterRecord is one chapter's placement and optional per-chapter file.
type ChapterRecord struct {
	Index int
	Title string
	Start float64
	End   float64
	Path  string
}

// Store wraps the SQLite-backed job library. A store opened with an empty
// path is a no-op: every write succeeds and every read returns nothing.
type Store struct {
	db    *sql.DB
	cfg   config.LibraryConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the library according to config.
func Open(ctx context.Context, cfg config.LibraryConfig, log *slog.Logger) (*Store, error) {
	if cfg.Path == "" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("library vacuum failed", slog.String("error", err.Error()))
		}
	}
	if err := s.Prune(ctx); err != nil {
		log.Warn("library prune on start failed", slog.String("error", err.Error()))
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS jobs (
    job_id TEXT PRIMARY KEY,
    source_path TEXT,
    title TEXT,
    voice TEXT,
    status TEXT NOT NULL,
    error TEXT,
    merged_path TEXT,
    created_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS chapters (
    job_id TEXT NOT NULL,
    idx INTEGER NOT NULL,
    title TEXT,
    start_sec REAL NOT NULL,
    end_sec REAL NOT NULL,
    path TEXT,
    PRIMARY KEY(job_id, idx),
    FOREIGN KEY(job_id) REFERENCES jobs(job_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateJob records a new run in the running state.
func (s *Store) CreateJob(ctx context.Context, job Job) error {
	if s.db == nil {
		return nil
	}
	if job.Status == "" {
		job.Status = StatusRunning
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs(job_id, source_path, title, voice, status, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		job.ID, job.SourcePath, job.Title, job.Voice, job.Status, job.CreatedAt)
	return err
}

// FinishJob marks a job terminal.
func (s *Store) FinishJob(ctx context.Context, jobID, status, errMsg, mergedPath string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, merged_path = ?, finished_at = ? WHERE job_id = ?`,
		status, errMsg, mergedPath, s.clock().UTC(), jobID)
	return err
}

// SaveChapters replaces a job's chapter manifest.
func (s *Store) SaveChapters(ctx context.Context, jobID string, chapters []ChapterRecord) error {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE job_id = ?`, jobID); err != nil {
		return err
	}
	for _, ch := range chapters {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chapters(job_id, idx, title, start_sec, end_sec, path)
			 VALUES(?, ?, ?, ?, ?, ?)`,
			jobID, ch.Index, ch.Title, ch.Start, ch.End, ch.Path); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetJob loads a job and its chapters.
func (s *Store) GetJob(ctx context.Context, jobID string) (Job, []ChapterRecord, error) {
	if s.db == nil {
		return Job{}, nil, sql.ErrNoRows
	}
	var job Job
	var created string
	var finished sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT job_id, source_path, title, voice, status, COALESCE(error, ''), COALESCE(merged_path, ''), created_at, finished_at
		 FROM jobs WHERE job_id = ?`, jobID).
		Scan(&job.ID, &job.SourcePath, &job.Title, &job.Voice, &job.Status, &job.Error, &job.MergedPath, &created, &finished)
	if err != nil {
		return Job{}, nil, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		job.CreatedAt = ts
	}
	if finished.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, finished.String); err == nil {
			job.FinishedAt = ts
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, COALESCE(title, ''), start_sec, end_sec, COALESCE(path, '')
		 FROM chapters WHERE job_id = ? ORDER BY idx ASC`, jobID)
	if err != nil {
		return Job{}, nil, err
	}
	defer rows.Close()

	var chapters []ChapterRecord
	for rows.Next() {
		var ch ChapterRecord
		if err := rows.Scan(&ch.Index, &ch.Title, &ch.Start, &ch.End, &ch.Path); err != nil {
			return Job{}, nil, err
		}
		chapters = append(chapters, ch)
	}
	return job, chapters, rows.Err()
}

// ListJobs returns the newest jobs first, up to limit.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, source_path, title, voice, status, COALESCE(error, ''), COALESCE(merged_path, ''), created_at
		 FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		var created string
		if err := rows.Scan(&job.ID, &job.SourcePath, &job.Title, &job.Voice, &job.Status, &job.Error, &job.MergedPath, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			job.CreatedAt = ts
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Prune applies configured retention.
func (s *Store) Prune(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour).UTC()
		if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE created_at < ?`, cutoff); err != nil {
			return err
		}
	}
	if s.cfg.MaxJobs > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE job_id IN (
			SELECT job_id FROM jobs ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxJobs); err != nil {
			return err
		}
	}
	return tx.Commit()
}
