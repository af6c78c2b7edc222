package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

var ErrJobNotFound = errors.New("export job not found")

// ExportJob is one request to write a bill report to the configured sink.
// Payload holds the JSON-encoded report so the worker never has to call the
// backend again.
type ExportJob struct {
	ID        string
	BillID    string
	Status    JobStatus
	Payload   []byte
	Ref       string
	Error     string
	Attempts  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

var exportJobColumns = []string{
	"id", "bill_id", "status", "payload", "ref", "error", "attempts", "created_at", "updated_at",
}

func (r *SQLiteRepository) CreateExportJob(ctx context.Context, billID string, payload []byte) (ExportJob, error) {
	now := r.timestamp()
	job := ExportJob{
		ID:        uuid.NewString(),
		BillID:    billID,
		Status:    JobPending,
		Payload:   payload,
		CreatedAt: parseTimestamp(now),
		UpdatedAt: parseTimestamp(now),
	}

	query, args, err := builder.
		Insert("export_jobs").
		Columns("id", "bill_id", "status", "payload", "created_at", "updated_at").
		Values(job.ID, job.BillID, string(job.Status), string(payload), now, now).
		ToSql()
	if err != nil {
		return ExportJob{}, fmt.Errorf("build create export job query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return ExportJob{}, fmt.Errorf("create export job: %w", err)
	}

	slog.InfoContext(ctx, "Export job created", "job_id", job.ID, "bill_id", billID)
	return job, nil
}

func (r *SQLiteRepository) GetExportJob(ctx context.Context, id string) (ExportJob, error) {
	query, args, err := builder.
		Select(exportJobColumns...).
		From("export_jobs").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return ExportJob{}, fmt.Errorf("build get export job query: %w", err)
	}

	job, err := scanExportJob(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return ExportJob{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return ExportJob{}, fmt.Errorf("get export job %s: %w", id, err)
	}
	return job, nil
}

// PendingExportJobs returns up to limit pending jobs, oldest first.
func (r *SQLiteRepository) PendingExportJobs(ctx context.Context, limit int) ([]ExportJob, error) {
	q := builder.
		Select(exportJobColumns...).
		From("export_jobs").
		Where(sq.Eq{"status": string(JobPending)}).
		OrderBy("created_at ASC", "rowid ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pending export jobs query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get pending export jobs: %w", err)
	}
	defer rows.Close()

	var jobs []ExportJob
	for rows.Next() {
		job, err := scanExportJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan export job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkExportDone records the sink reference of a written report.
func (r *SQLiteRepository) MarkExportDone(ctx context.Context, id, ref string) error {
	if err := r.updateExportJob(ctx, id, sq.Eq{"status": string(JobDone), "ref": ref, "error": ""}); err != nil {
		return fmt.Errorf("mark export done: %w", err)
	}
	slog.InfoContext(ctx, "Export job marked as done", "job_id", id, "ref", ref)
	return nil
}

// MarkExportFailed records a failed attempt. The job stays pending until it
// has failed maxAttempts times.
func (r *SQLiteRepository) MarkExportFailed(ctx context.Context, id, reason string, maxAttempts int) error {
	job, err := r.GetExportJob(ctx, id)
	if err != nil {
		return err
	}

	attempts := job.Attempts + 1
	status := JobPending
	if attempts >= maxAttempts {
		status = JobFailed
	}
	if err := r.updateExportJob(ctx, id, sq.Eq{"status": string(status), "error": reason, "attempts": attempts}); err != nil {
		return fmt.Errorf("mark export failed: %w", err)
	}

	slog.WarnContext(ctx, "Export job attempt failed",
		"job_id", id,
		"attempts", attempts,
		"status", status,
		"error", reason)
	return nil
}

func (r *SQLiteRepository) updateExportJob(ctx context.Context, id string, set sq.Eq) error {
	q := builder.Update("export_jobs").Set("updated_at", r.timestamp()).Where(sq.Eq{"id": id})
	for col, v := range set {
		q = q.Set(col, v)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExportJob(row rowScanner) (ExportJob, error) {
	var (
		job                  ExportJob
		status, payload      string
		createdAt, updatedAt string
	)
	if err := row.Scan(&job.ID, &job.BillID, &status, &payload, &job.Ref, &job.Error, &job.Attempts, &createdAt, &updatedAt); err != nil {
		return ExportJob{}, err
	}
	job.Status = JobStatus(status)
	job.Payload = []byte(payload)
	job.CreatedAt = parseTimestamp(createdAt)
	job.UpdatedAt = parseTimestamp(updatedAt)
	return job, nil
}
