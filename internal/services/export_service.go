package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"

	"smartbill/internal/core"
	"smartbill/internal/export"
	"smartbill/internal/report"
	"smartbill/internal/storage"
)

// DefaultMaxAttempts is how often a job is written before it is marked failed.
const DefaultMaxAttempts = 3

// ExportStore is the job ledger. storage.SQLiteRepository implements it.
type ExportStore interface {
	CreateExportJob(ctx context.Context, billID string, payload []byte) (storage.ExportJob, error)
	GetExportJob(ctx context.Context, id string) (storage.ExportJob, error)
	PendingExportJobs(ctx context.Context, limit int) ([]storage.ExportJob, error)
	MarkExportDone(ctx context.Context, id, ref string) error
	MarkExportFailed(ctx context.Context, id, reason string, maxAttempts int) error
}

// Publisher hands a job to the worker. amqp.Client implements it.
type Publisher interface {
	PublishExportRequest(ctx context.Context, jobID string) error
}

type ExportOptions struct {
	Report      report.Options
	MaxAttempts int
}

// ExportService records bill report exports locally and hands them to the
// worker, or writes them inline when no broker is configured.
type ExportService struct {
	store     ExportStore
	publisher Publisher
	writer    export.Writer
	opts      ExportOptions
}

// NewExportService accepts a nil publisher (inline mode) or a nil writer
// (publish-only mode, as in the web server with a broker), but not both.
func NewExportService(store ExportStore, publisher Publisher, writer export.Writer, opts ExportOptions) *ExportService {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &ExportService{
		store:     store,
		publisher: publisher,
		writer:    writer,
		opts:      opts,
	}
}

// Request builds the report for bill and records an export job. The job is
// returned even when publishing fails; the worker picks it up on its next
// pending sweep.
func (s *ExportService) Request(ctx context.Context, bill core.BillRecord) (storage.ExportJob, error) {
	r := report.Build(bill, s.opts.Report)
	payload, err := json.Marshal(r)
	if err != nil {
		return storage.ExportJob{}, fmt.Errorf("encode report: %w", err)
	}

	job, err := s.store.CreateExportJob(ctx, bill.ID, payload)
	if err != nil {
		return storage.ExportJob{}, fmt.Errorf("save export job: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishExportRequest(ctx, job.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish export request", "job_id", job.ID, "error", err)
		}
		return job, nil
	}

	if s.writer == nil {
		slog.WarnContext(ctx, "No export sink or broker configured, job left pending", "job_id", job.ID)
		return job, nil
	}

	ref, err := s.WriteJob(ctx, job)
	if err != nil {
		return job, err
	}
	job.Status = storage.JobDone
	job.Ref = ref
	return job, nil
}

// WriteJob writes a pending job to the sink and records the outcome.
func (s *ExportService) WriteJob(ctx context.Context, job storage.ExportJob) (string, error) {
	if s.writer == nil {
		return "", fmt.Errorf("write export job %s: no sink configured", job.ID)
	}

	var r report.BillReport
	if err := json.Unmarshal(job.Payload, &r); err != nil {
		// A corrupt payload never succeeds; fail it outright.
		if markErr := s.store.MarkExportFailed(ctx, job.ID, err.Error(), 1); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export failed", "job_id", job.ID, "error", markErr)
		}
		return "", fmt.Errorf("decode export job %s: %w", job.ID, err)
	}

	ref, err := s.writer.WriteReport(ctx, job.ID, r)
	if err != nil {
		if markErr := s.store.MarkExportFailed(ctx, job.ID, err.Error(), s.opts.MaxAttempts); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export failed", "job_id", job.ID, "error", markErr)
		}
		return "", fmt.Errorf("write report: %w", err)
	}

	if err := s.store.MarkExportDone(ctx, job.ID, ref); err != nil {
		// The report is written; a retry would only duplicate it.
		slog.ErrorContext(ctx, "Failed to mark export done", "job_id", job.ID, "error", err)
	}
	return ref, nil
}

func (s *ExportService) Store() ExportStore { return s.store }
