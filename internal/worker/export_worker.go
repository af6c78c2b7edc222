package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"smartbill/internal/amqp"
	applog "smartbill/internal/log"
	"smartbill/internal/services"
	"smartbill/internal/storage"
)

// ExportWorker writes queued bill reports to the configured sink.
type ExportWorker struct {
	store     services.ExportStore
	exports   *services.ExportService
	batchSize int

	log  *applog.StructuredLogger
	sink string
}

func NewExportWorker(exports *services.ExportService, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &ExportWorker{
		store:     exports.Store(),
		exports:   exports,
		batchSize: batchSize,
	}
}

// WithLogger records written reports through sl, tagged with the sink name.
func (w *ExportWorker) WithLogger(sl *applog.StructuredLogger, sink string) *ExportWorker {
	w.log = sl
	w.sink = sink
	return w
}

func (w *ExportWorker) written(ctx context.Context, job storage.ExportJob, ref string) {
	if w.log != nil {
		w.log.LogExportWritten(ctx, job.BillID, job.ID, w.sink, ref)
		return
	}
	slog.InfoContext(ctx, "Export job completed", "job_id", job.ID, "bill_id", job.BillID, "ref", ref)
}

// HandleExportMessage processes one export request from AMQP. Jobs that are
// no longer pending are acknowledged without writing again. A job missing
// from storage yields an error wrapping amqp.ErrDiscard.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.ExportRequestMessage) error {
	slog.InfoContext(ctx, "Processing export request", "job_id", msg.JobID)

	job, err := w.store.GetExportJob(ctx, msg.JobID)
	if errors.Is(err, storage.ErrJobNotFound) {
		return fmt.Errorf("%w: get export job: %w", amqp.ErrDiscard, err)
	}
	if err != nil {
		return fmt.Errorf("get export job: %w", err)
	}
	if job.Status != storage.JobPending {
		slog.InfoContext(ctx, "Export job already settled, skipping",
			"job_id", job.ID,
			"status", job.Status)
		return nil
	}

	ref, err := w.exports.WriteJob(ctx, job)
	if err != nil {
		return fmt.Errorf("export job %s: %w", job.ID, err)
	}

	w.written(ctx, job, ref)
	return nil
}

// ProcessPendingJobs writes up to one batch of pending jobs. It backs up
// AMQP when messages are lost or publishing failed.
func (w *ExportWorker) ProcessPendingJobs(ctx context.Context) error {
	jobs, err := w.store.PendingExportJobs(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending export jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending export jobs", "count", len(jobs))

	var done, failed int
	for _, job := range jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ref, err := w.exports.WriteJob(ctx, job)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to export job", "job_id", job.ID, "error", err)
			failed++
			continue
		}
		w.written(ctx, job, ref)
		done++
	}

	slog.InfoContext(ctx, "Pending export sweep completed",
		"total", len(jobs),
		"done", done,
		"failed", failed)
	return nil
}
