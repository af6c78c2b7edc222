package export

import (
	"context"
	"fmt"
	"log/slog"

	"smartbill/internal/export/gcs"
	"smartbill/internal/export/google"
	"smartbill/internal/export/memory"
)

// Config selects and configures a sink.
type Config struct {
	Sink SinkType

	// Sheets sink
	SpreadsheetID string
	SheetName     string

	// GCS sink
	Bucket string
	Prefix string
}

func (c Config) Validate() error {
	if !c.Sink.IsValid() {
		return fmt.Errorf("invalid export sink: %q (want one of %v)", c.Sink, SinkTypes())
	}
	switch c.Sink {
	case SheetsSink:
		if c.SpreadsheetID == "" {
			return fmt.Errorf("GOOGLE_SPREADSHEET_ID is required for the sheets sink")
		}
	case GCSSink:
		if c.Bucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for the gcs sink")
		}
	}
	return nil
}

// NewWriter builds the configured sink. The returned cleanup releases any
// client the sink holds and is never nil.
func NewWriter(ctx context.Context, cfg Config) (Writer, func() error, error) {
	noop := func() error { return nil }
	if err := cfg.Validate(); err != nil {
		return nil, noop, err
	}

	switch cfg.Sink {
	case SheetsSink:
		c, err := google.New(ctx, cfg.SpreadsheetID, cfg.SheetName)
		if err != nil {
			return nil, noop, fmt.Errorf("initialize sheets sink: %w", err)
		}
		slog.InfoContext(ctx, "Initialized sheets export sink", "spreadsheet_id", cfg.SpreadsheetID, "sheet", cfg.SheetName)
		return c, noop, nil
	case GCSSink:
		w, err := gcs.New(ctx, cfg.Bucket, cfg.Prefix)
		if err != nil {
			return nil, noop, fmt.Errorf("initialize gcs sink: %w", err)
		}
		slog.InfoContext(ctx, "Initialized GCS export sink", "bucket", cfg.Bucket, "prefix", cfg.Prefix)
		return w, w.Close, nil
	default:
		slog.InfoContext(ctx, "Initialized in-memory export sink")
		return memory.New(), noop, nil
	}
}
