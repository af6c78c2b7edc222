// Package export writes bill reports to an external sink.
package export

import (
	"context"

	"smartbill/internal/report"
)

// Writer is implemented by every sink. The returned reference identifies
// where the report landed (a sheet range, an object URI) and is stored on
// the export job.
type Writer interface {
	WriteReport(ctx context.Context, jobID string, r report.BillReport) (ref string, err error)
}

// SinkType names a Writer implementation.
type SinkType string

const (
	MemorySink SinkType = "memory"
	SheetsSink SinkType = "sheets"
	GCSSink    SinkType = "gcs"
)

func (s SinkType) IsValid() bool {
	switch s {
	case MemorySink, SheetsSink, GCSSink:
		return true
	}
	return false
}

func (s SinkType) String() string { return string(s) }

// SinkTypes returns every supported sink.
func SinkTypes() []SinkType {
	return []SinkType{MemorySink, SheetsSink, GCSSink}
}
