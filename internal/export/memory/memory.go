package memory

import (
	"context"
	"fmt"
	"sync"

	"smartbill/internal/report"
)

// Store keeps written reports in memory. It backs local development and
// tests.
type Store struct {
	mu      sync.Mutex
	reports []report.BillReport
	jobs    []string
}

func New() *Store {
	return &Store{}
}

// WriteReport stores r and returns a synthetic reference.
func (s *Store) WriteReport(ctx context.Context, jobID string, r report.BillReport) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	s.jobs = append(s.jobs, jobID)
	return fmt.Sprintf("mem:%d", len(s.reports)), nil
}

// Reports returns a copy of everything written so far.
func (s *Store) Reports() []report.BillReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]report.BillReport(nil), s.reports...)
}

// Jobs returns the job IDs in write order.
func (s *Store) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.jobs...)
}
