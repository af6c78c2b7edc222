// Package cache keeps recently fetched backend records in memory for a
// short time.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweepable is a cache that can drop its expired entries.
type Sweepable interface {
	Sweep() int
}

// Sweeper periodically sweeps registered caches so expired entries that are
// never read again do not pin memory.
type Sweeper struct {
	mu     sync.Mutex
	caches []Sweepable
	done   chan struct{}
}

func NewSweeper(caches ...Sweepable) *Sweeper {
	return &Sweeper{caches: caches}
}

func (s *Sweeper) Register(c Sweepable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caches = append(s.caches, c)
}

// SweepOnce sweeps every registered cache and returns the total removed.
func (s *Sweeper) SweepOnce() int {
	s.mu.Lock()
	caches := append([]Sweepable(nil), s.caches...)
	s.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.Sweep()
	}
	return total
}

// Start sweeps on interval until ctx is cancelled. Done is closed once the
// loop has exited.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.SweepOnce(); n > 0 {
					slog.DebugContext(ctx, "Cache sweep", "removed", n)
				}
			}
		}
	}()
}

// Done returns a channel closed when the sweep loop stops, or nil if it was
// never started.
func (s *Sweeper) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
