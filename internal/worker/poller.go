package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval is used when no interval is configured.
const DefaultPollInterval = 30 * time.Second

// Poller runs a function on a fixed interval, once immediately on start.
type Poller struct {
	name     string
	interval time.Duration
	run      func(context.Context) error

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewPoller(name string, interval time.Duration, run func(context.Context) error) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{name: name, interval: interval, run: run}
}

// Start begins the loop. It returns an error if already running.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("%s poller is already running", p.name)
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.loop(ctx)

	slog.InfoContext(ctx, "Poller started", "name", p.name, "interval", p.interval)
	return nil
}

// Stop signals the loop and waits for the current run to finish.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Poller stopped gracefully", "name", p.name)
	case <-ctx.Done():
		slog.WarnContext(ctx, "Poller stop timed out", "name", p.name)
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if err := p.run(ctx); err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "Poller run failed", "name", p.name, "error", err)
	}
}
