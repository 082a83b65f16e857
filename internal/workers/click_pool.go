package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"shortly/internal/entities"
)

const insertTimeout = 5 * time.Second

// ClickInserter persists a click event
type ClickInserter interface {
	Insert(ctx context.Context, e *entities.ClickEvent) error
}

// ClickPool persists click events in the background with a fixed number of
// workers reading from a bounded queue. Enqueue never blocks.
type ClickPool struct {
	inserter ClickInserter
	queue    chan *entities.ClickEvent
	workers  int
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool

	done chan struct{}
}

// NewClickPool creates a pool. Non-positive sizes fall back to one worker and a queue of 1024.
func NewClickPool(inserter ClickInserter, bufferSize, workers int, logger *slog.Logger) *ClickPool {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	if workers <= 0 {
		workers = 1
	}
	return &ClickPool{
		inserter: inserter,
		queue:    make(chan *entities.ClickEvent, bufferSize),
		workers:  workers,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Enqueue hands an event to the workers. It reports false when the queue is
// full or the pool is shutting down.
func (p *ClickPool) Enqueue(e *entities.ClickEvent) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}

	select {
	case p.queue <- e:
		return true
	default:
		return false
	}
}

// Run starts the workers and blocks until the queue is closed by Shutdown and
// drained. Inserts are not cancelled by ctx; each one gets its own timeout.
func (p *ClickPool) Run(ctx context.Context) error {
	defer close(p.done)

	base := context.WithoutCancel(ctx)

	var g errgroup.Group
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for e := range p.queue {
				p.insert(base, e)
			}
			return nil
		})
	}

	p.logger.Info("click pool started", slog.Int("workers", p.workers), slog.Int("buffer", cap(p.queue)))
	return g.Wait()
}

func (p *ClickPool) insert(ctx context.Context, e *entities.ClickEvent) {
	ctx, cancel := context.WithTimeout(ctx, insertTimeout)
	defer cancel()

	if err := p.inserter.Insert(ctx, e); err != nil {
		p.logger.Error("failed to insert click event", slog.Int64("url_id", e.URLID), slog.Any("error", err))
	}
}

// Shutdown stops accepting events and waits for Run to write the queued ones,
// or for ctx to expire
func (p *ClickPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		p.logger.Info("click pool drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending is the number of queued events not yet picked up by a worker
func (p *ClickPool) Pending() int {
	return len(p.queue)
}
