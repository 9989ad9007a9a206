// Package persist archives finished searches in the background. Archive
// never blocks the search path: snapshots go through a bounded queue to
// a fixed set of workers, and a full queue drops the snapshot with a log
// line rather than stall the caller.
package persist

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonesrussell/pricescout/internal/domain"
	"github.com/jonesrussell/pricescout/internal/logger"
)

// Store writes a finished search to durable storage.
type Store interface {
	SaveSearch(ctx context.Context, snap domain.Snapshot) error
}

// Config sizes the pool.
type Config struct {
	Workers     int
	QueueSize   int
	SaveTimeout time.Duration
}

// SetDefaults applies default values for unset fields.
func (c *Config) SetDefaults() {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = 10 * time.Second
	}
}

// Stats are the pool's lifetime counters.
type Stats struct {
	Enqueued  int64
	Saved     int64
	Failed    int64
	Dropped   int64
	QueueSize int
}

// Pool is the bounded background writer.
type Pool struct {
	cfg   Config
	store Store
	log   logger.Logger

	jobs     chan domain.Snapshot
	wg       sync.WaitGroup
	stopOnce sync.Once

	// stopMu serializes enqueues against shutdown: Archive holds the
	// read side across the stopped check and the send, Stop holds the
	// write side while closing jobs, so a send can never hit a closed
	// channel.
	stopMu  sync.RWMutex
	stopped bool

	enqueued atomic.Int64
	saved    atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
}

// NewPool creates and starts the pool.
func NewPool(cfg Config, store Store, log logger.Logger) *Pool {
	cfg.SetDefaults()
	p := &Pool{
		cfg:   cfg,
		store: store,
		log:   log,
		jobs:  make(chan domain.Snapshot, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Archive enqueues a snapshot for background persistence. Non-blocking:
// when the queue is full the snapshot is dropped and logged. The live
// stream and the search's terminal status are unaffected either way.
func (p *Pool) Archive(snap domain.Snapshot) {
	p.stopMu.RLock()
	defer p.stopMu.RUnlock()

	if p.stopped {
		p.dropped.Add(1)
		p.log.Warn("archive after shutdown, dropping snapshot",
			logger.String("search_id", snap.ID))
		return
	}
	select {
	case p.jobs <- snap:
		p.enqueued.Add(1)
	default:
		p.dropped.Add(1)
		p.log.Warn("archive queue full, dropping snapshot",
			logger.String("search_id", snap.ID))
	}
}

// Stop drains the queue and waits for in-flight saves, up to ctx's
// deadline.
func (p *Pool) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.stopMu.Lock()
		p.stopped = true
		close(p.jobs)
		p.stopMu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Enqueued:  p.enqueued.Load(),
		Saved:     p.saved.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
		QueueSize: len(p.jobs),
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for snap := range p.jobs {
		p.save(snap)
	}
}

func (p *Pool) save(snap domain.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.SaveTimeout)
	defer cancel()

	start := time.Now()
	if err := p.store.SaveSearch(ctx, snap); err != nil {
		p.failed.Add(1)
		p.log.Error("saving search",
			logger.String("search_id", snap.ID),
			logger.Error(err))
		return
	}
	p.saved.Add(1)
	p.log.Debug("search archived",
		logger.String("search_id", snap.ID),
		logger.Int("products", len(snap.Products)),
		logger.Duration("took", time.Since(start)))
}
