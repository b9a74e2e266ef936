package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ghalamif/CalibraFlow/internal/adapters/observability"
	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

var (
	// ErrQueueFull indicates the archive queue rejected the reading according to policy.
	ErrQueueFull = errors.New("pipeline: queue full")
	// ErrJournalFull indicates the journal is at capacity and OnJournalFull != "block".
	ErrJournalFull = errors.New("pipeline: journal full")
	ErrClosed      = errors.New("pipeline: archiver closed")
)

// Archiver persists readings through journal → bounded queue → sink. Readings
// are durable once Publish returns nil; uncommitted entries are replayed on
// the next start.
type Archiver struct {
	policy  ports.ArchivePolicy
	journal ports.Journal
	queue   ports.ReadingQueue
	sink    ports.ReadingSink
	obs     ports.Observability

	// pubMu keeps journal ids and queue order aligned so commits never skip an entry.
	pubMu    sync.Mutex
	mu       sync.RWMutex
	started  bool
	closed   bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewArchiver(j ports.Journal, q ports.ReadingQueue, sink ports.ReadingSink, pol ports.ArchivePolicy, obs ports.Observability) (*Archiver, error) {
	if j == nil {
		return nil, fmt.Errorf("journal is required")
	}
	if q == nil {
		return nil, fmt.Errorf("reading queue is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("reading sink is required")
	}
	if obs == nil {
		obs = observability.Nop{}
	}
	pol.ApplyDefaults()

	if err := replayJournalIntoQueue(j, q, pol, obs); err != nil {
		return nil, err
	}

	return &Archiver{
		policy:  pol,
		journal: j,
		queue:   q,
		sink:    sink,
		obs:     obs,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start launches the ingest loop and the resource gauges. It is a no-op when already started.
func (a *Archiver) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if a.started {
		return nil
	}
	a.started = true

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		runIngest(a.journal, a.queue, a.sink, a.policy, a.obs, a.stopCh)
	}()
	go func() {
		defer a.wg.Done()
		a.recordGauges(time.Second)
	}()
	return nil
}

// Publish appends the reading to the journal and enqueues it according to policy.
func (a *Archiver) Publish(r *domain.Reading) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	a.pubMu.Lock()
	defer a.pubMu.Unlock()

	if !waitForJournalCapacity(a.journal, a.policy, a.obs, a.stopCh) {
		a.obs.IncCounter("calibra_archive_dropped_total", 1)
		return ErrJournalFull
	}

	id, err := a.journal.Append(r)
	if err != nil {
		a.obs.LogCritical("journal_append_failed", err)
		return err
	}

	if !enqueueWithPolicy(a.queue, id, r, a.policy, a.obs, a.stopCh) {
		a.obs.IncCounter("calibra_archive_dropped_total", 1)
		return ErrQueueFull
	}
	return nil
}

// Close stops the ingest loop, compacts the journal and closes it. Readings
// still queued stay in the journal for replay.
func (a *Archiver) Close(ctx context.Context) error {
	a.stopOnce.Do(func() { close(a.stopCh) })

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	var errs []error
	if err := a.journal.TruncateCommitted(); err != nil {
		errs = append(errs, fmt.Errorf("truncate journal: %w", err))
	}
	if err := a.journal.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close journal: %w", err))
	}
	return errors.Join(errs...)
}

func (a *Archiver) recordGauges(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			stats := a.journal.Stats()
			a.obs.SetGauge("calibra_journal_size_bytes", float64(stats.SizeBytes))
			a.obs.SetGauge("calibra_archive_queue_length", float64(a.queue.Len()))
		}
	}
}

var _ ports.ReadingArchive = (*Archiver)(nil)
