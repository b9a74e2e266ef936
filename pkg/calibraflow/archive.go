package calibraflow

import (
	"context"
	"fmt"

	"github.com/ghalamif/CalibraFlow/internal/adapters/journal"
	"github.com/ghalamif/CalibraFlow/internal/adapters/observability"
	"github.com/ghalamif/CalibraFlow/internal/adapters/queue"
	"github.com/ghalamif/CalibraFlow/internal/app/pipeline"
)

// Re-exported archive errors.
var (
	ErrQueueFull   = pipeline.ErrQueueFull
	ErrJournalFull = pipeline.ErrJournalFull
	ErrClosed      = pipeline.ErrClosed
)

// ReadingArchiveConfig configures a standalone journal-backed archive.
type ReadingArchiveConfig struct {
	Policy     ArchivePolicy
	JournalDir string
	// Observability defaults to a no-op backend.
	Observability Observability
}

func (c *ReadingArchiveConfig) applyDefaults() {
	c.Policy.ApplyDefaults()
	if c.JournalDir == "" {
		c.JournalDir = "./data/calibra-journal"
	}
	if c.Observability == nil {
		c.Observability = observability.Nop{}
	}
}

// ReadingArchive exposes the journal → queue → sink path to external producers
// that want durable delivery of readings without running the sync engine.
type ReadingArchive struct {
	archiver *pipeline.Archiver
}

// NewReadingArchive replays any uncommitted journal entries and starts
// delivering batches to fn.
func NewReadingArchive(cfg *ReadingArchiveConfig, fn ReadingBatchSink) (*ReadingArchive, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if fn == nil {
		return nil, fmt.Errorf("sink callback is required")
	}
	cfg.applyDefaults()

	j, err := journal.NewFileJournal(cfg.JournalDir)
	if err != nil {
		return nil, err
	}
	q := queue.NewMemQueue(cfg.Policy.MaxQueueLen)

	a, err := pipeline.NewArchiver(j, q, NewCallbackSink("archive", fn), cfg.Policy, cfg.Observability)
	if err != nil {
		_ = j.Close()
		return nil, err
	}
	if err := a.Start(); err != nil {
		return nil, err
	}
	return &ReadingArchive{archiver: a}, nil
}

// Publish journals the reading and enqueues it according to policy.
func (a *ReadingArchive) Publish(r Reading) error {
	return a.archiver.Publish(&r)
}

// Close stops delivery, respecting the provided context.
func (a *ReadingArchive) Close(ctx context.Context) error {
	return a.archiver.Close(ctx)
}
