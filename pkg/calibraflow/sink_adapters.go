package calibraflow

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ghalamif/CalibraFlow/internal/domain"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("calibraflow: channel sink closed")

// ReadingBatchSink is invoked with ordered batches of archived readings.
type ReadingBatchSink func([]Reading) error

// NewCallbackSink adapts a ReadingBatchSink into a ReadingSink so callers
// can plug arbitrary functions without defining structs.
func NewCallbackSink(name string, fn ReadingBatchSink) ReadingSink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes batches via a channel; it returns the sink, the read-only channel,
// and a close function that the caller should invoke during shutdown.
func NewChannelSink(name string, buffer int) (ReadingSink, <-chan []Reading, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []Reading, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   ReadingBatchSink
}

func (s *callbackSink) WriteBatch(readings []*domain.Reading) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(readings) == 0 {
		return nil
	}
	return s.fn(copyBatch(readings))
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan []Reading
	closed chan struct{}
	once   sync.Once
	mu     sync.RWMutex
}

func (s *channelSink) WriteBatch(readings []*domain.Reading) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	if len(readings) == 0 {
		return nil
	}

	batch := copyBatch(readings)

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case s.ch <- batch:
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}

// copyBatch detaches the batch from the pipeline's pointers.
func copyBatch(readings []*domain.Reading) []Reading {
	if len(readings) == 0 {
		return nil
	}
	out := make([]Reading, 0, len(readings))
	for _, r := range readings {
		if r == nil {
			continue
		}
		c := *r
		if r.Drift != nil {
			d := *r.Drift
			c.Drift = &d
		}
		if r.Status != nil {
			st := *r.Status
			c.Status = &st
		}
		out = append(out, c)
	}
	return out
}
