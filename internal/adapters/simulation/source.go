package simulation

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

// Source perturbs the baseline by a uniform absolute offset in [-span, +span).
type Source struct {
	span float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSource returns a Source with the given span. A non-positive span uses
// ports.DefaultPerturbation.
func NewSource(span float64) *Source {
	return NewSeededSource(span, time.Now().UnixNano())
}

func NewSeededSource(span float64, seed int64) *Source {
	if span <= 0 {
		span = ports.DefaultPerturbation
	}
	return &Source{span: span, rnd: rand.New(rand.NewSource(seed))}
}

func (s *Source) Next(ctx context.Context, _ domain.Sensor, baseline float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	u := s.rnd.Float64()
	s.mu.Unlock()
	return baseline + (u-0.5)*2*s.span, nil
}

func (s *Source) Name() string { return "simulation" }

func (s *Source) Close() error { return nil }

var _ ports.ValueSource = (*Source)(nil)
