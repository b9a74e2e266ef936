package simulation

import (
	"context"
	"math"
	"testing"

	"github.com/ghalamif/CalibraFlow/internal/domain"
)

func TestSourceStaysWithinSpan(t *testing.T) {
	src := NewSeededSource(0.05, 42)
	for _, baseline := range []float64{1, 100, -40, 0.001} {
		for i := 0; i < 500; i++ {
			v, err := src.Next(context.Background(), domain.Sensor{ID: "1"}, baseline)
			if err != nil {
				t.Fatalf("next: %v", err)
			}
			if math.Abs(v-baseline) > 0.05+1e-12 {
				t.Fatalf("value %f outside span of baseline %f", v, baseline)
			}
		}
	}
}

func TestSourceDeterministicWithSeed(t *testing.T) {
	a := NewSeededSource(0.05, 7)
	b := NewSeededSource(0.05, 7)
	for i := 0; i < 10; i++ {
		va, _ := a.Next(context.Background(), domain.Sensor{}, 20)
		vb, _ := b.Next(context.Background(), domain.Sensor{}, 20)
		if va != vb {
			t.Fatalf("expected identical sequences, got %f vs %f", va, vb)
		}
	}
}

func TestSourceHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewSource(0).Next(ctx, domain.Sensor{}, 1); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
