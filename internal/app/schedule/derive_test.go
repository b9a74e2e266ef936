package schedule

import (
	"testing"
	"time"

	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

var now = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func TestDeriveThresholdsAndDates(t *testing.T) {
	fc := domain.DriftForecast{Predictions: []float64{2, -6, 11, 4}}
	got := Derive(fc, now, ports.Thresholds{}, 0)

	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(got), got)
	}
	if got[0].Priority != domain.PriorityMedium || !got[0].Date.Equal(now.AddDate(0, 0, 4)) {
		t.Fatalf("unexpected first entry %+v", got[0])
	}
	if got[0].Reason != "Predicted drift: -6.0%" {
		t.Fatalf("unexpected reason %q", got[0].Reason)
	}
	if got[1].Priority != domain.PriorityHigh || !got[1].Date.Equal(now.AddDate(0, 0, 6)) {
		t.Fatalf("unexpected second entry %+v", got[1])
	}
	if got[1].Drift == nil || *got[1].Drift != 11 {
		t.Fatalf("expected drift value carried, got %+v", got[1].Drift)
	}
}

func TestDeriveNoActionNeeded(t *testing.T) {
	for name, preds := range map[string][]float64{
		"empty":           nil,
		"below threshold": {1, -2, 3},
		"at threshold":    {5, -5},
	} {
		got := Derive(domain.DriftForecast{Predictions: preds}, now, ports.Thresholds{}, 0)
		if got == nil || len(got) != 0 {
			t.Fatalf("%s: expected empty non-nil schedule, got %+v", name, got)
		}
	}
}

func TestDeriveBoundaryIsStrict(t *testing.T) {
	got := Derive(domain.DriftForecast{Predictions: []float64{10, 10.01}}, now, ports.Thresholds{}, 0)
	if len(got) != 2 || got[0].Priority != domain.PriorityMedium || got[1].Priority != domain.PriorityHigh {
		t.Fatalf("expected |10| medium and |10.01| high, got %+v", got)
	}
}

func TestDeriveNeverDatesInPast(t *testing.T) {
	preds := []float64{50, 50, 50, 50, 50}
	for _, e := range Derive(domain.DriftForecast{Predictions: preds}, now, ports.Thresholds{}, 0) {
		if !e.Date.After(now) {
			t.Fatalf("entry dated %v is not after %v", e.Date, now)
		}
	}
}
