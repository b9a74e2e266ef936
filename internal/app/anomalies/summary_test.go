package anomalies

import (
	"testing"
	"time"

	"github.com/ghalamif/CalibraFlow/internal/domain"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, now)
	if s.Total != 0 || s.Resolved != 0 || s.Critical != 0 || s.LastHour != 0 {
		t.Fatalf("expected zero summary, got %+v", s)
	}
	if s.ResolutionRate() != 0 {
		t.Fatalf("expected zero resolution rate, got %v", s.ResolutionRate())
	}
}

func TestSummarizeCounts(t *testing.T) {
	list := []domain.Anomaly{
		{ID: "1", Severity: domain.SeverityCritical, Resolved: true, Timestamp: now.Add(-10 * time.Minute)},
		{ID: "2", Severity: domain.SeverityCritical, Timestamp: now.Add(-2 * time.Hour)},
		{ID: "3", Severity: domain.SeverityLow, Resolved: true, Timestamp: now.Add(-time.Hour)},
		{ID: "4", Severity: domain.SeverityHigh, Timestamp: now.Add(-time.Hour + time.Millisecond)},
	}
	s := Summarize(list, now)

	if s.Total != 4 || s.Resolved != 2 || s.Critical != 2 {
		t.Fatalf("unexpected counts %+v", s)
	}
	if s.LastHour != 2 {
		t.Fatalf("expected exactly-one-hour-old anomaly excluded, got last hour %d", s.LastHour)
	}
	if s.BySeverity[domain.SeverityCritical] != 2 || s.BySeverity[domain.SeverityLow] != 1 {
		t.Fatalf("unexpected severity breakdown %+v", s.BySeverity)
	}
	if s.ResolutionRate() != 0.5 {
		t.Fatalf("expected resolution rate 0.5, got %v", s.ResolutionRate())
	}
	if open := Unresolved(list); len(open) != 2 || open[0].ID != "2" {
		t.Fatalf("unexpected unresolved list %+v", open)
	}
}
