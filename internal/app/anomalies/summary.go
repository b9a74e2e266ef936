package anomalies

import (
	"time"

	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

// Summary aggregates an anomaly list for dashboards.
type Summary struct {
	Total      int                     `json:"total"`
	Resolved   int                     `json:"resolved"`
	Critical   int                     `json:"critical"`
	LastHour   int                     `json:"last_hour"`
	BySeverity map[domain.Severity]int `json:"by_severity"`
}

// Summarize counts anomalies. LastHour holds those strictly younger than one
// hour at now; future timestamps count as recent.
func Summarize(list []domain.Anomaly, now time.Time) Summary {
	s := Summary{
		Total:      len(list),
		BySeverity: make(map[domain.Severity]int),
	}
	for _, a := range list {
		if a.Resolved {
			s.Resolved++
		}
		if a.Severity == domain.SeverityCritical {
			s.Critical++
		}
		if now.Sub(a.Timestamp) < ports.RecentAnomalyWindow {
			s.LastHour++
		}
		s.BySeverity[a.Severity]++
	}
	return s
}

// ResolutionRate is Resolved/Total, or 0 for an empty list.
func (s Summary) ResolutionRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Resolved) / float64(s.Total)
}

// Unresolved returns the open anomalies, preserving order.
func Unresolved(list []domain.Anomaly) []domain.Anomaly {
	out := make([]domain.Anomaly, 0, len(list))
	for _, a := range list {
		if !a.Resolved {
			out = append(out, a)
		}
	}
	return out
}
