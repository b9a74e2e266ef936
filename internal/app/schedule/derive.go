package schedule

import (
	"fmt"
	"math"
	"time"

	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

// Derive turns a drift forecast into calibration recommendations. Step i
// produces an entry dated now+(i+1)*step when |drift| exceeds the schedule
// threshold; it is High priority above the high-priority threshold. Forecast
// order is preserved. An empty forecast yields an empty, non-nil schedule.
func Derive(fc domain.DriftForecast, now time.Time, th ports.Thresholds, step time.Duration) []domain.ScheduleEntry {
	if th.Schedule <= 0 {
		th.Schedule = ports.DefaultScheduleThreshold
	}
	if th.HighPriority <= 0 {
		th.HighPriority = ports.DefaultHighPriorityThreshold
	}
	if step <= 0 {
		step = ports.DefaultForecastStep
	}

	out := make([]domain.ScheduleEntry, 0)
	for i, d := range fc.Predictions {
		if math.IsNaN(d) {
			continue
		}
		mag := math.Abs(d)
		if mag <= th.Schedule {
			continue
		}
		priority := domain.PriorityMedium
		if mag > th.HighPriority {
			priority = domain.PriorityHigh
		}
		drift := d
		out = append(out, domain.ScheduleEntry{
			Date:       now.Add(time.Duration(i+1) * step),
			Reason:     fmt.Sprintf("Predicted drift: %.1f%%", d),
			Priority:   priority,
			Confidence: fc.Confidence,
			Drift:      &drift,
		})
	}
	return out
}
