package ports

import (
	"context"

	"github.com/ghalamif/CalibraFlow/internal/domain"
)

// ValueSource produces the next raw value for a sensor given the baseline of
// the current cycle. The baseline is already guaranteed to be non-zero and finite.
type ValueSource interface {
	Next(ctx context.Context, s domain.Sensor, baseline float64) (float64, error)
	Name() string
	Close() error
}
