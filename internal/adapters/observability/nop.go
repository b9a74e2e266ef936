package observability

import (
	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

// Nop discards everything. Used when a component is built without observability.
type Nop struct{}

func (Nop) LogInfo(string, ...ports.Field)                        {}
func (Nop) LogError(string, error, ...ports.Field)                {}
func (Nop) LogCritical(string, error, ...ports.Field)             {}
func (Nop) IncCounter(string, float64)                            {}
func (Nop) ObserveLatency(string, float64)                        {}
func (Nop) SetGauge(string, float64)                              {}
func (Nop) RecordDLQ(ports.JournalEntryID, *domain.Reading, error) {}

var _ ports.Observability = Nop{}
