package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

const (
	MetricSyncCycles       = "calibra_sync_cycles_total"
	MetricRemoteFailures   = "calibra_remote_failures_total"
	MetricAnomaliesFlagged = "calibra_anomalies_flagged_total"
	MetricReadingsArchived = "calibra_readings_archived_total"
	MetricArchiveDropped   = "calibra_archive_dropped_total"
	MetricDLQ              = "calibra_dlq_total"
	MetricScheduleRefresh  = "calibra_schedule_refresh_total"

	GaugeSensorsTracked = "calibra_sensors_tracked"
	GaugeJournalSize    = "calibra_journal_size_bytes"
	GaugeArchiveQueue   = "calibra_archive_queue_length"

	HistRemoteLatency = "calibra_remote_latency_seconds"
	HistArchiveWrite  = "calibra_archive_write_seconds"
)

// PromObs implements ports.Observability with Prometheus metrics and zap logs.
type PromObs struct {
	log      *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers on the default registry.
func NewPromObs(logger *zap.Logger) *PromObs {
	return NewPromObsWithRegistry(prometheus.DefaultRegisterer, logger)
}

func NewPromObsWithRegistry(reg prometheus.Registerer, logger *zap.Logger) *PromObs {
	if logger == nil {
		logger = zap.NewNop()
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	p := &PromObs{
		log: logger,
		counters: map[string]prometheus.Counter{
			MetricSyncCycles:       counter(MetricSyncCycles, "Sync cycles started by the engine."),
			MetricRemoteFailures:   counter(MetricRemoteFailures, "Remote collaborator calls that failed."),
			MetricAnomaliesFlagged: counter(MetricAnomaliesFlagged, "Readings the remote detector flagged as anomalous."),
			MetricReadingsArchived: counter(MetricReadingsArchived, "Readings written to the archive sink."),
			MetricArchiveDropped:   counter(MetricArchiveDropped, "Readings lost to archive backpressure policies."),
			MetricDLQ:              counter(MetricDLQ, "Archived readings rejected before reaching the sink."),
			MetricScheduleRefresh:  counter(MetricScheduleRefresh, "Calibration schedule refreshes."),
		},
		gauges: map[string]prometheus.Gauge{
			GaugeSensorsTracked: gauge(GaugeSensorsTracked, "Sensors currently held by the telemetry store."),
			GaugeJournalSize:    gauge(GaugeJournalSize, "Size of the reading journal on disk."),
			GaugeArchiveQueue:   gauge(GaugeArchiveQueue, "Readings buffered in the archive queue."),
		},
		histos: map[string]prometheus.Observer{
			HistRemoteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    HistRemoteLatency,
				Help:    "Latency of remote collaborator calls.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			}),
			HistArchiveWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    HistArchiveWrite,
				Help:    "Latency of archive sink batch writes.",
				Buckets: prometheus.DefBuckets,
			}),
		},
	}

	for _, c := range p.counters {
		reg.MustRegister(c)
	}
	for _, g := range p.gauges {
		reg.MustRegister(g)
	}
	for _, h := range p.histos {
		reg.MustRegister(h.(prometheus.Collector))
	}
	return p
}

func (p *PromObs) Logger() *zap.Logger { return p.log }

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, zapFields(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err), zap.Bool("critical", true))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordDLQ(id ports.JournalEntryID, r *domain.Reading, err error) {
	p.IncCounter(MetricDLQ, 1)
	fields := []zap.Field{zap.Uint64("journal_id", uint64(id)), zap.Error(err)}
	if r != nil {
		fields = append(fields, zap.String("sensor_id", r.SensorID), zap.String("reading_id", r.ID))
	}
	p.log.Warn("archive_dlq", fields...)
}

func zapFields(fields []ports.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
