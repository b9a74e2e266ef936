package ports

import "time"

const (
	DefaultHistoryCapacity       = 50
	DefaultSyncInterval          = 10 * time.Second
	DefaultAnalyticsInterval     = 5 * time.Second
	DefaultForecastStep          = 48 * time.Hour
	DefaultForecastHorizon       = 5
	DefaultScheduleThreshold     = 5.0
	DefaultHighPriorityThreshold = 10.0
	DefaultPerturbation          = 0.05
	DefaultRemoteTimeout         = 10 * time.Second

	// RecentAnomalyWindow bounds the "last hour" anomaly count.
	RecentAnomalyWindow = time.Hour
)

// SyncPolicy tunes the sync engine and the schedule planner.
type SyncPolicy struct {
	Interval          time.Duration `yaml:"interval"`
	AnalyticsInterval time.Duration `yaml:"analytics_interval"`
	HistoryCapacity   int           `yaml:"history_capacity"`
	Perturbation      float64       `yaml:"perturbation"`
	ForecastStep      time.Duration `yaml:"forecast_step"`
	ForecastHorizon   int           `yaml:"forecast_horizon"`
	Thresholds        Thresholds    `yaml:"thresholds"`
}

// Thresholds are the absolute drift percentages that trigger scheduling.
type Thresholds struct {
	Schedule     float64 `yaml:"schedule"`
	HighPriority float64 `yaml:"high_priority"`
}

func (p *SyncPolicy) ApplyDefaults() {
	if p.Interval <= 0 {
		p.Interval = DefaultSyncInterval
	}
	if p.AnalyticsInterval <= 0 {
		p.AnalyticsInterval = DefaultAnalyticsInterval
	}
	if p.HistoryCapacity <= 0 {
		p.HistoryCapacity = DefaultHistoryCapacity
	}
	if p.Perturbation <= 0 {
		p.Perturbation = DefaultPerturbation
	}
	if p.ForecastStep <= 0 {
		p.ForecastStep = DefaultForecastStep
	}
	if p.ForecastHorizon <= 0 {
		p.ForecastHorizon = DefaultForecastHorizon
	}
	if p.Thresholds.Schedule <= 0 {
		p.Thresholds.Schedule = DefaultScheduleThreshold
	}
	if p.Thresholds.HighPriority <= 0 {
		p.Thresholds.HighPriority = DefaultHighPriorityThreshold
	}
}

// ArchivePolicy controls journal and queue thresholds of the reading archive.
type ArchivePolicy struct {
	MaxJournalSizeBytes int64         `yaml:"max_journal_size_bytes"`
	MaxQueueLen         int           `yaml:"max_queue_len"`
	MaxBatchSize        int           `yaml:"max_batch_size"`
	IdleSleep           time.Duration `yaml:"idle_sleep"`

	OnJournalFull string `yaml:"on_journal_full"` // "block", "drop"
	OnQueueFull   string `yaml:"on_queue_full"`   // "reject", "block", "drop"
}

func (p *ArchivePolicy) ApplyDefaults() {
	if p.MaxJournalSizeBytes == 0 {
		p.MaxJournalSizeBytes = 1 << 30
	}
	if p.MaxQueueLen == 0 {
		p.MaxQueueLen = 10_000
	}
	if p.MaxBatchSize == 0 {
		p.MaxBatchSize = 500
	}
	if p.IdleSleep == 0 {
		p.IdleSleep = 50 * time.Millisecond
	}
	if p.OnQueueFull == "" {
		p.OnQueueFull = "drop"
	}
	if p.OnJournalFull == "" {
		p.OnJournalFull = "drop"
	}
}
