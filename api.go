package calibraflow

import (
	base "github.com/ghalamif/CalibraFlow/pkg/calibraflow"
)

// Re-exported errors for convenience.
var (
	ErrQueueFull         = base.ErrQueueFull
	ErrJournalFull       = base.ErrJournalFull
	ErrClosed            = base.ErrClosed
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
)

// Type aliases so consumers can import github.com/ghalamif/CalibraFlow directly.
type (
	Config               = base.Config
	SyncPolicy           = base.SyncPolicy
	Thresholds           = base.Thresholds
	ArchivePolicy        = base.ArchivePolicy
	RemoteConfig         = base.RemoteConfig
	ArchiveConfig        = base.ArchiveConfig
	OPCUAConfig          = base.OPCUAConfig
	OPCUANodeConfig      = base.OPCUANodeConfig
	HTTPConfig           = base.HTTPConfig
	LogConfig            = base.LogConfig
	Flow                 = base.Flow
	FlowOption           = base.FlowOption
	StreamInOption       = base.StreamInOption
	StreamOutOption      = base.StreamOutOption
	Runtime              = base.Runtime
	RuntimeOption        = base.RuntimeOption
	Sensor               = base.Sensor
	Reading              = base.Reading
	ScheduleEntry        = base.ScheduleEntry
	DriftForecast        = base.DriftForecast
	Detection            = base.Detection
	Anomaly              = base.Anomaly
	CalibrationRecord    = base.CalibrationRecord
	Snapshot             = base.Snapshot
	Status               = base.Status
	Plan                 = base.Plan
	AnomalySummary       = base.AnomalySummary
	ReadingBatchSink     = base.ReadingBatchSink
	ValueSource          = base.ValueSource
	Remote               = base.Remote
	ReadingSink          = base.ReadingSink
	ReadingQueue         = base.ReadingQueue
	QueuedReading        = base.QueuedReading
	Journal              = base.Journal
	JournalStats         = base.JournalStats
	JournalEntryID       = base.JournalEntryID
	Observability        = base.Observability
	Field                = base.Field
	ReadingArchive       = base.ReadingArchive
	ReadingArchiveConfig = base.ReadingArchiveConfig
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInSource(src ValueSource) StreamInOption {
	return base.StreamInSource(src)
}

func StreamInRemote(r Remote) StreamInOption {
	return base.StreamInRemote(r)
}

func StreamInQueue(q ReadingQueue) StreamInOption {
	return base.StreamInQueue(q)
}

func StreamInJournal(j Journal) StreamInOption {
	return base.StreamInJournal(j)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutSink(s ReadingSink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn ReadingBatchSink) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithRemote(r Remote) RuntimeOption {
	return base.WithRemote(r)
}

func WithValueSource(src ValueSource) RuntimeOption {
	return base.WithValueSource(src)
}

func WithReadingSink(s ReadingSink) RuntimeOption {
	return base.WithReadingSink(s)
}

func WithJournal(j Journal) RuntimeOption {
	return base.WithJournal(j)
}

func WithReadingQueue(q ReadingQueue) RuntimeOption {
	return base.WithReadingQueue(q)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

// Sink adapters.
func NewCallbackSink(name string, fn ReadingBatchSink) ReadingSink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (ReadingSink, <-chan []Reading, func()) {
	return base.NewChannelSink(name, buffer)
}

// Standalone archive.
func NewReadingArchive(cfg *ReadingArchiveConfig, fn ReadingBatchSink) (*ReadingArchive, error) {
	return base.NewReadingArchive(cfg, fn)
}
