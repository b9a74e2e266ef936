package ports

import (
	"context"

	"github.com/ghalamif/CalibraFlow/internal/domain"
)

type SensorDirectory interface {
	ListSensors(ctx context.Context) ([]domain.Sensor, error)
}

type Ingestion interface {
	SubmitReading(ctx context.Context, sensorID string, value float64) error
}

type AnomalyDetector interface {
	DetectAnomaly(ctx context.Context, sensorID string, value float64) (domain.Detection, error)
}

// HistoryQuery returns readings ordered oldest to newest.
type HistoryQuery interface {
	GetHistory(ctx context.Context, sensorName string) ([]domain.Reading, error)
}

type ForecastService interface {
	GetDriftForecast(ctx context.Context, sensorID string, horizon int) (domain.DriftForecast, error)
}

type ScheduleService interface {
	GetCalibrationSchedule(ctx context.Context, sensorID string) ([]domain.ScheduleEntry, error)
}

type AnomalyFeed interface {
	ListAnomalies(ctx context.Context) ([]domain.Anomaly, error)
}

type CalibrationHistory interface {
	ListCalibrations(ctx context.Context, sensorID string) ([]domain.CalibrationRecord, error)
}

// Remote bundles every collaborator the platform API exposes.
type Remote interface {
	SensorDirectory
	Ingestion
	AnomalyDetector
	HistoryQuery
	ForecastService
	ScheduleService
	AnomalyFeed
	CalibrationHistory
}
