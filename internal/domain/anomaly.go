package domain

import "time"

type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Anomaly is owned by the platform; the core only reads it.
type Anomaly struct {
	ID         string    `json:"id"`
	SensorName string    `json:"sensor_name"`
	Type       string    `json:"type"`
	Value      float64   `json:"value"`
	Expected   float64   `json:"expected"`
	Deviation  float64   `json:"deviation"`
	Severity   Severity  `json:"severity"`
	Resolved   bool      `json:"resolved"`
	Timestamp  time.Time `json:"timestamp"`
}

// Detection is the platform's verdict for a single submitted reading.
type Detection struct {
	IsAnomaly  bool    `json:"is_anomaly"`
	Confidence float64 `json:"confidence"`
	Score      float64 `json:"anomaly_score"`
	Model      string  `json:"model_used,omitempty"`
}

// CalibrationRecord is one applied calibration from the platform history.
type CalibrationRecord struct {
	ID             string    `json:"id"`
	SensorID       string    `json:"sensor_id"`
	Method         string    `json:"method"`
	CorrectedValue float64   `json:"corrected_value"`
	AppliedAt      time.Time `json:"applied_at"`
}
