package domain

import "time"

// DriftForecast holds predicted drift percentages; index i is forecast step i.
type DriftForecast struct {
	SensorID    string    `json:"sensor_id"`
	Predictions []float64 `json:"predictions"`
	Model       string    `json:"model,omitempty"`
	Confidence  *float64  `json:"confidence,omitempty"`
}

// Priority ranks a calibration schedule entry. Local derivation only emits
// Medium and High; Low arrives from the platform for routine maintenance.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// ScheduleEntry recommends a calibration at Date.
type ScheduleEntry struct {
	Date       time.Time `json:"date"`
	Reason     string    `json:"reason"`
	Priority   Priority  `json:"priority"`
	Confidence *float64  `json:"confidence,omitempty"`
	Drift      *float64  `json:"drift,omitempty"`
}

// ScheduleOrigin records which side produced the published schedule.
type ScheduleOrigin string

const (
	OriginNone   ScheduleOrigin = "none"
	OriginLocal  ScheduleOrigin = "local"
	OriginRemote ScheduleOrigin = "remote"
)
