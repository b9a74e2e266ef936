package domain

import "time"

// Reading is a single observed value. Readings are immutable once created;
// Drift and Status are only present when echoed back by the platform.
type Reading struct {
	ID         string        `json:"id"`
	SensorID   string        `json:"sensor_id"`
	SensorName string        `json:"sensor_name,omitempty"`
	Value      float64       `json:"value"`
	Unit       string        `json:"unit,omitempty"`
	Timestamp  time.Time     `json:"ts"`
	Drift      *float64      `json:"drift,omitempty"`
	Status     *SensorStatus `json:"status,omitempty"`
}
