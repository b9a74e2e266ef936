package domain

import "time"

// SensorType is the kind of physical quantity a sensor measures. Values outside
// the known set are carried through unchanged.
type SensorType string

const (
	SensorTemperature SensorType = "Temperature"
	SensorPressure    SensorType = "Pressure"
	SensorHumidity    SensorType = "Humidity"
	SensorVibration   SensorType = "Vibration"
	SensorFlow        SensorType = "Flow"
)

// SensorStatus is assigned by the remote platform. The core stores it and never
// derives it from the value.
type SensorStatus string

const (
	StatusOnline   SensorStatus = "online"
	StatusWarning  SensorStatus = "warning"
	StatusCritical SensorStatus = "critical"
	StatusOffline  SensorStatus = "offline"
)

// Sensor is the cached state of one physical sensor.
type Sensor struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        SensorType   `json:"type"`
	Unit        string       `json:"unit"`
	Value       float64      `json:"value"`
	Drift       float64      `json:"drift"`
	Status      SensorStatus `json:"status"`
	LastUpdated time.Time    `json:"last_updated"`
}
