package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ghalamif/CalibraFlow/internal/domain"
)

// apiTime accepts the timestamp layouts the platform emits: RFC 3339 with or
// without an offset, and naive ISO dates.
type apiTime struct{ time.Time }

var apiTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *apiTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range apiTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

// apiID carries platform identifiers as opaque text. The platform emits
// integers, but string ids are accepted as-is.
type apiID string

func (id *apiID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = apiID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a number or string: %w", err)
	}
	*id = apiID(n.String())
	return nil
}

func (id apiID) String() string { return string(id) }

type wireSensor struct {
	ID          apiID   `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
	Status      string  `json:"status"`
	LastUpdated apiTime `json:"lastUpdated"`
	Drift       float64 `json:"drift"`
}

func (w wireSensor) toDomain() domain.Sensor {
	return domain.Sensor{
		ID:          w.ID.String(),
		Name:        w.Name,
		Type:        domain.SensorType(w.Type),
		Unit:        w.Unit,
		Value:       w.Value,
		Drift:       w.Drift,
		Status:      domain.SensorStatus(w.Status),
		LastUpdated: w.LastUpdated.Time,
	}
}

type wireReading struct {
	ID          apiID    `json:"id"`
	SensorName  string   `json:"sensor_name"`
	Type        string   `json:"type"`
	RawValue    float64  `json:"raw_value"`
	Unit        string   `json:"unit"`
	Status      *string  `json:"status"`
	Drift       *float64 `json:"drift"`
	LastUpdated apiTime  `json:"lastUpdated"`
}

func (w wireReading) toDomain() domain.Reading {
	r := domain.Reading{
		ID:         w.ID.String(),
		SensorName: w.SensorName,
		Value:      w.RawValue,
		Unit:       w.Unit,
		Timestamp:  w.LastUpdated.Time,
		Drift:      w.Drift,
	}
	if w.Status != nil {
		st := domain.SensorStatus(*w.Status)
		r.Status = &st
	}
	return r
}

type wireForecast struct {
	Predictions []float64 `json:"predictions"`
	ModelUsed   string    `json:"model_used"`
	Confidence  *float64  `json:"confidence"`
}

type wireSchedule struct {
	Schedule []wireScheduleEntry `json:"calibration_schedule"`
}

type wireScheduleEntry struct {
	Date       apiTime  `json:"date"`
	Reason     string   `json:"reason"`
	Priority   string   `json:"priority"`
	Confidence *float64 `json:"confidence"`
	DriftValue *float64 `json:"drift_value"`
}

func (w wireScheduleEntry) toDomain() domain.ScheduleEntry {
	return domain.ScheduleEntry{
		Date:       w.Date.Time,
		Reason:     w.Reason,
		Priority:   domain.Priority(w.Priority),
		Confidence: w.Confidence,
		Drift:      w.DriftValue,
	}
}

type wireAnomaly struct {
	ID         apiID   `json:"id"`
	SensorName string  `json:"sensor_name"`
	Type       string  `json:"type"`
	Value      float64 `json:"value"`
	Expected   float64 `json:"expected"`
	Deviation  float64 `json:"deviation"`
	Severity   string  `json:"severity"`
	Resolved   bool    `json:"resolved"`
	Timestamp  apiTime `json:"timestamp"`
}

func (w wireAnomaly) toDomain() domain.Anomaly {
	return domain.Anomaly{
		ID:         w.ID.String(),
		SensorName: w.SensorName,
		Type:       w.Type,
		Value:      w.Value,
		Expected:   w.Expected,
		Deviation:  w.Deviation,
		Severity:   domain.Severity(w.Severity),
		Resolved:   w.Resolved,
		Timestamp:  w.Timestamp.Time,
	}
}

type wireCalibration struct {
	ID             apiID   `json:"id"`
	Sensor         apiID   `json:"sensor"`
	Method         string  `json:"method"`
	CorrectedValue float64 `json:"corrected_value"`
	AppliedAt      apiTime `json:"applied_at"`
}

func (w wireCalibration) toDomain() domain.CalibrationRecord {
	return domain.CalibrationRecord{
		ID:             w.ID.String(),
		SensorID:       w.Sensor.String(),
		Method:         w.Method,
		CorrectedValue: w.CorrectedValue,
		AppliedAt:      w.AppliedAt.Time,
	}
}
