package store

import (
	"sync"
	"time"

	"github.com/ghalamif/CalibraFlow/internal/adapters/history"
	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

// Snapshot is a point-in-time copy of the store. It shares no memory with the
// store, so holders can keep it as long as they like.
type Snapshot struct {
	Sensors []domain.Sensor             `json:"sensors"`
	History map[string][]domain.Reading `json:"history"`
	Version uint64                      `json:"version"`
	TakenAt time.Time                   `json:"taken_at"`
}

// Sensor looks a sensor up by id.
func (s Snapshot) Sensor(id string) (domain.Sensor, bool) {
	for _, sn := range s.Sensors {
		if sn.ID == id {
			return sn, true
		}
	}
	return domain.Sensor{}, false
}

// TelemetryStore holds the current sensor list and a bounded history per
// sensor. All mutations are atomic with respect to Snapshot.
type TelemetryStore struct {
	mu       sync.RWMutex
	sensors  []domain.Sensor
	index    map[string]int
	history  map[string]*history.Ring
	capacity int
	version  uint64
	now      func() time.Time
}

func NewTelemetryStore(historyCapacity int) *TelemetryStore {
	if historyCapacity <= 0 {
		historyCapacity = ports.DefaultHistoryCapacity
	}
	return &TelemetryStore{
		index:    make(map[string]int),
		history:  make(map[string]*history.Ring),
		capacity: historyCapacity,
		now:      time.Now,
	}
}

// ReplaceSensors swaps the whole sensor collection. History is untouched.
func (s *TelemetryStore) ReplaceSensors(list []domain.Sensor) {
	sensors := make([]domain.Sensor, len(list))
	copy(sensors, list)
	index := make(map[string]int, len(sensors))
	for i, sn := range sensors {
		index[sn.ID] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensors = sensors
	s.index = index
	s.version++
}

// UpdateSensor records a new value and drift for a known sensor. It returns
// false when the sensor is no longer part of the collection.
func (s *TelemetryStore) UpdateSensor(id string, value, drift float64, ts time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false
	}
	// in place; readers only ever receive copies
	sn := &s.sensors[i]
	sn.Value = value
	sn.Drift = drift
	sn.LastUpdated = ts
	s.version++
	return true
}

// AppendReading adds r to the sensor's history, evicting the oldest entry when
// the history is full. Unknown ids get a fresh history.
func (s *TelemetryStore) AppendReading(sensorID string, r domain.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, ok := s.history[sensorID]
	if !ok {
		ring = history.NewRing(s.capacity)
		s.history[sensorID] = ring
	}
	ring.Append(r)
	s.version++
}

// Sensors returns a copy of the current collection.
func (s *TelemetryStore) Sensors() []domain.Sensor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Sensor, len(s.sensors))
	copy(out, s.sensors)
	return out
}

func (s *TelemetryStore) History(sensorID string) []domain.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ring, ok := s.history[sensorID]
	if !ok {
		return nil
	}
	return ring.Items()
}

func (s *TelemetryStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *TelemetryStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sensors := make([]domain.Sensor, len(s.sensors))
	copy(sensors, s.sensors)
	hist := make(map[string][]domain.Reading, len(s.history))
	for id, ring := range s.history {
		hist[id] = ring.Items()
	}
	return Snapshot{
		Sensors: sensors,
		History: hist,
		Version: s.version,
		TakenAt: s.now(),
	}
}
