package calibraflow

import (
	"github.com/ghalamif/CalibraFlow/internal/adapters/store"
	"github.com/ghalamif/CalibraFlow/internal/app/anomalies"
	"github.com/ghalamif/CalibraFlow/internal/app/engine"
	"github.com/ghalamif/CalibraFlow/internal/app/schedule"
	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

// Sensor is the cached state of one physical sensor.
type Sensor = domain.Sensor

// Reading is a single observed value; it is what flows through the archive.
type Reading = domain.Reading

// ScheduleEntry recommends a calibration at a date.
type ScheduleEntry = domain.ScheduleEntry

// DriftForecast is the platform drift prediction for a sensor.
type DriftForecast = domain.DriftForecast

// Detection is the platform verdict on a single value.
type Detection = domain.Detection

// Anomaly is a platform-reported anomaly.
type Anomaly = domain.Anomaly

// CalibrationRecord is one applied calibration from the platform history.
type CalibrationRecord = domain.CalibrationRecord

// Snapshot is an immutable copy of the telemetry store.
type Snapshot = store.Snapshot

// Status describes the sync engine.
type Status = engine.Status

// Plan is the published calibration schedule of a sensor.
type Plan = schedule.Plan

// AnomalySummary aggregates the platform anomaly list.
type AnomalySummary = anomalies.Summary

// ValueSource produces raw sensor values each sync cycle (simulation, OPC UA, custom).
type ValueSource = ports.ValueSource

// Remote is the full set of calibration platform collaborators.
type Remote = ports.Remote

// ReadingSink consumes archived reading batches.
type ReadingSink = ports.ReadingSink

// ReadingQueue is the bounded queue between journal and sink.
type ReadingQueue = ports.ReadingQueue

// QueuedReading is an item buffered inside the reading queue.
type QueuedReading = ports.QueuedReading

// Journal is the durable log readings are written to before archiving.
type Journal = ports.Journal

// JournalStats exposes journal metadata for observability.
type JournalStats = ports.JournalStats

// JournalEntryID identifies a journal entry.
type JournalEntryID = ports.JournalEntryID

// Observability emits logs and metrics.
type Observability = ports.Observability

// Field is a structured log field.
type Field = ports.Field
