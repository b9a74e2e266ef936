package sink

import (
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ghalamif/CalibraFlow/internal/domain"
)

func TestPostgresSinkWriteBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewPostgresSink(db, "readings")
	ts := time.Now()
	drift := 0.42

	readings := []*domain.Reading{
		{ID: "a", SensorID: "1", SensorName: "Boiler Temp", Value: 71.3, Unit: "°C", Drift: &drift, Timestamp: ts},
		{ID: "b", SensorID: "2", SensorName: "Line Pressure", Value: 2.1, Unit: "bar", Timestamp: ts},
	}

	expectedQuery := regexp.QuoteMeta("INSERT INTO readings (id, sensor_id, sensor_name, value, unit, drift, ts) VALUES ($1,$2,$3,$4,$5,$6,$7),($8,$9,$10,$11,$12,$13,$14) ON CONFLICT (id) DO NOTHING")
	mock.ExpectExec(expectedQuery).
		WithArgs(
			"a", "1", "Boiler Temp", 71.3, "°C", sql.NullFloat64{Float64: drift, Valid: true}, ts,
			"b", "2", "Line Pressure", 2.1, "bar", sql.NullFloat64{}, ts,
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := sink.WriteBatch(readings); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresSinkWriteBatchNoReadings(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewPostgresSink(db, "readings")
	if err := sink.WriteBatch(nil); err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresSinkPropagatesExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO readings").WillReturnError(boom)

	sink := NewPostgresSink(db, "readings")
	if err := sink.WriteBatch([]*domain.Reading{{ID: "a"}}); !errors.Is(err, boom) {
		t.Fatalf("expected exec error, got %v", err)
	}
}

func TestPostgresSinkName(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	if name := NewPostgresSink(db, "readings").Name(); name != "postgres" {
		t.Fatalf("expected sink name postgres, got %s", name)
	}
}
