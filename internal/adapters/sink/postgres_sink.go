package sink

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

// PostgresSink archives readings into a plain Postgres (or Timescale) table:
//
//	CREATE TABLE readings (
//	  id text PRIMARY KEY, sensor_id text, sensor_name text,
//	  value double precision, unit text, drift double precision, ts timestamptz
//	);
type PostgresSink struct {
	db        *sql.DB
	tableName string
}

func NewPostgresSink(db *sql.DB, table string) *PostgresSink {
	return &PostgresSink{db: db, tableName: table}
}

func (p *PostgresSink) Name() string { return "postgres" }

func (p *PostgresSink) WriteBatch(readings []*domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	const cols = 7
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(p.tableName)
	b.WriteString(" (id, sensor_id, sensor_name, value, unit, drift, ts) VALUES ")

	args := make([]any, 0, len(readings)*cols)
	for i, r := range readings {
		if i > 0 {
			b.WriteString(",")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)

		var drift sql.NullFloat64
		if r.Drift != nil {
			drift = sql.NullFloat64{Float64: *r.Drift, Valid: true}
		}
		args = append(args,
			r.ID,
			r.SensorID,
			r.SensorName,
			r.Value,
			r.Unit,
			drift,
			r.Timestamp,
		)
	}

	// replays after a crash resend committed-but-unrecorded rows
	b.WriteString(" ON CONFLICT (id) DO NOTHING")

	_, err := p.db.Exec(b.String(), args...)
	return err
}

var _ ports.ReadingSink = (*PostgresSink)(nil)
