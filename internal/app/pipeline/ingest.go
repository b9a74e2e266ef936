package pipeline

import (
	"errors"
	"math"
	"time"

	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

var (
	errMissingSensor = errors.New("reading has no sensor id")
	errBadValue      = errors.New("reading value is not finite")
)

// checkReading rejects readings the archive table cannot hold.
func checkReading(r *domain.Reading) error {
	if r == nil || r.SensorID == "" {
		return errMissingSensor
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return errBadValue
	}
	return nil
}

// runIngest drains the queue into the sink until stop is closed. A failed
// batch is retried; the journal keeps it across restarts.
func runIngest(j ports.Journal, q ports.ReadingQueue, sink ports.ReadingSink, pol ports.ArchivePolicy, obs ports.Observability, stop <-chan struct{}) {
	idle := pol.IdleSleep
	if idle <= 0 {
		idle = 5 * time.Millisecond
	}

	var (
		pending []*domain.Reading
		maxID   ports.JournalEntryID
	)

	for {
		select {
		case <-stop:
			return
		default:
		}

		if len(pending) == 0 {
			batch := q.DequeueBatch(pol.MaxBatchSize)
			if len(batch) == 0 {
				sleepOrStop(idle, stop)
				continue
			}

			pending = make([]*domain.Reading, 0, len(batch))
			maxID = 0
			for _, item := range batch {
				if item.ID > maxID {
					maxID = item.ID
				}
				if err := checkReading(item.Reading); err != nil {
					obs.RecordDLQ(item.ID, item.Reading, err)
					continue
				}
				pending = append(pending, item.Reading)
			}

			if len(pending) == 0 {
				if err := j.Commit(maxID); err != nil {
					obs.LogError("journal_commit_failed", err)
				}
				continue
			}
		}

		start := time.Now()
		if err := sink.WriteBatch(pending); err != nil {
			obs.LogError("sink_write_failed", err, ports.Field{Key: "sink", Value: sink.Name()})
			sleepOrStop(idle, stop)
			continue
		}
		obs.ObserveLatency("calibra_archive_write_seconds", time.Since(start).Seconds())
		obs.IncCounter("calibra_readings_archived_total", float64(len(pending)))
		pending = nil

		if err := j.Commit(maxID); err != nil {
			obs.LogError("journal_commit_failed", err)
		}
	}
}

func sleepOrStop(d time.Duration, stop <-chan struct{}) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stop:
	case <-t.C:
	}
}
