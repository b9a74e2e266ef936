package pipeline

import (
	"fmt"
	"time"

	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

func waitForJournalCapacity(j ports.Journal, pol ports.ArchivePolicy, obs ports.Observability, stop <-chan struct{}) bool {
	if pol.MaxJournalSizeBytes <= 0 {
		return true
	}
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	for {
		stats := j.Stats()
		if stats.SizeBytes < pol.MaxJournalSizeBytes {
			return true
		}

		switch pol.OnJournalFull {
		case "block":
			select {
			case <-stop:
				return false
			case <-time.After(sleep):
			}
		case "drop":
			obs.LogError("journal_full_drop", fmt.Errorf("size=%d limit=%d", stats.SizeBytes, pol.MaxJournalSizeBytes))
			return false
		default:
			obs.LogError("journal_policy_invalid", fmt.Errorf("policy=%s", pol.OnJournalFull))
			return false
		}
	}
}

func enqueueWithPolicy(q ports.ReadingQueue, id ports.JournalEntryID, r *domain.Reading, pol ports.ArchivePolicy, obs ports.Observability, stop <-chan struct{}) bool {
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	for {
		if ok := q.Enqueue(id, r); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			select {
			case <-stop:
				return false
			case <-time.After(sleep):
			}
		case "drop", "reject":
			obs.LogError("queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen))
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}

func replayJournalIntoQueue(j ports.Journal, q ports.ReadingQueue, pol ports.ArchivePolicy, obs ports.Observability) error {
	stats := j.Stats()
	if stats.LatestAppended == 0 {
		return nil
	}
	start := stats.OldestUncommitted
	if start == 0 || start > stats.LatestAppended {
		return nil
	}

	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	var replayed int
	err := j.Iterate(start, func(id ports.JournalEntryID, r *domain.Reading) error {
		for {
			if q.Enqueue(id, r) {
				replayed++
				return nil
			}
			switch pol.OnQueueFull {
			case "drop", "reject":
				return fmt.Errorf("queue full during journal replay")
			default:
				time.Sleep(sleep)
			}
		}
	})
	if err != nil {
		return err
	}
	if replayed > 0 {
		obs.LogInfo("journal_replay_complete",
			ports.Field{Key: "readings", Value: replayed},
			ports.Field{Key: "from_id", Value: uint64(start)})
	}
	return nil
}
