package pipeline

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

func TestWaitForJournalCapacityBlockThenSucceed(t *testing.T) {
	j := &mockJournal{
		sizes: []int64{150, 50},
	}
	pol := ports.ArchivePolicy{
		MaxJournalSizeBytes: 100,
		OnJournalFull:       "block",
		IdleSleep:           time.Millisecond,
	}
	obs := &mockObs{}

	if ok := waitForJournalCapacity(j, pol, obs, nil); !ok {
		t.Fatalf("expected waitForJournalCapacity to eventually succeed")
	}
	if j.calls < 2 {
		t.Fatalf("expected multiple stats calls, got %d", j.calls)
	}
}

func TestWaitForJournalCapacityDrop(t *testing.T) {
	j := &mockJournal{
		sizes: []int64{200, 200},
	}
	pol := ports.ArchivePolicy{
		MaxJournalSizeBytes: 100,
		OnJournalFull:       "drop",
	}
	obs := &mockObs{}

	if ok := waitForJournalCapacity(j, pol, obs, nil); ok {
		t.Fatalf("expected waitForJournalCapacity to drop and return false")
	}
	if len(obs.errors) == 0 {
		t.Fatalf("expected error to be logged")
	}
}

func TestWaitForJournalCapacityBlockUnblocksOnStop(t *testing.T) {
	j := &mockJournal{sizes: []int64{200}}
	pol := ports.ArchivePolicy{
		MaxJournalSizeBytes: 100,
		OnJournalFull:       "block",
		IdleSleep:           time.Millisecond,
	}
	stop := make(chan struct{})
	close(stop)

	if ok := waitForJournalCapacity(j, pol, &mockObs{}, stop); ok {
		t.Fatalf("expected stop to abort the wait")
	}
}

func TestEnqueueWithPolicyBlock(t *testing.T) {
	queue := &mockQueue{}
	queue.failures = 1

	pol := ports.ArchivePolicy{
		OnQueueFull: "block",
		IdleSleep:   time.Millisecond,
	}
	obs := &mockObs{}

	if ok := enqueueWithPolicy(queue, 1, &domain.Reading{}, pol, obs, nil); !ok {
		t.Fatalf("expected enqueue to eventually succeed")
	}
	if queue.calls != 2 {
		t.Fatalf("expected two enqueue attempts, got %d", queue.calls)
	}
}

func TestEnqueueWithPolicyDrop(t *testing.T) {
	queue := &mockQueue{failAlways: true}
	pol := ports.ArchivePolicy{
		OnQueueFull: "drop",
	}
	obs := &mockObs{}

	if ok := enqueueWithPolicy(queue, 1, &domain.Reading{}, pol, obs, nil); ok {
		t.Fatalf("expected enqueueWithPolicy to fail")
	}
	if len(obs.errors) == 0 {
		t.Fatalf("expected drop to log an error")
	}
}

type mockJournal struct {
	ports.Journal
	sizes []int64
	calls int
}

func (m *mockJournal) Stats() ports.JournalStats {
	idx := m.calls
	if idx >= len(m.sizes) {
		idx = len(m.sizes) - 1
	}
	m.calls++
	return ports.JournalStats{
		SizeBytes: m.sizes[idx],
	}
}

type mockQueue struct {
	failures   int32
	failAlways bool
	calls      int
}

func (m *mockQueue) Enqueue(id ports.JournalEntryID, r *domain.Reading) bool {
	m.calls++
	if m.failAlways {
		return false
	}
	if atomic.LoadInt32(&m.failures) > 0 {
		atomic.AddInt32(&m.failures, -1)
		return false
	}
	return true
}

func (m *mockQueue) DequeueBatch(int) []ports.QueuedReading { return nil }
func (m *mockQueue) Len() int                               { return 0 }

type mockObs struct {
	errors []error
	dlq    int32
}

func (m *mockObs) LogInfo(string, ...ports.Field)                 {}
func (m *mockObs) LogError(_ string, err error, _ ...ports.Field) { m.errors = append(m.errors, err) }
func (m *mockObs) LogCritical(string, error, ...ports.Field)      {}
func (m *mockObs) IncCounter(string, float64)                     {}
func (m *mockObs) ObserveLatency(string, float64)                 {}
func (m *mockObs) SetGauge(string, float64)                       {}
func (m *mockObs) RecordDLQ(ports.JournalEntryID, *domain.Reading, error) {
	atomic.AddInt32(&m.dlq, 1)
}
