package queue

import (
	"sync"

	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

// MemQueue is a bounded in-memory queue of journaled readings awaiting the
// archive sink. It preserves FIFO ordering and rejects rather than evicts.
type MemQueue struct {
	mu   sync.Mutex
	data []ports.QueuedReading
	cap  int
}

func NewMemQueue(capacity int) *MemQueue {
	return &MemQueue{
		data: make([]ports.QueuedReading, 0, capacity),
		cap:  capacity,
	}
}

func (q *MemQueue) Enqueue(id ports.JournalEntryID, r *domain.Reading) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) >= q.cap {
		return false
	}
	q.data = append(q.data, ports.QueuedReading{ID: id, Reading: r})
	return true
}

func (q *MemQueue) DequeueBatch(max int) []ports.QueuedReading {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]ports.QueuedReading, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

var _ ports.ReadingQueue = (*MemQueue)(nil)
