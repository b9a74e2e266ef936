package queue

import (
	"testing"

	"github.com/ghalamif/CalibraFlow/internal/domain"
)

func TestMemQueueEnqueueDequeueOrder(t *testing.T) {
	q := NewMemQueue(4)

	r1 := &domain.Reading{ID: "r1", SensorID: "1"}
	r2 := &domain.Reading{ID: "r2", SensorID: "2"}

	if !q.Enqueue(1, r1) || !q.Enqueue(2, r2) {
		t.Fatalf("expected successful enqueue")
	}

	batch := q.DequeueBatch(1)
	if len(batch) != 1 || batch[0].ID != 1 || batch[0].Reading.ID != "r1" {
		t.Fatalf("unexpected first batch: %+v", batch)
	}

	remaining := q.DequeueBatch(10)
	if len(remaining) != 1 || remaining[0].ID != 2 {
		t.Fatalf("unexpected second batch: %+v", remaining)
	}

	if q.Len() != 0 {
		t.Fatalf("queue should be empty, got %d", q.Len())
	}
	if q.DequeueBatch(5) != nil {
		t.Fatalf("expected nil batch from empty queue")
	}
}

func TestMemQueueRejectsWhenFull(t *testing.T) {
	q := NewMemQueue(2)

	r := &domain.Reading{ID: "cap"}

	if !q.Enqueue(1, r) || !q.Enqueue(2, r) {
		t.Fatalf("expected enqueue within capacity")
	}
	if q.Enqueue(3, r) {
		t.Fatalf("enqueue should fail when capacity exceeded")
	}

	q.DequeueBatch(1)
	if !q.Enqueue(4, r) {
		t.Fatalf("expected enqueue to succeed after dequeue")
	}
}
