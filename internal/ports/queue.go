package ports

import "github.com/ghalamif/CalibraFlow/internal/domain"

type QueuedReading struct {
	ID      JournalEntryID
	Reading *domain.Reading
}

type ReadingQueue interface {
	Enqueue(id JournalEntryID, r *domain.Reading) bool
	DequeueBatch(max int) []QueuedReading
	Len() int
}
