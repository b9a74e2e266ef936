package ports

import "github.com/ghalamif/CalibraFlow/internal/domain"

// ReadingSink persists archived readings. Writes must be idempotent on Reading.ID
// because uncommitted journal entries are replayed after a restart.
type ReadingSink interface {
	WriteBatch(readings []*domain.Reading) error
	Name() string
}

// ReadingArchive accepts readings for durable, asynchronous archiving.
type ReadingArchive interface {
	Publish(r *domain.Reading) error
}
