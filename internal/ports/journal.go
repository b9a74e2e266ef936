package ports

import "github.com/ghalamif/CalibraFlow/internal/domain"

type JournalEntryID uint64

type Journal interface {
	Append(r *domain.Reading) (JournalEntryID, error)
	Iterate(from JournalEntryID, fn func(id JournalEntryID, r *domain.Reading) error) error
	Commit(upto JournalEntryID) error
	TruncateCommitted() error
	Stats() JournalStats
	Close() error
}

type JournalStats struct {
	OldestUncommitted JournalEntryID
	LatestAppended    JournalEntryID
	SizeBytes         int64
}
