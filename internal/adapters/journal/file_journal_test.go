package journal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

func TestFileJournalAppendIterateAndReopen(t *testing.T) {
	dir := t.TempDir()

	j, err := NewFileJournal(dir)
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}

	id1, err := j.Append(&domain.Reading{ID: "r1", SensorID: "1", Value: 20.5})
	if err != nil || id1 == 0 {
		t.Fatalf("append reading 1: %v id=%d", err, id1)
	}
	id2, err := j.Append(&domain.Reading{ID: "r2", SensorID: "2", Value: 1.25})
	if err != nil || id2 == 0 {
		t.Fatalf("append reading 2: %v id=%d", err, id2)
	}

	var iterated []string
	if err := j.Iterate(1, func(id ports.JournalEntryID, r *domain.Reading) error {
		iterated = append(iterated, r.ID)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(iterated) != 2 || iterated[0] != "r1" || iterated[1] != "r2" {
		t.Fatalf("unexpected iteration order: %v", iterated)
	}

	if err := j.Commit(id1); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	j2, err := NewFileJournal(dir)
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	defer j2.Close()

	stats := j2.Stats()
	if stats.LatestAppended != id2 {
		t.Fatalf("expected latest appended %d, got %d", id2, stats.LatestAppended)
	}
	if stats.OldestUncommitted != id2 {
		t.Fatalf("expected oldest uncommitted %d, got %d", id2, stats.OldestUncommitted)
	}

	id3, err := j2.Append(&domain.Reading{ID: "r3"})
	if err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if id3 != id2+1 {
		t.Fatalf("expected ids to continue after reopen, got %d", id3)
	}
}

func TestFileJournalDropsTornTail(t *testing.T) {
	dir := t.TempDir()

	j, err := NewFileJournal(dir)
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}
	if _, err := j.Append(&domain.Reading{ID: "ok"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	sizeBefore := fileSize(t, filepath.Join(dir, "readings.journal"))

	if err := appendGarbage(filepath.Join(dir, "readings.journal")); err != nil {
		t.Fatalf("append garbage: %v", err)
	}

	j2, err := NewFileJournal(dir)
	if err != nil {
		t.Fatalf("reopen after garbage: %v", err)
	}
	defer j2.Close()

	if got := j2.Stats().SizeBytes; got != sizeBefore {
		t.Fatalf("expected torn tail to be truncated to %d bytes, got %d", sizeBefore, got)
	}
	var count int
	if err := j2.Iterate(0, func(ports.JournalEntryID, *domain.Reading) error {
		count++
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 surviving record, got %d", count)
	}
}

func TestFileJournalTruncateCommitted(t *testing.T) {
	dir := t.TempDir()

	j, err := NewFileJournal(dir)
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}
	defer j.Close()

	var last ports.JournalEntryID
	for _, id := range []string{"a", "b", "c"} {
		last, err = j.Append(&domain.Reading{ID: id})
		if err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	if err := j.Commit(last - 1); err != nil {
		t.Fatalf("commit: %v", err)
	}
	before := j.Stats().SizeBytes

	if err := j.TruncateCommitted(); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if after := j.Stats().SizeBytes; after >= before {
		t.Fatalf("expected journal to shrink, before=%d after=%d", before, after)
	}

	var ids []string
	if err := j.Iterate(0, func(_ ports.JournalEntryID, r *domain.Reading) error {
		ids = append(ids, r.ID)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(ids) != 1 || ids[0] != "c" {
		t.Fatalf("expected only uncommitted entry c, got %v", ids)
	}

	if _, err := j.Append(&domain.Reading{ID: "d"}); err != nil {
		t.Fatalf("append after truncate: %v", err)
	}
}

func appendGarbage(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte{0xFF, 0xAA, 0x01})
	return err
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return st.Size()
}
