package calibraflow

import (
	"context"
	"testing"
	"time"
)

func TestReadingArchiveDeliversAndReplays(t *testing.T) {
	dir := t.TempDir()
	delivered := make(chan []Reading, 4)

	arch, err := NewReadingArchive(&ReadingArchiveConfig{
		JournalDir: dir,
		Policy:     ArchivePolicy{IdleSleep: time.Millisecond},
	}, func(batch []Reading) error {
		delivered <- batch
		return nil
	})
	if err != nil {
		t.Fatalf("NewReadingArchive returned error: %v", err)
	}

	if err := arch.Publish(Reading{ID: "r-1", SensorID: "1", Value: 4.2, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	select {
	case batch := <-delivered:
		if len(batch) != 1 || batch[0].ID != "r-1" || batch[0].Value != 4.2 {
			t.Fatalf("unexpected batch: %+v", batch)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := arch.Close(ctx); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := arch.Publish(Reading{ID: "r-2"}); err != ErrClosed {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
}

func TestNewReadingArchiveValidates(t *testing.T) {
	if _, err := NewReadingArchive(nil, func([]Reading) error { return nil }); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := NewReadingArchive(&ReadingArchiveConfig{JournalDir: t.TempDir()}, nil); err == nil {
		t.Fatalf("expected error for nil callback")
	}
}
