package history

import (
	"strconv"
	"testing"

	"github.com/ghalamif/CalibraFlow/internal/domain"
)

func TestRingKeepsMostRecentInOrder(t *testing.T) {
	for _, calls := range []int{0, 1, 49, 50, 51, 120} {
		r := NewRing(50)
		for i := 0; i < calls; i++ {
			r.Append(domain.Reading{ID: strconv.Itoa(i)})
		}

		want := calls
		if want > 50 {
			want = 50
		}
		items := r.Items()
		if len(items) != want || r.Len() != want {
			t.Fatalf("calls=%d: expected %d items, got %d (Len=%d)", calls, want, len(items), r.Len())
		}
		first := calls - want
		for i, it := range items {
			if it.ID != strconv.Itoa(first+i) {
				t.Fatalf("calls=%d: item %d expected id %d, got %s", calls, i, first+i, it.ID)
			}
		}
	}
}

func TestRingLast(t *testing.T) {
	r := NewRing(2)
	if _, ok := r.Last(); ok {
		t.Fatalf("expected empty ring to have no last entry")
	}
	r.Append(domain.Reading{ID: "a"})
	r.Append(domain.Reading{ID: "b"})
	r.Append(domain.Reading{ID: "c"})

	last, ok := r.Last()
	if !ok || last.ID != "c" {
		t.Fatalf("expected last entry c, got %+v", last)
	}
	if r.Cap() != 2 {
		t.Fatalf("expected capacity 2, got %d", r.Cap())
	}
}

func TestRingItemsIsCopy(t *testing.T) {
	r := NewRing(3)
	r.Append(domain.Reading{ID: "a"})

	items := r.Items()
	items[0].ID = "mutated"

	if got := r.Items()[0].ID; got != "a" {
		t.Fatalf("expected ring contents to be unaffected, got %s", got)
	}
}
