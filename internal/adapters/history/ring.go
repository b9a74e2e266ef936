package history

import "github.com/ghalamif/CalibraFlow/internal/domain"

// Ring is a fixed-capacity FIFO of readings. Appending to a full ring evicts
// the oldest entry. Ring is not safe for concurrent use; the telemetry store
// serializes access.
type Ring struct {
	buf   []domain.Reading
	start int
	size  int
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{buf: make([]domain.Reading, capacity)}
}

// Append is O(1).
func (r *Ring) Append(rd domain.Reading) {
	c := len(r.buf)
	if r.size < c {
		r.buf[(r.start+r.size)%c] = rd
		r.size++
		return
	}
	r.buf[r.start] = rd
	r.start = (r.start + 1) % c
}

func (r *Ring) Len() int { return r.size }

func (r *Ring) Cap() int { return len(r.buf) }

// Items copies the contents oldest first.
func (r *Ring) Items() []domain.Reading {
	out := make([]domain.Reading, r.size)
	c := len(r.buf)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%c]
	}
	return out
}

// Last returns the newest reading.
func (r *Ring) Last() (domain.Reading, bool) {
	if r.size == 0 {
		return domain.Reading{}, false
	}
	return r.buf[(r.start+r.size-1)%len(r.buf)], true
}
