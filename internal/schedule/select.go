package schedule

import (
	"errors"
	"sort"
	"time"

	"gdqnow/internal/model"
)

// ErrNoCurrentEvent is returned by Select when every entry has already
// ended, including when there are no entries at all.
var ErrNoCurrentEvent = errors.New("no current event")

// Selection is the outcome of one selection pass.
type Selection struct {
	Current model.Entry
	// Next is nil when nothing starts after now.
	Next *model.Entry
	// Entries is the sorted list the selection was made from.
	Entries []model.Entry
}

// Select picks the current and next runs relative to now.
//
// Entries are sorted by start time; equal start times keep their input
// order. Current is the first entry whose window ends strictly after now,
// so overlapping runs resolve to the earliest start. Next is the first
// other entry starting strictly after now.
func Select(entries []model.Entry, now time.Time) (Selection, error) {
	sorted := make([]model.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})

	current := -1
	for i, e := range sorted {
		if e.End().After(now) {
			current = i
			break
		}
	}
	if current < 0 {
		return Selection{Entries: sorted}, ErrNoCurrentEvent
	}

	sel := Selection{Current: sorted[current], Entries: sorted}
	for i := range sorted {
		if i == current {
			continue
		}
		if sorted[i].StartTime.After(now) {
			next := sorted[i]
			sel.Next = &next
			break
		}
	}
	return sel, nil
}
