package store

import (
	"math"
)

// Selection is the complete query handed to consumers: a Cursor, a Filter
// and an optional closed upper id bound. It iterates only matching
// records, optionally bounded by the filter's time window, and can follow
// the store live once exhausted.
//
// A Selection must be Closed when its consumer goes away so the store does
// not keep delivering into a dead cursor.
type Selection struct {
	cursor *Cursor
	filter *Filter
	endID  uint64
}

// NewSelection builds a Selection over s. onAppend is invoked after a
// matching live append has been adopted; the consumer's event loop uses it
// to resume draining.
func NewSelection(s *Store, f *Filter, onAppend func()) *Selection {
	return &Selection{
		cursor: NewCursor(s, onAppend),
		filter: f,
		endID:  math.MaxUint64,
	}
}

// Valid reports whether the Selection has a current record within its id
// bound. This is the only gate enforcing the closed upper time bound.
func (sel *Selection) Valid() bool {
	return sel.cursor.HasCurrent() && sel.cursor.Record().ID() <= sel.endID
}

// Record returns the current record. The Selection must be Valid.
func (sel *Selection) Record() *Record { return sel.cursor.Record() }

// SkipMismatches advances past records failing the filter until a match
// is found, the id bound is exceeded, or the store is exhausted. Applying
// it twice in a row is a no-op.
func (sel *Selection) SkipMismatches() {
	for sel.Valid() && !sel.filter.Matches(sel.cursor.Record()) {
		sel.cursor.Advance()
	}
}

// Rewind performs the first positioning of the Selection. With a bounded
// time window it seeks directly to the window's first record and narrows
// the id bound to exclude the first record past the window; without one it
// starts at the oldest surviving record. Either way it then skips forward
// to the first match. Must only be called once, before any positioning.
func (sel *Selection) Rewind() {
	if sel.cursor.HasCurrent() || sel.endID != math.MaxUint64 {
		panic("store: rewind of a positioned selection")
	}

	if sel.filter.HasTimeBounds() {
		first, bound := sel.cursor.TimeRange(sel.filter.SinceMs, sel.filter.UntilMs)
		if first == nil {
			// Nothing at or after since; the selection stays empty.
			return
		}
		sel.cursor.MoveTo(first)
		if bound != nil {
			// The bound record is the first one past the window and is
			// excluded from iteration.
			sel.endID = bound.ID() - 1
		}
	} else {
		sel.cursor.Rewind()
	}

	sel.SkipMismatches()
}

// FixDeleted repairs a cursor position invalidated by eviction and
// re-applies mismatch skipping, since a repaired position may land on a
// non-matching record. Reports whether a repair occurred.
func (sel *Selection) FixDeleted() bool {
	if !sel.cursor.FixDeleted() {
		return false
	}
	sel.SkipMismatches()
	return true
}

// Resume picks up records appended while the Selection was exhausted and
// unarmed, as after a mismatching live append consumed its registration.
// It repositions past the last held record and skips to the next match,
// reporting whether it moved.
func (sel *Selection) Resume() bool {
	if !sel.cursor.Resume() {
		return false
	}
	sel.SkipMismatches()
	return true
}

// Advance moves past the current record to the next match, if any.
func (sel *Selection) Advance() {
	sel.cursor.Advance()
	sel.SkipMismatches()
}

// Follow arms the Selection for one future append notification, unless it
// still has something to read or is already armed.
func (sel *Selection) Follow() {
	sel.cursor.Follow(sel)
}

// OnAppend is the store's fan-out entry point. The Selection must have no
// current record. A matching record is adopted (waking the consumer
// through the cursor's append callback) and true is returned; a mismatch
// returns false without adopting and without re-arming; re-arming is the
// driving loop's responsibility.
func (sel *Selection) OnAppend(rec *Record) bool {
	// The store already dropped the registration before delivering.
	sel.cursor.markUnlinked()

	if sel.Valid() {
		panic("store: append delivery to a selection with a current record")
	}
	if !sel.filter.Matches(rec) {
		return false
	}
	sel.cursor.OnAppend(rec)
	return true
}

// Close unlinks the underlying cursor from the store's listener registry.
// The store never holds a reference to the Selection afterwards.
func (sel *Selection) Close() {
	sel.cursor.Unlink()
}

// IsLinked reports whether the Selection is armed for live notification.
func (sel *Selection) IsLinked() bool { return sel.cursor.IsLinked() }
