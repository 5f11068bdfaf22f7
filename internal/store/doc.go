// Package store implements Pond's in-memory, capacity-bounded log-record
// store and its query engine.
//
// # Overview
//
// The Store holds immutable Records in append order inside a ring that
// evicts from the front when a record-count or byte budget is exceeded.
// Record ids are assigned sequentially starting at 1 and are never reused,
// so the store always holds one contiguous id range [Oldest..Newest].
// Timestamps are non-decreasing in append order (the append boundary
// enforces this), which makes the time index a plain binary search.
//
// Readers never hold positions into ring slots. A Cursor remembers the id
// of the record it last pointed at; when eviction invalidates its position,
// FixDeleted repositions it to the next surviving record. A Selection
// combines a Cursor with a Filter and an optional closed upper id bound,
// and is the iterator handed to consumers:
//
//	sel := store.NewSelection(st, f, wake)
//	sel.Rewind()
//	for sel.Valid() {
//		emit(sel.Record())
//		sel.Advance()
//	}
//	sel.Follow() // arm for live appends
//
// Append fans out new records synchronously to armed listeners, in arming
// order, before Append returns. A listener armed during delivery only sees
// future appends.
//
// The package is single-threaded: exactly one append authority and any
// number of read-only cursors, all driven from one thread of control.
// Callers (see internal/runtime) serialize access.
package store
