package store

import (
	"testing"
)

func siteFilter(site string) *Filter {
	f := NewFilter()
	f.Site = site
	return f
}

func windowFilter(sinceMs, untilMs int64) *Filter {
	f := NewFilter()
	f.SinceMs = sinceMs
	f.UntilMs = untilMs
	return f
}

// collect drains the selection from its first positioning.
func collect(sel *Selection) []uint64 {
	sel.Rewind()
	var out []uint64
	for sel.Valid() {
		out = append(out, sel.Record().ID())
		sel.Advance()
	}
	return out
}

func wantIDs(t *testing.T, got, want []uint64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("want ids %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want ids %v, got %v", want, got)
		}
	}
}

func TestSelectionIteratesOnlyMatches(t *testing.T) {
	s := New(10, 0)
	put(t, s, 1, "a", "m")
	put(t, s, 2, "b", "m")
	put(t, s, 3, "a", "m")
	put(t, s, 4, "c", "m")
	put(t, s, 5, "a", "m")

	sel := NewSelection(s, siteFilter("a"), nil)
	wantIDs(t, collect(sel), []uint64{1, 3, 5})
}

func TestSelectionWithoutMatchesIsEmpty(t *testing.T) {
	s := New(10, 0)
	put(t, s, 1, "a", "m")
	sel := NewSelection(s, siteFilter("nope"), nil)
	wantIDs(t, collect(sel), nil)
}

func TestSelectionTimeWindowSeeksAndExcludesBound(t *testing.T) {
	s := New(10, 0)
	for i, ts := range []int64{10, 20, 30, 40, 50} {
		put(t, s, ts, "a", "m"+string(rune('a'+i)))
	}

	sel := NewSelection(s, windowFilter(20, 40), nil)
	wantIDs(t, collect(sel), []uint64{2, 3, 4})
}

func TestSelectionBoundHoldsAcrossLaterAppends(t *testing.T) {
	s := New(10, 0)
	for _, ts := range []int64{10, 20, 30, 40} {
		put(t, s, ts, "a", "m")
	}

	sel := NewSelection(s, windowFilter(10, 25), nil)
	sel.Rewind() // bound narrowed to id 2
	var got []uint64
	for sel.Valid() {
		got = append(got, sel.Record().ID())
		sel.Advance()
	}
	wantIDs(t, got, []uint64{1, 2})

	// Records appended after the bound was fixed can never become valid,
	// whatever their timestamps claim.
	put(t, s, 50, "a", "m")
	sel.FixDeleted()
	if sel.Valid() {
		t.Fatalf("a bounded selection must stay closed")
	}
}

func TestSelectionEmptyWindowOnEmptyStore(t *testing.T) {
	s := New(10, 0)
	sel := NewSelection(s, windowFilter(100, 200), nil)
	sel.Rewind()
	if sel.Valid() {
		t.Fatalf("selection over an empty store must be empty")
	}
	if sel.IsLinked() {
		t.Fatalf("rewind must not arm anything")
	}
}

func TestSelectionWindowPastAllRecords(t *testing.T) {
	s := New(10, 0)
	put(t, s, 10, "a", "m")
	sel := NewSelection(s, windowFilter(100, 200), nil)
	sel.Rewind()
	if sel.Valid() {
		t.Fatalf("no record reaches the window")
	}
}

func TestSelectionSecondRewindPanics(t *testing.T) {
	s := New(10, 0)
	put(t, s, 1, "a", "m")
	sel := NewSelection(s, NewFilter(), nil)
	sel.Rewind()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	sel.Rewind()
}

func TestSelectionSkipMismatchesIsIdempotent(t *testing.T) {
	s := New(10, 0)
	put(t, s, 1, "b", "m")
	put(t, s, 2, "a", "m")
	sel := NewSelection(s, siteFilter("a"), nil)
	sel.Rewind()
	if !sel.Valid() || sel.Record().ID() != 2 {
		t.Fatalf("rewind should land on the first match")
	}
	sel.SkipMismatches()
	if !sel.Valid() || sel.Record().ID() != 2 {
		t.Fatalf("a second skip must not move the position")
	}
}

func TestSelectionFixDeletedLandsOnMatch(t *testing.T) {
	s := New(3, 0)
	put(t, s, 1, "a", "m")
	put(t, s, 2, "b", "m")
	put(t, s, 3, "a", "m")

	sel := NewSelection(s, siteFilter("a"), nil)
	sel.Rewind() // at id 1

	// Evict ids 1 and 2; the repair must skip the mismatching id it would
	// otherwise land on and stop at id 3.
	put(t, s, 4, "b", "m")
	put(t, s, 5, "b", "m")

	if !sel.FixDeleted() {
		t.Fatalf("expected a repair")
	}
	if !sel.Valid() || sel.Record().ID() != 3 {
		t.Fatalf("repair should land on the next match")
	}
}

func TestSelectionRepairSkipsMismatchedLanding(t *testing.T) {
	s := New(3, 0)
	put(t, s, 1, "a", "m")
	put(t, s, 2, "b", "m")
	put(t, s, 3, "a", "m")

	sel := NewSelection(s, siteFilter("a"), nil)
	sel.Rewind() // at id 1

	put(t, s, 4, "a", "m") // evicts id 1

	// The repair lands on id 2, which mismatches; the skip carries the
	// selection to id 3.
	if !sel.FixDeleted() {
		t.Fatalf("expected a repair")
	}
	if !sel.Valid() || sel.Record().ID() != 3 {
		t.Fatalf("want id 3 after repair and skip, got valid=%v", sel.Valid())
	}
	sel.Advance()
	if !sel.Valid() || sel.Record().ID() != 4 {
		t.Fatalf("want id 4 next")
	}
}

func TestSelectionEvictionDuringIteration(t *testing.T) {
	s := New(3, 0)
	for i := 1; i <= 3; i++ {
		put(t, s, int64(i), "a", "m")
	}
	sel := NewSelection(s, NewFilter(), nil)
	sel.Rewind()
	got := []uint64{sel.Record().ID()} // 1

	// Two appends push out ids 1 and 2 while the consumer is paused.
	put(t, s, 4, "a", "m")
	put(t, s, 5, "a", "m")

	sel.FixDeleted()
	for sel.Valid() {
		got = append(got, sel.Record().ID())
		sel.Advance()
	}
	wantIDs(t, got, []uint64{1, 3, 4, 5})
}

func TestSelectionFollowDeliversMatch(t *testing.T) {
	s := New(10, 0)
	woken := 0
	sel := NewSelection(s, siteFilter("a"), func() { woken++ })
	sel.Rewind()
	if sel.Valid() {
		t.Fatalf("selection should start empty")
	}

	sel.Follow()
	if !sel.IsLinked() {
		t.Fatalf("follow should arm the selection")
	}

	put(t, s, 1, "a", "hello")
	if !sel.Valid() || sel.Record().ID() != 1 {
		t.Fatalf("matching append should be adopted")
	}
	if woken != 1 {
		t.Fatalf("consumer should be woken once, got %d", woken)
	}
	if sel.IsLinked() {
		t.Fatalf("delivery consumes the registration")
	}
}

func TestSelectionFollowMismatchLeavesUnarmed(t *testing.T) {
	s := New(10, 0)
	woken := 0
	sel := NewSelection(s, siteFilter("a"), func() { woken++ })
	sel.Rewind()
	sel.Follow()

	put(t, s, 1, "b", "nope")
	if sel.Valid() {
		t.Fatalf("mismatch must not be adopted")
	}
	if woken != 0 {
		t.Fatalf("mismatch must not wake the consumer")
	}
	if sel.IsLinked() {
		t.Fatalf("mismatch leaves the selection unarmed")
	}

	// The driving loop re-arms; the next matching append is delivered.
	sel.Follow()
	put(t, s, 2, "a", "yes")
	if !sel.Valid() || sel.Record().ID() != 2 {
		t.Fatalf("re-armed selection should adopt the match")
	}
	if woken != 1 {
		t.Fatalf("want one wake, got %d", woken)
	}
}

func TestSelectionResumePicksUpMissedRecords(t *testing.T) {
	s := New(10, 0)
	put(t, s, 1, "a", "m")
	sel := NewSelection(s, siteFilter("a"), func() {})
	wantIDs(t, collect(sel), []uint64{1})

	sel.Follow()
	put(t, s, 2, "b", "m") // consumes the registration, not adopted

	// Records appended while unarmed are only reachable by resuming.
	put(t, s, 3, "b", "m")
	put(t, s, 4, "a", "m")

	if !sel.Resume() {
		t.Fatalf("expected resume to move")
	}
	if !sel.Valid() || sel.Record().ID() != 4 {
		t.Fatalf("resume should land on the next match, got valid=%v", sel.Valid())
	}
}

func TestSelectionResumeNoopWhileArmedOrReadable(t *testing.T) {
	s := New(10, 0)
	put(t, s, 1, "a", "m")
	sel := NewSelection(s, NewFilter(), func() {})
	sel.Rewind()
	if sel.Resume() {
		t.Fatalf("a readable selection must not resume")
	}

	for sel.Valid() {
		sel.Advance()
	}
	sel.Follow()
	if sel.Resume() {
		t.Fatalf("an armed selection must not resume")
	}
}

func TestSelectionFollowNoopWhileReadable(t *testing.T) {
	s := New(10, 0)
	put(t, s, 1, "a", "m")
	sel := NewSelection(s, NewFilter(), func() {})
	sel.Rewind()
	sel.Follow()
	if sel.IsLinked() {
		t.Fatalf("a selection with work left must not arm")
	}
}

func TestSelectionFollowIdempotentWhileArmed(t *testing.T) {
	s := New(10, 0)
	sel := NewSelection(s, NewFilter(), func() {})
	sel.Rewind()
	sel.Follow()
	sel.Follow()
	if got := s.armedListeners(); got != 1 {
		t.Fatalf("want a single registration, got %d", got)
	}
}

func TestSelectionCloseUnlinks(t *testing.T) {
	s := New(10, 0)
	sel := NewSelection(s, NewFilter(), func() {})
	sel.Rewind()
	sel.Follow()
	sel.Close()
	if sel.IsLinked() || s.armedListeners() != 0 {
		t.Fatalf("close must drop the registration")
	}
	put(t, s, 1, "a", "m")
	if sel.Valid() {
		t.Fatalf("a closed selection receives nothing")
	}
}

func TestTwoSelectionsFollowIndependently(t *testing.T) {
	s := New(10, 0)
	var aWoken, bWoken int
	a := NewSelection(s, siteFilter("a"), func() { aWoken++ })
	b := NewSelection(s, siteFilter("b"), func() { bWoken++ })
	a.Rewind()
	b.Rewind()
	a.Follow()
	b.Follow()

	put(t, s, 1, "b", "m")
	if a.Valid() {
		t.Fatalf("selection a must not adopt a b record")
	}
	if !b.Valid() || b.Record().ID() != 1 {
		t.Fatalf("selection b should adopt the record")
	}
	if aWoken != 0 || bWoken != 1 {
		t.Fatalf("want wakes 0/1, got %d/%d", aWoken, bWoken)
	}
}
