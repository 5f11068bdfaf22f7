package store

import (
	"testing"
)

func rec(id uint64, ts int64, site, msg string) *Record {
	return &Record{id: id, raw: []byte(msg), parsed: Parsed{TimestampMs: ts, Site: site, Message: msg}}
}

func TestFilterDefaultMatchesEverything(t *testing.T) {
	f := NewFilter()
	if f.HasTimeBounds() {
		t.Fatalf("default filter must be unbounded")
	}
	if !f.Matches(rec(1, -5, "", "x")) || !f.Matches(rec(2, 1<<60, "any", "")) {
		t.Fatalf("default filter must match everything")
	}
}

func TestFilterTimeWindowIsInclusive(t *testing.T) {
	f := NewFilter()
	f.SinceMs = 10
	f.UntilMs = 20
	if !f.HasTimeBounds() {
		t.Fatalf("window should count as bounded")
	}
	for _, tc := range []struct {
		ts   int64
		want bool
	}{
		{9, false},
		{10, true},
		{15, true},
		{20, true},
		{21, false},
	} {
		if got := f.Matches(rec(1, tc.ts, "a", "m")); got != tc.want {
			t.Fatalf("ts=%d: want %v, got %v", tc.ts, tc.want, got)
		}
	}
}

func TestFilterSiteIsExactMatch(t *testing.T) {
	f := NewFilter()
	f.Site = "shop"
	if !f.Matches(rec(1, 0, "shop", "m")) {
		t.Fatalf("matching site rejected")
	}
	if f.Matches(rec(2, 0, "shop2", "m")) || f.Matches(rec(3, 0, "", "m")) {
		t.Fatalf("non-matching site accepted")
	}
}

func TestFilterExpr(t *testing.T) {
	f := NewFilter()
	if err := f.SetExpr(`message.contains("error") && size < 100`); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !f.Matches(rec(1, 0, "a", "disk error")) {
		t.Fatalf("expression should match")
	}
	if f.Matches(rec(2, 0, "a", "all good")) {
		t.Fatalf("expression should reject")
	}
}

func TestFilterExprSeesTimestampAndSite(t *testing.T) {
	f := NewFilter()
	if err := f.SetExpr(`ts_ms >= 100 && site == "a"`); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !f.Matches(rec(1, 150, "a", "m")) {
		t.Fatalf("expression should match")
	}
	if f.Matches(rec(2, 50, "a", "m")) || f.Matches(rec(3, 150, "b", "m")) {
		t.Fatalf("expression should reject")
	}
}

func TestFilterExprCompileError(t *testing.T) {
	f := NewFilter()
	if err := f.SetExpr(`message ==`); err == nil {
		t.Fatalf("expected a compile error")
	}
}

func TestFilterExprNonBoolIsMismatch(t *testing.T) {
	f := NewFilter()
	if err := f.SetExpr(`size`); err != nil {
		// Some expressions are rejected at compile time instead; either
		// behavior keeps a non-bool result from matching.
		return
	}
	if f.Matches(rec(1, 0, "a", "m")) {
		t.Fatalf("non-bool expression result must not match")
	}
}

func TestFilterClearExpr(t *testing.T) {
	f := NewFilter()
	if err := f.SetExpr(`false`); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if f.Matches(rec(1, 0, "a", "m")) {
		t.Fatalf("false must reject")
	}
	if err := f.SetExpr("  "); err != nil {
		t.Fatalf("clearing: %v", err)
	}
	if !f.Matches(rec(1, 0, "a", "m")) {
		t.Fatalf("cleared expression must match again")
	}
}

func TestFilterCombinesNativeAndExpr(t *testing.T) {
	f := NewFilter()
	f.Site = "a"
	f.SinceMs = 10
	f.UntilMs = 20
	if err := f.SetExpr(`message != "skip"`); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !f.Matches(rec(1, 15, "a", "keep")) {
		t.Fatalf("record satisfying all constraints rejected")
	}
	if f.Matches(rec(2, 15, "a", "skip")) {
		t.Fatalf("expression constraint ignored")
	}
	if f.Matches(rec(3, 15, "b", "keep")) {
		t.Fatalf("site constraint ignored")
	}
	if f.Matches(rec(4, 25, "a", "keep")) {
		t.Fatalf("window constraint ignored")
	}
}
