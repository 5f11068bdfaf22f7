package runtime

import (
	"testing"

	"github.com/rzbill/pond/internal/config"
	"github.com/rzbill/pond/internal/store"
	"github.com/rzbill/pond/internal/wire"
	logpkg "github.com/rzbill/pond/pkg/log"
)

func newTestRuntime(t *testing.T, maxRecords int) *Runtime {
	t.Helper()
	cfg := config.Default()
	cfg.MaxRecords = maxRecords
	cfg.MaxBytes = 0
	rt, err := Open(Options{Config: cfg, Logger: logpkg.NewNop()})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	return rt
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MaxRecords = 0
	cfg.MaxBytes = 0
	if _, err := Open(Options{Config: cfg}); err == nil {
		t.Fatalf("invalid config must be rejected")
	}
}

func TestAppendStoresDecodedRecord(t *testing.T) {
	rt := newTestRuntime(t, 16)
	id := rt.Append(wire.Datagram{TimestampMs: 100, Site: "a", Message: "hello"})
	if id != 1 {
		t.Fatalf("want id 1, got %d", id)
	}
	rt.View(func(s *store.Store) {
		rec := s.Get(1)
		if rec == nil {
			t.Fatalf("record not stored")
		}
		if rec.TimestampMs() != 100 || rec.Site() != "a" || rec.Message() != "hello" {
			t.Fatalf("parsed fields mismatch: %+v", rec.Parsed())
		}
		if _, err := wire.DecodeDatagram(rec.Raw()); err != nil {
			t.Fatalf("raw bytes must stay decodable: %v", err)
		}
	})
	if got := rt.Stats().Appends.Load(); got != 1 {
		t.Fatalf("want 1 append counted, got %d", got)
	}
}

func TestAppendClampsRegressingTimestamp(t *testing.T) {
	rt := newTestRuntime(t, 16)
	rt.Append(wire.Datagram{TimestampMs: 200, Site: "a", Message: "first"})
	rt.Append(wire.Datagram{TimestampMs: 150, Site: "a", Message: "late"})

	rt.View(func(s *store.Store) {
		rec := s.Get(2)
		if rec.TimestampMs() != 200 {
			t.Fatalf("regressing timestamp must be clamped, got %d", rec.TimestampMs())
		}
		// The raw encoding is rewritten to agree with the clamp.
		d, err := wire.DecodeDatagram(rec.Raw())
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if d.TimestampMs != 200 || d.Message != "late" {
			t.Fatalf("raw datagram mismatch: %+v", d)
		}
	})
	if got := rt.Stats().TimestampClamps.Load(); got != 1 {
		t.Fatalf("want 1 clamp counted, got %d", got)
	}
}

func TestAppendCountsEvictions(t *testing.T) {
	rt := newTestRuntime(t, 2)
	for i := 0; i < 5; i++ {
		rt.Append(wire.Datagram{TimestampMs: int64(i), Site: "a", Message: "m"})
	}
	if got := rt.Stats().Evictions.Load(); got != 3 {
		t.Fatalf("want 3 evictions counted, got %d", got)
	}
}

func TestSelectionLifecycle(t *testing.T) {
	rt := newTestRuntime(t, 16)
	rt.Append(wire.Datagram{TimestampMs: 1, Site: "a", Message: "m"})
	rt.Append(wire.Datagram{TimestampMs: 2, Site: "b", Message: "m"})

	f := store.NewFilter()
	f.Site = "a"
	sel := rt.NewSelection(f, func() {})
	defer rt.CloseSelection(sel)

	var got []uint64
	rt.View(func(*store.Store) {
		sel.Rewind()
		for sel.Valid() {
			got = append(got, sel.Record().ID())
			sel.Advance()
		}
	})
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("want [1], got %v", got)
	}
	if rt.Stats().Queries.Load() != 1 {
		t.Fatalf("query should be counted")
	}
}

func TestSnapshotGauges(t *testing.T) {
	rt := newTestRuntime(t, 16)
	rt.Append(wire.Datagram{TimestampMs: 10, Site: "a", Message: "x"})
	rt.Append(wire.Datagram{TimestampMs: 20, Site: "a", Message: "y"})

	snap := rt.Snapshot()
	if snap.Records != 2 {
		t.Fatalf("want 2 records, got %d", snap.Records)
	}
	if snap.OldestID != 1 || snap.NewestID != 2 {
		t.Fatalf("unexpected id range %d..%d", snap.OldestID, snap.NewestID)
	}
	if snap.OldestTsMs != 10 || snap.NewestTsMs != 20 {
		t.Fatalf("unexpected ts range %d..%d", snap.OldestTsMs, snap.NewestTsMs)
	}
	if snap.Bytes <= 0 {
		t.Fatalf("byte gauge should be positive")
	}
}
