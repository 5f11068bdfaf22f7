package runtime

import (
	"go.uber.org/atomic"
)

// Stats are the runtime's monotonic counters. They are updated from the
// serving goroutines and read lock-free by the admin API.
type Stats struct {
	Appends         atomic.Uint64
	Evictions       atomic.Uint64
	TimestampClamps atomic.Uint64
	Queries         atomic.Uint64
	Deliveries      atomic.Uint64
	DroppedIngest   atomic.Uint64
}

// Snapshot is a point-in-time copy of the counters plus store gauges,
// shaped for JSON.
type Snapshot struct {
	Appends         uint64 `json:"appends"`
	Evictions       uint64 `json:"evictions"`
	TimestampClamps uint64 `json:"timestampClamps"`
	Queries         uint64 `json:"queries"`
	Deliveries      uint64 `json:"deliveries"`
	DroppedIngest   uint64 `json:"droppedIngest"`

	Records    int    `json:"records"`
	Bytes      int64  `json:"bytes"`
	OldestID   uint64 `json:"oldestId"`
	NewestID   uint64 `json:"newestId"`
	OldestTsMs int64  `json:"oldestTsMs"`
	NewestTsMs int64  `json:"newestTsMs"`
}

// Snapshot captures counters and store gauges under the runtime lock.
func (r *Runtime) Snapshot() Snapshot {
	snap := Snapshot{
		Appends:         r.stats.Appends.Load(),
		Evictions:       r.stats.Evictions.Load(),
		TimestampClamps: r.stats.TimestampClamps.Load(),
		Queries:         r.stats.Queries.Load(),
		Deliveries:      r.stats.Deliveries.Load(),
		DroppedIngest:   r.stats.DroppedIngest.Load(),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	snap.Records = r.store.Len()
	snap.Bytes = r.store.Bytes()
	if oldest := r.store.Oldest(); oldest != nil {
		snap.OldestID = oldest.ID()
		snap.OldestTsMs = oldest.TimestampMs()
	}
	if newest := r.store.Newest(); newest != nil {
		snap.NewestID = newest.ID()
		snap.NewestTsMs = newest.TimestampMs()
	}
	return snap
}
