package runtime

import (
	"sync"

	"github.com/rzbill/pond/internal/config"
	"github.com/rzbill/pond/internal/store"
	"github.com/rzbill/pond/internal/wire"
	logpkg "github.com/rzbill/pond/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config config.Config
	Logger logpkg.Logger
}

// Runtime wires the store, config, and stats into a single-node Pond
// instance. The store itself is single-threaded; the runtime's mutex is
// what turns Go's concurrent server goroutines into the core's one thread
// of control. The append path and every cursor operation run under it.
type Runtime struct {
	mu     sync.Mutex
	store  *store.Store
	config config.Config
	logger logpkg.Logger
	stats  Stats
}

// Open validates the configuration and builds a Runtime.
func Open(opts Options) (*Runtime, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Runtime{
		store:  store.New(opts.Config.MaxRecords, opts.Config.MaxBytes),
		config: opts.Config,
		logger: logger.With(logpkg.Component("runtime")),
	}, nil
}

// Config returns the runtime configuration.
func (r *Runtime) Config() config.Config { return r.config }

// Stats exposes the runtime counters.
func (r *Runtime) Stats() *Stats { return &r.stats }

// Append is the single append authority's entry point: it enforces the
// store's timestamp-monotonicity precondition by clamping a regressing
// timestamp to the newest stored one, re-encodes when clamped so raw bytes
// stay consistent with parsed fields, appends, and returns the new id.
// Armed listeners are notified synchronously before Append returns.
func (r *Runtime) Append(d wire.Datagram) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if newest := r.store.Newest(); newest != nil && d.TimestampMs < newest.TimestampMs() {
		d.TimestampMs = newest.TimestampMs()
		r.stats.TimestampClamps.Inc()
	}

	evictedBefore := r.store.Evicted()
	id := r.store.Append(store.Parsed{
		TimestampMs: d.TimestampMs,
		Site:        d.Site,
		Message:     d.Message,
	}, d.Encode())

	r.stats.Appends.Inc()
	r.stats.Evictions.Add(r.store.Evicted() - evictedBefore)
	return id
}

// View runs fn with exclusive access to the store. Selections must only be
// created, driven, and closed from inside View (or the helpers below), so
// cursor operations never interleave with the append path.
func (r *Runtime) View(fn func(*store.Store)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.store)
}

// NewSelection builds a Selection under the runtime lock.
func (r *Runtime) NewSelection(f *store.Filter, onAppend func()) *store.Selection {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Queries.Inc()
	return store.NewSelection(r.store, f, onAppend)
}

// CloseSelection unlinks a Selection under the runtime lock.
func (r *Runtime) CloseSelection(sel *store.Selection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sel.Close()
}
