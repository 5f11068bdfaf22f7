// Package runtime wires config, the in-memory store, and stats into a
// single-node Pond instance. It owns the mutex that serializes every store
// interaction (the append path and all cursor operations) so the core's
// single-thread-of-control model holds under the concurrent servers.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{Config: config.Default()})
//	id := rt.Append(wire.Datagram{TimestampMs: now, Site: "a", Message: "hello"})
//	_ = id
package runtime
