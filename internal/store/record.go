package store

// Parsed holds the decoded fields of a log record that filtering and the
// time index operate on.
type Parsed struct {
	// TimestampMs is the record's event time in Unix milliseconds.
	TimestampMs int64
	// Site identifies the origin of the record.
	Site string
	// Message is the human-readable body.
	Message string
}

// Record is one immutable stored log entry. Records are owned exclusively
// by the Store; they are created at append time and destroyed only by
// eviction. The id is strictly increasing across the store and never
// reused.
type Record struct {
	id     uint64
	raw    []byte
	parsed Parsed
}

// ID returns the record's monotonic identifier.
func (r *Record) ID() uint64 { return r.id }

// Raw returns the record's wire bytes. Callers must not modify them.
func (r *Record) Raw() []byte { return r.raw }

// Parsed returns the decoded fields.
func (r *Record) Parsed() *Parsed { return &r.parsed }

// TimestampMs returns the record's event time in Unix milliseconds.
func (r *Record) TimestampMs() int64 { return r.parsed.TimestampMs }

// Site returns the record's site field.
func (r *Record) Site() string { return r.parsed.Site }

// Message returns the record's message body.
func (r *Record) Message() string { return r.parsed.Message }
