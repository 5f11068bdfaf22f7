package store

import (
	"sort"
)

// AppendListener receives one append notification after being armed via
// ArmListener. The store removes the registration before delivering, so a
// listener may re-arm from inside OnAppend; it will only see future
// appends. The return value reports whether the listener consumed the
// record; the store itself does not act on it.
type AppendListener interface {
	OnAppend(*Record) bool
}

// RegistrationID identifies an armed listener. The zero value means "not
// registered".
type RegistrationID uint64

type listenerEntry struct {
	reg RegistrationID
	l   AppendListener
}

const defaultInitialSlots = 1024

// Store is the bounded, FIFO-evicting ordered collection of Records plus
// its time index and listener registry. It is not safe for concurrent use;
// the caller serializes all access (see internal/runtime).
type Store struct {
	slots []*Record // ring storage
	head  int       // index of the oldest record
	count int
	bytes int64 // sum of raw lengths of stored records

	maxRecords int   // 0 = unbounded by count
	maxBytes   int64 // 0 = unbounded by bytes

	nextID uint64 // id assigned to the next appended record

	listeners []listenerEntry
	nextReg   RegistrationID

	evicted uint64 // total records evicted so far
}

// New returns an empty Store. maxRecords bounds the record count and
// maxBytes bounds the sum of raw record sizes; a zero disables that bound,
// but at least one bound must be set.
func New(maxRecords int, maxBytes int64) *Store {
	if maxRecords <= 0 && maxBytes <= 0 {
		panic("store: capacity bound required")
	}
	initial := defaultInitialSlots
	if maxRecords > 0 && maxRecords < initial {
		initial = maxRecords
	}
	return &Store{
		slots:      make([]*Record, initial),
		maxRecords: maxRecords,
		maxBytes:   maxBytes,
		nextID:     1,
		nextReg:    1,
	}
}

// Len returns the number of stored records.
func (s *Store) Len() int { return s.count }

// Bytes returns the sum of raw sizes of stored records.
func (s *Store) Bytes() int64 { return s.bytes }

// Evicted returns the total number of records evicted since creation.
func (s *Store) Evicted() uint64 { return s.evicted }

// Append constructs a Record with the next sequential id, appends it,
// evicts from the front while over capacity, and delivers the new record
// to every currently armed listener, in arming order, before returning.
// The caller must present timestamps non-decreasing in append order; a
// regression is a contract violation.
func (s *Store) Append(parsed Parsed, raw []byte) uint64 {
	if newest := s.Newest(); newest != nil && parsed.TimestampMs < newest.parsed.TimestampMs {
		panic("store: timestamp regression on append")
	}

	rec := &Record{id: s.nextID, raw: raw, parsed: parsed}
	s.nextID++

	for s.count > 0 && s.overCapacityWith(int64(len(raw))) {
		s.evictOldest()
	}
	s.push(rec)

	// Detach all armed listeners before delivery; re-arming from inside a
	// callback registers for future appends only.
	pending := s.listeners
	s.listeners = nil
	for _, e := range pending {
		e.l.OnAppend(rec)
	}

	return rec.id
}

func (s *Store) overCapacityWith(incoming int64) bool {
	if s.maxRecords > 0 && s.count >= s.maxRecords {
		return true
	}
	if s.maxBytes > 0 && s.bytes+incoming > s.maxBytes {
		return true
	}
	return false
}

func (s *Store) evictOldest() {
	rec := s.slots[s.head]
	s.slots[s.head] = nil
	s.head = (s.head + 1) % len(s.slots)
	s.count--
	s.bytes -= int64(len(rec.raw))
	s.evicted++
}

func (s *Store) push(rec *Record) {
	if s.count == len(s.slots) {
		s.grow()
	}
	s.slots[(s.head+s.count)%len(s.slots)] = rec
	s.count++
	s.bytes += int64(len(rec.raw))
}

func (s *Store) grow() {
	size := len(s.slots) * 2
	if s.maxRecords > 0 && size > s.maxRecords {
		size = s.maxRecords
	}
	next := make([]*Record, size)
	for i := 0; i < s.count; i++ {
		next[i] = s.at(i)
	}
	s.slots = next
	s.head = 0
}

// at returns the i-th stored record, oldest first. The caller guarantees
// 0 <= i < count.
func (s *Store) at(i int) *Record {
	return s.slots[(s.head+i)%len(s.slots)]
}

// Oldest returns the oldest surviving record, or nil if the store is empty.
func (s *Store) Oldest() *Record {
	if s.count == 0 {
		return nil
	}
	return s.at(0)
}

// Newest returns the most recently appended record, or nil if the store is
// empty.
func (s *Store) Newest() *Record {
	if s.count == 0 {
		return nil
	}
	return s.at(s.count - 1)
}

// Contains reports whether the record with the given id is still stored.
func (s *Store) Contains(id uint64) bool {
	return s.count > 0 && id >= s.at(0).id && id <= s.at(s.count-1).id
}

// Get returns the record with the given id, or nil if it was evicted,
// never existed, or the store is empty. Ids are contiguous, so this is a
// constant-time ring lookup.
func (s *Store) Get(id uint64) *Record {
	if !s.Contains(id) {
		return nil
	}
	return s.at(int(id - s.at(0).id))
}

// After returns the first surviving record with an id greater than the
// given one, or nil if none survives.
func (s *Store) After(id uint64) *Record {
	if s.count == 0 {
		return nil
	}
	first := s.at(0)
	if id < first.id {
		return first
	}
	if id >= s.at(s.count-1).id {
		return nil
	}
	return s.at(int(id - first.id + 1))
}

// TimeRange returns the first record with timestamp >= since (nil if the
// store is empty or every record precedes since) and the first record with
// timestamp > until (nil if no record lies past the window). Valid because
// timestamps are non-decreasing in append order.
func (s *Store) TimeRange(sinceMs, untilMs int64) (first, bound *Record) {
	if s.count == 0 {
		return nil, nil
	}
	lo := sort.Search(s.count, func(i int) bool {
		return s.at(i).parsed.TimestampMs >= sinceMs
	})
	if lo < s.count {
		first = s.at(lo)
	}
	hi := sort.Search(s.count, func(i int) bool {
		return s.at(i).parsed.TimestampMs > untilMs
	})
	if hi < s.count {
		bound = s.at(hi)
	}
	return first, bound
}

// ArmListener registers l for exactly one future append notification and
// returns its registration id.
func (s *Store) ArmListener(l AppendListener) RegistrationID {
	reg := s.nextReg
	s.nextReg++
	s.listeners = append(s.listeners, listenerEntry{reg: reg, l: l})
	return reg
}

// CancelListener removes a registration. Unknown ids (already delivered or
// cancelled) are ignored.
func (s *Store) CancelListener(reg RegistrationID) {
	for i, e := range s.listeners {
		if e.reg == reg {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

func (s *Store) armedListeners() int { return len(s.listeners) }
