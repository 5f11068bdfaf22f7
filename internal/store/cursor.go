package store

// LightCursor is a position inside the Store: either unset (before the
// beginning, or exhausted) or pointing at a specific record.
// Independently, it may be linked into the store's listener registry,
// armed for one future append notification. A LightCursor is never both
// linked and pointing at a record; arming only makes sense when there is
// nothing left to read.
//
// A LightCursor survives changes to the ring's shape but not slot
// recycling: once the record it points at is evicted, the position must be
// repaired through FixDeleted before further use.
type LightCursor struct {
	store *Store
	cur   *Record
	reg   RegistrationID
}

// NewLightCursor returns an unset, unlinked cursor over s.
func NewLightCursor(s *Store) LightCursor {
	return LightCursor{store: s}
}

// HasCurrent reports whether the cursor points at a record.
func (c *LightCursor) HasCurrent() bool { return c.cur != nil }

// Record returns the current record. The cursor must have one.
func (c *LightCursor) Record() *Record {
	if c.cur == nil {
		panic("store: dereference of unset cursor")
	}
	return c.cur
}

// Rewind positions the cursor at the store's oldest surviving record, or
// unsets it if the store is empty.
func (c *LightCursor) Rewind() {
	c.cur = c.store.Oldest()
}

// Advance moves to the next record after the current one, or unsets the
// cursor if the current record was the newest. The cursor must have a
// current record.
func (c *LightCursor) Advance() {
	if c.cur == nil {
		panic("store: advance of unset cursor")
	}
	c.cur = c.store.After(c.cur.id)
}

// moveTo positions the cursor at a specific record.
func (c *LightCursor) moveTo(rec *Record) {
	c.cur = rec
}

// TimeRange delegates to the store's time index.
func (c *LightCursor) TimeRange(sinceMs, untilMs int64) (first, bound *Record) {
	return c.store.TimeRange(sinceMs, untilMs)
}

// FixDeleted checks whether the record the cursor last pointed at, by id,
// has been evicted. If so, it repositions the cursor at the next surviving
// record with a greater id (or unsets it if none survives) and reports
// true. If the record is still present, or the cursor has no current
// record, there is nothing to repair and it reports false.
//
// Slot storage is recycled but ids are not, which is what makes this
// comparison sufficient.
func (c *LightCursor) FixDeleted(rememberedID uint64) bool {
	if c.cur == nil {
		return false
	}
	if c.store.Contains(rememberedID) {
		return false
	}
	c.cur = c.store.After(rememberedID)
	return true
}

// AddAppendListener arms l for one future append. The cursor must be
// unset and unlinked.
func (c *LightCursor) AddAppendListener(l AppendListener) {
	if c.cur != nil {
		panic("store: arming a cursor with a current record")
	}
	if c.reg != 0 {
		panic("store: double-arming a cursor")
	}
	c.reg = c.store.ArmListener(l)
}

// IsLinked reports whether the cursor is armed in the listener registry.
func (c *LightCursor) IsLinked() bool { return c.reg != 0 }

// Unlink cancels an armed registration, if any.
func (c *LightCursor) Unlink() {
	if c.reg != 0 {
		c.store.CancelListener(c.reg)
		c.reg = 0
	}
}

// markUnlinked clears the linked bit without touching the registry, for
// use during delivery: the store has already dropped the registration.
func (c *LightCursor) markUnlinked() { c.reg = 0 }

// Cursor extends LightCursor with identifier memory: it remembers the id
// of the record it last pointed at, so a position invalidated by eviction
// is self-detectable without comparing against live storage on every
// access.
//
// Invariant: after any operation, if the cursor points at a record, the
// remembered id equals that record's id.
type Cursor struct {
	LightCursor
	lastID   uint64
	onAppend func()
}

// NewCursor returns an unset cursor. onAppend is the owner's hook invoked
// after the cursor adopts a live-appended record; it is required before
// Follow may be used.
func NewCursor(s *Store, onAppend func()) *Cursor {
	return &Cursor{LightCursor: NewLightCursor(s), onAppend: onAppend}
}

// FixDeleted repairs a position invalidated by eviction. On repair it
// refreshes the remembered id from the new current record (if any) and
// reports true; otherwise there was nothing to repair.
func (c *Cursor) FixDeleted() bool {
	if !c.LightCursor.FixDeleted(c.lastID) {
		return false
	}
	if c.HasCurrent() {
		c.lastID = c.Record().ID()
	}
	return true
}

// Rewind unlinks any armed registration and positions the cursor at the
// oldest surviving record.
func (c *Cursor) Rewind() {
	c.Unlink()
	c.LightCursor.Rewind()
	if c.HasCurrent() {
		c.lastID = c.Record().ID()
	}
}

// MoveTo positions the cursor at a specific record and refreshes the
// remembered id.
func (c *Cursor) MoveTo(rec *Record) {
	c.moveTo(rec)
	c.lastID = rec.ID()
}

// Follow arms l for one future append notification, unless the cursor
// still has something to read or is already armed.
func (c *Cursor) Follow(l AppendListener) {
	if c.onAppend == nil {
		panic("store: Follow without an append callback")
	}
	if !c.HasCurrent() && !c.IsLinked() {
		c.AddAppendListener(l)
	}
}

// OnAppend adopts a live-appended record as current and invokes the
// owner's append callback. It is called at most once per arming, after the
// store has dropped the registration; the cursor must have no current
// record. Filtering is not this cursor's job.
func (c *Cursor) OnAppend(rec *Record) {
	if c.IsLinked() {
		panic("store: OnAppend on a still-linked cursor")
	}
	if c.HasCurrent() {
		panic("store: OnAppend on a cursor with a current record")
	}
	c.MoveTo(rec)
	c.onAppend()
}

// Advance moves to the next record, refreshing the remembered id if a
// record results. The cursor must have a current record. On exhaustion the
// remembered id keeps its last value for future FixDeleted comparisons.
func (c *Cursor) Advance() {
	c.LightCursor.Advance()
	if c.HasCurrent() {
		c.lastID = c.Record().ID()
	}
}

// Resume positions an exhausted, unarmed cursor at the first surviving
// record with an id greater than the remembered one, if any, and reports
// whether it moved. A cursor that is armed or still has a current record
// is left alone.
func (c *Cursor) Resume() bool {
	if c.cur != nil || c.reg != 0 {
		return false
	}
	rec := c.store.After(c.lastID)
	if rec == nil {
		return false
	}
	c.MoveTo(rec)
	return true
}

// LastID returns the id of the record the cursor last pointed at.
func (c *Cursor) LastID() uint64 { return c.lastID }
