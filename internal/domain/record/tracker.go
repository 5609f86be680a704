package record

import "github.com/sophialabs/lsvstats/internal/domain/event"

// DefaultMaxSlots bounds the slot id space.
const DefaultMaxSlots = 65536

// Tracker owns one Record per connection slot.
type Tracker struct {
	records        []Record
	platformHeader string
}

// NewTracker creates a tracker for slot ids in [0, maxSlots).
// platformHeader names the request header that announces the mobile platform.
func NewTracker(maxSlots int, platformHeader string) *Tracker {
	if maxSlots <= 0 {
		maxSlots = DefaultMaxSlots
	}
	return &Tracker{
		records:        make([]Record, maxSlots),
		platformHeader: platformHeader,
	}
}

// Get returns the record for slot. ok is false when slot is out of range.
func (t *Tracker) Get(slot uint32) (rec *Record, ok bool) {
	if int64(slot) >= int64(len(t.records)) {
		return nil, false
	}
	return &t.records[slot], true
}

// Apply mutates the record of ev.Slot according to the event tag. It reports
// whether the event is terminal, in which case the caller must finalize the
// slot. Out-of-range slots and unknown tags are ignored.
func (t *Tracker) Apply(ev event.Event) (terminal bool, ok bool) {
	rec, ok := t.Get(ev.Slot)
	if !ok {
		return false, false
	}

	switch ev.Tag {
	case event.TagCacheOutcome:
		rec.SetCacheOutcome(ev.Payload)
	case event.TagMethod:
		rec.SetMethod(ev.Payload)
	case event.TagRxHeader, event.TagTxHeader:
		if ev.RequestHeader() {
			rec.SetHeader(ev.Payload, t.platformHeader)
		}
	case event.TagURL:
		rec.SetURL(ev.Payload)
	case event.TagStatus:
		rec.SetStatus(ev.Payload)
	case event.TagRequestEnd:
		rec.SetTimings(ev.Payload)
	}

	return ev.Tag.Terminal(), true
}

// Valid reports whether the record of slot is complete.
func (t *Tracker) Valid(slot uint32) bool {
	rec, ok := t.Get(slot)
	return ok && rec.Valid()
}

// FinalizeAndClear returns a copy of the record when it is valid and always
// resets the slot for the next request on the same connection.
func (t *Tracker) FinalizeAndClear(slot uint32) (Record, bool) {
	rec, ok := t.Get(slot)
	if !ok {
		return Record{}, false
	}
	out := *rec
	rec.Clear()
	if !out.Valid() {
		return Record{}, false
	}
	return out, true
}

// Reset clears every slot.
func (t *Tracker) Reset() {
	clear(t.records)
}
