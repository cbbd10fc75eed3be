// Package trace implements the bounded event trace (spec §4.5): a FIFO
// record of executed events (not pending ones), capped at MaxEntries with
// oldest-first eviction, the same discipline as world.Ledgers.
package trace

import (
	"encoding/json"
	"fmt"

	"github.com/7seasdotnet/hexcrawler/canon"
)

// MaxEntries bounds the trace so a long-running simulation never grows it
// unboundedly; it exists for diagnostics and replay spot-checks, not as the
// system of record (the command log is that).
const MaxEntries = 256

// Entry records one executed event: what it was, when it ran, and its
// outcome, which the simulation fills with the event's own params (or, for
// a rejected command, a record of the rejection).
type Entry struct {
	Tick      uint64      `json:"tick"`
	EventID   uint64      `json:"event_id"`
	EventType string      `json:"event_type"`
	Outcome   canon.Value `json:"outcome"`
}

// Trace is the bounded FIFO of executed-event entries.
type Trace struct {
	entries []Entry
}

// New constructs an empty trace.
func New() *Trace {
	return &Trace{entries: []Entry{}}
}

// Normalize replaces a nil entries slice with an empty one.
func (tr *Trace) Normalize() {
	if tr.entries == nil {
		tr.entries = []Entry{}
	}
}

// Record appends e, evicting the oldest entry if the trace is at MaxEntries.
func (tr *Trace) Record(e Entry) error {
	if err := e.Outcome.Validate(); err != nil {
		return fmt.Errorf("trace: outcome not JSON-safe: %w", err)
	}
	tr.entries = append(tr.entries, e)
	if len(tr.entries) > MaxEntries {
		tr.entries = tr.entries[len(tr.entries)-MaxEntries:]
	}
	return nil
}

// Entries returns a deep copy of the currently retained entries, oldest
// first, so callers can't mutate the trace's internal outcome values.
func (tr *Trace) Entries() ([]Entry, error) {
	out := make([]Entry, len(tr.entries))
	for i, e := range tr.entries {
		b, err := e.Outcome.Encode()
		if err != nil {
			return nil, fmt.Errorf("trace: copy entry %d: %w", i, err)
		}
		cp, err := canon.FromJSON(b)
		if err != nil {
			return nil, fmt.Errorf("trace: copy entry %d: %w", i, err)
		}
		out[i] = Entry{Tick: e.Tick, EventID: e.EventID, EventType: e.EventType, Outcome: cp}
	}
	return out, nil
}

// Len returns the number of retained entries.
func (tr *Trace) Len() int { return len(tr.entries) }

type snapshot struct {
	Entries []Entry `json:"entries"`
}

// MarshalJSON serializes the trace as its retained entries in FIFO order.
func (tr *Trace) MarshalJSON() ([]byte, error) {
	entries := tr.entries
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(snapshot{Entries: entries})
}

// UnmarshalJSON restores the trace, truncating to MaxEntries from the head
// if the serialized payload somehow exceeds it (defensive against hand-
// edited saves; a payload produced by this package never will).
func (tr *Trace) UnmarshalJSON(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("trace: decode: %w", err)
	}
	if snap.Entries == nil {
		snap.Entries = []Entry{}
	}
	if len(snap.Entries) > MaxEntries {
		snap.Entries = snap.Entries[len(snap.Entries)-MaxEntries:]
	}
	tr.entries = snap.Entries
	return nil
}
