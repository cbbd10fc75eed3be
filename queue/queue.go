// Package queue implements the deterministic min-heap-by-tick event queue
// with same-tick drain semantics (spec §4.3), grounded in the teacher's
// deterministic tick execution in app.go's FinalizeBlock, generalized from
// "one block of poker txs" to "an arbitrary number of same-tick events".
package queue

import (
	"container/heap"
	"encoding/json"
	"fmt"

	"github.com/7seasdotnet/hexcrawler/canon"
	"github.com/7seasdotnet/hexcrawler/simerr"
)

// MaxEventsPerTick is the hard deterministic fan-out guard (spec §4.3). It is
// a bug signal, not a condition any caller should recover from.
const MaxEventsPerTick = 10_000

// SimEvent is a JSON-safe queued event record.
type SimEvent struct {
	Tick          uint64                 `json:"tick"`
	EventID       uint64                 `json:"event_id"`
	EventType     string                 `json:"event_type"`
	Params        canon.Value            `json:"params"`
	UnknownFields map[string]canon.Value `json:"unknown_fields,omitempty"`
}

// Normalize ensures UnknownFields is never nil so the event round-trips
// identically whether or not the field was present on decode.
func (e *SimEvent) Normalize() {
	if e.UnknownFields == nil {
		e.UnknownFields = map[string]canon.Value{}
	}
}

// item is a queue entry ordered by (Tick, EventID) as required by spec §3's
// invariant ("Event queue is ordered primarily by tick, secondarily by
// event_id").
type item struct {
	ev      SimEvent
	index   int // heap.Interface bookkeeping
	active  bool
}

type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].ev.Tick != h[j].ev.Tick {
		return h[i].ev.Tick < h[j].ev.Tick
	}
	return h[i].ev.EventID < h[j].ev.EventID
}
func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *itemHeap) Push(x interface{}) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Queue is the deterministic event queue: a min-heap keyed by (tick, id)
// with a monotonically increasing id allocator.
type Queue struct {
	heap        itemHeap
	byID        map[uint64]*item
	nextID      uint64
	currentTick uint64
	drainTick   uint64
	draining    bool
}

// New constructs an empty queue with the given starting event id (normally 0
// for a fresh simulation, or the restored counter on load).
func New(nextID uint64) *Queue {
	q := &Queue{byID: map[uint64]*item{}, nextID: nextID}
	heap.Init(&q.heap)
	return q
}

// NextEventID returns the id that would be assigned to the next scheduled
// event, for serialization.
func (q *Queue) NextEventID() uint64 { return q.nextID }

// BeginTick marks the queue as executing tick T, enabling same-tick
// scheduling (Schedule for tick == T succeeds regardless of heap state) and
// advancing the queue's notion of "now" to T.
func (q *Queue) BeginTick(t uint64) {
	q.draining = true
	q.drainTick = t
	q.currentTick = t
}

// EndTick clears same-tick drain mode. currentTick is left at the tick just
// finished; it only moves forward again on the next BeginTick or
// SetCurrentTick call.
func (q *Queue) EndTick() {
	q.draining = false
}

// CurrentTick returns the queue's notion of "now" (spec §4.3's
// current_tick): the tick passed to the most recent BeginTick or
// SetCurrentTick call, or 0 for a freshly constructed queue.
func (q *Queue) CurrentTick() uint64 { return q.currentTick }

// SetCurrentTick aligns the queue's notion of "now" with the simulation
// clock without entering same-tick drain mode. Used on rehydration, where a
// rule module's OnSimulationStart may call Schedule (e.g. registering a new
// periodic task) before any BeginTick has run for the restored tick — without
// this, a freshly unmarshaled queue believes current_tick is 0 and silently
// accepts a schedule for a tick long past, stranding it as the heap's
// permanent minimum and halting same-tick draining forever.
func (q *Queue) SetCurrentTick(t uint64) {
	q.currentTick = t
}

// Schedule assigns a monotonically increasing event id and enqueues ev.
// It fails with InvalidCommand-class validation (simerr.InvalidEvent) if
// tick is in the past relative to current_tick, unless the queue is
// currently draining that exact tick (spec §4.3: "Fails ... if
// tick < current_tick and the queue is not in the same-tick drain phase").
func (q *Queue) Schedule(tick uint64, eventType string, params canon.Value) (uint64, error) {
	if err := params.Validate(); err != nil {
		return 0, simerr.Wrap(simerr.InvalidEvent, "event params not JSON-safe", err)
	}
	sameTickDrain := q.draining && tick == q.drainTick
	if tick < q.currentTick && !sameTickDrain {
		return 0, simerr.New(simerr.InvalidEvent, fmt.Sprintf("cannot schedule event at tick %d before current tick %d", tick, q.currentTick))
	}
	id := q.nextID
	q.nextID++
	ev := SimEvent{Tick: tick, EventID: id, EventType: eventType, Params: params, UnknownFields: map[string]canon.Value{}}
	it := &item{ev: ev, active: true}
	heap.Push(&q.heap, it)
	q.byID[id] = it
	return id, nil
}

// ScheduleRaw enqueues an already-constructed SimEvent (used on rehydration,
// where the event id must be preserved verbatim rather than reassigned).
func (q *Queue) ScheduleRaw(ev SimEvent) {
	ev.Normalize()
	it := &item{ev: ev, active: true}
	heap.Push(&q.heap, it)
	q.byID[ev.EventID] = it
	if ev.EventID >= q.nextID {
		q.nextID = ev.EventID + 1
	}
}

// Cancel removes a pending event by id. Returns false if it was already
// executed, already canceled, or never existed.
func (q *Queue) Cancel(eventID uint64) bool {
	it, ok := q.byID[eventID]
	if !ok || !it.active {
		return false
	}
	it.active = false
	delete(q.byID, eventID)
	return true
}

// Peek returns the earliest-ordered event without removing it.
func (q *Queue) Peek() (SimEvent, bool) {
	for q.heap.Len() > 0 {
		it := q.heap[0]
		if !it.active {
			heap.Pop(&q.heap)
			continue
		}
		return it.ev, true
	}
	return SimEvent{}, false
}

// PeekTick reports the tick of the earliest pending event, if any.
func (q *Queue) PeekTick() (uint64, bool) {
	ev, ok := q.Peek()
	return ev.Tick, ok
}

// Pop removes and returns the earliest-ordered event.
func (q *Queue) Pop() (SimEvent, bool) {
	for q.heap.Len() > 0 {
		it := heap.Pop(&q.heap).(*item)
		if !it.active {
			continue
		}
		delete(q.byID, it.ev.EventID)
		return it.ev, true
	}
	return SimEvent{}, false
}

// DrainTick pops and returns every currently-pending event for tick T, in
// (tick, event_id) order, WITHOUT executing same-tick re-schedules — callers
// that want drain-until-empty semantics call DrainTick repeatedly inside
// BeginTick/EndTick, re-checking PeekTick after each batch (see sim.Simulation
// for the actual drain-until-empty loop, which also enforces
// MaxEventsPerTick).
func (q *Queue) DrainTick(t uint64) []SimEvent {
	var out []SimEvent
	for {
		tk, ok := q.PeekTick()
		if !ok || tk != t {
			break
		}
		ev, _ := q.Pop()
		out = append(out, ev)
	}
	return out
}

// Len returns the number of active pending events.
func (q *Queue) Len() int { return len(q.byID) }

// PendingSnapshot returns every pending event in canonical (tick, event_id)
// order without mutating the queue. Used by rehydration logic (periodic
// scheduler) that needs to inspect already-queued events without draining
// them.
func (q *Queue) PendingSnapshot() []SimEvent {
	cpHeap := make(itemHeap, 0, len(q.heap))
	for _, it := range q.heap {
		if it.active {
			cpHeap = append(cpHeap, &item{ev: it.ev, active: true})
		}
	}
	heap.Init(&cpHeap)
	out := make([]SimEvent, 0, len(cpHeap))
	for cpHeap.Len() > 0 {
		it := heap.Pop(&cpHeap).(*item)
		out = append(out, it.ev)
	}
	return out
}

// snapshot is the serializable form of the queue: pending events plus the id
// allocator, in canonical (tick, id) order.
type snapshot struct {
	NextEventID uint64     `json:"next_event_id"`
	Pending     []SimEvent `json:"pending"`
}

// MarshalJSON implements json.Marshaler, serializing pending events in
// canonical order so the save payload's bytes are deterministic regardless
// of internal heap array layout.
func (q *Queue) MarshalJSON() ([]byte, error) {
	pending := make([]SimEvent, 0, len(q.byID))
	// Drain a throwaway copy of the heap to get canonical order without
	// mutating q.
	cpHeap := make(itemHeap, 0, len(q.heap))
	for _, it := range q.heap {
		if it.active {
			cpHeap = append(cpHeap, &item{ev: it.ev, active: true})
		}
	}
	heap.Init(&cpHeap)
	for cpHeap.Len() > 0 {
		it := heap.Pop(&cpHeap).(*item)
		pending = append(pending, it.ev)
	}
	if pending == nil {
		pending = []SimEvent{}
	}
	return json.Marshal(snapshot{NextEventID: q.nextID, Pending: pending})
}

// UnmarshalJSON implements json.Unmarshaler, rebuilding the heap from the
// serialized pending list.
func (q *Queue) UnmarshalJSON(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("queue: decode: %w", err)
	}
	q.heap = nil
	q.byID = map[uint64]*item{}
	q.nextID = snap.NextEventID
	heap.Init(&q.heap)
	for _, ev := range snap.Pending {
		ev.Normalize()
		it := &item{ev: ev, active: true}
		heap.Push(&q.heap, it)
		q.byID[ev.EventID] = it
		if ev.EventID >= q.nextID {
			q.nextID = ev.EventID + 1
		}
	}
	return nil
}
