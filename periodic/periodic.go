// Package periodic implements the periodic scheduler rule module (spec
// §4.8): a built-in registry.Module, named "periodic_scheduler", that lets
// other rule modules register recurring tasks ("fire every N ticks
// starting at tick S") as ordinary queued events rather than each
// reinventing rescheduling. Grounded on the teacher's dealer deadline
// scheduling (timeouts.go / dealer.go), generalized from "one showdown
// deadline" to "arbitrarily many named recurring tasks" sharing a single
// substrate-reserved event type.
package periodic

import (
	"fmt"

	"github.com/7seasdotnet/hexcrawler/canon"
	"github.com/7seasdotnet/hexcrawler/queue"
	"github.com/7seasdotnet/hexcrawler/registry"
	"github.com/7seasdotnet/hexcrawler/simerr"
)

// EventType is the substrate-reserved event type for every periodic firing;
// the specific task is carried in the event's params, not the event type.
const EventType = "periodic_tick"

// TaskCallback is invoked when a registered task's event fires.
type TaskCallback func(tick uint64) error

type task struct {
	name     string
	interval uint64
	callback TaskCallback
}

// Scheduler is the "periodic_scheduler" registry.Module. It persists
// nothing of its own beyond the pending periodic_tick events already in the
// queue; task callbacks are in-memory only and must be reattached via
// SetTaskCallback after every load (spec §4.8).
type Scheduler struct {
	registry.Base
	q     *queue.Queue
	tasks map[string]*task
}

// New constructs a Scheduler bound to q, the simulation's event queue. The
// same q must be the one the Simulation drains each tick.
func New(q *queue.Queue) *Scheduler {
	return &Scheduler{q: q, tasks: map[string]*task{}}
}

func (s *Scheduler) Name() string { return "periodic_scheduler" }

// OnSimulationStart implements the rehydration logic: it scans the already-
// restored queue for pending periodic_tick events, indexed by task_name,
// reconstructing each task's interval so a subsequent RegisterTask call
// (issued by the owning rule module re-registering itself after load) is
// recognized as already scheduled and does not create a duplicate chain.
func (s *Scheduler) OnSimulationStart() error {
	for _, ev := range s.q.PendingSnapshot() {
		if ev.EventType != EventType {
			continue
		}
		name, interval, ok := parseParams(ev.Params)
		if !ok {
			continue
		}
		if _, exists := s.tasks[name]; !exists {
			s.tasks[name] = &task{name: name, interval: interval}
		}
	}
	return nil
}

func parseParams(v canon.Value) (name string, interval uint64, ok bool) {
	obj, isObj := v.Object()
	if !isObj {
		return "", 0, false
	}
	nameV, hasName := obj["task"]
	intervalV, hasInterval := obj["interval"]
	if !hasName || !hasInterval {
		return "", 0, false
	}
	nameS, isStr := nameV.String()
	intervalI, isInt := intervalV.Int()
	if !isStr || !isInt || intervalI < 0 {
		return "", 0, false
	}
	return nameS, uint64(intervalI), true
}

func taskParams(name string, interval uint64) canon.Value {
	return canon.Object(map[string]canon.Value{
		"task":     canon.String(name),
		"interval": canon.Int(int64(interval)),
	})
}

// RegisterTask registers a recurring task firing every interval ticks,
// first firing at max(start, current_tick). It fails with
// simerr.ConflictingTaskRegistration if name is already registered with a
// different interval (registering the identical interval twice — e.g. a
// rule module re-registering at OnSimulationStart after a load where
// OnSimulationStart already reconstructed the task from the queue — is
// idempotent).
//
// If no pending periodic_tick event for name is found in the queue, one is
// scheduled; if the queue already has one pending (freshly reconstructed by
// OnSimulationStart, or simply still in flight), no duplicate is scheduled.
func (s *Scheduler) RegisterTask(name string, interval uint64, start uint64) error {
	if interval == 0 {
		return simerr.New(simerr.SchemaInvalid, "periodic: interval must be >= 1")
	}
	if existing, ok := s.tasks[name]; ok {
		if existing.interval != interval {
			return simerr.New(simerr.ConflictingTaskRegistration,
				fmt.Sprintf("periodic: task %q already registered with interval=%d (got interval=%d)",
					name, existing.interval, interval))
		}
	} else {
		s.tasks[name] = &task{name: name, interval: interval}
	}

	if !s.hasPendingTask(name) {
		fireAt := start
		if cur := s.q.CurrentTick(); cur > fireAt {
			fireAt = cur
		}
		if _, err := s.q.Schedule(fireAt, EventType, taskParams(name, interval)); err != nil {
			return fmt.Errorf("periodic: schedule initial event for %q: %w", name, err)
		}
	}
	return nil
}

func (s *Scheduler) hasPendingTask(name string) bool {
	for _, ev := range s.q.PendingSnapshot() {
		if ev.EventType != EventType {
			continue
		}
		n, _, ok := parseParams(ev.Params)
		if ok && n == name {
			return true
		}
	}
	return false
}

// SetTaskCallback attaches (or replaces) the callback invoked when name's
// event fires. A task can be registered before its callback is set (e.g.
// during rehydration, where OnSimulationStart/RegisterTask runs first and
// the owning rule module attaches its callback afterward).
func (s *Scheduler) SetTaskCallback(name string, cb TaskCallback) error {
	t, ok := s.tasks[name]
	if !ok {
		return fmt.Errorf("periodic: unknown task %q", name)
	}
	t.callback = cb
	return nil
}

// OnEventExecuted implements registry.Module: it recognizes periodic_tick
// events, invokes the named task's callback (if any), and reschedules the
// next occurrence at tick+interval.
func (s *Scheduler) OnEventExecuted(ev registry.EventExecution) error {
	if ev.EventType != EventType {
		return nil
	}
	name, interval, ok := parseParams(ev.Params)
	if !ok {
		return nil
	}
	t, known := s.tasks[name]
	if known && t.callback != nil {
		if err := t.callback(ev.Tick); err != nil {
			return fmt.Errorf("periodic: task %q callback at tick %d: %w", name, ev.Tick, err)
		}
	}
	if known {
		interval = t.interval
	}
	nextTick := ev.Tick + interval
	if _, err := s.q.Schedule(nextTick, EventType, taskParams(name, interval)); err != nil {
		return fmt.Errorf("periodic: reschedule task %q: %w", name, err)
	}
	return nil
}

// TaskNames returns registered task names, unordered.
func (s *Scheduler) TaskNames() []string {
	out := make([]string, 0, len(s.tasks))
	for n := range s.tasks {
		out = append(out, n)
	}
	return out
}
