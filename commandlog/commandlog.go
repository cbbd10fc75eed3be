// Package commandlog implements the ordered, append-only per-tick command
// log (spec §4.2), grounded on the teacher's per-block transaction ordering
// in app.go's FinalizeBlock (txs execute in the order CometBFT delivers
// them, and the block's tx index is recorded alongside each result).
package commandlog

import (
	"encoding/json"
	"fmt"

	"github.com/7seasdotnet/hexcrawler/canon"
)

// SimCommand is a single ingested command: the substrate's unit of player
// or external input, attributed to a tick and given a stable per-tick index.
// EntityID is empty for commands with no acting entity (the data model's
// `entity_id: string|null`).
type SimCommand struct {
	Tick          uint64                 `json:"tick"`
	CommandIndex  uint64                 `json:"command_index"`
	CommandType   string                 `json:"command_type"`
	EntityID      string                 `json:"entity_id,omitempty"`
	Params        canon.Value            `json:"params"`
	UnknownFields map[string]canon.Value `json:"unknown_fields,omitempty"`
}

// Normalize ensures UnknownFields is never nil.
func (c *SimCommand) Normalize() {
	if c.UnknownFields == nil {
		c.UnknownFields = map[string]canon.Value{}
	}
}

// ActionUID returns the glossary's deterministic identifier
// "{tick}:{command_index}", used by rule modules to enforce idempotence
// across save/load.
func (c SimCommand) ActionUID() string {
	return fmt.Sprintf("%d:%d", c.Tick, c.CommandIndex)
}

// Log is the append-only, per-tick-bucketed command log. Entries are never
// removed or reordered once appended; replaying the log in (tick,
// command_index) order against identical starting state must reproduce
// identical results (spec §8's determinism property).
type Log struct {
	buckets map[uint64][]SimCommand
	nextIdx map[uint64]uint64
	ticks   []uint64 // ticks with at least one command, in first-append order
}

// New constructs an empty command log.
func New() *Log {
	return &Log{buckets: map[uint64][]SimCommand{}, nextIdx: map[uint64]uint64{}}
}

// Append assigns the next command_index for tick and records cmd. The
// caller's CommandIndex field is overwritten to keep the log authoritative.
func (l *Log) Append(tick uint64, commandType, entityID string, params canon.Value) (SimCommand, error) {
	if err := params.Validate(); err != nil {
		return SimCommand{}, fmt.Errorf("commandlog: params not JSON-safe: %w", err)
	}
	idx := l.nextIdx[tick]
	l.nextIdx[tick] = idx + 1
	cmd := SimCommand{
		Tick:          tick,
		CommandIndex:  idx,
		CommandType:   commandType,
		EntityID:      entityID,
		Params:        params,
		UnknownFields: map[string]canon.Value{},
	}
	if _, seen := l.buckets[tick]; !seen {
		l.ticks = append(l.ticks, tick)
	}
	l.buckets[tick] = append(l.buckets[tick], cmd)
	return cmd, nil
}

// AppendRaw appends a fully-formed command (used on rehydration, where
// command_index must be preserved verbatim). The tick's next-index counter
// is advanced so subsequent live Append calls continue without collision.
func (l *Log) AppendRaw(cmd SimCommand) {
	cmd.Normalize()
	if _, seen := l.buckets[cmd.Tick]; !seen {
		l.ticks = append(l.ticks, cmd.Tick)
	}
	l.buckets[cmd.Tick] = append(l.buckets[cmd.Tick], cmd)
	if cmd.CommandIndex >= l.nextIdx[cmd.Tick] {
		l.nextIdx[cmd.Tick] = cmd.CommandIndex + 1
	}
}

// ForTick returns the commands recorded for tick, in command_index order.
func (l *Log) ForTick(tick uint64) []SimCommand {
	return l.buckets[tick]
}

// Ticks returns the ticks that have at least one recorded command, in the
// order they were first appended. This is not necessarily ascending tick
// order: Append accepts ticks in any order.
func (l *Log) Ticks() []uint64 {
	out := make([]uint64, len(l.ticks))
	copy(out, l.ticks)
	return out
}

// Len returns the total number of recorded commands across all ticks.
func (l *Log) Len() int {
	n := 0
	for _, b := range l.buckets {
		n += len(b)
	}
	return n
}

// snapshot is the flat serializable record: one entry per command,
// preserving insertion order via the parallel tick/ticks bookkeeping.
type snapshot struct {
	Entries []SimCommand `json:"entries"`
}

// MarshalJSON serializes the log as a flat, append-ordered list of commands.
func (l *Log) MarshalJSON() ([]byte, error) {
	entries := make([]SimCommand, 0, l.Len())
	for _, tick := range l.ticks {
		entries = append(entries, l.buckets[tick]...)
	}
	if entries == nil {
		entries = []SimCommand{}
	}
	return json.Marshal(snapshot{Entries: entries})
}

// UnmarshalJSON rebuilds the log from a flat entry list, preserving each
// command's tick/command_index and advancing per-tick counters accordingly.
func (l *Log) UnmarshalJSON(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("commandlog: decode: %w", err)
	}
	l.buckets = map[uint64][]SimCommand{}
	l.nextIdx = map[uint64]uint64{}
	l.ticks = nil
	for _, cmd := range snap.Entries {
		l.AppendRaw(cmd)
	}
	return nil
}
