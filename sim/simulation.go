// Package sim binds components 1-9 (RNG streams, canonical codec, world
// state, event queue, command log, rules-state, event trace, rule module
// registry, periodic scheduler) and drives the authoritative tick phase
// machine (spec §4.9, §6). Grounded on the teacher's OCPApp: a single
// mutex-guarded authoritative state struct, advanced one unit at a time,
// with the same state-at-start-of-operation rollback discipline FinalizeBlock
// gives a failed block.
package sim

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/7seasdotnet/hexcrawler/canon"
	"github.com/7seasdotnet/hexcrawler/commandlog"
	"github.com/7seasdotnet/hexcrawler/internal/logging"
	"github.com/7seasdotnet/hexcrawler/periodic"
	"github.com/7seasdotnet/hexcrawler/queue"
	"github.com/7seasdotnet/hexcrawler/registry"
	"github.com/7seasdotnet/hexcrawler/rng"
	"github.com/7seasdotnet/hexcrawler/rulesstate"
	"github.com/7seasdotnet/hexcrawler/simerr"
	"github.com/7seasdotnet/hexcrawler/trace"
	"github.com/7seasdotnet/hexcrawler/world"
)

// SchemaVersion is the canonical save payload's current schema_version
// (spec §4.10).
const SchemaVersion = 1

// Reserved command types the substrate executes directly.
const (
	CmdSetEntityMoveVector     = "set_entity_move_vector"
	CmdSetEntityTargetPosition = "set_entity_target_position"
	CmdTransitionSpace         = "transition_space"
)

// Simulation is the authoritative owner of every substrate component. The
// phase machine (AdvanceTicks/AdvanceDays) is the only path that executes
// commands and events, steps entities, and advances the clock; the other
// mutating methods append commands, schedule or cancel events, store
// rules-state, or set the day length.
type Simulation struct {
	mu sync.Mutex

	masterSeed int64
	time       SimulationTime

	world      *world.World
	queue      *queue.Queue
	commands   *commandlog.Log
	rulesState *rulesstate.Store
	eventTrace *trace.Trace
	registry   *registry.Registry
	periodic   *periodic.Scheduler

	rngGenerators map[string]*rng.Generator

	log *logrus.Logger
}

// NewWithSeedAndTopology constructs a fresh simulation: an empty world of
// the given topology, all substrate components initialized, and the
// built-in periodic scheduler registered as the first rule module (spec
// §4.8: "a built-in rule module").
func NewWithSeedAndTopology(masterSeed int64, topo world.TopologyType, params world.TopologyParams) (*Simulation, error) {
	w, err := world.NewWithSeedAndTopology(topo, params)
	if err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}
	q := queue.New(0)
	s := &Simulation{
		masterSeed:    masterSeed,
		time:          NewSimulationTime(),
		world:         w,
		queue:         q,
		commands:      commandlog.New(),
		rulesState:    rulesstate.New(),
		eventTrace:    trace.New(),
		registry:      registry.New(),
		periodic:      periodic.New(q),
		rngGenerators: map[string]*rng.Generator{},
		log:           logging.New(false),
	}
	if err := s.registry.Register(s.periodic); err != nil {
		return nil, fmt.Errorf("sim: register periodic scheduler: %w", err)
	}
	if err := s.registry.FireSimulationStart(); err != nil {
		return nil, fmt.Errorf("sim: OnSimulationStart: %w", err)
	}
	return s, nil
}

// RegisterRuleModule inserts m at the end of the module registry. Fails
// with simerr.DuplicateModule on a name collision.
func (s *Simulation) RegisterRuleModule(m registry.Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Register(m)
}

// GetRuleModule returns the named module, or nil if unregistered.
func (s *Simulation) GetRuleModule(name string) registry.Module {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Get(name)
}

// Periodic returns the built-in periodic scheduler, so callers can
// RegisterTask/SetTaskCallback on it directly (spec §4.8).
func (s *Simulation) Periodic() *periodic.Scheduler {
	return s.periodic
}

// RngStream returns the stable generator for name, deriving and caching it
// from the master seed on first use (spec §4.1). The same *Generator is
// returned on every call so repeated draws accumulate correctly.
func (s *Simulation) RngStream(name string) *rng.Generator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rngStreamLocked(name)
}

func (s *Simulation) rngStreamLocked(name string) *rng.Generator {
	if g, ok := s.rngGenerators[name]; ok {
		return g
	}
	g := rng.New(s.masterSeed, name)
	s.rngGenerators[name] = g
	return g
}

// GetRulesState returns a deep copy of module's stored state.
func (s *Simulation) GetRulesState(module string) (canon.Value, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rulesState.Get(module)
}

// SetRulesState validates and stores value under module.
func (s *Simulation) SetRulesState(module string, value canon.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rulesState.Set(module, value)
}

// GetEventTrace returns a deep copy of the bounded event trace.
func (s *Simulation) GetEventTrace() ([]trace.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventTrace.Entries()
}

// AppendCommand appends cmd to the command log, to be applied during its
// tick's command phase. entityID may be empty for commands with no acting
// entity (spec §3's `entity_id: string|null`).
func (s *Simulation) AppendCommand(tick uint64, entityID, commandType string, params canon.Value) (commandlog.SimCommand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commands.Append(tick, commandType, entityID, params)
}

// ScheduleEvent assigns an event id and enqueues an event for tick.
func (s *Simulation) ScheduleEvent(tick uint64, eventType string, params canon.Value) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Schedule(tick, eventType, params)
}

// CancelEvent removes a pending event by id.
func (s *Simulation) CancelEvent(eventID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Cancel(eventID)
}

// World returns the authoritative world state. Callers outside a rule
// module hook should treat it as read-only; the phase machine is the only
// sanctioned mutator (spec §5).
func (s *Simulation) World() *world.World {
	return s.world
}

// Time returns the current simulation clock.
func (s *Simulation) Time() SimulationTime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.time
}

// SetTicksPerDay overrides the clock's day length. Intended for use right
// after construction, before any tick has advanced; changing it mid-run
// changes DayIndex/TickInDay's meaning for ticks already elapsed.
func (s *Simulation) SetTicksPerDay(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n == 0 {
		n = DefaultTicksPerDay
	}
	s.time.TicksPerDay = n
}

// SetLogger overrides the simulation's structured logger, propagating it to
// the rule module registry so a single --verbose flag controls both the
// phase machine's and every module's logging (spec §2A).
func (s *Simulation) SetLogger(log *logrus.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = log
	s.registry.SetLogger(log)
}

// AdvanceTicks runs the phase machine n times. A fatal error aborts the
// tick in which it occurred without partial mutation: state reverts to
// exactly what it was at the start of that tick, and no further ticks run.
func (s *Simulation) AdvanceTicks(n uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := uint64(0); i < n; i++ {
		if err := s.runOneTickLocked(); err != nil {
			return err
		}
	}
	return nil
}

// AdvanceDays runs AdvanceTicks(n * ticks_per_day).
func (s *Simulation) AdvanceDays(n uint64) error {
	s.mu.Lock()
	ticksPerDay := s.time.TicksPerDay
	s.mu.Unlock()
	return s.AdvanceTicks(n * ticksPerDay)
}

func (s *Simulation) runOneTickLocked() error {
	T := s.time.Tick
	s.log.WithField("tick", T).Debug("tick start")
	snap, err := s.takeSnapshot()
	if err != nil {
		return fmt.Errorf("sim: snapshot tick %d: %w", T, err)
	}
	if err := s.runTickPhases(T); err != nil {
		s.log.WithField("tick", T).WithError(err).Error("tick failed, rolling back to pre-tick snapshot")
		if restoreErr := s.restoreSnapshot(snap); restoreErr != nil {
			return fmt.Errorf("sim: tick %d failed (%v) and snapshot restore also failed: %w", T, err, restoreErr)
		}
		return err
	}
	s.log.WithField("tick", T).Debug("tick end")
	s.time.Tick = T + 1
	return nil
}

func (s *Simulation) runTickPhases(T uint64) error {
	s.queue.BeginTick(T)
	defer s.queue.EndTick()

	// Phase 1.
	if err := s.registry.FireTickStart(T); err != nil {
		return err
	}

	// Phase 2: apply the tick's commands in stored insertion order.
	for _, cmd := range s.commands.ForTick(T) {
		if err := s.applyCommand(T, cmd); err != nil {
			return err
		}
	}

	// Phase 3: drain-until-empty execution of tick-T events.
	executed := 0
	for {
		tk, ok := s.queue.PeekTick()
		if !ok || tk != T {
			break
		}
		ev, _ := s.queue.Pop()
		executed++
		if executed > queue.MaxEventsPerTick {
			err := simerr.New(simerr.RunawayEventFanout,
				fmt.Sprintf("tick %d scheduled more than %d same-tick events", T, queue.MaxEventsPerTick))
			s.log.WithField("tick", T).WithField("event_id", ev.EventID).WithError(err).Error("runaway same-tick event fanout")
			return err
		}
		s.log.WithField("tick", T).WithField("event_id", ev.EventID).WithField("event_type", ev.EventType).Debug("event executed")
		if err := s.registry.FireEventExecuted(registry.EventExecution{
			Tick: T, EventID: ev.EventID, EventType: ev.EventType, Params: ev.Params,
		}); err != nil {
			return err
		}
		if err := s.eventTrace.Record(trace.Entry{Tick: T, EventID: ev.EventID, EventType: ev.EventType, Outcome: ev.Params}); err != nil {
			return err
		}
	}

	// Phase 4: entity updates, emitting travel_step for every hex crossing.
	for _, step := range s.world.StepEntities(T) {
		params := canon.Object(map[string]canon.Value{
			"tick":          canon.Int(int64(step.Tick)),
			"entity_id":     canon.String(step.EntityID),
			"location_from": canon.String(step.LocationFrom.Key()),
			"location_to":   canon.String(step.LocationTo.Key()),
		})
		if err := s.registry.FireEventExecuted(registry.EventExecution{
			Tick: T, EventType: "travel_step", Params: params,
		}); err != nil {
			return err
		}
		if err := s.eventTrace.Record(trace.Entry{Tick: T, EventType: "travel_step", Outcome: params}); err != nil {
			return err
		}
	}

	// Phase 5.
	if err := s.registry.FireTickEnd(T); err != nil {
		return err
	}
	if err := s.world.ValidateInvariants(); err != nil {
		return fmt.Errorf("sim: tick %d: %w", T, err)
	}

	// Phase 6 (tick increment) happens in runOneTickLocked on success.
	return nil
}

// applyCommand executes one command during phase 2. Reserved command types
// are executed directly by the substrate; structural failures (unknown
// entity, invalid destination cell) are fatal, matching spec §4.9's
// "structural invariant violations ... are fatal and abort the tick".
// Module-owned command types are validated structurally (params must be a
// JSON object) and, if valid, promoted to a same-tick event of the same
// type and params so rule modules observe them generically through
// on_event_executed — this is the substrate's "command's execution may
// schedule_event(T, …)" behavior for anything it does not itself interpret.
// A structural validation failure on a module-owned command is non-fatal:
// it is recorded to the event trace as a forensic outcome and nothing else
// in that tick is affected.
func (s *Simulation) applyCommand(T uint64, cmd commandlog.SimCommand) error {
	switch cmd.CommandType {
	case CmdSetEntityMoveVector:
		x, y, ok := xyParams(cmd.Params)
		if !ok {
			return s.recordRejectedCommand(T, cmd, "params must be {x, y}")
		}
		if err := s.world.SetEntityMoveVector(cmd.EntityID, world.Vector2{X: x, Y: y}); err != nil {
			return err
		}
	case CmdSetEntityTargetPosition:
		x, y, ok := xyParams(cmd.Params)
		if !ok {
			return s.recordRejectedCommand(T, cmd, "params must be {x, y}")
		}
		if err := s.world.SetEntityTargetPosition(cmd.EntityID, world.Vector2{X: x, Y: y}); err != nil {
			return err
		}
	case CmdTransitionSpace:
		toSpace, x, y, ok := transitionParams(cmd.Params)
		if !ok {
			return s.recordRejectedCommand(T, cmd, "params must be {to_space, x, y}")
		}
		if err := s.world.TransitionSpace(cmd.EntityID, toSpace, world.Vector2{X: x, Y: y}); err != nil {
			return err
		}
	default:
		if cmd.Params.Kind() != canon.KindObject {
			return s.recordRejectedCommand(T, cmd, "params must be a JSON object")
		}
		if _, err := s.queue.Schedule(T, cmd.CommandType, cmd.Params); err != nil {
			return fmt.Errorf("sim: promote command %q to event: %w", cmd.CommandType, err)
		}
	}
	return nil
}

func (s *Simulation) recordRejectedCommand(T uint64, cmd commandlog.SimCommand, reason string) error {
	outcome := canon.Object(map[string]canon.Value{
		"command_type":  canon.String(cmd.CommandType),
		"command_index": canon.Int(int64(cmd.CommandIndex)),
		"reason":        canon.String(reason),
	})
	return s.eventTrace.Record(trace.Entry{Tick: T, EventType: "command_rejected", Outcome: outcome})
}

func xyParams(v canon.Value) (x, y float64, ok bool) {
	obj, isObj := v.Object()
	if !isObj {
		return 0, 0, false
	}
	xf, xok := numberOf(obj["x"])
	yf, yok := numberOf(obj["y"])
	if !xok || !yok {
		return 0, 0, false
	}
	return xf, yf, true
}

func transitionParams(v canon.Value) (toSpace string, x, y float64, ok bool) {
	obj, isObj := v.Object()
	if !isObj {
		return "", 0, 0, false
	}
	toSpaceV, hasSpace := obj["to_space"]
	if !hasSpace {
		return "", 0, 0, false
	}
	toSpaceS, isStr := toSpaceV.String()
	if !isStr {
		return "", 0, 0, false
	}
	xf, xok := numberOf(obj["x"])
	yf, yok := numberOf(obj["y"])
	if !xok || !yok {
		return "", 0, 0, false
	}
	return toSpaceS, xf, yf, true
}

func numberOf(v canon.Value) (float64, bool) {
	if f, ok := v.Float(); ok {
		return f, true
	}
	if i, ok := v.Int(); ok {
		return float64(i), true
	}
	return 0, false
}

// SimulationHash returns the canonical hash of the current simulation state
// (the glossary's "canonical hash": SHA-256 of the canonical encoding of
// the {schema_version, world_state, simulation_state, input_log} payload).
func (s *Simulation) SimulationHash() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hashLocked()
}

func (s *Simulation) hashLocked() (string, error) {
	payload, err := s.hashPayloadLocked()
	if err != nil {
		return "", err
	}
	return canon.HashJSON(payload)
}

type hashPayload struct {
	SchemaVersion   int             `json:"schema_version"`
	WorldState      *world.World    `json:"world_state"`
	SimulationState simStateDoc     `json:"simulation_state"`
	InputLog        *commandlog.Log `json:"input_log"`
}

type rngStreamDoc struct {
	Name  string `json:"name"`
	State uint64 `json:"state"`
}

type simStateDoc struct {
	Time       SimulationTime    `json:"time"`
	MasterSeed int64             `json:"master_seed"`
	RNGStreams []rngStreamDoc    `json:"rng_streams"`
	EventQueue *queue.Queue      `json:"event_queue"`
	RulesState *rulesstate.Store `json:"rules_state"`
	EventTrace *trace.Trace      `json:"event_trace"`
}

func (s *Simulation) hashPayloadLocked() (hashPayload, error) {
	return hashPayload{
		SchemaVersion:   SchemaVersion,
		WorldState:      s.world,
		SimulationState: s.simStateDocLocked(),
		InputLog:        s.commands,
	}, nil
}

func (s *Simulation) simStateDocLocked() simStateDoc {
	names := make([]string, 0, len(s.rngGenerators))
	for n := range s.rngGenerators {
		names = append(names, n)
	}
	sort.Strings(names)
	streams := make([]rngStreamDoc, 0, len(names))
	for _, n := range names {
		streams = append(streams, rngStreamDoc{Name: n, State: s.rngGenerators[n].State()})
	}
	return simStateDoc{
		Time:       s.time,
		MasterSeed: s.masterSeed,
		RNGStreams: streams,
		EventQueue: s.queue,
		RulesState: s.rulesState,
		EventTrace: s.eventTrace,
	}
}

// tickSnapshot is a point-in-time copy of every component the tick phase
// machine can mutate, used to restore exact pre-tick state on a fatal error.
type tickSnapshot struct {
	worldJSON   []byte
	queueJSON   []byte
	rulesJSON   []byte
	traceJSON   []byte
	rngStates   map[string]uint64
}

func (s *Simulation) takeSnapshot() (tickSnapshot, error) {
	var snap tickSnapshot
	var err error
	if snap.worldJSON, err = json.Marshal(s.world); err != nil {
		return snap, fmt.Errorf("marshal world: %w", err)
	}
	if snap.queueJSON, err = json.Marshal(s.queue); err != nil {
		return snap, fmt.Errorf("marshal queue: %w", err)
	}
	if snap.rulesJSON, err = json.Marshal(s.rulesState); err != nil {
		return snap, fmt.Errorf("marshal rules state: %w", err)
	}
	if snap.traceJSON, err = json.Marshal(s.eventTrace); err != nil {
		return snap, fmt.Errorf("marshal event trace: %w", err)
	}
	snap.rngStates = make(map[string]uint64, len(s.rngGenerators))
	for name, g := range s.rngGenerators {
		snap.rngStates[name] = g.State()
	}
	return snap, nil
}

func (s *Simulation) restoreSnapshot(snap tickSnapshot) error {
	newWorld := &world.World{}
	if err := json.Unmarshal(snap.worldJSON, newWorld); err != nil {
		return fmt.Errorf("unmarshal world: %w", err)
	}
	newWorld.Normalize()
	s.world = newWorld

	if err := json.Unmarshal(snap.queueJSON, s.queue); err != nil {
		return fmt.Errorf("unmarshal queue: %w", err)
	}
	if err := json.Unmarshal(snap.rulesJSON, s.rulesState); err != nil {
		return fmt.Errorf("unmarshal rules state: %w", err)
	}
	if err := json.Unmarshal(snap.traceJSON, s.eventTrace); err != nil {
		return fmt.Errorf("unmarshal event trace: %w", err)
	}
	s.rngGenerators = make(map[string]*rng.Generator, len(snap.rngStates))
	for name, state := range snap.rngStates {
		s.rngGenerators[name] = rng.FromState(name, state)
	}
	return nil
}
