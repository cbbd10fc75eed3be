package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

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

// loadLog is used for load-path failures, which happen before any
// Simulation (and therefore any instance logger) exists.
var loadLog = logging.New(false)

// SavePayload is the canonical save file's top-level shape (spec §4.10).
// SaveHash covers schema_version, world_state, simulation_state and
// input_log; Metadata is caller-supplied, not hash-covered, and never
// interpreted by the substrate.
type SavePayload struct {
	SchemaVersion   int             `json:"schema_version"`
	SaveHash        string          `json:"save_hash"`
	WorldState      *world.World    `json:"world_state"`
	SimulationState simStateDoc     `json:"simulation_state"`
	InputLog        *commandlog.Log `json:"input_log"`
	Metadata        canon.Value     `json:"metadata,omitempty"`
}

// hashableSavePayload is SavePayload minus save_hash, which cannot cover
// itself, and minus metadata, which is not hash-covered.
type hashableSavePayload struct {
	SchemaVersion   int             `json:"schema_version"`
	WorldState      *world.World    `json:"world_state"`
	SimulationState simStateDoc     `json:"simulation_state"`
	InputLog        *commandlog.Log `json:"input_log"`
}

// legacyWorldPayload is the shape of a pre-simulation, world-only save
// (spec §4.10: "Legacy world-only payloads ... remain loadable as world
// templates but produce no Simulation").
type legacyWorldPayload struct {
	SchemaVersion int          `json:"schema_version"`
	WorldHash     string       `json:"world_hash"`
	WorldState    *world.World `json:"world_state"`
}

// SaveGame writes the current simulation state to path using the
// create-temp-then-rename discipline: the old file (if any) is left intact
// until the new one is fully written and synced (spec §6, §7 "save failures
// leave the old file intact").
func (s *Simulation) SaveGame(path string, metadata canon.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if metadata.IsNull() {
		metadata = canon.Object(nil)
	}
	if err := metadata.Validate(); err != nil {
		return simerr.Wrap(simerr.SchemaInvalid, "save metadata not JSON-safe", err)
	}

	hashable := hashableSavePayload{
		SchemaVersion:   SchemaVersion,
		WorldState:      s.world,
		SimulationState: s.simStateDocLocked(),
		InputLog:        s.commands,
	}
	hash, err := canon.HashJSON(hashable)
	if err != nil {
		return fmt.Errorf("sim: hash save payload: %w", err)
	}

	full := SavePayload{
		SchemaVersion:   hashable.SchemaVersion,
		SaveHash:        hash,
		WorldState:      hashable.WorldState,
		SimulationState: hashable.SimulationState,
		InputLog:        hashable.InputLog,
		Metadata:        metadata,
	}
	data, err := json.Marshal(full)
	if err != nil {
		return fmt.Errorf("sim: marshal save payload: %w", err)
	}

	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("sim: create temp save file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("sim: write temp save file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sim: sync temp save file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("sim: close temp save file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("sim: rename temp save file into place: %w", err)
	}
	return nil
}

// LoadGame reads path and reconstructs a full Simulation. It fails fast
// with HashMismatch on any tamper, SchemaVersionUnsupported on an unknown
// schema_version, and SchemaInvalid on structural corruption — in every
// failure case no Simulation is produced (spec §7: "Load failures leave the
// simulation unconstructed").
func LoadGame(path string) (*Simulation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sim: read save file: %w", err)
	}

	var probe struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, simerr.Wrap(simerr.SchemaInvalid, "save file is not valid JSON", err)
	}
	if probe.SchemaVersion != SchemaVersion {
		err := simerr.New(simerr.SchemaVersionUnsupported,
			fmt.Sprintf("save schema_version %d is not supported (want %d)", probe.SchemaVersion, SchemaVersion))
		loadLog.WithField("path", path).WithError(err).Error("load rejected: unsupported schema_version")
		return nil, err
	}

	var full SavePayload
	if err := json.Unmarshal(data, &full); err != nil {
		err := simerr.Wrap(simerr.SchemaInvalid, "save payload structurally invalid", err)
		loadLog.WithField("path", path).WithError(err).Error("load rejected: structurally invalid payload")
		return nil, err
	}
	if full.WorldState == nil {
		err := simerr.New(simerr.SchemaInvalid, "save payload missing world_state")
		loadLog.WithField("path", path).WithError(err).Error("load rejected: missing world_state")
		return nil, err
	}

	hashable := hashableSavePayload{
		SchemaVersion:   full.SchemaVersion,
		WorldState:      full.WorldState,
		SimulationState: full.SimulationState,
		InputLog:        full.InputLog,
	}
	wantHash, err := canon.HashJSON(hashable)
	if err != nil {
		return nil, fmt.Errorf("sim: rehash loaded payload: %w", err)
	}
	if wantHash != full.SaveHash {
		err := simerr.New(simerr.HashMismatch,
			fmt.Sprintf("save_hash mismatch: file says %s, recomputed %s", full.SaveHash, wantHash))
		loadLog.WithField("path", path).WithError(err).Error("load rejected: save_hash mismatch")
		return nil, err
	}

	return rehydrate(full)
}

// LoadWorldTemplate loads path as a world-only template, ignoring any
// simulation_state it may also carry. It accepts both current-schema saves
// (taking only world_state) and legacy world-only payloads
// ({schema_version, world_hash, world_state}) that predate the simulation
// substrate, per spec §4.10. No hash verification is performed: templates
// are a convenience load, not an integrity-checked save.
func LoadWorldTemplate(path string) (*world.World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sim: read world template file: %w", err)
	}
	var legacy legacyWorldPayload
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, simerr.Wrap(simerr.SchemaInvalid, "world template payload structurally invalid", err)
	}
	if legacy.WorldState == nil {
		return nil, simerr.New(simerr.SchemaInvalid, "world template payload missing world_state")
	}
	legacy.WorldState.Normalize()
	return legacy.WorldState, nil
}

func rehydrate(full SavePayload) (*Simulation, error) {
	full.WorldState.Normalize()

	q := queue.New(0)
	if full.SimulationState.EventQueue != nil {
		data, err := json.Marshal(full.SimulationState.EventQueue)
		if err != nil {
			return nil, fmt.Errorf("sim: re-marshal event_queue: %w", err)
		}
		if err := json.Unmarshal(data, q); err != nil {
			return nil, simerr.Wrap(simerr.SchemaInvalid, "event_queue structurally invalid", err)
		}
	}

	rulesState := rulesstate.New()
	if full.SimulationState.RulesState != nil {
		data, err := json.Marshal(full.SimulationState.RulesState)
		if err != nil {
			return nil, fmt.Errorf("sim: re-marshal rules_state: %w", err)
		}
		if err := json.Unmarshal(data, rulesState); err != nil {
			return nil, simerr.Wrap(simerr.SchemaInvalid, "rules_state structurally invalid", err)
		}
	}

	eventTrace := trace.New()
	if full.SimulationState.EventTrace != nil {
		data, err := json.Marshal(full.SimulationState.EventTrace)
		if err != nil {
			return nil, fmt.Errorf("sim: re-marshal event_trace: %w", err)
		}
		if err := json.Unmarshal(data, eventTrace); err != nil {
			return nil, simerr.Wrap(simerr.SchemaInvalid, "event_trace structurally invalid", err)
		}
	}

	commands := commandlog.New()
	if full.InputLog != nil {
		data, err := json.Marshal(full.InputLog)
		if err != nil {
			return nil, fmt.Errorf("sim: re-marshal input_log: %w", err)
		}
		if err := json.Unmarshal(data, commands); err != nil {
			return nil, simerr.Wrap(simerr.SchemaInvalid, "input_log structurally invalid", err)
		}
	}

	rngGenerators := map[string]*rng.Generator{}
	for _, sd := range full.SimulationState.RNGStreams {
		rngGenerators[sd.Name] = rng.FromState(sd.Name, sd.State)
	}

	simTime := full.SimulationState.Time
	simTime.Normalize()

	// Align the restored queue's notion of "now" with the restored clock
	// before any module's OnSimulationStart runs — otherwise a freshly
	// unmarshaled queue believes current_tick is 0 and would silently accept
	// a same-tick scheduling call for a tick far in the past (see
	// queue.SetCurrentTick).
	q.SetCurrentTick(simTime.Tick)

	s := &Simulation{
		time:          simTime,
		masterSeed:    full.SimulationState.MasterSeed,
		world:         full.WorldState,
		queue:         q,
		commands:      commands,
		rulesState:    rulesState,
		eventTrace:    eventTrace,
		registry:      registry.New(),
		rngGenerators: rngGenerators,
		log:           logging.New(false),
	}
	s.periodic = periodic.New(q)
	if err := s.registry.Register(s.periodic); err != nil {
		return nil, fmt.Errorf("sim: register periodic scheduler on load: %w", err)
	}
	// OnSimulationStart lets the periodic scheduler reconstruct task
	// metadata from the restored queue without re-deriving or duplicating
	// it (spec §8: "Rehydration idempotence" / "Periodic rehydration").
	if err := s.registry.FireSimulationStart(); err != nil {
		return nil, fmt.Errorf("sim: OnSimulationStart on load: %w", err)
	}
	return s, nil
}
