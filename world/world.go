// Package world holds the keyed container of spaces, cells, entities and
// world-owned ledgers: the authoritative game-world half of simulation_state
// (spec §3, component 3).
package world

import (
	"fmt"
	"sort"
)

// World is the exclusive-owner container of everything spatial: spaces,
// entities, and the bounded world ledgers. It is mutated only by the
// simulation's tick phase machine (spec §5); rule modules never hold a
// reference to it outside their hook calls.
type World struct {
	Spaces    map[string]*SpaceState `json:"spaces"`
	Entities  map[string]*Entity     `json:"entities"`
	Containers map[string]*Container `json:"containers"`
	Ledgers   *Ledgers               `json:"ledgers"`
}

// NewWithSeedAndTopology constructs a new world with a single default space
// of the given topology, mirroring Simulation::new_with_seed_and_topology's
// world half (spec §6). The master seed has no bearing on world layout
// (layout is deterministic content, not randomness), so it is not a
// parameter here; the Simulation constructor keeps it.
func NewWithSeedAndTopology(topo TopologyType, params TopologyParams) (*World, error) {
	w := &World{
		Spaces:     map[string]*SpaceState{},
		Entities:   map[string]*Entity{},
		Containers: map[string]*Container{},
		Ledgers:    NewLedgers(),
	}
	space := NewSpace(DefaultSpaceID, RoleCampaign, topo, params)
	switch topo {
	case TopologyHexAxial:
		radius := int32(4)
		if v, ok := params["radius"]; ok {
			if f, ok := toFloat(v); ok {
				radius = int32(f)
			}
		}
		if err := GenerateHexDisk(space, radius); err != nil {
			return nil, err
		}
	case TopologySquareGrid:
		w1, h1 := int32(16), int32(16)
		if v, ok := params["width"]; ok {
			if f, ok := toFloat(v); ok {
				w1 = int32(f)
			}
		}
		if v, ok := params["height"]; ok {
			if f, ok := toFloat(v); ok {
				h1 = int32(f)
			}
		}
		if err := GenerateSquareGrid(space, w1, h1); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("world: unknown topology_type %q", topo)
	}
	w.Spaces[space.SpaceID] = space
	return w, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	}
	return 0, false
}

// Normalize walks the whole world replacing nil collections with empty ones;
// called after decoding a save payload so absent and empty always converge.
func (w *World) Normalize() {
	if w.Spaces == nil {
		w.Spaces = map[string]*SpaceState{}
	}
	if w.Entities == nil {
		w.Entities = map[string]*Entity{}
	}
	if w.Containers == nil {
		w.Containers = map[string]*Container{}
	}
	if w.Ledgers == nil {
		w.Ledgers = NewLedgers()
	}
	for _, s := range w.Spaces {
		s.Normalize()
	}
	for _, e := range w.Entities {
		e.Normalize()
	}
	for _, c := range w.Containers {
		c.Normalize()
	}
	w.Ledgers.Normalize()
}

// Space returns the named space, or nil if it doesn't exist.
func (w *World) Space(spaceID string) *SpaceState {
	return w.Spaces[spaceID]
}

// AddSpace registers a new space, erroring if one already exists under that id.
func (w *World) AddSpace(s *SpaceState) error {
	if _, exists := w.Spaces[s.SpaceID]; exists {
		return fmt.Errorf("world: space %q already exists", s.SpaceID)
	}
	s.Normalize()
	w.Spaces[s.SpaceID] = s
	return nil
}

// Entity returns the named entity, or nil if it doesn't exist.
func (w *World) Entity(id string) *Entity {
	return w.Entities[id]
}

// AddEntity registers a new entity, erroring if the id is taken or the
// entity's space/container references are invalid (spec §3 invariants).
func (w *World) AddEntity(e *Entity) error {
	if _, exists := w.Entities[e.ID]; exists {
		return fmt.Errorf("world: entity %q already exists", e.ID)
	}
	e.Normalize()
	if err := w.ValidateEntityPlacement(e); err != nil {
		return err
	}
	w.Entities[e.ID] = e
	return nil
}

// RemoveEntity deletes an entity by id. It is a no-op if absent.
func (w *World) RemoveEntity(id string) {
	delete(w.Entities, id)
}

// Container returns the named container, or nil if it doesn't exist.
func (w *World) Container(id string) *Container {
	return w.Containers[id]
}

// AddContainer registers a new container.
func (w *World) AddContainer(c *Container) error {
	if _, exists := w.Containers[c.ID]; exists {
		return fmt.Errorf("world: container %q already exists", c.ID)
	}
	c.Normalize()
	w.Containers[c.ID] = c
	return nil
}

// ValidateEntityPlacement checks the two structural invariants that must
// hold for any entity at all times (spec §3): its space exists, its position
// maps to a valid cell in that space, and (if set) its inventory container
// exists.
func (w *World) ValidateEntityPlacement(e *Entity) error {
	sp, ok := w.Spaces[e.SpaceID]
	if !ok {
		return fmt.Errorf("world: entity %q references unknown space %q", e.ID, e.SpaceID)
	}
	coord := Coord{Hex: e.HexCoordOf()}
	if sp.TopologyType == TopologySquareGrid {
		coord = Coord{Square: SquareCoord{X: int32(e.Position.X), Y: int32(e.Position.Y)}}
	}
	if !sp.HasCell(coord) {
		return fmt.Errorf("world: entity %q position does not map to a valid cell in space %q", e.ID, e.SpaceID)
	}
	if e.InventoryContainerID != "" {
		if _, ok := w.Containers[e.InventoryContainerID]; !ok {
			return fmt.Errorf("world: entity %q references unknown container %q", e.ID, e.InventoryContainerID)
		}
	}
	return nil
}

// ValidateInvariants re-checks every always-hold invariant in spec §3 across
// the whole world. It is called at tick boundaries by the simulation so a
// structural violation aborts the tick cleanly rather than surfacing later
// as a panic or silent corruption.
func (w *World) ValidateInvariants() error {
	for _, e := range w.Entities {
		if err := w.ValidateEntityPlacement(e); err != nil {
			return err
		}
		if len(e.Wounds) > MaxWounds {
			return fmt.Errorf("world: entity %q exceeds MaxWounds (%d > %d)", e.ID, len(e.Wounds), MaxWounds)
		}
	}
	if len(w.Ledgers.Signals) > MaxSignals ||
		len(w.Ledgers.Tracks) > MaxTracks ||
		len(w.Ledgers.Rumors) > MaxRumors ||
		len(w.Ledgers.SpawnDescriptors) > MaxSpawnDescriptors ||
		len(w.Ledgers.OcclusionEdges) > MaxOcclusionEdges {
		return fmt.Errorf("world: a bounded ledger exceeds its cap")
	}
	return nil
}

// SetEntityMoveVector implements the substrate-reserved
// `set_entity_move_vector` command: replaces an entity's move vector
// outright (clearing any active target-seek, since the two modes are
// mutually exclusive per spec §4.9 phase 4).
func (w *World) SetEntityMoveVector(entityID string, mv Vector2) error {
	e, ok := w.Entities[entityID]
	if !ok {
		return fmt.Errorf("world: unknown entity %q", entityID)
	}
	e.MoveVector = mv
	e.TargetPosition = nil
	return nil
}

// SetEntityTargetPosition implements the substrate-reserved
// `set_entity_target_position` command: entity seeks toward target at the
// speed given by its current move vector's magnitude.
func (w *World) SetEntityTargetPosition(entityID string, target Vector2) error {
	e, ok := w.Entities[entityID]
	if !ok {
		return fmt.Errorf("world: unknown entity %q", entityID)
	}
	e.TargetPosition = &target
	return nil
}

// TransitionSpace implements the substrate-reserved `transition_space`
// command: moves an entity to a new space and position, validating the
// destination before mutating anything (spec §4.9's fatal-vs-non-fatal
// split: an invalid destination must not partially move the entity).
func (w *World) TransitionSpace(entityID, toSpaceID string, toPosition Vector2) error {
	e, ok := w.Entities[entityID]
	if !ok {
		return fmt.Errorf("world: unknown entity %q", entityID)
	}
	sp, ok := w.Spaces[toSpaceID]
	if !ok {
		return fmt.Errorf("world: unknown destination space %q", toSpaceID)
	}
	trial := &Entity{ID: e.ID, SpaceID: toSpaceID, Position: toPosition}
	coord := Coord{Hex: trial.HexCoordOf()}
	if sp.TopologyType == TopologySquareGrid {
		coord = Coord{Square: SquareCoord{X: int32(toPosition.X), Y: int32(toPosition.Y)}}
	}
	if !sp.HasCell(coord) {
		return fmt.Errorf("world: destination position does not map to a valid cell in space %q", toSpaceID)
	}
	e.SpaceID = toSpaceID
	e.Position = toPosition
	e.MoveVector = Vector2{}
	e.TargetPosition = nil
	return nil
}

// SortedEntityIDs returns entity ids in stable ascending order, used by the
// phase machine's entity-update phase (spec §4.9 phase 4: "for each entity
// in sorted id order").
func (w *World) SortedEntityIDs() []string {
	ids := make([]string, 0, len(w.Entities))
	for id := range w.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
