package world

import (
	"fmt"
	"sort"
)

// SpaceRole classifies a space independent of its topology. Role gates
// tactical-only behaviors; it is not a proxy for topology (spec §3).
type SpaceRole string

const (
	RoleCampaign SpaceRole = "campaign"
	RoleLocal    SpaceRole = "local"
)

// SiteType tags a hex's point-of-interest, if any.
type SiteType string

const (
	SiteNone    SiteType = "none"
	SiteTown    SiteType = "town"
	SiteDungeon SiteType = "dungeon"
)

// HexRecord is the per-cell payload for a hex_axial space.
type HexRecord struct {
	TerrainType string                 `json:"terrain_type"`
	SiteType    SiteType               `json:"site_type"`
	Metadata    map[string]interface{} `json:"metadata"`
}

func newHexRecord() HexRecord {
	return HexRecord{SiteType: SiteNone, Metadata: map[string]interface{}{}}
}

// Door connects two cells within a space (or across spaces, for transition
// doors) with an optional lock state.
type Door struct {
	ID       string  `json:"id"`
	FromKey  string  `json:"from_key"`
	ToKey    string  `json:"to_key"`
	ToSpace  string  `json:"to_space,omitempty"`
	Locked   bool    `json:"locked"`
}

// Anchor is a named reference point in a space (e.g. a spawn point).
type Anchor struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Interactable is a static, non-entity object a cell can carry (a lever, a
// sign, a shrine).
type Interactable struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Kind string `json:"kind"`
}

// TopologyParams carries shape parameters for a space's topology (e.g.
// hex_disk radius). It is opaque beyond the keys the space constructor reads.
type TopologyParams map[string]interface{}

// SpaceState is a named topological region with its own cell set.
type SpaceState struct {
	SpaceID        string         `json:"space_id"`
	Role           SpaceRole      `json:"role"`
	TopologyType   TopologyType   `json:"topology_type"`
	TopologyParams TopologyParams `json:"topology_params"`

	// Cells is keyed by Coord.Key(TopologyType).
	Cells         map[string]HexRecord    `json:"cells"`
	Doors         []Door                  `json:"doors"`
	Anchors       []Anchor                `json:"anchors"`
	Interactables []Interactable          `json:"interactables"`
}

// NewSpace constructs an empty space of the given topology.
func NewSpace(spaceID string, role SpaceRole, topo TopologyType, params TopologyParams) *SpaceState {
	if params == nil {
		params = TopologyParams{}
	}
	return &SpaceState{
		SpaceID:        spaceID,
		Role:           role,
		TopologyType:   topo,
		TopologyParams: params,
		Cells:          map[string]HexRecord{},
		Doors:          []Door{},
		Anchors:        []Anchor{},
		Interactables:  []Interactable{},
	}
}

// Normalize replaces any nil collections with empty ones, so save round
// trips and absent-vs-empty hashing stay stable regardless of how the space
// was constructed or decoded.
func (s *SpaceState) Normalize() {
	if s.Cells == nil {
		s.Cells = map[string]HexRecord{}
	}
	if s.TopologyParams == nil {
		s.TopologyParams = TopologyParams{}
	}
	if s.Doors == nil {
		s.Doors = []Door{}
	}
	if s.Anchors == nil {
		s.Anchors = []Anchor{}
	}
	if s.Interactables == nil {
		s.Interactables = []Interactable{}
	}
}

// HasCell reports whether coord names a cell that exists in this space.
func (s *SpaceState) HasCell(coord Coord) bool {
	_, ok := s.Cells[coord.Key(s.TopologyType)]
	return ok
}

// SetCell inserts or replaces the record at coord.
func (s *SpaceState) SetCell(coord Coord, rec HexRecord) {
	if rec.Metadata == nil {
		rec.Metadata = map[string]interface{}{}
	}
	s.Cells[coord.Key(s.TopologyType)] = rec
}

// GenerateHexDisk populates a hex_axial space with a filled disk of the given
// radius around the origin, each cell defaulted to plains terrain.
func GenerateHexDisk(s *SpaceState, radius int32) error {
	if s.TopologyType != TopologyHexAxial {
		return fmt.Errorf("world: GenerateHexDisk requires hex_axial topology, got %s", s.TopologyType)
	}
	for q := -radius; q <= radius; q++ {
		r1 := maxInt32(-radius, -q-radius)
		r2 := minInt32(radius, -q+radius)
		for r := r1; r <= r2; r++ {
			s.SetCell(Coord{Hex: HexCoord{Q: q, R: r}}, newHexRecord())
		}
	}
	return nil
}

// GenerateSquareGrid populates a square_grid space with a w x h rectangle of
// cells starting at (0,0).
func GenerateSquareGrid(s *SpaceState, w, h int32) error {
	if s.TopologyType != TopologySquareGrid {
		return fmt.Errorf("world: GenerateSquareGrid requires square_grid topology, got %s", s.TopologyType)
	}
	for x := int32(0); x < w; x++ {
		for y := int32(0); y < h; y++ {
			s.SetCell(Coord{Square: SquareCoord{X: x, Y: y}}, newHexRecord())
		}
	}
	return nil
}

// SortedCellKeys returns the space's cell keys in stable sorted order, used
// wherever deterministic iteration over cells is required.
func (s *SpaceState) SortedCellKeys() []string {
	keys := make([]string, 0, len(s.Cells))
	for k := range s.Cells {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func maxInt32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func minInt32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}
