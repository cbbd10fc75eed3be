package world

// WoundRecord is one entry in an entity's bounded wound ledger.
type WoundRecord struct {
	Region        string   `json:"region"`
	Severity      int32    `json:"severity"`
	Tags          []string `json:"tags"`
	InflictedTick uint64   `json:"inflicted_tick"`
	Source        string   `json:"source,omitempty"`
}

// MaxWounds bounds an entity's wound ledger; oldest entries evict first.
const MaxWounds = 16

// Vector2 is a float position/velocity pair.
type Vector2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Entity is a mobile actor in the world: a PC, NPC, monster, or vehicle.
type Entity struct {
	ID       string `json:"id"`
	SpaceID  string `json:"space_id"`
	Position Vector2 `json:"position"`
	Facing   float64 `json:"facing"`

	MoveVector     Vector2  `json:"move_vector"`
	TargetPosition *Vector2 `json:"target_position,omitempty"`

	InventoryContainerID string `json:"inventory_container_id,omitempty"`

	// Stats is an open integer ledger (mirrors the teacher's
	// Accounts map[string]uint64 pattern) so rule modules can introduce new
	// stat keys without a substrate schema change.
	Stats map[string]int64 `json:"stats"`

	Wounds []WoundRecord `json:"wounds"`

	CooldownUntilTick uint64 `json:"cooldown_until_tick"`
}

// NewEntity constructs an entity with all collections initialized non-nil.
func NewEntity(id, spaceID string, pos Vector2) *Entity {
	return &Entity{
		ID:       id,
		SpaceID:  spaceID,
		Position: pos,
		Stats:    map[string]int64{},
		Wounds:   []WoundRecord{},
	}
}

// Normalize replaces nil collections with empty ones.
func (e *Entity) Normalize() {
	if e.Stats == nil {
		e.Stats = map[string]int64{}
	}
	if e.Wounds == nil {
		e.Wounds = []WoundRecord{}
	}
}

// HexCoordOf derives the entity's hex coordinate from its float position,
// using axial round-to-nearest-hex with unit hex size. This is the
// spec-named "hex_coord (derived)" field, computed rather than stored so it
// can never drift out of sync with Position.
func (e *Entity) HexCoordOf() HexCoord {
	return pixelToHex(e.Position.X, e.Position.Y)
}

// pixelToHex converts a flat pixel position (unit hex size, flat-top axial
// layout) to the nearest axial hex coordinate via cube rounding.
func pixelToHex(x, y float64) HexCoord {
	qf := (x*2.0/3.0)
	rf := (-x/3.0 + y/sqrt3)
	return cubeRound(qf, rf)
}

const sqrt3 = 1.7320508075688772

func cubeRound(qf, rf float64) HexCoord {
	xf := qf
	zf := rf
	yf := -xf - zf

	rx := roundF(xf)
	ry := roundF(yf)
	rz := roundF(zf)

	xDiff := abs(rx - xf)
	yDiff := abs(ry - yf)
	zDiff := abs(rz - zf)

	if xDiff > yDiff && xDiff > zDiff {
		rx = -ry - rz
	} else if yDiff > zDiff {
		ry = -rx - rz
	} else {
		rz = -rx - ry
	}
	return HexCoord{Q: int32(rx), R: int32(rz)}
}

func roundF(f float64) float64 {
	if f >= 0 {
		return float64(int64(f + 0.5))
	}
	return float64(int64(f - 0.5))
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// AddWound appends a wound, evicting the oldest when MaxWounds is exceeded.
func (e *Entity) AddWound(w WoundRecord) {
	e.Wounds = append(e.Wounds, w)
	if len(e.Wounds) > MaxWounds {
		e.Wounds = e.Wounds[len(e.Wounds)-MaxWounds:]
	}
}
