package world

import "fmt"

// TopologyType drives the shape and validity of a space's coordinates.
type TopologyType string

const (
	TopologyHexAxial   TopologyType = "hex_axial"
	TopologySquareGrid TopologyType = "square_grid"
)

// HexCoord is an axial (q, r) coordinate. It is hashable (comparable struct)
// and has a canonical string form for use as a map key.
type HexCoord struct {
	Q int32 `json:"q"`
	R int32 `json:"r"`
}

// Key returns the canonical string form used for map keys and encoding.
func (h HexCoord) Key() string { return fmt.Sprintf("%d,%d", h.Q, h.R) }

// SquareCoord is a square-grid (x, y) coordinate.
type SquareCoord struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

func (s SquareCoord) Key() string { return fmt.Sprintf("%d,%d", s.X, s.Y) }

// Coord is a topology-tagged coordinate: exactly one of Hex/Square is
// meaningful, selected by the enclosing LocationRef/SpaceState's
// TopologyType.
type Coord struct {
	Hex    HexCoord    `json:"hex,omitempty"`
	Square SquareCoord `json:"square,omitempty"`
}

// Key returns the canonical map-key form for coord under the given topology.
func (c Coord) Key(topo TopologyType) string {
	switch topo {
	case TopologySquareGrid:
		return c.Square.Key()
	default:
		return c.Hex.Key()
	}
}

// DefaultSpaceID is substituted for legacy payloads that omit space_id.
const DefaultSpaceID = "overworld"

// CellRef (== LocationRef) identifies a single cell within a space.
type CellRef struct {
	SpaceID      string       `json:"space_id"`
	TopologyType TopologyType `json:"topology_type"`
	Coord        Coord        `json:"coord"`
}

// LocationRef is an alias kept distinct in name only, matching spec §3's
// dual naming ("CellRef / LocationRef") for the same concept.
type LocationRef = CellRef

// Normalize fills in the legacy default space id when empty.
func (c *CellRef) Normalize() {
	if c.SpaceID == "" {
		c.SpaceID = DefaultSpaceID
	}
}

// Key returns a canonical string uniquely identifying this cell reference.
func (c CellRef) Key() string {
	return c.SpaceID + "|" + c.Coord.Key(c.TopologyType)
}

// HexNeighbors returns the six axial neighbors of h.
func HexNeighbors(h HexCoord) []HexCoord {
	dirs := [6][2]int32{{1, 0}, {1, -1}, {0, -1}, {-1, 0}, {-1, 1}, {0, 1}}
	out := make([]HexCoord, 0, 6)
	for _, d := range dirs {
		out = append(out, HexCoord{Q: h.Q + d[0], R: h.R + d[1]})
	}
	return out
}

// SquareNeighbors returns the four orthogonal neighbors of s.
func SquareNeighbors(s SquareCoord) []SquareCoord {
	return []SquareCoord{
		{X: s.X + 1, Y: s.Y},
		{X: s.X - 1, Y: s.Y},
		{X: s.X, Y: s.Y + 1},
		{X: s.X, Y: s.Y - 1},
	}
}
