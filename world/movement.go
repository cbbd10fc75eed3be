package world

import "math"

// TravelStep is the payload of a `travel_step` event (spec §4.9 phase 4,
// §6): emitted whenever an entity's movement crosses a hex (or grid cell)
// boundary during the tick's entity-update phase.
type TravelStep struct {
	Tick         uint64  `json:"tick"`
	EntityID     string  `json:"entity_id"`
	LocationFrom CellRef `json:"location_from"`
	LocationTo   CellRef `json:"location_to"`
}

// StepEntities advances every entity's position for tick T, in sorted id
// order, and returns the travel_step events produced by any hex-boundary
// crossing. Movement is governed by MoveVector when TargetPosition is nil,
// or by a step toward TargetPosition whose length is MoveVector's
// magnitude (clearing it on arrival)
// otherwise; a step that would leave the entity's space without landing on
// a valid cell is clamped (the entity does not move that tick).
func (w *World) StepEntities(tick uint64) []TravelStep {
	var steps []TravelStep
	for _, id := range w.SortedEntityIDs() {
		e := w.Entities[id]
		sp := w.Spaces[e.SpaceID]
		if sp == nil {
			continue
		}
		from := cellRefFor(sp, e)

		candidate := e.Position
		if e.TargetPosition != nil {
			dx := e.TargetPosition.X - e.Position.X
			dy := e.TargetPosition.Y - e.Position.Y
			dist := hypot(dx, dy)
			speed := hypot(e.MoveVector.X, e.MoveVector.Y)
			if dist <= speed || dist == 0 {
				candidate = *e.TargetPosition
			} else {
				candidate = Vector2{
					X: e.Position.X + dx/dist*speed,
					Y: e.Position.Y + dy/dist*speed,
				}
			}
		} else {
			candidate = Vector2{X: e.Position.X + e.MoveVector.X, Y: e.Position.Y + e.MoveVector.Y}
		}

		trialEntity := &Entity{ID: e.ID, SpaceID: e.SpaceID, Position: candidate}
		candidateCoord := Coord{Hex: trialEntity.HexCoordOf()}
		if sp.TopologyType == TopologySquareGrid {
			candidateCoord = Coord{Square: SquareCoord{X: int32(candidate.X), Y: int32(candidate.Y)}}
		}

		if !sp.HasCell(candidateCoord) {
			// Clamp: reject the move, the entity stays put this tick.
			continue
		}

		e.Position = candidate
		if e.TargetPosition != nil && candidate == *e.TargetPosition {
			e.TargetPosition = nil
		}

		to := cellRefFor(sp, e)
		if to.Key() != from.Key() {
			steps = append(steps, TravelStep{Tick: tick, EntityID: e.ID, LocationFrom: from, LocationTo: to})
		}
	}
	return steps
}

func cellRefFor(sp *SpaceState, e *Entity) CellRef {
	coord := Coord{Hex: e.HexCoordOf()}
	if sp.TopologyType == TopologySquareGrid {
		coord = Coord{Square: SquareCoord{X: int32(e.Position.X), Y: int32(e.Position.Y)}}
	}
	ref := CellRef{SpaceID: sp.SpaceID, TopologyType: sp.TopologyType, Coord: coord}
	ref.Normalize()
	return ref
}

func hypot(x, y float64) float64 {
	return math.Sqrt(x*x + y*y)
}
