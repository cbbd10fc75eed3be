package world

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStepEntities_EmitsTravelStepOnHexCrossing(t *testing.T) {
	w, err := NewWithSeedAndTopology(TopologyHexAxial, TopologyParams{"radius": 3})
	require.NoError(t, err)
	e := NewEntity("e1", DefaultSpaceID, Vector2{X: 0, Y: 0})
	e.MoveVector = Vector2{X: 2.0, Y: 0}
	require.NoError(t, w.AddEntity(e))

	steps := w.StepEntities(1)
	require.Len(t, steps, 1)
	require.Equal(t, "e1", steps[0].EntityID)
	require.NotEqual(t, steps[0].LocationFrom.Key(), steps[0].LocationTo.Key())
}

func TestStepEntities_ClampsAtSpaceBoundary(t *testing.T) {
	w, err := NewWithSeedAndTopology(TopologyHexAxial, TopologyParams{"radius": 1})
	require.NoError(t, err)
	e := NewEntity("e1", DefaultSpaceID, Vector2{X: 0, Y: 0})
	e.MoveVector = Vector2{X: 100, Y: 100}
	require.NoError(t, w.AddEntity(e))

	steps := w.StepEntities(1)
	require.Empty(t, steps)
	require.Equal(t, Vector2{X: 0, Y: 0}, w.Entity("e1").Position)
}

func TestStepEntities_SeeksTargetAndClearsOnArrival(t *testing.T) {
	w, err := NewWithSeedAndTopology(TopologyHexAxial, TopologyParams{"radius": 3})
	require.NoError(t, err)
	e := NewEntity("e1", DefaultSpaceID, Vector2{X: 0, Y: 0})
	e.MoveVector = Vector2{X: 1, Y: 0}
	target := Vector2{X: 0.5, Y: 0}
	e.TargetPosition = &target
	require.NoError(t, w.AddEntity(e))

	w.StepEntities(1)
	got := w.Entity("e1")
	require.Equal(t, target, got.Position)
	require.Nil(t, got.TargetPosition)
}

func TestStepEntities_SortedIDOrder(t *testing.T) {
	w, err := NewWithSeedAndTopology(TopologyHexAxial, TopologyParams{"radius": 3})
	require.NoError(t, err)
	zeta := NewEntity("zeta", DefaultSpaceID, Vector2{0, 0})
	zeta.MoveVector = Vector2{X: 2, Y: 0}
	alpha := NewEntity("alpha", DefaultSpaceID, Vector2{0, 0})
	alpha.MoveVector = Vector2{X: 2, Y: 0}
	require.NoError(t, w.AddEntity(zeta))
	require.NoError(t, w.AddEntity(alpha))
	// Both cross from hex (0,0) into (1,0); steps come back in sorted id
	// order regardless of insertion order.
	steps := w.StepEntities(1)
	require.Len(t, steps, 2)
	require.Equal(t, "alpha", steps[0].EntityID)
	require.Equal(t, "zeta", steps[1].EntityID)
}
