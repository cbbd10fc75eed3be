package world

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWithSeedAndTopology_HexDisk(t *testing.T) {
	w, err := NewWithSeedAndTopology(TopologyHexAxial, TopologyParams{"radius": 2})
	require.NoError(t, err)
	sp := w.Space(DefaultSpaceID)
	require.NotNil(t, sp)
	// A radius-2 hex disk has 1 + 3*2*(2+1) = 19 cells.
	require.Len(t, sp.Cells, 19)
}

func TestAddEntity_RejectsUnknownSpace(t *testing.T) {
	w, err := NewWithSeedAndTopology(TopologyHexAxial, TopologyParams{"radius": 1})
	require.NoError(t, err)
	e := NewEntity("e1", "nowhere", Vector2{})
	err = w.AddEntity(e)
	require.Error(t, err)
}

func TestAddEntity_RejectsUnknownContainer(t *testing.T) {
	w, err := NewWithSeedAndTopology(TopologyHexAxial, TopologyParams{"radius": 1})
	require.NoError(t, err)
	e := NewEntity("e1", DefaultSpaceID, Vector2{0, 0})
	e.InventoryContainerID = "missing"
	err = w.AddEntity(e)
	require.Error(t, err)
}

func TestAddEntity_Succeeds(t *testing.T) {
	w, err := NewWithSeedAndTopology(TopologyHexAxial, TopologyParams{"radius": 2})
	require.NoError(t, err)
	require.NoError(t, w.AddContainer(NewContainer("c1")))
	e := NewEntity("e1", DefaultSpaceID, Vector2{0, 0})
	e.InventoryContainerID = "c1"
	require.NoError(t, w.AddEntity(e))
	require.NoError(t, w.ValidateInvariants())
}

func TestLedgers_BoundedFIFOEviction(t *testing.T) {
	l := NewLedgers()
	for i := 0; i < MaxSignals+10; i++ {
		l.AddSignal(Signal{Kind: "noise", Strength: 1})
	}
	require.Len(t, l.Signals, MaxSignals)
	// The remaining entries should be the last MaxSignals ids, in order.
	for i, s := range l.Signals {
		require.Equal(t, uint64(10+i), s.ID)
	}
}

func TestSortedEntityIDs_Deterministic(t *testing.T) {
	w, err := NewWithSeedAndTopology(TopologyHexAxial, TopologyParams{"radius": 2})
	require.NoError(t, err)
	for _, id := range []string{"zeta", "alpha", "mu"} {
		require.NoError(t, w.AddEntity(NewEntity(id, DefaultSpaceID, Vector2{0, 0})))
	}
	require.Equal(t, []string{"alpha", "mu", "zeta"}, w.SortedEntityIDs())
}

func TestContainer_RemoveDeletesZeroedEntries(t *testing.T) {
	c := NewContainer("c1")
	c.Add("torch", 3)
	require.NoError(t, c.Remove("torch", 3))
	_, present := c.Items["torch"]
	require.False(t, present)
}

func TestHexCoordOf_RoundTripsNearOrigin(t *testing.T) {
	e := NewEntity("e1", DefaultSpaceID, Vector2{0, 0})
	require.Equal(t, HexCoord{Q: 0, R: 0}, e.HexCoordOf())
}
