package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/7seasdotnet/hexcrawler/canon"
)

func TestSchedule_AssignsMonotonicIDs(t *testing.T) {
	q := New(0)
	id1, err := q.Schedule(5, "travel_step", canon.Null())
	require.NoError(t, err)
	id2, err := q.Schedule(5, "travel_step", canon.Null())
	require.NoError(t, err)
	require.Equal(t, uint64(0), id1)
	require.Equal(t, uint64(1), id2)
}

func TestDrainTick_OrdersByTickThenID(t *testing.T) {
	q := New(0)
	_, _ = q.Schedule(2, "b", canon.Null())
	_, _ = q.Schedule(1, "a", canon.Null())
	_, _ = q.Schedule(1, "a2", canon.Null())

	ev, ok := q.Peek()
	require.True(t, ok)
	require.Equal(t, uint64(1), ev.Tick)
	require.Equal(t, "a", ev.EventType)

	batch := q.DrainTick(1)
	require.Len(t, batch, 2)
	require.Equal(t, "a", batch[0].EventType)
	require.Equal(t, "a2", batch[1].EventType)

	tk, ok := q.PeekTick()
	require.True(t, ok)
	require.Equal(t, uint64(2), tk)
}

func TestCancel_RemovesPendingEvent(t *testing.T) {
	q := New(0)
	id, _ := q.Schedule(3, "x", canon.Null())
	require.True(t, q.Cancel(id))
	require.False(t, q.Cancel(id))
	_, ok := q.Peek()
	require.False(t, ok)
}

func TestSchedule_RejectsPastTickDuringDrainOfLaterTick(t *testing.T) {
	q := New(0)
	q.BeginTick(10)
	defer q.EndTick()
	_, err := q.Schedule(5, "late", canon.Null())
	require.Error(t, err)
}

func TestSchedule_AllowsSameOrFutureTickDuringDrain(t *testing.T) {
	q := New(0)
	q.BeginTick(10)
	defer q.EndTick()
	_, err := q.Schedule(10, "same_tick_followup", canon.Null())
	require.NoError(t, err)
	_, err = q.Schedule(11, "future", canon.Null())
	require.NoError(t, err)
}

func TestSchedule_RejectsPastTickOutsideDrain(t *testing.T) {
	// No BeginTick has ever run — current_tick is advanced via
	// SetCurrentTick alone, exactly the rehydration-without-a-running-tick
	// scenario, and Schedule must still reject a stale tick.
	q := New(0)
	q.SetCurrentTick(50)
	_, err := q.Schedule(0, "stale", canon.Null())
	require.Error(t, err)
}

func TestSchedule_AllowsCurrentOrFutureTickOutsideDrain(t *testing.T) {
	q := New(0)
	q.SetCurrentTick(50)
	_, err := q.Schedule(50, "now", canon.Null())
	require.NoError(t, err)
	_, err = q.Schedule(60, "future", canon.Null())
	require.NoError(t, err)
}

func TestBeginTick_AdvancesCurrentTick(t *testing.T) {
	q := New(0)
	q.BeginTick(3)
	require.Equal(t, uint64(3), q.CurrentTick())
	q.EndTick()
	require.Equal(t, uint64(3), q.CurrentTick(), "EndTick must not reset current_tick")
}

func TestQueue_JSONRoundTrip(t *testing.T) {
	q := New(0)
	_, _ = q.Schedule(7, "alpha", canon.String("p1"))
	_, _ = q.Schedule(3, "beta", canon.Int(42))

	data, err := json.Marshal(q)
	require.NoError(t, err)

	q2 := New(0)
	require.NoError(t, json.Unmarshal(data, q2))
	require.Equal(t, q.Len(), q2.Len())
	require.Equal(t, q.NextEventID(), q2.NextEventID())

	tk, ok := q2.PeekTick()
	require.True(t, ok)
	require.Equal(t, uint64(3), tk)
}

func TestLen_ReflectsActiveEventsOnly(t *testing.T) {
	q := New(0)
	id1, _ := q.Schedule(1, "a", canon.Null())
	_, _ = q.Schedule(1, "b", canon.Null())
	require.Equal(t, 2, q.Len())
	q.Cancel(id1)
	require.Equal(t, 1, q.Len())
}
