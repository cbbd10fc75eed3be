package trace

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/7seasdotnet/hexcrawler/canon"
)

func TestRecord_AppendsInOrder(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Record(Entry{Tick: 1, EventID: 1, EventType: "a", Outcome: canon.Null()}))
	require.NoError(t, tr.Record(Entry{Tick: 1, EventID: 2, EventType: "b", Outcome: canon.Null()}))
	entries, err := tr.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "a", entries[0].EventType)
	require.Equal(t, "b", entries[1].EventType)
}

func TestRecord_EvictsOldestPastCap(t *testing.T) {
	tr := New()
	for i := 0; i < MaxEntries+10; i++ {
		require.NoError(t, tr.Record(Entry{Tick: uint64(i), EventID: uint64(i), EventType: "e", Outcome: canon.Null()}))
	}
	require.Equal(t, MaxEntries, tr.Len())
	entries, err := tr.Entries()
	require.NoError(t, err)
	require.Equal(t, uint64(10), entries[0].EventID)
	require.Equal(t, uint64(MaxEntries+9), entries[len(entries)-1].EventID)
}

func TestEntries_ReturnsIndependentCopy(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Record(Entry{Tick: 1, EventID: 1, EventType: "a", Outcome: canon.Object(map[string]canon.Value{"x": canon.Int(1)})}))
	entries, err := tr.Entries()
	require.NoError(t, err)
	obj, _ := entries[0].Outcome.Object()
	obj["x"] = canon.Int(999)

	entries2, err := tr.Entries()
	require.NoError(t, err)
	obj2, _ := entries2[0].Outcome.Object()
	n, _ := obj2["x"].Int()
	require.Equal(t, int64(1), n)
}

func TestTrace_JSONRoundTrip(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Record(Entry{Tick: 1, EventID: 1, EventType: "a", Outcome: canon.String("ok")}))

	data, err := json.Marshal(tr)
	require.NoError(t, err)

	tr2 := New()
	require.NoError(t, json.Unmarshal(data, tr2))
	require.Equal(t, tr.Len(), tr2.Len())
}
