package rulesstate

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/7seasdotnet/hexcrawler/canon"
)

func TestGet_AbsentModuleReturnsNotOK(t *testing.T) {
	s := New()
	_, ok, err := s.Get("weather")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetThenGet_RoundTrips(t *testing.T) {
	s := New()
	v := canon.Object(map[string]canon.Value{"season": canon.String("winter")})
	require.NoError(t, s.Set("weather", v))

	got, ok, err := s.Get("weather")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, v.Equal(got))
}

func TestGet_ReturnsIndependentCopy(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("econ", canon.Object(map[string]canon.Value{"gold": canon.Int(10)})))

	got1, _, _ := s.Get("econ")
	// Mutating the caller's retrieved copy must not affect the stored value.
	obj, _ := got1.Object()
	obj["gold"] = canon.Int(999)

	got2, _, _ := s.Get("econ")
	n, _ := got2.Object()
	gold, _ := n["gold"].Int()
	require.Equal(t, int64(10), gold)
}

func TestSet_RejectsNonFiniteFloat(t *testing.T) {
	s := New()
	err := s.Set("bad", canon.Float(math.Inf(1)))
	require.Error(t, err)
}

func TestModuleIsolation_SetDoesNotLeakAcrossModules(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("a", canon.Int(1)))
	require.NoError(t, s.Set("b", canon.Int(2)))
	va, _, _ := s.Get("a")
	n, _ := va.Int()
	require.Equal(t, int64(1), n)
}

func TestStore_JSONRoundTrip(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("weather", canon.String("rain")))
	require.NoError(t, s.Set("economy", canon.Int(100)))

	data, err := json.Marshal(s)
	require.NoError(t, err)

	s2 := New()
	require.NoError(t, json.Unmarshal(data, s2))
	got, ok, _ := s2.Get("weather")
	require.True(t, ok)
	str, _ := got.String()
	require.Equal(t, "rain", str)
}

func TestDelete_RemovesStoredState(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("a", canon.Int(1)))
	s.Delete("a")
	_, ok, _ := s.Get("a")
	require.False(t, ok)
}
