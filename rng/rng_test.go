package rng

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveSeed_Deterministic(t *testing.T) {
	a := DeriveSeed(42, "encounters")
	b := DeriveSeed(42, "encounters")
	require.Equal(t, a, b)
}

func TestDeriveSeed_DistinctStreamsDiffer(t *testing.T) {
	a := DeriveSeed(42, "encounters")
	b := DeriveSeed(42, "rumors")
	require.NotEqual(t, a, b)
}

func TestDeriveSeed_DistinctSeedsDiffer(t *testing.T) {
	a := DeriveSeed(1, "encounters")
	b := DeriveSeed(2, "encounters")
	require.NotEqual(t, a, b)
}

func TestGenerator_SameSeedSameSequence(t *testing.T) {
	g1 := New(7, "weather")
	g2 := New(7, "weather")
	for i := 0; i < 100; i++ {
		require.Equal(t, g1.Next(), g2.Next())
	}
}

func TestGenerator_StreamIsolation_ButterflyContainment(t *testing.T) {
	// Draw a reference sequence from stream "b" with no interference.
	gb := New(7, "b")
	var refB []uint64
	for i := 0; i < 20; i++ {
		refB = append(refB, gb.Next())
	}

	// Now draw from "a" interleaved with "b"; "b"'s sequence must be identical.
	ga := New(7, "a")
	gb2 := New(7, "b")
	var gotB []uint64
	for i := 0; i < 20; i++ {
		_ = ga.Next()
		gotB = append(gotB, gb2.Next())
	}
	require.Equal(t, refB, gotB)
}

func TestFromState_ResumesExactly(t *testing.T) {
	g := New(99, "stream")
	_ = g.Next()
	_ = g.Next()
	saved := g.State()

	restored := FromState("stream", saved)
	require.Equal(t, g.Next(), restored.Next())
}

func TestIntn_Bounds(t *testing.T) {
	g := New(1, "bounds")
	for i := 0; i < 1000; i++ {
		v := g.Intn(7)
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 7)
	}
}

func TestFloat64_Bounds(t *testing.T) {
	g := New(1, "floats")
	for i := 0; i < 1000; i++ {
		f := g.Float64()
		require.GreaterOrEqual(t, f, 0.0)
		require.Less(t, f, 1.0)
	}
}

func TestShuffle_Permutation(t *testing.T) {
	g := New(5, "shuffle")
	deck := make([]int, 52)
	for i := range deck {
		deck[i] = i
	}
	g.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	seen := make(map[int]bool)
	for _, v := range deck {
		seen[v] = true
	}
	require.Len(t, seen, 52)
}
