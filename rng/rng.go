// Package rng derives deterministic child streams from a single master seed,
// grounded in the teacher's own sha256-driven determinism
// (state.DeterministicDeck in discordwell-OnChainPoker): a stream's seed is
// always a digest over stable input bytes, never the process's ambient
// entropy or wall clock.
package rng

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Generator is a stable, serializable pseudo-random source. It is a
// splitmix64 generator: simple, fast, and its entire state is one uint64,
// which keeps simulation_state small and trivially round-trippable.
type Generator struct {
	name  string
	state uint64
}

// DeriveSeed computes the unsigned 64-bit seed for streamName under
// masterSeed: the first 8 bytes (big-endian) of SHA-256("{masterSeed}:{name}").
// Per §4.1, this is the only legal way to obtain a stream seed — process
// identity, time, or any other ambient source is forbidden.
func DeriveSeed(masterSeed int64, streamName string) uint64 {
	input := fmt.Sprintf("%d:%s", masterSeed, streamName)
	sum := sha256.Sum256([]byte(input))
	return binary.BigEndian.Uint64(sum[:8])
}

// New constructs a Generator for streamName, seeded deterministically from
// masterSeed via DeriveSeed.
func New(masterSeed int64, streamName string) *Generator {
	return &Generator{name: streamName, state: DeriveSeed(masterSeed, streamName)}
}

// FromState restores a Generator from previously serialized state, used when
// rehydrating simulation_state on load. No re-derivation from the master
// seed happens here: the generator resumes exactly where it left off.
func FromState(name string, state uint64) *Generator {
	return &Generator{name: name, state: state}
}

// Name returns the stream's name.
func (g *Generator) Name() string { return g.name }

// State returns the generator's current internal state, for serialization.
func (g *Generator) State() uint64 { return g.state }

// Next advances the generator and returns the next 64-bit pseudo-random
// value (splitmix64, as used by Go's math/rand/v2 and many other PRNGs for
// stream-splitting because it has no detectable correlation across seeds
// that differ only in their low bits, which DeriveSeed's digest produces
// plenty of).
func (g *Generator) Next() uint64 {
	g.state += 0x9E3779B97F4A7C15
	z := g.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Intn returns a pseudo-random integer in [0, n). n must be positive.
func (g *Generator) Intn(n int) int {
	if n <= 0 {
		panic("rng: Intn called with n <= 0")
	}
	return int(g.Next() % uint64(n))
}

// Float64 returns a pseudo-random float64 in [0, 1).
func (g *Generator) Float64() float64 {
	// Top 53 bits give a uniform float64 in [0,1).
	return float64(g.Next()>>11) / (1 << 53)
}

// Shuffle permutes a slice of length n in place using a Fisher-Yates pass
// driven by this generator, the same algorithm shape as
// state.DeterministicDeck in the teacher repo.
func (g *Generator) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := g.Intn(i + 1)
		swap(i, j)
	}
}
