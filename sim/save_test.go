package sim

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/7seasdotnet/hexcrawler/canon"
	"github.com/7seasdotnet/hexcrawler/simerr"
	"github.com/7seasdotnet/hexcrawler/world"
)

func TestSaveLoad_RoundTripProducesByteIdenticalFiles(t *testing.T) {
	dir := t.TempDir()
	s := newTestSim(t, 21)
	require.NoError(t, s.AdvanceTicks(10))

	aPath := filepath.Join(dir, "a.json")
	bPath := filepath.Join(dir, "b.json")
	require.NoError(t, s.SaveGame(aPath, canon.Object(map[string]canon.Value{"note": canon.String("test")})))

	loaded, err := LoadGame(aPath)
	require.NoError(t, err)
	require.NoError(t, loaded.SaveGame(bPath, canon.Object(map[string]canon.Value{"note": canon.String("test")})))

	aBytes, err := os.ReadFile(aPath)
	require.NoError(t, err)
	bBytes, err := os.ReadFile(bPath)
	require.NoError(t, err)
	require.Equal(t, string(aBytes), string(bBytes))
}

func TestSaveLoad_RoundTripPreservesHash(t *testing.T) {
	dir := t.TempDir()
	s := newTestSim(t, 99)
	require.NoError(t, s.AdvanceTicks(5))
	origHash, err := s.SimulationHash()
	require.NoError(t, err)

	path := filepath.Join(dir, "save.json")
	require.NoError(t, s.SaveGame(path, canon.Null()))

	loaded, err := LoadGame(path)
	require.NoError(t, err)
	loadedHash, err := loaded.SimulationHash()
	require.NoError(t, err)
	require.Equal(t, origHash, loadedHash)
}

func TestLoadGame_TamperedByteFailsWithHashMismatch(t *testing.T) {
	dir := t.TempDir()
	s := newTestSim(t, 5)
	require.NoError(t, s.AdvanceTicks(3))

	path := filepath.Join(dir, "save.json")
	require.NoError(t, s.SaveGame(path, canon.Null()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	start := bytes.Index(data, []byte(`"world_state"`))
	require.GreaterOrEqual(t, start, 0)
	idx := -1
	for i := start; i < len(data); i++ {
		if data[i] == '0' {
			idx = i
			break
		}
	}
	require.GreaterOrEqual(t, idx, 0, "expected at least one '0' byte in world_state to tamper")
	data[idx] = '1'
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = LoadGame(path)
	require.Error(t, err)
	require.True(t, simerr.Is(err, simerr.HashMismatch))
}

func TestLoadGame_UnknownSchemaVersionRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"schema_version":999}`), 0o644))

	_, err := LoadGame(path)
	require.Error(t, err)
	require.True(t, simerr.Is(err, simerr.SchemaVersionUnsupported))
}

func TestSaveGame_LeavesOldFileIntactOnFailure(t *testing.T) {
	dir := t.TempDir()
	s := newTestSim(t, 1)
	path := filepath.Join(dir, "save.json")
	require.NoError(t, s.SaveGame(path, canon.Null()))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// A directory in place of the intended temp target's parent would fail
	// the write; simulate failure by pointing at an unwritable path instead.
	badPath := filepath.Join(dir, "does-not-exist-dir", "save.json")
	err = s.SaveGame(badPath, canon.Null())
	require.Error(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestRehydration_Idempotence_SaveAdvanceLoadAdvanceMatchesDirectAdvance(t *testing.T) {
	dir := t.TempDir()
	direct := newTestSim(t, 17)
	require.NoError(t, direct.AdvanceTicks(15))
	directHash, err := direct.SimulationHash()
	require.NoError(t, err)

	staged := newTestSim(t, 17)
	require.NoError(t, staged.AdvanceTicks(10))
	path := filepath.Join(dir, "staged.json")
	require.NoError(t, staged.SaveGame(path, canon.Null()))
	reloaded, err := LoadGame(path)
	require.NoError(t, err)
	require.NoError(t, reloaded.AdvanceTicks(5))
	reloadedHash, err := reloaded.SimulationHash()
	require.NoError(t, err)

	require.Equal(t, directHash, reloadedHash)
}

func TestLoadGame_RegisteringNewTaskAfterLoadFiresAtCurrentTickNotStaleStart(t *testing.T) {
	dir := t.TempDir()
	s := newTestSim(t, 8)
	require.NoError(t, s.AdvanceTicks(50))

	path := filepath.Join(dir, "save.json")
	require.NoError(t, s.SaveGame(path, canon.Null()))

	loaded, err := LoadGame(path)
	require.NoError(t, err)

	// A task never seen before this load (no pending periodic_tick for it
	// in the restored queue), registered with start=0 the way a rule
	// module's own OnSimulationStart would: RegisterTask must compute
	// fireAt as max(start, current_tick) == 50, not 0. Before the fix, the
	// scheduler's own current-tick tracking was zero-valued on load (only
	// updated by OnTickStart, which hasn't run yet), so fireAt came out 0;
	// that stale entry then becomes the queue's permanent minimum and the
	// drain loop in runTickPhases breaks immediately every tick forever,
	// silently killing this (and every other) periodic firing.
	var fired []uint64
	require.NoError(t, loaded.Periodic().RegisterTask("new_task", 10, 0))
	require.NoError(t, loaded.Periodic().SetTaskCallback("new_task", func(tick uint64) error {
		fired = append(fired, tick)
		return nil
	}))

	require.NoError(t, loaded.AdvanceTicks(11))
	require.Equal(t, []uint64{50, 60}, fired)
}

func TestLoadWorldTemplate_ReadsWorldStateOnly(t *testing.T) {
	dir := t.TempDir()
	s := newTestSim(t, 3)
	path := filepath.Join(dir, "save.json")
	require.NoError(t, s.SaveGame(path, canon.Null()))

	w, err := LoadWorldTemplate(path)
	require.NoError(t, err)
	require.NotNil(t, w.Space(world.DefaultSpaceID))
}
