package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/7seasdotnet/hexcrawler/world"
)

func TestDefault_HasSaneTopologyAndSavePath(t *testing.T) {
	cfg := Default()
	require.Equal(t, world.TopologyHexAxial, cfg.TopologyType)
	require.NotEmpty(t, cfg.SavePath)
	require.Equal(t, uint64(240), cfg.TicksPerDay)
}

func TestLoad_OverridesDefaultsFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
master_seed: 42
topology_type: hex_axial
topology_params:
  radius: 6
save_path: custom.json
periodic_tasks:
  - name: encounter_check
    interval: 20
    start: 0
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, int64(42), cfg.MasterSeed)
	require.Equal(t, "custom.json", cfg.SavePath)
	require.Len(t, cfg.PeriodicTasks, 1)
	require.Equal(t, "encounter_check", cfg.PeriodicTasks[0].Name)
	require.Equal(t, uint64(240), cfg.TicksPerDay, "unset field should fall back to default")
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
