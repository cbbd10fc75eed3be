// Package config loads the CLI's startup configuration from YAML, grounded
// on orbas1-Synnergy's cmd/cli/devnet.go (yaml.v3 Unmarshal into a plain
// struct, defaults filled in after decode rather than via struct tags).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/7seasdotnet/hexcrawler/world"
)

// Config is the on-disk shape of a new-simulation configuration: enough to
// reproduce sim.NewWithSeedAndTopology's arguments plus the periodic tasks
// a deployment wants registered at startup.
type Config struct {
	MasterSeed   int64              `yaml:"master_seed"`
	TopologyType world.TopologyType `yaml:"topology_type"`
	TopologyParams world.TopologyParams `yaml:"topology_params"`
	TicksPerDay  uint64             `yaml:"ticks_per_day"`
	SavePath     string             `yaml:"save_path"`
	PeriodicTasks []PeriodicTask    `yaml:"periodic_tasks"`
}

// PeriodicTask is one entry of the periodic_tasks config list, mirroring
// periodic.Scheduler.RegisterTask's parameters.
type PeriodicTask struct {
	Name     string `yaml:"name"`
	Interval uint64 `yaml:"interval"`
	Start    uint64 `yaml:"start"`
}

// Default returns the configuration a bare `hexcrawlctl new` uses when no
// --config file is given.
func Default() Config {
	return Config{
		MasterSeed:     0,
		TopologyType:   world.TopologyHexAxial,
		TopologyParams: world.TopologyParams{"radius": 4},
		TicksPerDay:    240,
		SavePath:       "world.save.json",
	}
}

// Load reads and decodes a YAML config file, filling in any field left zero
// with Default()'s value.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.TopologyParams == nil {
		cfg.TopologyParams = world.TopologyParams{"radius": 4}
	}
	if cfg.TicksPerDay == 0 {
		cfg.TicksPerDay = 240
	}
	if cfg.SavePath == "" {
		cfg.SavePath = "world.save.json"
	}
	return cfg, nil
}
