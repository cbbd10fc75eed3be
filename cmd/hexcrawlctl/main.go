// Command hexcrawlctl is the operator-facing CLI over the simulation
// substrate: create a new save, advance it by ticks or days, and verify a
// save replays deterministically. It never touches authoritative state
// directly — every subcommand is a thin wrapper around sim.Simulation's
// public API, grounded on the pack's cobra usage (opal-lang-opal/cli,
// orbas1-Synnergy/cmd/cli).
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/7seasdotnet/hexcrawler/canon"
	"github.com/7seasdotnet/hexcrawler/internal/config"
	"github.com/7seasdotnet/hexcrawler/internal/logging"
	"github.com/7seasdotnet/hexcrawler/sim"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var verbose bool

	root := &cobra.Command{
		Use:   "hexcrawlctl",
		Short: "Operate a hexcrawl simulation save from the command line",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (see internal/config)")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	root.AddCommand(newNewCmd(&configPath, &verbose))
	root.AddCommand(newAdvanceCmd(&verbose))
	root.AddCommand(newSaveCmd(&verbose))
	root.AddCommand(newLoadCmd(&verbose))
	root.AddCommand(newReplayVerifyCmd(&verbose))
	return root
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newNewCmd(configPath *string, verbose *bool) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a fresh simulation and save it",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(*verbose)
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			s, err := sim.NewWithSeedAndTopology(cfg.MasterSeed, cfg.TopologyType, cfg.TopologyParams)
			if err != nil {
				return fmt.Errorf("hexcrawlctl: %w", err)
			}
			s.SetLogger(log)
			s.SetTicksPerDay(cfg.TicksPerDay)
			for _, t := range cfg.PeriodicTasks {
				if err := s.Periodic().RegisterTask(t.Name, t.Interval, t.Start); err != nil {
					return fmt.Errorf("hexcrawlctl: register periodic task %q: %w", t.Name, err)
				}
			}

			path := out
			if path == "" {
				path = cfg.SavePath
			}
			meta := canon.Object(map[string]canon.Value{
				"run_id": canon.String(uuid.NewString()),
			})
			if err := s.SaveGame(path, meta); err != nil {
				return fmt.Errorf("hexcrawlctl: save: %w", err)
			}
			log.WithField("path", path).Info("created new simulation save")
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "save path (defaults to the config's save_path)")
	return cmd
}

func newAdvanceCmd(verbose *bool) *cobra.Command {
	var ticks, days uint64
	cmd := &cobra.Command{
		Use:   "advance <save-path>",
		Short: "Load a save, advance it, and write it back in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(*verbose)
			path := args[0]
			s, err := sim.LoadGame(path)
			if err != nil {
				return fmt.Errorf("hexcrawlctl: load: %w", err)
			}
			s.SetLogger(log)
			if days > 0 {
				if err := s.AdvanceDays(days); err != nil {
					return fmt.Errorf("hexcrawlctl: advance: %w", err)
				}
			}
			if ticks > 0 {
				if err := s.AdvanceTicks(ticks); err != nil {
					return fmt.Errorf("hexcrawlctl: advance: %w", err)
				}
			}
			if err := s.SaveGame(path, canon.Null()); err != nil {
				return fmt.Errorf("hexcrawlctl: save: %w", err)
			}
			hash, err := s.SimulationHash()
			if err != nil {
				return err
			}
			log.WithFields(logging.TickFields(s.Time().Tick, hash)).Info("advanced simulation")
			return nil
		},
	}
	cmd.Flags().Uint64Var(&ticks, "ticks", 0, "number of ticks to advance")
	cmd.Flags().Uint64Var(&days, "days", 0, "number of in-world days to advance (applied before --ticks)")
	return cmd
}

func newLoadCmd(verbose *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <save-path>",
		Short: "Load a save and print its current tick and simulation hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(*verbose)
			s, err := sim.LoadGame(args[0])
			if err != nil {
				return fmt.Errorf("hexcrawlctl: load: %w", err)
			}
			s.SetLogger(log)
			hash, err := s.SimulationHash()
			if err != nil {
				return err
			}
			fmt.Printf("tick=%d simulation_hash=%s\n", s.Time().Tick, hash)
			return nil
		},
	}
	return cmd
}

func newSaveCmd(verbose *bool) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "save <save-path>",
		Short: "Load a save and re-write it, tagging it with a fresh run id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(*verbose)
			path := args[0]
			s, err := sim.LoadGame(path)
			if err != nil {
				return fmt.Errorf("hexcrawlctl: load: %w", err)
			}
			s.SetLogger(log)

			dest := out
			if dest == "" {
				dest = path
			}
			meta := canon.Object(map[string]canon.Value{
				"run_id": canon.String(uuid.NewString()),
			})
			if err := s.SaveGame(dest, meta); err != nil {
				return fmt.Errorf("hexcrawlctl: save: %w", err)
			}
			log.WithField("path", dest).Info("saved simulation")
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "destination save path (defaults to the source save-path)")
	return cmd
}

func newReplayVerifyCmd(verbose *bool) *cobra.Command {
	var ticks uint64
	cmd := &cobra.Command{
		Use:   "replay-verify <save-path>",
		Short: "Load a save twice and confirm advancing both yields the identical hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(*verbose)
			path := args[0]

			a, err := sim.LoadGame(path)
			if err != nil {
				return fmt.Errorf("hexcrawlctl: load (a): %w", err)
			}
			a.SetLogger(log)
			b, err := sim.LoadGame(path)
			if err != nil {
				return fmt.Errorf("hexcrawlctl: load (b): %w", err)
			}
			b.SetLogger(log)
			if err := a.AdvanceTicks(ticks); err != nil {
				return fmt.Errorf("hexcrawlctl: advance (a): %w", err)
			}
			if err := b.AdvanceTicks(ticks); err != nil {
				return fmt.Errorf("hexcrawlctl: advance (b): %w", err)
			}
			hashA, err := a.SimulationHash()
			if err != nil {
				return err
			}
			hashB, err := b.SimulationHash()
			if err != nil {
				return err
			}
			if hashA != hashB {
				diff := diffWorlds(a, b)
				return fmt.Errorf("hexcrawlctl: replay diverged after %d ticks: %s != %s\n%s", ticks, hashA, hashB, diff)
			}
			log.WithFields(logging.TickFields(a.Time().Tick, hashA)).Info("replay verified")
			return nil
		},
	}
	cmd.Flags().Uint64Var(&ticks, "ticks", 0, "number of ticks to advance each replica before comparing")
	return cmd
}

// diffWorlds reports a structural diff between two world states for a
// diverged replay, decoding each side into a generic JSON tree first so
// go-cmp never trips over the world package's unexported bookkeeping fields
// (next-id counters), which carry no save-hash significance of their own.
func diffWorlds(a, b *sim.Simulation) string {
	genericOf := func(s *sim.Simulation) interface{} {
		data, err := json.Marshal(s.World())
		if err != nil {
			return fmt.Sprintf("<marshal error: %v>", err)
		}
		var v interface{}
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Sprintf("<unmarshal error: %v>", err)
		}
		return v
	}
	return cmp.Diff(genericOf(a), genericOf(b))
}
