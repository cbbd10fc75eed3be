// Command hexcrawl-abci runs the simulation substrate behind a CometBFT ABCI
// server, directly mirroring apps/chain/cmd/ocpd/main.go: flag-parsed home
// dir and listen address, a constructed application, and a blocking serve
// loop torn down on SIGINT/SIGTERM.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cometbft/cometbft/abci/server"

	"github.com/7seasdotnet/hexcrawler/internal/abciadapter"
	"github.com/7seasdotnet/hexcrawler/internal/config"
	"github.com/7seasdotnet/hexcrawler/internal/logging"
	"github.com/7seasdotnet/hexcrawler/sim"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML simulation config (see internal/config); defaults used if empty")
		savePath   = flag.String("save", "hexcrawl.save.json", "path the simulation is persisted to on every Commit")
		addr       = flag.String("addr", "tcp://127.0.0.1:26658", "ABCI listen address")
		transport  = flag.String("transport", "socket", "ABCI transport (socket|grpc)")
		verbose    = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	log := logging.New(*verbose)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	var s *sim.Simulation
	if existing, err := sim.LoadGame(*savePath); err == nil {
		s = existing
	} else {
		fresh, err := sim.NewWithSeedAndTopology(cfg.MasterSeed, cfg.TopologyType, cfg.TopologyParams)
		if err != nil {
			fmt.Fprintf(os.Stderr, "init simulation: %v\n", err)
			os.Exit(1)
		}
		fresh.SetTicksPerDay(cfg.TicksPerDay)
		s = fresh
	}
	s.SetLogger(log)

	app := abciadapter.New(s, *savePath)
	srv, err := server.NewServer(*addr, *transport, app)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start abci server: %v\n", err)
		os.Exit(1)
	}
	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "abci server start: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = srv.Stop() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
