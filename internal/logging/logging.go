// Package logging sets up the structured logger shared by the CLI, the ABCI
// server, and the sim/registry packages' own tick-phase and load-path
// logging, grounded on the pack's own logrus usage (orbas1-Synnergy's
// walletserver/middleware/logger.go) rather than rolling a hand-written log
// package. Logging is a side channel only: it never reads or writes
// authoritative state, so it carries no determinism or save-hash
// implications (spec §5's wall-clock/ambient-I/O non-goal is about state
// inputs, not about whether the substrate may report what it's doing).
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logrus.Logger configured for CLI/server output: text
// formatting for a terminal, full timestamps, and level gated by verbose.
func New(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

// TickFields builds the common structured fields logged around a tick
// advance, so every call site reports the same shape.
func TickFields(tick uint64, hash string) logrus.Fields {
	return logrus.Fields{"tick": tick, "simulation_hash": hash}
}
