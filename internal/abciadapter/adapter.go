// Package abciadapter exposes a sim.Simulation as a CometBFT ABCI
// application, grounded directly on the teacher's OCPApp
// (apps/chain/internal/app/app.go): one block advances the simulation by
// exactly one tick, a transaction is one command envelope, and AppHash is
// the substrate's own canonical simulation_hash rather than a bespoke
// Merkle root — the substrate already defines a hash-covered state, so the
// adapter's job is only to plug it into CometBFT's block lifecycle, not to
// invent a second notion of state integrity.
package abciadapter

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	abci "github.com/cometbft/cometbft/abci/types"

	"github.com/7seasdotnet/hexcrawler/canon"
	"github.com/7seasdotnet/hexcrawler/sim"
)

// AppVersion is this adapter's protocol version, independent of
// sim.SchemaVersion (the save format's version).
const AppVersion uint64 = 1

// txEnvelope is the wire shape of one ABCI transaction: a single command
// destined for append_command at the block's tick.
type txEnvelope struct {
	EntityID    string      `json:"entity_id"`
	CommandType string      `json:"command_type"`
	Params      canon.Value `json:"params"`
}

// App wraps a *sim.Simulation as an ABCI application. Like OCPApp, all
// mutating calls run under a single mutex matching the substrate's own
// single-writer discipline (spec §5).
type App struct {
	*abci.BaseApplication

	savePath string

	mu  sync.Mutex
	sim *sim.Simulation
}

// New constructs an App around an already-built simulation, persisting to
// savePath on every Commit.
func New(s *sim.Simulation, savePath string) *App {
	return &App{
		BaseApplication: abci.NewBaseApplication(),
		savePath:        savePath,
		sim:             s,
	}
}

func decodeTx(tx []byte) (txEnvelope, error) {
	var env txEnvelope
	if err := json.Unmarshal(tx, &env); err != nil {
		return txEnvelope{}, fmt.Errorf("abciadapter: decode tx: %w", err)
	}
	if env.CommandType == "" {
		return txEnvelope{}, fmt.Errorf("abciadapter: tx missing command_type")
	}
	return env, nil
}

// Info reports the simulation's current tick as the block height and its
// canonical hash as the app hash.
func (a *App) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	hash, err := a.sim.SimulationHash()
	if err != nil {
		return nil, err
	}
	appHash, err := hex.DecodeString(hash)
	if err != nil {
		return nil, fmt.Errorf("abciadapter: decode simulation_hash: %w", err)
	}
	return &abci.InfoResponse{
		Data:             "hexcrawl simulation substrate",
		Version:          "v0",
		AppVersion:       AppVersion,
		LastBlockHeight:  int64(a.sim.Time().Tick),
		LastBlockAppHash: appHash,
	}, nil
}

// CheckTx performs only structural validation, matching OCPApp's v0 policy
// (signatures/auth are out of scope for the substrate).
func (a *App) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	if _, err := decodeTx(req.Tx); err != nil {
		return &abci.CheckTxResponse{Code: 1, Log: err.Error()}, nil
	}
	return &abci.CheckTxResponse{Code: 0}, nil
}

func (a *App) InitChain(_ context.Context, _ *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	return &abci.InitChainResponse{}, nil
}

// FinalizeBlock appends every tx in the block as a command at the
// substrate's current tick, then advances exactly one tick. A fatal
// substrate error aborts the block the same way it aborts a tick: no
// partial mutation, surfaced as an error so the node halts rather than
// committing divergent state.
func (a *App) FinalizeBlock(_ context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	tick := a.sim.Time().Tick
	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for _, txBytes := range req.Txs {
		env, err := decodeTx(txBytes)
		if err != nil {
			txResults = append(txResults, &abci.ExecTxResult{Code: 1, Log: err.Error()})
			continue
		}
		if _, err := a.sim.AppendCommand(tick, env.EntityID, env.CommandType, env.Params); err != nil {
			txResults = append(txResults, &abci.ExecTxResult{Code: 1, Log: err.Error()})
			continue
		}
		txResults = append(txResults, &abci.ExecTxResult{Code: 0})
	}

	if err := a.sim.AdvanceTicks(1); err != nil {
		return nil, fmt.Errorf("abciadapter: tick %d: %w", tick, err)
	}

	hash, err := a.sim.SimulationHash()
	if err != nil {
		return nil, err
	}
	appHash, err := hex.DecodeString(hash)
	if err != nil {
		return nil, fmt.Errorf("abciadapter: decode simulation_hash: %w", err)
	}
	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   appHash,
	}, nil
}

// Commit persists the simulation, mirroring OCPApp's per-block save-to-disk
// durability policy for a devnet deployment.
func (a *App) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.sim.SaveGame(a.savePath, canon.Null()); err != nil {
		return nil, fmt.Errorf("abciadapter: commit save: %w", err)
	}
	return &abci.CommitResponse{}, nil
}

// Query exposes the current tick and simulation_hash under /status; every
// other path is unrecognized.
func (a *App) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if req.Path != "/status" {
		return &abci.QueryResponse{Code: 1, Log: fmt.Sprintf("unknown query path %q", req.Path)}, nil
	}
	hash, err := a.sim.SimulationHash()
	if err != nil {
		return nil, err
	}
	value, err := json.Marshal(map[string]interface{}{
		"tick":            a.sim.Time().Tick,
		"simulation_hash": hash,
	})
	if err != nil {
		return nil, err
	}
	return &abci.QueryResponse{Code: 0, Value: value}, nil
}
