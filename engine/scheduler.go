package engine

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

func bytesEqualHex(b []byte, h string) bool {
	decoded, err := hex.DecodeString(h)
	if err != nil || len(decoded) != len(b) {
		return false
	}
	for i := range b {
		if b[i] != decoded[i] {
			return false
		}
	}
	return true
}

// SchedulerState is the scheduler's coarse lifecycle stage, surfaced for
// health/status reporting.
type SchedulerState int

const (
	// StateVerifying is the brief startup pass that reconciles on-disk
	// inconsistencies (coinbase-less blocks, confirmation/block mismatches)
	// before the indexer talks to the node at all.
	StateVerifying SchedulerState = iota
	// StateInitialSync runs sync_blocks to completion before falling
	// through to live tracking.
	StateInitialSync
	// StateLive is steady-state: mempool + tip tracking plus background
	// maintenance, one round-robin step at a time.
	StateLive
)

func (s SchedulerState) String() string {
	switch s {
	case StateVerifying:
		return "verifying"
	case StateInitialSync:
		return "initial-sync"
	case StateLive:
		return "live"
	default:
		return "unknown"
	}
}

// liveStepDeadline is the soft per-maintenance-operation time budget in the
// Live state, matching the spec's "3-second soft deadline" for balance/CDD/
// migration work within one scheduling round.
const liveStepDeadline = 3 * time.Second

// idleSleep is how long the scheduler sleeps when a full round found no
// work at all, mirroring `indexer.py`'s `sleep(1)`.
const idleSleep = 1 * time.Second

// Daemon is the subset of the RPC client the scheduler drives directly:
// chain-tip discovery, block/mempool fetch, and transaction resolution.
type Daemon interface {
	CurrentHeight() (int64, error)
	BlockHash(height int64) (string, error)
	Block(hash string) (*RPCBlock, error)
	Mempool() ([]string, error)
	Transaction(txid string) (*RPCTransaction, error)
	ValidateAddress(address string) (valid bool, scriptPubKeyHex string, err error)
	DecodeScript(hexScript string) (asm string, err error)
}

// Scheduler drives the single writer goroutine through Verifying ->
// InitialSync -> Live, cooperatively yielding at every suspension point
// (RPC round-trip, DB round-trip, or the idle sleep) rather than running
// any work concurrently. Grounded on indexer.py's indexer()/loop() pair.
type Scheduler struct {
	session  *Session
	daemon   Daemon
	mempool  *MempoolTracker
	state    SchedulerState
	log      *logrus.Entry
	lastMuts int64
}

// NewScheduler builds a scheduler around an already-open writer session.
func NewScheduler(session *Session, daemon Daemon, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		session: session,
		daemon:  daemon,
		mempool: NewMempoolTracker(),
		state:   StateVerifying,
		log:     log,
	}
}

// State reports the scheduler's current lifecycle stage.
func (sch *Scheduler) State() SchedulerState { return sch.state }

// Run drives the scheduler forever, until ctx is cancelled. It never
// spawns goroutines of its own: every step below runs to completion on the
// calling goroutine before the next one starts.
func (sch *Scheduler) Run(ctx context.Context) error {
	sch.log.Info("verifying indexed state")
	sch.state = StateVerifying
	if err := sch.session.VerifyIntegrity(); err != nil {
		return fmt.Errorf("verifying indexed state: %w", err)
	}

	sch.log.Info("performing initial sync")
	sch.state = StateInitialSync
	if err := sch.runToConvergence(ctx, sch.SyncBlocks); err != nil {
		return err
	}

	sch.log.Info("switching to live tracking of mempool and chain tip")
	sch.state = StateLive

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := sch.session.ResetSession(); err != nil {
			return err
		}

		didWork, err := sch.liveRound(ctx)
		if err != nil {
			return err
		}

		if !didWork {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idleSleep):
			}
		}
	}
}

// runToConvergence calls step repeatedly until it reports no more work, the
// behavior sync_blocks relies on for the initial catch-up pass.
func (sch *Scheduler) runToConvergence(ctx context.Context, step func() (bool, error)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		did, err := step()
		if err != nil {
			return err
		}
		if !did {
			return nil
		}
	}
}

// liveRound runs one pass of mempool tracking, chain-tip sync, double-spend
// detection, and maintenance work, returning whether anything in the round
// did work (so the caller knows whether to idle-sleep).
func (sch *Scheduler) liveRound(ctx context.Context) (bool, error) {
	mempoolWork, err := sch.QueryMempool()
	if err != nil {
		return false, err
	}

	syncWork, err := sch.SyncBlocks()
	if err != nil {
		return false, err
	}

	dsWork, err := sch.session.CheckMempoolForDoubleSpends()
	if err != nil {
		return false, err
	}

	maintenanceWork, err := sch.runMaintenance(ctx)
	if err != nil {
		return false, err
	}

	return mempoolWork || syncWork || dsWork || maintenanceWork, nil
}

// runMaintenance drives balance reconciliation, CDD accounting, and the
// migration runner, each bounded by its own soft deadline.
func (sch *Scheduler) runMaintenance(ctx context.Context) (bool, error) {
	any := false

	if did, err := sch.runUntilDeadline(sch.updateSingleBalance); err != nil {
		return any, err
	} else {
		any = any || did
	}

	if did, err := sch.runUntilDeadline(sch.session.UpdateCoinDaysDestroyed); err != nil {
		return any, err
	} else {
		any = any || did
	}

	if did, err := sch.runUntilDeadline(sch.migrateOldData); err != nil {
		return any, err
	} else {
		any = any || did
	}

	return any, nil
}

func (sch *Scheduler) runUntilDeadline(step func() (bool, error)) (bool, error) {
	deadline := time.Now().Add(liveStepDeadline)
	any := false

	for time.Now().Before(deadline) {
		did, err := step()
		if err != nil {
			return any, err
		}
		any = any || did
		if !did {
			break
		}
	}
	return any, nil
}

func (sch *Scheduler) updateSingleBalance() (bool, error) {
	addr, err := sch.session.NextDirtyAddress(1, false)
	if err != nil {
		return false, err
	}
	if addr != nil {
		return true, sch.session.UpdateAddressBalance(addr)
	}
	addr, err = sch.session.NextDirtyAddress(2, true)
	if err != nil || addr == nil {
		return false, err
	}
	return true, sch.session.UpdateAddressBalanceSlow(addr)
}

func (sch *Scheduler) migrateOldData() (bool, error) {
	return sch.session.MigrateOldData(func(address string) (string, error) {
		valid, scriptHex, err := sch.daemon.ValidateAddress(address)
		if err != nil || !valid {
			return "", err
		}
		return sch.daemon.DecodeScript(scriptHex)
	})
}

// QueryMempool fetches the node's current mempool and imports anything new.
func (sch *Scheduler) QueryMempool() (bool, error) {
	txids, err := sch.daemon.Mempool()
	if err != nil {
		return false, err
	}
	return sch.session.QueryMempool(sch.mempool, txids, sch.daemon.Transaction)
}

// SyncBlocks finds the common ancestor with the node's current chain,
// orphans any blocks beyond it, and imports everything up to the node's
// reported tip. Grounded on find_common_ancestor/sync_blocks.
func (sch *Scheduler) SyncBlocks() (bool, error) {
	ancestorHeight, indexerHeight, chainHeight, err := sch.findCommonAncestor()
	if err != nil {
		return false, err
	}

	if ancestorHeight == chainHeight {
		return false, nil
	}

	if ancestorHeight < indexerHeight {
		if err := sch.session.OrphanBlocks(ancestorHeight + 1); err != nil {
			return false, err
		}
	}

	for height := ancestorHeight + 1; height <= chainHeight; height++ {
		if err := sch.importBlockHeight(height); err != nil {
			return false, err
		}
	}

	return true, nil
}

func (sch *Scheduler) importBlockHeight(height int64) error {
	hash, err := sch.daemon.BlockHash(height)
	if err != nil {
		return err
	}
	block, err := sch.daemon.Block(hash)
	if err != nil {
		return err
	}
	_, err = sch.session.ImportBlock(block, sch.daemon.Transaction)
	return err
}

// findCommonAncestor walks backward from the indexer's recorded tip until
// it finds a height whose hash still matches the node, the reorg-detection
// core of component D.
func (sch *Scheduler) findCommonAncestor() (ancestorHeight, indexerHeight, chainHeight int64, err error) {
	chainHeight, err = sch.daemon.CurrentHeight()
	if err != nil {
		return 0, 0, 0, err
	}

	tip, err := sch.session.ChainTip()
	if err != nil {
		return 0, 0, 0, err
	}
	if tip == nil {
		return -1, -1, chainHeight, nil
	}

	indexerHeight = *tip.Height
	ancestorHeight = indexerHeight

	chainHash, err := sch.daemon.BlockHash(ancestorHeight)
	if err != nil {
		return 0, 0, 0, err
	}

	if !bytesEqualHex(tip.Hash, chainHash) {
		ancestorHeight--
		for ancestorHeight > 0 {
			chainHash, err = sch.daemon.BlockHash(ancestorHeight)
			if err != nil {
				return 0, 0, 0, err
			}
			block, err := sch.session.BlockByHeight(ancestorHeight)
			if err != nil {
				return 0, 0, 0, err
			}
			if block != nil && bytesEqualHex(block.Hash, chainHash) {
				break
			}
			ancestorHeight--
		}
	}

	return ancestorHeight, indexerHeight, chainHeight, nil
}
