package engine

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/freshgrlc/freshgrlc-indexer/model"
)

// ImportBlock inserts or reconfirms one block, grounded directly on
// database.py's import_blockinfo. A block already on record (e.g. an
// orphan being reconfirmed) just gets its height updated and the counter
// cache invalidated; the transactions OrphanBlock unconfirmed are not
// re-confirmed on this path (VerifyIntegrity relinks them at the next
// startup). A brand new block imports every listed transaction, confirms
// each, attributes the coinbase, and bumps the running counters.
//
// The whole import is one atomic unit: a failure at any step (a bad RPC
// response, a coinbase with no resolvable payout, a database error) rolls
// back everything this call has written so far, rather than leaving a
// half-imported block on record.
func (s *Session) ImportBlock(b *RPCBlock, resolve TxResolver) (*model.Block, error) {
	if err := s.Begin(); err != nil {
		return nil, err
	}

	block, err := s.importBlock(b, resolve)
	if err != nil {
		s.ResetSession()
		return nil, err
	}

	if err := s.Commit(); err != nil {
		return nil, err
	}
	return block, nil
}

// genesisHeight is the one height with no coinbase signature worth looking
// for: the node's genesis block was not mined in the ordinary sense, so
// coinbase attribution is skipped for it entirely rather than treated as a
// transaction-resolution failure.
const genesisHeight = 0

func (s *Session) importBlock(b *RPCBlock, resolve TxResolver) (*model.Block, error) {
	hashBytes, err := hex.DecodeString(b.Hash)
	if err != nil {
		return nil, fmt.Errorf("decoding block hash %s: %w", b.Hash, err)
	}

	cbSigs := map[string]coinbaseSignature{}
	for _, txid := range b.Tx {
		if _, err := s.CheckNeedImportTransaction(txid, resolve, cbSigs); err != nil {
			return nil, fmt.Errorf("importing transaction %s for block %s: %w", txid, b.Hash, err)
		}
	}

	var existing model.Block
	err = s.db.Where("hash = ?", hashBytes).First(&existing).Error
	if err == nil {
		height := b.Height
		if err := s.db.Model(&existing).Update("height", height).Error; err != nil {
			return nil, fmt.Errorf("updating reconfirmed block %s: %w", b.Hash, err)
		}
		if err := s.Counters().Invalidate(); err != nil {
			return nil, err
		}
		s.InvalidateChainTip()
		return &existing, nil
	}

	counters := s.Counters()
	valid, err := counters.IsValid(model.AllCacheIDs)
	if err != nil {
		return nil, err
	}
	if !valid {
		if err := s.recalcCounters(); err != nil {
			return nil, err
		}
	}

	block := &model.Block{
		Hash:       hashBytes,
		Height:     &b.Height,
		Size:       b.Size,
		Difficulty: b.Difficulty,
		Timestamp:  time.Unix(b.Time, 0).UTC(),
	}
	if b.RelayedAt != nil {
		t := time.Unix(*b.RelayedAt, 0).UTC()
		block.FirstSeen = &t
	}
	if b.RelayedBy != "" {
		block.RelayedBy = &b.RelayedBy
	}

	if err := s.db.Create(block).Error; err != nil {
		return nil, fmt.Errorf("inserting block %s: %w", b.Hash, err)
	}

	var totalFee float64
	for i, txid := range b.Tx {
		txRow, err := s.ConfirmTransaction(txid, block.ID, resolve)
		if err != nil {
			return nil, fmt.Errorf("confirming transaction %s in block %s: %w", txid, b.Hash, err)
		}
		if err := s.db.Model(&model.BlockTransaction{}).
			Where("block = ? AND `transaction` = ?", block.ID, txRow.ID).
			Update("position", i).Error; err != nil {
			return nil, fmt.Errorf("recording position of transaction %s in block %s: %w", txid, b.Hash, err)
		}
		totalFee += txRow.Fee
	}

	if err := s.db.Model(block).Update("totalfee", totalFee).Error; err != nil {
		return nil, fmt.Errorf("updating block %s total fee: %w", b.Hash, err)
	}
	block.TotalFee = totalFee

	if b.Height != genesisHeight {
		if len(cbSigs) == 0 {
			return nil, fmt.Errorf("block %s: no coinbase transaction found among %d transactions", b.Hash, len(b.Tx))
		}
		var cbTxid string
		var cbSig coinbaseSignature
		for k, v := range cbSigs {
			cbTxid, cbSig = k, v
			break
		}

		if err := s.addCoinbaseData(block, cbTxid, cbSig); err != nil {
			return nil, fmt.Errorf("recording coinbase data for block %s: %w", b.Hash, err)
		}

		if block.RelayedBy != nil {
			if err := s.db.Model(&model.Transaction{}).
				Where("txid = ?", mustHex(cbTxid)).
				Updates(map[string]interface{}{"firstseen": block.FirstSeen, "relayedby": block.RelayedBy}).Error; err != nil {
				return nil, fmt.Errorf("backfilling coinbase tx relay info for block %s: %w", b.Hash, err)
			}
		}
	}

	if err := counters.Increment(model.CacheTotalBlocks, 1); err != nil {
		return nil, err
	}
	if err := counters.Increment(model.CacheTotalFees, totalFee); err != nil {
		return nil, err
	}
	if err := counters.Increment(model.CacheTotalTransactions, float64(len(b.Tx)-len(cbSigs))); err != nil {
		return nil, err
	}

	s.InvalidateChainTip()
	return block, nil
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func (s *Session) recalcCounters() error {
	counters := s.Counters()

	blockValid, err := counters.IsValid(model.BlockCacheIDs)
	if err != nil {
		return err
	}
	if !blockValid {
		if _, err := counters.TotalBlocks(); err != nil {
			return err
		}
		if _, err := counters.TotalFees(); err != nil {
			return err
		}
		if _, err := counters.TotalCoinsReleased(); err != nil {
			return err
		}
	}

	txValid, err := counters.IsValid(model.TransactionCacheIDs)
	if err != nil {
		return err
	}
	if !txValid {
		if _, err := counters.TotalTransactions(); err != nil {
			return err
		}
	}
	return nil
}

// ConfirmTransaction marks a transaction confirmed in the given block,
// importing it first if the writer hasn't seen it. Mirrors
// confirm_transaction's raw-SQL spent-link and dirty-flag fan-out.
//
// Wrapped in its own atomic unit so a standalone caller gets all-or-nothing
// semantics; called from inside ImportBlock it just nests under that
// call's already-open transaction.
func (s *Session) ConfirmTransaction(txid string, blockID int64, resolve TxResolver) (*model.Transaction, error) {
	if err := s.Begin(); err != nil {
		return nil, err
	}
	row, err := s.confirmTransaction(txid, blockID, resolve)
	if err != nil {
		s.ResetSession()
		return nil, err
	}
	if err := s.Commit(); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *Session) confirmTransaction(txid string, blockID int64, resolve TxResolver) (*model.Transaction, error) {
	txInternalID, err := s.CheckNeedImportTransaction(txid, resolve, nil)
	if err != nil {
		return nil, err
	}

	var blockref model.BlockTransaction
	err = s.db.Where("block = ? AND `transaction` = ?", blockID, txInternalID).First(&blockref).Error
	if err != nil {
		blockref = model.BlockTransaction{BlockID: blockID, TransactionID: txInternalID}
		if err := s.db.Create(&blockref).Error; err != nil {
			return nil, fmt.Errorf("creating blocktx reference: %w", err)
		}
	}

	if err := s.linkConfirmedTransaction(txInternalID, blockref.ID); err != nil {
		return nil, err
	}

	var row model.Transaction
	if err := s.db.Where("id = ?", txInternalID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// linkConfirmedTransaction stamps a transaction's confirmation pointer and
// fans that out to the spent-link and dirty-balance bookkeeping a fresh
// confirmation implies. Shared by confirmTransaction and the startup
// verification pass's re-confirm step, since both end up wiring the same
// (transaction, blocktx) pair together.
func (s *Session) linkConfirmedTransaction(txInternalID, blockTxID int64) error {
	if err := s.db.Exec("UPDATE `transaction` SET `confirmation` = ? WHERE `id` = ?", blockTxID, txInternalID).Error; err != nil {
		return err
	}
	if err := s.db.Exec(
		"UPDATE `txout` LEFT JOIN `txin` ON `txout`.`id` = `txin`.`input` SET `spentby` = `txin`.`id` WHERE `txin`.`transaction` = ?",
		txInternalID,
	).Error; err != nil {
		return err
	}
	if err := s.db.Exec(
		"UPDATE `address` JOIN `txout` ON `txout`.`address` = `address`.`id` SET `address`.`balance_dirty` = 1 WHERE `txout`.`transaction` = ?",
		txInternalID,
	).Error; err != nil {
		return err
	}
	return s.db.Exec(
		"UPDATE `address` JOIN `txout` ON `txout`.`address` = `address`.`id` JOIN `txin` ON `txin`.`input` = `txout`.`id` SET `address`.`balance_dirty` = 1 WHERE `txin`.`transaction` = ?",
		txInternalID,
	).Error
}

// addCoinbaseData records the per-block coinbase signature/payout metadata
// and attributes the block to a miner. Mirrors add_coinbase_data: the
// dominant payout is whichever output carries >95% of the coinbase's total
// payout value.
func (s *Session) addCoinbaseData(block *model.Block, txid string, sig coinbaseSignature) error {
	txInternalID, ok := s.lookupTxid(txid)
	if !ok {
		return fmt.Errorf("coinbase transaction %s not found", txid)
	}

	raw, err := hex.DecodeString(sig.raw)
	if err != nil {
		return fmt.Errorf("decoding coinbase script for %s: %w", txid, err)
	}

	var totalOut float64
	for _, o := range sig.outputs {
		totalOut += o.value
	}

	info := &model.CoinbaseInfo{
		BlockID:       block.ID,
		TransactionID: txInternalID,
		Raw:           raw,
		NewCoins:      totalOut - block.TotalFee,
	}

	var dominant *coinbasePayout
	threshold := totalOut * 95 / 100
	for i, o := range sig.outputs {
		if o.value > threshold {
			dominant = &sig.outputs[i]
			break
		}
	}

	if dominant != nil {
		var out model.TransactionOutput
		if err := s.db.Where("transaction = ? AND `index` = ?", txInternalID, dominant.index).First(&out).Error; err == nil {
			info.MainOutputID = &out.ID
		}
	}

	solo := len(raw) <= 8
	if !solo {
		if strings.HasSuffix(string(raw), "/") {
			parts := strings.Split(string(raw), "/")
			if len(parts) >= 3 {
				tag := parts[len(parts)-2]
				signature := "/" + tag + "/"
				info.Signature = &signature
			}
		}
	}

	if err := s.db.Create(info).Error; err != nil {
		return fmt.Errorf("inserting coinbase info for block %d: %w", block.ID, err)
	}

	if err := s.Counters().Increment(model.CacheTotalCoinsReleased, info.NewCoins); err != nil {
		return err
	}

	return s.findAndSetMiner(block, info, solo)
}

// findAndSetMiner mirrors find_and_set_miner: first try a known coinbase
// signature, then a known payout address, then synthesize a new Pool row
// (attributed to the solo-miner group when the signature was too short to
// be a recognisable pool tag).
func (s *Session) findAndSetMiner(block *model.Block, info *model.CoinbaseInfo, solo bool) error {
	if !solo && info.Signature != nil {
		var cbsig model.PoolCoinbaseSignature
		if err := s.db.Where("signature = ?", *info.Signature).First(&cbsig).Error; err == nil {
			return s.db.Model(block).Update("miner", cbsig.PoolID).Error
		}
	}

	if info.MainOutputID == nil {
		return nil
	}
	var mainOutput model.TransactionOutput
	if err := s.db.Where("id = ?", *info.MainOutputID).First(&mainOutput).Error; err != nil || mainOutput.AddressID == nil {
		return nil
	}

	var poolAddr model.PoolAddress
	err := s.db.Where("address = ?", *mainOutput.AddressID).First(&poolAddr).Error
	if err == nil {
		return s.db.Model(block).Update("miner", poolAddr.PoolID).Error
	}

	var addr model.Address
	if err := s.db.Where("id = ?", *mainOutput.AddressID).First(&addr).Error; err != nil {
		return err
	}
	addrString := ""
	if addr.Address != nil {
		addrString = *addr.Address
	}

	label := "(Unknown Pool)"
	var groupID *int64
	if solo {
		label = "(Solo miner)"
		g := int64(model.SoloPoolGroupID)
		groupID = &g
	}

	newPool := &model.Pool{
		GroupID: groupID,
		Name:    addrString + " " + label,
		Solo:    solo,
	}
	if err := s.db.Create(newPool).Error; err != nil {
		return fmt.Errorf("creating synthetic pool for %s: %w", addrString, err)
	}

	if err := s.db.Create(&model.PoolAddress{AddressID: *mainOutput.AddressID, PoolID: newPool.ID}).Error; err != nil {
		return fmt.Errorf("recording pool address for %s: %w", addrString, err)
	}

	return s.db.Model(block).Update("miner", newPool.ID).Error
}

// OrphanBlocks unconfirms every block from the current chain tip down to
// (and including) firstHeight, then invalidates the counter cache — a full
// recalc is cheaper to reason about than tracking the reorg's exact delta.
//
// The whole unwind is one atomic unit: a failure partway down leaves none
// of the targeted blocks orphaned, rather than a chain with some heights
// cleared and others not.
func (s *Session) OrphanBlocks(firstHeight int64) error {
	if err := s.Begin(); err != nil {
		return err
	}
	if err := s.orphanBlocks(firstHeight); err != nil {
		s.ResetSession()
		return err
	}
	return s.Commit()
}

func (s *Session) orphanBlocks(firstHeight int64) error {
	tip, err := s.ChainTip()
	if err != nil {
		return err
	}
	if tip == nil || tip.Height == nil {
		return nil
	}

	for h := *tip.Height; h >= firstHeight; h-- {
		if err := s.OrphanBlock(h); err != nil {
			return fmt.Errorf("orphaning block at height %d: %w", h, err)
		}
	}

	return s.Counters().Invalidate()
}

// OrphanBlock clears one block's height and unconfirms its transactions.
func (s *Session) OrphanBlock(height int64) error {
	var block model.Block
	err := s.db.Where("height = ?", height).First(&block).Error
	if err != nil {
		return nil
	}

	var refs []model.BlockTransaction
	if err := s.db.Where("block = ?", block.ID).Find(&refs).Error; err != nil {
		return err
	}

	for _, ref := range refs {
		if err := s.UnconfirmTransaction(ref.TransactionID); err != nil {
			return err
		}
	}

	if err := s.db.Model(&block).Update("height", nil).Error; err != nil {
		return err
	}
	s.InvalidateChainTip()
	return nil
}

// UnconfirmTransaction clears a transaction's confirmation, marks every
// address it touched dirty, and re-opens its inputs' spent-links.
func (s *Session) UnconfirmTransaction(txInternalID int64) error {
	var tx model.Transaction
	if err := s.db.Preload("Outputs").Preload("Inputs.Input").Where("id = ?", txInternalID).First(&tx).Error; err != nil {
		return err
	}

	if err := s.db.Model(&tx).Update("confirmation", nil).Error; err != nil {
		return err
	}

	for _, out := range tx.Outputs {
		if out.AddressID != nil {
			if err := s.db.Model(&model.Address{}).Where("id = ?", *out.AddressID).Update("balance_dirty", model.BalanceDirtyFast).Error; err != nil {
				return err
			}
		}
	}
	for _, in := range tx.Inputs {
		if in.Input == nil {
			continue
		}
		if in.Input.AddressID != nil {
			if err := s.db.Model(&model.Address{}).Where("id = ?", *in.Input.AddressID).Update("balance_dirty", model.BalanceDirtyFast).Error; err != nil {
				return err
			}
		}
		if err := s.db.Model(&model.TransactionOutput{}).Where("id = ?", in.Input.ID).Update("spentby", nil).Error; err != nil {
			return err
		}
	}

	return nil
}

// VerifyIntegrity is the writer's startup recovery pass, run once before the
// scheduler enters initial sync: it repairs whatever inconsistency a prior
// run might have left behind before every write path in this package was
// wrapped in a real transaction, then catches ordinary non-atomicity between
// a Block row and its referencing Transaction rows (e.g. a row restored from
// a backup taken mid-write). It never talks to the node; it only reconciles
// what's already on disk.
func (s *Session) VerifyIntegrity() error {
	if err := s.Begin(); err != nil {
		return err
	}
	if err := s.verifyIntegrity(); err != nil {
		s.ResetSession()
		return err
	}
	return s.Commit()
}

func (s *Session) verifyIntegrity() error {
	if err := s.deleteCoinbaselessBlocks(); err != nil {
		return err
	}
	if err := s.reconcileConfirmations(); err != nil {
		return err
	}
	s.InvalidateChainTip()
	return s.Counters().Invalidate()
}

// deleteCoinbaselessBlocks removes any on-chain block that was never given a
// CoinbaseInfo row — a block import that crashed between inserting the block
// and recording its coinbase data. The genesis block is exempt: it never
// gets coinbase metadata (see genesisHeight in ImportBlock).
func (s *Session) deleteCoinbaselessBlocks() error {
	var blocks []model.Block
	if err := s.db.Preload("CoinbaseInfo").Where("height IS NOT NULL").Find(&blocks).Error; err != nil {
		return err
	}

	for i := range blocks {
		b := &blocks[i]
		if b.Height != nil && *b.Height == genesisHeight {
			continue
		}
		if b.CoinbaseInfo != nil {
			continue
		}
		if err := s.deleteBlock(b); err != nil {
			return fmt.Errorf("deleting coinbase-less block %d: %w", b.ID, err)
		}
	}
	return nil
}

// deleteBlock unconfirms every transaction the block references, drops the
// blocktx join rows, and removes the block itself.
func (s *Session) deleteBlock(b *model.Block) error {
	var refs []model.BlockTransaction
	if err := s.db.Where("block = ?", b.ID).Find(&refs).Error; err != nil {
		return err
	}

	for _, ref := range refs {
		if err := s.UnconfirmTransaction(ref.TransactionID); err != nil {
			return err
		}
		if err := s.db.Delete(&model.BlockTransaction{}, "id = ?", ref.ID).Error; err != nil {
			return err
		}
	}

	return s.db.Delete(&model.Block{}, "id = ?", b.ID).Error
}

// reconcileConfirmations fixes mismatches between a transaction's
// confirmation pointer and the block it's actually linked to via blocktx:
// a confirmed block whose transaction rows forgot to pick up their
// confirmation pointer get re-confirmed, and a transaction still pointing at
// an orphaned (NULL-height) block gets unconfirmed.
func (s *Session) reconcileConfirmations() error {
	type confirmRow struct {
		TransactionID int64
		BlockTxID     int64
	}
	var toConfirm []confirmRow
	if err := s.db.Table("blocktx").
		Select("blocktx.transaction as transaction_id, blocktx.id as block_tx_id").
		Joins("JOIN `transaction` ON `transaction`.id = blocktx.transaction").
		Joins("JOIN block ON block.id = blocktx.block").
		Where("block.height IS NOT NULL AND `transaction`.confirmation IS NULL").
		Scan(&toConfirm).Error; err != nil {
		return fmt.Errorf("finding unconfirmed transactions of confirmed blocks: %w", err)
	}
	for _, r := range toConfirm {
		if err := s.linkConfirmedTransaction(r.TransactionID, r.BlockTxID); err != nil {
			return fmt.Errorf("re-confirming transaction %d: %w", r.TransactionID, err)
		}
	}

	var toUnconfirm []int64
	if err := s.db.Table("transaction").
		Select("`transaction`.id").
		Joins("JOIN blocktx ON blocktx.id = `transaction`.confirmation").
		Joins("JOIN block ON block.id = blocktx.block").
		Where("block.height IS NULL").
		Pluck("`transaction`.id", &toUnconfirm).Error; err != nil {
		return fmt.Errorf("finding transactions confirmed into orphaned blocks: %w", err)
	}
	for _, txInternalID := range toUnconfirm {
		if err := s.UnconfirmTransaction(txInternalID); err != nil {
			return fmt.Errorf("unconfirming transaction %d: %w", txInternalID, err)
		}
	}

	return nil
}
