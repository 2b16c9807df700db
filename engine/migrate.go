package engine

import (
	"fmt"

	"github.com/freshgrlc/freshgrlc-indexer/model"
)

// migrationBatchSize bounds each MigrateOldData call's unit of work, same
// spirit as the CDD batch: small enough that the scheduler's soft deadline
// check between calls stays responsive.
const migrationBatchSize = 50

// migrationPhases runs in this fixed order; a phase is skipped once its
// MigrationCursor row is marked complete.
var migrationPhases = []string{"mutations", "address_script", "block_totalfee", "coinbase_newcoins"}

// AddressScriptResolver decodes an address's raw output script via the
// node's validateaddress/decodescript RPCs, used only by the address_script
// backfill phase for rows the original importer never recorded `raw` for.
type AddressScriptResolver func(address string) (raw string, err error)

// MigrateOldData advances the data-backfill runner by one unit of work in
// its current phase, moving to the next phase once the current one is
// exhausted. Returns whether it did anything.
func (s *Session) MigrateOldData(resolveScript AddressScriptResolver) (bool, error) {
	phase, err := s.currentMigrationPhase()
	if err != nil {
		return false, err
	}
	if phase == "" {
		return false, nil // every phase complete
	}

	switch phase {
	case "mutations":
		return s.migrateMutationsPhase()
	case "address_script":
		return s.migrateAddressScriptPhase(resolveScript)
	case "block_totalfee":
		return s.migrateBlockTotalFeePhase()
	case "coinbase_newcoins":
		return s.migrateCoinbaseNewcoinsPhase()
	default:
		return false, fmt.Errorf("migrate: unknown phase %q", phase)
	}
}

func (s *Session) currentMigrationPhase() (string, error) {
	for _, phase := range migrationPhases {
		var cursor model.MigrationCursor
		err := s.db.Where("phase = ?", phase).First(&cursor).Error
		if err != nil {
			return phase, nil // no cursor yet: phase hasn't started
		}
		if !cursor.Complete {
			return phase, nil
		}
	}
	return "", nil
}

func (s *Session) cursorFor(phase string) (*model.MigrationCursor, error) {
	var cursor model.MigrationCursor
	err := s.db.Where("phase = ?", phase).First(&cursor).Error
	if err != nil {
		cursor = model.MigrationCursor{Phase: phase}
		if err := s.db.Create(&cursor).Error; err != nil {
			return nil, err
		}
	}
	return &cursor, nil
}

func (s *Session) advanceCursor(cursor *model.MigrationCursor, lastID int64, complete bool) error {
	return s.db.Model(cursor).Updates(map[string]interface{}{"last_id": lastID, "complete": complete}).Error
}

// migrateMutationsPhase backfills Mutation rows for transactions imported
// before the mutation table existed.
func (s *Session) migrateMutationsPhase() (bool, error) {
	cursor, err := s.cursorFor("mutations")
	if err != nil {
		return false, err
	}

	var txs []model.Transaction
	err = s.db.
		Joins("LEFT JOIN mutation ON mutation.transaction = `transaction`.id").
		Where("`transaction`.id > ? AND mutation.id IS NULL", cursor.LastID).
		Group("`transaction`.id").
		Order("`transaction`.id").
		Limit(migrationBatchSize).
		Find(&txs).Error
	if err != nil {
		return false, err
	}
	if len(txs) == 0 {
		return false, s.advanceCursor(cursor, cursor.LastID, true)
	}

	for _, tx := range txs {
		if err := s.addTxMutationsInfo(tx.ID); err != nil {
			return false, err
		}
	}

	return true, s.advanceCursor(cursor, txs[len(txs)-1].ID, false)
}

// migrateAddressScriptPhase backfills Address.raw for base58/bech32
// addresses that were recorded without their decoded script.
func (s *Session) migrateAddressScriptPhase(resolve AddressScriptResolver) (bool, error) {
	cursor, err := s.cursorFor("address_script")
	if err != nil {
		return false, err
	}

	var addrs []model.Address
	err = s.db.
		Where("id > ? AND raw IS NULL AND type IN (?, ?)", cursor.LastID, model.AddressBase58, model.AddressBech32).
		Order("id").
		Limit(migrationBatchSize).
		Find(&addrs).Error
	if err != nil {
		return false, err
	}
	if len(addrs) == 0 {
		return false, s.advanceCursor(cursor, cursor.LastID, true)
	}

	for _, addr := range addrs {
		if addr.Address == nil {
			continue
		}
		raw, err := resolve(*addr.Address)
		if err != nil {
			return false, fmt.Errorf("resolving script for address %s: %w", *addr.Address, err)
		}
		if err := s.db.Model(&addr).Update("raw", raw).Error; err != nil {
			return false, err
		}
	}

	return true, s.advanceCursor(cursor, addrs[len(addrs)-1].ID, false)
}

// migrateBlockTotalFeePhase backfills Block.totalfee as the sum of its
// transactions' fees, for blocks imported before that running total was
// maintained incrementally.
func (s *Session) migrateBlockTotalFeePhase() (bool, error) {
	cursor, err := s.cursorFor("block_totalfee")
	if err != nil {
		return false, err
	}

	var blocks []model.Block
	err = s.db.
		Where("id > ? AND totalfee = 0 AND height IS NOT NULL", cursor.LastID).
		Order("id").
		Limit(migrationBatchSize).
		Find(&blocks).Error
	if err != nil {
		return false, err
	}
	if len(blocks) == 0 {
		return false, s.advanceCursor(cursor, cursor.LastID, true)
	}

	for _, block := range blocks {
		var totalFee float64
		row := s.db.Table("transaction").
			Joins("JOIN blocktx ON blocktx.transaction = `transaction`.id").
			Where("blocktx.block = ?", block.ID).
			Select("COALESCE(SUM(`transaction`.fee), 0)").Row()
		if err := row.Scan(&totalFee); err != nil {
			return false, err
		}
		if err := s.db.Model(&block).Update("totalfee", totalFee).Error; err != nil {
			return false, err
		}
	}

	return true, s.advanceCursor(cursor, blocks[len(blocks)-1].ID, false)
}

// migrateCoinbaseNewcoinsPhase backfills CoinbaseInfo.newcoins as
// tx.totalvalue - block.totalfee, for coinbase rows imported before that
// subsidy was computed and stored directly.
func (s *Session) migrateCoinbaseNewcoinsPhase() (bool, error) {
	cursor, err := s.cursorFor("coinbase_newcoins")
	if err != nil {
		return false, err
	}

	var infos []model.CoinbaseInfo
	err = s.db.
		Where("block > ? AND newcoins = 0", cursor.LastID).
		Order("block").
		Limit(migrationBatchSize).
		Find(&infos).Error
	if err != nil {
		return false, err
	}
	if len(infos) == 0 {
		return false, s.advanceCursor(cursor, cursor.LastID, true)
	}

	for _, info := range infos {
		var tx model.Transaction
		if err := s.db.Where("id = ?", info.TransactionID).First(&tx).Error; err != nil {
			return false, err
		}
		var block model.Block
		if err := s.db.Where("id = ?", info.BlockID).First(&block).Error; err != nil {
			return false, err
		}

		newcoins := tx.TotalValue - block.TotalFee
		if err := s.db.Model(&info).Update("newcoins", newcoins).Error; err != nil {
			return false, err
		}
	}

	return true, s.advanceCursor(cursor, infos[len(infos)-1].BlockID, false)
}
