package engine

import (
	"github.com/freshgrlc/freshgrlc-indexer/model"
)

// cddBatchSize is the batch size update_coindays_destroyed processes per
// call, matching the spec's "batches of ~50".
const cddBatchSize = 50

// UpdateCoinDaysDestroyed computes and persists coin-days-destroyed for one
// batch of confirmed, non-coinbase transactions that don't have a row yet.
// Returns whether it found anything to do, for the scheduler's "did work"
// polling convention.
func (s *Session) UpdateCoinDaysDestroyed() (bool, error) {
	var txs []model.Transaction
	err := s.db.
		Joins("JOIN blocktx ON blocktx.id = `transaction`.confirmation").
		Joins("LEFT JOIN coindaysdestroyed ON coindaysdestroyed.transaction = `transaction`.id").
		Joins("LEFT JOIN coinbase ON coinbase.transaction = `transaction`.id").
		Where("`transaction`.confirmation IS NOT NULL AND coindaysdestroyed.transaction IS NULL AND coinbase.transaction IS NULL").
		Order("blocktx.block, `transaction`.id").
		Limit(cddBatchSize).
		Preload("Inputs.Input.Transaction").
		Preload("Inputs.Input.Transaction.Confirmation.Block").
		Preload("Confirmation.Block").
		Find(&txs).Error
	if err != nil {
		return false, err
	}
	if len(txs) == 0 {
		return false, nil
	}

	for _, tx := range txs {
		coindays, err := s.computeCoinDaysDestroyed(&tx)
		if err != nil {
			return false, err
		}
		if err := s.db.Create(&model.CoinDaysDestroyed{TransactionID: tx.ID, CoinDays: coindays}).Error; err != nil {
			return false, err
		}
	}

	return true, nil
}

func (s *Session) computeCoinDaysDestroyed(tx *model.Transaction) (float64, error) {
	txTime := tx.Timestamp()

	var total float64
	for _, in := range tx.Inputs {
		if in.Input == nil || in.Input.Transaction == nil {
			continue
		}
		source := in.Input.Transaction.Timestamp()
		age := txTime.Sub(source).Seconds() / 86400
		if age < 0 {
			age = 0
		}
		total += in.Input.Amount * age
	}

	return total, nil
}
