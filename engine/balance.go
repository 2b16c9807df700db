package engine

import (
	"github.com/freshgrlc/freshgrlc-indexer/model"
)

// slowBalanceUTXOThreshold is the UTXO count above which an address's
// balance recompute is deferred to the background slow path rather than
// done inline, mirroring update_address_balance's `skip = utxos > 5000`.
const slowBalanceUTXOThreshold = 5000

// NextDirtyAddress returns the next address in the given dirty state, or
// nil if none remain. randomOrder selects the background slow path's
// random pick (to avoid always retrying the same stuck address first).
func (s *Session) NextDirtyAddress(state model.BalanceDirty, randomOrder bool) (*model.Address, error) {
	var addr model.Address
	q := s.db.Where("balance_dirty = ?", state)
	if randomOrder {
		q = q.Order("RAND()")
	} else {
		q = q.Order("id")
	}

	err := q.First(&addr).Error
	if err != nil {
		return nil, nil
	}
	return &addr, nil
}

// addressBalance computes an address's confirmed, unspent balance directly
// from txout/transaction, bypassing the Balance column.
func (s *Session) addressBalance(addressID int64) (float64, error) {
	var balance float64
	row := s.db.Table("txout").
		Joins("JOIN `transaction` ON txout.transaction = transaction.id").
		Where("txout.address = ? AND txout.spentby IS NULL AND transaction.confirmation IS NOT NULL", addressID).
		Select("COALESCE(SUM(txout.amount), 0.0)").Row()
	if err := row.Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// UpdateAddressBalance recomputes a dirty(fast) address's balance inline,
// deferring to the slow path when it owns too many UTXOs to do cheaply.
// Grounded on update_address_balance.
func (s *Session) UpdateAddressBalance(addr *model.Address) error {
	var utxoCount int64
	if err := s.db.Model(&model.TransactionOutput{}).
		Where("address = ? AND spentby IS NULL", addr.ID).Count(&utxoCount).Error; err != nil {
		return err
	}

	if utxoCount > slowBalanceUTXOThreshold {
		return s.db.Model(addr).Update("balance_dirty", model.BalanceDirtySlow).Error
	}

	balance, err := s.addressBalance(addr.ID)
	if err != nil {
		return err
	}

	return s.db.Model(addr).Updates(map[string]interface{}{"balance_dirty": model.BalanceClean, "balance": balance}).Error
}

// UpdateAddressBalanceSlow recomputes a dirty(slow) address's balance in
// the background worker: it marks the address in-progress first, computes
// without holding a transaction open, then writes back only if nothing
// else touched the address (its balance_dirty flag is still in-progress)
// while the computation ran. Grounded on update_address_balance_slow.
func (s *Session) UpdateAddressBalanceSlow(addr *model.Address) error {
	if err := s.db.Model(addr).Update("balance_dirty", model.BalanceInProgressSlow).Error; err != nil {
		return err
	}

	balance, err := s.addressBalance(addr.ID)
	if err != nil {
		return err
	}

	var fresh model.Address
	if err := s.db.Where("id = ?", addr.ID).First(&fresh).Error; err != nil {
		return err
	}

	if fresh.BalanceDirty != model.BalanceInProgressSlow {
		return nil // something re-dirtied it while we were computing; leave it for the next pass
	}

	return s.db.Model(&fresh).Updates(map[string]interface{}{"balance_dirty": model.BalanceClean, "balance": balance}).Error
}

// ResetSlowAddressBalanceUpdates reverts every in-progress-slow address
// back to dirty(slow), run once at worker startup so an update interrupted
// by a previous crash gets retried instead of stuck forever.
func (s *Session) ResetSlowAddressBalanceUpdates() error {
	return s.db.Model(&model.Address{}).
		Where("balance_dirty = ?", model.BalanceInProgressSlow).
		Update("balance_dirty", model.BalanceDirtySlow).Error
}

// AddressPendingBalance sums every unconfirmed mutation touching address,
// mirroring address_pending_balance.
func (s *Session) AddressPendingBalance(addressID int64) (float64, error) {
	var sum float64
	row := s.db.Table("mutation").
		Joins("JOIN `transaction` ON mutation.transaction = transaction.id").
		Where("mutation.address = ? AND transaction.confirmation IS NULL", addressID).
		Select("COALESCE(SUM(mutation.amount), 0.0)").Row()
	if err := row.Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}
