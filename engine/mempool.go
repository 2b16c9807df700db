package engine

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/freshgrlc/freshgrlc-indexer/model"
)

// mempoolTTL mirrors the expiry of the ancestor's
// `TTLCache(ttl=600, maxsize=4096)`; mempoolCleanInterval is how often
// expired entries are purged. mempoolMaxSize records the ancestor's maxsize
// but is not applied: the tracker's go-cache set has no entry limit.
const (
	mempoolTTL           = 600 * time.Second
	mempoolCleanInterval = 60 * time.Second
	mempoolMaxSize       = 4096
)

// MempoolTracker deduplicates mempool transactions the writer has already
// seen, using a TTL cache rather than a persisted table: once a mempool
// txid falls out of the cache it will simply be re-imported in a way that
// is idempotent (CheckNeedImportTransaction no-ops on an already-known tx).
type MempoolTracker struct {
	seen *cache.Cache
}

// NewMempoolTracker builds an empty tracker.
func NewMempoolTracker() *MempoolTracker {
	return &MempoolTracker{seen: cache.New(mempoolTTL, mempoolCleanInterval)}
}

// QueryMempool imports every txid in the node's current mempool that this
// tracker hasn't seen before. Returns whether it did work.
func (s *Session) QueryMempool(tracker *MempoolTracker, mempoolTxids []string, resolve TxResolver) (bool, error) {
	var newTxids []string
	for _, txid := range mempoolTxids {
		if _, found := tracker.seen.Get(txid); !found {
			newTxids = append(newTxids, txid)
		}
	}
	if len(newTxids) == 0 {
		return false, nil
	}

	for _, txid := range newTxids {
		if _, err := s.CheckNeedImportTransaction(txid, resolve, nil); err != nil {
			return false, fmt.Errorf("importing mempool transaction %s: %w", txid, err)
		}
		tracker.seen.SetDefault(txid, true)
	}
	return true, nil
}

// CheckMempoolForDoubleSpends scans unconfirmed transactions whose inputs
// have since been spent by a different, now-confirmed transaction, and
// records the resulting double-spend link via Transaction.DoubleSpendsID.
// Grounded on the double-spend detection named in §4.F: a confirmed input
// with spentby pointing to a transaction id other than the unconfirmed
// candidate that also referenced it marks the candidate as double-spent.
func (s *Session) CheckMempoolForDoubleSpends() (bool, error) {
	var unconfirmed []model.Transaction
	err := s.db.
		Preload("Inputs.Input").
		Where("confirmation IS NULL AND doublespends IS NULL").
		Find(&unconfirmed).Error
	if err != nil {
		return false, err
	}

	didWork := false
	for _, tx := range unconfirmed {
		for _, in := range tx.Inputs {
			if in.Input == nil || in.Input.SpentByID == nil {
				continue
			}

			var spendingInput model.TransactionInput
			if err := s.db.Where("id = ?", *in.Input.SpentByID).First(&spendingInput).Error; err != nil {
				continue
			}
			if spendingInput.TransactionID == tx.ID {
				continue // this transaction is the one that actually confirmed as the spend
			}

			if err := s.db.Model(&tx).Update("doublespends", spendingInput.TransactionID).Error; err != nil {
				return didWork, err
			}
			didWork = true
			break
		}
	}

	return didWork, nil
}
