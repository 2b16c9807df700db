package engine

import (
	"github.com/freshgrlc/freshgrlc-indexer/model"
)

// CounterCache is the persisted aggregate-counter cache (total transactions,
// total blocks, total fees, total coins released), grounded on the
// ancestor's database.py Cache class: each counter is a CachedValue row
// with a valid flag, recomputed lazily rather than on every write.
type CounterCache struct {
	s *Session
}

// Counters returns the counter cache view over this session.
func (s *Session) Counters() *CounterCache {
	return &CounterCache{s: s}
}

func (c *CounterCache) get(id model.CacheID) (*model.CachedValue, error) {
	var v model.CachedValue
	err := c.s.db.Where("id = ?", id).First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Set overwrites a counter's value and marks it valid.
func (c *CounterCache) Set(id model.CacheID, value float64) error {
	return c.s.db.Model(&model.CachedValue{}).Where("id = ?", id).
		Updates(map[string]interface{}{"value": value, "valid": true}).Error
}

// Invalidate marks every counter stale, used after a reorg whose extent
// makes incremental counter maintenance unsafe to trust.
func (c *CounterCache) Invalidate() error {
	return c.s.db.Exec("UPDATE `cachedvalue` SET `valid` = 0 WHERE 1 = 1").Error
}

// IsValid reports whether every counter in ids is currently valid.
func (c *CounterCache) IsValid(ids []model.CacheID) (bool, error) {
	var count int
	err := c.s.db.Model(&model.CachedValue{}).
		Where("id IN (?) AND valid = ?", ids, false).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// Increment adds delta to a counter's persisted value, leaving its valid
// flag untouched — used for the cheap incremental maintenance path when a
// block or transaction confirms normally (no reorg involved).
func (c *CounterCache) Increment(id model.CacheID, delta float64) error {
	return c.s.db.Exec(
		"UPDATE `cachedvalue` SET `value` = `value` + ? WHERE `id` = ? AND `valid` = 1",
		delta, id,
	).Error
}

// TotalTransactions returns the cached count of confirmed, non-coinbase
// transactions, recomputing it from the transaction table first if the
// cache entry is stale.
func (c *CounterCache) TotalTransactions() (int64, error) {
	return c.totalInt(model.CacheTotalTransactions, func() (float64, error) {
		var n int64
		err := c.s.db.Model(&model.Transaction{}).
			Joins("LEFT JOIN coinbase ON coinbase.transaction = `transaction`.id").
			Where("`transaction`.confirmation IS NOT NULL AND coinbase.transaction IS NULL").Count(&n).Error
		return float64(n), err
	})
}

// TotalBlocks returns the cached confirmed block count, recomputing on a
// stale cache entry.
func (c *CounterCache) TotalBlocks() (int64, error) {
	return c.totalInt(model.CacheTotalBlocks, func() (float64, error) {
		var n int64
		err := c.s.db.Model(&model.Block{}).Where("height IS NOT NULL").Count(&n).Error
		return float64(n), err
	})
}

// TotalFees returns the cached sum of confirmed blocks' total fee, or
// recomputes it on a stale cache entry.
func (c *CounterCache) TotalFees() (float64, error) {
	return c.totalFloat(model.CacheTotalFees, func() (float64, error) {
		var sum float64
		row := c.s.db.Model(&model.Block{}).Where("height IS NOT NULL").Select("COALESCE(SUM(totalfee), 0)").Row()
		err := row.Scan(&sum)
		return sum, err
	})
}

// TotalCoinsReleased returns the cached sum of all coinbase subsidies, or
// recomputes it on a stale cache entry.
func (c *CounterCache) TotalCoinsReleased() (float64, error) {
	return c.totalFloat(model.CacheTotalCoinsReleased, func() (float64, error) {
		var sum float64
		row := c.s.db.Model(&model.CoinbaseInfo{}).Select("COALESCE(SUM(newcoins), 0)").Row()
		err := row.Scan(&sum)
		return sum, err
	})
}

func (c *CounterCache) totalInt(id model.CacheID, recompute func() (float64, error)) (int64, error) {
	v, err := c.refresh(id, recompute)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

func (c *CounterCache) totalFloat(id model.CacheID, recompute func() (float64, error)) (float64, error) {
	return c.refresh(id, recompute)
}

func (c *CounterCache) refresh(id model.CacheID, recompute func() (float64, error)) (float64, error) {
	v, err := c.get(id)
	if err != nil {
		return 0, err
	}
	if v.Valid {
		return v.Value, nil
	}

	value, err := recompute()
	if err != nil {
		return 0, err
	}
	if err := c.Set(id, value); err != nil {
		return 0, err
	}
	return value, nil
}
