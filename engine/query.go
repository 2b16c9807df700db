package engine

import (
	"encoding/hex"
	"time"

	"github.com/jinzhu/gorm"

	"github.com/freshgrlc/freshgrlc-indexer/model"
)

// DefaultPageSize and MaxPageSize bound every paginated listing, grounded
// on QueryDataPostProcessor.DEFAULT_OBJECTS_PER_PAGE / MAX_OBJECTS_PER_PAGE.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxPageSizeWithInterval = 1000
)

// Page describes one resolved pagination window: Start/Limit/Interval are
// already clamped and ready to drive a query; Empty short-circuits a
// negative out-of-range start into a zero-row result.
type Page struct {
	Start    int64
	Limit    int
	Interval int
	Empty    bool
}

// ResolvePage clamps raw start/limit/interval query parameters into a Page.
// backwardsTip, when non-nil, anchors a negative start at (tip + 1 + start)
// — the "most recent N" listing idiom used by /blocks/ and similar.
func ResolvePage(start, limit, interval *int64, backwardsTip func() (int64, error)) (Page, error) {
	p := Page{Limit: DefaultPageSize}

	if limit != nil {
		p.Limit = int(*limit)
	}
	if interval != nil && *interval > 0 {
		p.Interval = int(*interval)
	}

	maxSize := MaxPageSize
	if p.Interval > 0 {
		maxSize = MaxPageSizeWithInterval
	}
	if p.Limit <= 0 || p.Limit > maxSize {
		p.Limit = maxSize
	}

	if start == nil {
		if backwardsTip != nil {
			p.Start = -int64(DefaultPageSize)
		} else {
			p.Start = 0
		}
	} else {
		p.Start = *start
	}

	if p.Start < 0 {
		if backwardsTip != nil {
			tip, err := backwardsTip()
			if err != nil {
				return Page{}, err
			}
			p.Start = tip + p.Start
			if p.Start < 0 {
				p.Start = 0
			}
		} else {
			p.Start = 0
			p.Limit = 0
			p.Empty = true
		}
	}

	return p, nil
}

// BlockByHeight returns the block at height, or nil if none is recorded.
func (s *Session) BlockByHeight(height int64) (*model.Block, error) {
	var block model.Block
	err := s.db.Where("height = ?", height).First(&block).Error
	if err != nil {
		return nil, nil
	}
	return &block, nil
}

// Block returns a block view for the façade: by hex hash (64 chars) or by
// height, mirroring database.py's polymorphic
// `block(blockid)` lookup.
func (r *ReadSession) Block(id string) (*model.Block, error) {
	if len(id) == 64 {
		hashBytes, err := hex.DecodeString(id)
		if err == nil {
			var block model.Block
			if err := r.db.Preload("Miner").Where("hash = ?", hashBytes).First(&block).Error; err == nil {
				return &block, nil
			}
			return nil, nil
		}
	}

	height, ok := parseInt64(id)
	if !ok {
		return nil, nil
	}
	var block model.Block
	if err := r.db.Preload("Miner").Where("height = ?", height).First(&block).Error; err != nil {
		return nil, nil
	}
	return &block, nil
}

// BlockTransactions lists the transactions confirmed in block, in the
// node-reported order.
func (r *ReadSession) BlockTransactions(blockID int64) ([]model.Transaction, error) {
	var joins []model.BlockTransaction
	err := r.db.Preload("Transaction").Preload("Transaction.CoinbaseInfo").
		Where("block = ?", blockID).Order("position").Find(&joins).Error
	if err != nil {
		return nil, err
	}
	txs := make([]model.Transaction, 0, len(joins))
	for _, j := range joins {
		if j.Transaction != nil {
			txs = append(txs, *j.Transaction)
		}
	}
	return txs, nil
}

// Blocks returns up to page.Limit blocks starting at page.Start, optionally
// filtered by an interval modulo.
func (r *ReadSession) Blocks(page Page) ([]model.Block, error) {
	if page.Empty || page.Limit == 0 {
		return nil, nil
	}

	q := r.db.Where("height >= ?", page.Start)
	if page.Interval > 0 {
		q = q.Where("height % ? = ?", page.Interval, page.Start%int64(page.Interval))
	}

	var blocks []model.Block
	err := q.Order("height").Limit(page.Limit).Find(&blocks).Error
	return blocks, err
}

// ChainTipHeight is the backwardsTip callback for /blocks/'s pagination.
func (r *ReadSession) ChainTipHeight() (int64, error) {
	var block model.Block
	err := r.db.Where("height IS NOT NULL").Order("height desc").First(&block).Error
	if err != nil {
		return 0, nil
	}
	return *block.Height + 1, nil
}

func preloadTransaction(q *gorm.DB) *gorm.DB {
	return q.Preload("Confirmation.Block").Preload("CoinbaseInfo")
}

// Transaction returns a transaction by hex txid.
func (r *ReadSession) Transaction(txid string) (*model.Transaction, error) {
	txidBytes, err := hex.DecodeString(txid)
	if err != nil {
		return nil, nil
	}
	var tx model.Transaction
	if err := preloadTransaction(r.db).Where("txid = ?", txidBytes).First(&tx).Error; err != nil {
		return nil, nil
	}
	return &tx, nil
}

// LatestTransactions lists the most recently-created transactions,
// optionally confirmed-only.
func (r *ReadSession) LatestTransactions(limit int, confirmedOnly bool) ([]model.Transaction, error) {
	q := preloadTransaction(r.db).Order("id desc").Limit(limit)
	if confirmedOnly {
		q = q.Where("confirmation IS NOT NULL")
	}
	var txs []model.Transaction
	err := q.Find(&txs).Error
	return txs, err
}

// Mempool lists every currently-unconfirmed transaction.
func (r *ReadSession) Mempool() ([]model.Transaction, error) {
	var txs []model.Transaction
	err := preloadTransaction(r.db).Where("confirmation IS NULL").Order("id desc").Find(&txs).Error
	return txs, err
}

// TransactionInputs lists a transaction's inputs in order, resolving the
// spent output's own txid for display.
func (r *ReadSession) TransactionInputs(transactionID int64) ([]model.TransactionInput, error) {
	var ins []model.TransactionInput
	err := r.db.Preload("Input.Transaction").Where("transaction = ?", transactionID).Order("index").Find(&ins).Error
	return ins, err
}

// TransactionInput returns a transaction's input at index, or nil if there
// is none.
func (r *ReadSession) TransactionInput(transactionID int64, index int) (*model.TransactionInput, error) {
	var in model.TransactionInput
	err := r.db.Preload("Input.Transaction").Where("transaction = ? AND `index` = ?", transactionID, index).First(&in).Error
	if err != nil {
		return nil, nil
	}
	return &in, nil
}

// TransactionOutputs lists a transaction's outputs in order.
func (r *ReadSession) TransactionOutputs(transactionID int64) ([]model.TransactionOutput, error) {
	var outs []model.TransactionOutput
	err := r.db.Preload("Address").Where("transaction = ?", transactionID).Order("index").Find(&outs).Error
	return outs, err
}

// TransactionOutput returns a transaction's output at index, or nil if
// there is none.
func (r *ReadSession) TransactionOutput(transactionID int64, index int) (*model.TransactionOutput, error) {
	var out model.TransactionOutput
	err := r.db.Preload("Address").Where("transaction = ? AND `index` = ?", transactionID, index).First(&out).Error
	if err != nil {
		return nil, nil
	}
	return &out, nil
}

// AddressInfo resolves an address string to its row, or nil if unknown.
func (r *ReadSession) AddressInfo(address string) (*model.Address, error) {
	var row model.Address
	if err := r.db.Where("address = ?", address).First(&row).Error; err != nil {
		return nil, nil
	}
	return &row, nil
}

// AddressMutationRow is one (transaction, address) mutation joined against
// its transaction's display fields, mirroring database.py's
// address_mutations dict shape directly rather than forcing the façade to
// re-join.
type AddressMutationRow struct {
	Txid      []byte
	Time      time.Time
	Change    float64
	Confirmed bool
}

// AddressMutations pages through an address's mutation history, optionally
// filtered to confirmed or unconfirmed transactions only.
func (r *ReadSession) AddressMutations(addressID int64, confirmed *bool, start, limit int) ([]AddressMutationRow, error) {
	if limit == 0 {
		return nil, nil
	}

	q := r.db.Table("mutation").
		Select("`transaction`.txid as txid, COALESCE(`transaction`.firstseen, block.timestamp) as time, "+
			"mutation.amount as change, (`transaction`.confirmation IS NOT NULL) as confirmed").
		Joins("JOIN `transaction` ON mutation.transaction = `transaction`.id").
		Joins("LEFT JOIN blocktx ON blocktx.id = `transaction`.confirmation").
		Joins("LEFT JOIN block ON block.id = blocktx.block").
		Where("mutation.address = ?", addressID)

	if confirmed != nil {
		if *confirmed {
			q = q.Where("`transaction`.confirmation IS NOT NULL")
		} else {
			q = q.Joins("LEFT JOIN coinbase ON coinbase.transaction = `transaction`.id").
				Where("`transaction`.confirmation IS NULL AND coinbase.transaction IS NULL")
		}
	}

	var rows []AddressMutationRow
	err := q.Order("`transaction`.id desc").Offset(start).Limit(limit).Scan(&rows).Error
	return rows, err
}

// RichList returns the top addresses by confirmed balance.
func (r *ReadSession) RichList(start, limit int) ([]model.Address, error) {
	var addrs []model.Address
	err := r.db.Order("balance desc").Offset(start).Limit(limit).Find(&addrs).Error
	return addrs, err
}

// TotalCoinsInAddresses sums every address's stored balance — the "current"
// half of the /coins/ endpoint.
func (r *ReadSession) TotalCoinsInAddresses() (float64, error) {
	var sum float64
	row := r.db.Model(&model.Address{}).Select("COALESCE(SUM(balance), 0.0)").Row()
	err := row.Scan(&sum)
	return sum, err
}

// PoolStats reports each pool's block count and latest block since t,
// grounded on database.py's pool_stats.
type PoolStat struct {
	Name        string
	Blocks      int64
	LatestBlock int64
	Website     *string
	GraphColor  *string
}

// PoolStats returns per-pool mining statistics since a given time, by
// joining confirmed blocks to their miner.
func (r *ReadSession) PoolStats(sinceUnix int64) ([]PoolStat, error) {
	var stats []PoolStat
	err := r.db.Table("pool").
		Select("pool.name as name, COUNT(block.id) as blocks, MAX(block.height) as latest_block, pool.website as website, pool.graphcolor as graph_color").
		Joins("JOIN block ON block.miner = pool.id").
		Where("block.height IS NOT NULL AND block.timestamp >= FROM_UNIXTIME(?)", sinceUnix).
		Group("pool.name").
		Find(&stats).Error
	return stats, err
}

// NetworkStats is the /networkstats/ response body, grounded on
// database.py's block_stats/transaction_stats pair.
type NetworkStats struct {
	Blocks          int64
	TotalFees       float64
	CoinsReleased   float64
	Transactions    int64
	TransactedValue float64
}

// NetworkStats reports block/transaction counters confirmed since sinceUnix
// (Unix seconds; 0 means "all time").
func (r *ReadSession) NetworkStats(sinceUnix int64) (NetworkStats, error) {
	var stats NetworkStats

	blockQuery := r.db.Model(&model.Block{}).Where("height IS NOT NULL")
	txQuery := r.db.Table("transaction").
		Joins("JOIN blocktx ON blocktx.id = `transaction`.confirmation").
		Joins("JOIN block ON block.id = blocktx.block").
		Joins("LEFT JOIN coinbase ON coinbase.transaction = `transaction`.id").
		Where("block.height IS NOT NULL AND coinbase.transaction IS NULL")

	if sinceUnix > 0 {
		blockQuery = blockQuery.Where("timestamp >= FROM_UNIXTIME(?)", sinceUnix)
		txQuery = txQuery.Where("block.timestamp >= FROM_UNIXTIME(?)", sinceUnix)
	}

	row := blockQuery.Select("COUNT(id), COALESCE(SUM(totalfee), 0.0)").Row()
	if err := row.Scan(&stats.Blocks, &stats.TotalFees); err != nil {
		return stats, err
	}

	coinbaseQuery := r.db.Table("coinbase").
		Joins("JOIN block ON block.id = coinbase.block").
		Where("block.height IS NOT NULL")
	if sinceUnix > 0 {
		coinbaseQuery = coinbaseQuery.Where("block.timestamp >= FROM_UNIXTIME(?)", sinceUnix)
	}
	row = coinbaseQuery.Select("COALESCE(SUM(newcoins), 0.0)").Row()
	if err := row.Scan(&stats.CoinsReleased); err != nil {
		return stats, err
	}

	row = txQuery.Select("COUNT(*), COALESCE(SUM(`transaction`.totalvalue), 0.0)").Row()
	if err := row.Scan(&stats.Transactions, &stats.TransactedValue); err != nil {
		return stats, err
	}

	return stats, nil
}

// ClassifyID inspects id and reports which /search/ route it resolves to:
// "block" (hash or height), "transaction" (txid), "address", or "" if none
// match. Grounded on the search endpoint named in the external interface
// list; the ancestor has no direct equivalent so the ordering (address
// first, since addresses are the least ambiguous format) is this façade's
// own choice, recorded in DESIGN.md.
func (r *ReadSession) ClassifyID(id string) (kind string, err error) {
	if addr, err := r.AddressInfo(id); err == nil && addr != nil {
		return "address", nil
	}
	if len(id) == 64 {
		if _, err := hex.DecodeString(id); err == nil {
			if tx, err := r.Transaction(id); err == nil && tx != nil {
				return "transaction", nil
			}
			if b, err := r.Block(id); err == nil && b != nil {
				return "block", nil
			}
		}
	}
	if _, ok := parseInt64(id); ok {
		if b, err := r.Block(id); err == nil && b != nil {
			return "block", nil
		}
	}
	return "", nil
}

func parseInt64(s string) (int64, bool) {
	var n int64
	if s == "" {
		return 0, false
	}
	neg := false
	i := 0
	if s[0] == '-' {
		neg = true
		i = 1
	}
	if i >= len(s) {
		return 0, false
	}
	for ; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}
