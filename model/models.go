// Package model defines the indexer's relational schema as gorm-tagged
// entities, adapted from the teacher's apiserver/models package
// (github.com/daglabs/btcd/apiserver/models) to a UTXO chain's data model.
package model

import "time"

// Block is one block header the indexer has seen. Height is nullable: a NULL
// height means the block has been orphaned (§3 lifecycle) but its row, and
// its transactions' history, are retained so they can reconfirm later.
type Block struct {
	ID         int64      `gorm:"primary_key;column:id"`
	Hash       []byte     `gorm:"column:hash;type:binary(32);unique_index"`
	Height     *int64     `gorm:"column:height;index"`
	Size       int64      `gorm:"column:size"`
	Difficulty float64    `gorm:"column:difficulty"`
	Timestamp  time.Time  `gorm:"column:timestamp;index"`
	FirstSeen  *time.Time `gorm:"column:firstseen"`
	RelayedBy  *string    `gorm:"column:relayedby;size:48"`
	TotalFee   float64    `gorm:"column:totalfee"`
	MinerID    *int64     `gorm:"column:miner;index"`

	Miner          *Pool            `gorm:"foreignkey:MinerID"`
	CoinbaseInfo   *CoinbaseInfo    `gorm:"foreignkey:BlockID"`
	Transactions   []BlockTransaction `gorm:"foreignkey:BlockID"`
}

func (Block) TableName() string { return "block" }

// Confirmed reports whether this block is presently on-chain.
func (b *Block) Confirmed() bool { return b.Height != nil }

// BlockTransaction is the ordered (block, tx) join that preserves the node's
// reported transaction order within a block, which is how "coinbase is tx #0"
// is determined downstream.
type BlockTransaction struct {
	ID            int64 `gorm:"primary_key;column:id"`
	BlockID       int64 `gorm:"column:block;index"`
	TransactionID int64 `gorm:"column:transaction;index"`
	Position      int   `gorm:"column:position"`

	Block       *Block       `gorm:"foreignkey:BlockID"`
	Transaction *Transaction `gorm:"foreignkey:TransactionID"`
}

func (BlockTransaction) TableName() string { return "blocktx" }

// CoinbaseInfo is the per-confirmed-block coinbase metadata: the raw script,
// any parsed pool signature, the computed subsidy, and the dominant payout
// output (if one exists) used for miner attribution.
type CoinbaseInfo struct {
	BlockID       int64   `gorm:"primary_key;column:block"`
	TransactionID int64   `gorm:"column:transaction;unique_index"`
	Raw           []byte  `gorm:"column:raw;type:varbinary(256)"`
	Signature     *string `gorm:"column:signature;size:32;index"`
	NewCoins      float64 `gorm:"column:newcoins"`
	MainOutputID  *int64  `gorm:"column:mainoutput;index"`

	Block       *Block            `gorm:"foreignkey:BlockID"`
	Transaction *Transaction      `gorm:"foreignkey:TransactionID"`
	MainOutput  *TransactionOutput `gorm:"foreignkey:MainOutputID"`
}

func (CoinbaseInfo) TableName() string { return "coinbase" }

// Pool is a mining pool (real or synthesized for an unrecognised payout).
type Pool struct {
	ID         int64   `gorm:"primary_key;column:id"`
	GroupID    *int64  `gorm:"column:group;index"`
	Name       string  `gorm:"column:name;size:64;unique_index"`
	Solo       bool    `gorm:"column:solo"`
	Website    *string `gorm:"column:website;size:64"`
	GraphColor *string `gorm:"column:graphcolor;size:6"`

	Group *PoolGroup `gorm:"foreignkey:GroupID"`
}

func (Pool) TableName() string { return "pool" }

// PoolAddress is a learned mapping from a payout address to the pool it pays.
type PoolAddress struct {
	AddressID int64 `gorm:"primary_key;column:address"`
	PoolID    int64 `gorm:"column:pool;index"`

	Address *Address `gorm:"foreignkey:AddressID"`
	Pool    *Pool    `gorm:"foreignkey:PoolID"`
}

func (PoolAddress) TableName() string { return "pooladdress" }

// PoolGroup clusters related pools (e.g. the synthetic "solo miners" group).
type PoolGroup struct {
	ID         int64   `gorm:"primary_key;column:id"`
	Name       string  `gorm:"column:name;size:64;unique_index"`
	Solo       bool    `gorm:"column:solo"`
	Website    *string `gorm:"column:website;size:64"`
	GraphColor *string `gorm:"column:graphcolor;size:6"`
}

func (PoolGroup) TableName() string { return "poolgroup" }

// PoolCoinbaseSignature maps a known coinbase "/…/" pool tag to a Pool.
type PoolCoinbaseSignature struct {
	ID        int64  `gorm:"primary_key;column:id"`
	Signature string `gorm:"column:signature;size:32;unique_index"`
	PoolID    int64  `gorm:"column:pool;index"`

	Pool *Pool `gorm:"foreignkey:PoolID"`
}

func (PoolCoinbaseSignature) TableName() string { return "poolsignature" }

// Transaction is created on mempool ingest or implicitly by block ingest and
// is never deleted, only mutated by (un)confirm.
type Transaction struct {
	ID              int64      `gorm:"primary_key;column:id"`
	Txid            []byte     `gorm:"column:txid;type:binary(32);unique_index"`
	Size            int64      `gorm:"column:size"`
	Fee             float64    `gorm:"column:fee"`
	TotalValue      float64    `gorm:"column:totalvalue"`
	FirstSeen       *time.Time `gorm:"column:firstseen"`
	RelayedBy       *string    `gorm:"column:relayedby;size:48"`
	ConfirmationID  *int64     `gorm:"column:confirmation;unique_index"`
	DoubleSpendsID  *int64     `gorm:"column:doublespends"`

	Confirmation *BlockTransaction `gorm:"foreignkey:ConfirmationID"`
	DoubleSpends *Transaction      `gorm:"foreignkey:DoubleSpendsID"`
	CoinbaseInfo *CoinbaseInfo     `gorm:"foreignkey:TransactionID"`
	Inputs       []TransactionInput  `gorm:"foreignkey:TransactionID"`
	Outputs      []TransactionOutput `gorm:"foreignkey:TransactionID"`
}

func (Transaction) TableName() string { return "transaction" }

// Confirmed reports whether this transaction is part of the canonical chain.
func (t *Transaction) Confirmed() bool { return t.ConfirmationID != nil }

// IsCoinbase reports whether this transaction carries coinbase metadata.
func (t *Transaction) IsCoinbase() bool { return t.CoinbaseInfo != nil }

// Timestamp is this transaction's "time" for CDD and double-spend-race
// purposes: its own FirstSeen when the relay layer reported one, else its
// confirming block's timestamp.
func (t *Transaction) Timestamp() time.Time {
	if t.FirstSeen != nil {
		return *t.FirstSeen
	}
	if t.Confirmation != nil && t.Confirmation.Block != nil {
		return t.Confirmation.Block.Timestamp
	}
	return time.Time{}
}

// TransactionInput is one ordered input of a Transaction. Input is nil iff
// this is a coinbase input.
type TransactionInput struct {
	ID            int64  `gorm:"primary_key;column:id"`
	TransactionID int64  `gorm:"column:transaction;index"`
	Index         int    `gorm:"column:index"`
	InputID       *int64 `gorm:"column:input;index"`

	Transaction *Transaction       `gorm:"foreignkey:TransactionID"`
	Input       *TransactionOutput `gorm:"foreignkey:InputID"`
}

func (TransactionInput) TableName() string { return "txin" }

// TransactionOutput is a UTXO: unspent until SpentByID references the Input
// that consumed it.
type TransactionOutput struct {
	ID            int64     `gorm:"primary_key;column:id"`
	TransactionID int64     `gorm:"column:transaction;index"`
	Index         int       `gorm:"column:index"`
	Type          TxoutType `gorm:"column:type"`
	AddressID     *int64    `gorm:"column:address;index"`
	Amount        float64   `gorm:"column:amount"`
	SpentByID     *int64    `gorm:"column:spentby;unique_index"`

	Transaction *Transaction      `gorm:"foreignkey:TransactionID"`
	Address     *Address          `gorm:"foreignkey:AddressID"`
	SpentBy     *TransactionInput `gorm:"foreignkey:SpentByID"`
}

func (TransactionOutput) TableName() string { return "txout" }

// Unspent reports whether this output has not yet been consumed by a
// confirmed input.
func (o *TransactionOutput) Unspent() bool { return o.SpentByID == nil }

// Address is insert-only: its Balance/BalanceDirty mutate but the row itself
// is never deleted.
type Address struct {
	ID            int64        `gorm:"primary_key;column:id"`
	Address       *string      `gorm:"column:address;size:64;unique_index"`
	Type          AddressType  `gorm:"column:type"`
	Raw           *string      `gorm:"column:raw;type:text"`
	Balance       float64      `gorm:"column:balance"`
	BalanceDirty  BalanceDirty `gorm:"column:balance_dirty;index"`
}

func (Address) TableName() string { return "address" }

// Mutation is one (transaction, address) net-amount row: the transaction's
// effect on that address's balance.
type Mutation struct {
	ID            int64   `gorm:"primary_key;column:id"`
	TransactionID int64   `gorm:"column:transaction;index"`
	AddressID     int64   `gorm:"column:address;index"`
	Amount        float64 `gorm:"column:amount"`

	Transaction *Transaction `gorm:"foreignkey:TransactionID"`
	Address     *Address     `gorm:"foreignkey:AddressID"`
}

func (Mutation) TableName() string { return "mutation" }

// CoinDaysDestroyed is the derived liveness metric for one confirmed,
// non-coinbase transaction.
type CoinDaysDestroyed struct {
	TransactionID int64   `gorm:"primary_key;column:transaction"`
	CoinDays      float64 `gorm:"column:coindays"`

	Transaction *Transaction `gorm:"foreignkey:TransactionID"`
}

func (CoinDaysDestroyed) TableName() string { return "coindaysdestroyed" }

// CachedValue is one persisted aggregate counter, recomputed lazily when its
// Valid flag goes false rather than on every write.
type CachedValue struct {
	ID    CacheID `gorm:"primary_key;column:id"`
	Value float64 `gorm:"column:value"`
	Valid bool    `gorm:"column:valid"`
}

func (CachedValue) TableName() string { return "cachedvalue" }

// MigrationCursor persists the data-backfill runner's position within one
// named phase, so a restart resumes instead of rescanning it from the start.
type MigrationCursor struct {
	Phase    string `gorm:"primary_key;column:phase"`
	LastID   int64  `gorm:"column:last_id"`
	Complete bool   `gorm:"column:complete"`
}

func (MigrationCursor) TableName() string { return "migrationcursor" }

// AllModels lists every entity for AutoMigrate / migration-tooling use.
var AllModels = []interface{}{
	&Block{}, &BlockTransaction{}, &CoinbaseInfo{},
	&Pool{}, &PoolAddress{}, &PoolGroup{}, &PoolCoinbaseSignature{},
	&Transaction{}, &TransactionInput{}, &TransactionOutput{},
	&Address{}, &Mutation{}, &CoinDaysDestroyed{}, &CachedValue{},
	&MigrationCursor{},
}
