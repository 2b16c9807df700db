// Package engine is the single-writer indexing core: session handling, the
// process-local tier caches, the persisted aggregate-counter cache, reorg
// handling, transaction import, mempool tracking, balance reconciliation,
// coin-days-destroyed accounting, the data-backfill migration runner, and the
// cooperative scheduler that drives all of it. Session generalizes the
// teacher's package-level database.DB() handle into a struct that also
// carries this indexer's process-local caches and transaction state.
package engine

import (
	"github.com/jinzhu/gorm"

	"github.com/freshgrlc/freshgrlc-indexer/model"
)

// Session is the writer's single long-lived gorm handle plus its process
// tier caches. Only the scheduler goroutine ever touches a Session; readers
// use independent ReadSessions instead.
//
// Every engine file reads and writes through s.db rather than a connection
// argument of its own; Begin/Commit/ResetSession work by swapping that field
// between the base handle and a real gorm transaction, so every existing
// call site picks up transactional semantics without change once its entry
// point is wrapped in Begin/Commit.
type Session struct {
	baseDB *gorm.DB
	db     *gorm.DB

	txDepth int

	Addresses *AddressCache
	Txids     *TxidCache
	UTXOs     *UTXOCache

	chainTip *model.Block
}

// NewSession wraps an open *gorm.DB with the writer's process-local caches.
func NewSession(db *gorm.DB, utxoCacheEnabled bool) *Session {
	s := &Session{
		baseDB:    db,
		db:        db,
		Addresses: NewAddressCache(addressCacheSize),
		Txids:     NewTxidCache(txidCacheSize),
	}
	if utxoCacheEnabled {
		s.UTXOs = NewUTXOCache(utxoCacheSize)
	}
	return s
}

// DB exposes the underlying *gorm.DB for query composition by the other
// engine files.
func (s *Session) DB() *gorm.DB { return s.db }

// Flush pushes pending writes to the database without ending the logical
// unit of work. Mirrors the original session's flush(), which issues the
// buffered statements but stops short of a commit; gorm issues each
// statement against the open transaction as it's called, so there is
// nothing left to flush explicitly.
func (s *Session) Flush() error {
	return nil
}

// Begin opens a real database transaction that every subsequent s.db call
// on this Session runs against, until Commit or ResetSession. Nested calls
// (an operation that itself wraps sub-operations already inside a
// transaction) only increment a depth counter — only the outermost Begin
// actually starts a transaction and only the matching Commit ends it, so a
// unit of work composed from other transactional units stays one atomic
// commit.
func (s *Session) Begin() error {
	if s.txDepth == 0 {
		tx := s.baseDB.Begin()
		if tx.Error != nil {
			return tx.Error
		}
		s.db = tx
	}
	s.txDepth++
	return nil
}

// Commit ends the current unit of work successfully. Only the Commit
// matching the outermost Begin actually commits; nested Commits just
// decrement the depth counter.
func (s *Session) Commit() error {
	if s.txDepth == 0 {
		return nil
	}
	s.txDepth--
	if s.txDepth == 0 {
		err := s.db.Commit().Error
		s.db = s.baseDB
		return err
	}
	return nil
}

// ResetSession rolls back any uncommitted work on this connection, used when
// an import step fails partway through and must not leave partial state
// behind (§7 FATAL-unit handling). Unlike Commit, it aborts the whole
// transaction regardless of nesting depth: a failure anywhere inside a unit
// of work must undo that entire unit, not just its innermost step.
func (s *Session) ResetSession() error {
	if s.txDepth == 0 {
		return nil
	}
	s.txDepth = 0
	err := s.db.Rollback().Error
	s.db = s.baseDB
	return err
}

// ChainTip returns the highest-height confirmed block, caching it until
// InvalidateChainTip is called.
func (s *Session) ChainTip() (*model.Block, error) {
	if s.chainTip != nil {
		return s.chainTip, nil
	}

	var block model.Block
	err := s.db.Where("height IS NOT NULL").Order("height desc").First(&block).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.chainTip = &block
	return s.chainTip, nil
}

// InvalidateChainTip drops the cached chain tip, forcing the next ChainTip
// call to re-query. Called after any block confirm/unconfirm.
func (s *Session) InvalidateChainTip() {
	s.chainTip = nil
}

// ReadSession is a short-lived, read-only handle used by the query façade
// (component K) and mempool reads; it never shares the writer's caches.
type ReadSession struct {
	db *gorm.DB
}

// NewReadSession opens an independent read-only view over the same database.
func NewReadSession(db *gorm.DB) *ReadSession {
	return &ReadSession{db: db}
}

// DB exposes the underlying *gorm.DB to the query façade.
func (r *ReadSession) DB() *gorm.DB { return r.db }

// Close closes this read session's underlying *gorm.DB handle.
func (r *ReadSession) Close() error {
	return r.db.Close()
}
