package engine

import (
	"fmt"
	"math/rand"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/freshgrlc/freshgrlc-indexer/model"
)

// Cache sizes, grounded on the LFUCache(16384)/RRCache(131072)/RRCache(262144)
// sizing in the teacher's Python ancestor (database.py's DatabaseIO.__init__).
const (
	addressCacheSize = 16384
	txidCacheSize    = 131072
	utxoCacheSize    = 262144

	// noAutoEvict is the backing lru.Cache's own capacity: large enough that
	// its built-in LRU eviction never fires. Eviction policy (LFU / random)
	// is applied by this package before every Add, once the logical entry
	// count reaches the real cap above. See DESIGN.md: golang-lru/v2 only
	// ships strict LRU, so LFU and random-eviction are layered on top of its
	// storage rather than reimplemented from scratch.
	noAutoEvict = 1 << 22
)

// CachedAddress is the process-cached projection of model.Address that the
// import path needs: its id and decoded type, not the full row.
type CachedAddress struct {
	ID      int64
	Type    model.AddressType
	Address string
}

// AddressCache is an LFU cache of decoded addresses keyed by their string
// encoding, backed by an lru.Cache used purely as thread-safe storage.
type AddressCache struct {
	mu    sync.Mutex
	cap   int
	freq  map[string]int
	store *lru.Cache[string, *CachedAddress]
}

// NewAddressCache builds an LFU cache holding up to size entries.
func NewAddressCache(size int) *AddressCache {
	store, err := lru.New[string, *CachedAddress](noAutoEvict)
	if err != nil {
		panic(fmt.Sprintf("engine: allocating address cache: %v", err))
	}
	return &AddressCache{
		cap:   size,
		freq:  make(map[string]int, size),
		store: store,
	}
}

// Get returns the cached address for the given encoded string, bumping its
// use frequency on a hit.
func (c *AddressCache) Get(address string) (*CachedAddress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.store.Get(address)
	if ok {
		c.freq[address]++
	}
	return a, ok
}

// Put inserts or refreshes an entry, evicting the least-frequently-used
// entry first if the cache is already full.
func (c *AddressCache) Put(address string, a *CachedAddress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.store.Contains(address) && c.store.Len() >= c.cap {
		c.evictLocked()
	}

	c.store.Add(address, a)
	c.freq[address]++
}

func (c *AddressCache) evictLocked() {
	var victim string
	min := -1
	for _, k := range c.store.Keys() {
		f := c.freq[k]
		if min == -1 || f < min {
			min = f
			victim = k
		}
	}
	if victim != "" {
		c.store.Remove(victim)
		delete(c.freq, victim)
	}
}

// Len reports the current entry count, used for the periodic cache-stats
// log line.
func (c *AddressCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

// TxidCache maps a txid to its internal row id, with random eviction once
// full. Random eviction (rather than LRU) matches the ancestor's RRCache:
// it is cheap and, for a cache this size relative to working-set churn
// during reorgs, performs close enough to LRU not to matter.
type TxidCache struct {
	mu    sync.Mutex
	cap   int
	store *lru.Cache[string, int64]
}

// NewTxidCache builds a random-eviction cache holding up to size entries.
func NewTxidCache(size int) *TxidCache {
	store, err := lru.New[string, int64](noAutoEvict)
	if err != nil {
		panic(fmt.Sprintf("engine: allocating txid cache: %v", err))
	}
	return &TxidCache{cap: size, store: store}
}

// Get returns the cached internal transaction id for a hex-lowercase txid.
func (c *TxidCache) Get(txid string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Get(txid)
}

// Put inserts a txid -> internal id mapping, evicting a random existing
// entry first if the cache is full.
func (c *TxidCache) Put(txid string, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.store.Contains(txid) && c.store.Len() >= c.cap {
		evictRandom(c.store)
	}
	c.store.Add(txid, id)
}

// Len reports the current entry count.
func (c *TxidCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

func evictRandom[V any](store *lru.Cache[string, V]) {
	keys := store.Keys()
	if len(keys) == 0 {
		return
	}
	store.Remove(keys[rand.Intn(len(keys))])
}

// UTXOEntry is the cached waterfall-phase-1 shortcut for an in-flight
// output: its owning transaction's internal id, its own row id, and amount.
type UTXOEntry struct {
	TransactionID int64
	OutputID      int64
	Amount        float64
}

// UTXOCache is the optional third cache tier: it remembers freshly-created
// outputs so that a same-block or near-same-block spend never round-trips
// to the database. Entries MUST be evicted on consumption (Take), not just
// on capacity pressure — the import waterfall's correctness guarantee is
// that a spent output never lingers to be "found" a second time.
type UTXOCache struct {
	mu    sync.Mutex
	cap   int
	store *lru.Cache[string, UTXOEntry]
}

// NewUTXOCache builds a random-eviction UTXO cache holding up to size
// entries. Only call this when the utxo-cache setting is enabled.
func NewUTXOCache(size int) *UTXOCache {
	store, err := lru.New[string, UTXOEntry](noAutoEvict)
	if err != nil {
		panic(fmt.Sprintf("engine: allocating utxo cache: %v", err))
	}
	return &UTXOCache{cap: size, store: store}
}

func utxoCacheKey(txid string, index int) string {
	return fmt.Sprintf("%s_%d", txid, index)
}

// Take removes and returns the cached entry for (txid, index), if present.
// Eviction-on-consumption is mandatory: a spent output must never be
// servable twice from this cache.
func (c *UTXOCache) Take(txid string, index int) (UTXOEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := utxoCacheKey(txid, index)
	e, ok := c.store.Get(key)
	if ok {
		c.store.Remove(key)
	}
	return e, ok
}

// Put inserts a freshly-created output, evicting a random existing entry
// first if the cache is full.
func (c *UTXOCache) Put(txid string, index int, entry UTXOEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := utxoCacheKey(txid, index)
	if !c.store.Contains(key) && c.store.Len() >= c.cap {
		evictRandom(c.store)
	}
	c.store.Add(key, entry)
}

// Len reports the current entry count.
func (c *UTXOCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}
