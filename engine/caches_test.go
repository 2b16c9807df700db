package engine

import (
	"testing"
)

func TestAddressCacheEvictsLeastFrequentlyUsed(t *testing.T) {
	c := NewAddressCache(2)

	c.Put("addr1", &CachedAddress{ID: 1})
	c.Put("addr2", &CachedAddress{ID: 2})

	// Touch addr1 a few more times so addr2 is the least-frequently-used.
	c.Get("addr1")
	c.Get("addr1")

	c.Put("addr3", &CachedAddress{ID: 3})

	if _, ok := c.Get("addr2"); ok {
		t.Fatal("expected addr2 to be evicted as least-frequently-used")
	}
	if _, ok := c.Get("addr1"); !ok {
		t.Fatal("expected addr1 to survive eviction")
	}
	if _, ok := c.Get("addr3"); !ok {
		t.Fatal("expected newly inserted addr3 to be present")
	}
	if c.Len() != 2 {
		t.Fatalf("expected cache to hold 2 entries, got %d", c.Len())
	}
}

func TestAddressCachePutRefreshesExistingEntry(t *testing.T) {
	c := NewAddressCache(2)
	c.Put("addr1", &CachedAddress{ID: 1})
	c.Put("addr1", &CachedAddress{ID: 1, Address: "updated"})

	if c.Len() != 1 {
		t.Fatalf("expected re-putting an existing key not to grow the cache, got %d entries", c.Len())
	}
	a, ok := c.Get("addr1")
	if !ok || a.Address != "updated" {
		t.Fatalf("expected refreshed value, got %+v", a)
	}
}

func TestTxidCacheEvictsAtCapacity(t *testing.T) {
	c := NewTxidCache(3)
	c.Put("tx1", 1)
	c.Put("tx2", 2)
	c.Put("tx3", 3)
	c.Put("tx4", 4)

	if c.Len() != 3 {
		t.Fatalf("expected cache to stay at capacity 3, got %d", c.Len())
	}
}

func TestTxidCacheGetMiss(t *testing.T) {
	c := NewTxidCache(3)
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected a miss for an unknown txid")
	}
}

func TestUTXOCacheTakeRemovesEntry(t *testing.T) {
	c := NewUTXOCache(4)
	c.Put("txid", 0, UTXOEntry{TransactionID: 1, OutputID: 2, Amount: 1.5})

	entry, ok := c.Take("txid", 0)
	if !ok {
		t.Fatal("expected a hit on first Take")
	}
	if entry.OutputID != 2 {
		t.Fatalf("expected OutputID 2, got %d", entry.OutputID)
	}

	if _, ok := c.Take("txid", 0); ok {
		t.Fatal("expected entry to be gone after being taken once")
	}
}

func TestUTXOCacheEvictsAtCapacity(t *testing.T) {
	c := NewUTXOCache(2)
	c.Put("a", 0, UTXOEntry{TransactionID: 1})
	c.Put("b", 0, UTXOEntry{TransactionID: 2})
	c.Put("c", 0, UTXOEntry{TransactionID: 3})

	if c.Len() != 2 {
		t.Fatalf("expected cache to stay at capacity 2, got %d", c.Len())
	}
}
