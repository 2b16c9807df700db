package model

// TxoutType classifies a transaction output's script.
type TxoutType int

// Output script classes the indexer understands. The internal_id mapping
// (RAW = -1) is a schema artefact carried over from the original store and
// must not be renumbered.
const (
	TxoutRaw   TxoutType = -1
	TxoutP2PK  TxoutType = 0
	TxoutP2PKH TxoutType = 1
	TxoutP2SH  TxoutType = 2
	TxoutP2WPKH TxoutType = 3
	TxoutP2WSH TxoutType = 4
)

// TxoutTypeFromRPC maps a full node's scriptPubKey.type string to a TxoutType.
func TxoutTypeFromRPC(rpcType string) TxoutType {
	switch rpcType {
	case "pubkey":
		return TxoutP2PK
	case "pubkeyhash":
		return TxoutP2PKH
	case "scripthash":
		return TxoutP2SH
	case "witness_v0_keyhash":
		return TxoutP2WPKH
	case "witness_v0_scripthash":
		return TxoutP2WSH
	default:
		return TxoutRaw
	}
}

// String renders a TxoutType as the lowercase label the API exposes.
func (t TxoutType) String() string {
	switch t {
	case TxoutP2PK:
		return "p2pk"
	case TxoutP2PKH:
		return "p2pkh"
	case TxoutP2SH:
		return "p2sh"
	case TxoutP2WPKH:
		return "p2wpkh"
	case TxoutP2WSH:
		return "p2wsh"
	default:
		return "raw"
	}
}

// AddressType classifies how an Address's string was encoded, or whether it
// isn't a decodable address at all (DATA/RAW).
type AddressType int

const (
	AddressBase58 AddressType = 0
	AddressBech32 AddressType = 1
	AddressData   AddressType = 2
	AddressRaw    AddressType = 3
)

// String renders an AddressType as the lowercase label the API exposes.
func (t AddressType) String() string {
	switch t {
	case AddressBase58:
		return "base58"
	case AddressBech32:
		return "bech32"
	case AddressData:
		return "data"
	default:
		return "raw"
	}
}

// BalanceDirty is the staleness state of Address.Balance.
type BalanceDirty int

const (
	// BalanceClean means Balance already reflects confirmed unspent outputs.
	BalanceClean BalanceDirty = 0
	// BalanceDirtyFast means Balance needs recompute and the address has a
	// manageable UTXO count; the fast reconciler path will handle it.
	BalanceDirtyFast BalanceDirty = 1
	// BalanceDirtySlow means the fast path deferred this address (too many
	// UTXOs) to the background slow path.
	BalanceDirtySlow BalanceDirty = 2
	// BalanceInProgressSlow marks an address as currently being recomputed
	// by the slow path; if it is still in this state when the slow compute
	// finishes, the result is safe to write back.
	BalanceInProgressSlow BalanceDirty = 3
)

// CacheID identifies one of the four persisted aggregate counters.
type CacheID int

const (
	CacheTotalTransactions CacheID = 1
	CacheTotalBlocks       CacheID = 2
	CacheTotalFees         CacheID = 3
	CacheTotalCoinsReleased CacheID = 4
)

// AllCacheIDs lists every aggregate counter id.
var AllCacheIDs = []CacheID{CacheTotalTransactions, CacheTotalBlocks, CacheTotalFees, CacheTotalCoinsReleased}

// BlockCacheIDs lists the counters updated when a block is committed.
var BlockCacheIDs = []CacheID{CacheTotalBlocks, CacheTotalFees, CacheTotalCoinsReleased}

// TransactionCacheIDs lists the counters updated when a transaction confirms.
var TransactionCacheIDs = []CacheID{CacheTotalTransactions}

// SoloPoolGroupID is the synthetic PoolGroup used for solo-mined blocks whose
// miner was not already known.
const SoloPoolGroupID = 1
