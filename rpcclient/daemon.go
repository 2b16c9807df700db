package rpcclient

import (
	"github.com/freshgrlc/freshgrlc-indexer/engine"
)

// blockchainInfo is the subset of getblockchaininfo this package needs.
type blockchainInfo struct {
	Blocks int64 `json:"blocks"`
}

// CurrentHeight returns the node's current chain tip height.
func (c *Client) CurrentHeight() (int64, error) {
	var info blockchainInfo
	if err := c.Call("getblockchaininfo", nil, &info); err != nil {
		return 0, err
	}
	return info.Blocks, nil
}

// BlockHash returns the hash of the block at height.
func (c *Client) BlockHash(height int64) (string, error) {
	var hash string
	err := c.Call("getblockhash", []interface{}{height}, &hash)
	return hash, err
}

// Block fetches and decodes the block with the given hash.
func (c *Client) Block(hash string) (*engine.RPCBlock, error) {
	var block engine.RPCBlock
	if err := c.Call("getblock", []interface{}{hash}, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// Mempool lists the txids currently in the node's mempool.
func (c *Client) Mempool() ([]string, error) {
	var txids []string
	err := c.Call("getrawmempool", nil, &txids)
	return txids, err
}

// Transaction fetches a transaction's raw hex and decodes it, mirroring
// load_transaction's getrawtransaction + decoderawtransaction pair.
func (c *Client) Transaction(txid string) (*engine.RPCTransaction, error) {
	var raw string
	if err := c.Call("getrawtransaction", []interface{}{txid}, &raw); err != nil {
		return nil, err
	}

	var tx engine.RPCTransaction
	if err := c.Call("decoderawtransaction", []interface{}{raw}, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// ValidateAddress reports whether the node considers address well formed,
// and if so, the hex-encoded scriptPubKey it corresponds to.
func (c *Client) ValidateAddress(address string) (bool, string, error) {
	var result struct {
		IsValid      bool   `json:"isvalid"`
		ScriptPubKey string `json:"scriptPubKey"`
	}
	if err := c.Call("validateaddress", []interface{}{address}, &result); err != nil {
		return false, "", err
	}
	return result.IsValid, result.ScriptPubKey, nil
}

// DecodeScript decodes a hex script via the node's decodescript RPC,
// returning its asm form.
func (c *Client) DecodeScript(hexScript string) (string, error) {
	var result struct {
		Asm string `json:"asm"`
	}
	if err := c.Call("decodescript", []interface{}{hexScript}, &result); err != nil {
		return "", err
	}
	return result.Asm, nil
}

var _ engine.Daemon = (*Client)(nil)
