package engine

// RPCVin is one decoded transaction input as returned by decoderawtransaction
// / getrawtransaction, grounded on the vin dict shape consumed throughout
// the ancestor's database.py (coinbase vs. regular input, txid/vout pair).
type RPCVin struct {
	Coinbase string `json:"coinbase,omitempty"`
	Txid     string `json:"txid,omitempty"`
	Vout     int    `json:"vout"`
}

// IsCoinbase reports whether this input is the implicit coinbase input.
func (v RPCVin) IsCoinbase() bool { return v.Coinbase != "" }

// RPCScriptPubKey is the output script description the node reports.
type RPCScriptPubKey struct {
	Asm       string   `json:"asm"`
	Type      string   `json:"type"`
	Addresses []string `json:"addresses,omitempty"`
}

// RPCVout is one decoded transaction output.
type RPCVout struct {
	Value        float64         `json:"value"`
	N            int             `json:"n"`
	ScriptPubKey RPCScriptPubKey `json:"scriptPubKey"`
}

// RPCTransaction is the decoded transaction shape the import path consumes,
// whether sourced from getrawtransaction or from a block's embedded tx list.
type RPCTransaction struct {
	Txid      string    `json:"txid"`
	Size      int64     `json:"size"`
	Vin       []RPCVin  `json:"vin"`
	Vout      []RPCVout `json:"vout"`
	RelayedAt *int64    `json:"relayedat,omitempty"`
	RelayedBy string    `json:"relayedby,omitempty"`
}

// RegularInputs returns every non-coinbase input.
func (t *RPCTransaction) RegularInputs() []RPCVin {
	out := make([]RPCVin, 0, len(t.Vin))
	for _, in := range t.Vin {
		if !in.IsCoinbase() {
			out = append(out, in)
		}
	}
	return out
}

// CoinbaseInputs returns every coinbase input (0 or 1, in practice).
func (t *RPCTransaction) CoinbaseInputs() []RPCVin {
	out := make([]RPCVin, 0, 1)
	for _, in := range t.Vin {
		if in.IsCoinbase() {
			out = append(out, in)
		}
	}
	return out
}

// RPCBlock is the decoded block shape consumed by the reorg/sync path.
type RPCBlock struct {
	Hash       string   `json:"hash"`
	Height     int64    `json:"height"`
	Size       int64    `json:"size"`
	Difficulty float64  `json:"difficulty"`
	Time       int64    `json:"time"`
	RelayedAt  *int64   `json:"relayedat,omitempty"`
	RelayedBy  string   `json:"relayedby,omitempty"`
	Tx         []string `json:"tx"`
}

// TxResolver fetches and decodes a transaction by txid, used as the
// tx_resolver callback throughout the ancestor's import path.
type TxResolver func(txid string) (*RPCTransaction, error)
