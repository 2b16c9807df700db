// Package httpapi is the query façade's HTTP surface (component K):
// gorilla/mux routing, CORS, paginated JSON views, and the SSE event
// stream. Grounded on the teacher's apiserver/server and
// apiserver/controllers packages (the makeHandler adapter and the
// (interface{}, *HandlerError) controller signature) and on the ancestor's
// api.py/postprocessor.py for the view shapes and href/expand contract.
package httpapi

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/freshgrlc/freshgrlc-indexer/engine"
	"github.com/freshgrlc/freshgrlc-indexer/model"
)

// hrefRef is a reference to a nested entity the caller didn't expand: a bare
// {href: ...} object, mirroring postprocessor.py's default reflink
// rendering.
type hrefRef struct {
	Href string `json:"href"`
}

func hexOf(b []byte) string {
	return hex.EncodeToString(b)
}

func unixSeconds(t time.Time) int64 {
	return t.Unix()
}

func unixSecondsPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	s := t.Unix()
	return &s
}

// blockHref renders a block reference, either as a full view (expanded) or
// an href pointing at /blocks/<hash>/.
func (v *Views) blockHref(b *model.Block, expand bool) interface{} {
	if b == nil {
		return nil
	}
	if expand {
		return v.Block(b, nil)
	}
	return hrefRef{Href: v.url(fmt.Sprintf("/blocks/%s/", hexOf(b.Hash)))}
}

func (v *Views) addressHref(a *model.Address, expand bool) interface{} {
	if a == nil || a.Address == nil {
		return nil
	}
	if expand {
		return v.Address(a)
	}
	return hrefRef{Href: v.url(fmt.Sprintf("/address/%s/", *a.Address))}
}

func (v *Views) transactionHref(t *model.Transaction, expand bool) interface{} {
	if t == nil {
		return nil
	}
	if expand {
		return v.Transaction(t, nil)
	}
	return hrefRef{Href: v.url(fmt.Sprintf("/transactions/%s/", hexOf(t.Txid)))}
}

// Views renders model rows into the whitelisted JSON shapes the API
// exposes, resolving href/expand per request via ExpandSet.
type Views struct {
	apiEndpoint string
}

// NewViews builds a Views renderer that prefixes generated hrefs with
// endpoint (the configured API_ENDPOINT).
func NewViews(endpoint string) *Views {
	return &Views{apiEndpoint: endpoint}
}

func (v *Views) url(path string) string {
	return v.apiEndpoint + strings0TrimLeft(path)
}

func strings0TrimLeft(path string) string {
	if len(path) > 0 && path[0] == '/' {
		return path[1:]
	}
	return path
}

// ExpandSet is the parsed `expand=` query parameter: either a fixed set of
// field names, or "*" meaning expand everything.
type ExpandSet struct {
	all    bool
	fields map[string]bool
}

// Has reports whether key should be expanded inline rather than left as an
// href reference.
func (e ExpandSet) Has(key string) bool {
	if e.all {
		return true
	}
	return e.fields[key]
}

// BlockView is the whitelisted JSON shape of a block.
type BlockView struct {
	Hash       string      `json:"hash"`
	Height     *int64      `json:"height"`
	Size       int64       `json:"size"`
	Difficulty float64     `json:"difficulty"`
	Time       int64       `json:"time"`
	FirstSeen  *int64      `json:"firstseen,omitempty"`
	RelayedBy  *string     `json:"relayedby,omitempty"`
	TotalFee   float64     `json:"totalfee"`
	Miner      interface{} `json:"miner,omitempty"`
}

// Block renders a block row, expanding miner when requested.
func (v *Views) Block(b *model.Block, expand *ExpandSet) BlockView {
	view := BlockView{
		Hash:       hexOf(b.Hash),
		Height:     b.Height,
		Size:       b.Size,
		Difficulty: b.Difficulty,
		Time:       unixSeconds(b.Timestamp),
		FirstSeen:  unixSecondsPtr(b.FirstSeen),
		RelayedBy:  b.RelayedBy,
		TotalFee:   b.TotalFee,
	}
	if b.Miner != nil {
		wantExpand := expand != nil && expand.Has("miner")
		view.Miner = v.poolView(b.Miner, wantExpand)
	}
	return view
}

func (v *Views) poolView(p *model.Pool, expand bool) interface{} {
	if !expand {
		return hrefRef{Href: v.url(fmt.Sprintf("/poolstats/#%s", p.Name))}
	}
	return PoolView{Name: p.Name, Solo: p.Solo, Website: p.Website, GraphColor: p.GraphColor}
}

// PoolView is the whitelisted JSON shape of a mining pool.
type PoolView struct {
	Name       string  `json:"name"`
	Solo       bool    `json:"solo"`
	Website    *string `json:"website,omitempty"`
	GraphColor *string `json:"graphcolor,omitempty"`
}

// TransactionView is the whitelisted JSON shape of a transaction.
type TransactionView struct {
	Txid          string      `json:"txid"`
	Size          int64       `json:"size"`
	Fee           float64     `json:"fee"`
	TotalValue    float64     `json:"totalvalue"`
	Time          int64       `json:"time"`
	RelayedBy     *string     `json:"relayedby,omitempty"`
	Confirmed     bool        `json:"confirmed"`
	Coinbase      bool        `json:"coinbase"`
	DoubleSpend   bool        `json:"doublespend"`
	Block         interface{} `json:"block,omitempty"`
}

// Transaction renders a transaction row, expanding its confirming block
// when requested.
func (v *Views) Transaction(t *model.Transaction, expand *ExpandSet) TransactionView {
	view := TransactionView{
		Txid:        hexOf(t.Txid),
		Size:        t.Size,
		Fee:         t.Fee,
		TotalValue:  t.TotalValue,
		Time:        unixSeconds(t.Timestamp()),
		RelayedBy:   t.RelayedBy,
		Confirmed:   t.Confirmed(),
		Coinbase:    t.IsCoinbase(),
		DoubleSpend: t.DoubleSpendsID != nil,
	}
	if t.Confirmation != nil && t.Confirmation.Block != nil {
		wantExpand := expand != nil && expand.Has("block")
		view.Block = v.blockHref(t.Confirmation.Block, wantExpand)
	}
	return view
}

// TxInView is the whitelisted JSON shape of one transaction input.
type TxInView struct {
	Index    int         `json:"index"`
	Coinbase bool        `json:"coinbase"`
	Output   interface{} `json:"output,omitempty"`
}

// TxIn renders one transaction input.
func (v *Views) TxIn(in *model.TransactionInput) TxInView {
	view := TxInView{Index: in.Index, Coinbase: in.InputID == nil}
	if in.Input != nil {
		view.Output = TxOutRefView{
			Txid:  hexOf(in.Input.Transaction.Txid),
			Index: in.Input.Index,
		}
	}
	return view
}

// TxOutRefView points at one output of a (possibly unexpanded) transaction.
type TxOutRefView struct {
	Txid  string `json:"txid"`
	Index int    `json:"index"`
}

// TxOutView is the whitelisted JSON shape of one transaction output.
type TxOutView struct {
	Index   int         `json:"index"`
	Type    string      `json:"type"`
	Amount  float64     `json:"amount"`
	Address interface{} `json:"address,omitempty"`
	Spent   bool        `json:"spent"`
}

// TxOut renders one transaction output.
func (v *Views) TxOut(out *model.TransactionOutput, expand *ExpandSet) TxOutView {
	view := TxOutView{
		Index:  out.Index,
		Type:   out.Type.String(),
		Amount: out.Amount,
		Spent:  !out.Unspent(),
	}
	if out.Address != nil {
		wantExpand := expand != nil && expand.Has("address")
		view.Address = v.addressHref(out.Address, wantExpand)
	}
	return view
}

// AddressView is the whitelisted JSON shape of an address.
type AddressView struct {
	Address string  `json:"address"`
	Type    string  `json:"type"`
	Balance float64 `json:"balance"`
}

// Address renders an address row.
func (v *Views) Address(a *model.Address) AddressView {
	addr := ""
	if a.Address != nil {
		addr = *a.Address
	}
	return AddressView{Address: addr, Type: a.Type.String(), Balance: a.Balance}
}

// PoolStatView is the whitelisted JSON shape of one pool's mining stats.
type PoolStatView struct {
	Name        string  `json:"name"`
	Blocks      int64   `json:"blocks"`
	LatestBlock int64   `json:"latestblock"`
	Website     *string `json:"website,omitempty"`
	GraphColor  *string `json:"graphcolor,omitempty"`
}

// PoolStat renders one engine.PoolStat row.
func (v *Views) PoolStat(s engine.PoolStat) PoolStatView {
	return PoolStatView{Name: s.Name, Blocks: s.Blocks, LatestBlock: s.LatestBlock, Website: s.Website, GraphColor: s.GraphColor}
}
