package httpapi

import (
	"net/http"
	"strconv"

	"github.com/freshgrlc/freshgrlc-indexer/engine"
	"github.com/freshgrlc/freshgrlc-indexer/model"
)

func (s *Server) handleBlocks(r *http.Request, _ map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	page, err := engine.ResolvePage(queryInt64(r, "start"), queryInt64(r, "limit"), queryInt64(r, "interval"), session.ChainTipHeight)
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}

	blocks, err := session.Blocks(page)
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}

	expand := queryExpand(r)
	out := make([]BlockView, len(blocks))
	for i := range blocks {
		out[i] = s.views.Block(&blocks[i], expand)
	}
	return out, nil
}

func (s *Server) handleBlock(r *http.Request, vars map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	block, err := session.Block(vars["id"])
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	if block == nil {
		return nil, notFound("block")
	}
	return s.views.Block(block, queryExpand(r)), nil
}

func (s *Server) handleBlockMiner(r *http.Request, vars map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	block, err := session.Block(vars["id"])
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	if block == nil {
		return nil, notFound("block")
	}
	if block.Miner == nil {
		return nil, notFound("miner")
	}
	return s.views.poolView(block.Miner, true), nil
}

func (s *Server) handleBlockTransactions(r *http.Request, vars map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	block, err := session.Block(vars["id"])
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	if block == nil {
		return nil, notFound("block")
	}

	txs, err := session.BlockTransactions(block.ID)
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}

	expand := queryExpand(r)
	out := make([]TransactionView, len(txs))
	for i := range txs {
		out[i] = s.views.Transaction(&txs[i], expand)
	}
	return out, nil
}

func (s *Server) handleTransactions(r *http.Request, _ map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	limit := queryInt(r, "limit", engine.DefaultPageSize)
	confirmed := queryConfirmed(r)

	switch {
	case confirmed == nil:
		txList, err := session.LatestTransactions(limit, false)
		if err != nil {
			return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
		}
		return s.renderTransactions(txList, queryExpand(r)), nil
	case *confirmed:
		txList, err := session.LatestTransactions(limit, true)
		if err != nil {
			return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
		}
		return s.renderTransactions(txList, queryExpand(r)), nil
	default:
		txList, err := session.Mempool()
		if err != nil {
			return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
		}
		return s.renderTransactions(txList, queryExpand(r)), nil
	}
}

func (s *Server) renderTransactions(txs []model.Transaction, expand *ExpandSet) []TransactionView {
	out := make([]TransactionView, len(txs))
	for i := range txs {
		out[i] = s.views.Transaction(&txs[i], expand)
	}
	return out
}

func (s *Server) handleTransaction(r *http.Request, vars map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	tx, err := session.Transaction(vars["txid"])
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	if tx == nil {
		return nil, notFound("transaction")
	}
	return s.views.Transaction(tx, queryExpand(r)), nil
}

func (s *Server) resolveTransactionID(session *engine.ReadSession, txid string) (int64, *HandlerError) {
	tx, err := session.Transaction(txid)
	if err != nil {
		return 0, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	if tx == nil {
		return 0, notFound("transaction")
	}
	return tx.ID, nil
}

func (s *Server) handleTransactionInputs(r *http.Request, vars map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	id, hErr := s.resolveTransactionID(session, vars["txid"])
	if hErr != nil {
		return nil, hErr
	}

	ins, err := session.TransactionInputs(id)
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	out := make([]TxInView, len(ins))
	for i := range ins {
		out[i] = s.views.TxIn(&ins[i])
	}
	return out, nil
}

func (s *Server) handleTransactionInput(r *http.Request, vars map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	id, hErr := s.resolveTransactionID(session, vars["txid"])
	if hErr != nil {
		return nil, hErr
	}
	index, convErr := strconv.Atoi(vars["index"])
	if convErr != nil {
		return nil, NewHandlerError(http.StatusNotFound, "invalid input index")
	}

	in, err := session.TransactionInput(id, index)
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	if in == nil {
		return nil, notFound("input")
	}
	return s.views.TxIn(in), nil
}

func (s *Server) handleTransactionOutputs(r *http.Request, vars map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	id, hErr := s.resolveTransactionID(session, vars["txid"])
	if hErr != nil {
		return nil, hErr
	}

	outs, err := session.TransactionOutputs(id)
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	expand := queryExpand(r)
	out := make([]TxOutView, len(outs))
	for i := range outs {
		out[i] = s.views.TxOut(&outs[i], expand)
	}
	return out, nil
}

func (s *Server) handleTransactionOutput(r *http.Request, vars map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	id, hErr := s.resolveTransactionID(session, vars["txid"])
	if hErr != nil {
		return nil, hErr
	}
	index, convErr := strconv.Atoi(vars["index"])
	if convErr != nil {
		return nil, NewHandlerError(http.StatusNotFound, "invalid output index")
	}

	out, err := session.TransactionOutput(id, index)
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	if out == nil {
		return nil, notFound("output")
	}
	return s.views.TxOut(out, queryExpand(r)), nil
}

func (s *Server) handleTransactionMutations(r *http.Request, vars map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	id, hErr := s.resolveTransactionID(session, vars["txid"])
	if hErr != nil {
		return nil, hErr
	}

	var muts []struct {
		AddressID int64
		Amount    float64
		Address   string
	}
	err = session.DB().Table("mutation").
		Select("mutation.address as address_id, mutation.amount as amount, address.address as address").
		Joins("JOIN address ON address.id = mutation.address").
		Where("mutation.transaction = ?", id).Scan(&muts).Error
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}

	type txMutationView struct {
		Address string  `json:"address"`
		Change  float64 `json:"change"`
	}
	out := make([]txMutationView, len(muts))
	for i, m := range muts {
		out[i] = txMutationView{Address: m.Address, Change: m.Amount}
	}
	return out, nil
}

func (s *Server) handleAddress(r *http.Request, vars map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	addr, err := session.AddressInfo(vars["address"])
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	if addr == nil {
		return nil, notFound("address")
	}
	return s.views.Address(addr), nil
}

func (s *Server) handleAddressBalance(r *http.Request, vars map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	addr, err := session.AddressInfo(vars["address"])
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	if addr == nil {
		return nil, notFound("address")
	}
	return map[string]float64{"balance": addr.Balance}, nil
}

func (s *Server) handleAddressPending(r *http.Request, vars map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	addr, err := session.AddressInfo(vars["address"])
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	if addr == nil {
		return nil, notFound("address")
	}

	confirmedFalse := false
	rows, err := session.AddressMutations(addr.ID, &confirmedFalse, 0, 1000)
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	var pending float64
	for _, row := range rows {
		pending += row.Change
	}
	return map[string]float64{"pending": pending}, nil
}

func (s *Server) handleAddressMutations(r *http.Request, vars map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	addr, err := session.AddressInfo(vars["address"])
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	if addr == nil {
		return nil, notFound("address")
	}

	start := queryInt(r, "start", 0)
	limit := queryInt(r, "limit", engine.DefaultPageSize)
	confirmed := queryConfirmed(r)

	rows, err := session.AddressMutations(addr.ID, confirmed, start, limit)
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}

	type mutationRowView struct {
		Time      int64   `json:"time"`
		Txid      string  `json:"txid"`
		Change    float64 `json:"change"`
		Confirmed bool    `json:"confirmed"`
	}
	out := make([]mutationRowView, len(rows))
	for i, row := range rows {
		out[i] = mutationRowView{
			Time:      row.Time.Unix(),
			Txid:      hexOf(row.Txid),
			Change:    row.Change,
			Confirmed: row.Confirmed,
		}
	}
	return out, nil
}

func (s *Server) handleNetworkStats(r *http.Request, _ map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	since := queryInt64(r, "since")
	var sinceUnix int64
	if since != nil {
		sinceUnix = *since
	}

	stats, err := session.NetworkStats(sinceUnix)
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}

	return map[string]interface{}{
		"blocks": map[string]interface{}{
			"amount": stats.Blocks,
		},
		"transactions": map[string]interface{}{
			"amount":     stats.Transactions,
			"totalvalue": stats.TransactedValue,
		},
		"totalfees":     stats.TotalFees,
		"coinsreleased": stats.CoinsReleased,
	}, nil
}

func (s *Server) handlePoolStats(r *http.Request, _ map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	since := queryInt64(r, "since")
	var sinceUnix int64
	if since != nil {
		sinceUnix = *since
	}

	stats, err := session.PoolStats(sinceUnix)
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	out := make([]PoolStatView, len(stats))
	for i, stat := range stats {
		out[i] = s.views.PoolStat(stat)
	}
	return out, nil
}

func (s *Server) handleRichList(r *http.Request, _ map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	start := queryInt(r, "start", 0)
	limit := queryInt(r, "limit", engine.DefaultPageSize)
	if limit <= 0 || limit > engine.MaxPageSize {
		limit = engine.MaxPageSize
	}

	addrs, err := session.RichList(start, limit)
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	out := make([]AddressView, len(addrs))
	for i := range addrs {
		out[i] = s.views.Address(&addrs[i])
	}
	return out, nil
}

func (s *Server) handleCoins(r *http.Request, _ map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	current, err := session.TotalCoinsInAddresses()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	stats, err := session.NetworkStats(0)
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}

	return map[string]interface{}{
		"total": map[string]interface{}{
			"released": stats.CoinsReleased,
			"current":  current,
		},
	}, nil
}

func (s *Server) handleSearch(r *http.Request, vars map[string]string) (interface{}, *HandlerError) {
	session, err := s.newSession()
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	defer session.Close()

	kind, err := session.ClassifyID(vars["id"])
	if err != nil {
		return nil, NewHandlerError(http.StatusInternalServerError, err.Error())
	}
	if kind == "" {
		return nil, notFound("id")
	}

	var href string
	switch kind {
	case "address":
		href = s.views.url("/address/" + vars["id"] + "/")
	case "transaction":
		href = s.views.url("/transactions/" + vars["id"] + "/")
	case "block":
		block, err := session.Block(vars["id"])
		if err != nil || block == nil {
			return nil, notFound("id")
		}
		href = s.views.url("/blocks/" + hexOf(block.Hash) + "/")
	}

	return map[string]string{"type": kind, "href": href}, nil
}
