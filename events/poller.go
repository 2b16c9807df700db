package events

import (
	"time"

	"github.com/freshgrlc/freshgrlc-indexer/engine"
)

// pollInterval matches eventgen.py's listener `sleep(2)` cadence.
const pollInterval = 2 * time.Second

// SessionFactory opens a fresh, independent read session, mirroring
// `db.new_session()` being called once per listener tick in the ancestor.
type SessionFactory func() (*engine.ReadSession, error)

// RunPoller watches the chain tip and the latest transaction id, publishing
// newblock/newtx events as they appear and mempoolupdate events for the
// mempool. Intended to run in its own
// goroutine for the lifetime of the API process. Grounded on
// eventgen.py's IndexerEventStream.listener.
func RunPoller(hub *Hub, newSession SessionFactory) error {
	session, err := newSession()
	if err != nil {
		return err
	}

	lastHeight, err := session.ChainTipHeight()
	if err != nil {
		return err
	}
	lastTxID, err := latestTransactionID(session)
	if err != nil {
		return err
	}
	session.Close()

	mempoolDirty := true

	for {
		time.Sleep(pollInterval)

		session, err := newSession()
		if err != nil {
			continue
		}

		curHeight, err := session.ChainTipHeight()
		if err == nil && curHeight > lastHeight {
			blocks, err := session.Blocks(engine.Page{Start: lastHeight, Limit: int(curHeight - lastHeight)})
			if err == nil {
				for _, b := range blocks {
					hub.Publish(Event{Name: "newblock", Channel: "blocks", Data: b})
				}
			}
			lastHeight = curHeight
			mempoolDirty = true
		}

		curTxID, err := latestTransactionID(session)
		if err == nil && curTxID > lastTxID {
			txs, err := session.LatestTransactions(int(curTxID-lastTxID), false)
			if err == nil {
				for i := len(txs) - 1; i >= 0; i-- {
					hub.Publish(Event{Name: "newtx", Channel: "transactions", Data: txs[i]})
				}
			}
			lastTxID = curTxID
			mempoolDirty = true
		}

		if mempoolDirty {
			mempool, err := session.Mempool()
			if err == nil {
				hub.Publish(Event{Name: "mempoolupdate", Channel: "mempool", Data: mempool})
				mempoolDirty = false
			}
		}

		session.Close()
	}
}

func latestTransactionID(session *engine.ReadSession) (int64, error) {
	txs, err := session.LatestTransactions(1, false)
	if err != nil {
		return 0, err
	}
	if len(txs) == 0 {
		return 0, nil
	}
	return txs[0].ID, nil
}
