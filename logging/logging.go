// Package logging sets up the process's structured logger, adapted from
// the teacher's logger package: a single backend with one tagged logger
// per subsystem. The teacher's own backend (github.com/daglabs/btcd/logs)
// isn't importable standalone — it's tightly coupled to the rest of that
// module — so sirupsen/logrus substitutes here (see DESIGN.md); the
// subsystem-tag idiom itself is kept.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Subsystem tags, matching the teacher's four-letter uppercase convention.
const (
	SubsystemSync  = "SYNC" // block/mempool synchronization (component D/F)
	SubsystemTxIn  = "TXIN" // transaction import (component E)
	SubsystemBlnc  = "BLNC" // balance reconciliation (component G)
	SubsystemCDD   = "CDD_" // coin-days-destroyed accounting (component H)
	SubsystemMigr  = "MIGR" // data-backfill migration runner (component I)
	SubsystemHTTP  = "HTTP" // query façade / HTTP server (component K)
	SubsystemRPC   = "RPC_" // full node JSON-RPC client
	SubsystemMain  = "MAIN" // process wiring / signal handling
)

var backend = newBackend()

func newBackend() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}

// SetLevel adjusts the backend's minimum log level, used for --debug-sql
// and similar verbosity flags.
func SetLevel(level logrus.Level) {
	backend.SetLevel(level)
}

// For returns the tagged logger for one subsystem.
func For(subsystem string) *logrus.Entry {
	return backend.WithField("subsystem", subsystem)
}
