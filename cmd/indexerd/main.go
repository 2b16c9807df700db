// Command indexerd is the single-writer process: it owns the database
// connection that performs every write, drives the scheduler (component J)
// to completion of initial sync and then forever in the Live state, and
// exits cleanly on interrupt. Grounded on the teacher's apiserver/main.go
// and kasparov/kasparovserver/main.go process-wiring shape.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql"

	"github.com/sirupsen/logrus"

	"github.com/freshgrlc/freshgrlc-indexer/config"
	"github.com/freshgrlc/freshgrlc-indexer/engine"
	"github.com/freshgrlc/freshgrlc-indexer/logging"
	"github.com/freshgrlc/freshgrlc-indexer/rpcclient"
)

const daemonTimeout = 30 * time.Second

func main() {
	log := logging.For(logging.SubsystemMain)

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.DebugSQL {
		logging.SetLevel(logrus.DebugLevel)
	}

	db, err := gorm.Open("mysql", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connecting to database: %s", err)
	}
	defer db.Close()
	db.LogMode(cfg.DebugSQL)

	if err := runSchemaMigrations(cfg); err != nil {
		log.Fatalf("running schema migrations: %s", err)
	}

	daemon, err := rpcclient.New(cfg.DaemonURL, daemonTimeout)
	if err != nil {
		log.Fatalf("connecting to full node: %s", err)
	}

	session := engine.NewSession(db, cfg.UTXOCache)
	if err := session.ResetSlowAddressBalanceUpdates(); err != nil {
		log.Fatalf("resetting in-progress balance updates: %s", err)
	}

	if err := writePIDFile(cfg.PIDFile); err != nil {
		log.Warnf("writing PID file: %s", err)
	} else {
		defer os.Remove(cfg.PIDFile)
	}

	sch := engine.NewScheduler(session, daemon, log)

	ctx, cancel := context.WithCancel(context.Background())
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		log.Info("shutting down")
		cancel()
	}()

	if err := sch.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("scheduler stopped: %s", err)
	}
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d", os.Getpid())), 0644)
}
