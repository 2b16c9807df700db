// Command apiserverd is the read-only query façade process (component K):
// it never writes, serving paginated JSON views and the SSE event stream
// over HTTP while the indexerd process does all indexing. Grounded on the
// teacher's apiserver/main.go and kasparov/kasparovserver/main.go
// process-wiring shape, generalized to a two-process split.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql"
	"github.com/sirupsen/logrus"

	"github.com/freshgrlc/freshgrlc-indexer/config"
	"github.com/freshgrlc/freshgrlc-indexer/engine"
	"github.com/freshgrlc/freshgrlc-indexer/events"
	"github.com/freshgrlc/freshgrlc-indexer/httpapi"
	"github.com/freshgrlc/freshgrlc-indexer/logging"
)

func main() {
	log := logging.For(logging.SubsystemHTTP)

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.DebugSQL {
		logging.SetLevel(logrus.DebugLevel)
	}

	newSession := func() (*engine.ReadSession, error) {
		db, err := gorm.Open("mysql", cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		db.LogMode(cfg.DebugSQL)
		return engine.NewReadSession(db), nil
	}

	hub := events.NewHub()
	go func() {
		if err := events.RunPoller(hub, newSession); err != nil {
			log.Errorf("event poller stopped: %s", err)
		}
	}()

	server := httpapi.NewServer(newSession, cfg.APIEndpoint, hub, log)

	httpServer := &http.Server{Addr: cfg.HTTPListen, Handler: server.Handler()}

	if err := writePIDFile(cfg.PIDFile); err != nil {
		log.Warnf("writing PID file: %s", err)
	} else {
		defer os.Remove(cfg.PIDFile)
	}

	go func() {
		log.Infof("listening on %s", cfg.HTTPListen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server stopped: %s", err)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	log.Info("shutting down")
	httpServer.Close()
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d", os.Getpid())), 0644)
}
