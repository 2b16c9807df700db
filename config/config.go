// Package config resolves the process configuration, adapted from the
// teacher's kasparov/kasparovd/config package: a single go-flags struct
// parsed from the command line and environment.
package config

import (
	"fmt"

	"github.com/jessevdk/go-flags"
)

const (
	defaultAPIEndpoint = "/"
	defaultHTTPListen  = "0.0.0.0:8080"
	defaultPIDFile     = "/run/indexerd.pid"
)

// Config holds every setting the indexer and API processes accept, via
// command-line flag or environment variable.
type Config struct {
	DaemonURL  string `long:"daemon" env:"DAEMON_URL" description:"Full node JSON-RPC endpoint, with basic-auth credentials embedded" required:"true"`
	DatabaseURL string `long:"database" env:"DATABASE_URL" description:"MySQL DSN for the indexer store" required:"true"`
	APIEndpoint string `long:"api-endpoint" env:"API_ENDPOINT" description:"Prefix used when generating HREFs in API responses" default:"/"`
	UTXOCache   bool   `long:"utxo-cache" env:"UTXO_CACHE" description:"Enable the optional third UTXO cache tier"`
	DebugSQL    bool   `long:"debug-sql" env:"DEBUG_SQL" description:"Log every SQL statement the ORM issues"`
	HTTPListen  string `long:"listen" env:"HTTP_LISTEN" description:"Address the query façade HTTP server listens on" default:"0.0.0.0:8080"`
	PIDFile     string `long:"pid-file" env:"PID_FILE" description:"Path to write the process PID to once the event loop is live" default:"/run/indexerd.pid"`
	MigrationsPath string `long:"migrations" env:"MIGRATIONS_PATH" description:"Directory of golang-migrate schema migration files" default:"model/migrations"`
}

// Parse parses CLI arguments (and environment variables, via go-flags' env
// tag) into a Config.
func Parse(args []string) (*Config, error) {
	cfg := &Config{
		APIEndpoint: defaultAPIEndpoint,
		HTTPListen:  defaultHTTPListen,
		PIDFile:     defaultPIDFile,
	}

	parser := flags.NewParser(cfg, flags.Default)
	_, err := parser.ParseArgs(args)
	if err != nil {
		return nil, fmt.Errorf("parsing command-line arguments: %w", err)
	}

	return cfg, nil
}
