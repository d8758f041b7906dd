package main

import (
	"time"

	"github.com/srand/jolt/grid/pkg/identity"
	"github.com/srand/jolt/grid/pkg/log"
)

type Config struct {
	// Addresses to listen on for HTTP.
	// Ex: tcp://127.0.0.1:8080
	ListenHttp []string `mapstructure:"listen_http"`

	// Default time to wait for a busy matching token.
	MatchTimeout time.Duration `mapstructure:"match_timeout"`

	// Default time to wait when no registered token can match.
	NoMatchTimeout time.Duration `mapstructure:"no_match_timeout"`

	// Attribute keys used to group the capacity metrics.
	CapacityGroups []string `mapstructure:"capacity_groups"`

	// Statically registered workers.
	Workers []identity.WorkerConfig `mapstructure:"workers"`

	// Register the local node as a worker, with the
	// attributes from the "attributes" key.
	LocalWorker bool `mapstructure:"local_worker"`

	// Log verbosity level: 0 = info, 1 = debug, 2 = trace
	Verbosity int `mapstructure:"verbosity"`
}

func (c *Config) Log() {
	log.Info("Dispatcher configuration:")
	log.Infof("  listen_http = %v", c.ListenHttp)
	log.Infof("  match_timeout = %s", c.MatchTimeout)
	log.Infof("  no_match_timeout = %s", c.NoMatchTimeout)
	log.Infof("  capacity_groups = %v", c.CapacityGroups)
	log.Infof("  workers = %d", len(c.Workers))
	log.Infof("  local_worker = %v", c.LocalWorker)
}
