package main

import (
	"github.com/srand/jolt/grid/pkg/log"
	"github.com/srand/jolt/grid/pkg/utils"
)

type Config struct {
	utils.GRPCOptions `mapstructure:"grpc"`

	// Addresses to listen on for gRPC.
	// Ex: tcp://127.0.0.1:9090
	ListenGrpc []string `mapstructure:"listen_grpc"`

	// Addresses to listen on for HTTP.
	// Ex: tcp://127.0.0.1:8080
	ListenHttp []string `mapstructure:"listen_http"`

	// Filesystem path to registered files.
	// Use "memory" to only serve uploaded content.
	Path string `mapstructure:"path"`

	// Files and directories below Path registered at startup.
	Files []string `mapstructure:"files"`

	// Log verbosity level: 0 = info, 1 = debug, 2 = trace
	Verbosity int `mapstructure:"verbosity"`
}

func (c *Config) Log() {
	log.Info("Registry configuration:")
	log.Infof("  listen_grpc = %v", c.ListenGrpc)
	log.Infof("  listen_http = %v", c.ListenHttp)
	log.Infof("  path = %s", c.Path)
	log.Infof("  files = %v", c.Files)
	c.GRPCOptions.Log()
}
