package main

import (
	"time"

	"github.com/srand/jolt/grid/pkg/utils"
)

type ControlConfig struct {
	utils.GRPCOptions `mapstructure:"grpc"`

	// Dispatcher HTTP URI, e.g. http://dispatcher:8080
	DispatcherUri string `mapstructure:"dispatcher_uri"`

	// Registry HTTP URI, e.g. http://registry:8080
	RegistryUri string `mapstructure:"registry_uri"`

	// Registry gRPC URI, e.g. tcp://registry:9090.
	// Preferred over RegistryUri when set.
	RegistryGrpcUri string `mapstructure:"registry_grpc_uri"`

	// Directory where fetched files are materialised.
	CacheDir string `mapstructure:"cache_dir"`

	// Deadline of requests.
	Timeout time.Duration `mapstructure:"timeout"`

	// Log verbosity level: 0 = info, 1 = debug, 2 = trace
	Verbosity int `mapstructure:"verbosity"`
}
