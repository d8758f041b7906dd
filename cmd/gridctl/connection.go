package main

import (
	"context"
	"time"

	"github.com/srand/jolt/grid/pkg/filecache"
	"github.com/srand/jolt/grid/pkg/log"
	"github.com/srand/jolt/grid/pkg/pool"
	"github.com/srand/jolt/grid/pkg/utils"
	"google.golang.org/grpc"
)

func NewDispatcherClient() *pool.HttpClient {
	return pool.NewHttpClient(configData.DispatcherUri, nil)
}

// NewProvider returns a gRPC provider if a gRPC URI is configured,
// otherwise an HTTP provider. The returned function closes the connection.
func NewProvider() (filecache.Provider, func()) {
	if configData.RegistryGrpcUri == "" {
		return filecache.NewHttpProvider(configData.RegistryUri, nil), func() {}
	}

	grpcHost, err := utils.ParseGrpcUrl(configData.RegistryGrpcUri)
	if err != nil {
		log.Fatal(err)
	}

	conn, err := grpc.NewClient(grpcHost, configData.GRPCOptions.ToDialOptions()...)
	if err != nil {
		log.Fatal(err)
	}

	return filecache.NewGrpcProvider(conn), func() { conn.Close() }
}

func DefaultDeadlineContext() (context.Context, func()) {
	timeout := configData.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
