package main

import (
	"net"

	"github.com/srand/jolt/grid/pkg/log"
	"github.com/srand/jolt/grid/pkg/protocol"
	"github.com/srand/jolt/grid/pkg/registry"
	"github.com/srand/jolt/grid/pkg/utils"
	"google.golang.org/grpc"
	_ "google.golang.org/grpc/encoding/gzip"
)

// Sets up a gRPC server on a specific listening address and starts it.
func serveGrpc(reg *registry.Registry, options *utils.GRPCOptions, address string) {
	host, err := utils.ParseGrpcUrl(address)
	if err != nil {
		log.Fatal(err)
	}

	socket, err := net.Listen("tcp", host)
	if err != nil {
		log.Fatal(err)
	}

	log.Info("Listening on grpc", socket.Addr())

	server := grpc.NewServer(options.ToServerOptions()...)
	protocol.RegisterFileRegistryServer(server, registry.NewRegistryService(reg))
	if err := server.Serve(socket); err != nil {
		log.Fatal(err)
	}
}
