package filecache

import (
	"context"

	"github.com/srand/jolt/grid/pkg/protocol"
	"github.com/srand/jolt/grid/pkg/utils"
	"google.golang.org/grpc"
)

// Fetches payloads from a remote registry over gRPC.
type GrpcProvider struct {
	client protocol.FileRegistryClient
}

func NewGrpcProvider(conn grpc.ClientConnInterface) *GrpcProvider {
	return &GrpcProvider{client: protocol.NewFileRegistryClient(conn)}
}

func (p *GrpcProvider) GetFile(ctx context.Context, id string) (*protocol.FilePayload, error) {
	payload, err := p.client.GetFile(ctx, id)
	if err != nil {
		return nil, utils.FromGrpcError(err)
	}
	return payload, nil
}
