package registry

import (
	"context"

	"github.com/srand/jolt/grid/pkg/log"
	"github.com/srand/jolt/grid/pkg/protocol"
	"github.com/srand/jolt/grid/pkg/utils"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type registryService struct {
	registry *Registry
}

func NewRegistryService(registry *Registry) protocol.FileRegistryServer {
	return &registryService{
		registry: registry,
	}
}

func (svc *registryService) GetFile(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	payload, err := svc.registry.GetFile(req.GetValue())
	if err != nil {
		log.Debugf("get - file - id: %s, err: %v", req.GetValue(), err)
		return nil, utils.GrpcError(err)
	}

	response, err := payload.ToStruct()
	if err != nil {
		return nil, utils.GrpcError(err)
	}

	return response, nil
}
