package protocol

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The file registry gRPC service.
//
// The service only uses protobuf well-known types, so it is described
// by hand instead of generated from a .proto file:
//
//	service FileRegistry {
//	  rpc GetFile(google.protobuf.StringValue) returns (google.protobuf.Struct);
//	}
const (
	FileRegistryServiceName = "grid.FileRegistry"
	FileRegistryGetFile     = "/grid.FileRegistry/GetFile"
)

// Server side of the FileRegistry service.
type FileRegistryServer interface {
	GetFile(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

func getFileHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FileRegistryServer).GetFile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FileRegistryGetFile,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FileRegistryServer).GetFile(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

var FileRegistryServiceDesc = grpc.ServiceDesc{
	ServiceName: FileRegistryServiceName,
	HandlerType: (*FileRegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetFile",
			Handler:    getFileHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "grid/file_registry",
}

// RegisterFileRegistryServer registers the service implementation with s.
func RegisterFileRegistryServer(s grpc.ServiceRegistrar, srv FileRegistryServer) {
	s.RegisterService(&FileRegistryServiceDesc, srv)
}

// Client side of the FileRegistry service.
type FileRegistryClient interface {
	GetFile(ctx context.Context, id string, opts ...grpc.CallOption) (*FilePayload, error)
}

type fileRegistryClient struct {
	cc grpc.ClientConnInterface
}

func NewFileRegistryClient(cc grpc.ClientConnInterface) FileRegistryClient {
	return &fileRegistryClient{cc: cc}
}

func (c *fileRegistryClient) GetFile(ctx context.Context, id string, opts ...grpc.CallOption) (*FilePayload, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FileRegistryGetFile, wrapperspb.String(id), out, opts...); err != nil {
		return nil, err
	}
	return FilePayloadFromStruct(out)
}
