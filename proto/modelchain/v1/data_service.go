// Package modelchainv1 declares the modelchain.v1.DataService gRPC service.
// Requests and responses are google.protobuf.Struct messages, so the service
// needs no generated message types.
package modelchainv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	DataService_GetAll_FullMethodName = "/modelchain.v1.DataService/GetAll"
	DataService_GetOne_FullMethodName = "/modelchain.v1.DataService/GetOne"
	DataService_Count_FullMethodName  = "/modelchain.v1.DataService/Count"
	DataService_Plan_FullMethodName   = "/modelchain.v1.DataService/Plan"
)

// DataServiceServer is the server API for DataService.
//
// Every request carries the entity chain as an ordered list:
//
//	{"chain": [{"entity": "User", "params": {"id": 1}}, {"entity": "Post"}], "args": [1]}
type DataServiceServer interface {
	// GetAll resolves every row of the chain's terminal entity with all relationships nested
	GetAll(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GetOne resolves the row whose primary key is args[0]
	GetOne(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Count counts rows of the terminal entity, optionally matching args[0]
	Count(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Plan returns the accumulated query components of the chain and their SQL
	Plan(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedDataServiceServer must be embedded for forward compatibility
type UnimplementedDataServiceServer struct{}

func (UnimplementedDataServiceServer) GetAll(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAll not implemented")
}

func (UnimplementedDataServiceServer) GetOne(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetOne not implemented")
}

func (UnimplementedDataServiceServer) Count(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Count not implemented")
}

func (UnimplementedDataServiceServer) Plan(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Plan not implemented")
}

// RegisterDataServiceServer registers srv on s
func RegisterDataServiceServer(s grpc.ServiceRegistrar, srv DataServiceServer) {
	s.RegisterService(&DataService_ServiceDesc, srv)
}

func unaryHandler(fullMethod string, call func(DataServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DataServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(DataServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// DataService_ServiceDesc is the grpc.ServiceDesc for DataService
var DataService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "modelchain.v1.DataService",
	HandlerType: (*DataServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetAll",
			Handler:    unaryHandler(DataService_GetAll_FullMethodName, DataServiceServer.GetAll),
		},
		{
			MethodName: "GetOne",
			Handler:    unaryHandler(DataService_GetOne_FullMethodName, DataServiceServer.GetOne),
		},
		{
			MethodName: "Count",
			Handler:    unaryHandler(DataService_Count_FullMethodName, DataServiceServer.Count),
		},
		{
			MethodName: "Plan",
			Handler:    unaryHandler(DataService_Plan_FullMethodName, DataServiceServer.Plan),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "modelchain/v1/data_service.proto",
}

// DataServiceClient is the client API for DataService
type DataServiceClient interface {
	GetAll(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetOne(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Count(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Plan(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type dataServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewDataServiceClient creates a client on cc
func NewDataServiceClient(cc grpc.ClientConnInterface) DataServiceClient {
	return &dataServiceClient{cc: cc}
}

func (c *dataServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *dataServiceClient) GetAll(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, DataService_GetAll_FullMethodName, in, opts)
}

func (c *dataServiceClient) GetOne(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, DataService_GetOne_FullMethodName, in, opts)
}

func (c *dataServiceClient) Count(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, DataService_Count_FullMethodName, in, opts)
}

func (c *dataServiceClient) Plan(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, DataService_Plan_FullMethodName, in, opts)
}
