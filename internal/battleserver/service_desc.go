package battleserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "shinobi.battle.v1.BattleService"

const (
	methodSimulate   = "/" + ServiceName + "/Simulate"
	methodEngage     = "/" + ServiceName + "/Engage"
	methodEngagement = "/" + ServiceName + "/GetEngagement"
	methodHistory    = "/" + ServiceName + "/History"
)

// BattleServiceServer is the server API for BattleService. Every message is a
// google.protobuf.Struct carrying the JSON form of the battle package's params.
type BattleServiceServer interface {
	Simulate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Engage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEngagement(context.Context, *structpb.Struct) (*structpb.Struct, error)
	History(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterBattleServiceServer registers srv on s.
func RegisterBattleServiceServer(s grpc.ServiceRegistrar, srv BattleServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unaryHandler(method string, call func(BattleServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BattleServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BattleServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc is the grpc.ServiceDesc for BattleService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BattleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Simulate", Handler: unaryHandler(methodSimulate, BattleServiceServer.Simulate)},
		{MethodName: "Engage", Handler: unaryHandler(methodEngage, BattleServiceServer.Engage)},
		{MethodName: "GetEngagement", Handler: unaryHandler(methodEngagement, BattleServiceServer.GetEngagement)},
		{MethodName: "History", Handler: unaryHandler(methodHistory, BattleServiceServer.History)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shinobi/battle/v1/battle.proto",
}

// BattleServiceClient is the client API for BattleService.
type BattleServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewBattleServiceClient creates a client over cc.
func NewBattleServiceClient(cc grpc.ClientConnInterface) *BattleServiceClient {
	return &BattleServiceClient{cc: cc}
}

func (c *BattleServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Simulate runs an unpersisted engagement between two snapshots.
func (c *BattleServiceClient) Simulate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodSimulate, in, opts...)
}

// Engage runs and records an engagement between two stored profiles.
func (c *BattleServiceClient) Engage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodEngage, in, opts...)
}

// GetEngagement fetches a recorded engagement by id.
func (c *BattleServiceClient) GetEngagement(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodEngagement, in, opts...)
}

// History lists a profile's recent engagements.
func (c *BattleServiceClient) History(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodHistory, in, opts...)
}
