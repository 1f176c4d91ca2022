package rpc

import (
	"context"

	api "github.com/etesami/traffic-accident-observer/api"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName        = "observer.TrackObserver"
	ProcessFrameMethod = "/" + ServiceName + "/ProcessFrame"
)

// TrackObserverServer is implemented by the observer service.
type TrackObserverServer interface {
	ProcessFrame(context.Context, *api.FrameBatch) (*api.FrameAck, error)
}

// UnimplementedTrackObserverServer can be embedded to satisfy TrackObserverServer.
type UnimplementedTrackObserverServer struct{}

func (UnimplementedTrackObserverServer) ProcessFrame(context.Context, *api.FrameBatch) (*api.FrameAck, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ProcessFrame not implemented")
}

// TrackObserverClient sends frame batches to the observer service.
type TrackObserverClient interface {
	ProcessFrame(ctx context.Context, in *api.FrameBatch, opts ...grpc.CallOption) (*api.FrameAck, error)
}

type trackObserverClient struct {
	cc grpc.ClientConnInterface
}

func NewTrackObserverClient(cc grpc.ClientConnInterface) TrackObserverClient {
	return &trackObserverClient{cc}
}

func (c *trackObserverClient) ProcessFrame(ctx context.Context, in *api.FrameBatch, opts ...grpc.CallOption) (*api.FrameAck, error) {
	out := new(api.FrameAck)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(Name)}, opts...)
	if err := c.cc.Invoke(ctx, ProcessFrameMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterTrackObserverServer(s grpc.ServiceRegistrar, srv TrackObserverServer) {
	s.RegisterService(&trackObserverServiceDesc, srv)
}

func processFrameHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(api.FrameBatch)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TrackObserverServer).ProcessFrame(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ProcessFrameMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TrackObserverServer).ProcessFrame(ctx, req.(*api.FrameBatch))
	}
	return interceptor(ctx, in, info, handler)
}

var trackObserverServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TrackObserverServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ProcessFrame",
			Handler:    processFrameHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "observer",
}
