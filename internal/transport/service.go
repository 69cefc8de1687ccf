package transport

import (
	"google.golang.org/grpc"
)

// EngineHostServer is implemented by Server. It is hand-registered
// against a grpc.ServiceDesc below rather than generated from a
// .proto file, so this package needs no protoc toolchain step.
type EngineHostServer interface {
	// Multiplex is the bidirectional request/response channel that
	// replaces the original ROUTER socket: clients send ClientFrames,
	// the server streams back ClientFrames carrying responses.
	Multiplex(stream grpc.BidiStreamingServer[ClientFrame, ClientFrame]) error
	// Subscribe is the server-streaming channel that replaces the
	// original PUB socket: the client sends one SubscribeRequest and
	// receives a stream of Events matching its prefix.
	Subscribe(req *SubscribeRequest, stream grpc.ServerStreamingServer[Event]) error
}

func multiplexHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(EngineHostServer).Multiplex(&multiplexServer{stream})
}

type multiplexServer struct{ grpc.ServerStream }

func (m *multiplexServer) Send(frame *ClientFrame) error { return m.ServerStream.SendMsg(frame) }
func (m *multiplexServer) Recv() (*ClientFrame, error) {
	frame := new(ClientFrame)
	if err := m.ServerStream.RecvMsg(frame); err != nil {
		return nil, err
	}
	return frame, nil
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(SubscribeRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(EngineHostServer).Subscribe(req, &subscribeServer{stream})
}

type subscribeServer struct{ grpc.ServerStream }

func (s *subscribeServer) Send(ev *Event) error { return s.ServerStream.SendMsg(ev) }

// ServiceDesc is the hand-written stand-in for protoc-generated
// service descriptors.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "enginehost.EngineHost",
	HandlerType: (*EngineHostServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Multiplex",
			Handler:       multiplexHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "enginehost.proto",
}

// RegisterEngineHostServer wires an EngineHostServer implementation
// into a grpc.Server, mirroring the pb.RegisterXxxServer function a
// protoc-generated stub would provide.
func RegisterEngineHostServer(s grpc.ServiceRegistrar, srv EngineHostServer) {
	s.RegisterService(&ServiceDesc, srv)
}
