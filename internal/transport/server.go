package transport

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"google.golang.org/grpc"
)

var log = slog.Default()

// Responder is how the reactor core answers a request once its
// future is sealed. Implemented by *Server.
type Responder interface {
	Respond(route []string, payload []byte) error
}

// Publisher is how the reactor core broadcasts telemetry. Implemented
// by *Server.
type Publisher interface {
	Publish(envelope string, blob []byte)
}

// RequestHandler is supplied by the reactor core; it is called for
// every inbound ClientFrame.
type RequestHandler func(frame ClientFrame)

// Server is the gRPC-backed substitute for a ROUTER/PUB socket pair.
// One Multiplex stream per connected client carries
// requests in and responses out, keyed by the client's Route so a
// response can be steered back down the right stream even though gRPC
// itself has no concept of a shared router identity.
type Server struct {
	grpcServer *grpc.Server
	handler    RequestHandler
	watermark  int
	listener   net.Listener

	mu        sync.Mutex
	routes    map[string]chan ClientFrame // route key -> outbound response channel
	subs      map[string]chan Event       // subscriber id -> outbound event channel
	nextSubID int
}

func NewServer(handler RequestHandler, watermark int) *Server {
	return &Server{
		grpcServer: grpc.NewServer(),
		handler:    handler,
		watermark:  watermark,
		routes:     make(map[string]chan ClientFrame),
		subs:       make(map[string]chan Event),
	}
}

func routeKey(route []string) string { return strings.Join(route, "\x00") }

// Listen binds addr without accepting connections yet, so a caller can
// tell a bind failure apart from an accept-loop exit and announce the
// bound endpoint before blocking in Serve.
func (s *Server) Listen(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = lis
	return nil
}

// Serve accepts connections on the listener bound by Listen. It blocks
// until the listener fails or Stop is called.
func (s *Server) Serve() error {
	if s.listener == nil {
		return fmt.Errorf("transport: Serve called before Listen")
	}
	RegisterEngineHostServer(s.grpcServer, s)
	return s.grpcServer.Serve(s.listener)
}

func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

// Multiplex implements EngineHostServer.
func (s *Server) Multiplex(stream grpc.BidiStreamingServer[ClientFrame, ClientFrame]) error {
	first, err := stream.Recv()
	if err != nil {
		return err
	}
	key := routeKey(first.Route)
	out := s.registerRoute(key)
	defer s.unregisterRoute(key)

	go func() {
		for resp := range out {
			if sendErr := stream.Send(&resp); sendErr != nil {
				return
			}
		}
	}()

	s.handler(*first)
	for {
		frame, err := stream.Recv()
		if err != nil {
			return err
		}
		s.handler(*frame)
	}
}

// Subscribe implements EngineHostServer.
func (s *Server) Subscribe(req *SubscribeRequest, stream grpc.ServerStreamingServer[Event]) error {
	id, ch := s.registerSub()
	defer s.unregisterSub(id)

	for ev := range ch {
		if req.Prefix != "" && !strings.HasPrefix(ev.Envelope, req.Prefix) {
			continue
		}
		if err := stream.Send(&ev); err != nil {
			return err
		}
	}
	return nil
}

// Respond delivers a sealed future's payload back to the client that
// owns route. If the client's stream has already gone away the
// response is dropped, matching the original transport's semantics
// once a ROUTER identity is no longer reachable.
func (s *Server) Respond(route []string, payload []byte) error {
	s.mu.Lock()
	out, ok := s.routes[routeKey(route)]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("route %v is not connected", route)
	}
	select {
	case out <- ClientFrame{Route: route, Payload: payload}:
		return nil
	default:
		return fmt.Errorf("route %v response channel is full", route)
	}
}

// Publish broadcasts an event to every subscriber, applying the
// configured high-water-mark drop policy per subscriber rather than
// blocking the publisher on a slow reader.
func (s *Server) Publish(envelope string, blob []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- Event{Envelope: envelope, Blob: blob}:
		default:
			log.Warn("dropping event for slow subscriber", "subscriber", id, "envelope", envelope)
		}
	}
}

func (s *Server) registerRoute(key string) chan ClientFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan ClientFrame, s.watermarkOrDefault())
	s.routes[key] = ch
	return ch
}

func (s *Server) unregisterRoute(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.routes[key]; ok {
		close(ch)
		delete(s.routes, key)
	}
}

func (s *Server) registerSub() (string, chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := fmt.Sprintf("sub-%d", s.nextSubID)
	ch := make(chan Event, s.watermarkOrDefault())
	s.subs[id] = ch
	return id, ch
}

func (s *Server) unregisterSub(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *Server) watermarkOrDefault() int {
	if s.watermark <= 0 {
		return 64
	}
	return s.watermark
}
