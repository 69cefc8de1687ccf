package relinker

import (
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// GRPCLocator is the default Locator, dialing and caching one
// *grpc.ClientConn per label.
type GRPCLocator struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

func NewGRPCLocator() *GRPCLocator {
	return &GRPCLocator{conns: make(map[string]*grpc.ClientConn)}
}

// Link (re)establishes the cached connection for label if its
// endpoint has changed, or lazily dials it for the first time.
func (l *GRPCLocator) Link(label, endpoint string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if conn, ok := l.conns[label]; ok {
		if conn.Target() == endpoint {
			return nil
		}
		conn.Close()
		delete(l.conns, label)
	}

	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial peer %s at %s: %w", label, endpoint, err)
	}
	l.conns[label] = conn
	return nil
}

func (l *GRPCLocator) Conn(label string) (*grpc.ClientConn, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	conn, ok := l.conns[label]
	return conn, ok
}

func (l *GRPCLocator) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, conn := range l.conns {
		conn.Close()
	}
	l.conns = make(map[string]*grpc.ClientConn)
}
