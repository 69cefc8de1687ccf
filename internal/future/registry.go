package future

import (
	"github.com/google/uuid"

	"github.com/ChuLiYu/beaver-engine/pkg/types"
)

// Counters mirrors the "created/destroyed" hooks a metrics collector
// exposes for one object class.
type Counters interface {
	Created()
	Destroyed()
}

// Registry tracks in-flight futures. It is owned exclusively by the
// reactor goroutine: callers must never share a Registry across
// goroutines, and it therefore carries no mutex.
type Registry struct {
	futures map[types.FutureID]*Future
	counter Counters
}

func NewRegistry(counter Counters) *Registry {
	return &Registry{futures: make(map[types.FutureID]*Future), counter: counter}
}

// New allocates and registers a fresh future awaiting expected parts.
// route is nil for futures created during startup recovery, such
// futures are discarded silently on seal instead of being routed to a
// client.
func (r *Registry) New(route types.Route, expected int) *Future {
	f := newFuture(types.FutureID(uuid.NewString()), route, expected)
	r.futures[f.ID] = f
	r.counter.Created()
	return f
}

func (r *Registry) Get(id types.FutureID) (*Future, bool) {
	f, ok := r.futures[id]
	return f, ok
}

// Fulfill inserts one accumulator entry keyed by part. Once the
// accumulator reaches Expected, the future is removed from the
// registry and returned sealed=true, the only path by which a future
// is released. found reports whether id named a future known to the
// registry at all: false means the fulfillment is an orphan (unknown
// or already-sealed future id) and the caller is expected to log it at
// error severity and drop it, distinct from a normal, silent partial
// fulfillment (found=true, sealed=false) that just needs more parts.
func (r *Registry) Fulfill(id types.FutureID, part string, value interface{}) (f *Future, sealed bool, found bool) {
	f, ok := r.futures[id]
	if !ok {
		return nil, false, false
	}
	if len(f.Accumulator) >= f.Expected {
		return nil, false, false
	}
	f.Accumulator[part] = value
	if len(f.Accumulator) < f.Expected {
		return nil, false, true
	}
	delete(r.futures, f.ID)
	r.counter.Destroyed()
	return f, true, true
}

// Reset drops every registered future without sealing it. Futures
// dropped this way never seal; any late fulfillment that eventually
// arrives for one becomes a logged orphan, which is intentional.
func (r *Registry) Reset() {
	for range r.futures {
		r.counter.Destroyed()
	}
	r.futures = make(map[types.FutureID]*Future)
}

func (r *Registry) Len() int { return len(r.futures) }
