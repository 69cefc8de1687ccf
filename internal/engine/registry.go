package engine

import (
	"errors"

	"github.com/ChuLiYu/beaver-engine/internal/isolation"
	"github.com/ChuLiYu/beaver-engine/internal/slave"
	"github.com/ChuLiYu/beaver-engine/pkg/types"
)

var ErrUnknownApplication = errors.New("unknown application")

// ProfileLookup resolves an application name to the pool profile that
// governs its engine.
type ProfileLookup func(name string) (types.Profile, error)

// Registry maps application name to its running Engine. Owned
// exclusively by the reactor goroutine; it does no internal locking.
type Registry struct {
	engines   map[string]*Engine
	backend   isolation.Backend
	profiles  ProfileLookup
	sink      chan<- slave.Event
	engineCtr Counters
	threadCtr Counters
	latency   DispatchObserver
}

func NewRegistry(backend isolation.Backend, profiles ProfileLookup, sink chan<- slave.Event, engineCtr, threadCtr Counters, latency DispatchObserver) *Registry {
	return &Registry{
		engines:   make(map[string]*Engine),
		backend:   backend,
		profiles:  profiles,
		sink:      sink,
		engineCtr: engineCtr,
		threadCtr: threadCtr,
		latency:   latency,
	}
}

// GetOrCreate returns the engine for name, lazily creating it on first
// push.
func (r *Registry) GetOrCreate(name string) (*Engine, error) {
	if e, ok := r.engines[name]; ok {
		return e, nil
	}
	profile, err := r.profiles(name)
	if err != nil {
		return nil, err
	}
	e := New(name, profile, r.backend, r.sink, r.threadCtr, r.latency)
	r.engines[name] = e
	r.engineCtr.Created()
	return e, nil
}

func (r *Registry) Get(name string) (*Engine, bool) {
	e, ok := r.engines[name]
	return e, ok
}

// Owner finds the engine currently supervising slaveID, if any.
func (r *Registry) Owner(slaveID types.SlaveID) (*Engine, bool) {
	for _, e := range r.engines {
		if _, ok := e.HasSlave(slaveID); ok {
			return e, true
		}
	}
	return nil, false
}

// Reap destroys the named supervisor once it has transitioned to dead.
func (r *Registry) Reap(engineName string, slaveID types.SlaveID) {
	e, ok := r.engines[engineName]
	if !ok {
		return
	}
	if e.Reap(slaveID) {
		r.threadCtr.Destroyed()
	}
}

// Reset drops every engine. In-flight slaves are left to be reaped by
// their own timers: their eventual events become orphans once no
// engine owns them anymore.
func (r *Registry) Reset() {
	for _, e := range r.engines {
		for i := 0; i < e.SlaveCount(); i++ {
			r.threadCtr.Destroyed()
		}
		r.engineCtr.Destroyed()
	}
	r.engines = make(map[string]*Engine)
}

func (r *Registry) Len() int { return len(r.engines) }
