// Package engine implements the per-application worker pool: a queue
// of pending jobs, a bounded set of slave supervisors, and the logic
// that binds one to the other.
package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ChuLiYu/beaver-engine/internal/isolation"
	"github.com/ChuLiYu/beaver-engine/internal/slave"
	"github.com/ChuLiYu/beaver-engine/pkg/types"
)

// Counters mirrors the "created/destroyed" hooks a metrics collector
// exposes for one object class.
type Counters interface {
	Created()
	Destroyed()
}

// DispatchObserver records how long a job waited between being pushed
// and being handed to an idle slave. Declared locally so this package
// never imports internal/metrics directly.
type DispatchObserver interface {
	ObserveDispatch(seconds float64)
}

// Engine is a per-application worker pool. It is owned exclusively by
// the reactor goroutine; it does no internal locking.
type Engine struct {
	Name    string
	Profile types.Profile

	backend   isolation.Backend
	sink      chan<- slave.Event
	threadCtr Counters
	latency   DispatchObserver

	slaves  map[types.SlaveID]*slave.Supervisor
	pending []*slave.Job
}

func New(name string, profile types.Profile, backend isolation.Backend, sink chan<- slave.Event, threadCtr Counters, latency DispatchObserver) *Engine {
	return &Engine{
		Name:      name,
		Profile:   profile,
		backend:   backend,
		sink:      sink,
		threadCtr: threadCtr,
		latency:   latency,
		slaves:    make(map[types.SlaveID]*slave.Supervisor),
	}
}

// Push enqueues a job for part and assigns it to an idle slave,
// spawning a new one within the pool ceiling if none is idle. A job
// that cannot be dispatched immediately (pool at ceiling, or a freshly
// spawned slave still warming up) stays queued until a heartbeat or
// choke frees a slave.
func (e *Engine) Push(futureID types.FutureID, part string, args map[string]interface{}, fulfill slave.FulfillFunc) error {
	event, policy := jobSpecFromArgs(part, args)
	job := slave.NewJob(event, args, policy, futureID, part)
	e.pending = append(e.pending, job)

	if e.dispatchPending(fulfill) {
		return nil
	}
	if len(e.slaves) >= e.Profile.PoolCeiling {
		return nil
	}
	if _, err := e.spawn(); err != nil {
		e.pending = e.pending[:len(e.pending)-1]
		return fmt.Errorf("spawn slave for %s: %w", e.Name, err)
	}
	return nil
}

// Drop cancels a matching queued job outright, or signals the slave
// currently running it.
func (e *Engine) Drop(futureID types.FutureID, part string, args map[string]interface{}, fulfill slave.FulfillFunc) {
	for i, j := range e.pending {
		if j.Part == part {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			fulfill(futureID, part, map[string]interface{}{"dropped": true})
			return
		}
	}
	for _, sup := range e.slaves {
		if job := sup.CurrentJob(); job != nil && job.Part == part {
			sup.CancelCurrent(fulfill)
			e.dispatchPending(fulfill)
			return
		}
	}
	fulfill(futureID, part, map[string]interface{}{"error": "job not found"})
}

// HandleEvent routes one slave lifecycle event into the owning
// supervisor's state machine. Telemetry events never reach here: the
// reactor routes those straight to ingestion.
func (e *Engine) HandleEvent(ev slave.Event, fulfill slave.FulfillFunc) {
	sup, ok := e.slaves[ev.SlaveID]
	if !ok {
		return
	}
	switch ev.Kind {
	case slave.EvHeartbeat:
		sup.HandleHeartbeat()
		e.dispatchPending(fulfill)
	case slave.EvChunk:
		sup.HandleChunk(ev.Chunk)
	case slave.EvError:
		sup.HandleError(ev.Err)
	case slave.EvChoke:
		sup.HandleChoke(fulfill)
		e.dispatchPending(fulfill)
	case slave.EvTimeout:
		sup.HandleTimeout(fulfill)
	case slave.EvCrashed:
		sup.HandleCrash(fulfill)
	}
}

// HasSlave reports whether id belongs to this engine.
func (e *Engine) HasSlave(id types.SlaveID) (*slave.Supervisor, bool) {
	sup, ok := e.slaves[id]
	return sup, ok
}

// Reap removes a dead supervisor from the pool, returning true if one
// was actually removed.
func (e *Engine) Reap(id types.SlaveID) bool {
	sup, ok := e.slaves[id]
	if !ok || sup.State() != types.SlaveDead {
		return false
	}
	delete(e.slaves, id)
	return true
}

func (e *Engine) SlaveCount() int { return len(e.slaves) }

// SlaveIDs returns the ids of every supervisor currently in the pool,
// for introspection (the stats/status surface and tests).
func (e *Engine) SlaveIDs() []types.SlaveID {
	ids := make([]types.SlaveID, 0, len(e.slaves))
	for id := range e.slaves {
		ids = append(ids, id)
	}
	return ids
}

// dispatchPending assigns queued jobs to idle slaves. A job whose
// Invoke fails (e.g. the slave died between heartbeat and invoke) is
// choked with a server_error rather than dropped, so its future part
// is always fulfilled exactly once.
func (e *Engine) dispatchPending(fulfill slave.FulfillFunc) bool {
	dispatched := false
	for len(e.pending) > 0 {
		sup := e.findIdle()
		if sup == nil {
			break
		}
		job := e.pending[0]
		e.pending = e.pending[1:]
		if err := sup.Invoke(job); err != nil {
			job.SetTypedError(types.ServerError, fmt.Errorf("invoke failed: %w", err))
			job.Choke(fulfill)
			continue
		}
		if e.latency != nil {
			e.latency.ObserveDispatch(time.Since(job.QueuedAt).Seconds())
		}
		dispatched = true
	}
	return dispatched
}

func (e *Engine) findIdle() *slave.Supervisor {
	for _, s := range e.slaves {
		if s.State() == types.SlaveIdle {
			return s
		}
	}
	return nil
}

func (e *Engine) spawn() (*slave.Supervisor, error) {
	id := types.SlaveID(uuid.NewString())
	sup, err := slave.New(id, e.Profile, e.backend, e.sink)
	if err != nil {
		return nil, err
	}
	e.slaves[id] = sup
	e.threadCtr.Created()
	return sup, nil
}

func jobSpecFromArgs(part string, args map[string]interface{}) (string, types.Policy) {
	event, _ := args["event"].(string)
	if event == "" {
		event = part
	}
	policy := types.Policy{}
	if p, ok := args["policy"].(map[string]interface{}); ok {
		if t, ok := p["timeout"].(float64); ok && t > 0 {
			policy.Timeout = time.Duration(t * float64(time.Second))
		}
	}
	return event, policy
}
