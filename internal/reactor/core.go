// Package reactor implements the single-threaded event core: it owns
// the future registry, the engine registry, and the history buffer,
// and is the only goroutine allowed to mutate any of them.
package reactor

import (
	"context"
	"log/slog"
	"os"
	"syscall"

	"github.com/ChuLiYu/beaver-engine/internal/engine"
	"github.com/ChuLiYu/beaver-engine/internal/future"
	"github.com/ChuLiYu/beaver-engine/internal/history"
	"github.com/ChuLiYu/beaver-engine/internal/persistence"
	"github.com/ChuLiYu/beaver-engine/internal/signing"
	"github.com/ChuLiYu/beaver-engine/internal/slave"
	"github.com/ChuLiYu/beaver-engine/internal/transport"
	"github.com/ChuLiYu/beaver-engine/pkg/types"
)

var log = slog.Default()

// Responder and Publisher decouple the reactor from the concrete
// transport implementation the same way future.Counters decouples
// internal/future from internal/metrics.
type Responder interface {
	Respond(route []string, payload []byte) error
}

type Publisher interface {
	Publish(envelope string, blob []byte)
}

// StatsSource exposes one object class's total/alive counts for the
// "stats" action.
type StatsSource interface {
	Total() int64
	Alive() int64
}

// Locator is the collaborator the peer-relinker also dials through;
// declared locally the same way Responder/Publisher are, so the
// reactor never imports the concrete relinker package.
type Locator interface {
	Link(label, endpoint string) error
}

// Core is the event core. Every exported method that touches Futures,
// Engines, or History must be called from Run's goroutine only.
type Core struct {
	Futures     *future.Registry
	Engines     *engine.Registry
	Persistence persistence.Store
	Verifier    signing.Verifier
	History     *history.Store
	Responder   Responder
	Publisher   Publisher

	MinProtocol int

	EngineStats  StatsSource
	ThreadStats  StatsSource
	RequestStats StatsSource

	Requests    <-chan transport.ClientFrame
	SlaveEvents <-chan slave.Event
	Signals     <-chan os.Signal

	// Locator, SelfLabel, and SelfEndpoint back Announce. Locator is
	// nil-safe: with no Locator, or with an empty SelfLabel or
	// SelfEndpoint, Announce does nothing.
	Locator      Locator
	SelfLabel    string
	SelfEndpoint string
}

// Announce registers this host's own reachable endpoint with the
// locator collaborator, the same one the peer-relinker dials through,
// so peers discover this host instead of only the reverse. Called once
// by the caller after its listener has bound successfully.
func (c *Core) Announce() {
	if c.Locator == nil || c.SelfLabel == "" || c.SelfEndpoint == "" {
		return
	}
	if err := c.Locator.Link(c.SelfLabel, c.SelfEndpoint); err != nil {
		log.Error("self-announce failed", "label", c.SelfLabel, "endpoint", c.SelfEndpoint, "err", err)
		return
	}
	log.Info("announced self to locator", "label", c.SelfLabel, "endpoint", c.SelfEndpoint)
}

// Run drains Requests, SlaveEvents, and Signals until ctx is cancelled
// or a terminating signal arrives.
func (c *Core) Run(ctx context.Context) {
	log.Info("event core started")
	for {
		select {
		case <-ctx.Done():
			log.Info("event core stopping: context cancelled")
			return
		case sig, ok := <-c.Signals:
			if !ok {
				continue
			}
			if c.handleSignal(sig) {
				return
			}
		case frame := <-c.Requests:
			c.handleRequest(frame)
		case ev := <-c.SlaveEvents:
			c.handleSlaveEvent(ev)
		}
	}
}

func (c *Core) handleSignal(sig os.Signal) (stop bool) {
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
		log.Info("event core stopping: shutdown signal", "signal", sig.String())
		return true
	case syscall.SIGHUP:
		log.Info("reload requested")
		c.reload()
	case syscall.SIGUSR1:
		log.Info("purge requested")
		c.reload()
		if c.Persistence != nil {
			if err := c.Persistence.Purge(); err != nil {
				log.Error("purge failed", "err", err)
			}
		}
	default:
		log.Warn("ignoring unrecognized signal", "signal", sig.String())
	}
	return false
}

// reload clears all futures and engines, then re-invokes recovery.
// In-flight slaves are left running to be reaped by their own timers;
// their eventual events become logged orphans, which is intentional.
func (c *Core) reload() {
	c.Futures.Reset()
	c.Engines.Reset()
	c.Recover()
}

func (c *Core) handleSlaveEvent(ev slave.Event) {
	owner, ok := c.Engines.Owner(ev.SlaveID)
	if !ok {
		log.Error("orphan slave event", "slave", ev.SlaveID, "kind", ev.Kind)
		return
	}
	if ev.Kind == slave.EvTelemetry {
		c.ingest(ev)
		return
	}
	owner.HandleEvent(ev, c.fulfill)
	if sup, ok := owner.HasSlave(ev.SlaveID); ok && sup.State() == types.SlaveDead {
		c.Engines.Reap(owner.Name, ev.SlaveID)
	}
}

// fulfill is the FulfillFunc handed down into engines, supervisors,
// and jobs: callers never hold a pointer into the future registry,
// only this callback keyed by id. A fulfillment for an unknown or
// already-sealed future is an orphan and is logged at error severity,
// not silently dropped.
func (c *Core) fulfill(id types.FutureID, part string, value interface{}) {
	f, sealed, found := c.Futures.Fulfill(id, part, value)
	if !found {
		log.Error("orphan fulfillment", "future", id, "part", part)
		return
	}
	if !sealed {
		return
	}
	c.seal(f)
}
