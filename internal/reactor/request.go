package reactor

import (
	"encoding/json"
	"time"

	"github.com/ChuLiYu/beaver-engine/internal/future"
	"github.com/ChuLiYu/beaver-engine/internal/transport"
	"github.com/ChuLiYu/beaver-engine/pkg/types"
)

// seal emits a sealed future's accumulated response to its route.
// Recovery-owned futures (empty route) are discarded silently.
func (c *Core) seal(f *future.Future) {
	if len(f.Route) == 0 {
		return
	}
	payload, err := json.Marshal(f.Accumulator)
	if err != nil {
		log.Error("marshal future accumulator", "future", f.ID, "err", err)
		return
	}
	if c.Responder == nil {
		return
	}
	if err := c.Responder.Respond(f.Route, payload); err != nil {
		log.Warn("respond to sealed future failed", "future", f.ID, "err", err)
	}
}

// respondError allocates a single-part future carrying just
// {"error": message} and immediately seals it.
func (c *Core) respondError(route types.Route, message string) {
	f := c.Futures.New(route, 1)
	c.fulfill(f.ID, "error", message)
}

// handleRequest validates and dispatches a single client frame.
func (c *Core) handleRequest(frame transport.ClientFrame) {
	route := types.Route(frame.Route)

	var payload types.RequestPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		c.respondError(route, err.Error())
		return
	}
	if payload.Version == 0 {
		payload.Version = 1
	}
	if payload.Version < c.MinProtocol {
		c.respondError(route, "outdated protocol version")
		return
	}
	if payload.Token == "" {
		c.respondError(route, "security token expected")
		return
	}
	if payload.Version > 2 && c.Verifier != nil {
		if err := c.Verifier.Verify(frame.Payload, frame.Signature, payload.Token); err != nil {
			c.respondError(route, err.Error())
			return
		}
	}

	action := payload.Action
	if action == "" {
		action = "push"
	}

	switch action {
	case "push", "drop", "history":
		c.handleTargets(route, action, payload.Targets)
	case "stats":
		c.handleStats(route)
	default:
		c.respondError(route, "unsupported action")
	}
}

func (c *Core) handleTargets(route types.Route, action string, targets map[string]interface{}) {
	if len(targets) == 0 {
		c.respondError(route, "targets required")
		return
	}
	f := c.Futures.New(route, len(targets))
	for target, rawArgs := range targets {
		args, ok := rawArgs.(map[string]interface{})
		if !ok {
			c.fulfill(f.ID, target, map[string]interface{}{"error": "target arguments expected"})
			continue
		}
		switch action {
		case "push":
			c.push(f.ID, target, args)
		case "drop":
			c.drop(f.ID, target, args)
		case "history":
			c.historySnapshot(f.ID, target)
		}
	}
}

// push resolves target's engine, creating it if necessary, and
// enqueues args as a job against it.
func (c *Core) push(futureID types.FutureID, target string, args map[string]interface{}) {
	eng, err := c.Engines.GetOrCreate(target)
	if err != nil {
		c.fulfill(futureID, target, map[string]interface{}{"error": err.Error()})
		return
	}
	if err := eng.Push(futureID, target, args, c.fulfill); err != nil {
		c.fulfill(futureID, target, map[string]interface{}{"error": err.Error()})
	}
}

// drop cancels a running or queued job on target's engine.
func (c *Core) drop(futureID types.FutureID, target string, args map[string]interface{}) {
	eng, ok := c.Engines.Get(target)
	if !ok {
		c.fulfill(futureID, target, map[string]interface{}{"error": "engine not found"})
		return
	}
	eng.Drop(futureID, target, args, c.fulfill)
}

// historySnapshot serves the optional "history" action, returning
// target's buffered telemetry entries newest-first.
func (c *Core) historySnapshot(futureID types.FutureID, target string) {
	if c.History == nil {
		c.fulfill(futureID, target, []interface{}{})
		return
	}
	entries := c.History.Snapshot(target)
	out := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]interface{}{
			"at":     e.At.Format(time.RFC3339Nano),
			"fields": e.Fields,
		})
	}
	c.fulfill(futureID, target, out)
}

// handleStats reports engine, thread, and request object counts.
func (c *Core) handleStats(route types.Route) {
	f := c.Futures.New(route, 3)
	c.fulfill(f.ID, "engines", statPart(c.EngineStats))
	c.fulfill(f.ID, "threads", statPart(c.ThreadStats))
	c.fulfill(f.ID, "requests", statPart(c.RequestStats))
}

func statPart(s StatsSource) map[string]interface{} {
	if s == nil {
		return map[string]interface{}{"total": 0, "alive": 0}
	}
	return map[string]interface{}{"total": s.Total(), "alive": s.Alive()}
}
