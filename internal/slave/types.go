// Package slave implements the slave supervisor state machine on top
// of the isolation collaborator (internal/isolation).
package slave

import (
	"errors"
	"log/slog"

	"github.com/ChuLiYu/beaver-engine/internal/isolation"
	"github.com/ChuLiYu/beaver-engine/pkg/types"
)

var log = slog.Default()

// FulfillFunc delivers a job's terminal result to the future registry.
// Jobs and supervisors never hold a pointer into the future registry
// itself; they resolve their future only through this callback, keyed
// by identifier.
type FulfillFunc func(id types.FutureID, part string, value interface{})

// EventKind is one of the events the supervisor's state machine
// dispatches on.
type EventKind int

const (
	EvHeartbeat EventKind = iota
	EvChunk
	EvChoke
	EvError
	EvTelemetry
	EvTimeout
	EvCrashed
)

// Event is one inbound occurrence tagged with the supervisor it
// belongs to, so it can travel over a single shared channel into the
// reactor without exposing a pointer into supervisor-owned state.
type Event struct {
	SlaveID types.SlaveID
	Kind    EventKind
	Chunk   map[string]interface{}
	Err     error
	Driver  string
	Fields  map[string]interface{}
}

func translate(id types.SlaveID, msg isolation.Message) Event {
	ev := Event{SlaveID: id}
	switch msg.Kind {
	case isolation.KindHeartbeat:
		ev.Kind = EvHeartbeat
	case isolation.KindChunk:
		ev.Kind = EvChunk
		ev.Chunk = msg.Chunk
	case isolation.KindChoke:
		ev.Kind = EvChoke
	case isolation.KindError:
		ev.Kind = EvError
		ev.Err = errors.New(msg.ErrMsg)
	case isolation.KindTelemetry:
		ev.Kind = EvTelemetry
		ev.Driver = msg.Driver
		ev.Fields = msg.Fields
	}
	return ev
}
