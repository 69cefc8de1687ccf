// Package isolation defines the process-spawning collaborator and
// ships one default, real implementation backed by os/exec.
package isolation

import "github.com/ChuLiYu/beaver-engine/pkg/types"

// MessageKind classifies one line of decoded slave output.
type MessageKind string

const (
	KindHeartbeat MessageKind = "heartbeat"
	KindChunk     MessageKind = "chunk"
	KindChoke     MessageKind = "choke"
	KindError     MessageKind = "error"
	KindTelemetry MessageKind = "telemetry"
)

// Message is one decoded occurrence read from a slave process's
// output stream.
type Message struct {
	Kind   MessageKind
	Chunk  map[string]interface{}
	ErrMsg string
	Driver string
	Fields map[string]interface{}
}

// Limits carries advisory resource hints for a spawned process. The
// default backend records but does not enforce them.
type Limits struct {
	MemoryMB  int
	CPUShares int
}

// Handle is a live slave process. Terminate is idempotent from the
// caller's point of view (the supervisor may call it more than once
// during shutdown races).
type Handle interface {
	Invoke(event string, payload map[string]interface{}) error
	Terminate() error
	Inbox() <-chan Message
}

// Backend spawns slave processes.
type Backend interface {
	Spawn(spec types.IsolateSpec, slaveArgs map[string]interface{}, limits Limits) (Handle, error)
}
