package isolation

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"

	"github.com/ChuLiYu/beaver-engine/pkg/types"
)

var log = slog.Default()

// ExecBackend spawns slaves as plain OS processes speaking
// newline-delimited JSON on stdin/stdout. Process supervision is
// explicitly out of scope for the core; this backend is the minimal
// real implementation needed to make the rest of the system runnable,
// not a container runtime.
type ExecBackend struct{}

func NewExecBackend() *ExecBackend { return &ExecBackend{} }

func (b *ExecBackend) Spawn(spec types.IsolateSpec, slaveArgs map[string]interface{}, limits Limits) (Handle, error) {
	command, _ := spec.Args["command"].(string)
	if command == "" {
		return nil, fmt.Errorf("isolate spec %q: missing \"command\" arg", spec.Type)
	}
	if limits.MemoryMB > 0 || limits.CPUShares > 0 {
		log.Warn("resource limits are advisory-only for the exec backend",
			"memory_mb", limits.MemoryMB, "cpu_shares", limits.CPUShares)
	}

	cmd := exec.Command("sh", "-c", command)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open slave stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open slave stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start slave process: %w", err)
	}

	h := &execHandle{cmd: cmd, stdin: stdin, inbox: make(chan Message, 16)}
	go h.readLoop(stdout)
	return h, nil
}

type execHandle struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	inbox chan Message
}

type wireMessage struct {
	Kind   MessageKind            `json:"kind"`
	Chunk  map[string]interface{} `json:"chunk,omitempty"`
	Error  string                 `json:"error,omitempty"`
	Driver string                 `json:"driver,omitempty"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

func (h *execHandle) Invoke(event string, payload map[string]interface{}) error {
	line, err := json.Marshal(map[string]interface{}{"event": event, "payload": payload})
	if err != nil {
		return fmt.Errorf("encode invoke message: %w", err)
	}
	line = append(line, '\n')
	_, err = h.stdin.Write(line)
	return err
}

func (h *execHandle) Terminate() error {
	if h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}

func (h *execHandle) Inbox() <-chan Message { return h.inbox }

// readLoop decodes newline-delimited JSON messages from the slave's
// stdout and forwards them onto the handle's inbox. When stdout
// closes (the process exited, cleanly or not) the inbox is closed so
// the supervisor's pump loop can distinguish "no more messages" from
// "still running".
func (h *execHandle) readLoop(stdout io.ReadCloser) {
	defer close(h.inbox)
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		var msg wireMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			log.Warn("dropping malformed slave message", "error", err)
			continue
		}
		h.inbox <- Message{
			Kind:   msg.Kind,
			Chunk:  msg.Chunk,
			ErrMsg: msg.Error,
			Driver: msg.Driver,
			Fields: msg.Fields,
		}
	}
}
