package slave

import (
	"errors"
	"time"

	"github.com/ChuLiYu/beaver-engine/internal/isolation"
	"github.com/ChuLiYu/beaver-engine/pkg/types"
)

var ErrNotIdle = errors.New("slave is not idle")

// Supervisor is the per-slave state machine. It is owned exclusively
// by the reactor goroutine; its background pump goroutine only
// forwards decoded process output onto the shared sink, it never
// mutates supervisor state itself.
type Supervisor struct {
	ID      types.SlaveID
	profile types.Profile
	handle  isolation.Handle
	sink    chan<- Event

	state types.SlaveState
	job   *Job
	timer *time.Timer
}

// New spawns a slave process and returns its supervisor, initially in
// the unknown state awaiting a first heartbeat. If spawning fails, the
// supervisor is returned already dead alongside the error.
func New(id types.SlaveID, profile types.Profile, backend isolation.Backend, sink chan<- Event) (*Supervisor, error) {
	s := &Supervisor{ID: id, profile: profile, sink: sink, state: types.SlaveUnknown}
	limits := isolation.Limits{MemoryMB: profile.MemoryMB, CPUShares: profile.CPUShares}
	handle, err := backend.Spawn(profile.Isolate, profile.SlaveArgs, limits)
	if err != nil {
		s.state = types.SlaveDead
		return s, err
	}
	s.handle = handle
	go s.pump()
	s.armTimer(profile.StartupTimeout)
	return s, nil
}

func (s *Supervisor) State() types.SlaveState { return s.state }
func (s *Supervisor) CurrentJob() *Job        { return s.job }

// pump relays decoded slave messages onto the shared sink until the
// process's output stream closes, at which point it reports a crash so
// the reactor can treat an unexpected exit like any other terminal
// slave event.
func (s *Supervisor) pump() {
	for msg := range s.handle.Inbox() {
		s.sink <- translate(s.ID, msg)
	}
	s.sink <- Event{SlaveID: s.ID, Kind: EvCrashed}
}

func (s *Supervisor) armTimer(d time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
	}
	id, sink := s.ID, s.sink
	s.timer = time.AfterFunc(d, func() {
		select {
		case sink <- Event{SlaveID: id, Kind: EvTimeout}:
		default:
		}
	})
}

// HandleHeartbeat transitions unknown -> alive/idle on the first
// heartbeat; otherwise the running timeout is simply rearmed (busy
// jobs may carry a per-job policy override).
func (s *Supervisor) HandleHeartbeat() {
	switch s.state {
	case types.SlaveDead:
		return
	case types.SlaveUnknown:
		s.state = types.SlaveIdle
		s.armTimer(s.profile.HeartbeatTimeout)
	default:
		d := s.profile.HeartbeatTimeout
		if s.state == types.SlaveBusy && s.job != nil && s.job.Policy.Timeout > 0 {
			d = s.job.Policy.Timeout
		}
		s.armTimer(d)
	}
}

// Invoke binds job to this supervisor and forwards it to the slave
// process. Only legal from alive/idle.
func (s *Supervisor) Invoke(job *Job) error {
	if s.state != types.SlaveIdle {
		return ErrNotIdle
	}
	if err := s.handle.Invoke(job.Event, job.Args); err != nil {
		return err
	}
	s.job = job
	s.state = types.SlaveBusy
	s.HandleHeartbeat()
	return nil
}

func (s *Supervisor) HandleChunk(data map[string]interface{}) {
	if s.state != types.SlaveBusy {
		return
	}
	if s.job != nil {
		s.job.Chunk(data)
	}
	s.HandleHeartbeat()
}

func (s *Supervisor) HandleError(err error) {
	if s.state != types.SlaveBusy {
		return
	}
	if s.job != nil {
		s.job.SetError(err)
	}
	s.HandleHeartbeat()
}

// HandleChoke releases the current job, fulfilling its future part
// exactly once, and returns the supervisor to idle.
func (s *Supervisor) HandleChoke(fulfill FulfillFunc) {
	if s.state != types.SlaveBusy {
		return
	}
	job := s.job
	s.job = nil
	s.state = types.SlaveIdle
	if job != nil {
		job.Choke(fulfill)
	}
	s.HandleHeartbeat()
}

// HandleTimeout cancels a job in flight with a typed timeout error and
// chokes it before the supervisor terminates; an idle or unknown slave
// that misses its heartbeat window is simply terminated.
func (s *Supervisor) HandleTimeout(fulfill FulfillFunc) {
	if s.state == types.SlaveDead {
		return
	}
	if s.state == types.SlaveBusy && s.job != nil {
		job := s.job
		s.job = nil
		job.SetTypedError(types.TimeoutError, errors.New("the job has timed out"))
		job.Choke(fulfill)
	}
	s.Terminate()
}

// HandleCrash treats an unexpected process exit like a timeout from
// the current job's point of view, but classified as a server_error.
func (s *Supervisor) HandleCrash(fulfill FulfillFunc) {
	if s.state == types.SlaveDead {
		return
	}
	if s.state == types.SlaveBusy && s.job != nil {
		job := s.job
		s.job = nil
		job.SetTypedError(types.ServerError, errors.New("the slave process exited unexpectedly"))
		job.Choke(fulfill)
	}
	s.Terminate()
}

// CancelCurrent handles the "drop signals the running slave" path: the
// job is cancelled with a server_error and choked, but the slave
// process itself is left running and idle.
func (s *Supervisor) CancelCurrent(fulfill FulfillFunc) {
	if s.state != types.SlaveBusy || s.job == nil {
		return
	}
	job := s.job
	s.job = nil
	s.state = types.SlaveIdle
	job.SetTypedError(types.ServerError, errors.New("the job is being cancelled"))
	job.Choke(fulfill)
	s.HandleHeartbeat()
}

// Terminate instructs the isolation backend to kill the process and
// moves the supervisor to its terminal state. Idempotent.
func (s *Supervisor) Terminate() {
	if s.state == types.SlaveDead {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.handle != nil {
		if err := s.handle.Terminate(); err != nil {
			log.Warn("slave terminate failed", "slave", s.ID, "error", err)
		}
	}
	s.state = types.SlaveDead
}

// Destroy is used when the engine drops this supervisor outright, not
// via its own timers: alive/busy destruction cancels the job with a
// server_error and a synthetic choke before releasing it. It asserts
// the supervisor ends up dead.
func (s *Supervisor) Destroy(fulfill FulfillFunc) {
	if s.state == types.SlaveBusy && s.job != nil {
		job := s.job
		s.job = nil
		job.SetTypedError(types.ServerError, errors.New("the job is being cancelled"))
		job.Choke(fulfill)
	}
	s.Terminate()
	if s.state != types.SlaveDead {
		panic("slave supervisor destroyed outside the dead state")
	}
}
