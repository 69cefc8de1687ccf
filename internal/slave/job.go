package slave

import (
	"time"

	"github.com/ChuLiYu/beaver-engine/pkg/types"
)

// Job is one unit of work dispatched to a slave. It is bound to at
// most one slave supervisor at a time.
type Job struct {
	Event    string
	Args     map[string]interface{}
	Policy   types.Policy
	FutureID types.FutureID
	Part     string
	QueuedAt time.Time

	result    map[string]interface{}
	err       error
	errClass  types.ErrorClass
	fulfilled bool
}

func NewJob(event string, args map[string]interface{}, policy types.Policy, futureID types.FutureID, part string) *Job {
	return &Job{Event: event, Args: args, Policy: policy, FutureID: futureID, Part: part, QueuedAt: time.Now(), result: make(map[string]interface{})}
}

// Chunk accumulates one piece of the job's output ("chunk" events).
func (j *Job) Chunk(data map[string]interface{}) {
	for k, v := range data {
		j.result[k] = v
	}
}

func (j *Job) SetError(err error) { j.err = err }

// SetTypedError records the error class (timeout_error / server_error)
// alongside the message.
func (j *Job) SetTypedError(class types.ErrorClass, err error) {
	j.errClass = class
	j.err = err
}

// Choke is the terminal event a job emits exactly once: it fulfills
// the owning future's part with either the accumulated result or the
// recorded error, then never fulfills again.
func (j *Job) Choke(fulfill FulfillFunc) {
	if j.fulfilled {
		return
	}
	j.fulfilled = true
	if j.err != nil {
		log.Warn("job terminated with error", "part", j.Part, "class", j.errClass, "error", j.err)
		fulfill(j.FutureID, j.Part, map[string]interface{}{"error": j.err.Error()})
		return
	}
	fulfill(j.FutureID, j.Part, j.result)
}
