package channel

import (
	"sync"

	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

// Recorder is an in-memory Channel. It keeps every accepted event and can be
// told to fail, which makes it useful wherever a collector is not wanted.
type Recorder struct {
	mu     sync.Mutex
	events []violation.Event
	err    error
	state  State
}

func NewRecorder() *Recorder {
	return &Recorder{state: StateConnected}
}

func (r *Recorder) Report(event violation.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// FailWith makes subsequent reports return err. A nil err restores delivery.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.err = err
	if err == nil {
		r.state = StateConnected
	} else {
		r.state = StateDisconnected
	}
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []violation.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]violation.Event, len(r.events))
	copy(out, r.events)
	return out
}

var _ Channel = (*Recorder)(nil)
