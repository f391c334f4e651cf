package detector

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/saturnino-fabrica-de-software/proctor/internal/signal"
	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

// DefaultIdleThreshold is the quiet period after which inactivity is reported.
const DefaultIdleThreshold = 60 * time.Second

// IdleTracker reports inactivity when no pointer or keyboard activity arrives
// for the configured threshold. It rearms itself after every report, so a
// prolonged absence yields one report per threshold interval.
type IdleTracker struct {
	source    signal.Source
	threshold time.Duration
	clock     clockwork.Clock

	mu      sync.Mutex
	running bool
	gen     uint64
	timer   clockwork.Timer
	report  Report
	unsubs  []func()
}

// NewIdleTracker builds a tracker. A non-positive threshold means
// DefaultIdleThreshold; a nil clock means the real clock.
func NewIdleTracker(source signal.Source, threshold time.Duration, clock clockwork.Clock) *IdleTracker {
	if threshold <= 0 {
		threshold = DefaultIdleThreshold
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &IdleTracker{
		source:    source,
		threshold: threshold,
		clock:     clock,
	}
}

func (t *IdleTracker) Name() string { return "idle" }

// Threshold returns the configured quiet period.
func (t *IdleTracker) Threshold() time.Duration { return t.threshold }

func (t *IdleTracker) Start(_ context.Context, report Report) error {
	if t.source == nil {
		return ErrNoSource
	}

	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.running = true
	t.report = report
	t.armLocked()
	t.mu.Unlock()

	// activity handlers take the lock themselves
	unsubs := []func(){
		t.source.Subscribe(signal.PointerMove, signal.Bubble, t.activity),
		t.source.Subscribe(signal.KeyDown, signal.Bubble, t.activity),
	}

	t.mu.Lock()
	stopped := !t.running
	if !stopped {
		t.unsubs = unsubs
	}
	t.mu.Unlock()

	if stopped {
		for _, unsubscribe := range unsubs {
			unsubscribe()
		}
	}
	return nil
}

// armLocked replaces the pending deadline. Each deadline carries a generation
// so a callback that lost the race with a newer activity does nothing.
func (t *IdleTracker) armLocked() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = t.clock.AfterFunc(t.threshold, func() { t.expire(gen) })
}

func (t *IdleTracker) activity(*signal.Signal) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		t.armLocked()
	}
}

func (t *IdleTracker) expire(gen uint64) {
	t.mu.Lock()
	if !t.running || gen != t.gen {
		t.mu.Unlock()
		return
	}
	report := t.report
	t.armLocked()
	t.mu.Unlock()

	report(violation.Inactivity)
}

func (t *IdleTracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	unsubs := t.unsubs
	t.unsubs = nil
	t.mu.Unlock()

	for _, unsubscribe := range unsubs {
		unsubscribe()
	}
}

var _ Detector = (*IdleTracker)(nil)
