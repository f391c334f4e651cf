package detector

import (
	"context"
	"sync"

	"github.com/saturnino-fabrica-de-software/proctor/internal/signal"
	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

// FocusTracker reports tab_switch each time the document becomes hidden.
// Returning to visible is not reported and there is no debouncing.
type FocusTracker struct {
	source signal.Source

	mu          sync.Mutex
	running     bool
	hidden      bool
	report      Report
	unsubscribe func()
}

func NewFocusTracker(source signal.Source) *FocusTracker {
	return &FocusTracker{source: source}
}

func (f *FocusTracker) Name() string { return "focus" }

func (f *FocusTracker) Start(_ context.Context, report Report) error {
	if f.source == nil {
		return ErrNoSource
	}

	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return ErrAlreadyStarted
	}
	f.running = true
	f.hidden = false
	f.report = report
	f.mu.Unlock()

	unsubscribe := f.source.Subscribe(signal.VisibilityChange, signal.Bubble, f.visibilityChanged)

	f.mu.Lock()
	stopped := !f.running
	if !stopped {
		f.unsubscribe = unsubscribe
	}
	f.mu.Unlock()

	if stopped {
		unsubscribe()
	}
	return nil
}

func (f *FocusTracker) visibilityChanged(s *signal.Signal) {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	// only a visible -> hidden transition counts
	becameHidden := s.Hidden && !f.hidden
	f.hidden = s.Hidden
	report := f.report
	f.mu.Unlock()

	if becameHidden {
		report(violation.TabSwitch)
	}
}

func (f *FocusTracker) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	unsubscribe := f.unsubscribe
	f.unsubscribe = nil
	f.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

var _ Detector = (*FocusTracker)(nil)
