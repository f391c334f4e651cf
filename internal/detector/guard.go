package detector

import (
	"context"
	"sync"

	"github.com/saturnino-fabrica-de-software/proctor/internal/signal"
	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

type rule struct {
	kind   signal.Kind
	typ    violation.Type
	phase  signal.Phase
	policy GesturePolicy
}

// guard applies a GesturePolicy to each of its rules.
type guard struct {
	name   string
	source signal.Source
	rules  []rule

	mu     sync.Mutex
	unsubs []func()
}

func (g *guard) Name() string { return g.name }

func (g *guard) Start(_ context.Context, report Report) error {
	if g.source == nil {
		return ErrNoSource
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unsubs != nil {
		return ErrAlreadyStarted
	}

	g.unsubs = make([]func(), 0, len(g.rules))
	for _, r := range g.rules {
		r := r
		g.unsubs = append(g.unsubs, g.source.Subscribe(r.kind, r.phase, func(s *signal.Signal) {
			if r.policy.SuppressDefault {
				s.PreventDefault()
			}
			if r.policy.StopPropagation {
				s.StopPropagation()
			}
			if r.policy.Report {
				report(r.typ)
			}
		}))
	}
	return nil
}

func (g *guard) Stop() {
	g.mu.Lock()
	unsubs := g.unsubs
	g.unsubs = nil
	g.mu.Unlock()

	for _, unsubscribe := range unsubs {
		unsubscribe()
	}
}

// ClipboardGuard watches text selection, copy and paste.
type ClipboardGuard struct {
	guard
}

func NewClipboardGuard(source signal.Source, p Policies) *ClipboardGuard {
	return &ClipboardGuard{guard{
		name:   "clipboard",
		source: source,
		rules: []rule{
			{kind: signal.SelectStart, typ: violation.TextSelection, phase: signal.Bubble, policy: p.TextSelection},
			{kind: signal.Copy, typ: violation.Copy, phase: signal.Bubble, policy: p.Copy},
			{kind: signal.Paste, typ: violation.Paste, phase: signal.Bubble, policy: p.Paste},
		},
	}}
}

// ContextMenuGuard watches right-clicks. It listens in the capture phase so a
// StopPropagation policy runs before any page handler.
type ContextMenuGuard struct {
	guard
}

func NewContextMenuGuard(source signal.Source, p Policies) *ContextMenuGuard {
	return &ContextMenuGuard{guard{
		name:   "context_menu",
		source: source,
		rules: []rule{
			{kind: signal.ContextMenu, typ: violation.RightClick, phase: signal.Capture, policy: p.RightClick},
		},
	}}
}

var (
	_ Detector = (*ClipboardGuard)(nil)
	_ Detector = (*ContextMenuGuard)(nil)
)
