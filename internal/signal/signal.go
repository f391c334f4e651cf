// Package signal carries browser-level signals from the host bridge to the
// detectors. Each signal exposes the two controls a browser event listener has:
// cancelling the default action and stopping propagation.
package signal

import (
	"fmt"
	"time"
)

// Kind identifies a browser signal.
type Kind string

const (
	PointerMove      Kind = "pointer_move"
	KeyDown          Kind = "key_down"
	VisibilityChange Kind = "visibility_change"
	SelectStart      Kind = "select_start"
	Copy             Kind = "copy"
	Paste            Kind = "paste"
	ContextMenu      Kind = "context_menu"
)

var kinds = map[Kind]bool{
	PointerMove: true, KeyDown: true, VisibilityChange: true,
	SelectStart: true, Copy: true, Paste: true, ContextMenu: true,
}

// ParseKind rejects signals the bus does not know about.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !kinds[k] {
		return "", fmt.Errorf("unknown signal kind %q", s)
	}
	return k, nil
}

// Phase selects when a handler runs during dispatch.
type Phase int

const (
	// Bubble handlers run after every capture handler.
	Bubble Phase = iota
	// Capture handlers run first, in subscription order.
	Capture
)

// Signal is one dispatched browser event.
type Signal struct {
	Kind Kind
	// Hidden is the document visibility after a VisibilityChange.
	Hidden bool
	At     time.Time

	defaultPrevented   bool
	propagationStopped bool
}

// PreventDefault cancels the browser's default action for this signal.
func (s *Signal) PreventDefault() { s.defaultPrevented = true }

// StopPropagation keeps later handlers from seeing this signal.
func (s *Signal) StopPropagation() { s.propagationStopped = true }

func (s *Signal) DefaultPrevented() bool   { return s.defaultPrevented }
func (s *Signal) PropagationStopped() bool { return s.propagationStopped }

// Handler receives dispatched signals.
type Handler func(*Signal)

// Source is what detectors subscribe to. The returned function removes the
// subscription and is safe to call more than once.
type Source interface {
	Subscribe(kind Kind, phase Phase, h Handler) (unsubscribe func())
}
