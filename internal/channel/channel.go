// Package channel carries violation events from the agent to the collector.
package channel

import (
	"errors"

	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

var (
	ErrNotConnected = errors.New("channel not connected")
	ErrBufferFull   = errors.New("channel send buffer full")
	ErrClosed       = errors.New("channel closed")
)

// State is the connection state of a Channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Channel is the outbound side of the collector connection. Report never
// blocks; an event that cannot be handed off immediately is dropped and the
// reason returned.
type Channel interface {
	Report(event violation.Event) error
	State() State
}
