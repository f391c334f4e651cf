package signal

import (
	"sync"
)

type subscription struct {
	id    uint64
	phase Phase
	h     Handler
}

// Bus is an in-process Source. Dispatch is synchronous: every handler has run
// by the time Dispatch returns.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Kind][]subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Kind][]subscription)}
}

// Subscribe registers h for kind in the given phase.
func (b *Bus) Subscribe(kind Kind, phase Phase, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscription{id: id, phase: phase, h: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(kind, id) })
	}
}

func (b *Bus) remove(kind Kind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[kind]
	for i, s := range subs {
		if s.id == id {
			b.subs[kind] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[kind]) == 0 {
		delete(b.subs, kind)
	}
}

// Handlers returns the number of live subscriptions for kind.
func (b *Bus) Handlers(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}

// Dispatch runs capture handlers, then bubble handlers, stopping as soon as a
// handler stops propagation. The same signal is returned so callers can read
// the resulting flags.
func (b *Bus) Dispatch(s *Signal) *Signal {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs[s.Kind]))
	copy(subs, b.subs[s.Kind])
	b.mu.RUnlock()

	for _, phase := range []Phase{Capture, Bubble} {
		for _, sub := range subs {
			if sub.phase != phase {
				continue
			}
			sub.h(s)
			if s.propagationStopped {
				return s
			}
		}
	}
	return s
}

var _ Source = (*Bus)(nil)
