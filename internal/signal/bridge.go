package signal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// MaxLineSize bounds one signal line. Longer lines are answered with an
// error reply and skipped.
const MaxLineSize = 64 * 1024

// message is one line written by the browser side of the bridge.
type message struct {
	Kind   string    `json:"kind"`
	Hidden bool      `json:"hidden,omitempty"`
	At     time.Time `json:"at,omitempty"`
}

// Reply tells the browser side what the handlers decided.
type Reply struct {
	Kind               Kind   `json:"kind"`
	DefaultPrevented   bool   `json:"default_prevented"`
	PropagationStopped bool   `json:"propagation_stopped"`
	Error              string `json:"error,omitempty"`
}

// Bridge reads newline-delimited JSON signals and dispatches them on a Bus.
type Bridge struct {
	bus    *Bus
	logger *slog.Logger
	now    func() time.Time
}

func NewBridge(bus *Bus, logger *slog.Logger) *Bridge {
	return &Bridge{
		bus:    bus,
		logger: logger.With("component", "signal_bridge"),
		now:    time.Now,
	}
}

// Run dispatches signals from r and writes one reply per line to w until r is
// exhausted or ctx is cancelled. Malformed or oversized lines are answered
// with an error reply and otherwise ignored.
func (b *Bridge) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := bufio.NewReaderSize(r, 4096)
	enc := json.NewEncoder(w)

	for {
		line, oversized, err := readLine(reader)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read signals: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var reply Reply
		switch {
		case oversized:
			b.logger.Warn("oversized signal skipped", slog.Int("limit", MaxLineSize))
			reply = Reply{Error: "signal line too long"}
		case len(line) == 0:
			continue
		default:
			reply = b.handle(line)
		}

		if err := enc.Encode(reply); err != nil {
			return fmt.Errorf("write reply: %w", err)
		}
	}
}

// readLine returns the next line without its terminator. A line longer than
// MaxLineSize is consumed in full and reported as oversized. io.EOF is only
// returned once no data is left.
func readLine(reader *bufio.Reader) ([]byte, bool, error) {
	var (
		line      []byte
		oversized bool
		read      bool
	)
	for {
		chunk, isPrefix, err := reader.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && read {
				return line, oversized, nil
			}
			return nil, false, err
		}
		read = true

		if !oversized {
			if len(line)+len(chunk) > MaxLineSize {
				oversized = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if !isPrefix {
			return line, oversized, nil
		}
	}
}

func (b *Bridge) handle(line []byte) Reply {
	var msg message
	if err := json.Unmarshal(line, &msg); err != nil {
		b.logger.Warn("malformed signal", slog.String("error", err.Error()))
		return Reply{Error: "malformed signal"}
	}

	kind, err := ParseKind(msg.Kind)
	if err != nil {
		b.logger.Warn("unknown signal", slog.String("kind", msg.Kind))
		return Reply{Kind: Kind(msg.Kind), Error: err.Error()}
	}

	at := msg.At
	if at.IsZero() {
		at = b.now()
	}

	s := b.bus.Dispatch(&Signal{Kind: kind, Hidden: msg.Hidden, At: at})
	return Reply{
		Kind:               kind,
		DefaultPrevented:   s.DefaultPrevented(),
		PropagationStopped: s.PropagationStopped(),
	}
}
