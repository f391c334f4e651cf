package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_CaptureRunsBeforeBubble(t *testing.T) {
	bus := NewBus()
	var order []string

	bus.Subscribe(Copy, Bubble, func(*Signal) { order = append(order, "bubble") })
	bus.Subscribe(Copy, Capture, func(*Signal) { order = append(order, "capture") })

	bus.Dispatch(&Signal{Kind: Copy})

	assert.Equal(t, []string{"capture", "bubble"}, order)
}

func TestBus_StopPropagation(t *testing.T) {
	bus := NewBus()
	called := false

	bus.Subscribe(ContextMenu, Capture, func(s *Signal) { s.StopPropagation() })
	bus.Subscribe(ContextMenu, Bubble, func(*Signal) { called = true })

	s := bus.Dispatch(&Signal{Kind: ContextMenu})

	assert.True(t, s.PropagationStopped())
	assert.False(t, s.DefaultPrevented())
	assert.False(t, called)
}

func TestBus_UnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus()
	calls := 0

	unsubscribe := bus.Subscribe(KeyDown, Bubble, func(*Signal) { calls++ })
	other := bus.Subscribe(KeyDown, Bubble, func(*Signal) {})
	require.Equal(t, 2, bus.Handlers(KeyDown))

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 1, bus.Handlers(KeyDown))

	bus.Dispatch(&Signal{Kind: KeyDown})
	assert.Zero(t, calls)

	other()
	assert.Zero(t, bus.Handlers(KeyDown))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("visibility_change")
	require.NoError(t, err)
	assert.Equal(t, VisibilityChange, k)

	_, err = ParseKind("scroll")
	assert.Error(t, err)
}

func TestBridge_Run(t *testing.T) {
	bus := NewBus()
	var hidden []bool

	bus.Subscribe(SelectStart, Bubble, func(s *Signal) { s.PreventDefault() })
	bus.Subscribe(VisibilityChange, Bubble, func(s *Signal) { hidden = append(hidden, s.Hidden) })

	input := strings.Join([]string{
		`{"kind":"select_start"}`,
		``,
		`{"kind":"visibility_change","hidden":true}`,
		`not json`,
		`{"kind":"scroll"}`,
	}, "\n")

	var out bytes.Buffer
	bridge := NewBridge(bus, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, bridge.Run(context.Background(), strings.NewReader(input), &out))

	dec := json.NewDecoder(&out)
	var replies []Reply
	for dec.More() {
		var r Reply
		require.NoError(t, dec.Decode(&r))
		replies = append(replies, r)
	}

	require.Len(t, replies, 4)
	assert.Equal(t, SelectStart, replies[0].Kind)
	assert.True(t, replies[0].DefaultPrevented)
	assert.Equal(t, VisibilityChange, replies[1].Kind)
	assert.False(t, replies[1].DefaultPrevented)
	assert.NotEmpty(t, replies[2].Error)
	assert.NotEmpty(t, replies[3].Error)
	assert.Equal(t, []bool{true}, hidden)
}

func TestBridge_OversizedLineIsSkipped(t *testing.T) {
	bus := NewBus()
	var prevented int
	bus.Subscribe(Copy, Bubble, func(s *Signal) {
		prevented++
		s.PreventDefault()
	})

	huge := `{"kind":"copy","pad":"` + strings.Repeat("x", 2*MaxLineSize) + `"}`
	input := huge + "\n" + `{"kind":"copy"}` + "\n"

	var out bytes.Buffer
	bridge := NewBridge(bus, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, bridge.Run(context.Background(), strings.NewReader(input), &out))

	dec := json.NewDecoder(&out)
	var replies []Reply
	for dec.More() {
		var r Reply
		require.NoError(t, dec.Decode(&r))
		replies = append(replies, r)
	}

	require.Len(t, replies, 2)
	assert.Equal(t, "signal line too long", replies[0].Error)
	assert.Equal(t, Copy, replies[1].Kind)
	assert.True(t, replies[1].DefaultPrevented)
	assert.Equal(t, 1, prevented)
}
