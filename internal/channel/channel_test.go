package channel

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

type testCollector struct {
	url         string
	received    chan []byte
	connections atomic.Int32
	// dropAfter closes each connection after this many messages when > 0
	dropAfter int
}

func startCollector(t *testing.T, dropAfter int) *testCollector {
	t.Helper()

	tc := &testCollector{received: make(chan []byte, 16), dropAfter: dropAfter}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		tc.connections.Add(1)
		count := 0
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			tc.received <- msg
			count++
			if tc.dropAfter > 0 && count >= tc.dropAfter {
				_ = c.Close()
				return
			}
		}
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	tc.url = "ws://" + ln.Addr().String() + "/ws"
	return tc
}

func (tc *testCollector) next(t *testing.T) []byte {
	t.Helper()
	select {
	case msg := <-tc.received:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("collector received nothing")
		return nil
	}
}

func testEvent(seq uint64) violation.Event {
	return violation.Event{
		Sequence:  seq,
		Type:      violation.TabSwitch,
		Timestamp: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Identity: violation.Identity{
			CandidateID:    "c-1",
			ExamID:         "e-1",
			CandidateName:  "Ana",
			CandidateEmail: "ana@example.com",
		},
	}
}

func fastOptions() Options {
	return Options{
		HandshakeTimeout: time.Second,
		ReconnectInitial: 10 * time.Millisecond,
		ReconnectMax:     50 * time.Millisecond,
	}
}

func waitFor(t *testing.T, ch *WSChannel, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return ch.State() == want },
		2*time.Second, 5*time.Millisecond, "state never became %s", want)
}

func TestWSChannel_DeliversEnvelope(t *testing.T) {
	collector := startCollector(t, 0)

	ch := NewWSChannel(collector.url, fastOptions())
	defer ch.Close()
	waitFor(t, ch, StateConnected)

	require.NoError(t, ch.Report(testEvent(1)))

	var envelope violation.Envelope
	require.NoError(t, json.Unmarshal(collector.next(t), &envelope))
	assert.Equal(t, violation.EventName, envelope.Event)

	var payload violation.Payload
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, violation.TabSwitch, payload.ViolationType)
	assert.Equal(t, "c-1", payload.CandidateID)
	assert.Equal(t, "e-1", payload.ExamID)
	assert.Equal(t, "2024-05-01T10:00:00.000Z", payload.Timestamp)
}

func TestWSChannel_PreservesOrder(t *testing.T) {
	collector := startCollector(t, 0)

	ch := NewWSChannel(collector.url, fastOptions())
	defer ch.Close()
	waitFor(t, ch, StateConnected)

	types := []violation.Type{violation.Copy, violation.Paste, violation.RightClick}
	for i, vt := range types {
		ev := testEvent(uint64(i))
		ev.Type = vt
		require.NoError(t, ch.Report(ev))
	}

	for _, want := range types {
		var envelope violation.Envelope
		require.NoError(t, json.Unmarshal(collector.next(t), &envelope))
		var payload violation.Payload
		require.NoError(t, json.Unmarshal(envelope.Data, &payload))
		assert.Equal(t, want, payload.ViolationType)
	}
}

func TestWSChannel_NotConnectedDropsEvent(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	url := "ws://" + ln.Addr().String() + "/ws"
	require.NoError(t, ln.Close())

	ch := NewWSChannel(url, fastOptions())
	defer ch.Close()

	err = ch.Report(testEvent(1))
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NotEqual(t, StateConnected, ch.State())
}

func TestWSChannel_Reconnects(t *testing.T) {
	collector := startCollector(t, 1)

	ch := NewWSChannel(collector.url, fastOptions())
	defer ch.Close()
	waitFor(t, ch, StateConnected)

	require.NoError(t, ch.Report(testEvent(1)))
	collector.next(t)

	require.Eventually(t, func() bool {
		return collector.connections.Load() >= 2 && ch.State() == StateConnected
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, ch.Report(testEvent(2)))
	collector.next(t)
}

func TestWSChannel_StateObservers(t *testing.T) {
	collector := startCollector(t, 0)

	var (
		mu     sync.Mutex
		states []State
	)
	ch := NewWSChannel(collector.url, fastOptions())
	ch.OnStateChange(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	})
	waitFor(t, ch, StateConnected)
	require.NoError(t, ch.Close())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	assert.Equal(t, StateClosed, states[len(states)-1])
}

func TestWSChannel_CloseIsIdempotent(t *testing.T) {
	collector := startCollector(t, 0)

	ch := NewWSChannel(collector.url, fastOptions())
	waitFor(t, ch, StateConnected)

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	assert.Equal(t, StateClosed, ch.State())
	assert.ErrorIs(t, ch.Report(testEvent(1)), ErrClosed)
}

func TestWSChannel_CloseWhileDialing(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	url := "ws://" + ln.Addr().String() + "/ws"
	require.NoError(t, ln.Close())

	ch := NewWSChannel(url, fastOptions())

	done := make(chan struct{})
	go func() {
		_ = ch.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	assert.Equal(t, StateClosed, ch.State())
}

func TestOptions_Defaults(t *testing.T) {
	opts := Options{ReconnectInitial: 5 * time.Second, ReconnectMax: time.Second}
	opts.applyDefaults()

	assert.Equal(t, 256, opts.SendBuffer)
	assert.Equal(t, 10*time.Second, opts.HandshakeTimeout)
	assert.Equal(t, 5*time.Second, opts.ReconnectMax)
	assert.NotNil(t, opts.Logger)
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	assert.Equal(t, StateConnected, rec.State())

	require.NoError(t, rec.Report(testEvent(1)))

	boom := errors.New("boom")
	rec.FailWith(boom)
	assert.ErrorIs(t, rec.Report(testEvent(2)), boom)
	assert.Equal(t, StateDisconnected, rec.State())

	rec.FailWith(nil)
	require.NoError(t, rec.Report(testEvent(3)))

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, uint64(1), events[0].Sequence)
	assert.Equal(t, uint64(3), events[1].Sequence)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}
