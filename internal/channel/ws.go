package channel

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fasthttp/websocket"

	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Options configures a WSChannel. Zero values take the defaults below.
type Options struct {
	SendBuffer       int
	HandshakeTimeout time.Duration
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	Header           http.Header
	Logger           *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.ReconnectInitial <= 0 {
		o.ReconnectInitial = time.Second
	}
	if o.ReconnectMax <= 0 {
		o.ReconnectMax = 30 * time.Second
	}
	if o.ReconnectMax < o.ReconnectInitial {
		o.ReconnectMax = o.ReconnectInitial
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// WSChannel keeps one persistent websocket to the collector. A background
// loop dials, serves the connection until it drops and dials again with
// exponential backoff. Events are only accepted while connected.
type WSChannel struct {
	url    string
	opts   Options
	dialer *websocket.Dialer
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	send      chan []byte
	observers []func(State)

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWSChannel creates the channel and starts connecting in the background.
func NewWSChannel(url string, opts Options) *WSChannel {
	opts.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	c := &WSChannel{
		url:  url,
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		logger: opts.Logger.With("component", "channel", "url", url),
		state:  StateDisconnected,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go c.run()
	return c
}

func (c *WSChannel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnStateChange registers fn to be called after every state transition.
// Observers run on the goroutine that made the transition.
func (c *WSChannel) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Report encodes the event and queues it on the live connection.
func (c *WSChannel) Report(event violation.Event) error {
	message, err := event.Marshal()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state == StateClosed:
		return ErrClosed
	case c.send == nil:
		return ErrNotConnected
	}

	select {
	case c.send <- message:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close tears the connection down and stops reconnecting. It blocks until
// the background loop has exited.
func (c *WSChannel) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	observers := c.setStateLocked(StateClosed)
	c.mu.Unlock()

	notify(observers, StateClosed)
	c.cancel()
	<-c.done
	return nil
}

func (c *WSChannel) run() {
	defer close(c.done)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.ReconnectInitial
	policy.MaxInterval = c.opts.ReconnectMax
	policy.MaxElapsedTime = 0
	policy.Reset()

	for {
		if !c.transition(StateConnecting) {
			return
		}

		conn, _, err := c.dialer.DialContext(c.ctx, c.url, c.opts.Header)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			delay := policy.NextBackOff()
			c.logger.Warn("collector connection failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", delay),
			)
			if !c.transition(StateDisconnected) {
				return
			}

			timer := time.NewTimer(delay)
			select {
			case <-c.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}

		policy.Reset()
		c.serve(conn)

		if !c.transition(StateDisconnected) {
			return
		}
	}
}

// serve runs the pumps for one connection and returns once it is gone.
func (c *WSChannel) serve(conn *websocket.Conn) {
	send := make(chan []byte, c.opts.SendBuffer)

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.send = send
	observers := c.setStateLocked(StateConnected)
	c.mu.Unlock()

	notify(observers, StateConnected)
	c.logger.Info("collector connected")

	readDone := make(chan struct{})
	go c.readPump(conn, readDone)
	c.writePump(conn, send, readDone)

	c.mu.Lock()
	c.send = nil
	c.mu.Unlock()

	_ = conn.Close()
	<-readDone

	if dropped := len(send); dropped > 0 {
		c.logger.Warn("dropped queued events on disconnect", slog.Int("count", dropped))
	}
}

// readPump drains inbound frames; the collector sends nothing the agent
// needs, so its only job is noticing that the connection went away.
func (c *WSChannel) readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("collector connection lost", slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (c *WSChannel) writePump(conn *websocket.Conn, send <-chan []byte, readDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("write to collector failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		case <-c.ctx.Done():
			closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, closing, time.Now().Add(writeWait))
			return
		}
	}
}

// transition moves to s unless the channel has been closed.
func (c *WSChannel) transition(s State) bool {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return false
	}
	if c.state == s {
		c.mu.Unlock()
		return true
	}
	observers := c.setStateLocked(s)
	c.mu.Unlock()

	notify(observers, s)
	return true
}

func (c *WSChannel) setStateLocked(s State) []func(State) {
	c.state = s
	observers := make([]func(State), len(c.observers))
	copy(observers, c.observers)
	return observers
}

func notify(observers []func(State), s State) {
	for _, fn := range observers {
		fn(s)
	}
}

var _ Channel = (*WSChannel)(nil)
