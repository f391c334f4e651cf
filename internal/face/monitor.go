package face

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/looplab/fsm"

	"github.com/saturnino-fabrica-de-software/proctor/internal/detector"
	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

// Monitor states.
const (
	StateUninitialized   = "uninitialized"
	StateModelLoading    = "model_loading"
	StateCameraAcquiring = "camera_acquiring"
	StateRunning         = "running"
	StateStopped         = "stopped"
	StateError           = "error"
)

const (
	eventLoad    = "load"
	eventAcquire = "acquire"
	eventRun     = "run"
	eventStop    = "stop"
	eventFail    = "fail"
)

// DefaultThreshold is the confidence below which a face is not considered visible.
const DefaultThreshold = 0.6

var (
	ErrNoLoader    = errors.New("face monitor has no capability loader")
	ErrNoDevices   = errors.New("face monitor has no media devices")
	ErrStreamEnded = errors.New("camera stream ended")

	errStopped = errors.New("face monitor stopped")
)

// Config tunes a Monitor.
type Config struct {
	// Threshold defaults to DefaultThreshold.
	Threshold float64
	// ReReportInterval suppresses repeated face_not_visible reports closer
	// together than this. Zero reports once per analysed frame.
	ReReportInterval time.Duration
	// Constraints defaults to video only.
	Constraints *Constraints
	Clock       clockwork.Clock
	Logger      *slog.Logger
}

// Monitor is the face-presence detector. Start loads the capability and
// acquires the camera in the background; failures move it to StateError and
// it reports nothing further. Stop is safe in every state.
type Monitor struct {
	loader      Loader
	devices     MediaDevices
	threshold   float64
	interval    time.Duration
	constraints Constraints
	clock       clockwork.Clock
	logger      *slog.Logger

	// gate is held shared for the duration of one inference; Stop takes it
	// exclusively so no inference is in flight once Stop returns.
	gate sync.RWMutex

	mu         sync.Mutex
	machine    *fsm.FSM
	armed      bool
	cancel     context.CancelFunc
	stream     MediaStream
	released   bool
	lastReport time.Time
	done       chan struct{}
}

func NewMonitor(loader Loader, devices MediaDevices, cfg Config) *Monitor {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	constraints := Constraints{Video: true}
	if cfg.Constraints != nil {
		constraints = *cfg.Constraints
	}

	m := &Monitor{
		loader:      loader,
		devices:     devices,
		threshold:   cfg.Threshold,
		interval:    cfg.ReReportInterval,
		constraints: constraints,
		clock:       cfg.Clock,
		logger:      cfg.Logger.With("component", "face_monitor"),
	}

	m.machine = fsm.NewFSM(
		StateUninitialized,
		fsm.Events{
			{Name: eventLoad, Src: []string{StateUninitialized}, Dst: StateModelLoading},
			{Name: eventAcquire, Src: []string{StateModelLoading}, Dst: StateCameraAcquiring},
			{Name: eventRun, Src: []string{StateCameraAcquiring}, Dst: StateRunning},
			{Name: eventStop, Src: []string{StateUninitialized, StateModelLoading, StateCameraAcquiring, StateRunning}, Dst: StateStopped},
			{Name: eventFail, Src: []string{StateModelLoading, StateCameraAcquiring, StateRunning}, Dst: StateError},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				m.logger.Debug("face monitor state changed",
					slog.String("from", e.Src),
					slog.String("to", e.Dst),
				)
			},
		},
	)

	return m
}

func (m *Monitor) Name() string { return "face" }

// State returns the current lifecycle state.
func (m *Monitor) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.machine.Current()
}

// Done is closed when the background work started by Start has finished. It
// is nil before Start.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

// Start begins loading the capability and returns immediately. The
// background work ends on Stop or when ctx is cancelled.
func (m *Monitor) Start(ctx context.Context, report detector.Report) error {
	if m.loader == nil {
		return ErrNoLoader
	}
	if m.devices == nil {
		return ErrNoDevices
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.machine.Can(eventLoad) {
		return detector.ErrAlreadyStarted
	}
	if err := m.machine.Event(ctx, eventLoad); err != nil {
		return fmt.Errorf("start face monitor: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.armed = true
	m.done = make(chan struct{})

	go m.run(runCtx, report, m.done)
	return nil
}

func (m *Monitor) run(ctx context.Context, report detector.Report, done chan struct{}) {
	defer close(done)

	capability, err := m.loader.Load(ctx)
	if err != nil {
		m.fail(ctx, "model load failed", err)
		return
	}
	if !m.transition(ctx, eventAcquire) {
		return
	}

	stream, err := m.devices.GetUserMedia(ctx, m.constraints)
	if err != nil {
		m.fail(ctx, "camera acquisition failed", err)
		return
	}
	if !m.attach(stream) {
		// stopped while acquiring: the stream is ours to release
		stopTracks(stream)
		return
	}

	m.loop(ctx, capability, stream, report)
}

func (m *Monitor) loop(ctx context.Context, capability Capability, stream MediaStream, report detector.Report) {
	frames := stream.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				m.fail(ctx, "camera stream ended", ErrStreamEnded)
				return
			}
			if !stream.Ready() || frame.Width <= 0 || frame.Height <= 0 {
				continue
			}

			predictions, err := m.estimate(ctx, capability, frame)
			if errors.Is(err, errStopped) {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				m.logger.Warn("face inference failed", slog.String("error", err.Error()))
				continue
			}

			if Absent(predictions, m.threshold) {
				m.raise(report)
			}
		}
	}
}

// estimate runs one inference unless the monitor has been stopped. The first
// analysed frame moves the monitor to running.
func (m *Monitor) estimate(ctx context.Context, capability Capability, frame Frame) ([]Prediction, error) {
	m.gate.RLock()
	defer m.gate.RUnlock()

	m.mu.Lock()
	if !m.armed {
		m.mu.Unlock()
		return nil, errStopped
	}
	if m.machine.Can(eventRun) {
		_ = m.machine.Event(ctx, eventRun)
	}
	m.mu.Unlock()

	return capability.Estimate(ctx, frame)
}

func (m *Monitor) raise(report detector.Report) {
	m.mu.Lock()
	if !m.armed {
		m.mu.Unlock()
		return
	}
	now := m.clock.Now()
	if m.interval > 0 && !m.lastReport.IsZero() && now.Sub(m.lastReport) < m.interval {
		m.mu.Unlock()
		return
	}
	m.lastReport = now
	m.mu.Unlock()

	report(violation.FaceNotVisible)
}

func (m *Monitor) transition(ctx context.Context, event string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.armed {
		return false
	}
	return m.machine.Event(ctx, event) == nil
}

func (m *Monitor) attach(stream MediaStream) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.armed {
		return false
	}
	m.stream = stream
	return true
}

// fail moves a live monitor to StateError and releases the camera. Failures
// after Stop are expected (cancelled context) and only logged at debug level.
func (m *Monitor) fail(ctx context.Context, msg string, err error) {
	m.mu.Lock()
	if !m.armed {
		m.mu.Unlock()
		m.logger.Debug(msg+" after stop", slog.String("error", err.Error()))
		return
	}
	m.armed = false
	_ = m.machine.Event(ctx, eventFail)
	stream := m.takeStreamLocked()
	m.mu.Unlock()

	m.logger.Error(msg, slog.String("error", err.Error()))
	if stream != nil {
		stopTracks(stream)
	}
}

// Stop cancels the frame loop, waits for an in-flight inference to return,
// then releases the camera. Calling it again does nothing.
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.armed = false
	if m.machine.Can(eventStop) {
		_ = m.machine.Event(context.Background(), eventStop)
	}
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	m.gate.Lock()
	m.gate.Unlock()

	m.mu.Lock()
	stream := m.takeStreamLocked()
	m.mu.Unlock()

	if stream != nil {
		stopTracks(stream)
	}
}

func (m *Monitor) takeStreamLocked() MediaStream {
	if m.released || m.stream == nil {
		return nil
	}
	m.released = true
	stream := m.stream
	m.stream = nil
	return stream
}

func stopTracks(stream MediaStream) {
	for _, track := range stream.Tracks() {
		track.Stop()
	}
}

var _ detector.Detector = (*Monitor)(nil)
