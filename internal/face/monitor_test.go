package face

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/proctor/internal/detector"
	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

func score(v float64) *float64 { return &v }

var testFrame = Frame{Data: []byte("jpeg"), Width: 640, Height: 480}

type fakeTrack struct {
	stops atomic.Int32
}

func (t *fakeTrack) Stop() { t.stops.Add(1) }

type fakeStream struct {
	frames chan Frame
	ready  atomic.Bool
	tracks []*fakeTrack
}

func newFakeStream(ready bool) *fakeStream {
	s := &fakeStream{
		frames: make(chan Frame),
		tracks: []*fakeTrack{{}, {}},
	}
	s.ready.Store(ready)
	return s
}

func (s *fakeStream) Frames() <-chan Frame { return s.frames }
func (s *fakeStream) Ready() bool          { return s.ready.Load() }

func (s *fakeStream) Tracks() []Track {
	tracks := make([]Track, len(s.tracks))
	for i, t := range s.tracks {
		tracks[i] = t
	}
	return tracks
}

func (s *fakeStream) assertStopped(t *testing.T, want int32) {
	t.Helper()
	for _, track := range s.tracks {
		assert.Equal(t, want, track.stops.Load())
	}
}

// send blocks until the loop has taken the frame. Only the frames before it
// are known to be fully processed; f itself may still be in flight.
func (s *fakeStream) send(t *testing.T, f Frame) {
	t.Helper()
	select {
	case s.frames <- f:
	case <-time.After(time.Second):
		t.Fatal("frame was not consumed")
	}
}

type fakeDevices struct {
	stream  MediaStream
	err     error
	release chan struct{}
	calls   atomic.Int32
}

func (d *fakeDevices) GetUserMedia(ctx context.Context, c Constraints) (MediaStream, error) {
	d.calls.Add(1)
	if d.release != nil {
		// completes regardless of ctx, like a permission prompt answered late
		<-d.release
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

type step struct {
	predictions []Prediction
	err         error
}

// scripted returns its steps in order, then a confident face forever.
type scripted struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (c *scripted) Estimate(ctx context.Context, frame Frame) ([]Prediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	if c.calls <= len(c.steps) {
		s := c.steps[c.calls-1]
		return s.predictions, s.err
	}
	return []Prediction{{Confidence: score(0.95)}}, nil
}

func (c *scripted) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func loaded(c Capability) Loader {
	return LoaderFunc(func(context.Context) (Capability, error) { return c, nil })
}

type reports struct {
	ch chan violation.Type
}

func newReports() *reports {
	return &reports{ch: make(chan violation.Type, 64)}
}

func (r *reports) report(t violation.Type) { r.ch <- t }

func (r *reports) collect(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case v := <-r.ch:
			assert.Equal(t, violation.FaceNotVisible, v)
		case <-time.After(time.Second):
			t.Fatalf("got %d of %d reports", i, n)
		}
	}
}

func (r *reports) none(t *testing.T) {
	t.Helper()
	select {
	case v := <-r.ch:
		t.Fatalf("unexpected report %s", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func quietConfig() Config {
	return Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func waitState(t *testing.T, m *Monitor, want string) {
	t.Helper()
	require.Eventually(t, func() bool { return m.State() == want }, time.Second, 5*time.Millisecond,
		"state is %s, want %s", m.State(), want)
}

func waitDone(t *testing.T, m *Monitor) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("monitor did not finish")
	}
}

func startRunning(t *testing.T, c Capability, cfg Config) (*Monitor, *fakeStream, *reports) {
	t.Helper()
	stream := newFakeStream(true)
	rec := newReports()

	m := NewMonitor(loaded(c), &fakeDevices{stream: stream}, cfg)
	require.NoError(t, m.Start(context.Background(), rec.report))
	t.Cleanup(m.Stop)

	waitState(t, m, StateCameraAcquiring)
	return m, stream, rec
}

func TestMonitor_EmptyPredictionsReportEveryFrame(t *testing.T) {
	c := &scripted{steps: []step{{}, {}, {}}}
	m, stream, rec := startRunning(t, c, quietConfig())

	for i := 0; i < 3; i++ {
		stream.send(t, testFrame)
	}

	rec.collect(t, 3)
	assert.Equal(t, StateRunning, m.State())
}

func TestMonitor_ConfidenceThreshold(t *testing.T) {
	tests := []struct {
		name        string
		predictions []Prediction
		wantReport  bool
	}{
		{"confident face", []Prediction{{Confidence: score(0.8)}}, false},
		{"weak face", []Prediction{{Confidence: score(0.4)}}, true},
		{"exactly at threshold", []Prediction{{Confidence: score(0.6)}}, false},
		{"unscored face counts as present", []Prediction{{}}, false},
		{"only the top prediction matters", []Prediction{{Confidence: score(0.9)}, {Confidence: score(0.1)}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &scripted{steps: []step{{predictions: tt.predictions}}}
			_, stream, rec := startRunning(t, c, quietConfig())

			stream.send(t, testFrame)
			// the barrier frame finds a confident face
			stream.send(t, testFrame)

			if tt.wantReport {
				rec.collect(t, 1)
			}
			rec.none(t)
		})
	}
}

func TestMonitor_InferenceErrorDoesNotStopLoop(t *testing.T) {
	c := &scripted{steps: []step{{err: errors.New("model crashed")}, {}}}
	m, stream, rec := startRunning(t, c, quietConfig())

	stream.send(t, testFrame)
	stream.send(t, testFrame)

	rec.collect(t, 1)
	assert.Equal(t, StateRunning, m.State())
	assert.Equal(t, 2, c.Calls())
}

func TestMonitor_SkipsFramesUntilStreamReady(t *testing.T) {
	c := &scripted{}
	stream := newFakeStream(false)
	rec := newReports()

	m := NewMonitor(loaded(c), &fakeDevices{stream: stream}, quietConfig())
	require.NoError(t, m.Start(context.Background(), rec.report))
	defer m.Stop()

	stream.send(t, testFrame)
	stream.send(t, testFrame)
	// unusable whatever the ready flag says, so it fences the frames above
	stream.send(t, Frame{Data: []byte("jpeg"), Width: 0, Height: 480})
	assert.Zero(t, c.Calls())

	stream.ready.Store(true)
	stream.send(t, Frame{Data: []byte("jpeg"), Width: 0, Height: 480})
	stream.send(t, Frame{Data: []byte("jpeg"), Width: 640, Height: 0})
	stream.send(t, Frame{Data: []byte("jpeg"), Width: 0, Height: 0})
	assert.Zero(t, c.Calls())
	assert.Equal(t, StateCameraAcquiring, m.State())

	stream.send(t, testFrame)
	stream.send(t, testFrame)
	assert.GreaterOrEqual(t, c.Calls(), 1)
	assert.Equal(t, StateRunning, m.State())
}

func TestMonitor_ReReportInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cfg := quietConfig()
	cfg.Clock = clock
	cfg.ReReportInterval = 3 * time.Second

	c := &scripted{steps: []step{{}, {}, {}, {}, {predictions: []Prediction{{Confidence: score(0.9)}}}, {}}}
	_, stream, rec := startRunning(t, c, cfg)

	for i := 0; i < 5; i++ {
		stream.send(t, testFrame)
	}
	rec.collect(t, 1)

	clock.Advance(3 * time.Second)
	stream.send(t, testFrame)
	rec.collect(t, 1)
	rec.none(t)
}

func TestMonitor_StopDuringModelLoad(t *testing.T) {
	devices := &fakeDevices{stream: newFakeStream(true)}
	loader := LoaderFunc(func(ctx context.Context) (Capability, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	rec := newReports()

	m := NewMonitor(loader, devices, quietConfig())
	require.NoError(t, m.Start(context.Background(), rec.report))
	assert.Equal(t, StateModelLoading, m.State())

	m.Stop()
	waitDone(t, m)

	assert.Equal(t, StateStopped, m.State())
	assert.Zero(t, devices.calls.Load())
	rec.none(t)
}

func TestMonitor_StopBeforeAcquisitionCompletes(t *testing.T) {
	c := &scripted{}
	stream := newFakeStream(true)
	devices := &fakeDevices{stream: stream, release: make(chan struct{})}
	rec := newReports()

	m := NewMonitor(loaded(c), devices, quietConfig())
	require.NoError(t, m.Start(context.Background(), rec.report))
	require.Eventually(t, func() bool { return devices.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	m.Stop()
	assert.Equal(t, StateStopped, m.State())

	close(devices.release)
	waitDone(t, m)

	stream.assertStopped(t, 1)
	assert.Zero(t, c.Calls())
	rec.none(t)
}

func TestMonitor_StopIsIdempotent(t *testing.T) {
	c := &scripted{steps: []step{{}}}
	m, stream, rec := startRunning(t, c, quietConfig())

	stream.send(t, testFrame)
	rec.collect(t, 1)

	m.Stop()
	m.Stop()
	waitDone(t, m)

	assert.Equal(t, StateStopped, m.State())
	stream.assertStopped(t, 1)

	select {
	case stream.frames <- testFrame:
		t.Fatal("loop still consuming frames after Stop")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, c.Calls())
}

func TestMonitor_StopBeforeStart(t *testing.T) {
	m := NewMonitor(loaded(&scripted{}), &fakeDevices{}, quietConfig())

	m.Stop()
	m.Stop()

	assert.Equal(t, StateStopped, m.State())
	assert.Nil(t, m.Done())
	assert.ErrorIs(t, m.Start(context.Background(), func(violation.Type) {}), detector.ErrAlreadyStarted)
}

func TestMonitor_Failures(t *testing.T) {
	tests := []struct {
		name        string
		loader      Loader
		devices     *fakeDevices
		wantDevices int32
	}{
		{
			name: "model load fails",
			loader: LoaderFunc(func(context.Context) (Capability, error) {
				return nil, errors.New("weights unavailable")
			}),
			devices:     &fakeDevices{stream: newFakeStream(true)},
			wantDevices: 0,
		},
		{
			name:        "camera permission denied",
			loader:      loaded(&scripted{}),
			devices:     &fakeDevices{err: errors.New("NotAllowedError")},
			wantDevices: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newReports()
			m := NewMonitor(tt.loader, tt.devices, quietConfig())

			require.NoError(t, m.Start(context.Background(), rec.report))
			waitDone(t, m)

			assert.Equal(t, StateError, m.State())
			assert.Equal(t, tt.wantDevices, tt.devices.calls.Load())
			rec.none(t)

			m.Stop()
			assert.Equal(t, StateError, m.State())
		})
	}
}

func TestMonitor_StreamEndedReleasesCamera(t *testing.T) {
	m, stream, rec := startRunning(t, &scripted{}, quietConfig())

	stream.send(t, testFrame)
	close(stream.frames)
	waitDone(t, m)

	assert.Equal(t, StateError, m.State())
	stream.assertStopped(t, 1)

	m.Stop()
	stream.assertStopped(t, 1)
	rec.none(t)
}

func TestMonitor_StartRequiresDependencies(t *testing.T) {
	noop := func(violation.Type) {}

	assert.ErrorIs(t, NewMonitor(nil, &fakeDevices{}, quietConfig()).Start(context.Background(), noop), ErrNoLoader)
	assert.ErrorIs(t, NewMonitor(loaded(&scripted{}), nil, quietConfig()).Start(context.Background(), noop), ErrNoDevices)
}

func TestMonitor_StartTwice(t *testing.T) {
	m, _, _ := startRunning(t, &scripted{}, quietConfig())

	assert.ErrorIs(t, m.Start(context.Background(), func(violation.Type) {}), detector.ErrAlreadyStarted)
}

func TestAbsent(t *testing.T) {
	tests := []struct {
		name        string
		predictions []Prediction
		want        bool
	}{
		{"nil", nil, true},
		{"empty", []Prediction{}, true},
		{"below", []Prediction{{Confidence: score(0.59)}}, true},
		{"at", []Prediction{{Confidence: score(0.6)}}, false},
		{"above", []Prediction{{Confidence: score(0.61)}}, false},
		{"unscored", []Prediction{{}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Absent(tt.predictions, DefaultThreshold))
		})
	}
}
