// Package dircam is a camera backed by a directory of still images. Every
// JPEG or PNG written into the directory becomes the next frame, which lets
// an external grabber (ffmpeg, a browser extension, a test) feed the face
// monitor without a real capture device.
package dircam

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"

	"github.com/saturnino-fabrica-de-software/proctor/internal/face"
)

var (
	ErrNoDevice = errors.New("camera directory not found")
	ErrNoVideo  = errors.New("only video capture is supported")
)

// Devices implements face.MediaDevices over one directory.
type Devices struct {
	dir    string
	clock  clockwork.Clock
	logger *slog.Logger
}

func New(dir string, logger *slog.Logger) *Devices {
	return &Devices{
		dir:    dir,
		clock:  clockwork.NewRealClock(),
		logger: logger.With("component", "dircam", "dir", dir),
	}
}

// GetUserMedia starts watching the directory. The newest image already in
// the directory, if any, is the first frame.
func (d *Devices) GetUserMedia(_ context.Context, c face.Constraints) (face.MediaStream, error) {
	if !c.Video {
		return nil, ErrNoVideo
	}
	if c.Audio {
		d.logger.Debug("audio requested but directory camera has no microphone")
	}

	info, err := os.Stat(d.dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, d.dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(d.dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", d.dir, err)
	}

	s := newStream(watcher, d.clock, d.logger)
	if newest := newestImage(d.dir); newest != "" {
		s.load(newest)
	}

	s.wg.Add(2)
	go s.watchLoop()
	go s.deliverLoop()

	return s, nil
}

// Stream is a running directory camera. Delivery is latest-frame-wins: a
// frame that arrives while the consumer is busy replaces the pending one.
type Stream struct {
	watcher *fsnotify.Watcher
	clock   clockwork.Clock
	logger  *slog.Logger

	frames chan face.Frame
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	ready  atomic.Bool
	drops  atomic.Uint64

	mu      sync.Mutex
	cond    *sync.Cond
	pending *face.Frame
	stopped bool
}

func newStream(watcher *fsnotify.Watcher, clock clockwork.Clock, logger *slog.Logger) *Stream {
	s := &Stream{
		watcher: watcher,
		clock:   clock,
		logger:  logger,
		frames:  make(chan face.Frame),
		done:    make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Frames is closed after Stop.
func (s *Stream) Frames() <-chan face.Frame { return s.frames }

// Ready reports whether at least one decodable image has been seen.
func (s *Stream) Ready() bool { return s.ready.Load() }

// Drops counts frames replaced before the consumer took them.
func (s *Stream) Drops() uint64 { return s.drops.Load() }

func (s *Stream) Tracks() []face.Track {
	return []face.Track{videoTrack{s}}
}

// Stop ends the stream. Safe to call more than once.
func (s *Stream) Stop() {
	s.once.Do(func() {
		close(s.done)

		s.mu.Lock()
		s.stopped = true
		s.cond.Broadcast()
		s.mu.Unlock()

		_ = s.watcher.Close()
		s.wg.Wait()
		close(s.frames)
	})
}

type videoTrack struct {
	s *Stream
}

func (t videoTrack) Stop() { t.s.Stop() }

func (s *Stream) watchLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !isImage(event.Name) {
				continue
			}
			s.load(event.Name)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("camera directory watch error", slog.String("error", err.Error()))
		}
	}
}

// load reads one image and publishes it. Partially written files fail to
// decode and are skipped; the final write event publishes them.
func (s *Stream) load(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Debug("skip unreadable frame", slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		s.logger.Debug("skip undecodable frame", slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	s.publish(face.Frame{
		Data:       data,
		Width:      cfg.Width,
		Height:     cfg.Height,
		CapturedAt: s.clock.Now(),
	})
}

func (s *Stream) publish(frame face.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if s.pending != nil {
		s.drops.Add(1)
	}
	s.pending = &frame
	if frame.Width > 0 && frame.Height > 0 {
		s.ready.Store(true)
	}
	s.cond.Signal()
}

func (s *Stream) deliverLoop() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		for s.pending == nil && !s.stopped {
			s.cond.Wait()
		}
		if s.stopped {
			s.mu.Unlock()
			return
		}
		frame := *s.pending
		s.pending = nil
		s.mu.Unlock()

		select {
		case s.frames <- frame:
		case <-s.done:
			return
		}
	}
}

func isImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func newestImage(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var (
		newest  string
		newestT time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || !isImage(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestT) {
			newest = filepath.Join(dir, entry.Name())
			newestT = info.ModTime()
		}
	}
	return newest
}

var (
	_ face.MediaDevices = (*Devices)(nil)
	_ face.MediaStream  = (*Stream)(nil)
)
