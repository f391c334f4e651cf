// Command proctor runs one monitoring session. Browser signals arrive as
// newline-delimited JSON on stdin, one reply per signal is written to
// stdout, and violations are reported to the collector.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/saturnino-fabrica-de-software/proctor/internal/audit"
	"github.com/saturnino-fabrica-de-software/proctor/internal/channel"
	"github.com/saturnino-fabrica-de-software/proctor/internal/config"
	"github.com/saturnino-fabrica-de-software/proctor/internal/dircam"
	"github.com/saturnino-fabrica-de-software/proctor/internal/face"
	"github.com/saturnino-fabrica-de-software/proctor/internal/reporter"
	sig "github.com/saturnino-fabrica-de-software/proctor/internal/signal"
	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var identity violation.Identity
	flag.StringVar(&identity.CandidateID, "candidate-id", os.Getenv("PROCTOR_CANDIDATE_ID"), "Candidate ID (with -exam-id)")
	flag.StringVar(&identity.ExamID, "exam-id", os.Getenv("PROCTOR_EXAM_ID"), "Exam ID (with -candidate-id)")
	flag.StringVar(&identity.QuestionSetID, "question-set-id", os.Getenv("PROCTOR_QUESTION_SET_ID"), "Question set ID")
	flag.StringVar(&identity.CandidateName, "name", os.Getenv("PROCTOR_CANDIDATE_NAME"), "Candidate display name")
	flag.StringVar(&identity.CandidateEmail, "email", os.Getenv("PROCTOR_CANDIDATE_EMAIL"), "Candidate email")
	flag.Parse()

	if err := identity.Validate(); err != nil {
		return err
	}

	cfg, err := config.LoadAgent()
	if err != nil {
		return err
	}

	// stdout carries bridge replies
	logger := config.NewLoggerTo(os.Stderr, cfg.Environment)
	slog.SetDefault(logger)

	policies, err := config.LoadPolicies(cfg.PolicyFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch := channel.NewWSChannel(cfg.CollectorURL, channel.Options{
		SendBuffer:       cfg.SendBuffer,
		HandshakeTimeout: cfg.HandshakeTimeout,
		ReconnectInitial: cfg.ReconnectInitial,
		ReconnectMax:     cfg.ReconnectMax,
		Logger:           logger,
	})
	defer func() { _ = ch.Close() }()

	ch.OnStateChange(func(s channel.State) {
		logger.Debug("collector channel", slog.String("state", s.String()))
	})

	deps := reporter.Deps{
		Channel: ch,
		Logger:  logger,
		Audit:   audit.NewSlogLogger(logger),
	}

	bus := sig.NewBus()
	deps.Source = bus

	if cfg.FaceEnabled {
		loader, err := face.NewProviderLoader(cfg)
		if err != nil {
			return err
		}
		deps.FaceLoader = loader
		if cfg.CameraDir != "" {
			deps.Devices = dircam.New(cfg.CameraDir, logger)
		}
	}

	rep, err := reporter.Create(identity, reporter.ConfigFromAgent(cfg, policies), deps)
	if err != nil {
		return err
	}
	defer rep.Dispose()

	rep.OnLocalWarning(func(t violation.Type) {
		fmt.Fprintf(os.Stderr, "warning: %s detected\n", t)
	})

	logger.Info("session started",
		slog.String("session_id", rep.SessionID().String()),
		slog.String("session_key", identity.SessionKey()),
		slog.Any("detectors", rep.Detectors()),
	)

	bridgeErr := make(chan error, 1)
	go func() {
		bridgeErr <- sig.NewBridge(bus, logger).Run(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-bridgeErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("signal stream closed")
	}

	return nil
}
