package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/saturnino-fabrica-de-software/proctor/internal/alert"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/ws"
)

type ResultRepositoryInterface interface {
	Increment(ctx context.Context, tally domain.Tally) (*domain.Result, error)
	Get(ctx context.Context, sessionKey, candidateEmail string) (*domain.Result, error)
	ListBySession(ctx context.Context, sessionKey string) ([]domain.Result, error)
}

// Broadcaster pushes updates to the dashboards watching a session.
type Broadcaster interface {
	BroadcastToSession(sessionKey string, eventType ws.EventType, data interface{})
}

// AlertNotifier receives alerts raised by the alert engine
type AlertNotifier interface {
	Notify(a alert.Alert)
}

type ViolationService struct {
	repo     ResultRepositoryInterface
	hub      Broadcaster
	alerts   *alert.Engine
	notifier AlertNotifier
	clock    clockwork.Clock
	logger   *slog.Logger
}

func NewViolationService(repo ResultRepositoryInterface, hub Broadcaster, logger *slog.Logger) *ViolationService {
	return &ViolationService{
		repo:   repo,
		hub:    hub,
		clock:  clockwork.NewRealClock(),
		logger: logger.With("component", "violation_service"),
	}
}

func (s *ViolationService) WithClock(clock clockwork.Clock) *ViolationService {
	s.clock = clock
	return s
}

// WithAlerts evaluates engine after every recorded event and hands crossings
// to notifier.
func (s *ViolationService) WithAlerts(engine *alert.Engine, notifier AlertNotifier) *ViolationService {
	s.alerts = engine
	s.notifier = notifier
	return s
}

// Ingest validates one inbound message, adds it to the candidate's totals
// and broadcasts the new totals to the session's watchers.
func (s *ViolationService) Ingest(ctx context.Context, message []byte) (*domain.Result, error) {
	tally, err := DecodeTally(message, s.clock.Now())
	if err != nil {
		return nil, err
	}

	result, err := s.repo.Increment(ctx, tally)
	if err != nil {
		return nil, fmt.Errorf("session %s: record violation: %w", tally.Identity.SessionKey(), err)
	}

	if s.hub != nil {
		s.hub.BroadcastToSession(result.SessionKey, ws.EventViolationUpdate, result)
	}

	if s.alerts != nil && s.notifier != nil {
		for _, a := range s.alerts.Evaluate(result, tally) {
			s.notifier.Notify(a)
		}
	}

	s.logger.Debug("violation recorded",
		slog.String("session_key", result.SessionKey),
		slog.String("candidate_email", result.CandidateEmail),
		slog.Int("total", result.Total()),
	)

	return result, nil
}

func (s *ViolationService) Result(ctx context.Context, sessionKey, candidateEmail string) (*domain.Result, error) {
	sessionKey = strings.TrimSpace(sessionKey)
	candidateEmail = strings.TrimSpace(candidateEmail)
	if sessionKey == "" || candidateEmail == "" {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("session_key and candidate_email are required"))
	}

	return s.repo.Get(ctx, sessionKey, candidateEmail)
}

func (s *ViolationService) SessionResults(ctx context.Context, sessionKey string) ([]domain.Result, error) {
	sessionKey = strings.TrimSpace(sessionKey)
	if sessionKey == "" {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("session_key is required"))
	}

	return s.repo.ListBySession(ctx, sessionKey)
}
