package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"collabflow/internal/core/ports"
	"collabflow/internal/domain"
	"collabflow/internal/metrics"

	"github.com/google/uuid"
)

// ConnectResult is handed back to the transport layer on connection.
type ConnectResult struct {
	Session  *domain.Session
	Restored bool
}

// SessionService tracks participant connections and recovers dropped sessions
// within the recovery window.
type SessionService interface {
	Connect(ctx context.Context, userID uuid.UUID, connectionID string) (*ConnectResult, error)
	Disconnect(ctx context.Context, sessionID uuid.UUID) error

	// Touch refreshes activity and extends expiry, debounced to bound write
	// amplification under high-frequency traffic.
	Touch(ctx context.Context, sessionID uuid.UUID) error

	RecordMessage(ctx context.Context, sessionID uuid.UUID, entry domain.ConversationEntry) error
	SetPendingInput(ctx context.Context, sessionID uuid.UUID, pending string) error
	AttachWorkflow(ctx context.Context, sessionID, workflowID uuid.UUID, workflowName string, currentStep int) error

	// SweepExpired runs one tick of the idle sweep.
	SweepExpired(ctx context.Context) (int64, error)
}

type sessionService struct {
	sessions       ports.SessionRepository
	bus            ports.EventBus
	idleTimeout    time.Duration
	recoveryWindow time.Duration
	debounce       time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

// NewSessionService creates a new SessionService.
func NewSessionService(sessions ports.SessionRepository, bus ports.EventBus, idleTimeout, recoveryWindow, debounce time.Duration, logger *slog.Logger, m *metrics.Metrics) SessionService {
	return &sessionService{
		sessions:       sessions,
		bus:            bus,
		idleTimeout:    idleTimeout,
		recoveryWindow: recoveryWindow,
		debounce:       debounce,
		logger:         logger,
		metrics:        m,
	}
}

// Connect reuses the user's most recent session when it is still within the
// recovery window, restoring the capped conversation history and pending
// input; otherwise it starts fresh.
func (s *sessionService) Connect(ctx context.Context, userID uuid.UUID, connectionID string) (*ConnectResult, error) {
	existing, err := s.sessions.LatestByUser(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, err
	}

	now := time.Now()
	if existing != nil && existing.IsActive && existing.IsWithinRecoveryWindow(now, s.recoveryWindow) {
		existing.ConnectionID = &connectionID
		existing.LastActivityAt = now
		existing.ExpiresAt = now.Add(s.idleTimeout)
		if err := s.sessions.Update(ctx, existing); err != nil {
			return nil, err
		}

		s.metrics.SessionsRecovered.Inc()
		if err := s.bus.PublishSessionRestored(ctx, domain.SessionRestoredEvent{
			SessionID:           existing.ID,
			UserID:              userID,
			WorkflowName:        existing.State.WorkflowName,
			CurrentStep:         existing.State.CurrentStep,
			ConversationHistory: existing.State.ConversationHistory,
			PendingInput:        existing.State.PendingInput,
		}); err != nil {
			s.logger.Warn("failed to publish session restored event",
				slog.String("session_id", existing.ID.String()),
				slog.String("error", err.Error()),
			)
		}

		s.logger.Info("session restored",
			slog.String("session_id", existing.ID.String()),
			slog.String("user_id", userID.String()),
		)
		return &ConnectResult{Session: existing, Restored: true}, nil
	}

	fresh := domain.NewSession(userID, connectionID, s.idleTimeout)
	if err := s.sessions.Create(ctx, fresh); err != nil {
		return nil, err
	}
	s.logger.Info("session created",
		slog.String("session_id", fresh.ID.String()),
		slog.String("user_id", userID.String()),
	)
	return &ConnectResult{Session: fresh, Restored: false}, nil
}

// Disconnect drops the connection reference but keeps the session alive; the
// idle sweep, not disconnection, is what invalidates sessions.
func (s *sessionService) Disconnect(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	session.ConnectionID = nil
	session.LastActivityAt = time.Now()
	return s.sessions.Update(ctx, session)
}

func (s *sessionService) Touch(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}

	now := time.Now()
	if now.Sub(session.LastActivityAt) <= s.debounce {
		return nil
	}
	session.LastActivityAt = now
	session.ExpiresAt = now.Add(s.idleTimeout)
	return s.sessions.Update(ctx, session)
}

func (s *sessionService) RecordMessage(ctx context.Context, sessionID uuid.UUID, entry domain.ConversationEntry) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	session.AppendConversation(entry)
	return s.sessions.Update(ctx, session)
}

func (s *sessionService) SetPendingInput(ctx context.Context, sessionID uuid.UUID, pending string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	session.State.PendingInput = pending
	return s.sessions.Update(ctx, session)
}

func (s *sessionService) AttachWorkflow(ctx context.Context, sessionID, workflowID uuid.UUID, workflowName string, currentStep int) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	session.State.WorkflowID = &workflowID
	session.State.WorkflowName = workflowName
	session.State.CurrentStep = currentStep
	return s.sessions.Update(ctx, session)
}

func (s *sessionService) SweepExpired(ctx context.Context) (int64, error) {
	swept, err := s.sessions.SweepExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		s.metrics.SessionsExpired.Add(float64(swept))
		s.logger.Info("idle sessions deactivated", slog.Int64("count", swept))
	}
	return swept, nil
}
