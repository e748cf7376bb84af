package worker

import (
	"context"
	"log/slog"
	"time"

	"collabflow/internal/service"
)

// Sweeper runs the periodic background tasks: conflict escalation and session
// expiry. Each task is an independently cancellable ticker loop with its own
// failure isolation. An error on one tick is logged and the next tick runs
// unconditionally.
type Sweeper struct {
	conflicts service.ConflictService
	sessions  service.SessionService

	escalationInterval time.Duration
	sessionInterval    time.Duration

	logger *slog.Logger
}

func NewSweeper(conflicts service.ConflictService, sessions service.SessionService, escalationInterval, sessionInterval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		conflicts:          conflicts,
		sessions:           sessions,
		escalationInterval: escalationInterval,
		sessionInterval:    sessionInterval,
		logger:             logger,
	}
}

// Start launches both sweep loops. Call this in main.go as goroutines own it;
// cancelling ctx stops both cleanly mid-batch without losing committed work.
func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx, "conflict_escalation", s.escalationInterval, func(tickCtx context.Context) error {
		escalated, err := s.conflicts.EscalateExpired(tickCtx)
		if escalated > 0 {
			s.logger.Info("escalation sweep finished", slog.Int("escalated", escalated))
		}
		return err
	})

	go s.run(ctx, "session_expiry", s.sessionInterval, func(tickCtx context.Context) error {
		_, err := s.sessions.SweepExpired(tickCtx)
		return err
	})
}

// run is the shared tick loop. It must never crash: tick errors are logged
// and the loop continues until ctx is cancelled.
func (s *Sweeper) run(ctx context.Context, name string, interval time.Duration, tick func(context.Context) error) {
	s.logger.Info("sweep started",
		slog.String("sweep", name),
		slog.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweep shutting down", slog.String("sweep", name))
			return
		case <-ticker.C:
			if err := tick(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("sweep tick failed",
					slog.String("sweep", name),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
