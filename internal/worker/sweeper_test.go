package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"collabflow/internal/service"

	"github.com/stretchr/testify/assert"
)

type stubConflictService struct {
	service.ConflictService
	ticks atomic.Int64
	err   error
}

func (s *stubConflictService) EscalateExpired(context.Context) (int, error) {
	s.ticks.Add(1)
	return 0, s.err
}

type stubSessionService struct {
	service.SessionService
	ticks atomic.Int64
}

func (s *stubSessionService) SweepExpired(context.Context) (int64, error) {
	s.ticks.Add(1)
	return 0, nil
}

func TestSweeperTicksBothLoops(t *testing.T) {
	conflicts := &stubConflictService{}
	sessions := &stubSessionService{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sweeper := NewSweeper(conflicts, sessions, 10*time.Millisecond, 10*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	sweeper.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	cancel()

	assert.Greater(t, conflicts.ticks.Load(), int64(2))
	assert.Greater(t, sessions.ticks.Load(), int64(2))
}

func TestSweeperSurvivesTickErrors(t *testing.T) {
	conflicts := &stubConflictService{err: errors.New("db offline")}
	sessions := &stubSessionService{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sweeper := NewSweeper(conflicts, sessions, 10*time.Millisecond, time.Hour, logger)

	ctx, cancel := context.WithCancel(context.Background())
	sweeper.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	cancel()

	// Failing ticks keep coming instead of killing the loop.
	assert.Greater(t, conflicts.ticks.Load(), int64(2))
}
