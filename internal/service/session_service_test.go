package service

import (
	"context"
	"testing"
	"time"

	"collabflow/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionEnv(t *testing.T) (SessionService, *memSessionRepo, *memEventBus) {
	t.Helper()
	sessions := newMemSessionRepo()
	bus := &memEventBus{}
	svc := NewSessionService(sessions, bus,
		30*time.Minute, // idle timeout
		60*time.Second, // recovery window
		time.Minute,    // activity debounce
		testLogger(), testMetrics())
	return svc, sessions, bus
}

func TestConnectCreatesFreshSession(t *testing.T) {
	svc, _, _ := newSessionEnv(t)

	result, err := svc.Connect(context.Background(), uuid.New(), "conn-1")
	require.NoError(t, err)
	assert.False(t, result.Restored)
	require.NotNil(t, result.Session.ConnectionID)
	assert.Equal(t, "conn-1", *result.Session.ConnectionID)
}

func TestReconnectWithinWindowRestoresSession(t *testing.T) {
	svc, _, bus := newSessionEnv(t)
	ctx := context.Background()
	user := uuid.New()

	first, err := svc.Connect(ctx, user, "conn-1")
	require.NoError(t, err)

	require.NoError(t, svc.AttachWorkflow(ctx, first.Session.ID, uuid.New(), "Quarterly Review", 3))
	require.NoError(t, svc.RecordMessage(ctx, first.Session.ID, domain.ConversationEntry{
		Role: "user", Content: "where were we?", SentAt: time.Now(),
	}))
	require.NoError(t, svc.SetPendingInput(ctx, first.Session.ID, "half-typed repl"))
	require.NoError(t, svc.Disconnect(ctx, first.Session.ID))

	second, err := svc.Connect(ctx, user, "conn-2")
	require.NoError(t, err)

	assert.True(t, second.Restored)
	assert.Equal(t, first.Session.ID, second.Session.ID)
	assert.Equal(t, "conn-2", *second.Session.ConnectionID)
	assert.Equal(t, "Quarterly Review", second.Session.State.WorkflowName)
	assert.Equal(t, 3, second.Session.State.CurrentStep)
	assert.Equal(t, "half-typed repl", second.Session.State.PendingInput)
	require.Len(t, second.Session.State.ConversationHistory, 1)

	require.Len(t, bus.sessionRestored, 1)
	assert.Equal(t, first.Session.ID, bus.sessionRestored[0].SessionID)
}

func TestReconnectPastWindowStartsFresh(t *testing.T) {
	svc, sessions, _ := newSessionEnv(t)
	ctx := context.Background()
	user := uuid.New()

	first, err := svc.Connect(ctx, user, "conn-1")
	require.NoError(t, err)

	// Push activity beyond the recovery window.
	stale, err := sessions.GetByID(ctx, first.Session.ID)
	require.NoError(t, err)
	stale.LastActivityAt = time.Now().Add(-2 * time.Minute)
	require.NoError(t, sessions.Update(ctx, stale))

	second, err := svc.Connect(ctx, user, "conn-2")
	require.NoError(t, err)
	assert.False(t, second.Restored)
	assert.NotEqual(t, first.Session.ID, second.Session.ID)
}

func TestSweepExpiredDeactivatesIdleSessions(t *testing.T) {
	svc, sessions, _ := newSessionEnv(t)
	ctx := context.Background()

	result, err := svc.Connect(ctx, uuid.New(), "conn-1")
	require.NoError(t, err)

	idle, err := sessions.GetByID(ctx, result.Session.ID)
	require.NoError(t, err)
	idle.ExpiresAt = time.Now().Add(-10 * time.Minute)
	require.NoError(t, sessions.Update(ctx, idle))

	swept, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	stored, err := sessions.GetByID(ctx, result.Session.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Nil(t, stored.ConnectionID)

	// Second sweep finds nothing.
	swept, err = svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), swept)
}

func TestExpiredSessionIsNotRestored(t *testing.T) {
	svc, sessions, _ := newSessionEnv(t)
	ctx := context.Background()
	user := uuid.New()

	first, err := svc.Connect(ctx, user, "conn-1")
	require.NoError(t, err)

	idle, err := sessions.GetByID(ctx, first.Session.ID)
	require.NoError(t, err)
	idle.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, sessions.Update(ctx, idle))

	_, err = svc.SweepExpired(ctx)
	require.NoError(t, err)

	second, err := svc.Connect(ctx, user, "conn-2")
	require.NoError(t, err)
	assert.False(t, second.Restored)
}

func TestTouchDebouncesWrites(t *testing.T) {
	svc, sessions, _ := newSessionEnv(t)
	ctx := context.Background()

	result, err := svc.Connect(ctx, uuid.New(), "conn-1")
	require.NoError(t, err)
	before, err := sessions.GetByID(ctx, result.Session.ID)
	require.NoError(t, err)

	// Fresh activity: within the debounce, no write happens.
	require.NoError(t, svc.Touch(ctx, result.Session.ID))
	after, err := sessions.GetByID(ctx, result.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, before.LastActivityAt, after.LastActivityAt)

	// Stale activity: the touch goes through and extends expiry.
	stale, err := sessions.GetByID(ctx, result.Session.ID)
	require.NoError(t, err)
	stale.LastActivityAt = time.Now().Add(-5 * time.Minute)
	require.NoError(t, sessions.Update(ctx, stale))

	require.NoError(t, svc.Touch(ctx, result.Session.ID))
	touched, err := sessions.GetByID(ctx, result.Session.ID)
	require.NoError(t, err)
	assert.True(t, touched.LastActivityAt.After(stale.LastActivityAt))
	assert.True(t, touched.ExpiresAt.After(stale.ExpiresAt))
}

func TestRecordMessageKeepsHistoryCapped(t *testing.T) {
	svc, sessions, _ := newSessionEnv(t)
	ctx := context.Background()

	result, err := svc.Connect(ctx, uuid.New(), "conn-1")
	require.NoError(t, err)
	for i := 0; i < domain.ConversationHistoryCap+3; i++ {
		require.NoError(t, svc.RecordMessage(ctx, result.Session.ID, domain.ConversationEntry{
			Role: "user", Content: "msg", SentAt: time.Now(),
		}))
	}

	stored, err := sessions.GetByID(ctx, result.Session.ID)
	require.NoError(t, err)
	assert.Len(t, stored.State.ConversationHistory, domain.ConversationHistoryCap)
}
