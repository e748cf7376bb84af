package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ConversationHistoryCap bounds how many chat entries a session snapshot keeps.
const ConversationHistoryCap = 10

// ConversationEntry is one line of the session's capped chat history.
type ConversationEntry struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sentAt"`
}

// SessionState is the recoverable snapshot handed back on reconnect.
type SessionState struct {
	WorkflowID          *uuid.UUID          `json:"workflowId,omitempty"`
	WorkflowName        string              `json:"workflowName,omitempty"`
	CurrentStep         int                 `json:"currentStep"`
	ConversationHistory []ConversationEntry `json:"conversationHistory"`
	PendingInput        string              `json:"pendingInput,omitempty"`
}

// Session tracks one participant's live connection. Disconnection does not
// invalidate it; only the periodic sweep deactivates sessions past ExpiresAt.
type Session struct {
	ID     uuid.UUID `gorm:"type:uuid;primary_key"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index"`

	// ConnectionID is nil while the participant is disconnected.
	ConnectionID *string `gorm:"type:varchar(100)"`

	State SessionState `gorm:"serializer:json;type:jsonb"`

	Preferences datatypes.JSONMap `gorm:"type:jsonb"`

	LastActivityAt time.Time `gorm:"index"`
	ExpiresAt      time.Time `gorm:"index"`
	IsActive       bool      `gorm:"index;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewSession(userID uuid.UUID, connectionID string, idleTimeout time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:             uuid.New(),
		UserID:         userID,
		ConnectionID:   &connectionID,
		State:          SessionState{ConversationHistory: []ConversationEntry{}},
		Preferences:    datatypes.JSONMap{},
		LastActivityAt: now,
		ExpiresAt:      now.Add(idleTimeout),
		IsActive:       true,
		CreatedAt:      now,
	}
}

// IsWithinRecoveryWindow reports whether a dropped connection may still resume
// this session transparently.
func (s *Session) IsWithinRecoveryWindow(now time.Time, window time.Duration) bool {
	return now.Sub(s.LastActivityAt) <= window
}

// AppendConversation adds an entry, keeping only the most recent entries up to
// the history cap.
func (s *Session) AppendConversation(entry ConversationEntry) {
	s.State.ConversationHistory = append(s.State.ConversationHistory, entry)
	if n := len(s.State.ConversationHistory); n > ConversationHistoryCap {
		s.State.ConversationHistory = s.State.ConversationHistory[n-ConversationHistoryCap:]
	}
}
