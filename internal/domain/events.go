package domain

import (
	"time"

	"github.com/google/uuid"
)

// Events published to the real-time transport. Each carries enough data for a
// connected client to render without a follow-up query.

type SessionRestoredEvent struct {
	SessionID           uuid.UUID           `json:"session_id"`
	UserID              uuid.UUID           `json:"user_id"`
	WorkflowName        string              `json:"workflow_name"`
	CurrentStep         int                 `json:"current_step"`
	ConversationHistory []ConversationEntry `json:"conversation_history"`
	PendingInput        string              `json:"pending_input,omitempty"`
}

type ConflictDetectedEvent struct {
	ConflictID uuid.UUID       `json:"conflict_id"`
	WorkflowID uuid.UUID       `json:"workflow_id"`
	FieldName  string          `json:"field_name"`
	Type       ConflictType    `json:"type"`
	Inputs     []ConflictInput `json:"inputs"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

type ConflictResolvedEvent struct {
	ConflictID uuid.UUID          `json:"conflict_id"`
	WorkflowID uuid.UUID          `json:"workflow_id"`
	FieldName  string             `json:"field_name"`
	Resolution ConflictResolution `json:"resolution"`
}

type CheckpointCreatedEvent struct {
	CheckpointID uuid.UUID      `json:"checkpoint_id"`
	WorkflowID   uuid.UUID      `json:"workflow_id"`
	StepID       string         `json:"step_id"`
	Type         CheckpointType `json:"type"`
	Version      int            `json:"version"`
	TriggeredBy  string         `json:"triggered_by"`
	CreatedAt    time.Time      `json:"created_at"`
}

type DecisionVersionAddedEvent struct {
	DecisionID    uuid.UUID `json:"decision_id"`
	WorkflowID    uuid.UUID `json:"workflow_id"`
	VersionNumber int       `json:"version_number"`
	ModifiedBy    uuid.UUID `json:"modified_by"`
	ChangeReason  string    `json:"change_reason"`
	ModifiedAt    time.Time `json:"modified_at"`
}
