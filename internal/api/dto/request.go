package dto

import (
	"time"

	"collabflow/internal/domain"

	"github.com/google/uuid"
)

type CreateWorkflowRequest struct {
	DefinitionRef string         `json:"definition_ref" binding:"required"`
	Name          string         `json:"name" binding:"required"`
	UserID        uuid.UUID      `json:"user_id" binding:"required"`
	Preferences   map[string]any `json:"preferences"`
}

type CreateWorkflowResponse struct {
	ID uuid.UUID `json:"id"`
}

type TransitionRequest struct {
	To string `json:"to" binding:"required"`
}

// UpdateContextRequest is a full replacement write. Version must be exactly
// one greater than the stored version or the write is rejected.
type UpdateContextRequest struct {
	Version     int                          `json:"version" binding:"required,min=2"`
	StepOutputs map[string]domain.StepOutput `json:"step_outputs"`
	Decisions   []domain.DecisionRecord      `json:"decisions"`
	Artifacts   []domain.ArtifactReference   `json:"artifacts"`
	Preferences map[string]any               `json:"preferences"`
	Summary     string                       `json:"summary"`
	UserID      uuid.UUID                    `json:"user_id" binding:"required"`
}

type AddStepOutputRequest struct {
	StepID string         `json:"step_id" binding:"required"`
	Output map[string]any `json:"output" binding:"required"`
	UserID uuid.UUID      `json:"user_id" binding:"required"`
}

type AddDecisionRecordRequest struct {
	DecisionID uuid.UUID `json:"decision_id" binding:"required"`
	StepID     string    `json:"step_id" binding:"required"`
	Question   string    `json:"question"`
	Value      string    `json:"value" binding:"required"`
	UserID     uuid.UUID `json:"user_id" binding:"required"`
}

type AddArtifactRequest struct {
	Name   string    `json:"name" binding:"required"`
	Kind   string    `json:"kind" binding:"required"`
	URI    string    `json:"uri" binding:"required"`
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type CreateCheckpointRequest struct {
	StepID      string `json:"step_id" binding:"required"`
	Type        string `json:"type" binding:"required"`
	TriggeredBy string `json:"triggered_by" binding:"required"`
}

type EnqueueInputRequest struct {
	UserID    uuid.UUID      `json:"user_id" binding:"required"`
	InputType string         `json:"input_type" binding:"required"`
	FieldName string         `json:"field_name"`
	Content   map[string]any `json:"content" binding:"required"`
}

type ResolveConflictRequest struct {
	ResolvedBy uuid.UUID `json:"resolved_by" binding:"required"`
	Type       string    `json:"type" binding:"required"`
	FinalValue string    `json:"final_value"`
	Reason     string    `json:"reason"`
}

type CreateDecisionRequest struct {
	WorkflowID   uuid.UUID      `json:"workflow_id" binding:"required"`
	StepID       string         `json:"step_id" binding:"required"`
	DecisionType string         `json:"decision_type"`
	Question     string         `json:"question"`
	Options      []string       `json:"options"`
	Reasoning    string         `json:"reasoning"`
	Value        map[string]any `json:"value" binding:"required"`
	DecidedBy    uuid.UUID      `json:"decided_by" binding:"required"`
}

type UpdateDecisionRequest struct {
	Value        map[string]any `json:"value" binding:"required"`
	ModifiedBy   uuid.UUID      `json:"modified_by" binding:"required"`
	ChangeReason string         `json:"change_reason" binding:"required"`
}

type LockDecisionRequest struct {
	By     string `json:"by" binding:"required"`
	Reason string `json:"reason"`
}

type UnlockDecisionRequest struct {
	By     string `json:"by" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

type StartReviewRequest struct {
	Reviewers []uuid.UUID `json:"reviewers" binding:"required,min=1"`
	Deadline  time.Time   `json:"deadline" binding:"required"`
}

type SubmitReviewRequest struct {
	ReviewerID uuid.UUID `json:"reviewer_id" binding:"required"`
	Verdict    string    `json:"verdict" binding:"required,oneof=APPROVED CHANGES_REQUESTED"`
	Comment    string    `json:"comment"`
}

type ConnectSessionRequest struct {
	UserID       uuid.UUID `json:"user_id" binding:"required"`
	ConnectionID string    `json:"connection_id" binding:"required"`
}

type ConnectSessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	Restored  bool      `json:"restored"`
}
