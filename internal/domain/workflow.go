package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type WorkflowStatus string

const (
	WorkflowCreated            WorkflowStatus = "CREATED"
	WorkflowRunning            WorkflowStatus = "RUNNING"
	WorkflowPaused             WorkflowStatus = "PAUSED"
	WorkflowWaitingForInput    WorkflowStatus = "WAITING_FOR_INPUT"
	WorkflowWaitingForApproval WorkflowStatus = "WAITING_FOR_APPROVAL"
	WorkflowCompleted          WorkflowStatus = "COMPLETED"
	WorkflowFailed             WorkflowStatus = "FAILED"
	WorkflowCancelled          WorkflowStatus = "CANCELLED"
)

// allowedTransitions is the full lifecycle table. Built once, never mutated;
// terminal states have no entry, so every transition out of them fails.
var allowedTransitions = map[WorkflowStatus][]WorkflowStatus{
	WorkflowCreated: {WorkflowRunning},
	WorkflowRunning: {
		WorkflowPaused,
		WorkflowWaitingForInput,
		WorkflowWaitingForApproval,
		WorkflowCompleted,
		WorkflowFailed,
	},
	WorkflowPaused:             {WorkflowRunning, WorkflowCancelled},
	WorkflowWaitingForInput:    {WorkflowRunning, WorkflowCancelled},
	WorkflowWaitingForApproval: {WorkflowRunning, WorkflowCancelled},
}

// ValidateTransition is a pure lookup against the transition table. It never
// mutates anything; every status change in the system must pass through it.
func ValidateTransition(from, to WorkflowStatus) error {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return ErrInvalidTransition
}

// IsTerminal reports whether a status has no outgoing transitions.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowCompleted || s == WorkflowFailed || s == WorkflowCancelled
}

type WorkflowInstance struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key"`
	DefinitionRef    string    `gorm:"type:varchar(200);not null"`
	Name             string    `gorm:"type:varchar(200)"`
	CurrentStepIndex int       `gorm:"default:0"`

	Status WorkflowStatus `gorm:"type:varchar(30);index;default:'CREATED'"`

	// Arbitrary per-step payloads keyed by step id.
	StepData datatypes.JSONMap `gorm:"type:jsonb"`

	CreatedAt   time.Time
	UpdatedAt   time.Time
	PausedAt    *time.Time
	CancelledAt *time.Time
}

func NewWorkflowInstance(definitionRef, name string) *WorkflowInstance {
	return &WorkflowInstance{
		ID:            uuid.New(),
		DefinitionRef: definitionRef,
		Name:          name,
		Status:        WorkflowCreated,
		StepData:      datatypes.JSONMap{},
		CreatedAt:     time.Now(),
	}
}

// TransitionTo is the single in-memory mutation entry point for Status. It
// validates against the table and stamps the lifecycle timestamps.
func (w *WorkflowInstance) TransitionTo(to WorkflowStatus) error {
	if err := ValidateTransition(w.Status, to); err != nil {
		return err
	}
	now := time.Now()
	switch to {
	case WorkflowPaused:
		w.PausedAt = &now
	case WorkflowCancelled:
		w.CancelledAt = &now
	}
	w.Status = to
	w.UpdatedAt = now
	return nil
}
