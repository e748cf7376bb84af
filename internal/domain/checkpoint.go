package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type CheckpointType string

const (
	CheckpointStepCompletion       CheckpointType = "STEP_COMPLETION"
	CheckpointDecisionConfirmation CheckpointType = "DECISION_CONFIRMATION"
	CheckpointAgentHandoff         CheckpointType = "AGENT_HANDOFF"
	CheckpointExplicitSave         CheckpointType = "EXPLICIT_SAVE"
)

// StateSnapshot is the blob captured into a checkpoint: everything needed to
// roll a workflow instance (and its shared context) back to this point.
type StateSnapshot struct {
	Status           WorkflowStatus        `json:"status"`
	CurrentStepIndex int                   `json:"currentStepIndex"`
	StepData         map[string]any        `json:"stepData"`
	ContextVersion   int                   `json:"contextVersion"`
	StepOutputs      map[string]StepOutput `json:"stepOutputs"`
	Decisions        []DecisionRecord      `json:"decisions"`
	Artifacts        []ArtifactReference   `json:"artifacts"`
	ContextSummary   string                `json:"contextSummary"`
}

// Checkpoint is an immutable point-in-time snapshot. Version is strictly
// increasing and gapless per workflow; the unique index backs the
// read-latest+insert-next transaction so two writers cannot commit the same
// next value.
type Checkpoint struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	WorkflowID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_checkpoint_version,priority:1"`
	StepID     string    `gorm:"type:varchar(200)"`

	CheckpointType CheckpointType `gorm:"type:varchar(30);not null"`
	Version        int            `gorm:"not null;uniqueIndex:idx_checkpoint_version,priority:2"`

	Snapshot datatypes.JSON `gorm:"type:jsonb"`

	TriggeredBy string `gorm:"type:varchar(100)"`
	CreatedAt   time.Time
}

func NewCheckpoint(workflowID uuid.UUID, stepID string, cpType CheckpointType, version int, snap StateSnapshot, triggeredBy string) (*Checkpoint, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return &Checkpoint{
		ID:             uuid.New(),
		WorkflowID:     workflowID,
		StepID:         stepID,
		CheckpointType: cpType,
		Version:        version,
		Snapshot:       raw,
		TriggeredBy:    triggeredBy,
		CreatedAt:      time.Now(),
	}, nil
}

// DecodeSnapshot unmarshals the stored blob. Checkpoints are never mutated
// after creation, so the decoded value is safe to use as a restore source.
func (c *Checkpoint) DecodeSnapshot() (StateSnapshot, error) {
	var snap StateSnapshot
	err := json.Unmarshal(c.Snapshot, &snap)
	return snap, err
}
