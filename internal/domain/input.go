package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type InputStatus string

const (
	InputQueued    InputStatus = "QUEUED"
	InputProcessed InputStatus = "PROCESSED"
	InputRejected  InputStatus = "REJECTED"
	InputFailed    InputStatus = "FAILED"
)

type InputType string

const (
	InputFieldEdit     InputType = "FIELD_EDIT"
	InputStepInput     InputType = "STEP_INPUT"
	InputDecisionInput InputType = "DECISION_INPUT"
	InputChatMessage   InputType = "CHAT_MESSAGE"
)

// QueuedInput is one buffered participant action awaiting ordered application.
// SequenceNumber assigns the total arrival order within a workflow and is the
// tie-break for "who goes first" among concurrent submissions. An input leaves
// QUEUED exactly once.
type QueuedInput struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	WorkflowID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_input_sequence,priority:1"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index"`

	InputType InputType      `gorm:"type:varchar(30);not null"`
	FieldName string         `gorm:"type:varchar(200);index"`
	Content   datatypes.JSON `gorm:"type:jsonb"`

	SequenceNumber int `gorm:"not null;uniqueIndex:idx_input_sequence,priority:2"`

	Status          InputStatus `gorm:"type:varchar(20);index;default:'QUEUED'"`
	RejectionReason string      `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewQueuedInput(workflowID, userID uuid.UUID, inputType InputType, fieldName string, content datatypes.JSON) *QueuedInput {
	return &QueuedInput{
		ID:         uuid.New(),
		WorkflowID: workflowID,
		UserID:     userID,
		InputType:  inputType,
		FieldName:  fieldName,
		Content:    content,
		Status:     InputQueued,
		CreatedAt:  time.Now(),
	}
}
