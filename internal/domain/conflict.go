package domain

import (
	"time"

	"github.com/google/uuid"
)

type ConflictType string

const (
	ConflictFieldValue ConflictType = "FIELD_VALUE"
	ConflictDecision   ConflictType = "DECISION"
	ConflictCheckpoint ConflictType = "CHECKPOINT"
)

type ConflictStatus string

const (
	ConflictPending          ConflictStatus = "PENDING"
	ConflictResolved         ConflictStatus = "RESOLVED"
	ConflictEscalated        ConflictStatus = "ESCALATED"
	ConflictEscalationFailed ConflictStatus = "ESCALATION_FAILED"
)

type ResolutionType string

const (
	ResolutionAcceptA    ResolutionType = "ACCEPT_A"
	ResolutionAcceptB    ResolutionType = "ACCEPT_B"
	ResolutionMerge      ResolutionType = "MERGE"
	ResolutionRejectBoth ResolutionType = "REJECT_BOTH"
)

// ConflictInput is one competing submission, embedded in its Conflict.
// Inputs are kept ordered by submission timestamp, earliest first; that order
// is what AcceptA/AcceptB refer to.
type ConflictInput struct {
	InputID     uuid.UUID `json:"inputId"`
	UserID      uuid.UUID `json:"userId"`
	DisplayName string    `json:"displayName"`
	Value       string    `json:"value"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// ConflictResolution records how and by whom a conflict was settled.
type ConflictResolution struct {
	ResolvedBy uuid.UUID      `json:"resolvedBy"`
	Type       ResolutionType `json:"type"`
	FinalValue string         `json:"finalValue"`
	Reason     string         `json:"reason"`
	ResolvedAt time.Time      `json:"resolvedAt"`
}

// Conflict is a detected disagreement between concurrent inputs targeting the
// same field. Conflicts are never deleted; they only transition status, and
// Pending→Resolved happens at most once.
type Conflict struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	WorkflowID uuid.UUID `gorm:"type:uuid;not null;index"`
	FieldName  string    `gorm:"type:varchar(200);not null;index"`

	Type   ConflictType   `gorm:"type:varchar(20);not null"`
	Status ConflictStatus `gorm:"type:varchar(20);index;default:'PENDING'"`

	Inputs     []ConflictInput     `gorm:"serializer:json;type:jsonb"`
	Resolution *ConflictResolution `gorm:"serializer:json;type:jsonb"`

	CreatedAt         time.Time
	ExpiresAt         time.Time `gorm:"index"`
	EscalatedAt       *time.Time
	EscalationRetries int `gorm:"default:0"`
}

func NewConflict(workflowID uuid.UUID, fieldName string, cType ConflictType, inputs []ConflictInput, ttl time.Duration) *Conflict {
	now := time.Now()
	return &Conflict{
		ID:         uuid.New(),
		WorkflowID: workflowID,
		FieldName:  fieldName,
		Type:       cType,
		Status:     ConflictPending,
		Inputs:     inputs,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}

// ResolutionValue picks the final value for a resolution type. AcceptA and
// AcceptB copy the first/second input in submission order; Merge takes the
// caller-supplied value; RejectBoth applies neither.
func (c *Conflict) ResolutionValue(rType ResolutionType, supplied string) string {
	switch rType {
	case ResolutionAcceptA:
		if len(c.Inputs) > 0 {
			return c.Inputs[0].Value
		}
	case ResolutionAcceptB:
		if len(c.Inputs) > 1 {
			return c.Inputs[1].Value
		}
	case ResolutionMerge:
		return supplied
	case ResolutionRejectBoth:
		return ""
	}
	return ""
}
