package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Decision is a recorded choice made during workflow execution. Its effective
// value is always the latest DecisionVersion; the row itself is never
// overwritten in place.
type Decision struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	WorkflowID uuid.UUID `gorm:"type:uuid;not null;index"`
	StepID     string    `gorm:"type:varchar(200)"`

	DecisionType string         `gorm:"type:varchar(50)"`
	Question     string         `gorm:"type:text"`
	Options      datatypes.JSON `gorm:"type:jsonb"`
	Reasoning    string         `gorm:"type:text"`
	Context      datatypes.JSON `gorm:"type:jsonb"`

	DecidedBy uuid.UUID `gorm:"type:uuid;not null"`
	DecidedAt time.Time

	Locked       bool   `gorm:"default:false"`
	LockedBy     string `gorm:"type:varchar(100)"`
	LockReason   string `gorm:"type:text"`
	UnlockReason string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DecisionVersion is one entry of a decision's append-only history.
// VersionNumber is 1-based and strictly increasing per decision.
type DecisionVersion struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	DecisionID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_decision_version,priority:1"`

	VersionNumber int            `gorm:"not null;uniqueIndex:idx_decision_version,priority:2"`
	Value         datatypes.JSON `gorm:"type:jsonb"`

	ModifiedBy   uuid.UUID `gorm:"type:uuid;not null"`
	ModifiedAt   time.Time
	ChangeReason string `gorm:"type:text"`
}

type ChangeKind string

const (
	ChangeAdded    ChangeKind = "ADDED"
	ChangeRemoved  ChangeKind = "REMOVED"
	ChangeModified ChangeKind = "MODIFIED"
)

// FieldChange is one field-level difference between two decision versions.
type FieldChange struct {
	Field    string     `json:"field"`
	Kind     ChangeKind `json:"kind"`
	OldValue any        `json:"oldValue,omitempty"`
	NewValue any        `json:"newValue,omitempty"`
}

// DiffVersions computes the ordered field-level changes between two version
// values. Pure function over the stored snapshots; diff(a,b) and diff(b,a)
// report the same fields with old/new swapped.
func DiffVersions(a, b datatypes.JSON) ([]FieldChange, error) {
	oldFields, err := decodeFields(a)
	if err != nil {
		return nil, fmt.Errorf("decode old version: %w", err)
	}
	newFields, err := decodeFields(b)
	if err != nil {
		return nil, fmt.Errorf("decode new version: %w", err)
	}

	names := make([]string, 0, len(oldFields)+len(newFields))
	seen := map[string]bool{}
	for name := range oldFields {
		names = append(names, name)
		seen[name] = true
	}
	for name := range newFields {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var changes []FieldChange
	for _, name := range names {
		oldVal, inOld := oldFields[name]
		newVal, inNew := newFields[name]
		switch {
		case inOld && !inNew:
			changes = append(changes, FieldChange{Field: name, Kind: ChangeRemoved, OldValue: oldVal})
		case !inOld && inNew:
			changes = append(changes, FieldChange{Field: name, Kind: ChangeAdded, NewValue: newVal})
		case fmt.Sprint(oldVal) != fmt.Sprint(newVal):
			changes = append(changes, FieldChange{Field: name, Kind: ChangeModified, OldValue: oldVal, NewValue: newVal})
		}
	}
	return changes, nil
}

// decodeFields tolerates both object values and scalar values; a scalar is
// treated as a single "value" field so diffs over plain strings still work.
func decodeFields(raw datatypes.JSON) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err == nil {
		return fields, nil
	}
	var scalar any
	if err := json.Unmarshal(raw, &scalar); err != nil {
		return nil, err
	}
	return map[string]any{"value": scalar}, nil
}

type ReviewStatus string

const (
	ReviewUnderReview ReviewStatus = "UNDER_REVIEW"
	ReviewCompleted   ReviewStatus = "COMPLETED"
)

type ReviewVerdict string

const (
	VerdictApproved         ReviewVerdict = "APPROVED"
	VerdictChangesRequested ReviewVerdict = "CHANGES_REQUESTED"
)

// ReviewResponse is one reviewer's verdict, embedded in its review. Each
// invited reviewer submits exactly one.
type ReviewResponse struct {
	ReviewerID  uuid.UUID     `json:"reviewerId"`
	Verdict     ReviewVerdict `json:"verdict"`
	Comment     string        `json:"comment"`
	RespondedAt time.Time     `json:"respondedAt"`
}

// DecisionReview gates a decision behind reviewer approval. The review
// completes once every invited reviewer has responded or the deadline passes;
// responses recorded before a timeout are kept either way.
type DecisionReview struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	DecisionID uuid.UUID `gorm:"type:uuid;not null;index"`

	Status    ReviewStatus     `gorm:"type:varchar(20);default:'UNDER_REVIEW'"`
	Reviewers []uuid.UUID      `gorm:"serializer:json;type:jsonb"`
	Responses []ReviewResponse `gorm:"serializer:json;type:jsonb"`

	Deadline    time.Time
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// AllResponded reports whether every invited reviewer has a response.
func (r *DecisionReview) AllResponded() bool {
	if len(r.Responses) < len(r.Reviewers) {
		return false
	}
	responded := map[uuid.UUID]bool{}
	for _, resp := range r.Responses {
		responded[resp.ReviewerID] = true
	}
	for _, reviewer := range r.Reviewers {
		if !responded[reviewer] {
			return false
		}
	}
	return true
}

// HasResponded reports whether the given reviewer already submitted a verdict.
func (r *DecisionReview) HasResponded(reviewerID uuid.UUID) bool {
	for _, resp := range r.Responses {
		if resp.ReviewerID == reviewerID {
			return true
		}
	}
	return false
}
