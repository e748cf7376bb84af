package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// charsPerToken is the estimation ratio used for the context token budget.
const charsPerToken = 4

// StepOutput is the recorded result of one workflow step.
type StepOutput struct {
	StepID      string         `json:"stepId"`
	Output      map[string]any `json:"output"`
	CompletedBy string         `json:"completedBy"`
	CompletedAt time.Time      `json:"completedAt"`
}

// DecisionRecord is the context-visible trace of a decision. The full version
// history lives in the decision ledger; this record is never summarized away.
type DecisionRecord struct {
	DecisionID uuid.UUID `json:"decisionId"`
	StepID     string    `json:"stepId"`
	Question   string    `json:"question"`
	Value      string    `json:"value"`
	DecidedBy  string    `json:"decidedBy"`
	DecidedAt  time.Time `json:"decidedAt"`
}

type ArtifactReference struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Kind    string    `json:"kind"`
	URI     string    `json:"uri"`
	AddedBy string    `json:"addedBy"`
	AddedAt time.Time `json:"addedAt"`
}

// SharedContext is the versioned shared state of one workflow instance. Every
// successful mutation increments Version by exactly 1; writers that did not
// observe the stored version are rejected with ErrConcurrencyConflict.
type SharedContext struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	WorkflowID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`

	Version int `gorm:"not null;default:1"`

	StepOutputs map[string]StepOutput `gorm:"serializer:json;type:jsonb"`
	Decisions   []DecisionRecord      `gorm:"serializer:json;type:jsonb"`
	Artifacts   []ArtifactReference   `gorm:"serializer:json;type:jsonb"`
	Preferences datatypes.JSONMap     `gorm:"type:jsonb"`

	// Summary holds older step outputs collapsed by the token-budget check.
	Summary string `gorm:"type:text"`

	LastModifiedAt time.Time
	LastModifiedBy string `gorm:"type:varchar(100)"`
}

func NewSharedContext(workflowID uuid.UUID, preferences datatypes.JSONMap, createdBy string) *SharedContext {
	if preferences == nil {
		preferences = datatypes.JSONMap{}
	}
	return &SharedContext{
		ID:             uuid.New(),
		WorkflowID:     workflowID,
		Version:        1,
		StepOutputs:    map[string]StepOutput{},
		Decisions:      []DecisionRecord{},
		Artifacts:      []ArtifactReference{},
		Preferences:    preferences,
		LastModifiedAt: time.Now(),
		LastModifiedBy: createdBy,
	}
}

// touch bumps the optimistic version and stamps modification metadata.
func (c *SharedContext) touch(modifiedBy string) {
	c.Version++
	c.LastModifiedAt = time.Now()
	c.LastModifiedBy = modifiedBy
}

func (c *SharedContext) ApplyStepOutput(out StepOutput, modifiedBy string) {
	if c.StepOutputs == nil {
		c.StepOutputs = map[string]StepOutput{}
	}
	c.StepOutputs[out.StepID] = out
	c.touch(modifiedBy)
}

func (c *SharedContext) ApplyDecision(rec DecisionRecord, modifiedBy string) {
	c.Decisions = append(c.Decisions, rec)
	c.touch(modifiedBy)
}

func (c *SharedContext) ApplyArtifact(ref ArtifactReference, modifiedBy string) {
	c.Artifacts = append(c.Artifacts, ref)
	c.touch(modifiedBy)
}

// EstimatedTokens approximates the serialized size at ~4 chars per token.
func (c *SharedContext) EstimatedTokens() int {
	raw, err := json.Marshal(c)
	if err != nil {
		return 0
	}
	return len(raw) / charsPerToken
}

// Summarize enforces the token budget: when the estimated size exceeds
// maxTokens, the oldest half of step outputs (by completion time) is folded
// into the textual summary. Decisions and artifacts are always kept verbatim.
// Returns true if anything was collapsed. Runs synchronously inside the
// mutating call, never as a background job.
func (c *SharedContext) Summarize(maxTokens int) bool {
	if maxTokens <= 0 || c.EstimatedTokens() <= maxTokens || len(c.StepOutputs) < 2 {
		return false
	}

	outputs := make([]StepOutput, 0, len(c.StepOutputs))
	for _, out := range c.StepOutputs {
		outputs = append(outputs, out)
	}
	sort.Slice(outputs, func(i, j int) bool {
		return outputs[i].CompletedAt.Before(outputs[j].CompletedAt)
	})

	var sb strings.Builder
	if c.Summary != "" {
		sb.WriteString(c.Summary)
		sb.WriteString("\n")
	}
	for _, out := range outputs[:len(outputs)/2] {
		fmt.Fprintf(&sb, "[%s] step %q completed by %s (%d output fields)\n",
			out.CompletedAt.Format(time.RFC3339), out.StepID, out.CompletedBy, len(out.Output))
		delete(c.StepOutputs, out.StepID)
	}
	c.Summary = sb.String()
	return true
}
