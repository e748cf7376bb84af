package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestDiffVersions(t *testing.T) {
	older := datatypes.JSON(`{"title":"Draft v1","owner":"alice","priority":1}`)
	newer := datatypes.JSON(`{"title":"Draft v2","owner":"alice","deadline":"friday"}`)

	changes, err := DiffVersions(older, newer)
	require.NoError(t, err)
	require.Len(t, changes, 3)

	// Sorted by field name: deadline, priority, title.
	assert.Equal(t, FieldChange{Field: "deadline", Kind: ChangeAdded, NewValue: "friday"}, changes[0])
	assert.Equal(t, "priority", changes[1].Field)
	assert.Equal(t, ChangeRemoved, changes[1].Kind)
	assert.Equal(t, "title", changes[2].Field)
	assert.Equal(t, ChangeModified, changes[2].Kind)
	assert.Equal(t, "Draft v1", changes[2].OldValue)
	assert.Equal(t, "Draft v2", changes[2].NewValue)
}

func TestDiffVersionsSwappedArgumentsMirror(t *testing.T) {
	a := datatypes.JSON(`{"title":"one","extra":true}`)
	b := datatypes.JSON(`{"title":"two"}`)

	forward, err := DiffVersions(a, b)
	require.NoError(t, err)
	backward, err := DiffVersions(b, a)
	require.NoError(t, err)
	require.Len(t, backward, len(forward))

	for i, fc := range forward {
		assert.Equal(t, fc.Field, backward[i].Field)
		assert.Equal(t, fc.OldValue, backward[i].NewValue)
		assert.Equal(t, fc.NewValue, backward[i].OldValue)
	}
}

func TestDiffVersionsIdenticalValues(t *testing.T) {
	v := datatypes.JSON(`{"title":"same"}`)
	changes, err := DiffVersions(v, v)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestDiffVersionsScalarValues(t *testing.T) {
	changes, err := DiffVersions(datatypes.JSON(`"red"`), datatypes.JSON(`"blue"`))
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "value", changes[0].Field)
	assert.Equal(t, ChangeModified, changes[0].Kind)
}

func TestReviewAllResponded(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	review := &DecisionReview{
		Reviewers: []uuid.UUID{alice, bob},
		Deadline:  time.Now().Add(time.Hour),
	}

	assert.False(t, review.AllResponded())

	review.Responses = append(review.Responses, ReviewResponse{ReviewerID: alice, Verdict: VerdictApproved})
	assert.False(t, review.AllResponded())
	assert.True(t, review.HasResponded(alice))
	assert.False(t, review.HasResponded(bob))

	review.Responses = append(review.Responses, ReviewResponse{ReviewerID: bob, Verdict: VerdictChangesRequested})
	assert.True(t, review.AllResponded())
}
