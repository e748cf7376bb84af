package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolutionValue(t *testing.T) {
	c := NewConflict(uuid.New(), "title", ConflictFieldValue, []ConflictInput{
		{InputID: uuid.New(), Value: "Alpha", SubmittedAt: time.Now().Add(-time.Minute)},
		{InputID: uuid.New(), Value: "Beta", SubmittedAt: time.Now()},
	}, 30*time.Minute)

	assert.Equal(t, "Alpha", c.ResolutionValue(ResolutionAcceptA, ""))
	assert.Equal(t, "Beta", c.ResolutionValue(ResolutionAcceptB, ""))
	assert.Equal(t, "Alpha and Beta", c.ResolutionValue(ResolutionMerge, "Alpha and Beta"))
	assert.Equal(t, "", c.ResolutionValue(ResolutionRejectBoth, "ignored"))
}

func TestNewConflictExpiry(t *testing.T) {
	before := time.Now()
	c := NewConflict(uuid.New(), "title", ConflictFieldValue, nil, 30*time.Minute)

	require.Equal(t, ConflictPending, c.Status)
	assert.WithinDuration(t, before.Add(30*time.Minute), c.ExpiresAt, time.Second)
	assert.Nil(t, c.Resolution)
}
