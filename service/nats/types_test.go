package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubmissionEvent_Success(t *testing.T) {
	submitted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	event := NewSubmissionEvent("ABC", "", nil, "testnet", submitted)

	assert.Equal(t, "ABC", event.ID)
	assert.Equal(t, CodeOK, event.Code)
	assert.Empty(t, event.Error)
	assert.Equal(t, "brt.submissions.ok", event.Subject())
	assert.Equal(t, time.UTC, event.SubmittedAt.Location())
}

func TestNewSubmissionEvent_Failure(t *testing.T) {
	event := NewSubmissionEvent("ABC", "e_bad_sequence", errors.New("bad sequence"), "mainnet", time.Now())

	assert.Equal(t, "e_bad_sequence", event.Code)
	assert.Equal(t, "bad sequence", event.Error)
	assert.Equal(t, "brt.submissions.e_bad_sequence", event.Subject())
}

func TestMockPublisher(t *testing.T) {
	m := NewMockPublisher()
	ctx := context.Background()

	require.NoError(t, m.PublishSubmission(ctx, NewSubmissionEvent("A", "", nil, "mainnet", time.Now())))
	require.NoError(t, m.PublishSubmission(ctx, NewSubmissionEvent("B", "e_redundant", nil, "mainnet", time.Now())))

	assert.Len(t, m.GetPublishedEvents(), 2)
	assert.Len(t, m.GetPublishedEventsForCode("e_redundant"), 1)

	m.SetPublishError(errors.New("nats down"))
	assert.Error(t, m.PublishSubmission(ctx, NewSubmissionEvent("C", "", nil, "mainnet", time.Now())))

	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())

	m.Reset()
	assert.Empty(t, m.GetPublishedEvents())
}
