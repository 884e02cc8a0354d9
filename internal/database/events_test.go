package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventJournal(t *testing.T) {
	userID := createTestUser(t, "evt_journal")

	err := testStore.LogEvent(context.Background(), userID, EventRecordCreated, map[string]string{"record_id": "abc"})
	require.NoError(t, err)
	err = testStore.LogEvent(context.Background(), userID, EventRecordPublished, map[string]string{"record_id": "abc"})
	require.NoError(t, err)

	events, err := testStore.GetEventsSince(context.Background(), userID, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, EventRecordCreated, events[0].EventType)
	require.Equal(t, EventRecordPublished, events[1].EventType)
	require.Contains(t, string(events[0].Payload), "abc")

	// Resuming from the last seen id skips everything already delivered.
	tail, err := testStore.GetEventsSince(context.Background(), userID, events[0].ID)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	require.Equal(t, EventRecordPublished, tail[0].EventType)

	// Another user's journal is invisible.
	otherID := createTestUser(t, "evt_other")
	none, err := testStore.GetEventsSince(context.Background(), otherID, 0)
	require.NoError(t, err)
	require.Empty(t, none)
}
