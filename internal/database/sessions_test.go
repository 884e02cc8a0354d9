package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	nanoid "github.com/jaevor/go-nanoid"
	"github.com/stretchr/testify/require"
)

func createTestSession(t *testing.T, userID int64) CreateSessionParams {
	gen, err := nanoid.Standard(40)
	require.NoError(t, err)

	arg := CreateSessionParams{
		ID:           uuid.New(),
		UserID:       userID,
		RefreshToken: gen(),
		UserAgent:    "go-test",
		ClientIP:     "127.0.0.1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, testStore.CreateSession(context.Background(), arg))
	return arg
}

func TestSessionLifecycle(t *testing.T) {
	userID := createTestUser(t, "sess_lifecycle")
	session := createTestSession(t, userID)

	user, err := testStore.GetUserByRefreshToken(context.Background(), session.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, user)
	require.Equal(t, userID, user.ID)

	sessions, err := testStore.ListSessionsForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, session.ID, sessions[0].ID)

	require.NoError(t, testStore.DeleteSessionByRefreshToken(context.Background(), session.RefreshToken))

	user, err = testStore.GetUserByRefreshToken(context.Background(), session.RefreshToken)
	require.NoError(t, err)
	require.Nil(t, user)
}

func TestExpiredSessionIsInvisible(t *testing.T) {
	userID := createTestUser(t, "sess_expired")

	gen, err := nanoid.Standard(40)
	require.NoError(t, err)
	arg := CreateSessionParams{
		ID:           uuid.New(),
		UserID:       userID,
		RefreshToken: gen(),
		ExpiresAt:    time.Now().Add(-time.Minute),
	}
	require.NoError(t, testStore.CreateSession(context.Background(), arg))

	user, err := testStore.GetUserByRefreshToken(context.Background(), arg.RefreshToken)
	require.NoError(t, err)
	require.Nil(t, user)

	sessions, err := testStore.ListSessionsForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestRotateSession(t *testing.T) {
	userID := createTestUser(t, "sess_rotate")
	old := createTestSession(t, userID)

	gen, err := nanoid.Standard(40)
	require.NoError(t, err)
	replacement := CreateSessionParams{
		ID:           uuid.New(),
		RefreshToken: gen(),
		ExpiresAt:    time.Now().Add(time.Hour),
	}

	user, err := testStore.RotateSession(context.Background(), old.RefreshToken, replacement)
	require.NoError(t, err)
	require.Equal(t, userID, user.ID)

	// The consumed token is dead.
	stale, err := testStore.GetUserByRefreshToken(context.Background(), old.RefreshToken)
	require.NoError(t, err)
	require.Nil(t, stale)

	// The replacement works.
	fresh, err := testStore.GetUserByRefreshToken(context.Background(), replacement.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, fresh)
	require.Equal(t, userID, fresh.ID)

	// Rotating the dead token again is refused.
	_, err = testStore.RotateSession(context.Background(), old.RefreshToken, replacement)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestDeleteAllSessionsForUser(t *testing.T) {
	userID := createTestUser(t, "sess_purge")
	createTestSession(t, userID)
	createTestSession(t, userID)

	require.NoError(t, testStore.DeleteAllSessionsForUser(context.Background(), userID))

	sessions, err := testStore.ListSessionsForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestDeleteSessionByIDScopedToUser(t *testing.T) {
	userID := createTestUser(t, "sess_scoped")
	otherID := createTestUser(t, "sess_other")
	session := createTestSession(t, userID)

	// A different user cannot terminate this session.
	require.NoError(t, testStore.DeleteSessionByID(context.Background(), session.ID, otherID))
	sessions, err := testStore.ListSessionsForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	require.NoError(t, testStore.DeleteSessionByID(context.Background(), session.ID, userID))
	sessions, err = testStore.ListSessionsForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Empty(t, sessions)
}
