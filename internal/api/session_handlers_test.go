package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhouzhouyin/lifetrace/internal/database"
	"github.com/zhouzhouyin/lifetrace/internal/models"
)

func TestSessionHandlers(t *testing.T) {
	rec := doRequest(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		Username: "session_mgr",
		Password: "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Two logins, two devices.
	var tokens TokenResponse
	for i := 0; i < 2; i++ {
		rec = doRequest(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{
			Username: "session_mgr",
			Password: "password123",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		decodeBody(t, rec, &tokens)
	}

	rec = doRequest(t, http.MethodGet, "/api/v1/sessions", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sessions []models.Session
	decodeBody(t, rec, &sessions)
	require.Len(t, sessions, 2)

	rec = doRequest(t, http.MethodDelete, "/api/v1/sessions/"+sessions[0].ID.String(), tokens.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, http.MethodDelete, "/api/v1/sessions/not-a-uuid", tokens.AccessToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, http.MethodPost, "/api/v1/sessions/terminate_all", tokens.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, http.MethodGet, "/api/v1/sessions", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &sessions)
	require.Empty(t, sessions)
}

func TestGetEventsHandler(t *testing.T) {
	_, token := registerTestUser(t)

	createNote(t, token, "", "first event source")

	rec := doRequest(t, http.MethodGet, "/api/v1/events", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var events []database.Event
	decodeBody(t, rec, &events)
	require.NotEmpty(t, events)
	require.Equal(t, database.EventRecordCreated, events[0].EventType)

	lastID := events[len(events)-1].ID
	rec = doRequest(t, http.MethodGet, fmt.Sprintf("/api/v1/events?since=%d", lastID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &events)
	require.Empty(t, events)

	rec = doRequest(t, http.MethodGet, "/api/v1/events?since=banana", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
