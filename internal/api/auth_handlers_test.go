package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhouzhouyin/lifetrace/internal/models"
)

func TestRegisterLoginRefreshLogout(t *testing.T) {
	rec := doRequest(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		Username: "flow_user",
		Password: "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var user models.User
	decodeBody(t, rec, &user)
	require.Equal(t, "flow_user", user.Username)
	require.Empty(t, user.PasswordHash)

	// Duplicate username is refused.
	rec = doRequest(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		Username: "flow_user",
		Password: "password123",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{
		Username: "flow_user",
		Password: "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var tokens TokenResponse
	decodeBody(t, rec, &tokens)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)

	// The access token opens authenticated routes.
	rec = doRequest(t, http.MethodGet, "/api/v1/me", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Rotation: new pair works, the old refresh token is dead.
	rec = doRequest(t, http.MethodPost, "/api/v1/auth/refresh", "", RefreshTokenRequest{
		RefreshToken: tokens.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var rotated TokenResponse
	decodeBody(t, rec, &rotated)
	require.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	rec = doRequest(t, http.MethodPost, "/api/v1/auth/refresh", "", RefreshTokenRequest{
		RefreshToken: tokens.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, http.MethodPost, "/api/v1/auth/logout", rotated.AccessToken, LogoutRequest{
		RefreshToken: rotated.RefreshToken,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, http.MethodPost, "/api/v1/auth/refresh", "", RefreshTokenRequest{
		RefreshToken: rotated.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	rec := doRequest(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		Username: "   ",
		Password: "password123",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		Username: "shortpass",
		Password: "short",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	rec := doRequest(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		Username: "wrong_pass_user",
		Password: "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{
		Username: "wrong_pass_user",
		Password: "not-the-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{
		Username: "never_registered",
		Password: "password123",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/api/v1/records", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, http.MethodGet, "/api/v1/records", "garbage-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
