package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zhouzhouyin/lifetrace/internal/models"
)

type CreateSessionParams struct {
	ID           uuid.UUID
	UserID       int64
	RefreshToken string
	UserAgent    string
	ClientIP     string
	ExpiresAt    time.Time
}

func (s *PostgresStore) CreateSession(ctx context.Context, arg CreateSessionParams) error {
	query := `
		INSERT INTO sessions (id, user_id, refresh_token, user_agent, client_ip, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.pool.Exec(ctx, query, arg.ID, arg.UserID, arg.RefreshToken, arg.UserAgent, arg.ClientIP, arg.ExpiresAt)
	return err
}

func (s *PostgresStore) GetUserByRefreshToken(ctx context.Context, refreshToken string) (*models.User, error) {
	query := `
		SELECT u.id, u.username, u.password_hash, u.display_name, u.created_at
		FROM users u
		JOIN sessions s ON u.id = s.user_id
		WHERE s.refresh_token = $1 AND s.expires_at > NOW()
	`
	var user models.User
	err := s.pool.QueryRow(ctx, query, refreshToken).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.DisplayName, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (s *PostgresStore) ListSessionsForUser(ctx context.Context, userID int64) ([]models.Session, error) {
	query := `
		SELECT id, user_agent, client_ip, expires_at, created_at
		FROM sessions
		WHERE user_id = $1 AND expires_at > NOW()
		ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(
			&session.ID,
			&session.UserAgent,
			&session.ClientIP,
			&session.ExpiresAt,
			&session.CreatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if sessions == nil {
		return []models.Session{}, nil
	}

	return sessions, nil
}

func (s *PostgresStore) DeleteSessionByID(ctx context.Context, sessionID uuid.UUID, userID int64) error {
	query := `DELETE FROM sessions WHERE id = $1 AND user_id = $2`
	_, err := s.pool.Exec(ctx, query, sessionID, userID)
	return err
}

func (s *PostgresStore) DeleteAllSessionsForUser(ctx context.Context, userID int64) error {
	query := `DELETE FROM sessions WHERE user_id = $1`
	_, err := s.pool.Exec(ctx, query, userID)
	return err
}

func (s *PostgresStore) DeleteSessionByRefreshToken(ctx context.Context, refreshToken string) error {
	query := `DELETE FROM sessions WHERE refresh_token = $1`
	_, err := s.pool.Exec(ctx, query, refreshToken)
	return err
}

var ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")

// RotateSession atomically consumes a refresh token and installs a new
// session for the same user. Token rotation: the old token is unusable once
// this commits.
func (s *PostgresStore) RotateSession(ctx context.Context, oldRefreshToken string, arg CreateSessionParams) (*models.User, error) {
	var user models.User

	err := s.ExecTx(ctx, func(tx pgx.Tx) error {
		lookup := `
			SELECT u.id, u.username, u.password_hash, u.display_name, u.created_at
			FROM users u
			JOIN sessions s ON u.id = s.user_id
			WHERE s.refresh_token = $1 AND s.expires_at > NOW()
			FOR UPDATE OF s
		`
		err := tx.QueryRow(ctx, lookup, oldRefreshToken).Scan(
			&user.ID, &user.Username, &user.PasswordHash, &user.DisplayName, &user.CreatedAt,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrInvalidRefreshToken
			}
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, oldRefreshToken); err != nil {
			return err
		}

		insert := `
			INSERT INTO sessions (id, user_id, refresh_token, user_agent, client_ip, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		_, err = tx.Exec(ctx, insert, arg.ID, user.ID, arg.RefreshToken, arg.UserAgent, arg.ClientIP, arg.ExpiresAt)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}
