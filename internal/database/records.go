package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zhouzhouyin/lifetrace/internal/models"
)

var ErrRecordNotFound = errors.New("record not found or user is not the owner")
var ErrEmptyBody = errors.New("notes and biographies require a non-empty body")
var ErrInvalidKind = errors.New("unknown record kind")

const recordColumns = `
	id, owner_id, kind, title, body, file_id, mime_type, size_bytes,
	is_public, cloud_status, archive_key, like_count, created_at, modified_at
`

func scanRecord(row pgx.Row) (*models.Record, error) {
	var rec models.Record
	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.Kind, &rec.Title, &rec.Body,
		&rec.FileID, &rec.MimeType, &rec.SizeBytes,
		&rec.IsPublic, &rec.CloudStatus, &rec.ArchiveKey, &rec.LikeCount,
		&rec.CreatedAt, &rec.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

type CreateRecordParams struct {
	ID        string
	OwnerID   int64
	Kind      string
	Title     string
	Body      string
	FileID    *string
	MimeType  *string
	SizeBytes *int64
}

// CreateRecord inserts a new record in the 'private, not archived' state.
// Notes and biographies must carry a non-empty body; an upload's body is its
// description and may be empty.
func (s *PostgresStore) CreateRecord(ctx context.Context, arg CreateRecordParams) (*models.Record, error) {
	switch arg.Kind {
	case models.KindNote, models.KindBiography:
		if strings.TrimSpace(arg.Body) == "" {
			return nil, ErrEmptyBody
		}
	case models.KindUpload:
	default:
		return nil, ErrInvalidKind
	}

	query := `
		INSERT INTO records (id, owner_id, kind, title, body, file_id, mime_type, size_bytes, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING ` + recordColumns

	now := time.Now()
	row := s.pool.QueryRow(ctx, query,
		arg.ID,
		arg.OwnerID,
		arg.Kind,
		arg.Title,
		arg.Body,
		arg.FileID,
		arg.MimeType,
		arg.SizeBytes,
		now,
	)

	return scanRecord(row)
}

type UpdateRecordParams struct {
	ID      string
	OwnerID int64
	Title   *string
	Body    *string
}

// UpdateRecord applies a partial edit to a record owned by the caller. The
// row is locked for the duration of the transaction so the square projection
// can never be observed stale relative to a completed edit.
func (s *PostgresStore) UpdateRecord(ctx context.Context, arg UpdateRecordParams) (*models.Record, error) {
	var updated *models.Record

	err := s.ExecTx(ctx, func(tx pgx.Tx) error {
		var kind string
		var isPublic bool
		lockQuery := `SELECT kind, is_public FROM records WHERE id = $1 AND owner_id = $2 FOR UPDATE`
		if err := tx.QueryRow(ctx, lockQuery, arg.ID, arg.OwnerID).Scan(&kind, &isPublic); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrRecordNotFound
			}
			return err
		}

		if arg.Body != nil && kind != models.KindUpload && strings.TrimSpace(*arg.Body) == "" {
			return ErrEmptyBody
		}

		query := `
			UPDATE records
			SET title = COALESCE($3, title),
			    body = COALESCE($4, body),
			    modified_at = $5
			WHERE id = $1 AND owner_id = $2
			RETURNING ` + recordColumns

		rec, err := scanRecord(tx.QueryRow(ctx, query, arg.ID, arg.OwnerID, arg.Title, arg.Body, time.Now()))
		if err != nil {
			return err
		}

		if isPublic {
			refresh := `UPDATE square_entries SET preview = $2 WHERE record_id = $1`
			if _, err := tx.Exec(ctx, refresh, rec.ID, previewOf(rec.Body)); err != nil {
				return err
			}
		}

		updated = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteRecord hard-deletes a record; the square entry goes with it in the
// same transaction via the FK cascade. Returns the record as it was at
// deletion time so the caller can clean up any media payload.
func (s *PostgresStore) DeleteRecord(ctx context.Context, id string, ownerID int64) (*models.Record, error) {
	query := `
		DELETE FROM records
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + recordColumns

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return rec, nil
}

func (s *PostgresStore) GetRecordByID(ctx context.Context, id string) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = $1`

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return rec, nil
}

func (s *PostgresStore) RecordExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM records WHERE id = $1)`
	err := s.pool.QueryRow(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PostgresStore) ListRecordsByOwner(ctx context.Context, ownerID int64, kind string, limit int, offset int) ([]models.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE owner_id = $1 AND ($2 = '' OR kind = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := s.pool.Query(ctx, query, ownerID, kind, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if records == nil {
		return []models.Record{}, nil
	}

	return records, nil
}
