package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/zhouzhouyin/lifetrace/internal/models"
)

var ErrEntryNotFound = errors.New("square entry not found")

// previewLength is the number of characters of body text projected into a
// square entry.
const previewLength = 100

func previewOf(body string) string {
	runes := []rune(body)
	if len(runes) <= previewLength {
		return body
	}
	return string(runes[:previewLength])
}

// SetRecordVisibility flips a record's public flag and keeps the square
// projection in step inside one transaction: publish upserts the entry
// (idempotent, never a duplicate), unpublish deletes it. The like count lives
// on the record, so it survives an unpublish/republish cycle.
func (s *PostgresStore) SetRecordVisibility(ctx context.Context, id string, ownerID int64, public bool) (*models.Record, error) {
	var updated *models.Record

	err := s.ExecTx(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE records
			SET is_public = $3, modified_at = NOW()
			WHERE id = $1 AND owner_id = $2
			RETURNING ` + recordColumns

		rec, err := scanRecord(tx.QueryRow(ctx, query, id, ownerID, public))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrRecordNotFound
			}
			return err
		}

		if public {
			upsert := `
				INSERT INTO square_entries (record_id, kind, owner_handle, preview, created_at)
				SELECT r.id, r.kind, u.username, $2, r.created_at
				FROM records r
				JOIN users u ON u.id = r.owner_id
				WHERE r.id = $1
				ON CONFLICT (record_id) DO UPDATE SET preview = EXCLUDED.preview
			`
			if _, err := tx.Exec(ctx, upsert, rec.ID, previewOf(rec.Body)); err != nil {
				return err
			}
		} else {
			if _, err := tx.Exec(ctx, `DELETE FROM square_entries WHERE record_id = $1`, rec.ID); err != nil {
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

// ListSquareEntries returns one feed page, newest first. The record id breaks
// timestamp ties so two calls with no intervening writes paginate
// identically.
func (s *PostgresStore) ListSquareEntries(ctx context.Context, limit int, offset int) ([]models.SquareEntry, error) {
	query := `
		SELECT e.id, e.record_id, e.kind, e.owner_handle, e.preview, r.like_count, e.created_at
		FROM square_entries e
		JOIN records r ON r.id = e.record_id
		ORDER BY e.created_at DESC, e.record_id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.SquareEntry
	for rows.Next() {
		var entry models.SquareEntry
		err := rows.Scan(
			&entry.ID, &entry.RecordID, &entry.Kind, &entry.OwnerHandle,
			&entry.Preview, &entry.LikeCount, &entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if entries == nil {
		return []models.SquareEntry{}, nil
	}

	return entries, nil
}

// LikeEntry adds one like to the entry's source record. The increment happens
// inside the UPDATE so concurrent likes are never lost; there is no
// per-voter de-duplication, a retried request counts again.
func (s *PostgresStore) LikeEntry(ctx context.Context, entryID int64) (int64, error) {
	query := `
		UPDATE records r
		SET like_count = r.like_count + 1
		FROM square_entries e
		WHERE e.record_id = r.id AND e.id = $1
		RETURNING r.like_count
	`
	var likeCount int64
	err := s.pool.QueryRow(ctx, query, entryID).Scan(&likeCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrEntryNotFound
		}
		return 0, err
	}

	return likeCount, nil
}

// GetEntryByRecordID looks up the live projection for a record, if any.
func (s *PostgresStore) GetEntryByRecordID(ctx context.Context, recordID string) (*models.SquareEntry, error) {
	query := `
		SELECT e.id, e.record_id, e.kind, e.owner_handle, e.preview, r.like_count, e.created_at
		FROM square_entries e
		JOIN records r ON r.id = e.record_id
		WHERE e.record_id = $1
	`
	var entry models.SquareEntry
	err := s.pool.QueryRow(ctx, query, recordID).Scan(
		&entry.ID, &entry.RecordID, &entry.Kind, &entry.OwnerHandle,
		&entry.Preview, &entry.LikeCount, &entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &entry, nil
}
