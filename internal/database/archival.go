package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/zhouzhouyin/lifetrace/internal/models"
)

var ErrArchiveInProgress = errors.New("an archive upload is already in progress for this record")
var ErrAlreadyArchived = errors.New("this record has already been archived")
var ErrNotUploading = errors.New("no archive upload is in progress for this record")

// Archival is a three-state machine per record:
//
//	not_uploaded -> uploading -> uploaded
//	uploading -> not_uploaded (on reported failure)
//
// The row lock serializes attempts, so two concurrent BeginArchiveUpload
// calls on the same record cannot both succeed. A failure is never terminal;
// the client simply begins again.

func (s *PostgresStore) lockCloudStatus(ctx context.Context, tx pgx.Tx, id string, ownerID int64) (string, error) {
	var status string
	query := `SELECT cloud_status FROM records WHERE id = $1 AND owner_id = $2 FOR UPDATE`
	err := tx.QueryRow(ctx, query, id, ownerID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrRecordNotFound
		}
		return "", err
	}
	return status, nil
}

// BeginArchiveUpload moves a record into the uploading state and pins the
// object key the payload will live under.
func (s *PostgresStore) BeginArchiveUpload(ctx context.Context, id string, ownerID int64, archiveKey string) (*models.Record, error) {
	var updated *models.Record

	err := s.ExecTx(ctx, func(tx pgx.Tx) error {
		status, err := s.lockCloudStatus(ctx, tx, id, ownerID)
		if err != nil {
			return err
		}
		switch status {
		case models.CloudUploading:
			return ErrArchiveInProgress
		case models.CloudUploaded:
			return ErrAlreadyArchived
		}

		query := `
			UPDATE records
			SET cloud_status = $3, archive_key = $4
			WHERE id = $1 AND owner_id = $2
			RETURNING ` + recordColumns

		updated, err = scanRecord(tx.QueryRow(ctx, query, id, ownerID, models.CloudUploading, archiveKey))
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *PostgresStore) CompleteArchiveUpload(ctx context.Context, id string, ownerID int64) (*models.Record, error) {
	var updated *models.Record

	err := s.ExecTx(ctx, func(tx pgx.Tx) error {
		status, err := s.lockCloudStatus(ctx, tx, id, ownerID)
		if err != nil {
			return err
		}
		if status != models.CloudUploading {
			return ErrNotUploading
		}

		query := `
			UPDATE records
			SET cloud_status = $3
			WHERE id = $1 AND owner_id = $2
			RETURNING ` + recordColumns

		updated, err = scanRecord(tx.QueryRow(ctx, query, id, ownerID, models.CloudUploaded))
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// FailArchiveUpload rolls an interrupted upload back so the client can retry
// with a fresh BeginArchiveUpload.
func (s *PostgresStore) FailArchiveUpload(ctx context.Context, id string, ownerID int64) (*models.Record, error) {
	var updated *models.Record

	err := s.ExecTx(ctx, func(tx pgx.Tx) error {
		status, err := s.lockCloudStatus(ctx, tx, id, ownerID)
		if err != nil {
			return err
		}
		if status != models.CloudUploading {
			return ErrNotUploading
		}

		query := `
			UPDATE records
			SET cloud_status = $3, archive_key = NULL
			WHERE id = $1 AND owner_id = $2
			RETURNING ` + recordColumns

		updated, err = scanRecord(tx.QueryRow(ctx, query, id, ownerID, models.CloudNotUploaded))
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}
