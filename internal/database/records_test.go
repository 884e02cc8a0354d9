package database

import (
	"context"
	"testing"

	nanoid "github.com/jaevor/go-nanoid"
	"github.com/stretchr/testify/require"

	"github.com/zhouzhouyin/lifetrace/internal/models"
)

func newRecordID(t *testing.T) string {
	gen, err := nanoid.Standard(21)
	require.NoError(t, err)
	return gen()
}

func createTestRecord(t *testing.T, ownerID int64, kind, title, body string) *models.Record {
	rec, err := testStore.CreateRecord(context.Background(), CreateRecordParams{
		ID:      newRecordID(t),
		OwnerID: ownerID,
		Kind:    kind,
		Title:   title,
		Body:    body,
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

func TestCreateRecord(t *testing.T) {
	userID := createTestUser(t, "rec_create")

	rec := createTestRecord(t, userID, models.KindNote, "First note", "hello world")
	require.Equal(t, models.KindNote, rec.Kind)
	require.Equal(t, userID, rec.OwnerID)
	require.False(t, rec.IsPublic)
	require.Equal(t, models.CloudNotUploaded, rec.CloudStatus)
	require.Zero(t, rec.LikeCount)
	require.True(t, rec.ModifiedAt.Equal(rec.CreatedAt))
}

func TestCreateRecordEmptyBody(t *testing.T) {
	userID := createTestUser(t, "rec_empty")

	_, err := testStore.CreateRecord(context.Background(), CreateRecordParams{
		ID:      newRecordID(t),
		OwnerID: userID,
		Kind:    models.KindNote,
		Body:    "   ",
	})
	require.ErrorIs(t, err, ErrEmptyBody)

	_, err = testStore.CreateRecord(context.Background(), CreateRecordParams{
		ID:      newRecordID(t),
		OwnerID: userID,
		Kind:    models.KindBiography,
		Body:    "",
	})
	require.ErrorIs(t, err, ErrEmptyBody)

	// An upload's body is only a description, empty is fine.
	fileID := newRecordID(t)
	mime := "image/png"
	size := int64(1024)
	rec, err := testStore.CreateRecord(context.Background(), CreateRecordParams{
		ID:        newRecordID(t),
		OwnerID:   userID,
		Kind:      models.KindUpload,
		FileID:    &fileID,
		MimeType:  &mime,
		SizeBytes: &size,
	})
	require.NoError(t, err)
	require.Equal(t, models.KindUpload, rec.Kind)
	require.Equal(t, fileID, *rec.FileID)
}

func TestCreateRecordInvalidKind(t *testing.T) {
	userID := createTestUser(t, "rec_badkind")

	_, err := testStore.CreateRecord(context.Background(), CreateRecordParams{
		ID:      newRecordID(t),
		OwnerID: userID,
		Kind:    "diary",
		Body:    "text",
	})
	require.ErrorIs(t, err, ErrInvalidKind)
}

func TestUpdateRecord(t *testing.T) {
	userID := createTestUser(t, "rec_update")
	rec := createTestRecord(t, userID, models.KindNote, "Old title", "old body")

	newTitle := "New title"
	newBody := "new body"
	updated, err := testStore.UpdateRecord(context.Background(), UpdateRecordParams{
		ID:      rec.ID,
		OwnerID: userID,
		Title:   &newTitle,
		Body:    &newBody,
	})
	require.NoError(t, err)
	require.Equal(t, "New title", updated.Title)
	require.Equal(t, "new body", updated.Body)
	require.True(t, updated.ModifiedAt.After(rec.ModifiedAt))

	// Partial update leaves untouched fields alone.
	anotherTitle := "Third title"
	updated, err = testStore.UpdateRecord(context.Background(), UpdateRecordParams{
		ID:      rec.ID,
		OwnerID: userID,
		Title:   &anotherTitle,
	})
	require.NoError(t, err)
	require.Equal(t, "Third title", updated.Title)
	require.Equal(t, "new body", updated.Body)
}

func TestUpdateRecordEmptyBody(t *testing.T) {
	userID := createTestUser(t, "rec_update_empty")
	rec := createTestRecord(t, userID, models.KindBiography, "", "my life so far")

	blank := "  "
	_, err := testStore.UpdateRecord(context.Background(), UpdateRecordParams{
		ID:      rec.ID,
		OwnerID: userID,
		Body:    &blank,
	})
	require.ErrorIs(t, err, ErrEmptyBody)

	// The failed edit must not have touched the row.
	current, err := testStore.GetRecordByID(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, "my life so far", current.Body)
}

func TestUpdateRecordNotOwner(t *testing.T) {
	ownerID := createTestUser(t, "rec_owner")
	strangerID := createTestUser(t, "rec_stranger")
	rec := createTestRecord(t, ownerID, models.KindNote, "", "mine")

	title := "hijacked"
	_, err := testStore.UpdateRecord(context.Background(), UpdateRecordParams{
		ID:      rec.ID,
		OwnerID: strangerID,
		Title:   &title,
	})
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestDeleteRecord(t *testing.T) {
	userID := createTestUser(t, "rec_delete")
	rec := createTestRecord(t, userID, models.KindNote, "", "to be removed")

	deleted, err := testStore.DeleteRecord(context.Background(), rec.ID, userID)
	require.NoError(t, err)
	require.Equal(t, rec.ID, deleted.ID)

	found, err := testStore.GetRecordByID(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Nil(t, found)

	_, err = testStore.DeleteRecord(context.Background(), rec.ID, userID)
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestListRecordsByOwner(t *testing.T) {
	userID := createTestUser(t, "rec_list")

	for i := 0; i < 3; i++ {
		createTestRecord(t, userID, models.KindNote, "", "note body")
	}
	createTestRecord(t, userID, models.KindBiography, "", "bio body")

	all, err := testStore.ListRecordsByOwner(context.Background(), userID, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)

	// Newest first.
	for i := 1; i < len(all); i++ {
		require.False(t, all[i].CreatedAt.After(all[i-1].CreatedAt))
	}

	notes, err := testStore.ListRecordsByOwner(context.Background(), userID, models.KindNote, 10, 0)
	require.NoError(t, err)
	require.Len(t, notes, 3)

	page, err := testStore.ListRecordsByOwner(context.Background(), userID, "", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)

	empty, err := testStore.ListRecordsByOwner(context.Background(), userID, "", 10, 100)
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)
}
