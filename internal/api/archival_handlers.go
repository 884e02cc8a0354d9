package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzhouyin/lifetrace/internal/archive"
	"github.com/zhouzhouyin/lifetrace/internal/database"
	"github.com/zhouzhouyin/lifetrace/internal/models"
)

type ArchiveStatusResponse struct {
	RecordID    string `json:"record_id"`
	CloudStatus string `json:"cloud_status" example:"uploading"`
	UploadURL   string `json:"upload_url,omitempty"`
}

func (s *Server) writeArchiveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrRecordNotFound):
		http.Error(w, "Record not found or you do not own it", http.StatusNotFound)
	case errors.Is(err, database.ErrArchiveInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, database.ErrAlreadyArchived):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, database.ErrNotUploading):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "Archive operation failed", http.StatusInternalServerError)
	}
}

// @Summary      Begin an archive upload
// @Description  Moves the record into the "uploading" state and returns a presigned PUT URL. The client uploads the payload directly to the bucket, then reports complete or fail.
// @Tags         archive
// @Produce      json
// @Security     BearerAuth
// @Param        recordId  path      string  true  "Record ID"
// @Success      200  {object}  ArchiveStatusResponse
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "Not Found"
// @Failure      409  {string}  string "Upload already in progress or already archived"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /records/{recordId}/archive [post]
func (s *Server) BeginArchiveHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	recordID := chi.URLParam(r, "recordId")

	key := archive.ObjectKey(claims.UserID, recordID)

	record, err := s.store.BeginArchiveUpload(r.Context(), recordID, claims.UserID, key)
	if err != nil {
		s.writeArchiveError(w, err)
		return
	}

	uploadURL, err := s.archiver.PresignPut(r.Context(), key)
	if err != nil {
		// Roll the state machine back so the client can retry cleanly.
		if _, failErr := s.store.FailArchiveUpload(r.Context(), recordID, claims.UserID); failErr != nil {
			log.Printf("ERROR: failed to roll back archive state for %s: %v", recordID, failErr)
		}
		http.Error(w, "Failed to presign archive upload", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ArchiveStatusResponse{
		RecordID:    record.ID,
		CloudStatus: record.CloudStatus,
		UploadURL:   uploadURL,
	})
}

// @Summary      Complete an archive upload
// @Description  Marks the in-progress upload as durably stored. Fails unless an upload was begun and not yet resolved.
// @Tags         archive
// @Produce      json
// @Security     BearerAuth
// @Param        recordId  path      string  true  "Record ID"
// @Success      200  {object}  ArchiveStatusResponse
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "Not Found"
// @Failure      422  {string}  string "No upload in progress"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /records/{recordId}/archive/complete [post]
func (s *Server) CompleteArchiveHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	recordID := chi.URLParam(r, "recordId")

	record, err := s.store.CompleteArchiveUpload(r.Context(), recordID, claims.UserID)
	if err != nil {
		s.writeArchiveError(w, err)
		return
	}

	if err := s.store.LogEvent(r.Context(), claims.UserID, database.EventArchiveCompleted, map[string]string{"id": record.ID}); err != nil {
		log.Printf("WARN: failed to log archive_completed event for %s: %v", record.ID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ArchiveStatusResponse{
		RecordID:    record.ID,
		CloudStatus: record.CloudStatus,
	})
}

// @Summary      Report a failed archive upload
// @Description  Rolls the record back to "not uploaded" so a fresh upload can be begun. Failures are never terminal.
// @Tags         archive
// @Produce      json
// @Security     BearerAuth
// @Param        recordId  path      string  true  "Record ID"
// @Success      200  {object}  ArchiveStatusResponse
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "Not Found"
// @Failure      422  {string}  string "No upload in progress"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /records/{recordId}/archive/fail [post]
func (s *Server) FailArchiveHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	recordID := chi.URLParam(r, "recordId")

	record, err := s.store.FailArchiveUpload(r.Context(), recordID, claims.UserID)
	if err != nil {
		s.writeArchiveError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ArchiveStatusResponse{
		RecordID:    record.ID,
		CloudStatus: record.CloudStatus,
	})
}

type ArchiveDownloadResponse struct {
	RecordID    string `json:"record_id"`
	DownloadURL string `json:"download_url"`
}

// @Summary      Fetch an archived payload
// @Description  Returns a presigned GET URL for a record that has been archived.
// @Tags         archive
// @Produce      json
// @Security     BearerAuth
// @Param        recordId  path      string  true  "Record ID"
// @Success      200  {object}  ArchiveDownloadResponse
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "Not Found"
// @Failure      422  {string}  string "Record is not archived"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /records/{recordId}/archive [get]
func (s *Server) GetArchiveHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	recordID := chi.URLParam(r, "recordId")

	record, err := s.store.GetRecordByID(r.Context(), recordID)
	if err != nil {
		http.Error(w, "Failed to retrieve record", http.StatusInternalServerError)
		return
	}
	if record == nil || record.OwnerID != claims.UserID {
		http.Error(w, "Record not found or you do not own it", http.StatusNotFound)
		return
	}
	if record.CloudStatus != models.CloudUploaded || record.ArchiveKey == nil {
		http.Error(w, "This record has not been archived", http.StatusUnprocessableEntity)
		return
	}

	downloadURL, err := s.archiver.PresignGet(r.Context(), *record.ArchiveKey)
	if err != nil {
		http.Error(w, "Failed to presign archive download", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ArchiveDownloadResponse{
		RecordID:    record.ID,
		DownloadURL: downloadURL,
	})
}
