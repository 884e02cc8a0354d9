package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jaevor/go-nanoid"

	"github.com/zhouzhouyin/lifetrace/internal/database"
	"github.com/zhouzhouyin/lifetrace/internal/models"
)

const defaultPageSize = 20
const maxPageSize = 100

func pageParams(r *http.Request) (limit int, offset int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return pageSize, (page - 1) * pageSize
}

func (s *Server) generateUniqueID(ctx context.Context) (string, error) {
	maxRetries := 10

	generateID, err := nanoid.Standard(21)
	if err != nil {
		return "", fmt.Errorf("failed to initialize nanoid generator: %w", err)
	}

	for i := 0; i < maxRetries; i++ {
		id := generateID()
		exists, err := s.store.RecordExists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to check for record existence: %w", err)
		}
		if !exists {
			return id, nil
		}
	}

	return "", fmt.Errorf("failed to generate a unique ID after %d attempts", maxRetries)
}

type CreateRecordRequest struct {
	Kind  string `json:"kind" example:"note"`
	Title string `json:"title" example:"My first note"`
	Body  string `json:"body" example:"Today I planted the osmanthus tree."`
}

// @Summary      Create a note or biography
// @Description  Creates a new private record of kind "note" or "biography". The body must not be empty. Uploads go through /records/upload instead.
// @Tags         records
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        createRecordRequest  body      CreateRecordRequest  true  "Record content"
// @Success      201  {object}  models.Record
// @Failure      400  {string}  string "Validation error"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /records [post]
func (s *Server) CreateRecordHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Kind != models.KindNote && req.Kind != models.KindBiography {
		http.Error(w, "Kind must be 'note' or 'biography'", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Body) == "" {
		http.Error(w, "Body cannot be empty", http.StatusBadRequest)
		return
	}

	recordID, err := s.generateUniqueID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	params := database.CreateRecordParams{
		ID:      recordID,
		OwnerID: claims.UserID,
		Kind:    req.Kind,
		Title:   req.Title,
		Body:    req.Body,
	}

	record, err := s.store.CreateRecord(r.Context(), params)
	if err != nil {
		if errors.Is(err, database.ErrEmptyBody) || errors.Is(err, database.ErrInvalidKind) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to create record", http.StatusInternalServerError)
		return
	}

	if err := s.store.LogEvent(r.Context(), claims.UserID, database.EventRecordCreated, record); err != nil {
		log.Printf("WARN: failed to log record_created event for %s: %v", record.ID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(record)
}

// @Summary      Upload a media record
// @Description  Creates a new private record of kind "upload" from a multipart file. The optional "description" field becomes the record body and may be empty.
// @Tags         records
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file         formData  file    true   "Media file"
// @Param        description  formData  string  false  "Description"
// @Success      201  {object}  models.Record
// @Failure      400  {string}  string "Bad Request"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /records/upload [post]
func (s *Server) UploadRecordHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<30)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Error parsing multipart form", http.StatusBadRequest)
		return
	}

	file, handler, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error retrieving the file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	recordID, err := s.generateUniqueID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := s.media.Save(recordID, file); err != nil {
		http.Error(w, "Failed to save media", http.StatusInternalServerError)
		return
	}

	sizeBytes := handler.Size
	mimeType := handler.Header.Get("Content-Type")
	fileID := recordID

	params := database.CreateRecordParams{
		ID:        recordID,
		OwnerID:   claims.UserID,
		Kind:      models.KindUpload,
		Title:     handler.Filename,
		Body:      r.FormValue("description"),
		FileID:    &fileID,
		MimeType:  &mimeType,
		SizeBytes: &sizeBytes,
	}

	record, err := s.store.CreateRecord(r.Context(), params)
	if err != nil {
		if rmErr := s.media.Delete(recordID); rmErr != nil {
			log.Printf("WARN: failed to remove orphaned media %s: %v", recordID, rmErr)
		}
		http.Error(w, "Failed to create upload record", http.StatusInternalServerError)
		return
	}

	if err := s.store.LogEvent(r.Context(), claims.UserID, database.EventRecordCreated, record); err != nil {
		log.Printf("WARN: failed to log record_created event for %s: %v", record.ID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(record)
}

// @Summary      List own records
// @Description  Lists the authenticated user's records, newest first. Optionally filtered by kind.
// @Tags         records
// @Produce      json
// @Security     BearerAuth
// @Param        kind       query     string  false  "Filter by kind (note, biography, upload)"
// @Param        page       query     int     false  "Page number, 1-based"
// @Param        page_size  query     int     false  "Page size (default 20, max 100)"
// @Success      200  {array}   models.Record
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /records [get]
func (s *Server) ListRecordsHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	kind := r.URL.Query().Get("kind")
	switch kind {
	case "", models.KindNote, models.KindBiography, models.KindUpload:
	default:
		http.Error(w, "Unknown kind filter", http.StatusBadRequest)
		return
	}

	limit, offset := pageParams(r)

	records, err := s.store.ListRecordsByOwner(r.Context(), claims.UserID, kind, limit, offset)
	if err != nil {
		http.Error(w, "Failed to list records", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// @Summary      Get a single record
// @Description  Retrieves one record. The owner always sees their record; while it is public, anyone may read it, no session required.
// @Tags         records
// @Produce      json
// @Param        recordId  path      string  true  "Record ID"
// @Success      200  {object}  models.Record
// @Failure      404  {string}  string "Not Found"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /records/{recordId} [get]
func (s *Server) GetRecordHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	recordID := chi.URLParam(r, "recordId")

	record, err := s.store.GetRecordByID(r.Context(), recordID)
	if err != nil {
		http.Error(w, "Failed to retrieve record", http.StatusInternalServerError)
		return
	}
	isOwner := claims != nil && record != nil && record.OwnerID == claims.UserID
	if record == nil || (!isOwner && !record.IsPublic) {
		http.Error(w, "Record not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

type UpdateRecordRequest struct {
	Title *string `json:"title"`
	Body  *string `json:"body"`
}

// @Summary      Update a record
// @Description  Applies a partial edit to an owned record. If the record is public, its square preview is refreshed in the same transaction.
// @Tags         records
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        recordId             path      string               true  "Record ID"
// @Param        updateRecordRequest  body      UpdateRecordRequest  true  "Fields to change"
// @Success      200  {object}  models.Record
// @Failure      400  {string}  string "Validation error"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "Not Found"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /records/{recordId} [patch]
func (s *Server) UpdateRecordHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	recordID := chi.URLParam(r, "recordId")

	var req UpdateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Title == nil && req.Body == nil {
		http.Error(w, "Nothing to update", http.StatusBadRequest)
		return
	}

	params := database.UpdateRecordParams{
		ID:      recordID,
		OwnerID: claims.UserID,
		Title:   req.Title,
		Body:    req.Body,
	}

	record, err := s.store.UpdateRecord(r.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrRecordNotFound):
			http.Error(w, "Record not found or you do not own it", http.StatusNotFound)
		case errors.Is(err, database.ErrEmptyBody):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, "Failed to update record", http.StatusInternalServerError)
		}
		return
	}

	if err := s.store.LogEvent(r.Context(), claims.UserID, database.EventRecordUpdated, record); err != nil {
		log.Printf("WARN: failed to log record_updated event for %s: %v", record.ID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

// @Summary      Delete a record
// @Description  Hard-deletes an owned record. A live square entry is removed in the same transaction and any media payload is deleted from disk.
// @Tags         records
// @Security     BearerAuth
// @Param        recordId  path      string  true  "Record ID"
// @Success      204  {null}    nil     "No Content"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "Not Found"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /records/{recordId} [delete]
func (s *Server) DeleteRecordHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	recordID := chi.URLParam(r, "recordId")

	record, err := s.store.DeleteRecord(r.Context(), recordID, claims.UserID)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			http.Error(w, "Record not found or you do not own it", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete record", http.StatusInternalServerError)
		return
	}

	if record.FileID != nil {
		if err := s.media.Delete(*record.FileID); err != nil {
			log.Printf("WARN: failed to delete media %s for record %s: %v", *record.FileID, record.ID, err)
		}
	}

	if record.IsPublic {
		s.broadcastSquareEvent("entry_unpublished", map[string]string{"record_id": record.ID})
	}

	if err := s.store.LogEvent(r.Context(), claims.UserID, database.EventRecordDeleted, map[string]string{"id": record.ID}); err != nil {
		log.Printf("WARN: failed to log record_deleted event for %s: %v", record.ID, err)
	}

	w.WriteHeader(http.StatusNoContent)
}

type SetVisibilityRequest struct {
	Public bool `json:"public"`
}

// @Summary      Publish or retract a record
// @Description  Flips the public flag. Turning it on projects the record into the square feed (idempotent); turning it off removes the entry. The like count stays with the record either way.
// @Tags         records
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        recordId              path      string                true  "Record ID"
// @Param        setVisibilityRequest  body      SetVisibilityRequest  true  "Desired visibility"
// @Success      200  {object}  models.Record
// @Failure      400  {string}  string "Bad Request"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "Not Found"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /records/{recordId}/visibility [put]
func (s *Server) SetVisibilityHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	recordID := chi.URLParam(r, "recordId")

	var req SetVisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, err := s.store.SetRecordVisibility(r.Context(), recordID, claims.UserID, req.Public)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			http.Error(w, "Record not found or you do not own it", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to change visibility", http.StatusInternalServerError)
		return
	}

	eventType := database.EventRecordUnpublished
	if req.Public {
		eventType = database.EventRecordPublished
	}
	if err := s.store.LogEvent(r.Context(), claims.UserID, eventType, record); err != nil {
		log.Printf("WARN: failed to log %s event for %s: %v", eventType, record.ID, err)
	}

	if req.Public {
		entry, err := s.store.GetEntryByRecordID(r.Context(), record.ID)
		if err == nil && entry != nil {
			s.broadcastSquareEvent("entry_published", entry)
		}
	} else {
		s.broadcastSquareEvent("entry_unpublished", map[string]string{"record_id": record.ID})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

// @Summary      Download a record's media
// @Description  Streams the media payload of an upload-kind record. Owner only, or anyone while the record is public, no session required.
// @Tags         records
// @Produce      octet-stream
// @Param        recordId  path      string  true  "Record ID"
// @Success      200  {file}    binary
// @Failure      400  {string}  string "Not an upload"
// @Failure      404  {string}  string "Not Found"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /records/{recordId}/media [get]
func (s *Server) DownloadMediaHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	recordID := chi.URLParam(r, "recordId")

	record, err := s.store.GetRecordByID(r.Context(), recordID)
	if err != nil {
		http.Error(w, "Failed to retrieve record", http.StatusInternalServerError)
		return
	}
	isOwner := claims != nil && record != nil && record.OwnerID == claims.UserID
	if record == nil || (!isOwner && !record.IsPublic) {
		http.Error(w, "Record not found", http.StatusNotFound)
		return
	}
	if record.Kind != models.KindUpload || record.FileID == nil {
		http.Error(w, "This record has no media payload", http.StatusBadRequest)
		return
	}

	mediaStream, err := s.media.Get(*record.FileID)
	if err != nil {
		http.Error(w, "Media not found on storage", http.StatusInternalServerError)
		return
	}
	defer mediaStream.Close()

	w.Header().Set("Content-Disposition", "attachment; filename=\""+record.Title+"\"")
	if record.MimeType != nil && *record.MimeType != "" {
		w.Header().Set("Content-Type", *record.MimeType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if record.SizeBytes != nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", *record.SizeBytes))
	}

	io.Copy(w, mediaStream)
}
