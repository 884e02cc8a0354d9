package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzhouyin/lifetrace/internal/database"
)

func (s *Server) broadcastSquareEvent(eventType string, payload interface{}) {
	if s.wsHub == nil {
		return
	}
	eventBytes, err := json.Marshal(map[string]interface{}{
		"event_type": eventType,
		"payload":    payload,
	})
	if err != nil {
		log.Printf("WARN: failed to marshal square event %s: %v", eventType, err)
		return
	}
	s.wsHub.BroadcastSquare(eventBytes)
}

// @Summary      Browse the square feed
// @Description  Returns one page of the public feed, newest first, merged across all record kinds. No authentication required.
// @Tags         square
// @Produce      json
// @Param        page       query     int  false  "Page number, 1-based"
// @Param        page_size  query     int  false  "Page size (default 20, max 100)"
// @Success      200  {array}   models.SquareEntry
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /square [get]
func (s *Server) GetSquareFeedHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)

	entries, err := s.store.ListSquareEntries(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, "Failed to load the square feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

type LikeResponse struct {
	EntryID   int64 `json:"entry_id" example:"42"`
	LikeCount int64 `json:"like_count" example:"7"`
}

// @Summary      Like a square entry
// @Description  Adds one like to a feed entry. Every call counts; a retried request is counted again.
// @Tags         square
// @Produce      json
// @Security     BearerAuth
// @Param        entryId  path      int  true  "Square entry ID"
// @Success      200  {object}  LikeResponse
// @Failure      400  {string}  string "Bad Request"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "Entry not found"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /square/{entryId}/like [post]
func (s *Server) LikeEntryHandler(w http.ResponseWriter, r *http.Request) {
	entryIDStr := chi.URLParam(r, "entryId")
	entryID, err := strconv.ParseInt(entryIDStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid entry ID", http.StatusBadRequest)
		return
	}

	likeCount, err := s.store.LikeEntry(r.Context(), entryID)
	if err != nil {
		if errors.Is(err, database.ErrEntryNotFound) {
			http.Error(w, "Entry not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to like entry", http.StatusInternalServerError)
		return
	}

	response := LikeResponse{EntryID: entryID, LikeCount: likeCount}
	s.broadcastSquareEvent("entry_liked", response)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
