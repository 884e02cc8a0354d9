package models

import "time"

// SquareEntry is the public-feed projection of a record. It exists exactly
// when the source record is public; like_count is read from the record so an
// unpublish/republish cycle never resets it.
type SquareEntry struct {
	ID          int64     `json:"id"`
	RecordID    string    `json:"record_id"`
	Kind        string    `json:"kind"`
	OwnerHandle string    `json:"owner_handle"`
	Preview     string    `json:"preview"`
	LikeCount   int64     `json:"like_count"`
	CreatedAt   time.Time `json:"created_at"`
}
