package models

import "time"

// Record kinds. A biography is authored through guided questions but is
// stored exactly like a free-form note; the kind is a display tag.
const (
	KindNote      = "note"
	KindBiography = "biography"
	KindUpload    = "upload"
)

// Cloud archival states for a record.
const (
	CloudNotUploaded = "not_uploaded"
	CloudUploading   = "uploading"
	CloudUploaded    = "uploaded"
)

type Record struct {
	ID          string     `json:"id"`
	OwnerID     int64      `json:"owner_id"`
	Kind        string     `json:"kind"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	FileID      *string    `json:"file_id,omitempty"`
	MimeType    *string    `json:"mime_type,omitempty"`
	SizeBytes   *int64     `json:"size_bytes,omitempty"`
	IsPublic    bool       `json:"is_public"`
	CloudStatus string     `json:"cloud_status"`
	ArchiveKey  *string    `json:"-"`
	LikeCount   int64      `json:"like_count"`
	CreatedAt   time.Time  `json:"created_at"`
	ModifiedAt  time.Time  `json:"modified_at"`
}
