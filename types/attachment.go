package types

import "time"

// Attachment is a file uploaded onto a post. The bytes live in object
// storage under ObjectKey; this row only carries the metadata.
type Attachment struct {
	ID          int       `json:"id" db:"id"`
	PostID      int       `json:"post_id" db:"post_id"`
	ObjectKey   string    `json:"-" db:"object_key"`
	Filename    string    `json:"filename" db:"filename"`
	ContentType string    `json:"content_type" db:"content_type"`
	Size        int64     `json:"size" db:"size"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
