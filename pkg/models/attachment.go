package models

import "time"

// Attachment represents a stored file belonging to a message
type Attachment struct {
	ID          int64     `db:"id"`
	MessageID   int64     `db:"message_id"` // FK to Message
	Filename    string    `db:"filename"`
	StorageURL  string    `db:"storage_url"` // Durable object storage location
	ContentType string    `db:"content_type"`
	Size        int64     `db:"size"`
	IsInline    bool      `db:"is_inline"` // Referenced from the body via content-id
	CreatedAt   time.Time `db:"created_at"`
}
