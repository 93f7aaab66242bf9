package models

import (
	"database/sql"
	"time"
)

// Thread statuses
const (
	ThreadStatusOpen   = "open"
	ThreadStatusClosed = "closed"
)

// Thread represents a conversation grouping of messages
type Thread struct {
	ID             int64          `db:"id"`
	ConvKey        string         `db:"conv_key"` // Derived conversation key, unique
	Subject        string         `db:"subject"`
	Status         string         `db:"status"`          // "open" or "closed"
	HasUnread      bool           `db:"has_unread"`      // Any unread inbound message
	HasAttachments bool           `db:"has_attachments"` // Any message with attachments
	OrderID        sql.NullInt64  `db:"order_id"`        // Linked business order, if matched
	LastActivityAt time.Time      `db:"last_activity_at"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}
