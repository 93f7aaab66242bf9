package models

import "time"

// Message directions
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Message represents a persisted mail message within a thread
type Message struct {
	ID            int64     `db:"id"`
	ThreadID      int64     `db:"thread_id"`  // FK to Thread
	MessageID     string    `db:"message_id"` // RFC Message-ID header, unique
	Direction     string    `db:"direction"`  // "in" or "out"
	FromAddr      string    `db:"from_addr"`
	ToAddr        string    `db:"to_addr"`
	Subject       string    `db:"subject"`
	Body          string    `db:"body"`
	BodyIsHTML    bool      `db:"body_is_html"`
	IsPlaceholder bool      `db:"is_placeholder"` // No body part could be extracted
	IsRead        bool      `db:"is_read"`
	UID           uint32    `db:"uid"` // IMAP UID at ingestion time
	SentAt        time.Time `db:"sent_at"`
	CreatedAt     time.Time `db:"created_at"`
}
