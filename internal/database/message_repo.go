package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopdesk/mailsync/pkg/models"
)

// CreateMessage creates a new message (ignores if the message identifier already exists)
func (db *DB) CreateMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT OR IGNORE INTO messages (thread_id, message_id, direction, from_addr, to_addr, subject, body, body_is_html, is_placeholder, is_read, uid, sent_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		msg.ThreadID,
		msg.MessageID,
		msg.Direction,
		msg.FromAddr,
		msg.ToAddr,
		msg.Subject,
		msg.Body,
		msg.BodyIsHTML,
		msg.IsPlaceholder,
		msg.IsRead,
		msg.UID,
		msg.SentAt,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	// Check if row was actually inserted (not ignored due to duplicate)
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlreadyExists
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = now
	return nil
}

// GetMessageByMessageID returns a message by its mail message identifier
func (db *DB) GetMessageByMessageID(ctx context.Context, messageID string) (*models.Message, error) {
	var msg models.Message
	query := `SELECT * FROM messages WHERE message_id = ?`
	err := db.GetContext(ctx, &msg, query, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

// GetMessageByID returns a message by ID
func (db *DB) GetMessageByID(ctx context.Context, id int64) (*models.Message, error) {
	var msg models.Message
	query := `SELECT * FROM messages WHERE id = ?`
	err := db.GetContext(ctx, &msg, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

// ListMessagesByThread returns all messages of a thread in sent order
func (db *DB) ListMessagesByThread(ctx context.Context, threadID int64) ([]*models.Message, error) {
	var msgs []*models.Message
	query := `SELECT * FROM messages WHERE thread_id = ? ORDER BY sent_at ASC`
	if err := db.SelectContext(ctx, &msgs, query, threadID); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// MarkMessageAsRead marks a message as read
func (db *DB) MarkMessageAsRead(ctx context.Context, id int64) error {
	query := `UPDATE messages SET is_read = true WHERE id = ?`
	_, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark message as read: %w", err)
	}
	return nil
}
