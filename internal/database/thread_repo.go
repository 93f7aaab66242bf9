package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopdesk/mailsync/pkg/models"
)

// CreateThread creates a new thread (ignores if the conversation key already exists)
func (db *DB) CreateThread(ctx context.Context, thread *models.Thread) error {
	query := `
		INSERT OR IGNORE INTO threads (conv_key, subject, status, has_unread, has_attachments, order_id, last_activity_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		thread.ConvKey,
		thread.Subject,
		thread.Status,
		thread.HasUnread,
		thread.HasAttachments,
		thread.OrderID,
		thread.LastActivityAt,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
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

	thread.ID = id
	thread.CreatedAt = now
	thread.UpdatedAt = now
	return nil
}

// GetThreadByConvKey returns a thread by conversation key
func (db *DB) GetThreadByConvKey(ctx context.Context, convKey string) (*models.Thread, error) {
	var thread models.Thread
	query := `SELECT * FROM threads WHERE conv_key = ?`
	err := db.GetContext(ctx, &thread, query, convKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	return &thread, nil
}

// GetThreadByID returns a thread by ID
func (db *DB) GetThreadByID(ctx context.Context, id int64) (*models.Thread, error) {
	var thread models.Thread
	query := `SELECT * FROM threads WHERE id = ?`
	err := db.GetContext(ctx, &thread, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	return &thread, nil
}

// TouchThread updates a thread's activity timestamp and aggregates unread
// and attachment flags from a new message
func (db *DB) TouchThread(ctx context.Context, id int64, activityAt time.Time, unread, hasAttachments bool) error {
	query := `
		UPDATE threads
		SET last_activity_at = MAX(COALESCE(last_activity_at, 0), ?),
		    has_unread = has_unread OR ?,
		    has_attachments = has_attachments OR ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	_, err := db.ExecContext(ctx, query, activityAt, unread, hasAttachments, id)
	if err != nil {
		return fmt.Errorf("failed to touch thread: %w", err)
	}
	return nil
}

// LinkThreadOrder links a thread to an order if it does not already have one
func (db *DB) LinkThreadOrder(ctx context.Context, threadID, orderID int64) error {
	query := `UPDATE threads SET order_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND order_id IS NULL`
	_, err := db.ExecContext(ctx, query, orderID, threadID)
	if err != nil {
		return fmt.Errorf("failed to link thread order: %w", err)
	}
	return nil
}

// MarkThreadRead clears the unread aggregate on a thread
func (db *DB) MarkThreadRead(ctx context.Context, id int64) error {
	query := `UPDATE threads SET has_unread = false, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark thread read: %w", err)
	}
	return nil
}

// ListThreads returns threads ordered by most recent activity
func (db *DB) ListThreads(ctx context.Context, limit int) ([]*models.Thread, error) {
	var threads []*models.Thread
	query := `SELECT * FROM threads ORDER BY last_activity_at DESC LIMIT ?`
	if err := db.SelectContext(ctx, &threads, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	return threads, nil
}
