package database

import (
	"context"
	"fmt"
	"time"

	"github.com/shopdesk/mailsync/pkg/models"
)

// CreateAttachment creates an attachment record pointing at stored bytes
func (db *DB) CreateAttachment(ctx context.Context, att *models.Attachment) error {
	query := `
		INSERT INTO attachments (message_id, filename, storage_url, content_type, size, is_inline, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		att.MessageID,
		att.Filename,
		att.StorageURL,
		att.ContentType,
		att.Size,
		att.IsInline,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	att.ID = id
	att.CreatedAt = now
	return nil
}

// ListAttachmentsByMessage returns all attachments of a message
func (db *DB) ListAttachmentsByMessage(ctx context.Context, messageID int64) ([]*models.Attachment, error) {
	var atts []*models.Attachment
	query := `SELECT * FROM attachments WHERE message_id = ? ORDER BY id ASC`
	if err := db.SelectContext(ctx, &atts, query, messageID); err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return atts, nil
}
