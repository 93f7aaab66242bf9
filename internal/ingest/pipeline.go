package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/shopdesk/mailsync/internal/database"
	"github.com/shopdesk/mailsync/internal/htmltext"
	"github.com/shopdesk/mailsync/internal/mailbox"
	"github.com/shopdesk/mailsync/internal/orders"
	"github.com/shopdesk/mailsync/internal/storage"
	"github.com/shopdesk/mailsync/pkg/models"
)

// Result describes what one ingestion attempt did
type Result struct {
	MessageID          string
	ThreadID           int64
	PersistedMessageID int64
	Skipped            bool // Message identifier already ingested
	AttachmentsStored  int
	AttachmentsDropped int
}

// Pipeline persists synced messages: dedup by message identifier, thread
// upsert, order auto-link, message and attachment rows. The pipeline owns
// all write access to persisted records.
type Pipeline struct {
	db        *database.DB
	store     storage.ObjectStore
	matcher   orders.Matcher
	converter *htmltext.Converter
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

// NewPipeline creates an ingestion pipeline
func NewPipeline(db *database.DB, store storage.ObjectStore, matcher orders.Matcher, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		db:        db,
		store:     store,
		matcher:   matcher,
		converter: htmltext.NewConverter(),
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger.With("component", "ingest"),
	}
}

// IngestBatch runs Ingest for every message in order. Per-message failures
// are logged and skipped; the returned results cover the messages that were
// processed (including dedup skips).
func (p *Pipeline) IngestBatch(ctx context.Context, msgs []mailbox.FetchedMessage) []Result {
	results := make([]Result, 0, len(msgs))
	for _, msg := range msgs {
		res, err := p.Ingest(ctx, msg)
		if err != nil {
			p.logger.Error("failed to ingest message",
				"message_id", msg.Envelope.MessageID, "uid", msg.UID, "error", err)
			continue
		}
		results = append(results, res)
	}
	return results
}

// Ingest persists one synced message. Idempotent: a second call with the
// same message identifier is a no-op.
func (p *Pipeline) Ingest(ctx context.Context, msg mailbox.FetchedMessage) (Result, error) {
	messageID := msg.Envelope.MessageID
	if messageID == "" {
		// Servers occasionally omit the header; fall back to a stable key
		messageID = fmt.Sprintf("uid-%d@mailsync.local", msg.UID)
	}
	res := Result{MessageID: messageID}

	// Dedup first: no thread update, no attachment writes for duplicates
	if _, err := p.db.GetMessageByMessageID(ctx, messageID); err == nil {
		res.Skipped = true
		return res, nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return res, fmt.Errorf("failed to check for duplicate: %w", err)
	}

	hasAttachmentData := false
	for _, att := range msg.Attachments {
		if att.Data != nil {
			hasAttachmentData = true
			break
		}
	}

	thread, err := p.upsertThread(ctx, msg, hasAttachmentData)
	if err != nil {
		return res, err
	}
	res.ThreadID = thread.ID

	p.linkOrder(ctx, thread, msg)

	body := msg.Body.Text
	if msg.Body.IsHTML {
		body = p.sanitizer.Sanitize(body)
	}

	sentAt := msg.Envelope.Date
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	record := &models.Message{
		ThreadID:      thread.ID,
		MessageID:     messageID,
		Direction:     models.DirectionIn,
		FromAddr:      msg.Envelope.From.Address,
		ToAddr:        msg.Envelope.To.Address,
		Subject:       msg.Envelope.Subject,
		Body:          body,
		BodyIsHTML:    msg.Body.IsHTML,
		IsPlaceholder: msg.Body.Placeholder,
		IsRead:        msg.Envelope.Seen,
		UID:           msg.UID,
		SentAt:        sentAt,
	}
	if err := p.db.CreateMessage(ctx, record); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			// Raced with a concurrent sync
			res.Skipped = true
			return res, nil
		}
		return res, fmt.Errorf("failed to persist message: %w", err)
	}
	res.PersistedMessageID = record.ID

	p.storeAttachments(ctx, record.ID, msg.Attachments, &res)

	return res, nil
}

// upsertThread creates the thread on the first message of a conversation and
// updates activity and aggregate flags on every subsequent one. A duplicate
// key from a concurrent sync is treated as "already exists".
func (p *Pipeline) upsertThread(ctx context.Context, msg mailbox.FetchedMessage, hasAttachments bool) (*models.Thread, error) {
	convKey := msg.ThreadKey
	if convKey == "" {
		convKey = ConversationKey(msg.Envelope.Subject, msg.Envelope.From.Address, msg.Envelope.To.Address)
	}

	activityAt := msg.Envelope.Date
	if activityAt.IsZero() {
		activityAt = time.Now()
	}

	thread, err := p.db.GetThreadByConvKey(ctx, convKey)
	if errors.Is(err, database.ErrNotFound) {
		thread = &models.Thread{
			ConvKey:        convKey,
			Subject:        NormalizeSubject(msg.Envelope.Subject),
			Status:         models.ThreadStatusOpen,
			HasUnread:      !msg.Envelope.Seen,
			HasAttachments: hasAttachments,
			LastActivityAt: activityAt,
		}
		createErr := p.db.CreateThread(ctx, thread)
		if errors.Is(createErr, database.ErrAlreadyExists) {
			return p.db.GetThreadByConvKey(ctx, convKey)
		}
		if createErr != nil {
			return nil, fmt.Errorf("failed to create thread: %w", createErr)
		}
		return thread, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up thread: %w", err)
	}

	if err := p.db.TouchThread(ctx, thread.ID, activityAt, !msg.Envelope.Seen, hasAttachments); err != nil {
		return nil, err
	}
	return thread, nil
}

// linkOrder scans the message for order-identifying tokens and links the
// thread to the matched order. Only threads without a link are considered;
// match failures are logged, never propagated.
func (p *Pipeline) linkOrder(ctx context.Context, thread *models.Thread, msg mailbox.FetchedMessage) {
	if p.matcher == nil || thread.OrderID.Valid {
		return
	}

	scanText := msg.Body.Text
	if msg.Body.IsHTML {
		scanText = p.converter.Text(scanText)
	}

	order, err := p.matcher.MatchOrder(ctx, scanText, msg.Envelope.From.Address, msg.Envelope.Subject)
	if err != nil {
		p.logger.Warn("order matching failed", "thread_id", thread.ID, "error", err)
		return
	}
	if order == nil {
		return
	}

	if err := p.db.LinkThreadOrder(ctx, thread.ID, order.ID); err != nil {
		p.logger.Warn("failed to link thread to order",
			"thread_id", thread.ID, "order_id", order.ID, "error", err)
		return
	}
	thread.OrderID.Valid = true
	thread.OrderID.Int64 = order.ID
	p.logger.Info("linked thread to order", "thread_id", thread.ID, "order", order.Number)
}

// storeAttachments writes the retrieved attachment bytes to durable storage
// and records a row per successful write. A descriptor whose retrieval or
// storage failed produces no row.
func (p *Pipeline) storeAttachments(ctx context.Context, messageID int64, atts []mailbox.FetchedAttachment, res *Result) {
	for _, att := range atts {
		if att.Data == nil {
			p.logger.Warn("dropping attachment without bytes",
				"filename", att.Filename, "uid", att.UID)
			res.AttachmentsDropped++
			continue
		}

		url, err := p.store.Save(ctx, att.Filename, att.Data, att.ContentType)
		if err != nil {
			p.logger.Warn("failed to store attachment",
				"filename", att.Filename, "uid", att.UID, "error", err)
			res.AttachmentsDropped++
			continue
		}

		record := &models.Attachment{
			MessageID:   messageID,
			Filename:    att.Filename,
			StorageURL:  url,
			ContentType: att.ContentType,
			Size:        int64(len(att.Data)),
			IsInline:    att.Inline,
		}
		if err := p.db.CreateAttachment(ctx, record); err != nil {
			p.logger.Warn("failed to persist attachment record",
				"filename", att.Filename, "error", err)
			res.AttachmentsDropped++
			continue
		}
		res.AttachmentsStored++
	}
}
