package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopdesk/mailsync/internal/database"
	"github.com/shopdesk/mailsync/internal/mailbox"
	"github.com/shopdesk/mailsync/pkg/models"
)

type fakeStore struct {
	saved  map[string][]byte
	failOn string
}

func (f *fakeStore) Save(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	if filename == f.failOn {
		return "", fmt.Errorf("storage unavailable")
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[filename] = data
	return "fake://bucket/" + filename, nil
}

type fakeMatcher struct {
	order *models.Order
}

func (f *fakeMatcher) MatchOrder(ctx context.Context, bodyText, fromAddr, subject string) (*models.Order, error) {
	return f.order, nil
}

func testDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func inboundMessage(messageID, subject, from string) mailbox.FetchedMessage {
	return mailbox.FetchedMessage{
		RawMessage: mailbox.RawMessage{
			UID: 100,
			Envelope: mailbox.Envelope{
				Subject:   subject,
				From:      mailbox.Address{Address: from},
				To:        mailbox.Address{Address: "shop@example.com"},
				MessageID: messageID,
				Date:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
			},
		},
		Body: mailbox.DecodedBody{Text: "Hello, where is my package?"},
	}
}

func TestIngestPersistsMessageAndThread(t *testing.T) {
	db := testDB(t)
	p := NewPipeline(db, &fakeStore{}, nil, slog.Default())
	ctx := context.Background()

	res, err := p.Ingest(ctx, inboundMessage("m1@example.com", "Order question", "customer@example.com"))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if res.Skipped {
		t.Fatal("first ingest reported skipped")
	}
	if res.ThreadID == 0 || res.PersistedMessageID == 0 {
		t.Fatalf("missing ids in result: %+v", res)
	}

	thread, err := db.GetThreadByID(ctx, res.ThreadID)
	if err != nil {
		t.Fatalf("thread not persisted: %v", err)
	}
	if thread.Subject != "order question" {
		t.Errorf("thread subject = %q, want normalized subject", thread.Subject)
	}
	if !thread.HasUnread {
		t.Error("unseen message should mark thread unread")
	}

	msg, err := db.GetMessageByMessageID(ctx, "m1@example.com")
	if err != nil {
		t.Fatalf("message not persisted: %v", err)
	}
	if msg.Direction != models.DirectionIn {
		t.Errorf("direction = %q, want %q", msg.Direction, models.DirectionIn)
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	db := testDB(t)
	p := NewPipeline(db, &fakeStore{}, nil, slog.Default())
	ctx := context.Background()

	msg := inboundMessage("dup@example.com", "Order question", "customer@example.com")
	if _, err := p.Ingest(ctx, msg); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}

	res, err := p.Ingest(ctx, msg)
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if !res.Skipped {
		t.Error("second ingest with same message id should be skipped")
	}

	msgs, err := db.ListMessagesByThread(ctx, 1)
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("got %d messages, want 1", len(msgs))
	}
}

func TestIngestRepliesJoinSameThread(t *testing.T) {
	db := testDB(t)
	p := NewPipeline(db, &fakeStore{}, nil, slog.Default())
	ctx := context.Background()

	first, err := p.Ingest(ctx, inboundMessage("a@example.com", "Order question", "customer@example.com"))
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}

	reply := inboundMessage("b@example.com", "Re: Order question", "customer@example.com")
	reply.Envelope.Date = reply.Envelope.Date.Add(time.Hour)
	second, err := p.Ingest(ctx, reply)
	if err != nil {
		t.Fatalf("reply ingest failed: %v", err)
	}

	if first.ThreadID != second.ThreadID {
		t.Errorf("reply created new thread %d, want %d", second.ThreadID, first.ThreadID)
	}

	thread, err := db.GetThreadByID(ctx, first.ThreadID)
	if err != nil {
		t.Fatalf("failed to load thread: %v", err)
	}
	if !thread.LastActivityAt.After(time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)) {
		t.Errorf("thread activity not advanced: %v", thread.LastActivityAt)
	}
}

func TestIngestMissingMessageIDFallsBackToUID(t *testing.T) {
	db := testDB(t)
	p := NewPipeline(db, &fakeStore{}, nil, slog.Default())
	ctx := context.Background()

	msg := inboundMessage("", "No id", "customer@example.com")
	res, err := p.Ingest(ctx, msg)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if res.MessageID != "uid-100@mailsync.local" {
		t.Errorf("fallback message id = %q", res.MessageID)
	}

	// Same UID again must dedup
	res2, err := p.Ingest(ctx, msg)
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if !res2.Skipped {
		t.Error("second ingest of same uid should be skipped")
	}
}

func TestIngestStoresAttachments(t *testing.T) {
	db := testDB(t)
	store := &fakeStore{}
	p := NewPipeline(db, store, nil, slog.Default())
	ctx := context.Background()

	msg := inboundMessage("att@example.com", "With files", "customer@example.com")
	msg.Attachments = []mailbox.FetchedAttachment{
		{
			AttachmentDescriptor: mailbox.AttachmentDescriptor{
				Filename: "cat.png", ContentType: "image/png",
			},
			Data: []byte("png bytes"),
		},
		{
			// Retrieval skipped or failed upstream: no bytes, no row
			AttachmentDescriptor: mailbox.AttachmentDescriptor{
				Filename: "dog.png", ContentType: "image/png", Size: 12 * 1024 * 1024,
			},
		},
	}

	res, err := p.Ingest(ctx, msg)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if res.AttachmentsStored != 1 || res.AttachmentsDropped != 1 {
		t.Errorf("stored=%d dropped=%d, want 1/1", res.AttachmentsStored, res.AttachmentsDropped)
	}

	atts, err := db.ListAttachmentsByMessage(ctx, res.PersistedMessageID)
	if err != nil {
		t.Fatalf("failed to list attachments: %v", err)
	}
	if len(atts) != 1 || atts[0].Filename != "cat.png" {
		t.Fatalf("attachment rows = %+v, want only cat.png", atts)
	}
	if atts[0].StorageURL == "" {
		t.Error("attachment row missing storage url")
	}

	thread, err := db.GetThreadByID(ctx, res.ThreadID)
	if err != nil {
		t.Fatalf("failed to load thread: %v", err)
	}
	if !thread.HasAttachments {
		t.Error("thread should be flagged as having attachments")
	}
}

func TestIngestFailedStorageLeavesNoOrphanRow(t *testing.T) {
	db := testDB(t)
	store := &fakeStore{failOn: "broken.pdf"}
	p := NewPipeline(db, store, nil, slog.Default())
	ctx := context.Background()

	msg := inboundMessage("fail@example.com", "Broken file", "customer@example.com")
	msg.Attachments = []mailbox.FetchedAttachment{
		{
			AttachmentDescriptor: mailbox.AttachmentDescriptor{
				Filename: "broken.pdf", ContentType: "application/pdf",
			},
			Data: []byte("pdf bytes"),
		},
	}

	res, err := p.Ingest(ctx, msg)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if res.AttachmentsStored != 0 || res.AttachmentsDropped != 1 {
		t.Errorf("stored=%d dropped=%d, want 0/1", res.AttachmentsStored, res.AttachmentsDropped)
	}

	atts, err := db.ListAttachmentsByMessage(ctx, res.PersistedMessageID)
	if err != nil {
		t.Fatalf("failed to list attachments: %v", err)
	}
	if len(atts) != 0 {
		t.Errorf("orphan attachment rows: %+v", atts)
	}
}

func TestIngestLinksOrder(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	order := &models.Order{Number: "SD-104233", CustomerEmail: "customer@example.com", Status: "paid"}
	if err := db.CreateOrder(ctx, order); err != nil {
		t.Fatalf("failed to seed order: %v", err)
	}

	p := NewPipeline(db, &fakeStore{}, &fakeMatcher{order: order}, slog.Default())

	res, err := p.Ingest(ctx, inboundMessage("ord@example.com", "About order SD-104233", "customer@example.com"))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	thread, err := db.GetThreadByID(ctx, res.ThreadID)
	if err != nil {
		t.Fatalf("failed to load thread: %v", err)
	}
	if !thread.OrderID.Valid || thread.OrderID.Int64 != order.ID {
		t.Errorf("thread order link = %+v, want order %d", thread.OrderID, order.ID)
	}
}

func TestIngestSanitizesHTMLBody(t *testing.T) {
	db := testDB(t)
	p := NewPipeline(db, &fakeStore{}, nil, slog.Default())
	ctx := context.Background()

	msg := inboundMessage("html@example.com", "Hi", "customer@example.com")
	msg.Body = mailbox.DecodedBody{
		Text:   `<p>hello</p><script>alert("x")</script>`,
		IsHTML: true,
	}

	res, err := p.Ingest(ctx, msg)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	stored, err := db.GetMessageByID(ctx, res.PersistedMessageID)
	if err != nil {
		t.Fatalf("failed to load message: %v", err)
	}
	if stored.Body == msg.Body.Text {
		t.Error("html body stored unsanitized")
	}
	if want := "<p>hello</p>"; stored.Body != want {
		t.Errorf("sanitized body = %q, want %q", stored.Body, want)
	}
}
