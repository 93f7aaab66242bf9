package mailbox

import (
	"context"
	"fmt"
)

// Provider abstracts a mailbox backend so the ingestion pipeline does not
// depend on the wire protocol. Implementations exist for native IMAP and can
// be added for vendor HTTP APIs without touching the pipeline.
type Provider interface {
	// ListMailboxes returns the names of the account's mailboxes.
	ListMailboxes(ctx context.Context) ([]string, error)

	// SyncEmails fetches the most recent messages of the given mailbox
	// (empty means INBOX) with decoded bodies and retrieved attachments.
	// Individual message or attachment failures are absorbed; an error is
	// returned only when the session itself could not be established or
	// broke mid-protocol.
	SyncEmails(ctx context.Context, mailboxName string) ([]FetchedMessage, error)

	// SendEmail sends an outbound message. A non-empty replyToMessageID
	// threads the reply under the original via reply/reference headers.
	SendEmail(ctx context.Context, to, subject, body, replyToMessageID string) error

	// FetchBody retrieves and decodes the readable body of one message.
	FetchBody(ctx context.Context, uid uint32) (DecodedBody, error)

	// FetchAttachment retrieves the bytes of one part, returning the
	// resolved content type alongside.
	FetchAttachment(ctx context.Context, uid uint32, path []int) ([]byte, string, error)

	// LatestMarker returns the highest known UID of the mailbox.
	LatestMarker(ctx context.Context) (uint32, error)

	// FetchByRange fetches message metadata for an explicit sequence range.
	FetchByRange(ctx context.Context, from, to uint32) ([]RawMessage, error)
}

// ConnError means the protocol session could not be established or
// authenticated. Fatal for the whole sync call, no partial results.
type ConnError struct {
	Op  string
	Err error
}

func (e *ConnError) Error() string { return fmt.Sprintf("mailbox connect (%s): %v", e.Op, e.Err) }
func (e *ConnError) Unwrap() error { return e.Err }

// ProtocolError means a malformed or failed exchange mid-fetch. Fatal for
// the current batch; the session still releases its lock cleanly.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("mailbox protocol (%s): %v", e.Op, e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

// SendError means one outbound send failed. Surfaced to the caller, retries
// are the caller's responsibility.
type SendError struct {
	To  string
	Err error
}

func (e *SendError) Error() string { return fmt.Sprintf("send to %s: %v", e.To, e.Err) }
func (e *SendError) Unwrap() error { return e.Err }
