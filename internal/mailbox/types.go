package mailbox

import (
	"fmt"
	"time"
)

// Address represents a mail address
type Address struct {
	Name    string
	Address string
}

// Envelope holds the protocol-level metadata of a message
type Envelope struct {
	Subject   string
	From      Address
	To        Address
	MessageID string // RFC Message-ID header, without angle brackets
	InReplyTo string
	Date      time.Time // Internal (server-side) received timestamp
	Seen      bool
}

// RawMessage is one message as yielded by a mailbox sync, before ingestion
type RawMessage struct {
	SeqNum    uint32 // Protocol sequence number, valid within the session
	UID       uint32 // Stable identifier for the session lifetime
	Envelope  Envelope
	Structure *Part  // Declared part tree, may be nil
	ThreadKey string // Server-provided conversation id; empty for IMAP
}

// AttachmentDescriptor is lightweight attachment metadata collected without
// touching message bytes. Safe to build for every message in a fetch batch.
type AttachmentDescriptor struct {
	MessageIndex int    // Index of the owning message within the batch
	UID          uint32
	SeqNum       uint32
	Path         []int // Part path within the tree, 1-based per level
	Filename     string
	ContentType  string
	Encoding     string // Declared transfer encoding of the part
	Size         uint32 // Declared size, may differ from actual
	Inline       bool
	ContentID    string
}

// DecodedBody is the reconstructed readable content of a message
type DecodedBody struct {
	Text        string
	IsHTML      bool
	Placeholder bool // True when no body part could be extracted
}

// PlaceholderBody synthesizes a visible body for messages whose text could
// not be retrieved, so they are still ingested rather than silently empty.
func PlaceholderBody(from, subject string) DecodedBody {
	return DecodedBody{
		Text:        fmt.Sprintf("(no readable content) From: %s Subject: %s", from, subject),
		Placeholder: true,
	}
}

// FetchedAttachment pairs a descriptor with its retrieved bytes. Data is nil
// when retrieval was skipped or failed.
type FetchedAttachment struct {
	AttachmentDescriptor
	Data []byte
}

// FetchedMessage is the full output of a sync for one message
type FetchedMessage struct {
	RawMessage
	Body        DecodedBody
	Attachments []FetchedAttachment
}
