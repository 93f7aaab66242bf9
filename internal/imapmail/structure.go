package imapmail

import (
	"strings"

	"github.com/emersion/go-imap"

	"github.com/shopdesk/mailsync/internal/mailbox"
)

// rawFromMessage converts a fetched IMAP message into the provider-neutral
// RawMessage form
func rawFromMessage(msg *imap.Message) mailbox.RawMessage {
	raw := mailbox.RawMessage{
		SeqNum:    msg.SeqNum,
		UID:       msg.Uid,
		Structure: partFromBodyStructure(msg.BodyStructure),
	}

	if msg.Envelope != nil {
		raw.Envelope.Subject = msg.Envelope.Subject
		raw.Envelope.MessageID = normalizeMessageID(msg.Envelope.MessageId)
		raw.Envelope.InReplyTo = normalizeMessageID(msg.Envelope.InReplyTo)
		raw.Envelope.Date = msg.Envelope.Date
		if len(msg.Envelope.From) > 0 {
			raw.Envelope.From = mailbox.Address{
				Name:    msg.Envelope.From[0].PersonalName,
				Address: msg.Envelope.From[0].Address(),
			}
		}
		if len(msg.Envelope.To) > 0 {
			raw.Envelope.To = mailbox.Address{
				Name:    msg.Envelope.To[0].PersonalName,
				Address: msg.Envelope.To[0].Address(),
			}
		}
	}

	// The internal date is the server-side received timestamp and is more
	// trustworthy than the sender-controlled envelope date
	if !msg.InternalDate.IsZero() {
		raw.Envelope.Date = msg.InternalDate
	}

	for _, flag := range msg.Flags {
		if flag == imap.SeenFlag {
			raw.Envelope.Seen = true
			break
		}
	}

	return raw
}

// partFromBodyStructure maps the wire-level BODYSTRUCTURE tree onto the
// tagged Part form walked by the classifier
func partFromBodyStructure(bs *imap.BodyStructure) *mailbox.Part {
	if bs == nil {
		return nil
	}

	part := &mailbox.Part{
		Type:        bs.MIMEType,
		Subtype:     bs.MIMESubType,
		Encoding:    bs.Encoding,
		Disposition: bs.Disposition,
		Params:      bs.Params,
		DispParams:  bs.DispositionParams,
		Size:        bs.Size,
		ContentID:   normalizeMessageID(bs.Id),
	}

	for _, child := range bs.Parts {
		part.Children = append(part.Children, partFromBodyStructure(child))
	}

	return part
}

// normalizeMessageID strips the angle brackets servers wrap identifiers in
func normalizeMessageID(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, "<>")
	return strings.TrimSpace(value)
}
