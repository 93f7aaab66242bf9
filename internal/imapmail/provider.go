package imapmail

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopdesk/mailsync/internal/mailbox"
)

// Provider is the native IMAP/SMTP implementation of mailbox.Provider. Each
// operation opens its own session and closes it before returning, so no lock
// outlives a call; concurrent calls are serialized.
type Provider struct {
	imapCfg  Config
	composer *Composer
	logger   *slog.Logger

	syncMu sync.Mutex
}

var _ mailbox.Provider = (*Provider)(nil)

// NewProvider creates a provider over native IMAP and SMTP
func NewProvider(imapCfg Config, smtpCfg SMTPConfig, logger *slog.Logger) *Provider {
	return &Provider{
		imapCfg:  imapCfg,
		composer: NewComposer(smtpCfg),
		logger:   logger,
	}
}

// ListMailboxes returns the names of the account's mailboxes
func (p *Provider) ListMailboxes(ctx context.Context) ([]string, error) {
	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	s, err := Open(ctx, p.imapCfg, p.logger)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return s.ListMailboxes(ctx)
}

// SyncEmails fetches the most recent window of the given mailbox with
// decoded bodies and retrieved attachments
func (p *Provider) SyncEmails(ctx context.Context, mailboxName string) ([]mailbox.FetchedMessage, error) {
	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	cfg := p.imapCfg
	if mailboxName != "" {
		cfg.Mailbox = mailboxName
	}

	s, err := Open(ctx, cfg, p.logger)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return s.SyncRecent(ctx, cfg.SyncWindow)
}

// SendEmail delivers an outbound message over SMTP
func (p *Provider) SendEmail(ctx context.Context, to, subject, body, replyToMessageID string) error {
	return p.composer.Send(ctx, to, subject, body, replyToMessageID)
}

// FetchBody retrieves and decodes the readable body of one message
func (p *Provider) FetchBody(ctx context.Context, uid uint32) (mailbox.DecodedBody, error) {
	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	s, err := Open(ctx, p.imapCfg, p.logger)
	if err != nil {
		return mailbox.DecodedBody{}, err
	}
	defer s.Close()

	return s.FetchBody(ctx, uid)
}

// FetchAttachment retrieves the bytes of one part by UID and part path
func (p *Provider) FetchAttachment(ctx context.Context, uid uint32, path []int) ([]byte, string, error) {
	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	s, err := Open(ctx, p.imapCfg, p.logger)
	if err != nil {
		return nil, "", err
	}
	defer s.Close()

	return s.FetchAttachmentBytes(ctx, uid, path)
}

// LatestMarker returns the highest known UID of the mailbox
func (p *Provider) LatestMarker(ctx context.Context) (uint32, error) {
	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	s, err := Open(ctx, p.imapCfg, p.logger)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	return s.LatestSequenceMarker(ctx)
}

// FetchByRange fetches message metadata for an explicit sequence range
func (p *Provider) FetchByRange(ctx context.Context, from, to uint32) ([]mailbox.RawMessage, error) {
	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	s, err := Open(ctx, p.imapCfg, p.logger)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return s.FetchByRange(ctx, from, to)
}
