package imapmail

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/emersion/go-imap"

	"github.com/shopdesk/mailsync/internal/mailbox"
)

// Config configuration for one mailbox session
type Config struct {
	Address  string // host:port
	Username string
	Password string
	Mailbox  string // defaults to INBOX

	DialTimeout        time.Duration
	SyncWindow         int           // How many trailing messages one sync covers
	AttachmentMaxBytes int64         // Per-item byte ceiling, larger items are skipped
	AttachmentTimeout  time.Duration // Per-item retrieval guard
	PaceEvery          int           // Pacing: sleep after this many retrievals
	PaceDelay          time.Duration
}

func (c *Config) applyDefaults() {
	if c.Mailbox == "" {
		c.Mailbox = "INBOX"
	}
	if c.SyncWindow <= 0 {
		c.SyncWindow = 50
	}
	if c.AttachmentMaxBytes <= 0 {
		c.AttachmentMaxBytes = 10 * 1024 * 1024
	}
	if c.AttachmentTimeout <= 0 {
		c.AttachmentTimeout = 30 * time.Second
	}
	if c.PaceEvery <= 0 {
		c.PaceEvery = 5
	}
	if c.PaceDelay <= 0 {
		c.PaceDelay = 200 * time.Millisecond
	}
}

// Session owns one live protocol connection and the exclusive mailbox lock
// for its lifetime. The underlying protocol is not safely reentrant within
// one connection, so every command runs under the session mutex and strictly
// sequentially; concurrent use of one session serializes, never interleaves.
type Session struct {
	cfg    Config
	conn   conn
	logger *slog.Logger

	mu     sync.Mutex
	mbox   *imap.MailboxStatus
	closed bool
}

// Open connects, authenticates and selects the mailbox, acquiring the
// exclusive lock. Failures here are fatal for the whole sync call.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Session, error) {
	cfg.applyDefaults()

	c, err := dial(cfg.Address, cfg.Username, cfg.Password, cfg.DialTimeout)
	if err != nil {
		return nil, &mailbox.ConnError{Op: "dial", Err: err}
	}

	s := &Session{
		cfg:    cfg,
		conn:   c,
		logger: logger.With("mailbox", cfg.Mailbox, "account", cfg.Username),
	}

	mbox, err := c.Select(cfg.Mailbox, false)
	if err != nil {
		c.Logout()
		return nil, &mailbox.ConnError{Op: "select", Err: err}
	}
	s.mbox = mbox

	return s, nil
}

// newSession wires a session over an existing connection. Used by tests.
func newSession(c conn, cfg Config, logger *slog.Logger) (*Session, error) {
	cfg.applyDefaults()
	s := &Session{cfg: cfg, conn: c, logger: logger}
	mbox, err := c.Select(cfg.Mailbox, false)
	if err != nil {
		c.Logout()
		return nil, &mailbox.ConnError{Op: "select", Err: err}
	}
	s.mbox = mbox
	return s, nil
}

// Close releases the mailbox lock and the connection. Idempotent; a session
// leaked across calls corrupts the next sync, so callers defer this on every
// path.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Logout()
}

// SyncRecent fetches the trailing window of messages with decoded bodies and
// retrieved attachments. The batched metadata fetch fully drains before any
// byte retrieval starts; issuing a second command while iterating the first
// deadlocks the session. Individual message and attachment failures are
// absorbed; the returned error covers only session-level breakage.
func (s *Session) SyncRecent(ctx context.Context, maxCount int) ([]mailbox.FetchedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, &mailbox.ProtocolError{Op: "sync", Err: errSessionClosed}
	}
	if maxCount <= 0 {
		maxCount = s.cfg.SyncWindow
	}

	total := s.mbox.Messages
	if total == 0 {
		return nil, nil
	}
	from := uint32(1)
	if total > uint32(maxCount) {
		from = total - uint32(maxCount) + 1
	}

	// Phase 1: one batched fetch for the whole range, drained to a closed
	// slice before anything else touches the connection
	batch, err := s.fetchRange(from, total, metadataItems())
	if err != nil {
		return nil, &mailbox.ProtocolError{Op: "batch fetch", Err: err}
	}

	msgs := make([]mailbox.FetchedMessage, 0, len(batch))
	var queue []mailbox.AttachmentDescriptor
	for _, m := range batch {
		raw := rawFromMessage(m)
		for _, d := range mailbox.CollectAttachments(raw.Structure) {
			d.MessageIndex = len(msgs)
			d.UID = raw.UID
			d.SeqNum = raw.SeqNum
			queue = append(queue, d)
		}
		msgs = append(msgs, mailbox.FetchedMessage{RawMessage: raw})
	}

	// Body pass: one single-part retrieval per message
	for i := range msgs {
		msgs[i].Body = s.reconstructBody(msgs[i].RawMessage)
	}

	// Phase 2: attachment bytes, sequentially over the drained queue
	s.retrieveQueue(ctx, msgs, queue)

	return msgs, nil
}

// FetchBody retrieves and decodes the readable body of one message by UID
func (s *Session) FetchBody(ctx context.Context, uid uint32) (mailbox.DecodedBody, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raws, err := s.uidFetchRange(uid, uid, metadataItems())
	if err != nil {
		return mailbox.DecodedBody{}, &mailbox.ProtocolError{Op: "uid fetch", Err: err}
	}
	if len(raws) == 0 {
		return mailbox.DecodedBody{}, &mailbox.ProtocolError{Op: "uid fetch", Err: fmt.Errorf("uid %d not found", uid)}
	}
	return s.reconstructBody(rawFromMessage(raws[0])), nil
}

// FetchAttachmentBytes retrieves one part's bytes by UID and part path,
// returning the resolved content type alongside
func (s *Session) FetchAttachmentBytes(ctx context.Context, uid uint32, path []int) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raws, err := s.uidFetchRange(uid, uid, metadataItems())
	if err != nil {
		return nil, "", &mailbox.ProtocolError{Op: "uid fetch", Err: err}
	}
	if len(raws) == 0 {
		return nil, "", &mailbox.ProtocolError{Op: "uid fetch", Err: fmt.Errorf("uid %d not found", uid)}
	}

	contentType := "application/octet-stream"
	encoding := ""
	if structure := partFromBodyStructure(raws[0].BodyStructure); structure != nil {
		if part := partAtPath(structure, path); part != nil {
			contentType = part.ResolveContentType()
			encoding = part.Encoding
		}
	}

	data, err := s.fetchPart(true, uid, path)
	if err != nil {
		return nil, "", &mailbox.ProtocolError{Op: "part fetch", Err: err}
	}
	return mailbox.DecodeBytes(data, encoding), contentType, nil
}

// LatestSequenceMarker returns the highest UID currently in the mailbox
func (s *Session) LatestSequenceMarker(ctx context.Context) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uids, err := s.conn.UidSearch(imap.NewSearchCriteria())
	if err != nil {
		return 0, &mailbox.ProtocolError{Op: "uid search", Err: err}
	}

	var highest uint32
	for _, uid := range uids {
		if uid > highest {
			highest = uid
		}
	}
	return highest, nil
}

// FetchByRange fetches metadata-only messages for an explicit sequence range
func (s *Session) FetchByRange(ctx context.Context, from, to uint32) ([]mailbox.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, err := s.fetchRange(from, to, metadataItems())
	if err != nil {
		return nil, &mailbox.ProtocolError{Op: "range fetch", Err: err}
	}

	raws := make([]mailbox.RawMessage, 0, len(batch))
	for _, m := range batch {
		raws = append(raws, rawFromMessage(m))
	}
	return raws, nil
}

// ListMailboxes returns the account's mailbox names
func (s *Session) ListMailboxes(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan *imap.MailboxInfo, 32)
	done := make(chan error, 1)
	go func() {
		done <- s.conn.List("", "*", ch)
	}()

	var names []string
	for info := range ch {
		names = append(names, info.Name)
	}
	if err := <-done; err != nil {
		return nil, &mailbox.ProtocolError{Op: "list", Err: err}
	}
	return names, nil
}

// reconstructBody picks the preferred text leaf, retrieves just that part
// and decodes it. Failures yield a placeholder so the message is still
// visibly ingested.
func (s *Session) reconstructBody(raw mailbox.RawMessage) mailbox.DecodedBody {
	part, path := mailbox.FindBodyPart(raw.Structure)
	if part == nil {
		return mailbox.PlaceholderBody(raw.Envelope.From.Address, raw.Envelope.Subject)
	}

	data, err := s.fetchPart(false, raw.SeqNum, path)
	if err != nil || len(data) == 0 {
		s.logger.Warn("body retrieval failed, using placeholder",
			"uid", raw.UID, "error", err)
		return mailbox.PlaceholderBody(raw.Envelope.From.Address, raw.Envelope.Subject)
	}

	return mailbox.DecodedBody{
		Text:   mailbox.Decode(data, part.Encoding),
		IsHTML: part.IsHTML(),
	}
}

// retrieveQueue runs phase 2: sequential byte retrieval for every collected
// descriptor, with a size ceiling, a per-item timeout guard and pacing. One
// failed item never aborts the rest of the queue.
func (s *Session) retrieveQueue(ctx context.Context, msgs []mailbox.FetchedMessage, queue []mailbox.AttachmentDescriptor) {
	retrieved := 0
	for _, d := range queue {
		att := mailbox.FetchedAttachment{AttachmentDescriptor: d}

		if int64(d.Size) > s.cfg.AttachmentMaxBytes {
			s.logger.Warn("skipping oversized attachment",
				"filename", d.Filename, "size", d.Size, "limit", s.cfg.AttachmentMaxBytes)
			msgs[d.MessageIndex].Attachments = append(msgs[d.MessageIndex].Attachments, att)
			continue
		}

		data, err := s.retrieveWithTimeout(ctx, d)
		if err != nil {
			s.logger.Warn("attachment retrieval failed",
				"filename", d.Filename, "uid", d.UID, "error", err)
		} else {
			att.Data = data
		}
		msgs[d.MessageIndex].Attachments = append(msgs[d.MessageIndex].Attachments, att)

		retrieved++
		if retrieved%s.cfg.PaceEvery == 0 {
			// Brief pause so the remote server is not overwhelmed
			time.Sleep(s.cfg.PaceDelay)
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// retrieveWithTimeout races one part retrieval against the per-item guard.
// A timed-out retrieval is abandoned, not a session failure; its result is
// discarded and the connection stays up.
func (s *Session) retrieveWithTimeout(ctx context.Context, d mailbox.AttachmentDescriptor) ([]byte, error) {
	type partResult struct {
		data []byte
		err  error
	}
	resCh := make(chan partResult, 1)

	go func() {
		// Sequence-number retrieval is cheaper within the session; fall
		// back to UID when it yields nothing
		data, err := s.fetchPart(false, d.SeqNum, d.Path)
		if err != nil || len(data) == 0 {
			data, err = s.fetchPart(true, d.UID, d.Path)
		}
		resCh <- partResult{data, err}
	}()

	timer := time.NewTimer(s.cfg.AttachmentTimeout)
	defer timer.Stop()

	select {
	case res := <-resCh:
		if res.err != nil {
			return nil, res.err
		}
		if len(res.data) == 0 {
			return nil, fmt.Errorf("no bytes for part %v", d.Path)
		}
		// The section literal is still transfer-encoded on the wire
		return mailbox.DecodeBytes(res.data, d.Encoding), nil
	case <-timer.C:
		return nil, fmt.Errorf("retrieval timed out after %s", s.cfg.AttachmentTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetchPart retrieves the bytes of one part, addressed by sequence number or
// UID. An empty path means a single-part message; its text section is
// fetched whole.
func (s *Session) fetchPart(useUID bool, id uint32, path []int) ([]byte, error) {
	section := &imap.BodySectionName{Peek: true}
	if len(path) > 0 {
		section.Path = path
	} else {
		section.Specifier = imap.TextSpecifier
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(id)
	items := []imap.FetchItem{section.FetchItem()}

	ch := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		if useUID {
			done <- s.conn.UidFetch(seqset, items, ch)
		} else {
			done <- s.conn.Fetch(seqset, items, ch)
		}
	}()

	var data []byte
	for msg := range ch {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		b, err := io.ReadAll(body)
		if err != nil {
			continue
		}
		data = b
	}
	if err := <-done; err != nil {
		return nil, err
	}
	return data, nil
}

// fetchRange issues one batched fetch and drains it completely, returning
// messages in ascending sequence order
func (s *Session) fetchRange(from, to uint32, items []imap.FetchItem) ([]*imap.Message, error) {
	seqset := new(imap.SeqSet)
	seqset.AddRange(from, to)
	return s.drainFetch(func(ch chan *imap.Message) error {
		return s.conn.Fetch(seqset, items, ch)
	})
}

func (s *Session) uidFetchRange(from, to uint32, items []imap.FetchItem) ([]*imap.Message, error) {
	seqset := new(imap.SeqSet)
	seqset.AddRange(from, to)
	return s.drainFetch(func(ch chan *imap.Message) error {
		return s.conn.UidFetch(seqset, items, ch)
	})
}

func (s *Session) drainFetch(fetch func(chan *imap.Message) error) ([]*imap.Message, error) {
	ch := make(chan *imap.Message, 64)
	done := make(chan error, 1)
	go func() {
		done <- fetch(ch)
	}()

	var batch []*imap.Message
	for msg := range ch {
		batch = append(batch, msg)
	}
	if err := <-done; err != nil {
		return nil, err
	}

	sort.Slice(batch, func(i, j int) bool { return batch[i].SeqNum < batch[j].SeqNum })
	return batch, nil
}

func metadataItems() []imap.FetchItem {
	return []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchInternalDate,
		imap.FetchUid,
		imap.FetchBodyStructure,
	}
}

// partAtPath walks the tree to the part addressed by a 1-based path
func partAtPath(root *mailbox.Part, path []int) *mailbox.Part {
	part := root
	for _, idx := range path {
		if part == nil || idx < 1 || idx > len(part.Children) {
			return nil
		}
		part = part.Children[idx-1]
	}
	return part
}

var errSessionClosed = fmt.Errorf("session closed")
