package imapmail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"golang.org/x/net/html/charset"

	"github.com/shopdesk/mailsync/internal/htmltext"
	"github.com/shopdesk/mailsync/internal/mailbox"
)

func init() {
	// Decode non-UTF-8 charset labels in message headers
	message.CharsetReader = charset.NewReaderLabel
}

// SMTPConfig configuration for outbound delivery
type SMTPConfig struct {
	Address  string // host:port
	Username string
	Password string
	From     string
	StartTLS bool // true for STARTTLS on a plaintext port, false for implicit TLS
}

// Composer builds and delivers outbound replies
type Composer struct {
	cfg       SMTPConfig
	converter *htmltext.Converter
}

// NewComposer creates an outbound composer
func NewComposer(cfg SMTPConfig) *Composer {
	return &Composer{cfg: cfg, converter: htmltext.NewConverter()}
}

// Send composes a reply and delivers it. When replyToMessageID is set the
// outbound message carries In-Reply-To and References headers so receiving
// clients file it into the existing conversation.
func (c *Composer) Send(ctx context.Context, to, subject, htmlBody, replyToMessageID string) error {
	msg, err := c.buildMessage(to, subject, htmlBody, replyToMessageID)
	if err != nil {
		return &mailbox.SendError{To: to, Err: err}
	}
	if err := c.deliver(ctx, to, msg); err != nil {
		return &mailbox.SendError{To: to, Err: err}
	}
	return nil
}

// buildMessage renders a multipart/alternative message with a plain-text
// rendering alongside the HTML body
func (c *Composer) buildMessage(to, subject, htmlBody, replyToMessageID string) ([]byte, error) {
	var from mail.Address
	from.Address = c.cfg.From

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{&from})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}
	if replyToMessageID != "" {
		id := strings.Trim(replyToMessageID, "<>")
		h.SetMsgIDList("In-Reply-To", []string{id})
		h.SetMsgIDList("References", []string{id})
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create body writer: %w", err)
	}

	plain := c.converter.Text(htmlBody)
	if strings.TrimSpace(plain) == "" {
		plain = htmlBody
	}

	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	pw, err := iw.CreatePart(th)
	if err != nil {
		return nil, fmt.Errorf("failed to create text part: %w", err)
	}
	if _, err := io.WriteString(pw, plain); err != nil {
		return nil, fmt.Errorf("failed to write text part: %w", err)
	}
	pw.Close()

	var hh mail.InlineHeader
	hh.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	hw, err := iw.CreatePart(hh)
	if err != nil {
		return nil, fmt.Errorf("failed to create html part: %w", err)
	}
	if _, err := io.WriteString(hw, htmlBody); err != nil {
		return nil, fmt.Errorf("failed to write html part: %w", err)
	}
	hw.Close()

	iw.Close()
	mw.Close()

	return buf.Bytes(), nil
}

// deliver pushes the rendered message over SMTP, either through implicit
// TLS or a plaintext dial upgraded with STARTTLS. The context bounds the
// dial; the SMTP exchange itself has no context support in net/smtp.
func (c *Composer) deliver(ctx context.Context, to string, msg []byte) error {
	host, _, err := net.SplitHostPort(c.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to parse smtp address: %w", err)
	}
	auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, host)

	if c.cfg.StartTLS {
		return c.deliverStartTLS(ctx, host, auth, to, msg)
	}
	return c.deliverImplicitTLS(ctx, host, auth, to, msg)
}

func (c *Composer) deliverImplicitTLS(ctx context.Context, host string, auth smtp.Auth, to string, msg []byte) error {
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: host}}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to dial smtp server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	defer client.Close()

	return c.transact(client, auth, to, msg)
}

func (c *Composer) deliverStartTLS(ctx context.Context, host string, auth smtp.Auth, to string, msg []byte) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to dial smtp server: %w", err)
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return fmt.Errorf("failed to start tls: %w", err)
		}
	}

	return c.transact(client, auth, to, msg)
}

func (c *Composer) transact(client *smtp.Client, auth smtp.Auth, to string, msg []byte) error {
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	if err := client.Mail(c.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data stream: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish data stream: %w", err)
	}
	return client.Quit()
}
