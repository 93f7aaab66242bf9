package imapmail

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// conn is the slice of the IMAP client the session drives. Narrowed to an
// interface so tests can substitute a scripted connection and assert on
// lock/close discipline.
type conn interface {
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	List(ref, name string, ch chan *imap.MailboxInfo) error
	Logout() error
}

// dial connects to the IMAP server with TLS and authenticates
func dial(address, username, password string, timeout time.Duration) (conn, error) {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	dialer := &net.Dialer{Timeout: timeout}
	tlsConn, err := tls.DialWithDialer(dialer, "tcp", address, nil)
	if err != nil {
		return nil, err
	}

	imapClient, err := client.New(tlsConn)
	if err != nil {
		tlsConn.Close()
		return nil, err
	}

	if err := imapClient.Login(username, password); err != nil {
		imapClient.Logout()
		return nil, err
	}

	return imapClient, nil
}
