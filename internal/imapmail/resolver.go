package imapmail

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Common IMAP servers for popular email providers
var knownIMAPServers = map[string]string{
	"gmail.com":      "imap.gmail.com:993",
	"googlemail.com": "imap.gmail.com:993",
	"outlook.com":    "outlook.office365.com:993",
	"hotmail.com":    "outlook.office365.com:993",
	"live.com":       "outlook.office365.com:993",
	"yahoo.com":      "imap.mail.yahoo.com:993",
	"yandex.ru":      "imap.yandex.ru:993",
	"yandex.com":     "imap.yandex.com:993",
	"mail.ru":        "imap.mail.ru:993",
	"icloud.com":     "imap.mail.me.com:993",
	"me.com":         "imap.mail.me.com:993",
	"aol.com":        "imap.aol.com:993",
	"zoho.com":       "imap.zoho.com:993",
	"fastmail.com":   "imap.fastmail.com:993",
	"gmx.com":        "imap.gmx.com:993",
	"gmx.de":         "imap.gmx.net:993",
	"web.de":         "imap.web.de:993",
}

// Common submission servers for the same providers
var knownSMTPServers = map[string]string{
	"gmail.com":      "smtp.gmail.com:465",
	"googlemail.com": "smtp.gmail.com:465",
	"outlook.com":    "smtp.office365.com:587",
	"hotmail.com":    "smtp.office365.com:587",
	"live.com":       "smtp.office365.com:587",
	"yahoo.com":      "smtp.mail.yahoo.com:465",
	"yandex.ru":      "smtp.yandex.ru:465",
	"yandex.com":     "smtp.yandex.com:465",
	"mail.ru":        "smtp.mail.ru:465",
	"icloud.com":     "smtp.mail.me.com:587",
	"me.com":         "smtp.mail.me.com:587",
	"aol.com":        "smtp.aol.com:465",
	"zoho.com":       "smtp.zoho.com:465",
	"fastmail.com":   "smtp.fastmail.com:465",
	"gmx.com":        "mail.gmx.com:465",
	"gmx.de":         "mail.gmx.net:465",
	"web.de":         "smtp.web.de:587",
}

// ResolveIMAPServer determines the IMAP server for an email address when the
// configuration does not name one explicitly
func ResolveIMAPServer(email string) (string, error) {
	domain, err := domainOf(email)
	if err != nil {
		return "", err
	}

	if server, ok := knownIMAPServers[domain]; ok {
		return server, nil
	}

	// Probe common host patterns before falling back
	for _, host := range []string{"imap." + domain, "mail." + domain} {
		if reachable(host + ":993") {
			return host + ":993", nil
		}
	}

	return "imap." + domain + ":993", nil
}

// ResolveSMTPServer determines the submission server for an email address
func ResolveSMTPServer(email string) (string, error) {
	domain, err := domainOf(email)
	if err != nil {
		return "", err
	}

	if server, ok := knownSMTPServers[domain]; ok {
		return server, nil
	}

	for _, host := range []string{"smtp." + domain, "mail." + domain} {
		if reachable(host + ":465") {
			return host + ":465", nil
		}
	}

	return "smtp." + domain + ":465", nil
}

func domainOf(email string) (string, error) {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[1] == "" {
		return "", fmt.Errorf("invalid email address %q", email)
	}
	return strings.ToLower(parts[1]), nil
}

func reachable(address string) bool {
	conn, err := net.DialTimeout("tcp", address, 3*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
