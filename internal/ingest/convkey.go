package ingest

import (
	"regexp"
	"strings"
)

// replyPrefixRegex matches the common reply/forward subject prefixes that
// mail clients stack up over a long exchange.
var replyPrefixRegex = regexp.MustCompile(`(?i)^(re|fwd?|aw|wg|sv|vs)\s*(\[\d+\])?\s*:\s*`)

var spaceRegex = regexp.MustCompile(`\s+`)

// ConversationKey derives a deterministic grouping key from a message's
// subject and its participant pair. Two messages with the same normalized
// subject between the same two addresses resolve to the same key regardless
// of direction or reply depth. Used only when the server provides no native
// conversation identifier.
func ConversationKey(subject, addrA, addrB string) string {
	subject = NormalizeSubject(subject)

	a := strings.ToLower(strings.TrimSpace(addrA))
	b := strings.ToLower(strings.TrimSpace(addrB))
	if a > b {
		a, b = b, a
	}

	return subject + "|" + a + "|" + b
}

// NormalizeSubject strips stacked reply/forward prefixes and collapses
// case and whitespace
func NormalizeSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	for {
		stripped := replyPrefixRegex.ReplaceAllString(subject, "")
		if stripped == subject {
			break
		}
		subject = strings.TrimSpace(stripped)
	}
	subject = strings.ToLower(subject)
	return spaceRegex.ReplaceAllString(subject, " ")
}
