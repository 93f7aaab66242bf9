package orders

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/shopdesk/mailsync/internal/database"
	"github.com/shopdesk/mailsync/pkg/models"
)

// Matcher resolves the business order a mail conversation is about
type Matcher interface {
	MatchOrder(ctx context.Context, bodyText, fromAddr, subject string) (*models.Order, error)
}

// TokenMatcher scans message text for order-identifying tokens and falls back
// to the sender's most recent order.
type TokenMatcher struct {
	db       *database.DB
	patterns []*tokenPattern
}

type tokenPattern struct {
	Name  string
	Regex *regexp.Regexp
}

// NewTokenMatcher creates a matcher with the default order-number patterns
func NewTokenMatcher(db *database.DB) *TokenMatcher {
	return &TokenMatcher{
		db: db,
		patterns: []*tokenPattern{
			// Order numbers with keyword, e.g. "order #SD-104233"
			{
				Name:  "keyword",
				Regex: regexp.MustCompile(`(?i)(?:order|bestellung|commande|заказ)[\s#:№\-]*([A-Z]{1,4}-?\d{4,10})\b`),
			},
			// Prefixed numbers on their own, e.g. "SD-104233"
			{
				Name:  "prefixed",
				Regex: regexp.MustCompile(`\b([A-Z]{2,4}-\d{4,10})\b`),
			},
			// Bare long numerics next to a reference keyword
			{
				Name:  "reference",
				Regex: regexp.MustCompile(`(?i)(?:ref|reference|referenz)[\s#:\-]*(\d{6,12})\b`),
			},
		},
	}
}

// MatchOrder finds the order referenced by a message. Token matches in
// subject and body are tried first, then the sender's latest order. Returns
// (nil, nil) when nothing matches.
func (m *TokenMatcher) MatchOrder(ctx context.Context, bodyText, fromAddr, subject string) (*models.Order, error) {
	for _, token := range m.detectTokens(subject + "\n" + bodyText) {
		order, err := m.db.GetOrderByNumber(ctx, token)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return order, nil
	}

	fromAddr = strings.ToLower(strings.TrimSpace(fromAddr))
	if fromAddr == "" {
		return nil, nil
	}
	order, err := m.db.GetLatestOrderByCustomer(ctx, fromAddr)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// detectTokens finds all candidate order tokens in text
func (m *TokenMatcher) detectTokens(text string) []string {
	var tokens []string
	seen := make(map[string]bool)

	for _, pattern := range m.patterns {
		matches := pattern.Regex.FindAllStringSubmatch(text, -1)
		for _, match := range matches {
			if len(match) > 1 {
				token := strings.ToUpper(strings.TrimSpace(match[1]))
				if token == "" || seen[token] {
					continue
				}
				seen[token] = true
				tokens = append(tokens, token)
			}
		}
	}

	return tokens
}
