package orders

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/shopdesk/mailsync/internal/database"
	"github.com/shopdesk/mailsync/pkg/models"
)

func testDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedOrder(t *testing.T, db *database.DB, number, email string) *models.Order {
	t.Helper()
	order := &models.Order{Number: number, CustomerEmail: email, Status: "paid"}
	if err := db.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("failed to seed order %s: %v", number, err)
	}
	return order
}

func TestDetectTokens(t *testing.T) {
	m := NewTokenMatcher(nil)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "keyword with hash",
			text: "I have a question about order #SD-104233 please",
			want: []string{"SD-104233"},
		},
		{
			name: "keyword without separator",
			text: "Bestellung SD-104233 ist nicht angekommen",
			want: []string{"SD-104233"},
		},
		{
			name: "bare prefixed token",
			text: "Regarding SD-104233, any update?",
			want: []string{"SD-104233"},
		},
		{
			name: "reference number",
			text: "ref: 10423301",
			want: []string{"10423301"},
		},
		{
			name: "duplicates collapsed",
			text: "order SD-104233 ... again SD-104233",
			want: []string{"SD-104233"},
		},
		{
			name: "no tokens",
			text: "hello, where is my package?",
			want: nil,
		},
		{
			name: "short numbers ignored",
			text: "I ordered 3 items on May 12",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.detectTokens(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("detectTokens(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestMatchOrderByToken(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seeded := seedOrder(t, db, "SD-104233", "customer@example.com")
	m := NewTokenMatcher(db)

	order, err := m.MatchOrder(ctx, "where is order #SD-104233?", "someoneelse@example.com", "Delivery")
	if err != nil {
		t.Fatalf("MatchOrder failed: %v", err)
	}
	if order == nil || order.ID != seeded.ID {
		t.Fatalf("MatchOrder = %+v, want order %d", order, seeded.ID)
	}
}

func TestMatchOrderTokenInSubject(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seeded := seedOrder(t, db, "SD-200001", "customer@example.com")
	m := NewTokenMatcher(db)

	order, err := m.MatchOrder(ctx, "see subject", "other@example.com", "Order SD-200001 damaged")
	if err != nil {
		t.Fatalf("MatchOrder failed: %v", err)
	}
	if order == nil || order.ID != seeded.ID {
		t.Fatalf("MatchOrder = %+v, want order %d", order, seeded.ID)
	}
}

func TestMatchOrderFallsBackToLatestByCustomer(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedOrder(t, db, "SD-100001", "customer@example.com")
	latest := seedOrder(t, db, "SD-100002", "customer@example.com")
	m := NewTokenMatcher(db)

	order, err := m.MatchOrder(ctx, "no token here at all", "Customer@Example.com", "Hello")
	if err != nil {
		t.Fatalf("MatchOrder failed: %v", err)
	}
	if order == nil || order.Number != latest.Number {
		t.Fatalf("MatchOrder = %+v, want latest order %s", order, latest.Number)
	}
}

func TestMatchOrderUnknownTokenFallsThrough(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seeded := seedOrder(t, db, "SD-100001", "customer@example.com")
	m := NewTokenMatcher(db)

	// Token not in the database, but the sender has an order
	order, err := m.MatchOrder(ctx, "about order #ZZ-999999", "customer@example.com", "Hi")
	if err != nil {
		t.Fatalf("MatchOrder failed: %v", err)
	}
	if order == nil || order.ID != seeded.ID {
		t.Fatalf("MatchOrder = %+v, want fallback order %d", order, seeded.ID)
	}
}

func TestMatchOrderNoMatch(t *testing.T) {
	db := testDB(t)
	m := NewTokenMatcher(db)

	order, err := m.MatchOrder(context.Background(), "just a question", "stranger@example.com", "Hi")
	if err != nil {
		t.Fatalf("MatchOrder failed: %v", err)
	}
	if order != nil {
		t.Errorf("MatchOrder = %+v, want nil for unmatched message", order)
	}
}
