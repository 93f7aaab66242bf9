package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopdesk/mailsync/pkg/models"
)

// CreateOrder creates a new order
func (db *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT OR IGNORE INTO orders (number, customer_email, status, created_at)
		VALUES (?, ?, ?, ?)
	`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		order.Number,
		order.CustomerEmail,
		order.Status,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlreadyExists
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	order.ID = id
	order.CreatedAt = now
	return nil
}

// GetOrderByNumber returns an order by its customer-facing number
func (db *DB) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	query := `SELECT * FROM orders WHERE number = ?`
	err := db.GetContext(ctx, &order, query, number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// GetLatestOrderByCustomer returns the most recent order for a customer address
func (db *DB) GetLatestOrderByCustomer(ctx context.Context, email string) (*models.Order, error) {
	var order models.Order
	query := `SELECT * FROM orders WHERE customer_email = ? ORDER BY created_at DESC LIMIT 1`
	err := db.GetContext(ctx, &order, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}
