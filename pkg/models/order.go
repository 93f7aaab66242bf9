package models

import "time"

// Order is the business order a thread can be linked to
type Order struct {
	ID            int64     `db:"id"`
	Number        string    `db:"number"` // Customer-facing order number, unique
	CustomerEmail string    `db:"customer_email"`
	Status        string    `db:"status"`
	CreatedAt     time.Time `db:"created_at"`
}
