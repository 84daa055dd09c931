package store

import (
	"context"
	"database/sql"
	"time"

	"pass-service/internal/models"
)

// CreateOrder creates a new order. A partial unique index on payment_id
// (non-empty values only) makes a concurrent insert for the same transaction
// fail here instead of producing a second order.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (payment_id, amount, currency, customer_name, customer_email,
		                    guests, days, delivery_method, scheduled_for, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, order, query,
		order.PaymentID, order.Amount, order.Currency, order.CustomerName, order.CustomerEmail,
		order.Guests, order.Days, order.DeliveryMethod, order.ScheduledFor, order.Status)
}

// GetOrderByPaymentID retrieves an order by its external transaction
// identifier. Returns nil, nil when no order matches.
func (s *Store) GetOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE payment_id = $1 ORDER BY created_at DESC LIMIT 1", paymentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindRecentOrderByEmailAmount is the heuristic dedup fallback for
// confirmations that arrive without a stable transaction identifier: same
// customer email and amount within a short trailing window.
// Returns nil, nil when no order matches.
func (s *Store) FindRecentOrderByEmailAmount(ctx context.Context, email string, amount int64, since time.Time) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `
		SELECT * FROM orders
		WHERE customer_email = $1 AND amount = $2 AND created_at >= $3
		ORDER BY created_at DESC LIMIT 1`,
		email, amount, since)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByID retrieves an order by ID. Returns nil, nil when absent.
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
