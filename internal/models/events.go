package models

import "time"

// Event types
const (
	EventTypeOrderReconciled   = "ORDER_RECONCILED"
	EventTypeIssuanceScheduled = "ISSUANCE_SCHEDULED"
	EventTypePassIssued        = "PASS_ISSUED"
	EventTypeNotificationSent  = "NOTIFICATION_SENT"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderReconciledEvent published when a payment confirmation survives the
// dedup gate and produces a new order
type OrderReconciledEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	PaymentID string `json:"payment_id,omitempty"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Source    string `json:"source"`
}

// IssuanceScheduledEvent published when a future-dated activation is stored
type IssuanceScheduledEvent struct {
	BaseEvent
	ScheduledIssuanceID int64     `json:"scheduled_issuance_id"`
	ScheduledFor        time.Time `json:"scheduled_for"`
	SellerID            string    `json:"seller_id"`
}

// PassIssuedEvent published once per pass, after the pass row is durable
type PassIssuedEvent struct {
	BaseEvent
	PassID              int64     `json:"pass_id"`
	Code                string    `json:"code"`
	SellerID            string    `json:"seller_id"`
	CustomerEmail       string    `json:"customer_email"`
	Guests              int       `json:"guests"`
	Days                int       `json:"days"`
	Cost                int64     `json:"cost"`
	ExpiresAt           time.Time `json:"expires_at"`
	ScheduledIssuanceID int64     `json:"scheduled_issuance_id,omitempty"`
}

// NotificationSentEvent published after a welcome email attempt resolves
type NotificationSentEvent struct {
	BaseEvent
	PassID int64 `json:"pass_id"`
	Sent   bool  `json:"sent"`
}
