package service

import (
	"context"
	"fmt"
	"time"

	"pass-service/internal/models"
	"pass-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Confirmation source channels. The processor delivers the same logical
// transaction over either or both.
const (
	SourceWebhook = "webhook"
	SourceReturn  = "return"
)

// PaymentConfirmation is a normalized inbound payment confirmation
type PaymentConfirmation struct {
	PaymentID      string     `json:"payment_id"`
	Amount         int64      `json:"amount"`
	Currency       string     `json:"currency"`
	CustomerName   string     `json:"customer_name"`
	CustomerEmail  string     `json:"customer_email"`
	Guests         int        `json:"guests"`
	Days           int        `json:"days"`
	DeliveryMethod string     `json:"delivery_method"`
	ScheduledFor   *time.Time `json:"scheduled_for,omitempty"`
	Source         string     `json:"-"`
}

// OrderStore is the persistence surface the reconciliation gate needs
type OrderStore interface {
	GetOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	FindRecentOrderByEmailAmount(ctx context.Context, email string, amount int64, since time.Time) (*models.Order, error)
	CreateOrder(ctx context.Context, order *models.Order) error
}

// DedupCache is the optional fast path in front of the database lookups.
// Implemented by the Redis client; a failing cache degrades to DB-only.
type DedupCache interface {
	MarkPaymentSeen(ctx context.Context, paymentID string, ttl time.Duration) (bool, error)
}

// ReconcileResult reports whether the confirmation produced a new order.
// When IsNew is false the caller must not issue a pass for it.
type ReconcileResult struct {
	IsNew bool
	Order *models.Order
}

// Reconciler deduplicates inbound payment confirmations before they are
// allowed to create an order
type Reconciler struct {
	store     OrderStore
	cache     DedupCache
	window    time.Duration
	publisher EventPublisher
	logger    *zap.Logger
}

// NewReconciler creates a new payment reconciliation gate
func NewReconciler(store OrderStore, cache DedupCache, window time.Duration, publisher EventPublisher) *Reconciler {
	return &Reconciler{
		store:     store,
		cache:     cache,
		window:    window,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Reconcile looks the confirmation up by exact transaction identifier, then
// by the (email, amount, trailing window) heuristic for confirmations that
// lack one. On a miss it creates the order as a single atomic insert, so a
// failed create is safe to retry.
func (r *Reconciler) Reconcile(ctx context.Context, conf *PaymentConfirmation) (*ReconcileResult, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.Reconcile")
	defer span.End()

	if conf.PaymentID != "" {
		seenBefore := false
		if r.cache != nil {
			first, err := r.cache.MarkPaymentSeen(ctx, conf.PaymentID, r.window)
			if err != nil {
				r.logger.Warn("Payment dedup cache unavailable, using DB only", zap.Error(err))
			} else if !first {
				seenBefore = true
				r.logger.Info("Duplicate confirmation caught in cache",
					zap.String("payment_id", conf.PaymentID),
					zap.String("source", conf.Source))
			}
		}

		existing, err := r.store.GetOrderByPaymentID(ctx, conf.PaymentID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up order by payment id: %w", err)
		}
		if existing == nil && seenBefore {
			// The first sighting's insert may still be in flight; wait for
			// its row instead of racing it with a second insert.
			existing, err = r.awaitOrderByPaymentID(ctx, conf.PaymentID)
			if err != nil {
				return nil, fmt.Errorf("failed to look up in-flight order: %w", err)
			}
		}
		if existing != nil {
			util.DuplicateConfirmationsTotal.WithLabelValues("payment_id").Inc()
			r.logger.Info("Duplicate payment confirmation",
				zap.String("payment_id", conf.PaymentID),
				zap.Int64("order_id", existing.ID),
				zap.String("source", conf.Source))
			return &ReconcileResult{IsNew: false, Order: existing}, nil
		}
	} else {
		existing, err := r.store.FindRecentOrderByEmailAmount(ctx,
			conf.CustomerEmail, conf.Amount, time.Now().Add(-r.window))
		if err != nil {
			return nil, fmt.Errorf("failed heuristic order lookup: %w", err)
		}
		if existing != nil {
			util.DuplicateConfirmationsTotal.WithLabelValues("heuristic").Inc()
			r.logger.Info("Duplicate payment confirmation (heuristic match)",
				zap.String("customer_email", conf.CustomerEmail),
				zap.Int64("amount", conf.Amount),
				zap.Int64("order_id", existing.ID),
				zap.String("source", conf.Source))
			return &ReconcileResult{IsNew: false, Order: existing}, nil
		}
	}

	order := &models.Order{
		PaymentID:      conf.PaymentID,
		Amount:         conf.Amount,
		Currency:       conf.Currency,
		CustomerName:   conf.CustomerName,
		CustomerEmail:  conf.CustomerEmail,
		Guests:         conf.Guests,
		Days:           conf.Days,
		DeliveryMethod: conf.DeliveryMethod,
		ScheduledFor:   conf.ScheduledFor,
		Status:         models.OrderStatusPaid,
	}

	if err := r.store.CreateOrder(ctx, order); err != nil {
		// The unique index on payment_id is the last line of defense: a
		// concurrent insert for the same transaction turns into a duplicate
		// here, not a second order.
		if conf.PaymentID != "" {
			existing, lerr := r.store.GetOrderByPaymentID(ctx, conf.PaymentID)
			if lerr == nil && existing != nil {
				util.DuplicateConfirmationsTotal.WithLabelValues("payment_id").Inc()
				r.logger.Info("Duplicate payment confirmation (lost insert race)",
					zap.String("payment_id", conf.PaymentID),
					zap.Int64("order_id", existing.ID),
					zap.String("source", conf.Source))
				return &ReconcileResult{IsNew: false, Order: existing}, nil
			}
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersReconciledTotal.Inc()
	r.logger.Info("Order reconciled",
		zap.Int64("order_id", order.ID),
		zap.String("payment_id", order.PaymentID),
		zap.String("source", conf.Source))

	if r.publisher != nil {
		event := &models.OrderReconciledEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderReconciled,
				Timestamp: time.Now(),
			},
			OrderID:   order.ID,
			PaymentID: order.PaymentID,
			Amount:    order.Amount,
			Currency:  order.Currency,
			Source:    conf.Source,
		}
		if err := r.publisher.PublishOrderReconciled(ctx, event); err != nil {
			r.logger.Error("Failed to publish OrderReconciled event", zap.Error(err))
		}
	}

	return &ReconcileResult{IsNew: true, Order: order}, nil
}

const (
	inFlightLookupAttempts = 3
	inFlightLookupDelay    = 100 * time.Millisecond
)

// awaitOrderByPaymentID re-checks the order lookup a few times. Used when the
// cache reports a payment as already seen but the database has no row yet:
// the winning confirmation's insert is in flight and shows up shortly.
// Returns nil, nil when the row never appears.
func (r *Reconciler) awaitOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	for i := 0; i < inFlightLookupAttempts; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(inFlightLookupDelay):
		}

		existing, err := r.store.GetOrderByPaymentID(ctx, paymentID)
		if err != nil || existing != nil {
			return existing, err
		}
	}
	return nil, nil
}
