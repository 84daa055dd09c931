package models

import "time"

// Delivery methods
const (
	DeliveryDirect = "DIRECT"
	DeliveryURL    = "URL"
	DeliveryBoth   = "BOTH"
)

// Sentinel values for checkout-originated records that have no configured
// seller behind them.
const (
	SellerSystem  = "system"
	ConfigDefault = "default"
)

// Order statuses
const (
	OrderStatusPaid = "PAID"
)

// Pricing modes
const (
	PricingFixed    = "FIXED"
	PricingVariable = "VARIABLE"
)

// Order represents a confirmed payment. At most one row exists per external
// transaction; the reconciliation gate enforces this before anything else
// runs.
type Order struct {
	ID             int64      `db:"id" json:"id"`
	PaymentID      string     `db:"payment_id" json:"payment_id,omitempty"`
	Amount         int64      `db:"amount" json:"amount"`
	Currency       string     `db:"currency" json:"currency"`
	CustomerName   string     `db:"customer_name" json:"customer_name"`
	CustomerEmail  string     `db:"customer_email" json:"customer_email"`
	Guests         int        `db:"guests" json:"guests"`
	Days           int        `db:"days" json:"days"`
	DeliveryMethod string     `db:"delivery_method" json:"delivery_method"`
	ScheduledFor   *time.Time `db:"scheduled_for" json:"scheduled_for,omitempty"`
	Status         string     `db:"status" json:"status"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// ScheduledIssuance is a deferred request to activate a pass at ScheduledFor.
// Rows are never deleted; the only mutation after creation is the single
// pending -> processed transition performed by the conditional claim.
type ScheduledIssuance struct {
	ID             int64      `db:"id" json:"id"`
	ScheduledFor   time.Time  `db:"scheduled_for" json:"scheduled_for"`
	ClientName     string     `db:"client_name" json:"client_name"`
	ClientEmail    string     `db:"client_email" json:"client_email"`
	Guests         int        `db:"guests" json:"guests"`
	Days           int        `db:"days" json:"days"`
	SellerID       string     `db:"seller_id" json:"seller_id"`
	ConfigID       string     `db:"config_id" json:"config_id"`
	DeliveryMethod string     `db:"delivery_method" json:"delivery_method"`
	IsProcessed    bool       `db:"is_processed" json:"is_processed"`
	ProcessedAt    *time.Time `db:"processed_at" json:"processed_at,omitempty"`
	CreatedPassID  *int64     `db:"created_pass_id" json:"created_pass_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Pass is the redeemable unit issued to a customer. ExpiresAt is always
// relative to the activation instant, never to the originally requested
// schedule time.
type Pass struct {
	ID            int64     `db:"id" json:"id"`
	Code          string    `db:"code" json:"code"`
	SellerID      string    `db:"seller_id" json:"seller_id"`
	CustomerName  string    `db:"customer_name" json:"customer_name"`
	CustomerEmail string    `db:"customer_email" json:"customer_email"`
	Guests        int       `db:"guests" json:"guests"`
	Days          int       `db:"days" json:"days"`
	Cost          int64     `db:"cost" json:"cost"`
	ExpiresAt     time.Time `db:"expires_at" json:"expires_at"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	LandingURL    string    `db:"landing_url" json:"landing_url,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// AccessCredential is the bearer token the portal uses to locate a
// customer's passes without a login. Its lifetime is independent of the
// pass's own validity.
type AccessCredential struct {
	ID            int64     `db:"id" json:"id"`
	Token         string    `db:"token" json:"token"`
	PassID        int64     `db:"pass_id" json:"pass_id"`
	CustomerName  string    `db:"customer_name" json:"customer_name"`
	CustomerEmail string    `db:"customer_email" json:"customer_email"`
	ExpiresAt     time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// PassAnalytics is an append-only snapshot of issuance-time facts. The two
// delivery flags are the only fields updated after creation, and only after
// the corresponding side effect actually resolved.
type PassAnalytics struct {
	ID                  int64     `db:"id" json:"id"`
	PassID              int64     `db:"pass_id" json:"pass_id"`
	BaseAmount          int64     `db:"base_amount" json:"base_amount"`
	GuestAmount         int64     `db:"guest_amount" json:"guest_amount"`
	DayAmount           int64     `db:"day_amount" json:"day_amount"`
	CommissionAmount    int64     `db:"commission_amount" json:"commission_amount"`
	TaxAmount           int64     `db:"tax_amount" json:"tax_amount"`
	TotalAmount         int64     `db:"total_amount" json:"total_amount"`
	DeliveryMethod      string    `db:"delivery_method" json:"delivery_method"`
	SellerName          string    `db:"seller_name" json:"seller_name"`
	LocationName        string    `db:"location_name" json:"location_name"`
	DistributorName     string    `db:"distributor_name" json:"distributor_name"`
	WelcomeEmailSent    bool      `db:"welcome_email_sent" json:"welcome_email_sent"`
	RebuyEmailScheduled bool      `db:"rebuy_email_scheduled" json:"rebuy_email_scheduled"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// PassConfig is a seller's validated pricing and template configuration.
// Loosely-typed documents from the admin side are normalized into this shape
// once, at the boundary.
type PassConfig struct {
	ID            string `db:"id" json:"id"`
	SellerID      string `db:"seller_id" json:"seller_id"`
	PricingMode   string `db:"pricing_mode" json:"pricing_mode"`
	FixedPrice    int64  `db:"fixed_price" json:"fixed_price"`
	BasePrice     int64  `db:"base_price" json:"base_price"`
	GuestIncrease int64  `db:"guest_increase" json:"guest_increase"`
	DayIncrease   int64  `db:"day_increase" json:"day_increase"`
	// Commission is a flat amount in cents, not a rate. The admin tooling
	// has always treated it that way and downstream reporting depends on it.
	Commission     int64 `db:"commission" json:"commission"`
	TaxEnabled     bool  `db:"tax_enabled" json:"tax_enabled"`
	TaxBasisPoints int64 `db:"tax_basis_points" json:"tax_basis_points"`

	MinGuests int `db:"min_guests" json:"min_guests"`
	MaxGuests int `db:"max_guests" json:"max_guests"`
	MinDays   int `db:"min_days" json:"min_days"`
	MaxDays   int `db:"max_days" json:"max_days"`

	TemplateSubject string `db:"template_subject" json:"template_subject,omitempty"`
	TemplateBody    string `db:"template_body" json:"template_body,omitempty"`

	SellerName      string `db:"seller_name" json:"seller_name"`
	LocationName    string `db:"location_name" json:"location_name"`
	DistributorName string `db:"distributor_name" json:"distributor_name"`
	LandingURL      string `db:"landing_url" json:"landing_url,omitempty"`
}

// EmailTemplate is a stored notification template. The row flagged as
// default is the second tier of the resolution chain.
type EmailTemplate struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Subject   string    `db:"subject" json:"subject"`
	Body      string    `db:"body" json:"body"`
	IsDefault bool      `db:"is_default" json:"is_default"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
