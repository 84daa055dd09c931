package store

import (
	"context"
	"database/sql"

	"pass-service/internal/models"
)

// CreatePass creates a new pass
func (s *Store) CreatePass(ctx context.Context, pass *models.Pass) error {
	query := `
		INSERT INTO passes (code, seller_id, customer_name, customer_email,
		                    guests, days, cost, expires_at, is_active, landing_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, pass, query,
		pass.Code, pass.SellerID, pass.CustomerName, pass.CustomerEmail,
		pass.Guests, pass.Days, pass.Cost, pass.ExpiresAt, pass.IsActive, pass.LandingURL)
}

// GetPassByID retrieves a pass by ID. Returns nil, nil when absent.
func (s *Store) GetPassByID(ctx context.Context, id int64) (*models.Pass, error) {
	var pass models.Pass
	err := s.db.GetContext(ctx, &pass, "SELECT * FROM passes WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pass, nil
}

// GetPassByCode retrieves a pass by its code. Returns nil, nil when absent.
func (s *Store) GetPassByCode(ctx context.Context, code string) (*models.Pass, error) {
	var pass models.Pass
	err := s.db.GetContext(ctx, &pass, "SELECT * FROM passes WHERE code = $1", code)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pass, nil
}

// CreateAccessCredential creates the bearer token for a pass
func (s *Store) CreateAccessCredential(ctx context.Context, cred *models.AccessCredential) error {
	query := `
		INSERT INTO access_credentials (token, pass_id, customer_name, customer_email, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, cred, query,
		cred.Token, cred.PassID, cred.CustomerName, cred.CustomerEmail, cred.ExpiresAt)
}

// CreatePassAnalytics creates the denormalized issuance snapshot
func (s *Store) CreatePassAnalytics(ctx context.Context, pa *models.PassAnalytics) error {
	query := `
		INSERT INTO pass_analytics (pass_id, base_amount, guest_amount, day_amount,
		                            commission_amount, tax_amount, total_amount, delivery_method,
		                            seller_name, location_name, distributor_name,
		                            welcome_email_sent, rebuy_email_scheduled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, pa, query,
		pa.PassID, pa.BaseAmount, pa.GuestAmount, pa.DayAmount,
		pa.CommissionAmount, pa.TaxAmount, pa.TotalAmount, pa.DeliveryMethod,
		pa.SellerName, pa.LocationName, pa.DistributorName,
		pa.WelcomeEmailSent, pa.RebuyEmailScheduled)
}

// MarkWelcomeEmailSent records a confirmed welcome email delivery. Called
// strictly after the send resolved, never optimistically.
func (s *Store) MarkWelcomeEmailSent(ctx context.Context, passID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE pass_analytics SET welcome_email_sent = TRUE WHERE pass_id = $1", passID)
	return err
}

// MarkRebuyScheduled records a confirmed rebuy-reminder enqueue
func (s *Store) MarkRebuyScheduled(ctx context.Context, passID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE pass_analytics SET rebuy_email_scheduled = TRUE WHERE pass_id = $1", passID)
	return err
}
