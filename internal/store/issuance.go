package store

import (
	"context"
	"database/sql"
	"time"

	"pass-service/internal/models"
)

// CreateScheduledIssuance creates a new scheduled issuance record
func (s *Store) CreateScheduledIssuance(ctx context.Context, si *models.ScheduledIssuance) error {
	query := `
		INSERT INTO scheduled_issuances (scheduled_for, client_name, client_email, guests, days,
		                                 seller_id, config_id, delivery_method, is_processed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, si, query,
		si.ScheduledFor, si.ClientName, si.ClientEmail, si.Guests, si.Days,
		si.SellerID, si.ConfigID, si.DeliveryMethod)
}

// GetScheduledIssuance retrieves a scheduled issuance by ID.
// Returns nil, nil when absent.
func (s *Store) GetScheduledIssuance(ctx context.Context, id int64) (*models.ScheduledIssuance, error) {
	var si models.ScheduledIssuance
	err := s.db.GetContext(ctx, &si, "SELECT * FROM scheduled_issuances WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &si, nil
}

// ClaimScheduledIssuance performs the single conditional transition from
// pending to processed. Returns false when the record was already claimed by
// a concurrent invocation; the caller must not issue a second pass in that
// case.
func (s *Store) ClaimScheduledIssuance(ctx context.Context, id int64, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_issuances
		SET is_processed = TRUE, processed_at = $1
		WHERE id = $2 AND is_processed = FALSE`,
		now, id)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// FinalizeScheduledIssuance links the claimed record to the pass it produced
func (s *Store) FinalizeScheduledIssuance(ctx context.Context, id, passID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE scheduled_issuances SET created_pass_id = $1 WHERE id = $2",
		passID, id)
	return err
}

// ListOverdueUnprocessed returns unclaimed records whose scheduled time has
// passed, oldest first so the worst-delayed customer is served first.
func (s *Store) ListOverdueUnprocessed(ctx context.Context, now time.Time) ([]models.ScheduledIssuance, error) {
	var records []models.ScheduledIssuance
	err := s.db.SelectContext(ctx, &records, `
		SELECT * FROM scheduled_issuances
		WHERE scheduled_for <= $1 AND is_processed = FALSE
		ORDER BY scheduled_for ASC`,
		now)
	return records, err
}

// ListClaimedWithoutPass returns records marked processed that never got a
// pass. These require operator intervention and are intentionally not
// retried automatically.
func (s *Store) ListClaimedWithoutPass(ctx context.Context) ([]models.ScheduledIssuance, error) {
	var records []models.ScheduledIssuance
	err := s.db.SelectContext(ctx, &records, `
		SELECT * FROM scheduled_issuances
		WHERE is_processed = TRUE AND created_pass_id IS NULL
		ORDER BY processed_at ASC`)
	return records, err
}
