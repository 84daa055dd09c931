package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pass-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetPassConfig retrieves a pricing/template configuration by ID.
// Returns nil, nil when the configuration does not exist.
func (s *Store) GetPassConfig(ctx context.Context, id string) (*models.PassConfig, error) {
	var cfg models.PassConfig
	err := s.db.GetContext(ctx, &cfg, "SELECT * FROM pass_configs WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetPassConfigBySellerID retrieves the configuration assigned to a seller.
// Returns nil, nil when the seller has none.
func (s *Store) GetPassConfigBySellerID(ctx context.Context, sellerID string) (*models.PassConfig, error) {
	var cfg models.PassConfig
	err := s.db.GetContext(ctx, &cfg, "SELECT * FROM pass_configs WHERE seller_id = $1", sellerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetDefaultTemplate retrieves the system-wide default email template.
// Returns nil, nil when no template is flagged as default.
func (s *Store) GetDefaultTemplate(ctx context.Context) (*models.EmailTemplate, error) {
	var tpl models.EmailTemplate
	err := s.db.GetContext(ctx, &tpl,
		"SELECT * FROM email_templates WHERE is_default = TRUE ORDER BY id LIMIT 1")
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
