package service

import (
	"context"
	"time"

	"pass-service/internal/models"
	"pass-service/internal/util"

	"go.uber.org/zap"
)

// ConfigCache is the read cache in front of configuration lookups.
// Implemented by the Redis client.
type ConfigCache interface {
	GetCachedPassConfig(ctx context.Context, id string) (*models.PassConfig, error)
	CachePassConfig(ctx context.Context, cfg *models.PassConfig, ttl time.Duration) error
}

// CachedConfigStore is a read-through ConfigStore. Cache failures fall
// through to the database; configurations change rarely, so a short TTL is
// enough.
type CachedConfigStore struct {
	store  ConfigStore
	cache  ConfigCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedConfigStore wraps a ConfigStore with a Redis read cache
func NewCachedConfigStore(store ConfigStore, cache ConfigCache, ttl time.Duration) *CachedConfigStore {
	return &CachedConfigStore{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: util.GetLogger(),
	}
}

// GetPassConfig returns the configuration by id, consulting the cache first
func (s *CachedConfigStore) GetPassConfig(ctx context.Context, id string) (*models.PassConfig, error) {
	if cached, err := s.cache.GetCachedPassConfig(ctx, id); err != nil {
		s.logger.Warn("Config cache read failed", zap.String("config_id", id), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	cfg, err := s.store.GetPassConfig(ctx, id)
	if err != nil || cfg == nil {
		return cfg, err
	}

	if err := s.cache.CachePassConfig(ctx, cfg, s.ttl); err != nil {
		s.logger.Warn("Config cache write failed", zap.String("config_id", id), zap.Error(err))
	}
	return cfg, nil
}

// GetPassConfigBySellerID delegates straight to the store; the cache is
// keyed by configuration id only.
func (s *CachedConfigStore) GetPassConfigBySellerID(ctx context.Context, sellerID string) (*models.PassConfig, error) {
	return s.store.GetPassConfigBySellerID(ctx, sellerID)
}
