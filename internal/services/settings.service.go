package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stockflow/stockflow/internal/model"
	"github.com/stockflow/stockflow/pkg/logger"
	"github.com/stockflow/stockflow/pkg/redis"
)

const (
	settingsCacheKey = "store:settings"
	settingsCacheTTL = time.Hour
)

type SettingsRepository interface {
	GetOrCreate(ctx context.Context) (*model.StoreSettings, error)
	Update(ctx context.Context, s *model.StoreSettings) (*model.StoreSettings, error)
}

// SettingsService serves the store settings singleton through a redis cache.
// The cache is invalidated on update, so a stale read lasts at most one TTL
// on other instances.
type SettingsService struct {
	settingsRepo SettingsRepository
	cache        redis.RedisAdapter
}

func NewSettingsService(settingsRepo SettingsRepository, cache redis.RedisAdapter) *SettingsService {
	return &SettingsService{
		settingsRepo: settingsRepo,
		cache:        cache,
	}
}

func (s *SettingsService) Get(ctx context.Context) (*model.StoreSettings, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(settingsCacheKey); err == nil && len(raw) > 0 {
			var settings model.StoreSettings
			if err := json.Unmarshal(raw, &settings); err == nil {
				return &settings, nil
			}
		}
	}

	settings, err := s.settingsRepo.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	s.cacheSettings(settings)

	return settings, nil
}

func (s *SettingsService) Update(ctx context.Context, p model.StoreSettingsUpdateRequest) (*model.StoreSettings, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	current, err := s.settingsRepo.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	currency := p.Currency
	if currency == "" {
		currency = current.Currency
	}

	updated, err := s.settingsRepo.Update(ctx, &model.StoreSettings{
		ID:            current.ID,
		StoreName:     p.StoreName,
		StoreEmail:    p.StoreEmail,
		StorePhone:    p.StorePhone,
		StoreAddress:  p.StoreAddress,
		Currency:      currency,
		TaxRate:       p.TaxRate,
		ReceiptFooter: p.ReceiptFooter,
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Del(settingsCacheKey); err != nil {
			logger.Warn("Settings cache invalidation failed", "error", err)
		}
	}

	logger.Info("Store settings updated", "store_name", updated.StoreName)

	return updated, nil
}

func (s *SettingsService) cacheSettings(settings *model.StoreSettings) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return
	}
	if err := s.cache.Set(settingsCacheKey, raw, settingsCacheTTL); err != nil {
		logger.Warn("Settings cache write failed", "error", err)
	}
}
