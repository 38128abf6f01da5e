package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/stockflow/stockflow/internal/model"
	"github.com/stockflow/stockflow/pkg/pg"
)

const (
	defaultStoreName = "StockFlow"
	defaultCurrency  = "KES"
)

type SettingsRepository struct {
	*pg.DB
}

func NewSettingsRepository(db *pg.DB) *SettingsRepository {
	return &SettingsRepository{
		db,
	}
}

// GetOrCreate returns the single settings row, creating it with defaults on
// first access.
func (r *SettingsRepository) GetOrCreate(ctx context.Context) (*model.StoreSettings, error) {
	var entity StoreSettingsEntity
	err := r.Read(ctx).WithContext(ctx).
		Order("id ASC").
		First(&entity).
		Error
	if err == nil {
		return toStoreSettingsModel(&entity), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	entity = StoreSettingsEntity{
		StoreName: defaultStoreName,
		Currency:  defaultCurrency,
	}
	if err := r.Write(ctx).WithContext(ctx).Create(&entity).Error; err != nil {
		return nil, err
	}
	return toStoreSettingsModel(&entity), nil
}

func (r *SettingsRepository) Update(ctx context.Context, s *model.StoreSettings) (*model.StoreSettings, error) {
	entity := toStoreSettingsEntity(s)

	result := r.Write(ctx).WithContext(ctx).
		Model(&StoreSettingsEntity{}).
		Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"store_name":     entity.StoreName,
			"store_email":    entity.StoreEmail,
			"store_phone":    entity.StorePhone,
			"store_address":  entity.StoreAddress,
			"currency":       entity.Currency,
			"tax_rate":       entity.TaxRate,
			"receipt_footer": entity.ReceiptFooter,
		})
	if result.Error != nil {
		return nil, result.Error
	}

	var updated StoreSettingsEntity
	if err := r.Read(ctx).WithContext(ctx).Where("id = ?", s.ID).First(&updated).Error; err != nil {
		return nil, err
	}
	return toStoreSettingsModel(&updated), nil
}
