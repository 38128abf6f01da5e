package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow/internal/model"
)

type StoreSettingsEntity struct {
	ID            int64           `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	StoreName     string          `db:"store_name"     gorm:"column:store_name;not null"`
	StoreEmail    *string         `db:"store_email"    gorm:"column:store_email"`
	StorePhone    *string         `db:"store_phone"    gorm:"column:store_phone"`
	StoreAddress  *string         `db:"store_address"  gorm:"column:store_address"`
	Currency      string          `db:"currency"       gorm:"column:currency;not null;default:KES"`
	TaxRate       decimal.Decimal `db:"tax_rate"       gorm:"column:tax_rate;type:numeric(5,2);not null;default:0"`
	ReceiptFooter *string         `db:"receipt_footer" gorm:"column:receipt_footer"`
	UpdatedAt     time.Time       `db:"updated_at"     gorm:"column:updated_at;autoUpdateTime"`
}

func (StoreSettingsEntity) TableName() string {
	return "store_settings"
}

func toStoreSettingsEntity(m *model.StoreSettings) *StoreSettingsEntity {
	if m == nil {
		return nil
	}
	return &StoreSettingsEntity{
		ID:            m.ID,
		StoreName:     m.StoreName,
		StoreEmail:    m.StoreEmail,
		StorePhone:    m.StorePhone,
		StoreAddress:  m.StoreAddress,
		Currency:      m.Currency,
		TaxRate:       m.TaxRate,
		ReceiptFooter: m.ReceiptFooter,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toStoreSettingsModel(e *StoreSettingsEntity) *model.StoreSettings {
	if e == nil {
		return nil
	}
	return &model.StoreSettings{
		ID:            e.ID,
		StoreName:     e.StoreName,
		StoreEmail:    e.StoreEmail,
		StorePhone:    e.StorePhone,
		StoreAddress:  e.StoreAddress,
		Currency:      e.Currency,
		TaxRate:       e.TaxRate,
		ReceiptFooter: e.ReceiptFooter,
		UpdatedAt:     e.UpdatedAt,
	}
}
