package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow/internal/model"
)

type ProductEntity struct {
	ID            int64           `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	Name          string          `db:"name"            gorm:"column:name;not null"`
	SKU           string          `db:"sku"             gorm:"column:sku;not null;uniqueIndex"`
	CategoryID    int64           `db:"category_id"     gorm:"column:category_id;not null;index"`
	Category      *CategoryEntity `gorm:"foreignKey:CategoryID"`
	CostPrice     decimal.Decimal `db:"cost_price"      gorm:"column:cost_price;type:numeric(12,2);not null"`
	SellingPrice  decimal.Decimal `db:"selling_price"   gorm:"column:selling_price;type:numeric(12,2);not null"`
	ProfitMargin  decimal.Decimal `db:"profit_margin"   gorm:"column:profit_margin;type:numeric(12,2);not null;default:0"`
	StockQuantity int             `db:"stock_quantity"  gorm:"column:stock_quantity;not null;default:0"`
	MinStockLevel int             `db:"min_stock_level" gorm:"column:min_stock_level;not null"`
	Unit          string          `db:"unit"            gorm:"column:unit;not null;default:pcs"`
	IsActive      bool            `db:"is_active"       gorm:"column:is_active;not null"`
	CreatedByID   *int64          `db:"created_by_id"   gorm:"column:created_by_id"`
	CreatedAt     time.Time       `db:"created_at"      gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `db:"updated_at"      gorm:"column:updated_at;autoUpdateTime"`
}

func (ProductEntity) TableName() string {
	return "products"
}

func toProductEntity(m *model.Product) *ProductEntity {
	if m == nil {
		return nil
	}
	return &ProductEntity{
		ID:            m.ID,
		Name:          m.Name,
		SKU:           m.SKU,
		CategoryID:    m.CategoryID,
		CostPrice:     m.CostPrice,
		SellingPrice:  m.SellingPrice,
		ProfitMargin:  m.ProfitMargin,
		StockQuantity: m.StockQuantity,
		MinStockLevel: m.MinStockLevel,
		Unit:          m.Unit,
		IsActive:      m.IsActive,
		CreatedByID:   m.CreatedByID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toProductModel(e *ProductEntity) *model.Product {
	if e == nil {
		return nil
	}
	return &model.Product{
		ID:            e.ID,
		Name:          e.Name,
		SKU:           e.SKU,
		CategoryID:    e.CategoryID,
		Category:      toCategoryModel(e.Category),
		CostPrice:     e.CostPrice,
		SellingPrice:  e.SellingPrice,
		ProfitMargin:  e.ProfitMargin,
		StockQuantity: e.StockQuantity,
		MinStockLevel: e.MinStockLevel,
		Unit:          e.Unit,
		IsActive:      e.IsActive,
		CreatedByID:   e.CreatedByID,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func toProductModels(entities []*ProductEntity) []*model.Product {
	if entities == nil {
		return nil
	}
	models := make([]*model.Product, len(entities))
	for i, e := range entities {
		models[i] = toProductModel(e)
	}
	return models
}
