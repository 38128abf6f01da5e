package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	CategoryID    int64           `json:"category_id"`
	Category      *Category       `json:"category,omitempty"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	ProfitMargin  decimal.Decimal `json:"profit_margin"`
	StockQuantity int             `json:"stock_quantity"`
	MinStockLevel int             `json:"min_stock_level"`
	Unit          string          `json:"unit"`
	IsActive      bool            `json:"is_active"`
	CreatedByID   *int64          `json:"created_by_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ProductCreateRequest is the input for creating or replacing a product.
type ProductCreateRequest struct {
	Name          string
	SKU           string
	CategoryID    int64
	CostPrice     decimal.Decimal
	SellingPrice  decimal.Decimal
	StockQuantity int
	MinStockLevel int
	Unit          string
	CreatedByID   *int64
}

func (p ProductCreateRequest) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.SKU == "" {
		return errors.New("sku is required")
	}
	if p.CategoryID == 0 {
		return errors.New("category_id is required")
	}
	if !p.CostPrice.IsPositive() {
		return errors.New("cost_price must be positive")
	}
	if !p.SellingPrice.IsPositive() {
		return errors.New("selling_price must be positive")
	}
	if p.StockQuantity < 0 {
		return errors.New("stock_quantity must not be negative")
	}
	if p.MinStockLevel < 0 {
		return errors.New("min_stock_level must not be negative")
	}
	return nil
}

// Margin computes the profit margin percentage from the request prices.
func (p ProductCreateRequest) Margin() decimal.Decimal {
	if p.CostPrice.IsZero() {
		return decimal.Zero
	}
	return p.SellingPrice.Sub(p.CostPrice).Div(p.CostPrice).Mul(decimal.NewFromInt(100))
}

// ProductFilter controls product listing.
type ProductFilter struct {
	Search string // matches name or SKU, case-insensitive
	Limit  int
	Offset int
}
