package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stockflow/stockflow/internal/model"
	"github.com/stockflow/stockflow/pkg/pg"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductInactive    = errors.New("product is not active")
	ErrConcurrentUpdate   = errors.New("concurrent update detected")
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// InsufficientStockError reports which product fell short, the way the
// checkout screen shows it to the cashier.
type InsufficientStockError struct {
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductName, e.Requested, e.Available)
}

type ProductRepository struct {
	*pg.DB

	// reorder threshold applied to products whose min_stock_level is 0
	lowStockFallback int
}

func NewProductRepository(db *pg.DB, lowStockFallback int) *ProductRepository {
	if lowStockFallback <= 0 {
		lowStockFallback = 10
	}
	return &ProductRepository{
		DB:               db,
		lowStockFallback: lowStockFallback,
	}
}

func (r *ProductRepository) Create(ctx context.Context, p *model.Product) (*model.Product, error) {
	entity := toProductEntity(p)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toProductModel(entity), nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id int64) (*model.Product, error) {
	var entity ProductEntity
	err := r.Read(ctx).WithContext(ctx).
		Preload("Category").
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return toProductModel(&entity), nil
}

func (r *ProductRepository) Update(ctx context.Context, p *model.Product) (*model.Product, error) {
	entity := toProductEntity(p)

	result := r.Write(ctx).WithContext(ctx).
		Model(&ProductEntity{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"name":            entity.Name,
			"sku":             entity.SKU,
			"category_id":     entity.CategoryID,
			"cost_price":      entity.CostPrice,
			"selling_price":   entity.SellingPrice,
			"profit_margin":   entity.ProfitMargin,
			"stock_quantity":  entity.StockQuantity,
			"min_stock_level": entity.MinStockLevel,
			"unit":            entity.Unit,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrProductNotFound
	}

	return r.FindByID(ctx, p.ID)
}

// SoftDelete deactivates a product; historical sale items keep referencing it.
func (r *ProductRepository) SoftDelete(ctx context.Context, id int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ProductEntity{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *ProductRepository) List(ctx context.Context, f model.ProductFilter) ([]*model.Product, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&ProductEntity{}).Where("is_active = ?", true)

	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("name LIKE ? OR sku LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*ProductEntity
	if err := q.Preload("Category").Order("created_at DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toProductModels(entities), total, nil
}

// CheckAvailability verifies the product exists, is active and has at least
// qty units in stock. It takes no lock; DecrementStock re-verifies under one.
func (r *ProductRepository) CheckAvailability(ctx context.Context, productID int64, qty int) error {
	var entity ProductEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", productID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return err
	}
	if !entity.IsActive {
		return ErrProductInactive
	}
	if entity.StockQuantity < qty {
		return &InsufficientStockError{ProductName: entity.Name, Requested: qty, Available: entity.StockQuantity}
	}
	return nil
}

// DecrementStock atomically reduces stock by qty with automatic retry on
// transient conflicts. The balance can never go negative: the row is locked,
// re-checked, and the update is additionally guarded by stock_quantity >= qty.
func (r *ProductRepository) DecrementStock(ctx context.Context, productID int64, qty int) error {
	const maxRetries = 3
	const baseDelay = 2 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := r.decrementStockAttempt(ctx, productID, qty)

		if err == nil {
			return nil
		}

		// Don't retry on permanent errors
		var insufficient *InsufficientStockError
		if errors.Is(err, ErrProductNotFound) ||
			errors.Is(err, ErrProductInactive) ||
			errors.As(err, &insufficient) {
			return err
		}

		if attempt < maxRetries {
			delay := baseDelay * time.Duration(1<<attempt) // 2ms, 4ms, 8ms
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
	}

	return fmt.Errorf("%w: failed after %d attempts", ErrMaxRetriesExceeded, maxRetries+1)
}

func (r *ProductRepository) decrementStockAttempt(ctx context.Context, productID int64, qty int) error {
	var entity ProductEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", productID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return err
	}

	if !entity.IsActive {
		return ErrProductInactive
	}
	if entity.StockQuantity < qty {
		return &InsufficientStockError{ProductName: entity.Name, Requested: qty, Available: entity.StockQuantity}
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&ProductEntity{}).
		Where("id = ? AND stock_quantity >= ?", productID, qty).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}

	return nil
}

// RestoreStock is the inverse of DecrementStock, reserved for compensating a
// cancelled or reversed sale.
func (r *ProductRepository) RestoreStock(ctx context.Context, productID int64, qty int) error {
	var entity ProductEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", productID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return err
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&ProductEntity{}).
		Where("id = ?", productID).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// ListLowStock returns active products at or below their reorder threshold,
// most depleted first. Products with no threshold of their own use the
// configured fallback.
func (r *ProductRepository) ListLowStock(ctx context.Context, limit int) ([]*model.Product, error) {
	if limit <= 0 {
		limit = 10
	}
	var entities []*ProductEntity
	err := r.Read(ctx).WithContext(ctx).
		Preload("Category").
		Where("is_active = ? AND stock_quantity <= CASE WHEN min_stock_level > 0 THEN min_stock_level ELSE ? END", true, r.lowStockFallback).
		Order("stock_quantity ASC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toProductModels(entities), nil
}

func (r *ProductRepository) CountActive(ctx context.Context) (int64, error) {
	var total int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&ProductEntity{}).
		Where("is_active = ?", true).
		Count(&total).
		Error
	return total, err
}

func (r *ProductRepository) CountLowStock(ctx context.Context) (int64, error) {
	var total int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&ProductEntity{}).
		Where("is_active = ? AND stock_quantity <= CASE WHEN min_stock_level > 0 THEN min_stock_level ELSE ? END", true, r.lowStockFallback).
		Count(&total).
		Error
	return total, err
}
