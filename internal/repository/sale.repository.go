package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/stockflow/stockflow/internal/model"
	"github.com/stockflow/stockflow/pkg/pg"
)

var ErrSaleNotFound = errors.New("sale not found")

type SaleRepository struct {
	*pg.DB
}

func NewSaleRepository(db *pg.DB) *SaleRepository {
	return &SaleRepository{
		db,
	}
}

func (r *SaleRepository) Create(ctx context.Context, sale *model.Sale) (*model.Sale, error) {
	entity := toSaleEntity(sale)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toSaleModel(entity), nil
}

func (r *SaleRepository) FindByID(ctx context.Context, id int64) (*model.Sale, error) {
	var entity SaleEntity
	err := r.Read(ctx).WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Preload("SoldBy").
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	return toSaleModel(&entity), nil
}

// FindByMpesaCode locates the sale a payment callback belongs to. Callbacks
// may carry either the checkout request ID or the final receipt number, so
// any of the given codes matches.
func (r *SaleRepository) FindByMpesaCode(ctx context.Context, codes ...string) (*model.Sale, error) {
	if len(codes) == 0 {
		return nil, ErrSaleNotFound
	}
	var entity SaleEntity
	err := r.Read(ctx).WithContext(ctx).
		Preload("Items").
		Where("mpesa_code IN ?", codes).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	return toSaleModel(&entity), nil
}

// SetMpesaCode stores the provider correlation ID on a sale after a push
// request is accepted.
func (r *SaleRepository) SetMpesaCode(ctx context.Context, saleID int64, code string) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&SaleEntity{}).
		Where("id = ?", saleID).
		Update("mpesa_code", code)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSaleNotFound
	}
	return nil
}

// UpdatePaymentStatusIfPending moves a sale out of PENDING exactly once.
// It reports false when the sale was already in a terminal state, which is
// how duplicate provider callbacks are detected.
func (r *SaleRepository) UpdatePaymentStatusIfPending(ctx context.Context, saleID int64, status model.PaymentStatus, mpesaCode *string) (bool, error) {
	updates := map[string]interface{}{
		"payment_status": string(status),
	}
	if mpesaCode != nil {
		updates["mpesa_code"] = *mpesaCode
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&SaleEntity{}).
		Where("id = ? AND payment_status = ?", saleID, string(model.PaymentStatusPending)).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *SaleRepository) List(ctx context.Context, f model.SaleFilter) ([]*model.Sale, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&SaleEntity{})

	if f.Status != nil {
		q = q.Where("payment_status = ?", string(*f.Status))
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
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

	order := "created_at ASC"
	if f.Desc {
		order = "created_at DESC"
	}

	var entities []*SaleEntity
	err := q.Preload("Items").
		Preload("Items.Product").
		Preload("SoldBy").
		Order(order).
		Limit(limit).
		Offset(offset).
		Find(&entities).
		Error
	if err != nil {
		return nil, 0, err
	}

	return toSaleModels(entities), total, nil
}

// ListCompletedBetween returns all completed sales in [from, to) with their
// items and product snapshots, for reporting.
func (r *SaleRepository) ListCompletedBetween(ctx context.Context, from, to time.Time) ([]*model.Sale, error) {
	var entities []*SaleEntity
	err := r.Read(ctx).WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Where("payment_status = ? AND created_at >= ? AND created_at < ?", string(model.PaymentStatusCompleted), from, to).
		Order("created_at ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toSaleModels(entities), nil
}

// Latest returns the n most recent sales regardless of status.
func (r *SaleRepository) Latest(ctx context.Context, n int) ([]*model.Sale, error) {
	if n <= 0 {
		n = 5
	}
	var entities []*SaleEntity
	err := r.Read(ctx).WithContext(ctx).
		Preload("Items").
		Order("created_at DESC").
		Limit(n).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toSaleModels(entities), nil
}

// SumCompletedBetween totals completed sale revenue in [from, to).
func (r *SaleRepository) SumCompletedBetween(ctx context.Context, from, to time.Time) (float64, int64, error) {
	type row struct {
		Total float64
		Count int64
	}
	var res row
	err := r.Read(ctx).WithContext(ctx).
		Model(&SaleEntity{}).
		Select("COALESCE(SUM(total), 0) AS total, COUNT(*) AS count").
		Where("payment_status = ? AND created_at >= ? AND created_at < ?", string(model.PaymentStatusCompleted), from, to).
		Scan(&res).
		Error
	if err != nil {
		return 0, 0, err
	}
	return res.Total, res.Count, nil
}
