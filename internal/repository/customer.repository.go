package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockflow/stockflow/internal/model"
	"github.com/stockflow/stockflow/pkg/pg"
)

var ErrCustomerNotFound = errors.New("customer not found")

type CustomerRepository struct {
	*pg.DB
}

func NewCustomerRepository(db *pg.DB) *CustomerRepository {
	return &CustomerRepository{
		db,
	}
}

func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	entity := toCustomerEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toCustomerModel(entity), nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, id int64) (*model.Customer, error) {
	var entity CustomerEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return toCustomerModel(&entity), nil
}

// ListWithStats returns customers newest first, each with spend aggregates
// over their completed sales.
func (r *CustomerRepository) ListWithStats(ctx context.Context) ([]*model.CustomerWithStats, error) {
	type row struct {
		CustomerEntity
		TotalSpent decimal.Decimal
		OrderCount int64
	}

	var rows []row
	err := r.Read(ctx).WithContext(ctx).
		Model(&CustomerEntity{}).
		Select("customers.*, COALESCE(SUM(s.total), 0) AS total_spent, COUNT(s.id) AS order_count").
		Joins("LEFT JOIN sales s ON s.customer_id = customers.id AND s.payment_status = ?", string(model.PaymentStatusCompleted)).
		Group("customers.id").
		Order("customers.created_at DESC").
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}

	out := make([]*model.CustomerWithStats, len(rows))
	for i, rec := range rows {
		out[i] = &model.CustomerWithStats{
			Customer:   *toCustomerModel(&rec.CustomerEntity),
			TotalSpent: rec.TotalSpent,
			OrderCount: rec.OrderCount,
		}
	}
	return out, nil
}

func (r *CustomerRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&CustomerEntity{}).
		Count(&total).
		Error
	return total, err
}
