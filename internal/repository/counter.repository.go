package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stockflow/stockflow/pkg/pg"
)

const SaleNumberCounter = "sale_number"

type CounterRepository struct {
	*pg.DB
}

func NewCounterRepository(db *pg.DB) *CounterRepository {
	return &CounterRepository{
		db,
	}
}

// Next increments the named counter and returns the new value. The row is
// locked for the remainder of the ambient transaction, so concurrent callers
// serialize here and a rollback releases the number.
func (r *CounterRepository) Next(ctx context.Context, name string) (int64, error) {
	// the row must exist before the lock is taken; two concurrent first
	// users would otherwise race on a plain insert
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&CounterEntity{Name: name}).
		Error
	if err != nil {
		return 0, err
	}

	var entity CounterEntity
	err = r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", name).
		First(&entity).
		Error
	if err != nil {
		return 0, err
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&CounterEntity{}).
		Where("name = ?", name).
		Update("value", gorm.Expr("value + 1"))
	if result.Error != nil {
		return 0, result.Error
	}

	return entity.Value + 1, nil
}
