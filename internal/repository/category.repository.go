package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/stockflow/stockflow/internal/model"
	"github.com/stockflow/stockflow/pkg/pg"
)

var ErrCategoryNotFound = errors.New("category not found")

type CategoryRepository struct {
	*pg.DB
}

func NewCategoryRepository(db *pg.DB) *CategoryRepository {
	return &CategoryRepository{
		db,
	}
}

func (r *CategoryRepository) Create(ctx context.Context, c *model.Category) (*model.Category, error) {
	entity := toCategoryEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toCategoryModel(entity), nil
}

func (r *CategoryRepository) FindByID(ctx context.Context, id int64) (*model.Category, error) {
	var entity CategoryEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return toCategoryModel(&entity), nil
}

func (r *CategoryRepository) List(ctx context.Context) ([]*model.Category, error) {
	var entities []*CategoryEntity
	err := r.Read(ctx).WithContext(ctx).
		Order("name ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toCategoryModels(entities), nil
}
