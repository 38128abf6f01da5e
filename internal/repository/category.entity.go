package repository

import (
	"time"

	"github.com/stockflow/stockflow/internal/model"
)

type CategoryEntity struct {
	ID          int64     `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	Name        string    `db:"name"        gorm:"column:name;not null;uniqueIndex"`
	Description *string   `db:"description" gorm:"column:description"`
	CreatedAt   time.Time `db:"created_at"  gorm:"column:created_at;autoCreateTime"`
}

func (CategoryEntity) TableName() string {
	return "categories"
}

func toCategoryEntity(m *model.Category) *CategoryEntity {
	if m == nil {
		return nil
	}
	return &CategoryEntity{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

func toCategoryModel(e *CategoryEntity) *model.Category {
	if e == nil {
		return nil
	}
	return &model.Category{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
}

func toCategoryModels(entities []*CategoryEntity) []*model.Category {
	if entities == nil {
		return nil
	}
	models := make([]*model.Category, len(entities))
	for i, e := range entities {
		models[i] = toCategoryModel(e)
	}
	return models
}
