package repository

import (
	"github.com/stockflow/stockflow/internal/model"
)

// UserEntity exists so sales can carry their creator; account management is
// out of scope.
type UserEntity struct {
	ID    int64  `db:"id"    gorm:"primaryKey;autoIncrement;column:id"`
	Name  string `db:"name"  gorm:"column:name;not null"`
	Email string `db:"email" gorm:"column:email;not null;uniqueIndex"`
}

func (UserEntity) TableName() string {
	return "users"
}

func toUserModel(e *UserEntity) *model.User {
	if e == nil {
		return nil
	}
	return &model.User{
		ID:    e.ID,
		Name:  e.Name,
		Email: e.Email,
	}
}
