package model

import (
	"errors"
	"time"
)

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type CategoryCreateRequest struct {
	Name        string
	Description *string
}

func (c CategoryCreateRequest) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}
