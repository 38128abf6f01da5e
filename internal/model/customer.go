package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     *string   `json:"email,omitempty"`
	Address   *string   `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CustomerWithStats carries aggregates derived from completed sales; they are
// computed at read time, never stored.
type CustomerWithStats struct {
	Customer
	TotalSpent decimal.Decimal `json:"total_spent"`
	OrderCount int64           `json:"order_count"`
}

type CustomerCreateRequest struct {
	Name    string
	Phone   string
	Email   *string
	Address *string
}

func (c CustomerCreateRequest) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	if len(c.Phone) < 10 {
		return errors.New("phone must have at least 10 digits")
	}
	return nil
}
