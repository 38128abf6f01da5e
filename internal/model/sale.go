package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodMpesa        PaymentMethod = "MPESA"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodMpesa, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// PaymentStatus is the settlement state of a sale. MPESA sales start PENDING
// and move to COMPLETED or FAILED exactly once; CASH and BANK_TRANSFER sales
// are created COMPLETED.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

type Sale struct {
	ID            int64           `json:"id"`
	SaleNumber    string          `json:"sale_number"`
	CustomerID    *int64          `json:"customer_id,omitempty"`
	Items         []*SaleItem     `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	MpesaCode     *string         `json:"mpesa_code,omitempty"`
	Notes         *string         `json:"notes,omitempty"`
	SoldByID      int64           `json:"sold_by_id"`
	SoldBy        *User           `json:"sold_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SaleItem snapshots the unit price at the time of sale; later product price
// changes do not affect it.
type SaleItem struct {
	ID        int64           `json:"id"`
	SaleID    int64           `json:"sale_id"`
	ProductID int64           `json:"product_id"`
	Product   *Product        `json:"product,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type SaleItemInput struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// SaleCreateRequest is the input for creating a sale.
type SaleCreateRequest struct {
	Items         []SaleItemInput
	PaymentMethod PaymentMethod
	Discount      decimal.Decimal
	CustomerID    *int64
	Notes         *string
	SoldByID      int64
}

func (p SaleCreateRequest) Validate() error {
	if len(p.Items) == 0 {
		return errors.New("items must not be empty")
	}
	for i, item := range p.Items {
		if item.ProductID == 0 {
			return fmt.Errorf("items[%d]: product_id is required", i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("items[%d]: quantity must be a positive integer", i)
		}
		if !item.UnitPrice.IsPositive() {
			return fmt.Errorf("items[%d]: unit_price must be positive", i)
		}
	}
	if !p.PaymentMethod.Valid() {
		return fmt.Errorf("payment_method %q is not one of CASH, MPESA, BANK_TRANSFER", p.PaymentMethod)
	}
	if p.Discount.IsNegative() {
		return errors.New("discount must not be negative")
	}
	return nil
}

// Subtotal sums quantity × unit price over all line items.
func (p SaleCreateRequest) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range p.Items {
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}

// Total applies the discount, floored at zero.
func (p SaleCreateRequest) Total() decimal.Decimal {
	total := p.Subtotal().Sub(p.Discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// SaleFilter controls sale listing.
type SaleFilter struct {
	Status *PaymentStatus
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
	Desc   bool
}
