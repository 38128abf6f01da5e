package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// StoreSettings is a single configuration record used for receipt rendering
// and display; it is not part of the transactional core and tolerates a
// cached, slightly stale read.
type StoreSettings struct {
	ID            int64           `json:"id"`
	StoreName     string          `json:"store_name"`
	StoreEmail    *string         `json:"store_email,omitempty"`
	StorePhone    *string         `json:"store_phone,omitempty"`
	StoreAddress  *string         `json:"store_address,omitempty"`
	Currency      string          `json:"currency"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	ReceiptFooter *string         `json:"receipt_footer,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type StoreSettingsUpdateRequest struct {
	StoreName     string
	StoreEmail    *string
	StorePhone    *string
	StoreAddress  *string
	Currency      string
	TaxRate       decimal.Decimal
	ReceiptFooter *string
}

func (s StoreSettingsUpdateRequest) Validate() error {
	if s.StoreName == "" {
		return errors.New("store_name is required")
	}
	if s.TaxRate.IsNegative() || s.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return errors.New("tax_rate must be between 0 and 100")
	}
	return nil
}
