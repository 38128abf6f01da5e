package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow/internal/model"
)

type SaleEntity struct {
	ID            int64             `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	SaleNumber    string            `db:"sale_number"    gorm:"column:sale_number;not null;uniqueIndex"`
	CustomerID    *int64            `db:"customer_id"    gorm:"column:customer_id;index"`
	Items         []*SaleItemEntity `gorm:"foreignKey:SaleID"`
	Subtotal      decimal.Decimal   `db:"subtotal"       gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discount      decimal.Decimal   `db:"discount"       gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	Total         decimal.Decimal   `db:"total"          gorm:"column:total;type:numeric(12,2);not null"`
	PaymentMethod string            `db:"payment_method" gorm:"column:payment_method;not null"`
	PaymentStatus string            `db:"payment_status" gorm:"column:payment_status;not null;index"`
	MpesaCode     *string           `db:"mpesa_code"     gorm:"column:mpesa_code;index"`
	Notes         *string           `db:"notes"          gorm:"column:notes"`
	SoldByID      int64             `db:"sold_by_id"     gorm:"column:sold_by_id;not null"`
	SoldBy        *UserEntity       `gorm:"foreignKey:SoldByID"`
	CreatedAt     time.Time         `db:"created_at"     gorm:"column:created_at;autoCreateTime;index"`
}

func (SaleEntity) TableName() string {
	return "sales"
}

type SaleItemEntity struct {
	ID        int64           `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	SaleID    int64           `db:"sale_id"    gorm:"column:sale_id;not null;index"`
	ProductID int64           `db:"product_id" gorm:"column:product_id;not null;index"`
	Product   *ProductEntity  `gorm:"foreignKey:ProductID"`
	Quantity  int             `db:"quantity"   gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `db:"unit_price" gorm:"column:unit_price;type:numeric(12,2);not null"`
	Subtotal  decimal.Decimal `db:"subtotal"   gorm:"column:subtotal;type:numeric(12,2);not null"`
}

func (SaleItemEntity) TableName() string {
	return "sale_items"
}

func toSaleEntity(m *model.Sale) *SaleEntity {
	if m == nil {
		return nil
	}
	e := &SaleEntity{
		ID:            m.ID,
		SaleNumber:    m.SaleNumber,
		CustomerID:    m.CustomerID,
		Subtotal:      m.Subtotal,
		Discount:      m.Discount,
		Total:         m.Total,
		PaymentMethod: string(m.PaymentMethod),
		PaymentStatus: string(m.PaymentStatus),
		MpesaCode:     m.MpesaCode,
		Notes:         m.Notes,
		SoldByID:      m.SoldByID,
		CreatedAt:     m.CreatedAt,
	}
	for _, item := range m.Items {
		e.Items = append(e.Items, toSaleItemEntity(item))
	}
	return e
}

func toSaleItemEntity(m *model.SaleItem) *SaleItemEntity {
	if m == nil {
		return nil
	}
	return &SaleItemEntity{
		ID:        m.ID,
		SaleID:    m.SaleID,
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		UnitPrice: m.UnitPrice,
		Subtotal:  m.Subtotal,
	}
}

func toSaleModel(e *SaleEntity) *model.Sale {
	if e == nil {
		return nil
	}
	m := &model.Sale{
		ID:            e.ID,
		SaleNumber:    e.SaleNumber,
		CustomerID:    e.CustomerID,
		Subtotal:      e.Subtotal,
		Discount:      e.Discount,
		Total:         e.Total,
		PaymentMethod: model.PaymentMethod(e.PaymentMethod),
		PaymentStatus: model.PaymentStatus(e.PaymentStatus),
		MpesaCode:     e.MpesaCode,
		Notes:         e.Notes,
		SoldByID:      e.SoldByID,
		SoldBy:        toUserModel(e.SoldBy),
		CreatedAt:     e.CreatedAt,
	}
	for _, item := range e.Items {
		m.Items = append(m.Items, toSaleItemModel(item))
	}
	return m
}

func toSaleItemModel(e *SaleItemEntity) *model.SaleItem {
	if e == nil {
		return nil
	}
	return &model.SaleItem{
		ID:        e.ID,
		SaleID:    e.SaleID,
		ProductID: e.ProductID,
		Product:   toProductModel(e.Product),
		Quantity:  e.Quantity,
		UnitPrice: e.UnitPrice,
		Subtotal:  e.Subtotal,
	}
}

func toSaleModels(entities []*SaleEntity) []*model.Sale {
	if entities == nil {
		return nil
	}
	models := make([]*model.Sale, len(entities))
	for i, e := range entities {
		models[i] = toSaleModel(e)
	}
	return models
}
