package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow/internal/model"
	"github.com/stockflow/stockflow/internal/repository"
	"github.com/stockflow/stockflow/pkg/logger"
	"github.com/stockflow/stockflow/pkg/prom"
)

var (
	ErrSaleNotFound      = errors.New("sale not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrProductInactive   = errors.New("product is not active")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type SaleRepository interface {
	Create(ctx context.Context, sale *model.Sale) (*model.Sale, error)
	FindByID(ctx context.Context, id int64) (*model.Sale, error)
	List(ctx context.Context, f model.SaleFilter) ([]*model.Sale, int64, error)
}

type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Product, error)
	DecrementStock(ctx context.Context, productID int64, qty int) error
}

type CounterRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}

// TxRunner runs a function inside a single database transaction.
type TxRunner interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type SaleService struct {
	saleRepo    SaleRepository
	productRepo ProductRepository
	counterRepo CounterRepository
	tx          TxRunner
}

func NewSaleService(saleRepo SaleRepository, productRepo ProductRepository, counterRepo CounterRepository, tx TxRunner) *SaleService {
	return &SaleService{
		saleRepo:    saleRepo,
		productRepo: productRepo,
		counterRepo: counterRepo,
		tx:          tx,
	}
}

// Create records a sale: the stock decrements, sale number allocation and the
// sale row all commit or roll back as one unit. MPESA sales start PENDING and
// settle later through the payment callback; CASH and BANK_TRANSFER sales are
// complete immediately.
func (s *SaleService) Create(ctx context.Context, p model.SaleCreateRequest) (*model.Sale, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	status := model.PaymentStatusCompleted
	if p.PaymentMethod == model.PaymentMethodMpesa {
		status = model.PaymentStatusPending
	}

	var created *model.Sale
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		items := make([]*model.SaleItem, 0, len(p.Items))
		for _, input := range p.Items {
			if err := s.productRepo.DecrementStock(ctx, input.ProductID, input.Quantity); err != nil {
				return mapStockError(err)
			}
			items = append(items, &model.SaleItem{
				ProductID: input.ProductID,
				Quantity:  input.Quantity,
				UnitPrice: input.UnitPrice,
				Subtotal:  input.UnitPrice.Mul(decimal.NewFromInt(int64(input.Quantity))),
			})
		}

		seq, err := s.counterRepo.Next(ctx, repository.SaleNumberCounter)
		if err != nil {
			return fmt.Errorf("allocate sale number: %w", err)
		}

		sale := &model.Sale{
			SaleNumber:    fmt.Sprintf("SL%06d", seq),
			CustomerID:    p.CustomerID,
			Items:         items,
			Subtotal:      p.Subtotal(),
			Discount:      p.Discount,
			Total:         p.Total(),
			PaymentMethod: p.PaymentMethod,
			PaymentStatus: status,
			Notes:         p.Notes,
			SoldByID:      p.SoldByID,
		}

		created, err = s.saleRepo.Create(ctx, sale)
		if err != nil {
			return fmt.Errorf("create sale: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	prom.IncSaleCreated(string(created.PaymentMethod))
	logger.Info("Sale created", "sale_number", created.SaleNumber, "total", created.Total.String(), "payment_method", string(created.PaymentMethod), "payment_status", string(created.PaymentStatus))

	return created, nil
}

func (s *SaleService) Get(ctx context.Context, id int64) (*model.Sale, error) {
	sale, err := s.saleRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSaleNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	return sale, nil
}

func (s *SaleService) List(ctx context.Context, f model.SaleFilter) ([]*model.Sale, int64, error) {
	return s.saleRepo.List(ctx, f)
}

func mapStockError(err error) error {
	var insufficient *repository.InsufficientStockError
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		return ErrProductNotFound
	case errors.Is(err, repository.ErrProductInactive):
		return ErrProductInactive
	case errors.As(err, &insufficient):
		return fmt.Errorf("%w: %s (requested %d, available %d)", ErrInsufficientStock, insufficient.ProductName, insufficient.Requested, insufficient.Available)
	}
	return fmt.Errorf("decrement stock: %w", err)
}
