package services

import (
	"context"
	"errors"

	gateway "github.com/stockflow/stockflow/internal/gateways"
	"github.com/stockflow/stockflow/internal/model"
	"github.com/stockflow/stockflow/internal/repository"
)

var ErrCustomerNotFound = errors.New("customer not found")

type CustomerRepository interface {
	Create(ctx context.Context, c *model.Customer) (*model.Customer, error)
	FindByID(ctx context.Context, id int64) (*model.Customer, error)
	ListWithStats(ctx context.Context) ([]*model.CustomerWithStats, error)
}

type CustomerService struct {
	customerRepo CustomerRepository
}

func NewCustomerService(customerRepo CustomerRepository) *CustomerService {
	return &CustomerService{
		customerRepo: customerRepo,
	}
}

func (s *CustomerService) Create(ctx context.Context, p model.CustomerCreateRequest) (*model.Customer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	// phone is stored canonical so lookups and payment pushes agree
	phone, err := gateway.NormalizePhone(p.Phone)
	if err != nil {
		return nil, err
	}

	return s.customerRepo.Create(ctx, &model.Customer{
		Name:    p.Name,
		Phone:   phone,
		Email:   p.Email,
		Address: p.Address,
	})
}

func (s *CustomerService) Get(ctx context.Context, id int64) (*model.Customer, error) {
	customer, err := s.customerRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return customer, nil
}

func (s *CustomerService) List(ctx context.Context) ([]*model.CustomerWithStats, error) {
	return s.customerRepo.ListWithStats(ctx)
}
