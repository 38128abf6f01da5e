package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	gateway "github.com/stockflow/stockflow/internal/gateways"
	"github.com/stockflow/stockflow/internal/model"
	"github.com/stockflow/stockflow/internal/repository"
)

type MockCatalogProductRepository struct {
	mock.Mock
}

func (m *MockCatalogProductRepository) Create(ctx context.Context, p *model.Product) (*model.Product, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockCatalogProductRepository) Update(ctx context.Context, p *model.Product) (*model.Product, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockCatalogProductRepository) SoftDelete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCatalogProductRepository) FindByID(ctx context.Context, id int64) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockCatalogProductRepository) List(ctx context.Context, f model.ProductFilter) ([]*model.Product, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Product), args.Get(1).(int64), args.Error(2)
}

func (m *MockCatalogProductRepository) ListLowStock(ctx context.Context, limit int) ([]*model.Product, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Product), args.Error(1)
}

type MockCategoryRepository struct {
	mock.Mock
}

func (m *MockCategoryRepository) Create(ctx context.Context, c *model.Category) (*model.Category, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Category), args.Error(1)
}

func (m *MockCategoryRepository) FindByID(ctx context.Context, id int64) (*model.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Category), args.Error(1)
}

func (m *MockCategoryRepository) List(ctx context.Context) ([]*model.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Category), args.Error(1)
}

func TestProductService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("computes margin and defaults", func(t *testing.T) {
		productRepo := new(MockCatalogProductRepository)
		categoryRepo := new(MockCategoryRepository)
		service := NewProductService(productRepo, categoryRepo)

		categoryRepo.On("FindByID", ctx, int64(1)).Return(&model.Category{ID: 1, Name: "Beverages"}, nil)
		productRepo.On("Create", ctx, mock.AnythingOfType("*model.Product")).Return(&model.Product{ID: 1}, nil).Run(func(args mock.Arguments) {
			p := args.Get(1).(*model.Product)
			// (50 - 30) / 30 * 100 = 66.67
			assert.True(t, p.ProfitMargin.Equal(decimal.NewFromFloat(66.67)), "margin %s", p.ProfitMargin)
			assert.Equal(t, "pcs", p.Unit)
			assert.True(t, p.IsActive)
		})

		_, err := service.Create(ctx, model.ProductCreateRequest{
			Name:          "Soda 500ml",
			SKU:           "BEV-001",
			CategoryID:    1,
			CostPrice:     decimal.NewFromInt(30),
			SellingPrice:  decimal.NewFromInt(50),
			StockQuantity: 10,
		})
		require.NoError(t, err)
		productRepo.AssertExpectations(t)
	})

	t.Run("unknown category", func(t *testing.T) {
		productRepo := new(MockCatalogProductRepository)
		categoryRepo := new(MockCategoryRepository)
		service := NewProductService(productRepo, categoryRepo)

		categoryRepo.On("FindByID", ctx, int64(9)).Return(nil, repository.ErrCategoryNotFound)

		_, err := service.Create(ctx, model.ProductCreateRequest{
			Name:         "Soda 500ml",
			SKU:          "BEV-001",
			CategoryID:   9,
			CostPrice:    decimal.NewFromInt(30),
			SellingPrice: decimal.NewFromInt(50),
		})
		assert.ErrorIs(t, err, ErrCategoryNotFound)
		productRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("invalid prices", func(t *testing.T) {
		service := NewProductService(new(MockCatalogProductRepository), new(MockCategoryRepository))

		_, err := service.Create(ctx, model.ProductCreateRequest{
			Name:         "Soda 500ml",
			SKU:          "BEV-001",
			CategoryID:   1,
			CostPrice:    decimal.NewFromInt(-5),
			SellingPrice: decimal.NewFromInt(50),
		})
		assert.Error(t, err)
	})
}

func TestProductService_Delete(t *testing.T) {
	productRepo := new(MockCatalogProductRepository)
	service := NewProductService(productRepo, new(MockCategoryRepository))
	ctx := context.Background()

	productRepo.On("SoftDelete", ctx, int64(1)).Return(nil)
	productRepo.On("SoftDelete", ctx, int64(9)).Return(repository.ErrProductNotFound)

	assert.NoError(t, service.Delete(ctx, 1))
	assert.ErrorIs(t, service.Delete(ctx, 9), ErrProductNotFound)
}

type MockCustomerRepositoryT struct {
	mock.Mock
}

func (m *MockCustomerRepositoryT) Create(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
}

func (m *MockCustomerRepositoryT) FindByID(ctx context.Context, id int64) (*model.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
}

func (m *MockCustomerRepositoryT) ListWithStats(ctx context.Context) ([]*model.CustomerWithStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.CustomerWithStats), args.Error(1)
}

func TestCustomerService_CreateNormalizesPhone(t *testing.T) {
	repo := new(MockCustomerRepositoryT)
	service := NewCustomerService(repo)
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*model.Customer")).Return(&model.Customer{ID: 1}, nil).Run(func(args mock.Arguments) {
		c := args.Get(1).(*model.Customer)
		assert.Equal(t, "254712345678", c.Phone)
	})

	_, err := service.Create(ctx, model.CustomerCreateRequest{
		Name:  "Jane Wanjiku",
		Phone: "0712345678",
	})
	require.NoError(t, err)

	_, err = service.Create(ctx, model.CustomerCreateRequest{
		Name:  "Bad Phone",
		Phone: "12345abcdef",
	})
	assert.ErrorIs(t, err, gateway.ErrInvalidPhone)
}
