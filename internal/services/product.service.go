package services

import (
	"context"
	"errors"

	"github.com/stockflow/stockflow/internal/model"
	"github.com/stockflow/stockflow/internal/repository"
	"github.com/stockflow/stockflow/pkg/logger"
)

var ErrCategoryNotFound = errors.New("category not found")

type CatalogProductRepository interface {
	Create(ctx context.Context, p *model.Product) (*model.Product, error)
	Update(ctx context.Context, p *model.Product) (*model.Product, error)
	SoftDelete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*model.Product, error)
	List(ctx context.Context, f model.ProductFilter) ([]*model.Product, int64, error)
	ListLowStock(ctx context.Context, limit int) ([]*model.Product, error)
}

type CategoryRepository interface {
	Create(ctx context.Context, c *model.Category) (*model.Category, error)
	FindByID(ctx context.Context, id int64) (*model.Category, error)
	List(ctx context.Context) ([]*model.Category, error)
}

type ProductService struct {
	productRepo  CatalogProductRepository
	categoryRepo CategoryRepository
}

func NewProductService(productRepo CatalogProductRepository, categoryRepo CategoryRepository) *ProductService {
	return &ProductService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
	}
}

func (s *ProductService) Create(ctx context.Context, p model.ProductCreateRequest) (*model.Product, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.categoryRepo.FindByID(ctx, p.CategoryID); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	unit := p.Unit
	if unit == "" {
		unit = "pcs"
	}

	product := &model.Product{
		Name:          p.Name,
		SKU:           p.SKU,
		CategoryID:    p.CategoryID,
		CostPrice:     p.CostPrice,
		SellingPrice:  p.SellingPrice,
		ProfitMargin:  p.Margin().Round(2),
		StockQuantity: p.StockQuantity,
		MinStockLevel: p.MinStockLevel,
		Unit:          unit,
		IsActive:      true,
		CreatedByID:   p.CreatedByID,
	}

	created, err := s.productRepo.Create(ctx, product)
	if err != nil {
		return nil, err
	}

	logger.Info("Product created", "sku", created.SKU, "name", created.Name, "stock", created.StockQuantity)

	return created, nil
}

func (s *ProductService) Update(ctx context.Context, id int64, p model.ProductCreateRequest) (*model.Product, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	if _, err := s.categoryRepo.FindByID(ctx, p.CategoryID); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	unit := p.Unit
	if unit == "" {
		unit = existing.Unit
	}

	updated, err := s.productRepo.Update(ctx, &model.Product{
		ID:            id,
		Name:          p.Name,
		SKU:           p.SKU,
		CategoryID:    p.CategoryID,
		CostPrice:     p.CostPrice,
		SellingPrice:  p.SellingPrice,
		ProfitMargin:  p.Margin().Round(2),
		StockQuantity: p.StockQuantity,
		MinStockLevel: p.MinStockLevel,
		Unit:          unit,
	})
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return updated, nil
}

func (s *ProductService) Delete(ctx context.Context, id int64) error {
	if err := s.productRepo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return ErrProductNotFound
		}
		return err
	}
	logger.Info("Product deactivated", "product_id", id)
	return nil
}

func (s *ProductService) Get(ctx context.Context, id int64) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *ProductService) List(ctx context.Context, f model.ProductFilter) ([]*model.Product, int64, error) {
	return s.productRepo.List(ctx, f)
}

func (s *ProductService) ListLowStock(ctx context.Context, limit int) ([]*model.Product, error) {
	return s.productRepo.ListLowStock(ctx, limit)
}

// Categories

func (s *ProductService) CreateCategory(ctx context.Context, p model.CategoryCreateRequest) (*model.Category, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.categoryRepo.Create(ctx, &model.Category{
		Name:        p.Name,
		Description: p.Description,
	})
}

func (s *ProductService) ListCategories(ctx context.Context) ([]*model.Category, error) {
	return s.categoryRepo.List(ctx)
}
