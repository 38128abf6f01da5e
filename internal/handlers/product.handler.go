package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow/internal/model"
	"github.com/stockflow/stockflow/internal/services"
	xhttp "github.com/stockflow/stockflow/pkg/http"
)

type ProductService interface {
	Create(ctx context.Context, p model.ProductCreateRequest) (*model.Product, error)
	Update(ctx context.Context, id int64, p model.ProductCreateRequest) (*model.Product, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*model.Product, error)
	List(ctx context.Context, f model.ProductFilter) ([]*model.Product, int64, error)
	ListLowStock(ctx context.Context, limit int) ([]*model.Product, error)
	CreateCategory(ctx context.Context, p model.CategoryCreateRequest) (*model.Category, error)
	ListCategories(ctx context.Context) ([]*model.Category, error)
}

type ProductHandler struct {
	svc ProductService
}

func RegisterProductRoutes(e *router.Group, h *ProductHandler) {
	e.POST("/products", h.CreateProduct)
	e.GET("/products", h.ListProducts)
	e.GET("/products/low-stock", h.ListLowStock)
	e.GET("/products/{id}", h.GetProduct)
	e.PATCH("/products/{id}", h.UpdateProduct)
	e.DELETE("/products/{id}", h.DeleteProduct)

	e.POST("/categories", h.CreateCategory)
	e.GET("/categories", h.ListCategories)
}

func NewProductHandler(productService ProductService) *ProductHandler {
	return &ProductHandler{
		svc: productService,
	}
}

type productRequest struct {
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	CategoryID    int64           `json:"category_id"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	StockQuantity int             `json:"stock_quantity"`
	MinStockLevel int             `json:"min_stock_level"`
	Unit          string          `json:"unit"`
	CreatedByID   *int64          `json:"created_by_id"`
}

type categoryRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type productListResponse struct {
	Items []*model.Product `json:"items"`
	Total int64            `json:"total"`
}

func (r productRequest) toModel() model.ProductCreateRequest {
	return model.ProductCreateRequest{
		Name:          r.Name,
		SKU:           r.SKU,
		CategoryID:    r.CategoryID,
		CostPrice:     r.CostPrice,
		SellingPrice:  r.SellingPrice,
		StockQuantity: r.StockQuantity,
		MinStockLevel: r.MinStockLevel,
		Unit:          r.Unit,
		CreatedByID:   r.CreatedByID,
	}
}

/* --------------------------------- Routes ----------------------------------- */

func (h *ProductHandler) CreateProduct(ctx *xhttp.RequestCtx) {
	var req productRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	product, err := h.svc.Create(ctx, req.toModel())
	if err != nil {
		if errors.Is(err, services.ErrCategoryNotFound) {
			writeError(ctx, xhttp.StatusNotFound, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, product)
}

func (h *ProductHandler) UpdateProduct(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid product id")
		return
	}

	var req productRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	product, err := h.svc.Update(ctx, id, req.toModel())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrProductNotFound), errors.Is(err, services.ErrCategoryNotFound):
			writeError(ctx, xhttp.StatusNotFound, err.Error())
		default:
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(ctx, xhttp.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.svc.Delete(ctx, id); err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			writeError(ctx, xhttp.StatusNotFound, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]string{"status": "deleted"})
}

func (h *ProductHandler) GetProduct(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.svc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrProductNotFound) {
			writeError(ctx, xhttp.StatusNotFound, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, product)
}

func (h *ProductHandler) ListProducts(ctx *xhttp.RequestCtx) {
	var f model.ProductFilter

	f.Search = query(ctx, "search")
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, productListResponse{Items: items, Total: total})
}

func (h *ProductHandler) ListLowStock(ctx *xhttp.RequestCtx) {
	limit := 0
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			limit = n
		}
	}

	items, err := h.svc.ListLowStock(ctx, limit)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, items)
}

func (h *ProductHandler) CreateCategory(ctx *xhttp.RequestCtx) {
	var req categoryRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	category, err := h.svc.CreateCategory(ctx, model.CategoryCreateRequest{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, category)
}

func (h *ProductHandler) ListCategories(ctx *xhttp.RequestCtx) {
	categories, err := h.svc.ListCategories(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, categories)
}
