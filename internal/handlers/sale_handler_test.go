package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/stockflow/stockflow/internal/model"
	"github.com/stockflow/stockflow/internal/services"
	xhttp "github.com/stockflow/stockflow/pkg/http"
)

type MockSaleService struct {
	mock.Mock
}

func (m *MockSaleService) Create(ctx context.Context, p model.SaleCreateRequest) (*model.Sale, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Sale), args.Error(1)
}

func (m *MockSaleService) Get(ctx context.Context, id int64) (*model.Sale, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Sale), args.Error(1)
}

func (m *MockSaleService) List(ctx context.Context, f model.SaleFilter) ([]*model.Sale, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Sale), args.Get(1).(int64), args.Error(2)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func TestSaleHandler_CreateSale(t *testing.T) {
	t.Run("successful sale creation", func(t *testing.T) {
		svc := new(MockSaleService)
		handler := NewSaleHandler(svc)

		reqBody := createSaleRequest{
			Items: []saleItemRequest{
				{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(100)},
			},
			PaymentMethod: "CASH",
			SoldByID:      1,
		}
		bodyBytes, _ := json.Marshal(reqBody)

		svc.On("Create", mock.Anything, mock.MatchedBy(func(p model.SaleCreateRequest) bool {
			return len(p.Items) == 1 && p.PaymentMethod == model.PaymentMethodCash
		})).Return(&model.Sale{
			ID:            1,
			SaleNumber:    "SL000001",
			PaymentStatus: model.PaymentStatusCompleted,
		}, nil)

		ctx := setupTestContext("POST", "/api/v1/sales", bodyBytes)
		handler.CreateSale(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var response model.Sale
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, "SL000001", response.SaleNumber)

		svc.AssertExpectations(t)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		handler := NewSaleHandler(new(MockSaleService))

		ctx := setupTestContext("POST", "/api/v1/sales", []byte("not json"))
		handler.CreateSale(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())

		var response map[string]string
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Contains(t, response["error"], "invalid JSON")
	})

	t.Run("insufficient stock is a 422", func(t *testing.T) {
		svc := new(MockSaleService)
		handler := NewSaleHandler(svc)

		reqBody := createSaleRequest{
			Items: []saleItemRequest{
				{ProductID: 1, Quantity: 50, UnitPrice: decimal.NewFromInt(100)},
			},
			PaymentMethod: "CASH",
			SoldByID:      1,
		}
		bodyBytes, _ := json.Marshal(reqBody)

		svc.On("Create", mock.Anything, mock.Anything).Return(nil, services.ErrInsufficientStock)

		ctx := setupTestContext("POST", "/api/v1/sales", bodyBytes)
		handler.CreateSale(ctx)

		assert.Equal(t, 422, ctx.Response.StatusCode())
	})

	t.Run("unknown product is a 404", func(t *testing.T) {
		svc := new(MockSaleService)
		handler := NewSaleHandler(svc)

		reqBody := createSaleRequest{
			Items: []saleItemRequest{
				{ProductID: 999, Quantity: 1, UnitPrice: decimal.NewFromInt(100)},
			},
			PaymentMethod: "CASH",
			SoldByID:      1,
		}
		bodyBytes, _ := json.Marshal(reqBody)

		svc.On("Create", mock.Anything, mock.Anything).Return(nil, services.ErrProductNotFound)

		ctx := setupTestContext("POST", "/api/v1/sales", bodyBytes)
		handler.CreateSale(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})
}

func TestSaleHandler_GetSale(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockSaleService)
		handler := NewSaleHandler(svc)

		svc.On("Get", mock.Anything, int64(1)).Return(&model.Sale{ID: 1, SaleNumber: "SL000001"}, nil)

		ctx := setupTestContext("GET", "/api/v1/sales/1", nil)
		ctx.SetUserValue("id", "1")
		handler.GetSale(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockSaleService)
		handler := NewSaleHandler(svc)

		svc.On("Get", mock.Anything, int64(99)).Return(nil, services.ErrSaleNotFound)

		ctx := setupTestContext("GET", "/api/v1/sales/99", nil)
		ctx.SetUserValue("id", "99")
		handler.GetSale(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("invalid id", func(t *testing.T) {
		handler := NewSaleHandler(new(MockSaleService))

		ctx := setupTestContext("GET", "/api/v1/sales/abc", nil)
		ctx.SetUserValue("id", "abc")
		handler.GetSale(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestSaleHandler_ListSales(t *testing.T) {
	svc := new(MockSaleService)
	handler := NewSaleHandler(svc)

	svc.On("List", mock.Anything, mock.MatchedBy(func(f model.SaleFilter) bool {
		return f.Status != nil && *f.Status == model.PaymentStatusPending && f.Limit == 10 && f.Desc
	})).Return([]*model.Sale{{ID: 1}}, int64(1), nil)

	ctx := setupTestContext("GET", "/api/v1/sales?status=pending&limit=10&order=desc", nil)
	handler.ListSales(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response saleListResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Equal(t, int64(1), response.Total)
	assert.Len(t, response.Items, 1)

	svc.AssertExpectations(t)
}
