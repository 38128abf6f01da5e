package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow/internal/model"
	"github.com/stockflow/stockflow/internal/services"
	xhttp "github.com/stockflow/stockflow/pkg/http"
)

type SaleService interface {
	Create(ctx context.Context, p model.SaleCreateRequest) (*model.Sale, error)
	Get(ctx context.Context, id int64) (*model.Sale, error)
	List(ctx context.Context, f model.SaleFilter) ([]*model.Sale, int64, error)
}

type SaleHandler struct {
	svc SaleService
}

func RegisterSaleRoutes(e *router.Group, h *SaleHandler) {
	e.POST("/sales", h.CreateSale)
	e.GET("/sales", h.ListSales)
	e.GET("/sales/{id}", h.GetSale)
}

func NewSaleHandler(saleService SaleService) *SaleHandler {
	return &SaleHandler{
		svc: saleService,
	}
}

type saleItemRequest struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type createSaleRequest struct {
	Items         []saleItemRequest `json:"items"`
	PaymentMethod string            `json:"payment_method"`
	Discount      decimal.Decimal   `json:"discount"`
	CustomerID    *int64            `json:"customer_id"`
	Notes         *string           `json:"notes"`
	SoldByID      int64             `json:"sold_by_id"`
}

type saleListResponse struct {
	Items []*model.Sale `json:"items"`
	Total int64         `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *SaleHandler) CreateSale(ctx *xhttp.RequestCtx) {
	var req createSaleRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	p := model.SaleCreateRequest{
		PaymentMethod: model.PaymentMethod(req.PaymentMethod),
		Discount:      req.Discount,
		CustomerID:    req.CustomerID,
		Notes:         req.Notes,
		SoldByID:      req.SoldByID,
	}
	for _, item := range req.Items {
		p.Items = append(p.Items, model.SaleItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	sale, err := h.svc.Create(ctx, p)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrProductNotFound):
			writeError(ctx, xhttp.StatusNotFound, err.Error())
		case errors.Is(err, services.ErrInsufficientStock), errors.Is(err, services.ErrProductInactive):
			writeError(ctx, xhttp.StatusUnprocessableEntity, err.Error())
		default:
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, sale)
}

func (h *SaleHandler) GetSale(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid sale id")
		return
	}

	sale, err := h.svc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrSaleNotFound) {
			writeError(ctx, xhttp.StatusNotFound, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, sale)
}

func (h *SaleHandler) ListSales(ctx *xhttp.RequestCtx) {
	var f model.SaleFilter

	if v := query(ctx, "status"); v != "" {
		status := model.PaymentStatus(strings.ToUpper(v))
		f.Status = &status
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
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
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, saleListResponse{Items: items, Total: total})
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, ok := ctx.UserValue(name).(string)
	if !ok {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(v, 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
