package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow/internal/model"
	xhttp "github.com/stockflow/stockflow/pkg/http"
)

type SettingsService interface {
	Get(ctx context.Context) (*model.StoreSettings, error)
	Update(ctx context.Context, p model.StoreSettingsUpdateRequest) (*model.StoreSettings, error)
}

type SettingsHandler struct {
	svc SettingsService
}

func RegisterSettingsRoutes(e *router.Group, h *SettingsHandler) {
	e.GET("/settings/store", h.GetSettings)
	e.PATCH("/settings/store", h.UpdateSettings)
}

func NewSettingsHandler(settingsService SettingsService) *SettingsHandler {
	return &SettingsHandler{
		svc: settingsService,
	}
}

type settingsRequest struct {
	StoreName     string          `json:"store_name"`
	StoreEmail    *string         `json:"store_email"`
	StorePhone    *string         `json:"store_phone"`
	StoreAddress  *string         `json:"store_address"`
	Currency      string          `json:"currency"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	ReceiptFooter *string         `json:"receipt_footer"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *SettingsHandler) GetSettings(ctx *xhttp.RequestCtx) {
	settings, err := h.svc.Get(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, settings)
}

func (h *SettingsHandler) UpdateSettings(ctx *xhttp.RequestCtx) {
	var req settingsRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	settings, err := h.svc.Update(ctx, model.StoreSettingsUpdateRequest{
		StoreName:     req.StoreName,
		StoreEmail:    req.StoreEmail,
		StorePhone:    req.StorePhone,
		StoreAddress:  req.StoreAddress,
		Currency:      req.Currency,
		TaxRate:       req.TaxRate,
		ReceiptFooter: req.ReceiptFooter,
	})
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, settings)
}
