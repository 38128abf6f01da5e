package handlers

import (
	"context"
	"errors"

	"github.com/fasthttp/router"

	gateway "github.com/stockflow/stockflow/internal/gateways"
	"github.com/stockflow/stockflow/internal/services"
	xhttp "github.com/stockflow/stockflow/pkg/http"
	"github.com/stockflow/stockflow/pkg/logger"
)

type MpesaService interface {
	Initiate(ctx context.Context, saleID int64, phoneNumber string) (*services.InitiateResult, error)
	ResolveCallback(ctx context.Context, cb *gateway.STKCallback) error
	QueryStatus(ctx context.Context, saleID int64) (*services.PaymentStatusResult, error)
}

type PaymentHandler struct {
	svc MpesaService
}

func RegisterPaymentRoutes(e *router.Group, h *PaymentHandler) {
	e.POST("/payments/mpesa", h.InitiatePayment)
	e.POST("/payments/mpesa/callback", h.Callback)
	e.GET("/payments/mpesa/{saleID}/status", h.PaymentStatus)
}

func NewPaymentHandler(mpesaService MpesaService) *PaymentHandler {
	return &PaymentHandler{
		svc: mpesaService,
	}
}

type initiatePaymentRequest struct {
	SaleID      int64  `json:"sale_id"`
	PhoneNumber string `json:"phone_number"`
}

// callbackAck is the acknowledgement Daraja expects. Every callback is
// acked, including ones that fail to parse or resolve.
type callbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *PaymentHandler) InitiatePayment(ctx *xhttp.RequestCtx) {
	var req initiatePaymentRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	result, err := h.svc.Initiate(ctx, req.SaleID, req.PhoneNumber)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSaleNotFound):
			writeError(ctx, xhttp.StatusNotFound, err.Error())
		case errors.Is(err, services.ErrNotMpesaSale), errors.Is(err, services.ErrSaleNotPending):
			writeError(ctx, xhttp.StatusConflict, err.Error())
		case errors.Is(err, gateway.ErrInvalidPhone):
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
		case errors.Is(err, gateway.ErrProviderTimeout), errors.Is(err, gateway.ErrAuthFailed), errors.Is(err, gateway.ErrPushRejected):
			writeError(ctx, xhttp.StatusBadGateway, err.Error())
		default:
			writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(ctx, xhttp.StatusOK, result)
}

func (h *PaymentHandler) Callback(ctx *xhttp.RequestCtx) {
	ack := callbackAck{ResultCode: 0, ResultDesc: "Accepted"}

	var envelope gateway.CallbackEnvelope
	if err := readJSON(ctx, &envelope); err != nil {
		logger.Warn("Unparseable payment callback", "error", err)
		writeJSON(ctx, xhttp.StatusOK, ack)
		return
	}

	if err := h.svc.ResolveCallback(ctx, &envelope.Body.STKCallback); err != nil {
		logger.Error("Failed to resolve payment callback", "error", err, "checkout_request_id", envelope.Body.STKCallback.CheckoutRequestID)
	}

	writeJSON(ctx, xhttp.StatusOK, ack)
}

func (h *PaymentHandler) PaymentStatus(ctx *xhttp.RequestCtx) {
	saleID, err := pathInt64(ctx, "saleID")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid sale id")
		return
	}

	result, err := h.svc.QueryStatus(ctx, saleID)
	if err != nil {
		if errors.Is(err, services.ErrSaleNotFound) {
			writeError(ctx, xhttp.StatusNotFound, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, result)
}
