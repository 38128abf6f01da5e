package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	gateway "github.com/stockflow/stockflow/internal/gateways"
	"github.com/stockflow/stockflow/internal/model"
	"github.com/stockflow/stockflow/internal/repository"
	"github.com/stockflow/stockflow/pkg/logger"
	"github.com/stockflow/stockflow/pkg/prom"
)

var (
	ErrSaleNotPending = errors.New("sale is not awaiting payment")
	ErrNotMpesaSale   = errors.New("sale is not an mpesa sale")
)

type DarajaGateway interface {
	STKPush(ctx context.Context, push *gateway.STKPushRequest) (*gateway.STKPushResponse, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*gateway.STKQueryResponse, error)
}

type PaymentSaleRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Sale, error)
	FindByMpesaCode(ctx context.Context, codes ...string) (*model.Sale, error)
	SetMpesaCode(ctx context.Context, saleID int64, code string) error
	UpdatePaymentStatusIfPending(ctx context.Context, saleID int64, status model.PaymentStatus, mpesaCode *string) (bool, error)
}

// InitiateResult reports what the provider answered to a push request.
type InitiateResult struct {
	SaleID            int64  `json:"sale_id"`
	CheckoutRequestID string `json:"checkout_request_id"`
	MerchantRequestID string `json:"merchant_request_id"`
	CustomerMessage   string `json:"customer_message"`
}

// PaymentStatusResult is the answer to a status poll, optionally enriched
// with the provider's own description when the sale is still pending.
type PaymentStatusResult struct {
	SaleID     int64               `json:"sale_id"`
	SaleNumber string              `json:"sale_number"`
	Status     model.PaymentStatus `json:"status"`
	MpesaCode  *string             `json:"mpesa_code,omitempty"`
	ResultDesc string              `json:"result_desc,omitempty"`
}

// MpesaService drives the push-then-callback payment flow. Sales move out of
// PENDING exactly once; whichever signal arrives first, callback or status
// query, wins and later ones are ignored.
type MpesaService struct {
	saleRepo PaymentSaleRepository
	daraja   DarajaGateway
}

func NewMpesaService(saleRepo PaymentSaleRepository, daraja DarajaGateway) *MpesaService {
	return &MpesaService{
		saleRepo: saleRepo,
		daraja:   daraja,
	}
}

// Initiate pushes a payment prompt for a pending MPESA sale and stores the
// returned correlation ID so the callback can find the sale.
func (s *MpesaService) Initiate(ctx context.Context, saleID int64, phoneNumber string) (*InitiateResult, error) {
	sale, err := s.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		if errors.Is(err, repository.ErrSaleNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}

	if sale.PaymentMethod != model.PaymentMethodMpesa {
		return nil, ErrNotMpesaSale
	}
	if sale.PaymentStatus != model.PaymentStatusPending {
		return nil, ErrSaleNotPending
	}

	start := time.Now()
	resp, err := s.daraja.STKPush(ctx, &gateway.STKPushRequest{
		PhoneNumber:      phoneNumber,
		Amount:           sale.Total,
		AccountReference: sale.SaleNumber,
		TransactionDesc:  "Payment for sale " + sale.SaleNumber,
	})
	prom.ObserveStkPushDuration(time.Since(start).Seconds())
	if err != nil {
		prom.IncStkPush("rejected")
		return nil, err
	}
	prom.IncStkPush("accepted")

	if err := s.saleRepo.SetMpesaCode(ctx, sale.ID, resp.CheckoutRequestID); err != nil {
		return nil, fmt.Errorf("store checkout request id: %w", err)
	}

	logger.Info("Payment initiated", "sale_number", sale.SaleNumber, "checkout_request_id", resp.CheckoutRequestID)

	return &InitiateResult{
		SaleID:            sale.ID,
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

// ResolveCallback settles a sale from a provider callback. Unknown sales and
// duplicate callbacks are logged and swallowed; the provider is always acked
// so it stops retrying. Only infrastructure failures surface as errors.
func (s *MpesaService) ResolveCallback(ctx context.Context, cb *gateway.STKCallback) error {
	sale, err := s.saleRepo.FindByMpesaCode(ctx, cb.CheckoutRequestID, cb.MerchantRequestID)
	if err != nil {
		if errors.Is(err, repository.ErrSaleNotFound) {
			prom.IncCallbackResolved("unknown_sale")
			logger.Warn("Callback for unknown sale", "checkout_request_id", cb.CheckoutRequestID, "result_code", cb.ResultCode)
			return nil
		}
		return err
	}

	if cb.Success() {
		receipt, ok := cb.ReceiptNumber()
		if !ok {
			receipt = cb.CheckoutRequestID
		}
		applied, err := s.saleRepo.UpdatePaymentStatusIfPending(ctx, sale.ID, model.PaymentStatusCompleted, &receipt)
		if err != nil {
			return err
		}
		if !applied {
			prom.IncCallbackResolved("duplicate")
			logger.Info("Duplicate callback ignored", "sale_number", sale.SaleNumber, "payment_status", string(sale.PaymentStatus))
			return nil
		}
		prom.IncCallbackResolved("completed")
		logger.Info("Payment completed", "sale_number", sale.SaleNumber, "receipt", receipt)
		return nil
	}

	applied, err := s.saleRepo.UpdatePaymentStatusIfPending(ctx, sale.ID, model.PaymentStatusFailed, nil)
	if err != nil {
		return err
	}
	if !applied {
		prom.IncCallbackResolved("duplicate")
		logger.Info("Duplicate callback ignored", "sale_number", sale.SaleNumber, "payment_status", string(sale.PaymentStatus))
		return nil
	}
	prom.IncCallbackResolved("failed")
	logger.Info("Payment failed", "sale_number", sale.SaleNumber, "result_code", cb.ResultCode, "result_desc", cb.ResultDesc)
	return nil
}

// QueryStatus reports the settlement state of a sale. For a sale still
// pending it also polls the provider and, when the provider already knows
// the outcome, applies it the same way a callback would.
func (s *MpesaService) QueryStatus(ctx context.Context, saleID int64) (*PaymentStatusResult, error) {
	sale, err := s.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		if errors.Is(err, repository.ErrSaleNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}

	result := &PaymentStatusResult{
		SaleID:     sale.ID,
		SaleNumber: sale.SaleNumber,
		Status:     sale.PaymentStatus,
		MpesaCode:  sale.MpesaCode,
	}

	if sale.PaymentStatus != model.PaymentStatusPending || sale.MpesaCode == nil {
		return result, nil
	}

	query, err := s.daraja.QueryStatus(ctx, *sale.MpesaCode)
	if err != nil {
		// the sale stays pending; the callback may still arrive
		logger.Warn("Status query failed", "sale_number", sale.SaleNumber, "error", err)
		return result, nil
	}

	result.ResultDesc = query.ResultDesc

	switch query.ResultCode {
	case "":
		// still processing
	case "0":
		applied, err := s.saleRepo.UpdatePaymentStatusIfPending(ctx, sale.ID, model.PaymentStatusCompleted, nil)
		if err != nil {
			return nil, err
		}
		if applied {
			prom.IncCallbackResolved("completed")
			logger.Info("Payment completed via status query", "sale_number", sale.SaleNumber)
		}
		result.Status = model.PaymentStatusCompleted
	default:
		applied, err := s.saleRepo.UpdatePaymentStatusIfPending(ctx, sale.ID, model.PaymentStatusFailed, nil)
		if err != nil {
			return nil, err
		}
		if applied {
			prom.IncCallbackResolved("failed")
			logger.Info("Payment failed via status query", "sale_number", sale.SaleNumber, "result_code", query.ResultCode)
		}
		result.Status = model.PaymentStatusFailed
	}

	return result, nil
}
