package handler

import (
	"net/http"

	"mobile-money-ledger/internal/adapter/http/dto"
	"mobile-money-ledger/internal/adapter/http/middleware"
	"mobile-money-ledger/internal/core/domain"
	"mobile-money-ledger/internal/core/ports"
	"mobile-money-ledger/pkg/apperror"
	"mobile-money-ledger/pkg/response"
	"mobile-money-ledger/pkg/result"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles phone-addressed fund movements.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// Pay handles POST /api/v1/payments. The caller pays the merchant.
func (h *PaymentHandler) Pay(c *gin.Context) {
	phone, ok := callerPhone(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.PayRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := toAmount(req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	receipt, err := h.paymentSvc.Pay(c.Request.Context(), ports.PayRequest{
		ClientPhone:    phone,
		MerchantPhone:  req.MerchantPhone,
		Amount:         amount,
		Memo:           req.Memo,
		IdempotencyKey: c.GetHeader(middleware.HeaderIdempotencyKey),
	})
	response.Render(c, http.StatusCreated, result.Of(receipt, err))
}

// InternalTransfer handles POST /api/v1/payments/internal.
func (h *PaymentHandler) InternalTransfer(c *gin.Context) {
	phone, ok := callerPhone(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.InternalTransferRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := toAmount(req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	receipt, err := h.paymentSvc.InternalTransfer(c.Request.Context(), ports.InternalTransferRequest{
		Phone:          phone,
		Amount:         amount,
		Direction:      domain.Direction(req.Direction),
		Memo:           req.Memo,
		IdempotencyKey: c.GetHeader(middleware.HeaderIdempotencyKey),
	})
	response.Render(c, http.StatusCreated, result.Of(receipt, err))
}
