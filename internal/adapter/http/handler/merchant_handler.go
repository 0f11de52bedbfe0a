package handler

import (
	"mobile-money-ledger/internal/adapter/http/dto"
	"mobile-money-ledger/internal/core/ports"
	"mobile-money-ledger/pkg/apperror"
	"mobile-money-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// MerchantHandler handles merchant account lifecycle for the caller.
type MerchantHandler struct {
	merchantSvc ports.MerchantService
}

// NewMerchantHandler creates a new MerchantHandler.
func NewMerchantHandler(merchantSvc ports.MerchantService) *MerchantHandler {
	return &MerchantHandler{merchantSvc: merchantSvc}
}

// Provision handles POST /api/v1/merchants.
func (h *MerchantHandler) Provision(c *gin.Context) {
	phone, ok := callerPhone(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ProvisionMerchantRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := h.merchantSvc.ProvisionMerchantAccount(c.Request.Context(), phone, req.MerchantCode)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toAccountResponse(account))
}

// Deactivate handles DELETE /api/v1/merchants.
func (h *MerchantHandler) Deactivate(c *gin.Context) {
	phone, ok := callerPhone(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	account, err := h.merchantSvc.DeactivateMerchantAccount(c.Request.Context(), phone)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toAccountResponse(account))
}
