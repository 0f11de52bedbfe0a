package handler

import (
	"mobile-money-ledger/internal/adapter/http/dto"
	"mobile-money-ledger/internal/core/ports"
	"mobile-money-ledger/pkg/apperror"
	"mobile-money-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TransferHandler exposes direct account-to-account transfers to operators.
type TransferHandler struct {
	transferSvc ports.TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferSvc ports.TransferService) *TransferHandler {
	return &TransferHandler{transferSvc: transferSvc}
}

// Execute handles POST /api/v1/transfers.
func (h *TransferHandler) Execute(c *gin.Context) {
	var req dto.TransferRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := toAmount(req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	src, err := uuid.Parse(req.SourceAccountID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid source_account_id"))
		return
	}
	dst, err := uuid.Parse(req.DestinationAccountID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid destination_account_id"))
		return
	}

	res, err := h.transferSvc.Execute(c.Request.Context(), ports.TransferRequest{
		SourceID:      src,
		DestinationID: dst,
		Amount:        amount,
		Memo:          req.Memo,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.TransferResponse{
		TransactionID: res.Entry.ID.String(),
		Reference:     res.Entry.Reference,
		Kind:          string(res.Entry.Kind),
		Amount:        res.Entry.Amount,
		Source:        toAccountResponse(res.Source),
		Destination:   toAccountResponse(res.Destination),
		CreatedAt:     res.Entry.CreatedAt,
	})
}
