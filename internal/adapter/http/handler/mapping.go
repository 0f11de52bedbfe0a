package handler

import (
	"mobile-money-ledger/internal/adapter/http/dto"
	"mobile-money-ledger/internal/adapter/http/middleware"
	"mobile-money-ledger/internal/core/domain"
	"mobile-money-ledger/pkg/apperror"
	"mobile-money-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// callerPhone returns the authenticated phone set by JWTAuth.
func callerPhone(c *gin.Context) (string, bool) {
	phone := c.GetString(middleware.CtxPhone)
	return phone, phone != ""
}

// bindJSON decodes and sanitizes the request body into req, writing a
// validation error response on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

func toAmount(d decimal.Decimal) (int64, error) {
	amount, err := domain.AmountFromDecimal(d)
	if err != nil {
		return 0, apperror.ErrInvalidAmount(err.Error())
	}
	return amount, nil
}

func toAccountResponse(a *domain.Account) dto.AccountResponse {
	return dto.AccountResponse{
		ID:             a.ID.String(),
		Type:           string(a.Type),
		Status:         string(a.Status),
		Balance:        a.Balance,
		BalanceDisplay: domain.FormatAmount(a.Balance),
		MerchantCode:   a.MerchantCode,
		ActivatedAt:    a.ActivatedAt,
	}
}

func toLedgerEntryResponse(e *domain.LedgerEntry) dto.LedgerEntryResponse {
	return dto.LedgerEntryResponse{
		ID:                   e.ID.String(),
		Reference:            e.Reference,
		Kind:                 string(e.Kind),
		Amount:               e.Amount,
		SourceAccountID:      e.SourceAccountID.String(),
		DestinationAccountID: e.DestinationAccountID.String(),
		Memo:                 e.Memo,
		CreatedAt:            e.CreatedAt,
	}
}
