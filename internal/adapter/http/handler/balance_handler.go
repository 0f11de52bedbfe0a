package handler

import (
	"strconv"
	"strings"
	"time"

	"mobile-money-ledger/internal/adapter/http/dto"
	"mobile-money-ledger/internal/core/domain"
	"mobile-money-ledger/internal/core/ports"
	"mobile-money-ledger/pkg/apperror"
	"mobile-money-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// BalanceHandler handles read-only balance and history endpoints.
type BalanceHandler struct {
	reportingSvc ports.ReportingService
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(reportingSvc ports.ReportingService) *BalanceHandler {
	return &BalanceHandler{reportingSvc: reportingSvc}
}

// GetBalance handles GET /api/v1/balances/:type.
func (h *BalanceHandler) GetBalance(c *gin.Context) {
	phone, ok := callerPhone(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	t := domain.AccountType(strings.ToUpper(c.Param("type")))
	balance, err := h.reportingSvc.GetBalance(c.Request.Context(), phone, t)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		Type:           string(t),
		Balance:        balance,
		BalanceDisplay: domain.FormatAmount(balance),
	})
}

// GetTotal handles GET /api/v1/balances.
func (h *BalanceHandler) GetTotal(c *gin.Context) {
	phone, ok := callerPhone(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	ctx := c.Request.Context()
	total, err := h.reportingSvc.GetTotalBalance(ctx, phone)
	if err != nil {
		response.Error(c, err)
		return
	}
	hasMerchant, err := h.reportingSvc.HasMerchantAccount(ctx, phone)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.TotalBalanceResponse{
		Phone:              phone,
		Total:              total,
		TotalDisplay:       domain.FormatAmount(total),
		HasMerchantAccount: hasMerchant,
	})
}

// ListTransactions handles GET /api/v1/transactions.
func (h *BalanceHandler) ListTransactions(c *gin.Context) {
	phone, ok := callerPhone(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))

	params := ports.HistoryParams{
		Phone:    phone,
		Page:     page,
		PageSize: pageSize,
	}
	if k := c.Query("kind"); k != "" {
		kind := domain.EntryKind(strings.ToUpper(k))
		params.Kind = &kind
	}
	if f := c.Query("from"); f != "" {
		v, err := time.Parse(time.RFC3339, f)
		if err != nil {
			response.Error(c, apperror.Validation("from must be an RFC 3339 timestamp"))
			return
		}
		params.From = &v
	}
	if t := c.Query("to"); t != "" {
		v, err := time.Parse(time.RFC3339, t)
		if err != nil {
			response.Error(c, apperror.Validation("to must be an RFC 3339 timestamp"))
			return
		}
		params.To = &v
	}

	entries, total, err := h.reportingSvc.ListTransactionsForPhone(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toLedgerEntryResponse(&entries[i]))
	}

	paging := params.Normalized()
	response.OK(c, dto.TransactionListResponse{
		Transactions: items,
		Total:        total,
		Page:         paging.Page,
		PageSize:     paging.PageSize,
	})
}
