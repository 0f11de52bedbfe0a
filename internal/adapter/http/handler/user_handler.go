package handler

import (
	"mobile-money-ledger/internal/adapter/http/dto"
	"mobile-money-ledger/internal/core/ports"
	"mobile-money-ledger/pkg/apperror"
	"mobile-money-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// UserHandler serves identity lookups.
type UserHandler struct {
	reportingSvc ports.ReportingService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(reportingSvc ports.ReportingService) *UserHandler {
	return &UserHandler{reportingSvc: reportingSvc}
}

// Me handles GET /api/v1/users/me.
func (h *UserHandler) Me(c *gin.Context) {
	phone, ok := callerPhone(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	h.lookup(c, phone)
}

// ByPhone handles GET /api/v1/users/by-phone/:phone. Operators only.
func (h *UserHandler) ByPhone(c *gin.Context) {
	h.lookup(c, c.Param("phone"))
}

func (h *UserHandler) lookup(c *gin.Context, phone string) {
	profile, err := h.reportingSvc.LookupByPhone(c.Request.Context(), phone)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toUserProfileResponse(profile))
}

func toUserProfileResponse(p *ports.UserProfile) dto.UserProfileResponse {
	out := dto.UserProfileResponse{
		ID:          p.User.ID.String(),
		Phone:       p.User.Phone,
		DisplayName: p.User.DisplayName,
		ExternalID:  p.User.ExternalID,
		CreatedAt:   p.User.CreatedAt,
	}
	if p.ClientAccount != nil {
		acc := toAccountResponse(p.ClientAccount)
		out.ClientAccount = &acc
	}
	if p.MerchantAccount != nil {
		acc := toAccountResponse(p.MerchantAccount)
		out.MerchantAccount = &acc
	}
	return out
}
