package handler

import (
	"mobile-money-ledger/internal/adapter/http/dto"
	"mobile-money-ledger/internal/core/domain"
	"mobile-money-ledger/internal/core/ports"
	"mobile-money-ledger/pkg/apperror"
	"mobile-money-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler handles registration and activation endpoints.
type AccountHandler struct {
	accountSvc ports.AccountService
	tokenSvc   ports.TokenService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc ports.AccountService, tokenSvc ports.TokenService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc, tokenSvc: tokenSvc}
}

// Register handles POST /api/v1/users/register.
func (h *AccountHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.accountSvc.Register(c.Request.Context(), ports.RegisterRequest{
		Phone:       req.Phone,
		DisplayName: req.DisplayName,
		ExternalID:  req.ExternalID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	out := dto.RegisterResponse{
		UserID:    resp.User.ID.String(),
		Phone:     resp.User.Phone,
		AccountID: resp.Account.ID.String(),
		Status:    string(resp.Account.Status),
	}
	if resp.Account.OTPExpiresAt != nil {
		out.OTPExpiresAt = *resp.Account.OTPExpiresAt
	}
	response.Created(c, out)
}

// ValidateOtp handles POST /api/v1/accounts/validate-otp. A successful
// activation also returns a session token for the phone.
func (h *AccountHandler) ValidateOtp(c *gin.Context) {
	var req dto.ValidateOtpRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := h.accountSvc.ValidateOtp(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.startSession(c, req.Phone, account)
}

// ResendOtp handles POST /api/v1/accounts/resend-otp.
func (h *AccountHandler) ResendOtp(c *gin.Context) {
	var req dto.ResendOtpRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.accountSvc.ResendOtp(c.Request.Context(), req.Phone); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"phone": req.Phone, "sent": true})
}

// RequestLoginOtp handles POST /api/v1/auth/login-otp.
func (h *AccountHandler) RequestLoginOtp(c *gin.Context) {
	var req dto.LoginOtpRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.accountSvc.RequestLoginOtp(c.Request.Context(), req.Phone); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"phone": req.Phone, "sent": true})
}

// Login handles POST /api/v1/auth/login. It is also how an expired token
// is renewed.
func (h *AccountHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := h.accountSvc.Login(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.startSession(c, req.Phone, account)
}

func (h *AccountHandler) startSession(c *gin.Context, phone string, account *domain.Account) {
	token, expiry, err := h.tokenSvc.Generate(phone, ports.RoleUser)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	response.OK(c, dto.SessionResponse{
		Account: toAccountResponse(account),
		Token:   token,
		Expiry:  expiry.Unix(),
	})
}
