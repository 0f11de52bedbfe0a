package handler

import (
	"net/http"

	"mobile-money-ledger/internal/adapter/http/middleware"
	"mobile-money-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AccountSvc     ports.AccountService
	TransferSvc    ports.TransferService
	PaymentSvc     ports.PaymentService
	MerchantSvc    ports.MerchantService
	ReportingSvc   ports.ReportingService
	TokenSvc       ports.TokenService
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	// Metrics wraps every request and is served on /metrics. nil = disabled.
	Metrics MetricsExporter
	Logger  zerolog.Logger
}

// MetricsExporter is the HTTP side of the metrics recorder.
type MetricsExporter interface {
	Middleware() gin.HandlerFunc
	Handler() http.Handler
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	accountHandler := NewAccountHandler(deps.AccountSvc, deps.TokenSvc)
	v1.POST("/users/register", rl("register"), accountHandler.Register)
	accounts := v1.Group("/accounts")
	{
		accounts.POST("/validate-otp", rl("otp"), accountHandler.ValidateOtp)
		accounts.POST("/resend-otp", rl("otp"), accountHandler.ResendOtp)
	}
	auth := v1.Group("/auth")
	{
		auth.POST("/login-otp", rl("otp"), accountHandler.RequestLoginOtp)
		auth.POST("/login", rl("otp"), accountHandler.Login)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	transferHandler := NewTransferHandler(deps.TransferSvc)
	v1.POST("/transfers", jwtAuth, middleware.RequireRole(ports.RoleOperator), rl("transfers"), transferHandler.Execute)

	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	payments := v1.Group("/payments", jwtAuth)
	{
		payments.POST("", rl("payments"), paymentHandler.Pay)
		payments.POST("/internal", rl("payments"), paymentHandler.InternalTransfer)
	}

	merchantHandler := NewMerchantHandler(deps.MerchantSvc)
	merchants := v1.Group("/merchants", jwtAuth)
	{
		merchants.POST("", rl("merchants"), merchantHandler.Provision)
		merchants.DELETE("", rl("merchants"), merchantHandler.Deactivate)
	}

	balanceHandler := NewBalanceHandler(deps.ReportingSvc)
	balances := v1.Group("/balances", jwtAuth)
	{
		balances.GET("", rl("queries"), balanceHandler.GetTotal)
		balances.GET("/:type", rl("queries"), balanceHandler.GetBalance)
	}
	v1.GET("/transactions", jwtAuth, rl("queries"), balanceHandler.ListTransactions)

	userHandler := NewUserHandler(deps.ReportingSvc)
	users := v1.Group("/users", jwtAuth)
	{
		users.GET("/me", rl("queries"), userHandler.Me)
		users.GET("/by-phone/:phone", middleware.RequireRole(ports.RoleOperator), rl("queries"), userHandler.ByPhone)
	}

	return r
}
