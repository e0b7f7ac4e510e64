package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rideshare/internal/domain"
	"rideshare/internal/handler"
	"rideshare/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler      *handler.RideHandler
	BookingHandler   *handler.BookingHandler
	WalletHandler    *handler.WalletHandler
	PaymentHandler   *handler.PaymentHandler
	InventoryHandler *handler.InventoryHandler
	RedisClient      *redis.Client
	NewRelicApp      *newrelic.Application
	JWTSecret        string
	Log              *zap.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(middleware.Recovery(deps.Log))
	router.Use(middleware.RequestLogger(deps.Log))
	router.Use(middleware.CORSMiddleware())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := middleware.JWTAuth(deps.JWTSecret)
	idempotency := middleware.IdempotencyMiddleware(deps.RedisClient, deps.Log)
	operator := middleware.RequireRole(domain.RoleAdmin, domain.RoleSystem)

	// API v1 routes.
	v1 := router.Group("/v1", auth, idempotency)
	{
		rides := v1.Group("/rides")
		{
			rides.POST("", middleware.RequireRole(domain.RoleDriver), deps.RideHandler.CreateRide)
			rides.GET("", deps.RideHandler.ListRides)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.PATCH("/:id", deps.RideHandler.UpdateRide)
			rides.POST("/:id/publish", deps.RideHandler.PublishRide)
			rides.POST("/:id/start", deps.RideHandler.StartRide)
			rides.POST("/:id/complete", deps.RideHandler.CompleteRide)
			rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
			rides.GET("/:id/bookings", deps.BookingHandler.ListRideBookings)
		}

		bookings := v1.Group("/bookings")
		{
			bookings.POST("", deps.BookingHandler.CreateBooking)
			bookings.GET("/:id", deps.BookingHandler.GetBooking)
			bookings.POST("/:id/approve", deps.BookingHandler.ApproveBooking)
			bookings.POST("/:id/reject", deps.BookingHandler.RejectBooking)
			bookings.POST("/:id/cancel", deps.BookingHandler.CancelBooking)
			bookings.POST("/:id/complete", operator, deps.BookingHandler.CompleteBooking)
			bookings.POST("/:id/pay", deps.BookingHandler.PayBooking)
		}

		payments := v1.Group("/payments")
		{
			payments.GET("/:id", deps.PaymentHandler.GetPayment)
			payments.POST("/:id/refund", operator, deps.PaymentHandler.RefundPayment)
		}

		wallets := v1.Group("/wallets/:userId", operator)
		{
			wallets.POST("/freeze", deps.WalletHandler.Freeze)
			wallets.POST("/unfreeze", deps.WalletHandler.Unfreeze)
		}

		me := v1.Group("/me")
		{
			me.GET("/rides", deps.RideHandler.ListMyRides)
			me.GET("/bookings", deps.BookingHandler.ListMyBookings)
			me.GET("/payments", deps.PaymentHandler.ListMyPayments)
			me.GET("/wallet", deps.WalletHandler.GetMyWallet)
			me.POST("/wallet/topup", deps.WalletHandler.TopUp)
		}
	}

	// Inventory ledger access for booking components in other deployments.
	internal := router.Group("/internal", auth, middleware.RequireRole(domain.RoleSystem), idempotency)
	{
		internal.GET("/rides/:id", deps.InventoryHandler.Snapshot)
		internal.POST("/rides/:id/seats", deps.InventoryHandler.AdjustSeats)
		internal.POST("/rides/:id/seats/revert", deps.InventoryHandler.RevertSeats)
	}

	return router
}
