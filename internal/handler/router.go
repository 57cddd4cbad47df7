package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/flicky/qbcart/internal/metrics"
	"github.com/flicky/qbcart/internal/middleware"
)

type Handlers struct {
	Auth    *AuthHandler
	Product *ProductHandler
	Cart    *CartHandler
	Order   *OrderHandler
	Admin   *AdminHandler
	Health  *HealthHandler
}

func NewRouter(h Handlers, jwtSecret, serviceName string, log *slog.Logger) *gin.Engine {
	useJSONFieldNames()

	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(serviceName), middleware.Metrics(), middleware.RequestLogger(log))

	router.GET("/healthz", h.Health.Healthz)
	router.GET("/readyz", h.Health.Readyz)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	authed := middleware.AuthMiddleware(jwtSecret)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)

		v1.PUT("/me/address", authed, h.Auth.UpdateAddress)

		products := v1.Group("/products")
		products.GET("", h.Product.List)
		products.GET("/:id", h.Product.GetByID)

		owned := products.Group("", authed)
		owned.GET("/mine", h.Product.Mine)
		owned.POST("", h.Product.Create)
		owned.PUT("/:id", h.Product.Update)
		owned.PATCH("/:id", h.Product.Update)
		owned.DELETE("/:id", h.Product.Delete)

		cart := v1.Group("/cart", authed)
		cart.GET("", h.Cart.GetCart)
		cart.POST("", h.Cart.Add)
		cart.PUT("/:id", h.Cart.UpdateQuantity)
		cart.POST("/:id/status", h.Cart.ToggleStatus)
		cart.DELETE("/:id", h.Cart.Remove)

		orders := v1.Group("/orders", authed)
		orders.GET("", h.Order.List)
		orders.GET("/drafts", h.Order.Drafts)
		orders.GET("/:id", h.Order.Get)
		orders.POST("/checkout", h.Order.Checkout)
		orders.POST("/deliver", h.Order.Deliver)
		orders.POST("/:id/cancel", h.Order.Cancel)
		orders.DELETE("/:id/cancelled", h.Order.RemoveCancelled)
		orders.DELETE("/:id", h.Order.Delete)

		admin := v1.Group("/admin", authed, middleware.AdminOnly())
		admin.GET("/users", h.Admin.ListUsers)
		admin.PUT("/users/:id", h.Admin.UpdateUser)
		admin.DELETE("/users/:id", h.Admin.DeleteUser)
		admin.GET("/activity", h.Admin.ListActivity)
		admin.DELETE("/activity/:id", h.Admin.DeleteActivity)
		admin.GET("/schedules", h.Admin.ListSchedules)
		admin.PUT("/schedules/:name", h.Admin.UpdateSchedule)
	}

	return router
}
