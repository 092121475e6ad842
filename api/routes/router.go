package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gomartvn/gomart-backend/api/controllers"
	"github.com/gomartvn/gomart-backend/api/middleware"
	"github.com/gomartvn/gomart-backend/internal/catalog"
	"github.com/gomartvn/gomart-backend/internal/loyalty"
	"github.com/gomartvn/gomart-backend/internal/orders"
	"github.com/gomartvn/gomart-backend/internal/payments"
	"github.com/gomartvn/gomart-backend/internal/settings"
	"github.com/gomartvn/gomart-backend/internal/stock"
	"github.com/gomartvn/gomart-backend/internal/tokens"
	"github.com/gomartvn/gomart-backend/pkg/config"
	"github.com/gomartvn/gomart-backend/pkg/db"
	"github.com/gomartvn/gomart-backend/pkg/enums"
	"github.com/gomartvn/gomart-backend/pkg/logger"
	"github.com/gomartvn/gomart-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    redis.Pinger
	Tokens   tokens.Service
	Catalog  catalog.Service
	Orders   orders.Service
	Stock    stock.Service
	Loyalty  loyalty.Service
	Payments payments.Service
	Settings settings.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	admin := string(enums.UserRoleAdmin)
	staff := string(enums.UserRoleStaff)

	loginLimit := middleware.RateLimit(p.Tokens, "login", cfg.RateLimit.LoginLimit, cfg.RateLimit.LoginWindow, logg)
	resetLimit := middleware.RateLimit(p.Tokens, "password_reset", cfg.RateLimit.PasswordResetLimit, cfg.RateLimit.PasswordResetWindow, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", controllers.GatewayWebhook(p.Payments, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(loginLimit).Post("/register", controllers.AuthRegister(p.Catalog, p.Tokens, logg))
		r.With(loginLimit).Post("/login", controllers.AuthLogin(p.Catalog, p.Tokens, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.Catalog, p.Tokens, logg))
		r.Post("/logout", controllers.AuthLogout(p.Tokens, logg))
		r.With(resetLimit).Post("/password-reset", controllers.AuthPasswordReset(p.Catalog, p.Tokens, logg))
		r.Post("/password-reset/confirm", controllers.AuthPasswordResetConfirm(p.Catalog, p.Tokens, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(p.Tokens, p.Catalog, logg))
			r.Post("/logout-all", controllers.AuthLogoutAll(p.Tokens, logg))
			r.Post("/change-password", controllers.AuthChangePassword(p.Catalog, logg))
			r.Get("/me", controllers.AuthMe(p.Catalog, logg))
		})
	})

	// public storefront reads
	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/categories", controllers.ListCategories(p.Catalog, logg))
		r.Get("/products", controllers.ListProducts(p.Catalog, logg))
		r.Get("/products/{slug}", controllers.ProductBySlug(p.Catalog, logg))
		r.Get("/pages/{slug}", controllers.PageBySlug(p.Catalog, logg))
		r.Get("/banners", controllers.ListBanners(p.Catalog, logg))
		r.Get("/payment-methods", controllers.ListPaymentMethods(p.Payments, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(p.Tokens, p.Catalog, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(p.Catalog, logg))
			r.Post("/items", controllers.AddToCart(p.Catalog, logg))
			r.Put("/items", controllers.UpdateCartItem(p.Catalog, logg))
			r.Delete("/", controllers.ClearCart(p.Catalog, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", controllers.ListAddresses(p.Catalog, logg))
			r.Post("/", controllers.AddAddress(p.Catalog, logg))
			r.Delete("/{addressId}", controllers.DeleteAddress(p.Catalog, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListMyOrders(p.Orders, logg))
			r.Post("/", controllers.CreateOrder(p.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(p.Orders, logg))
			r.Get("/{orderId}/history", controllers.OrderHistory(p.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(p.Orders, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", controllers.CreatePaymentIntent(p.Payments, p.Orders, logg))
			r.Get("/{orderId}", controllers.PaymentIntentStatus(p.Payments, p.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.CancelPaymentIntent(p.Payments, p.Orders, logg))
		})

		r.Route("/loyalty", func(r chi.Router) {
			r.Get("/balance", controllers.LoyaltyBalance(p.Loyalty, logg))
			r.Get("/history", controllers.LoyaltyHistory(p.Loyalty, logg))
			r.Post("/redeem", controllers.LoyaltyRedeem(p.Loyalty, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(p.Tokens, p.Catalog, logg))
		r.Use(middleware.RequireRole(logg, admin, staff))

		r.Route("/catalog", func(r chi.Router) {
			r.Post("/categories", controllers.CreateCategory(p.Catalog, logg))
			r.Delete("/categories/{categoryId}", controllers.DeleteCategory(p.Catalog, logg))
			r.Post("/products", controllers.CreateProduct(p.Catalog, logg))
			r.Post("/products/{productId}/variants", controllers.AddProductVariant(p.Catalog, logg))
			r.Get("/warehouses", controllers.ListWarehouses(p.Catalog, logg))
			r.Post("/warehouses", controllers.CreateWarehouse(p.Catalog, logg))
		})

		r.Route("/stock", func(r chi.Router) {
			r.Get("/", controllers.GetStock(p.Stock, logg))
			r.Get("/history", controllers.StockHistory(p.Stock, logg))
			r.Get("/alerts", controllers.OpenStockAlerts(p.Stock, logg))
			r.Post("/adjust", controllers.AdjustStock(p.Stock, logg))
			r.Post("/transfer", controllers.TransferStock(p.Stock, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/{orderId}/transition", controllers.AdminTransitionOrder(p.Orders, logg))
		})

		r.Route("/loyalty", func(r chi.Router) {
			r.Post("/adjust", controllers.AdminAdjustPoints(p.Loyalty, logg))
		})

		// settings are admin only, staff stays read-free here
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, admin))
			r.Route("/settings", func(r chi.Router) {
				r.Get("/", controllers.ListSettings(p.Settings, logg))
				r.Put("/", controllers.SetSetting(p.Settings, logg))
				r.Delete("/{key}", controllers.DeleteSetting(p.Settings, logg))
			})
		})
	})

	return r
}
