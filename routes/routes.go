package routes

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restaurant-backend/controllers"
	"restaurant-backend/middlewares"
	"restaurant-backend/models"
)

// Register wires all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, h *controllers.API, secret []byte, log *zap.Logger) {
	api := app.Group("/api")
	tx := middlewares.RequestTx(db, log)

	// Public auth endpoints
	api.Post("/registration", tx, h.Register)
	api.Post("/login", tx, h.Login)
	api.Post("/logout", h.Logout)

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.IsAuthenticatedHeader(secret))

	// Idempotency guard FIRST (not tied to request TX)
	protected.Use(middlewares.Idempotency(db, log))

	// Menu
	protected.Post("/menu-items", tx, h.CreateMenuItems) // batch create
	protected.Get("/menu-items", tx, h.GetMenuItems)
	protected.Put("/menu-items/:id", tx, h.UpdateMenuItem)

	// Customers
	protected.Post("/customer", tx, h.CreateCustomer)
	protected.Get("/customers", tx, h.GetCustomers)
	protected.Get("/customer/:id", tx, h.GetCustomer)
	protected.Put("/customer/:id", tx, h.UpdateCustomer)

	// Tables
	protected.Post("/tables", tx, h.CreateTable)
	protected.Get("/tables", tx, h.GetTables)

	// Promotions
	protected.Post("/promotions", tx, middlewares.RequireRole(models.RoleManager, models.RoleAdmin), h.CreatePromotion)
	protected.Get("/promotions", tx, h.GetPromotions)

	// Sessions. The engine opens its own transaction, so no request TX here.
	protected.Post("/sessions", h.OpenSession)
	protected.Post("/sessions/merge", h.MergeSessions)
	protected.Get("/sessions/:id", tx, h.GetSession)
	protected.Post("/sessions/:id/orders", h.AddOrder)
	protected.Post("/sessions/:id/split", h.SplitSession)
	protected.Post("/sessions/:id/unmerge", middlewares.RequireRole(models.RoleManager, models.RoleAdmin), h.UnmergeSession)

	// Invoices
	protected.Get("/invoices", tx, h.GetInvoices)
	protected.Get("/invoice/:id", tx, h.GetInvoice)
	protected.Post("/invoices/:id/split", h.SplitInvoice)
	protected.Post("/invoices/:id/payments", h.CreatePayment)
	protected.Get("/invoices/:id/payments", tx, h.ListPayments)
	protected.Post("/invoices/:id/promotions", h.ApplyPromotion)
}
