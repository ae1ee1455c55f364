package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fulfillment-service/internal/api/http/handlers"
	"github.com/spec-kit/fulfillment-service/internal/auth"
)

// RouteConfig bundles everything the router needs.
type RouteConfig struct {
	Auth     *auth.AuthMiddleware
	Staff    auth.PrivilegeChecker
	Health   *handlers.HealthHandler
	AuthAPI  *handlers.AuthHandler
	Orders   *handlers.OrdersHandler
	Disputes *handlers.DisputesHandler
	Items    *handlers.ItemsHandler
	Tickets  *handlers.TicketsHandler
}

// RegisterRoutes wires the HTTP surface. Auth routes and health are public;
// everything else requires a bearer token, and resolution/inventory
// operations additionally require the admin or support role.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health", cfg.Health.Check)

	api := app.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.AuthAPI.Login)
	authGroup.Post("/register", cfg.AuthAPI.Register)

	protected := api.Group("", cfg.Auth.Handle, auth.RequireAuthenticated())
	staffOnly := auth.RequireStaff(cfg.Staff)

	orders := protected.Group("/orders")
	orders.Post("", cfg.Orders.CreateOrder)
	orders.Get("/:id", cfg.Orders.GetOrder)
	orders.Post("/:id/start", cfg.Orders.StartWork)
	orders.Post("/:id/complete", cfg.Orders.CompleteWork)
	orders.Post("/:id/confirm", cfg.Orders.ConfirmCompletion)
	orders.Post("/:id/cancel", cfg.Orders.CancelOrder)
	orders.Post("/:id/issues", cfg.Disputes.ReportIssue)

	issues := protected.Group("/issues")
	issues.Post("/:id/approve-work", staffOnly, cfg.Disputes.ApproveWork)
	issues.Post("/:id/request-corrections", staffOnly, cfg.Disputes.RequestCorrections)
	issues.Post("/:id/approve-refund", staffOnly, cfg.Disputes.ApproveRefund)

	items := protected.Group("/items")
	items.Post("/:id/reserve", cfg.Items.Reserve)
	items.Post("/:id/finalize", staffOnly, cfg.Items.FinalizeSale)
	items.Post("/:id/release", staffOnly, cfg.Items.Release)

	tickets := protected.Group("/tickets")
	tickets.Post("", cfg.Tickets.OpenTicket)
	tickets.Post("/:id/close", cfg.Tickets.CloseTicket)

	protected.Get("/channels/:id/binding", cfg.Tickets.ResolveChannel)
}
