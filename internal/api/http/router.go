package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/feedback-service/internal/api/http/handlers"
	"github.com/spec-kit/feedback-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Admin          *handlers.AdminHandler
	Categories     *handlers.CategoriesHandler
	AuthMiddleware *auth.AuthMiddleware
	UploadsPath    string
	UploadsDir     string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	if cfg.UploadsPath != "" && cfg.UploadsDir != "" {
		app.Static(cfg.UploadsPath, cfg.UploadsDir, fiber.Static{Browse: false})
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Users.Me)

	feedback := app.Group("/feedback", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	feedback.Post("/", cfg.Tickets.CreateTicket)

	// Static segments are registered before :cardId.
	user := feedback.Group("/user")
	user.Get("/", cfg.Tickets.ListOwn)
	user.Get("/stats", cfg.Tickets.OwnStats)
	user.Get("/:cardId", cfg.Tickets.GetOwn)
	user.Post("/:cardId/chat", cfg.Tickets.AddChatMessage)

	admin := feedback.Group("/admin", auth.RequireAdmin())
	admin.Get("/", cfg.Admin.ListTickets)
	admin.Get("/stats", cfg.Admin.Stats)
	admin.Get("/notifications/failed", cfg.Admin.FailedNotifications)
	admin.Get("/:cardId", cfg.Admin.GetTicket)
	admin.Patch("/:cardId/status", cfg.Admin.UpdateStatus)
	admin.Patch("/:cardId", cfg.Admin.UpdateTriage)
	admin.Post("/:cardId/chat", cfg.Admin.AddChatMessage)

	categories := app.Group("/categories", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	categories.Get("/", cfg.Categories.Taxonomy)
	categories.Get("/departments", cfg.Categories.Departments)
	categories.Get("/:department", cfg.Categories.Department)

	categoryAdmin := categories.Group("", auth.RequireAdmin())
	categoryAdmin.Post("/", cfg.Categories.Create)
	categoryAdmin.Delete("/:department/:main", cfg.Categories.Delete)
	categoryAdmin.Post("/:department/:main/subcategories", cfg.Categories.AddSubCategory)
	categoryAdmin.Put("/:department/:main/subcategories/:sub", cfg.Categories.RenameSubCategory)
	categoryAdmin.Delete("/:department/:main/subcategories/:sub", cfg.Categories.RemoveSubCategory)
}
