package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-service/internal/api/http/handlers"
	"github.com/spec-kit/issue-service/internal/auth"
	"github.com/spec-kit/issue-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Issues         *handlers.IssuesHandler
	Categories     *handlers.CategoriesHandler
	Directory      *handlers.DirectoryHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	issues := api.Group("/issues")
	issues.Post("/", cfg.Issues.Create)
	issues.Get("/", cfg.Issues.List)
	issues.Get("/:id", cfg.Issues.Get)
	issues.Delete("/:id", auth.RequireRole(domain.RoleAdmin), cfg.Issues.Delete)
	issues.Post("/:id/transitions", cfg.Issues.Transition)
	issues.Post("/:id/reopen", cfg.Issues.Reopen)
	issues.Put("/:id/assignee", auth.RequireStaff(), cfg.Issues.Assign)
	issues.Put("/:id/priority", auth.RequireStaff(), cfg.Issues.SetPriority)
	issues.Put("/:id/category", auth.RequireStaff(), cfg.Issues.ChangeCategory)
	issues.Post("/:id/comments", cfg.Issues.AddComment)
	issues.Get("/:id/history", cfg.Issues.History)

	categories := api.Group("/categories")
	categories.Get("/", cfg.Categories.List)
	categories.Get("/:id", cfg.Categories.Get)
	categories.Post("/", auth.RequireRole(domain.RoleAdmin), cfg.Categories.Create)
	categories.Put("/:id", auth.RequireRole(domain.RoleAdmin), cfg.Categories.Update)
	categories.Delete("/:id", auth.RequireRole(domain.RoleAdmin), cfg.Categories.Deactivate)

	api.Get("/departments", cfg.Directory.Departments)
	api.Get("/assignees", auth.RequireStaff(), cfg.Directory.Assignees)
}
