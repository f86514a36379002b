package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/opvera/opvera-api/internal/config"
	"github.com/opvera/opvera-api/internal/handler"
	"github.com/opvera/opvera-api/internal/middleware"
	"github.com/opvera/opvera-api/internal/models"
	"github.com/opvera/opvera-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ChatHandler        *handler.ChatHandler
	ChannelHandler     *handler.ChannelHandler
	AdminHandler       *handler.AdminHandler
	QuizHandler        *handler.QuizHandler
	ProjectHandler     *handler.ProjectHandler
	LeaderboardHandler *handler.LeaderboardHandler
	UserHandler        *handler.UserHandler
	JWTMiddleware      fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	banGate := middleware.RejectBanned()

	if deps.ChatHandler != nil {
		chat := app.Group("/api/v1/chat", jwtMiddleware, banGate)
		chat.Use("/messages", middleware.RateLimit("chat", 20, time.Second*10))
		deps.ChatHandler.Register(chat)
	}

	if deps.ChannelHandler != nil {
		channels := app.Group("/api/v1/channels", jwtMiddleware, banGate)
		deps.ChannelHandler.Register(channels)
	}

	if deps.QuizHandler != nil {
		quizzes := app.Group("/api/v1/quizzes", jwtMiddleware, banGate)
		deps.QuizHandler.Register(quizzes)
	}

	if deps.ProjectHandler != nil {
		projects := app.Group("/api/v1/projects", jwtMiddleware, banGate)
		deps.ProjectHandler.Register(projects)

		assignments := app.Group("/api/v1/assignments", jwtMiddleware, banGate)
		deps.ProjectHandler.RegisterAssignments(assignments)
	}

	if deps.LeaderboardHandler != nil {
		leaderboard := app.Group("/api/v1/leaderboard", jwtMiddleware, banGate)
		deps.LeaderboardHandler.Register(leaderboard)
	}

	if deps.UserHandler != nil {
		users := app.Group("/api/v1/users", jwtMiddleware, banGate)
		deps.UserHandler.Register(users)
	}

	if deps.AdminHandler != nil {
		admin := app.Group("/api/v1/admin", jwtMiddleware,
			middleware.RequireRole(models.RoleAdmin, models.RoleMentor))
		deps.AdminHandler.Register(admin)
	}
}
