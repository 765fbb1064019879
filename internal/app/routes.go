package app

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tinylog/tinylog/internal/plugins/auth"
	"github.com/tinylog/tinylog/internal/plugins/captcha"
	"github.com/tinylog/tinylog/internal/plugins/logs"
)

// RegisterRoutes constructs every plugin's repository/service/handler stack
// and registers its routes. This is the single place where all routes are
// aggregated.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// Landing page.
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Welcome to TinyLog")
	})

	// Health check endpoint for container health monitoring.
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// --- Auth plugin (users, sessions, captcha gate) ---
	captchaClient := captcha.NewClient(a.Config.Captcha)
	userRepo := auth.NewUserRepository(a.DB)
	sessions := auth.NewSessionStore(a.Redis, a.Config.Auth.SessionTTL)
	authService := auth.NewAuthService(userRepo, sessions, captchaClient)
	authHandler := auth.NewHandler(authService, captchaClient)
	auth.RegisterRoutes(e, authHandler, authService)

	// --- Logs plugin (logs and entries) ---
	logRepo := logs.NewLogRepository(a.DB)
	logService := logs.NewLogService(logRepo)
	logHandler := logs.NewHandler(logService)
	logs.RegisterRoutes(e, logHandler, authService)
}
