package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tinylog/tinylog/internal/middleware"
)

// RegisterRoutes sets up all auth and user routes on the given Echo
// instance. The RequireSession middleware is exported separately for other
// plugins to use on their route groups.
//
// Registration and login are rate-limited to slow brute-force and
// credential stuffing: 5 registrations and 10 login attempts per IP per
// minute.
func RegisterRoutes(e *echo.Echo, h *Handler, service AuthService) {
	// Public routes -- no session required.
	e.GET("/captcha-challenge", h.CaptchaChallenge)
	e.POST("/users/", h.Register, middleware.RateLimit(5, time.Minute))
	e.GET("/users/", h.ListUsers)
	e.GET("/users/:username/", h.GetUser)
	e.POST("/login/", h.Login, middleware.RateLimit(10, time.Minute))

	// Routes below require a valid session.
	authed := e.Group("", RequireSession(service))
	authed.POST("/logout/", h.Logout)
	authed.GET("/current-user/", h.CurrentUser)
}
