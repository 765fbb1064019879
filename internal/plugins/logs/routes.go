package logs

import (
	"github.com/labstack/echo/v4"

	"github.com/tinylog/tinylog/internal/plugins/auth"
)

// RegisterRoutes sets up log and entry routes. Reads are public; writes
// require a valid session via the auth plugin's middleware.
func RegisterRoutes(e *echo.Echo, h *Handler, authService auth.AuthService) {
	// Public reads.
	e.GET("/logs/", h.ListLogs)
	e.GET("/logs/:id/", h.GetLog)
	e.GET("/logs/:id/entries/:entryID/", h.GetEntry)

	// Writes require a session.
	authed := e.Group("", auth.RequireSession(authService))
	authed.POST("/logs/", h.CreateLog)
	authed.DELETE("/logs/:id/", h.DeleteLog)
	authed.POST("/logs/:id/entries/", h.AddEntry)
}
