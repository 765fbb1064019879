package auth

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tinylog/tinylog/internal/apperror"
)

// authScheme is the fixed bearer scheme literal, compared case-sensitively.
// Tokens are accepted from the Authorization header only -- never from a
// query parameter, since tokens in URLs end up in access logs and referrers.
const authScheme = "Bearer"

// Context keys for storing the resolved identity in Echo context. Other
// plugins read them via the exported getters below.
const (
	contextKeySession = "auth_session"
	contextKeyUser    = "auth_user"
)

// RequireSession returns middleware that authenticates the request via the
// Authorization header and injects the resolved session and user into the
// request context. Handlers behind this middleware are unreachable without
// a resolved identity.
//
// A missing or malformed header is the caller presenting nothing usable and
// gets 400; a well-formed header with an unknown or expired token gets 403.
// The two session failure modes are not distinguishable from outside.
func RequireSession(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return apperror.NewBadRequest("authorization required")
			}

			parts := strings.Split(header, " ")
			if len(parts) != 2 || parts[0] != authScheme || parts[1] == "" {
				return apperror.NewBadRequest("malformed authorization header, use: " + authScheme + " <token>")
			}

			session, user, err := service.ResolveSession(c.Request().Context(), parts[1])
			if err != nil {
				// Only the two session failure modes become 403. Anything
				// else (a store outage, say) is an infrastructure error and
				// must keep its status and internal cause for the error
				// handler to log.
				if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrSessionExpired) {
					return apperror.NewForbidden("invalid session")
				}
				return err
			}

			c.Set(contextKeySession, session)
			c.Set(contextKeyUser, user)

			return next(c)
		}
	}
}

// --- Exported getters for handlers and other plugins ---

// CurrentSession retrieves the authenticated session from the Echo context.
// Returns nil if the request is not authenticated (middleware not applied).
func CurrentSession(c echo.Context) *Session {
	session, ok := c.Get(contextKeySession).(*Session)
	if !ok {
		return nil
	}
	return session
}

// CurrentUser retrieves the authenticated user from the Echo context.
// Returns nil if the request is not authenticated.
func CurrentUser(c echo.Context) *User {
	user, ok := c.Get(contextKeyUser).(*User)
	if !ok {
		return nil
	}
	return user
}
