// Package links builds the absolute _link URLs that every resource
// representation carries. Links are computed from the incoming request's
// root (scheme + host) so the service works unchanged behind any hostname.
package links

import (
	"github.com/labstack/echo/v4"
)

// Root returns the request's root URL, e.g. "https://tinylog.example.com".
// Echo resolves the scheme from X-Forwarded-Proto when behind a proxy.
func Root(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host
}
