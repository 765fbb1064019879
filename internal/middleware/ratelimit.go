// Package middleware provides HTTP middleware for TinyLog.
// ratelimit.go implements a per-IP rate limiter using a sliding window
// counter stored in memory. Designed for the auth endpoints.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// rateLimitEntry tracks request counts for a single IP within a time window.
type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

// RateLimit returns middleware that limits requests per IP to maxRequests
// within the given window duration. Returns 429 when exceeded.
//
// Expired entries are swept lazily on request instead of by a background
// goroutine, so short-lived instances (tests, graceful restarts) don't leak
// a ticker loop each.
func RateLimit(maxRequests int, window time.Duration) echo.MiddlewareFunc {
	var mu sync.Mutex
	entries := make(map[string]*rateLimitEntry)
	lastSweep := time.Now()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			now := time.Now()

			mu.Lock()
			// At most one sweep per window keeps the map bounded without
			// paying the scan on every request.
			if now.Sub(lastSweep) > window {
				for k, entry := range entries {
					if now.Sub(entry.windowStart) > window {
						delete(entries, k)
					}
				}
				lastSweep = now
			}

			entry, exists := entries[ip]
			if !exists || now.Sub(entry.windowStart) > window {
				entries[ip] = &rateLimitEntry{count: 1, windowStart: now}
				mu.Unlock()
				return next(c)
			}

			entry.count++
			if entry.count > maxRequests {
				mu.Unlock()
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error":   "Too Many Requests",
					"message": "Rate limit exceeded. Please try again later.",
				})
			}
			mu.Unlock()
			return next(c)
		}
	}
}
