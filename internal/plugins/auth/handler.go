package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tinylog/tinylog/internal/apperror"
	"github.com/tinylog/tinylog/internal/links"
)

// CaptchaChallenger issues fresh challenges from the external captcha
// provider, for clients that need one before registering.
type CaptchaChallenger interface {
	Challenge(ctx context.Context) (string, error)
}

// Handler handles HTTP requests for authentication and user resources.
// Handlers are thin: they bind the request, call the service, and render
// the response. No business logic lives here.
type Handler struct {
	service    AuthService
	challenger CaptchaChallenger
}

// NewHandler creates a new auth handler with the given dependencies.
func NewHandler(service AuthService, challenger CaptchaChallenger) *Handler {
	return &Handler{service: service, challenger: challenger}
}

// CaptchaChallenge proxies a new challenge from the captcha provider
// (GET /captcha-challenge). This is the one place a provider outage
// surfaces as a 5xx; during registration it fails closed as a 400 instead.
func (h *Handler) CaptchaChallenge(c echo.Context) error {
	challenge, err := h.challenger.Challenge(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"challenge": challenge})
}

// Register creates a new user account (POST /users/).
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	user, err := h.service.Register(c.Request().Context(), RegisterInput{
		CaptchaToken: req.CaptchaToken,
		Username:     req.Username,
		Password:     req.Password,
		DisplayName:  req.DisplayName,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, user.Resource(links.Root(c)))
}

// ListUsers returns all registered users (GET /users/).
func (h *Handler) ListUsers(c echo.Context) error {
	users, err := h.service.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}

	root := links.Root(c)
	resources := make([]UserResource, 0, len(users))
	for i := range users {
		resources = append(resources, users[i].Resource(root))
	}

	return c.JSON(http.StatusOK, resources)
}

// GetUser returns a single user by username (GET /users/:username/).
func (h *Handler) GetUser(c echo.Context) error {
	user, err := h.service.GetUser(c.Request().Context(), c.Param("username"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user.Resource(links.Root(c)))
}

// Login authenticates a user and returns a bearer token (POST /login/).
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return apperror.NewBadRequest("username and password are required")
	}

	token, _, err := h.service.Login(c.Request().Context(), LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, TokenResponse{AccessToken: token})
}

// Logout revokes the current session (POST /logout/). Runs behind
// RequireSession, so the session has already been resolved.
func (h *Handler) Logout(c echo.Context) error {
	session := CurrentSession(c)
	if session == nil {
		return apperror.NewInternal(errors.New("session not resolved before logout handler"))
	}

	if err := h.service.Logout(c.Request().Context(), session.Token); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "logged out"})
}

// CurrentUser returns the identity resolved from the bearer token
// (GET /current-user/).
func (h *Handler) CurrentUser(c echo.Context) error {
	user := CurrentUser(c)
	if user == nil {
		return apperror.NewInternal(errors.New("user not resolved before current-user handler"))
	}
	return c.JSON(http.StatusOK, user.Resource(links.Root(c)))
}
