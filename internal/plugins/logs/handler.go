package logs

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tinylog/tinylog/internal/apperror"
	"github.com/tinylog/tinylog/internal/links"
	"github.com/tinylog/tinylog/internal/plugins/auth"
)

// Handler handles HTTP requests for log and entry resources. Handlers are
// thin: bind, call the service, render. No business logic lives here.
type Handler struct {
	service LogService
}

// NewHandler creates a new logs handler with the given service.
func NewHandler(service LogService) *Handler {
	return &Handler{service: service}
}

// CreateLog creates a new log owned by the current user (POST /logs/).
func (h *Handler) CreateLog(c echo.Context) error {
	user := auth.CurrentUser(c)
	if user == nil {
		return apperror.NewInternal(errors.New("user not resolved before create-log handler"))
	}

	var req CreateLogRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	log, err := h.service.CreateLog(c.Request().Context(), CreateLogInput{
		Name:        req.Name,
		Description: req.Description,
	}, user.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, log.Resource(links.Root(c), nil))
}

// ListLogs returns all logs without their entries (GET /logs/).
func (h *Handler) ListLogs(c echo.Context) error {
	result, err := h.service.ListLogs(c.Request().Context())
	if err != nil {
		return err
	}

	root := links.Root(c)
	resources := make([]LogResource, 0, len(result))
	for i := range result {
		resources = append(resources, result[i].Resource(root, nil))
	}

	return c.JSON(http.StatusOK, resources)
}

// GetLog returns a log with its entries (GET /logs/:id/).
func (h *Handler) GetLog(c echo.Context) error {
	log, entries, err := h.service.GetLog(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, log.Resource(links.Root(c), entries))
}

// DeleteLog removes a log; owner only (DELETE /logs/:id/).
func (h *Handler) DeleteLog(c echo.Context) error {
	user := auth.CurrentUser(c)
	if user == nil {
		return apperror.NewInternal(errors.New("user not resolved before delete-log handler"))
	}

	if err := h.service.DeleteLog(c.Request().Context(), c.Param("id"), user.ID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "log deleted"})
}

// AddEntry appends an entry authored by the current user
// (POST /logs/:id/entries/).
func (h *Handler) AddEntry(c echo.Context) error {
	user := auth.CurrentUser(c)
	if user == nil {
		return apperror.NewInternal(errors.New("user not resolved before add-entry handler"))
	}

	var req CreateEntryRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	entry, err := h.service.AddEntry(c.Request().Context(), c.Param("id"), CreateEntryInput{
		Title:       req.Title,
		Description: req.Description,
	}, user.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, entry.Resource(links.Root(c)))
}

// GetEntry returns a single entry (GET /logs/:id/entries/:entryID/).
func (h *Handler) GetEntry(c echo.Context) error {
	entry, err := h.service.GetEntry(c.Request().Context(), c.Param("id"), c.Param("entryID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entry.Resource(links.Root(c)))
}
