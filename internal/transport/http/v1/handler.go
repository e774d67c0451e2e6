// Package v1 provides the HTTP handlers of the a2ui API.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/a2ui/internal/hub"
	"github.com/xiaot623/gogo/a2ui/internal/service"
	"github.com/xiaot623/gogo/a2ui/internal/session"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	hub     *hub.Hub
}

// NewHandler creates a new handler. h may be nil when no WebSocket clients
// are served.
func NewHandler(svc *service.Service, h *hub.Hub) *Handler {
	return &Handler{
		service: svc,
		hub:     h,
	}
}

// RegisterRoutes registers the API routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/chat", h.Chat)
	e.POST("/v1/action", h.Action)

	e.GET("/v1/sessions/:session_id/state", h.GetState)
	e.GET("/v1/sessions/:session_id/render", h.Render)
	e.DELETE("/v1/sessions/:session_id", h.DeleteSession)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "healthy",
		"version": "0.1.0",
	}
	if h.hub != nil {
		resp["connections"] = h.hub.ConnectionCount()
		resp["sessions"] = h.hub.SessionCount()
	}
	return c.JSON(http.StatusOK, resp)
}

func errorJSON(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrIdentityMismatch):
		status = http.StatusForbidden
	case errors.Is(err, session.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
