package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetState returns the stored state of a client session.
// GET /v1/sessions/:session_id/state
func (h *Handler) GetState(c echo.Context) error {
	resp, err := h.service.State(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Render returns the resolved render tree of a session's current view.
// GET /v1/sessions/:session_id/render?lang=
func (h *Handler) Render(c echo.Context) error {
	resp, err := h.service.Render(c.Request().Context(), c.Param("session_id"), c.QueryParam("lang"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// DeleteSession drops a session and returns the welcome view.
// DELETE /v1/sessions/:session_id?lang=
func (h *Handler) DeleteSession(c echo.Context) error {
	res, err := h.service.Reset(c.Request().Context(), c.Param("session_id"), c.QueryParam("lang"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, res.Response())
}
