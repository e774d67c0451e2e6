// Package http assembles the echo server for the API and WebSocket endpoints.
package http

import (
	"crypto/subtle"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/gogo/a2ui/internal/hub"
	"github.com/xiaot623/gogo/a2ui/internal/service"
	v1 "github.com/xiaot623/gogo/a2ui/internal/transport/http/v1"
	"github.com/xiaot623/gogo/a2ui/internal/transport/ws"
)

// NewServer creates the echo server. When apiKey is set, /v1 routes require
// it in the X-API-Key header; /ws checks it in the hello frame instead.
func NewServer(svc *service.Service, h *hub.Hub, wsServer *ws.Server, apiKey string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if apiKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Skipper: func(c echo.Context) bool {
				return !strings.HasPrefix(c.Path(), "/v1/")
			},
			Validator: func(key string, c echo.Context) (bool, error) {
				return subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1, nil
			},
		}))
	}

	v1.NewHandler(svc, h).RegisterRoutes(e)
	if wsServer != nil {
		e.GET("/ws", wsServer.HandleWebSocket)
	}

	return e
}
