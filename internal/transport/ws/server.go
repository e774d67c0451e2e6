// Package ws serves the WebSocket protocol: clients bind to a client session
// with hello, send chat and action frames, and receive a2ui frames for every
// turn of their session.
package ws

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/a2ui/internal/config"
	"github.com/xiaot623/gogo/a2ui/internal/domain"
	"github.com/xiaot623/gogo/a2ui/internal/hub"
	"github.com/xiaot623/gogo/a2ui/internal/protocol"
	"github.com/xiaot623/gogo/a2ui/internal/service"
	"github.com/xiaot623/gogo/a2ui/internal/session"
)

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	service  *service.Service
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *hub.Hub, svc *service.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		hub:     h,
		service: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With("component", "ws"),
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", "error", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.WS.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads frames from the connection until it fails or closes.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.WS.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.WS.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read failed", "conn_id", conn.ID, "error", err)
			}
			break
		}

		s.handleMessage(conn, message)
	}
}

// writePump drains the connection's send channel and keeps it alive with pings.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.WS.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WS.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Warn("failed to write frame", "conn_id", conn.ID, "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WS.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming frames to their handlers.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var base protocol.BaseFrame
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case protocol.TypeHello:
		s.handleHello(conn, data)
	case protocol.TypeChat:
		s.handleChat(conn, data)
	case protocol.TypeAction:
		s.handleAction(conn, data)
	default:
		s.sendError(conn, base.RequestID, protocol.ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

// handleHello binds the connection to a client session and sends the
// session's current view.
func (s *Server) handleHello(conn *hub.Connection, data []byte) {
	var msg protocol.HelloFrame
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid hello message")
		return
	}

	if key := s.cfg.HTTP.APIKey; key != "" && subtle.ConstantTimeCompare([]byte(msg.APIKey), []byte(key)) != 1 {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeUnauthorized, "invalid api_key")
		return
	}

	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	s.hub.BindSession(conn, sessionID)
	conn.Language = msg.Language

	ack := protocol.HelloAckFrame{
		BaseFrame: protocol.BaseFrame{
			Type:      protocol.TypeHelloAck,
			Ts:        time.Now().UnixMilli(),
			RequestID: msg.RequestID,
			SessionID: sessionID,
		},
	}
	if err := s.hub.SendJSONToConnection(conn, ack); err != nil {
		s.logger.Warn("failed to send hello_ack", "conn_id", conn.ID, "error", err)
		return
	}
	s.logger.Info("hello handshake completed", "conn_id", conn.ID, "session_id", sessionID)

	// Resume waits behind any turn already running for the session.
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WS.TurnTimeout)
	defer cancel()
	res, err := s.service.Resume(ctx, sessionID, msg.Language)
	if err != nil {
		s.sendError(conn, msg.RequestID, errorCode(err), err.Error())
		return
	}
	if err := s.hub.SendJSONToConnection(conn, res.Frame(msg.RequestID)); err != nil {
		s.logger.Warn("failed to send current view", "conn_id", conn.ID, "error", err)
	}
}

// handleChat runs a chat turn. The resulting frame reaches the connection
// through the hub like any other turn of its session.
func (s *Server) handleChat(conn *hub.Connection, data []byte) {
	var msg protocol.ChatFrame
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid chat message")
		return
	}
	sessionID := conn.SessionID()
	if sessionID == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeSessionRequired, "must send hello first")
		return
	}

	req := domain.ChatRequest{
		SessionID: sessionID,
		Message:   msg.Message,
		Language:  firstNonEmpty(msg.Language, conn.Language),
		RequestID: msg.RequestID,
	}
	go s.runTurn(conn, msg.RequestID, func(ctx context.Context) error {
		_, err := s.service.Chat(ctx, req)
		return err
	})
}

// handleAction runs an action turn.
func (s *Server) handleAction(conn *hub.Connection, data []byte) {
	var msg protocol.ActionFrame
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid action message")
		return
	}
	sessionID := conn.SessionID()
	if sessionID == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeSessionRequired, "must send hello first")
		return
	}

	req := domain.ActionRequest{
		SessionID:  sessionID,
		ActionName: msg.ActionName,
		Language:   firstNonEmpty(msg.Language, conn.Language),
		RequestID:  msg.RequestID,
	}
	go s.runTurn(conn, msg.RequestID, func(ctx context.Context) error {
		_, err := s.service.Action(ctx, req)
		return err
	})
}

func (s *Server) runTurn(conn *hub.Connection, requestID string, turn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WS.TurnTimeout)
	defer cancel()

	if err := turn(ctx); err != nil {
		s.logger.Warn("turn failed", "conn_id", conn.ID, "request_id", requestID, "error", err)
		s.sendError(conn, requestID, errorCode(err), err.Error())
	}
}

// sendError sends an error frame to one connection.
func (s *Server) sendError(conn *hub.Connection, requestID, code, message string) {
	frame := protocol.ErrorFrame{
		BaseFrame: protocol.BaseFrame{
			Type:      protocol.TypeError,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
			SessionID: conn.SessionID(),
		},
		Code:    code,
		Message: message,
	}
	if err := s.hub.SendJSONToConnection(conn, frame); err != nil {
		s.logger.Debug("failed to send error frame", "conn_id", conn.ID, "error", err)
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return protocol.ErrorCodeInvalidMessage
	case errors.Is(err, session.ErrStoreUnavailable):
		return protocol.ErrorCodeStoreUnavailable
	case errors.Is(err, session.ErrIdentityMismatch):
		return protocol.ErrorCodeUnauthorized
	default:
		return protocol.ErrorCodeInternalError
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
