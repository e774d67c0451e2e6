// Package rpc exposes a JSON-RPC endpoint through which the conversational
// backend pushes state changes that did not start with a user turn.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"github.com/xiaot623/gogo/a2ui/internal/domain"
	"github.com/xiaot623/gogo/a2ui/internal/hub"
	"github.com/xiaot623/gogo/a2ui/internal/service"
)

// ServiceName is the receiver name methods are registered under.
const ServiceName = "Surface"

const pushTimeout = 30 * time.Second

// Server exposes the Surface RPC endpoints.
type Server struct {
	listener  net.Listener
	rpcServer *rpc.Server
	logger    *slog.Logger
	done      chan struct{}
}

// NewServer creates a new RPC server. h may be nil; pushes then report no
// delivery.
func NewServer(svc *service.Service, h *hub.Hub, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "rpc")

	rpcServer := rpc.NewServer()
	handler := &Handler{service: svc, hub: h, logger: logger}
	if err := rpcServer.RegisterName(ServiceName, handler); err != nil {
		return nil, err
	}

	return &Server{
		rpcServer: rpcServer,
		logger:    logger,
		done:      make(chan struct{}),
	}, nil
}

// Start begins accepting RPC connections on the given address.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts RPC connections on ln until it is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.listener = ln

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			s.logger.Warn("rpc accept failed", "error", err)
			continue
		}

		go s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}

	if err := s.listener.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements the Surface RPC methods.
type Handler struct {
	service *service.Service
	hub     *hub.Hub
	logger  *slog.Logger
}

// PushStateRequest replaces a session's state. State is validated against
// the state schema; null or absent clears it.
type PushStateRequest struct {
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id,omitempty"`
	Reply     string          `json:"reply,omitempty"`
	Language  string          `json:"language,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
}

// PushStateResponse reports what was pushed.
type PushStateResponse struct {
	OK        bool   `json:"ok"`
	Delivered bool   `json:"delivered"`
	Seq       uint64 `json:"seq"`
	View      string `json:"view"`
}

// PushState stores the pushed state and sends the resulting view to every
// connection of the session.
func (h *Handler) PushState(req *PushStateRequest, resp *PushStateResponse) error {
	if req == nil {
		return errors.New("push request is required")
	}
	if req.SessionID == "" {
		return errors.New("session_id is required")
	}

	state, err := domain.DecodeState(req.State)
	if err != nil {
		return fmt.Errorf("invalid state: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	res, err := h.service.PushState(ctx, domain.PushRequest{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Reply:     req.Reply,
		Language:  req.Language,
		State:     state,
	})
	if err != nil {
		return err
	}

	delivered := h.hub != nil && h.hub.HasActiveConnections(req.SessionID)
	h.logger.Info("state pushed", "session_id", req.SessionID, "view", res.View, "seq", res.Seq, "delivered", delivered)

	if resp != nil {
		resp.OK = true
		resp.Delivered = delivered
		resp.Seq = res.Seq
		resp.View = string(res.View)
	}
	return nil
}
