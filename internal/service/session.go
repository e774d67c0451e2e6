package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xiaot623/gogo/a2ui/internal/domain"
	"github.com/xiaot623/gogo/a2ui/internal/session"
	"github.com/xiaot623/gogo/a2ui/internal/surface"
)

// RenderResult is the resolved view of a session.
type RenderResult struct {
	SessionID     string          `json:"session_id"`
	View          domain.ViewName `json:"view"`
	Language      string          `json:"language"`
	AssistantText string          `json:"assistant_text"`
	SurfaceID     string          `json:"surface_id"`
	Tree          *surface.Node   `json:"tree"`
	Rejected      int             `json:"rejected"`
}

// State returns the stored state of a client session, or session.ErrNotFound.
func (s *Service) State(ctx context.Context, clientSessionID string) (*domain.StateResponse, error) {
	if strings.TrimSpace(clientSessionID) == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidRequest)
	}
	contextID := session.ContextID(clientSessionID)

	if _, err := s.sessions.GetSession(ctx, contextID); err != nil {
		return nil, err
	}
	state, err := s.sessions.GetState(ctx, contextID)
	if err != nil {
		return nil, err
	}
	return &domain.StateResponse{SessionID: clientSessionID, ContextID: contextID, State: state}, nil
}

// Reset drops the session's state and pushes the welcome view.
func (s *Service) Reset(ctx context.Context, clientSessionID, lang string) (res *TurnResult, err error) {
	if strings.TrimSpace(clientSessionID) == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidRequest)
	}
	contextID := session.ContextID(clientSessionID)

	ctx, tracked := s.telemetry.StartTurn(ctx, turnReset, attribute.String("session.context_id", contextID))
	defer func() {
		viewName := ""
		if res != nil {
			viewName = string(res.View)
		}
		tracked.End(ctx, viewName, err)
	}()

	unlock := s.sessions.Lock(contextID)
	defer unlock()

	if err := s.sessions.DeleteSession(ctx, contextID); err != nil {
		return nil, fmt.Errorf("failed to delete session: %w", err)
	}
	return s.finish(clientSessionID, "", s.builder.Build(nil, lang)), nil
}

// Render resolves the current view of a session into a render tree without
// running a turn. Unknown sessions render the welcome view.
func (s *Service) Render(ctx context.Context, clientSessionID, lang string) (*RenderResult, error) {
	if strings.TrimSpace(clientSessionID) == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidRequest)
	}
	state, err := s.sessions.GetState(ctx, session.ContextID(clientSessionID))
	if err != nil {
		return nil, err
	}

	built := s.builder.Build(state, lang)
	engine := surface.NewEngine(s.logger)
	engine.ApplyBatch(built.Messages)

	return &RenderResult{
		SessionID:     clientSessionID,
		View:          built.View,
		Language:      built.Language,
		AssistantText: built.AssistantText,
		SurfaceID:     s.builder.SurfaceID(),
		Tree:          engine.Render(s.builder.SurfaceID()),
		Rejected:      engine.Rejected(),
	}, nil
}

// PushState replaces a session's state from the backend side and pushes the
// resulting view to connected clients.
func (s *Service) PushState(ctx context.Context, req domain.PushRequest) (res *TurnResult, err error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidRequest)
	}
	contextID := session.ContextID(req.SessionID)

	ctx, tracked := s.telemetry.StartTurn(ctx, turnPush, attribute.String("session.context_id", contextID))
	defer func() {
		viewName := ""
		if res != nil {
			viewName = string(res.View)
		}
		tracked.End(ctx, viewName, err)
	}()

	unlock := s.sessions.Lock(contextID)
	defer unlock()

	if _, _, err := s.sessions.GetOrCreateSession(ctx, contextID, req.UserID, ""); err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	state := req.State
	if state == nil {
		state = &domain.State{}
	}
	if err := s.sessions.SyncState(ctx, contextID, state); err != nil {
		return nil, fmt.Errorf("failed to store state: %w", err)
	}

	built := s.builder.Build(state, req.Language)
	if req.Reply != "" {
		built.AssistantText = req.Reply
	}
	s.logger.Debug("state pushed", "context_id", contextID, "view", built.View)
	return s.finish(req.SessionID, "", built), nil
}

// Resume builds the current view of a session for a client that just
// connected. The result carries the next sequence number but is returned
// rather than published.
func (s *Service) Resume(ctx context.Context, clientSessionID, lang string) (*TurnResult, error) {
	if strings.TrimSpace(clientSessionID) == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidRequest)
	}
	contextID := session.ContextID(clientSessionID)

	// Seqs are only taken under the context lock.
	unlock := s.sessions.Lock(contextID)
	defer unlock()

	state, err := s.sessions.GetState(ctx, contextID)
	if err != nil {
		return nil, err
	}
	built := s.builder.Build(state, lang)
	return &TurnResult{
		SessionID:     clientSessionID,
		Seq:           s.nextSeq(clientSessionID),
		View:          built.View,
		Language:      built.Language,
		AssistantText: built.AssistantText,
		Messages:      built.Messages,
	}, nil
}
