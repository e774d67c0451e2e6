package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/xiaot623/gogo/a2ui/internal/action"
	"github.com/xiaot623/gogo/a2ui/internal/backend"
	"github.com/xiaot623/gogo/a2ui/internal/domain"
	"github.com/xiaot623/gogo/a2ui/internal/policy"
	"github.com/xiaot623/gogo/a2ui/internal/session"
	"github.com/xiaot623/gogo/a2ui/internal/view"
)

const (
	turnChat   = "chat"
	turnAction = "action"
	turnPush   = "push"
	turnReset  = "reset"
)

type turnRequest struct {
	sessionID string
	userID    string
	language  string
	requestID string
	input     backend.Input
}

// Chat runs a turn for free text typed by the user. An empty session ID
// starts a new client session.
func (s *Service) Chat(ctx context.Context, req domain.ChatRequest) (*TurnResult, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	return s.turn(ctx, turnChat, turnRequest{
		sessionID: req.SessionID,
		userID:    req.UserID,
		language:  req.Language,
		requestID: req.RequestID,
		input:     backend.Input{Text: text},
	})
}

// Action runs a turn for an activated control.
func (s *Service) Action(ctx context.Context, req domain.ActionRequest) (*TurnResult, error) {
	name := strings.TrimSpace(req.ActionName)
	if name == "" {
		return nil, fmt.Errorf("%w: action_name is required", ErrInvalidRequest)
	}
	a := action.Decode(name)
	return s.turn(ctx, turnAction, turnRequest{
		sessionID: req.SessionID,
		userID:    req.UserID,
		language:  req.Language,
		requestID: req.RequestID,
		input:     backend.Input{Action: &a},
	})
}

func (s *Service) turn(ctx context.Context, kind string, req turnRequest) (res *TurnResult, err error) {
	clientSessionID := req.sessionID
	if clientSessionID == "" {
		clientSessionID = uuid.NewString()
	}
	contextID := session.ContextID(clientSessionID)

	ctx, tracked := s.telemetry.StartTurn(ctx, kind, attribute.String("session.context_id", contextID))
	var failure error
	defer func() {
		if failure == nil {
			failure = err
		}
		viewName := ""
		if res != nil {
			viewName = string(res.View)
		}
		tracked.End(ctx, viewName, failure)
	}()

	unlock := s.sessions.Lock(contextID)
	defer unlock()

	info, _, err := s.sessions.GetOrCreateSession(ctx, contextID, req.userID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	state, err := s.sessions.GetState(ctx, contextID)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	lang := s.builder.Language(state, req.language)

	if a := req.input.Action; a != nil {
		tracked.SetAttributes(attribute.String("action.name", a.Name))
		s.telemetry.RecordAction(ctx, a.Name)
		if reason, blocked := s.checkPolicy(ctx, *a, state); blocked {
			s.telemetry.RecordBlocked(ctx, a.Name, reason)
			s.logger.Info("action blocked", "context_id", contextID, "action", a.String(), "reason", reason)
			return s.finish(clientSessionID, req.requestID, s.blocked(state, lang)), nil
		}
	}

	if err := s.sessions.SetProcessing(ctx, contextID); err != nil {
		return nil, fmt.Errorf("failed to mark session: %w", err)
	}

	out, err := s.backend.Send(ctx, info, req.input, state)
	switch {
	case errors.Is(err, backend.ErrInvalidAction):
		s.logger.Info("action rejected by backend", "context_id", contextID, "error", err)
		if err := s.sessions.SyncState(ctx, contextID, state); err != nil {
			return nil, fmt.Errorf("failed to store state: %w", err)
		}
		return s.finish(clientSessionID, req.requestID, s.blocked(state, lang)), nil

	case err != nil:
		failure = err
		s.logger.Error("backend turn failed", "context_id", contextID, "handle", info.Handle, "error", err)
		if rerr := s.sessions.RecordError(ctx, contextID, err.Error()); rerr != nil {
			s.logger.Warn("failed to record session error", "context_id", contextID, "error", rerr)
		}
		return s.finish(clientSessionID, req.requestID, s.builder.BuildError(lang, err.Error())), nil
	}

	if err := s.sessions.SyncState(ctx, contextID, out.State); err != nil {
		return nil, fmt.Errorf("failed to store state: %w", err)
	}

	built := s.builder.Build(out.State, req.language)
	switch {
	case out.Reply != "":
		built.AssistantText = out.Reply
	case req.input.Action != nil && req.input.Action.Is(action.RemovePoint):
		built.AssistantText = s.builder.Localizer().T(built.Language, "route.point_removed")
	}
	return s.finish(clientSessionID, req.requestID, built), nil
}

// checkPolicy reports whether a is blocked, and why. Evaluation errors let
// the action through; the backend still bounds-checks index actions.
func (s *Service) checkPolicy(ctx context.Context, a action.Action, state *domain.State) (string, bool) {
	if s.policy == nil {
		return "", false
	}
	candidates, points := s.builder.Controls(state)
	decision, err := s.policy.Evaluate(ctx, policy.Input{
		Action:         a,
		View:           s.builder.Select(state),
		CandidateCount: candidates,
		PointCount:     points,
	})
	if err != nil {
		s.logger.Warn("policy evaluation failed", "action", a.String(), "error", err)
		return "", false
	}
	return decision.Reason, !decision.Allow
}

// blocked re-renders the current view with a note that the action is gone.
func (s *Service) blocked(state *domain.State, lang string) view.Result {
	built := s.builder.Build(state, lang)
	built.AssistantText = s.builder.Localizer().T(built.Language, "error.action_blocked")
	return built
}

func (s *Service) finish(clientSessionID, requestID string, built view.Result) *TurnResult {
	res := &TurnResult{
		SessionID:     clientSessionID,
		Seq:           s.nextSeq(clientSessionID),
		View:          built.View,
		Language:      built.Language,
		AssistantText: built.AssistantText,
		Messages:      built.Messages,
	}
	s.publish(res, requestID)
	return res
}
